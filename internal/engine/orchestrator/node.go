package orchestrator

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/crossbox/internal/adapters/cas"                //nolint:depguard // Wired in engine wiring
	"go.trai.ch/crossbox/internal/adapters/engine"             //nolint:depguard // Wired in engine wiring
	"go.trai.ch/crossbox/internal/adapters/logger"             //nolint:depguard // Wired in engine wiring
	"go.trai.ch/crossbox/internal/adapters/shell"              //nolint:depguard // Wired in engine wiring
	"go.trai.ch/crossbox/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/crossbox/internal/core/ports"
)

// NodeID is the unique identifier for the orchestrator Graft node.
const NodeID graft.ID = "engine.orchestrator"

func init() {
	graft.Register(graft.Node[*Orchestrator]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			engine.NodeID,
			cas.NodeID,
			shell.NodeID,
			progrock.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Orchestrator, error) {
			eng, err := graft.Dep[ports.ImageEngine](ctx)
			if err != nil {
				return nil, err
			}

			cache, err := graft.Dep[ports.CacheStore](ctx)
			if err != nil {
				return nil, err
			}

			downstream, err := graft.Dep[ports.DownstreamRunner](ctx)
			if err != nil {
				return nil, err
			}

			telemetry, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return New(eng, cache, downstream, telemetry, log), nil
		},
	})
}
