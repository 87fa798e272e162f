package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/crossbox/internal/adapters/cas"                //nolint:depguard // Wired in app layer
	"go.trai.ch/crossbox/internal/adapters/config"             //nolint:depguard // Wired in app layer
	"go.trai.ch/crossbox/internal/adapters/engine"             //nolint:depguard // Wired in app layer
	"go.trai.ch/crossbox/internal/adapters/logger"             //nolint:depguard // Wired in app layer
	"go.trai.ch/crossbox/internal/adapters/registry"           //nolint:depguard // Wired in app layer
	"go.trai.ch/crossbox/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in app layer
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/crossbox/internal/engine/orchestrator"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			registry.NodeID,
			orchestrator.NodeID,
			cas.NodeID,
			engine.NodeID,
			progrock.NodeID,
			logger.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	settings, err := graft.Dep[domain.Settings](ctx)
	if err != nil {
		return nil, err
	}

	loader, err := graft.Dep[ports.RegistryLoader](ctx)
	if err != nil {
		return nil, err
	}

	orch, err := graft.Dep[*orchestrator.Orchestrator](ctx)
	if err != nil {
		return nil, err
	}

	cache, err := graft.Dep[ports.CacheStore](ctx)
	if err != nil {
		return nil, err
	}

	eng, err := graft.Dep[ports.ImageEngine](ctx)
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

	return New(settings, loader, orch, cache, eng, telemetry, log), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	app, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return NewComponents(app, log), nil
}
