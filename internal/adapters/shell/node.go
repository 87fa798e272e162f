package shell

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/crossbox/internal/adapters/logger"
	"go.trai.ch/crossbox/internal/core/ports"
)

const NodeID graft.ID = "adapter.downstream"

func init() {
	graft.Register(graft.Node[ports.DownstreamRunner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.DownstreamRunner, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewRunner(log), nil
		},
	})
}
