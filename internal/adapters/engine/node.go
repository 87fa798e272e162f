package engine

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/crossbox/internal/adapters/config"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
)

const NodeID graft.ID = "adapter.engine"

func init() {
	graft.Register(graft.Node[ports.ImageEngine]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.ImageEngine, error) {
			settings, err := graft.Dep[domain.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return Select(settings, nil)
		},
	})
}
