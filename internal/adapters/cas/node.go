package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/crossbox/internal/adapters/config"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
)

const NodeID graft.ID = "adapter.cache_store"

func init() {
	graft.Register(graft.Node[ports.CacheStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.CacheStore, error) {
			settings, err := graft.Dep[domain.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return NewStore(settings.CacheDir), nil
		},
	})
}
