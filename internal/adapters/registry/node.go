package registry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/crossbox/internal/adapters/fs"
	"go.trai.ch/crossbox/internal/adapters/logger"
	"go.trai.ch/crossbox/internal/core/ports"
)

const NodeID graft.ID = "adapter.registry_loader"

func init() {
	graft.Register(graft.Node[ports.RegistryLoader]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fs.HasherNodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.RegistryLoader, error) {
			hasher, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewLoader(hasher, log), nil
		},
	})
}
