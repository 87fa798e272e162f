package config

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/zerr"
)

const NodeID graft.ID = "adapter.config"

func init() {
	graft.Register(graft.Node[domain.Settings]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (domain.Settings, error) {
			cwd, err := os.Getwd()
			if err != nil {
				return domain.Settings{}, zerr.Wrap(err, "failed to get working directory")
			}
			return NewLoader().Load(cwd)
		},
	})
}
