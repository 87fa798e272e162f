package logger

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/crossbox/internal/adapters/config"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
)

const NodeID graft.ID = "adapter.logger"

func init() {
	graft.Register(graft.Node[ports.Logger]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.Logger, error) {
			settings, err := graft.Dep[domain.Settings](ctx)
			if err != nil {
				return nil, err
			}
			l := New()
			l.SetJSON(settings.LogFormat == domain.LogFormatJSON)
			return l, nil
		},
	})
}
