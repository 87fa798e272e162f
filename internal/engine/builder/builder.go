// Package builder produces a fresh image for one target from its build description.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/zerr"
)

// Output receives the engine's build output.
type Output struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Builder runs one build per call. It never retries.
type Builder struct {
	engine ports.ImageEngine
	logger ports.Logger
}

// New creates a Builder.
func New(engine ports.ImageEngine, logger ports.Logger) *Builder {
	return &Builder{engine: engine, logger: logger}
}

// Build resolves every base image of desc, builds it under a staging tag
// derived from runID, and returns the image now tagged ref.
// Errors are *domain.TargetError values classified as
// ErrBuildDescriptionUnresolvable or ErrBuildExecutionFailed.
func (b *Builder) Build(ctx context.Context, desc *domain.BuildDescription, ref domain.ImageRef, runID string, out Output) (*domain.Image, error) {
	bases := desc.BaseImages()
	if desc.Kind == domain.RecipeStructured && len(bases) == 0 {
		return nil, b.fail(desc, domain.ErrBuildDescriptionUnresolvable, zerr.New("recipe declares no base image"))
	}

	for _, base := range bases {
		b.logger.Info(fmt.Sprintf("[%s] build: resolving base image %s", desc.Target, base))
		if err := b.engine.ResolveBase(ctx, base, desc.Platform()); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, b.fail(desc, domain.ErrBuildDescriptionUnresolvable, err)
		}
	}

	b.logger.Info(fmt.Sprintf("[%s] build: building %s with %s", desc.Target, ref, b.engine.Name()))
	err := b.engine.Build(ctx, ports.BuildRequest{
		Ref:         ref,
		Staging:     ref.Staging(runID),
		Description: desc,
		Labels:      domain.ImageLabels(ref, desc),
		Stdout:      out.Stdout,
		Stderr:      out.Stderr,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, domain.ErrUnsupportedRecipe) {
			return nil, b.fail(desc, domain.ErrBuildDescriptionUnresolvable, err)
		}
		return nil, b.fail(desc, domain.ErrBuildExecutionFailed, err)
	}

	img, err := b.engine.Inspect(ctx, ref)
	if err != nil {
		return nil, b.fail(desc, domain.ErrBuildExecutionFailed, err)
	}
	if img == nil {
		return nil, b.fail(desc, domain.ErrBuildExecutionFailed, zerr.With(zerr.New("image missing after build"), "image", ref.String()))
	}

	b.logger.Info(fmt.Sprintf("[%s] build: built %s", desc.Target, ref))
	return img, nil
}

func (b *Builder) fail(desc *domain.BuildDescription, kind, err error) error {
	return domain.NewTargetError(desc.Target, domain.StageBuild, kind, err)
}
