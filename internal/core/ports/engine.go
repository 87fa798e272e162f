package ports

import (
	"context"
	"io"

	"go.trai.ch/crossbox/internal/core/domain"
)

// BuildRequest carries everything an engine needs to build one image.
type BuildRequest struct {
	// Ref is the canonical tag the image is committed under.
	Ref domain.ImageRef
	// Staging is the temporary tag the build writes to. It is retagged to Ref
	// only after every step succeeded, so a failed build never replaces Ref.
	Staging     domain.ImageRef
	Description *domain.BuildDescription
	Labels      map[string]string
	Stdout      io.Writer
	Stderr      io.Writer
}

// ImageEngine is the container engine that pulls, builds, and stores images.
//
//go:generate go run go.uber.org/mock/mockgen -source=engine.go -destination=mocks/mock_engine.go -package=mocks
type ImageEngine interface {
	// Name identifies the engine in cache metadata and reports.
	Name() string

	// Available checks that the engine can be reached.
	Available(ctx context.Context) error

	// ResolveBase makes a base image available locally, pulling it when missing.
	ResolveBase(ctx context.Context, ref, platform string) error

	// Build runs the build description and tags the result as req.Ref.
	Build(ctx context.Context, req BuildRequest) error

	// Inspect returns the local image tagged ref.
	// Returns nil, nil if not found.
	Inspect(ctx context.Context, ref domain.ImageRef) (*domain.Image, error)

	// Verify checks that the image tagged ref has all of its layers and can run.
	Verify(ctx context.Context, ref domain.ImageRef) error

	// Save writes an archive of the image and every layer it depends on to w.
	// It returns the layer identifiers included in the archive.
	Save(ctx context.Context, ref domain.ImageRef, w io.Writer) ([]string, error)

	// Load imports an archive produced by Save.
	Load(ctx context.Context, r io.Reader) error

	// Remove deletes the local tag.
	Remove(ctx context.Context, ref domain.ImageRef) error
}
