// Package containerd builds and stores target images directly in containerd.
package containerd

import (
	"context"
	"errors"
	"io"
	"maps"
	"sync"

	"github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/containerd/v2/core/images/archive"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	// Name is the engine name recorded in cache entries.
	Name = "containerd"

	// OCI runtime shim for build containers.
	ociRuntime = "io.containerd.runc.v2"
)

// Engine implements ports.ImageEngine on a containerd daemon.
// The client connects on first use.
type Engine struct {
	address     string
	namespace   string
	snapshotter string
	platform    string

	once   sync.Once
	client *client.Client
	err    error
}

var _ ports.ImageEngine = (*Engine)(nil)

// New creates an engine for the given daemon settings. An empty platform means the host platform.
func New(settings domain.ContainerdSettings, platform string) *Engine {
	if platform == "" {
		platform = platforms.DefaultString()
	}
	return &Engine{
		address:     settings.Address,
		namespace:   settings.Namespace,
		snapshotter: settings.Snapshotter,
		platform:    platform,
	}
}

// Name returns "containerd".
func (e *Engine) Name() string {
	return Name
}

func (e *Engine) connect() (*client.Client, error) {
	e.once.Do(func() {
		c, err := client.New(e.address, client.WithDefaultNamespace(e.namespace))
		if err != nil {
			e.err = errors.Join(domain.ErrEngineNotAvailable, zerr.With(zerr.Wrap(err, "failed to connect to containerd"), "address", e.address))
			return
		}
		e.client = c
	})
	return e.client, e.err
}

// Close releases the client connection, if one was opened.
func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// Available checks that the daemon is serving.
func (e *Engine) Available(ctx context.Context) error {
	c, err := e.connect()
	if err != nil {
		return err
	}
	serving, err := c.IsServing(ctx)
	if err != nil || !serving {
		return errors.Join(domain.ErrEngineNotAvailable, zerr.With(zerr.New("containerd is not serving"), "address", e.address), err)
	}
	return nil
}

// ResolveBase makes ref available and unpacked, pulling it when it is not present.
func (e *Engine) ResolveBase(ctx context.Context, ref, platform string) error {
	c, err := e.connect()
	if err != nil {
		return err
	}

	matcher, err := e.matcher(platform)
	if err != nil {
		return err
	}

	name := NormalizeRef(ref)
	if img, err := c.ImageService().Get(ctx, name); err == nil {
		return client.NewImageWithPlatform(c, img, matcher).Unpack(ctx, e.snapshotter)
	} else if !errdefs.IsNotFound(err) {
		return zerr.With(zerr.Wrap(err, "failed to look up base image"), "image", name)
	}

	_, err = c.Pull(ctx, name,
		client.WithPullUnpack,
		client.WithPlatformMatcher(matcher),
		client.WithPullSnapshotter(e.snapshotter),
	)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to pull base image"), "image", name)
	}
	return nil
}

// Inspect returns the image tagged ref, or nil when it does not exist.
// Labels come from the image record, overlaid with the image config labels,
// so images restored from an archive keep their build labels.
func (e *Engine) Inspect(ctx context.Context, ref domain.ImageRef) (*domain.Image, error) {
	c, err := e.connect()
	if err != nil {
		return nil, err
	}

	rec, err := c.ImageService().Get(ctx, ref.String())
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to get image"), "image", ref.String())
	}

	matcher, err := e.matcher("")
	if err != nil {
		return nil, err
	}
	img := client.NewImageWithPlatform(c, rec, matcher)

	labels := maps.Clone(rec.Labels)
	if labels == nil {
		labels = make(map[string]string)
	}
	if spec, err := img.Spec(ctx); err == nil {
		maps.Copy(labels, spec.Config.Labels)
	}

	diffIDs, err := img.RootFS(ctx)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read image layers"), "image", ref.String())
	}
	layers := make([]string, 0, len(diffIDs))
	for _, d := range diffIDs {
		layers = append(layers, d.String())
	}

	return &domain.Image{
		Ref:    ref,
		ID:     rec.Target.Digest.String(),
		Labels: labels,
		Layers: layers,
	}, nil
}

// Verify checks that every blob of ref is in the content store and that it unpacks.
func (e *Engine) Verify(ctx context.Context, ref domain.ImageRef) error {
	c, err := e.connect()
	if err != nil {
		return err
	}

	rec, err := c.ImageService().Get(ctx, ref.String())
	if err != nil {
		return errors.Join(domain.ErrImageUnusable, zerr.With(zerr.Wrap(err, "failed to get image"), "image", ref.String()))
	}

	matcher, err := e.matcher("")
	if err != nil {
		return err
	}

	available, _, _, missing, err := images.Check(ctx, c.ContentStore(), rec.Target, matcher)
	if err != nil {
		return errors.Join(domain.ErrImageUnusable, err)
	}
	if !available || len(missing) > 0 {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrImageUnusable, "image content is incomplete"), "image", ref.String()), "missing", len(missing))
	}

	if err := client.NewImageWithPlatform(c, rec, matcher).Unpack(ctx, e.snapshotter); err != nil {
		return errors.Join(domain.ErrImageUnusable, zerr.With(zerr.Wrap(err, "failed to unpack image"), "image", ref.String()))
	}
	return nil
}

// Save exports ref for the engine platform as an OCI archive and returns its layer diff ids.
func (e *Engine) Save(ctx context.Context, ref domain.ImageRef, w io.Writer) ([]string, error) {
	c, err := e.connect()
	if err != nil {
		return nil, err
	}

	img, err := e.Inspect(ctx, ref)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrImageUnusable, "image not found"), "image", ref.String())
	}

	matcher, err := e.matcher("")
	if err != nil {
		return nil, err
	}

	err = c.Export(ctx, w,
		archive.WithImage(c.ImageService(), ref.String()),
		archive.WithPlatform(matcher),
	)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to export image"), "image", ref.String())
	}
	return img.Layers, nil
}

// Load imports an archive produced by Save and unpacks every image in it.
func (e *Engine) Load(ctx context.Context, r io.Reader) error {
	c, err := e.connect()
	if err != nil {
		return err
	}

	imported, err := c.Import(ctx, r)
	if err != nil {
		return zerr.Wrap(err, "failed to import archive")
	}
	if len(imported) == 0 {
		return zerr.New("archive contains no images")
	}

	matcher, err := e.matcher("")
	if err != nil {
		return err
	}
	for _, rec := range imported {
		if err := client.NewImageWithPlatform(c, rec, matcher).Unpack(ctx, e.snapshotter); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to unpack imported image"), "image", rec.Name)
		}
	}
	return nil
}

// Remove deletes the image record ref. Removing an absent image is not an error.
func (e *Engine) Remove(ctx context.Context, ref domain.ImageRef) error {
	c, err := e.connect()
	if err != nil {
		return err
	}
	if err := c.ImageService().Delete(ctx, ref.String()); err != nil && !errdefs.IsNotFound(err) {
		return zerr.With(zerr.Wrap(err, "failed to remove image"), "image", ref.String())
	}
	return nil
}

func (e *Engine) platformFor(platform string) string {
	if platform != "" {
		return platform
	}
	return e.platform
}

func (e *Engine) matcher(platform string) (platforms.MatchComparer, error) {
	p, err := platforms.Parse(e.platformFor(platform))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "invalid platform"), "platform", e.platformFor(platform))
	}
	return platforms.Only(p), nil
}
