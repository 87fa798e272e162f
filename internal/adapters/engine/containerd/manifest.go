package containerd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/containerd/containerd/v2/core/content"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/platforms"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.trai.ch/zerr"
)

// blobStore reads and writes image metadata blobs for one platform.
type blobStore struct {
	store    content.Store
	platform string
}

// derive writes a new image root derived from root: the platform manifest
// and its config are rewritten by mutate. When root is an index, the result
// is a single-entry index, since only this platform's layers are local.
func (b *blobStore) derive(ctx context.Context, root ocispec.Descriptor, name string, mutate func(*ocispec.Manifest, *ocispec.Image)) (ocispec.Descriptor, error) {
	target, index, err := b.resolveManifest(ctx, root)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	var manifest ocispec.Manifest
	if err := b.readJSON(ctx, target, &manifest); err != nil {
		return ocispec.Descriptor{}, err
	}
	var config ocispec.Image
	if err := b.readJSON(ctx, manifest.Config, &config); err != nil {
		return ocispec.Descriptor{}, err
	}

	mutate(&manifest, &config)

	configDesc, err := b.writeJSON(ctx, manifest.Config.MediaType, config, name+"-config")
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	manifest.Config = configDesc

	manifestDesc, err := b.writeJSON(ctx, target.MediaType, manifest, name+"-manifest", content.WithLabels(manifestGCLabels(manifest)))
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	manifestDesc.Platform = target.Platform

	if index == nil {
		return manifestDesc, nil
	}
	index.Manifests = []ocispec.Descriptor{manifestDesc}
	return b.writeJSON(ctx, root.MediaType, index, name+"-index", content.WithLabels(indexGCLabels(*index)))
}

// resolveManifest returns the manifest for the platform and, when root is an index, the index itself.
// Index entries without a platform field are matched through their image config.
func (b *blobStore) resolveManifest(ctx context.Context, root ocispec.Descriptor) (ocispec.Descriptor, *ocispec.Index, error) {
	if !images.IsIndexType(root.MediaType) {
		return root, nil, nil
	}

	var idx ocispec.Index
	if err := b.readJSON(ctx, root, &idx); err != nil {
		return ocispec.Descriptor{}, nil, err
	}
	if len(idx.Manifests) == 0 {
		return ocispec.Descriptor{}, nil, zerr.With(zerr.New("image index is empty"), "digest", root.Digest.String())
	}

	p, err := platforms.Parse(b.platform)
	if err != nil {
		return ocispec.Descriptor{}, nil, err
	}
	matcher := platforms.OnlyStrict(p)

	for _, m := range idx.Manifests {
		if m.Platform != nil && matcher.Match(*m.Platform) {
			return m, &idx, nil
		}
	}
	for _, m := range idx.Manifests {
		if m.Platform != nil || !images.IsManifestType(m.MediaType) {
			continue
		}
		if cp, ok := b.configPlatform(ctx, m); ok && matcher.Match(cp) {
			return m, &idx, nil
		}
	}

	return ocispec.Descriptor{}, nil, zerr.With(zerr.New("no manifest for platform"), "platform", b.platform)
}

func (b *blobStore) configPlatform(ctx context.Context, desc ocispec.Descriptor) (ocispec.Platform, bool) {
	var manifest ocispec.Manifest
	if err := b.readJSON(ctx, desc, &manifest); err != nil {
		return ocispec.Platform{}, false
	}
	var config ocispec.Image
	if err := b.readJSON(ctx, manifest.Config, &config); err != nil {
		return ocispec.Platform{}, false
	}
	return ocispec.Platform{OS: config.OS, Architecture: config.Architecture, Variant: config.Variant}, true
}

func (b *blobStore) readJSON(ctx context.Context, desc ocispec.Descriptor, v any) error {
	data, err := content.ReadBlob(ctx, b.store, desc)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to read blob"), "digest", desc.Digest.String())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to decode blob"), "digest", desc.Digest.String())
	}
	return nil
}

func (b *blobStore) writeJSON(ctx context.Context, mediaType string, v any, ref string, opts ...content.Opt) (ocispec.Descriptor, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	desc := ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    digest.FromBytes(data),
		Size:      int64(len(data)),
	}
	if err := content.WriteBlob(ctx, b.store, ref, bytes.NewReader(data), desc, opts...); err != nil {
		return ocispec.Descriptor{}, zerr.With(zerr.Wrap(err, "failed to write blob"), "ref", ref)
	}
	return desc, nil
}

// manifestGCLabels lets the garbage collector reach a manifest's config and layers.
func manifestGCLabels(m ocispec.Manifest) map[string]string {
	labels := map[string]string{
		"containerd.io/gc.ref.content.config": m.Config.Digest.String(),
	}
	for i, layer := range m.Layers {
		labels[fmt.Sprintf("containerd.io/gc.ref.content.l.%d", i)] = layer.Digest.String()
	}
	return labels
}

func indexGCLabels(idx ocispec.Index) map[string]string {
	labels := make(map[string]string, len(idx.Manifests))
	for i, m := range idx.Manifests {
		labels[fmt.Sprintf("containerd.io/gc.ref.content.m.%d", i)] = m.Digest.String()
	}
	return labels
}
