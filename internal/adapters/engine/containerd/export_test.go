package containerd

import (
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
)

var (
	MergeEnv         = mergeEnv
	ManifestGCLabels = manifestGCLabels
	IndexGCLabels    = indexGCLabels
	ContainerID      = containerID
)

func ApplyBuild(m *ocispec.Manifest, cfg *ocispec.Image, layer ocispec.Descriptor, diffID digest.Digest, req ports.BuildRequest, recipe *domain.Recipe) {
	applyBuild(m, cfg, layer, diffID, req, recipe)
}
