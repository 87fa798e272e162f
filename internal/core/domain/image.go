package domain

import (
	"strings"

	"go.trai.ch/zerr"
	"golang.org/x/mod/semver"
)

// Labels attached to every image crossbox builds.
const (
	LabelTarget       = "org.crossbox.target"
	LabelVersion      = "org.crossbox.version"
	LabelRecipeDigest = "org.crossbox.recipe-digest"
)

// StagingOrganization namespaces the temporary tags engines build into before committing.
const StagingOrganization = "crossbox-staging"

// ImageRef identifies the canonical image of a target: <organization>/<target>:<version>.
type ImageRef struct {
	Organization string
	Target       TargetID
	Version      string
}

// NewImageRef builds the canonical reference for a target.
func NewImageRef(org string, target TargetID, version string) ImageRef {
	return ImageRef{Organization: org, Target: target, Version: version}
}

// Name returns the repository part of the reference.
func (r ImageRef) Name() string {
	return r.Organization + "/" + r.Target.String()
}

// String renders the full tag.
func (r ImageRef) String() string {
	return r.Name() + ":" + r.Version
}

// Staging returns the temporary reference a build of this image is written to before it is tagged.
func (r ImageRef) Staging(runID string) ImageRef {
	return ImageRef{Organization: StagingOrganization, Target: r.Target, Version: runID}
}

// Image is a tagged, layered build artifact for one target.
type Image struct {
	Ref    ImageRef
	ID     string
	Labels map[string]string
	Layers []string
}

// RecipeDigest returns the build description digest the image was built from, if labelled.
func (i *Image) RecipeDigest() string {
	if i == nil {
		return ""
	}
	return i.Labels[LabelRecipeDigest]
}

// ImageLabels returns the labels a build of desc under ref must carry.
func ImageLabels(ref ImageRef, desc *BuildDescription) map[string]string {
	return map[string]string{
		LabelTarget:       ref.Target.String(),
		LabelVersion:      ref.Version,
		LabelRecipeDigest: desc.Digest,
	}
}

// ValidateVersion checks that v is a semantic version, with or without a leading "v".
func ValidateVersion(v string) error {
	canonical := v
	if !strings.HasPrefix(canonical, "v") {
		canonical = "v" + canonical
	}
	if !semver.IsValid(canonical) {
		return zerr.With(zerr.Wrap(ErrInvalidVersion, "version must be semantic"), "version", v)
	}
	return nil
}

// ValidateOrganization checks that org can prefix an image name.
func ValidateOrganization(org string) error {
	if org == "" || strings.ContainsAny(org, ": /") || strings.ToLower(org) != org {
		return zerr.With(zerr.Wrap(ErrInvalidOrganization, "organization must be a lowercase path component"), "organization", org)
	}
	return nil
}
