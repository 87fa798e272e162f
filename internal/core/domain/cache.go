package domain

import "time"

// CacheEntry describes a serialized, target-keyed snapshot of an image's layers.
type CacheEntry struct {
	Target       TargetID  `json:"target"`
	Image        string    `json:"image"`
	Version      string    `json:"version"`
	RecipeDigest string    `json:"recipeDigest"`
	Engine       string    `json:"engine"`
	Layers       []string  `json:"layers,omitempty"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
}

// CacheState summarizes how a cache entry relates to the current build description.
type CacheState string

const (
	// CacheFresh means the entry matches the current version, digest, and engine.
	CacheFresh CacheState = "fresh"
	// CacheStale means an entry exists but was produced from a different description, version, or engine.
	CacheStale CacheState = "stale"
	// CacheNone means no entry exists.
	CacheNone CacheState = "none"
)

// StaleReason explains why e cannot serve a build of desc under ref with the given engine.
// It returns an empty string when the entry is fresh.
func (e *CacheEntry) StaleReason(ref ImageRef, desc *BuildDescription, engine string) string {
	switch {
	case e.Version != ref.Version:
		return "version changed from " + e.Version + " to " + ref.Version
	case e.RecipeDigest != desc.Digest:
		return "build description changed"
	case e.Engine != "" && e.Engine != engine:
		return "archive produced by " + e.Engine
	case e.Image != ref.String():
		return "image reference changed"
	default:
		return ""
	}
}

// State classifies e against the current description. A nil entry is CacheNone.
func (e *CacheEntry) State(ref ImageRef, desc *BuildDescription, engine string) CacheState {
	if e == nil {
		return CacheNone
	}
	if e.StaleReason(ref, desc, engine) != "" {
		return CacheStale
	}
	return CacheFresh
}
