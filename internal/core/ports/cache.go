package ports

import (
	"context"
	"io"

	"go.trai.ch/crossbox/internal/core/domain"
)

// CacheStore persists serialized images keyed by target across CI runs.
//
//go:generate go run go.uber.org/mock/mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type CacheStore interface {
	// Lookup returns the metadata of the cached archive for target.
	// Returns nil, nil if not found.
	Lookup(target domain.TargetID) (*domain.CacheEntry, error)

	// Restore streams the cached archive of target into load.
	Restore(ctx context.Context, target domain.TargetID, load func(io.Reader) error) error

	// Persist writes the archive produced by save and records entry as its metadata.
	// The previous archive of the target stays in place until the new one is complete.
	Persist(ctx context.Context, entry domain.CacheEntry, save func(io.Writer) ([]string, error)) (*domain.CacheEntry, error)

	// Evict removes the archive and metadata of target. Evicting a missing entry is not an error.
	Evict(target domain.TargetID) error

	// List returns every cache entry in lexicographic target order.
	List() ([]domain.CacheEntry, error)
}
