// Package resolver finds a usable image for a target without building it.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/zerr"
)

// Miss reasons reported to the run report.
const (
	ReasonForced        = "forced"
	ReasonNoEntry       = "no cache entry"
	ReasonStale         = "stale cache entry"
	ReasonRestoreFailed = "cache restore failed"
	ReasonUnusable      = "restored image is unusable"
)

// Resolution is the outcome of looking for a usable image.
type Resolution struct {
	Hit    bool
	Source domain.ImageSource
	// Reason explains a miss.
	Reason   string
	Warnings []string
}

// Resolver checks the local image store, then the cache, for an image matching a build description.
// Apart from context cancellation, every failure it meets is downgraded to a miss.
type Resolver struct {
	engine ports.ImageEngine
	cache  ports.CacheStore
	logger ports.Logger
}

// New creates a Resolver.
func New(engine ports.ImageEngine, cache ports.CacheStore, logger ports.Logger) *Resolver {
	return &Resolver{engine: engine, cache: cache, logger: logger}
}

// Resolve reports whether ref can be used for desc as is. When force is set
// the result is always a miss and nothing is inspected.
func (r *Resolver) Resolve(ctx context.Context, desc *domain.BuildDescription, ref domain.ImageRef, force bool) (Resolution, error) {
	if force {
		return miss(ReasonForced), nil
	}
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}

	res := &Resolution{}

	if r.localImageUsable(ctx, desc, ref, res) {
		res.Hit = true
		res.Source = domain.SourceLocal
		return *res, nil
	}

	entry, err := r.cache.Lookup(desc.Target)
	if err != nil {
		r.warn(res, desc.Target, errors.Join(domain.ErrCacheRestoreFailed, err))
		return res.missed(ReasonRestoreFailed), nil
	}
	if entry == nil {
		return res.missed(ReasonNoEntry), nil
	}

	if reason := entry.StaleReason(ref, desc, r.engine.Name()); reason != "" {
		r.logger.Info(fmt.Sprintf("[%s] resolve: cache entry is stale: %s", desc.Target, reason))
		if err := r.cache.Evict(desc.Target); err != nil {
			r.warn(res, desc.Target, zerr.Wrap(err, "failed to evict stale cache entry"))
		}
		return res.missed(ReasonStale), nil
	}

	err = r.cache.Restore(ctx, desc.Target, func(rd io.Reader) error {
		return r.engine.Load(ctx, rd)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Resolution{}, ctxErr
		}
		r.warn(res, desc.Target, errors.Join(domain.ErrCacheRestoreFailed, err))
		return res.missed(ReasonRestoreFailed), nil
	}

	if err := r.engine.Verify(ctx, ref); err != nil {
		r.warn(res, desc.Target, errors.Join(domain.ErrCacheRestoreFailed, err))
		return res.missed(ReasonUnusable), nil
	}

	// The restored image must carry the current recipe digest.
	img, err := r.engine.Inspect(ctx, ref)
	if err != nil || img == nil {
		if err == nil {
			err = domain.ErrImageUnusable
		}
		r.warn(res, desc.Target, errors.Join(domain.ErrCacheRestoreFailed, zerr.Wrap(err, "failed to inspect restored image")))
		return res.missed(ReasonUnusable), nil
	}
	if got := img.RecipeDigest(); got != desc.Digest {
		r.warn(res, desc.Target, zerr.With(zerr.Wrap(domain.ErrCacheRestoreFailed, "restored image was built from another recipe"),
			"digest", got))
		if err := r.cache.Evict(desc.Target); err != nil {
			r.warn(res, desc.Target, zerr.Wrap(err, "failed to evict stale cache entry"))
		}
		return res.missed(ReasonStale), nil
	}

	r.logger.Info(fmt.Sprintf("[%s] resolve: restored %s from cache", desc.Target, ref))
	res.Hit = true
	res.Source = domain.SourceCache
	return *res, nil
}

// localImageUsable reports whether ref is already present, built from desc, and verifiable.
func (r *Resolver) localImageUsable(ctx context.Context, desc *domain.BuildDescription, ref domain.ImageRef, res *Resolution) bool {
	img, err := r.engine.Inspect(ctx, ref)
	if err != nil {
		r.warn(res, desc.Target, zerr.Wrap(err, "failed to inspect local image"))
		return false
	}
	if img == nil || img.RecipeDigest() != desc.Digest {
		return false
	}
	if err := r.engine.Verify(ctx, ref); err != nil {
		r.warn(res, desc.Target, err)
		return false
	}

	r.logger.Info(fmt.Sprintf("[%s] resolve: %s is present locally", desc.Target, ref))
	return true
}

func (r *Resolver) warn(res *Resolution, target domain.TargetID, err error) {
	msg := fmt.Sprintf("[%s] resolve: %v", target, err)
	res.Warnings = append(res.Warnings, err.Error())
	r.logger.Warn(msg)
}

func (res *Resolution) missed(reason string) Resolution {
	res.Hit = false
	res.Source = domain.SourceNone
	res.Reason = reason
	return *res
}

func miss(reason string) Resolution {
	return Resolution{Reason: reason}
}
