// Package app implements the application layer for crossbox.
package app

import (
	"context"
	"io"
	"os"
	"runtime"
	"slices"

	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/crossbox/internal/engine/orchestrator"
	"go.trai.ch/crossbox/internal/ui/report"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	settings     domain.Settings
	loader       ports.RegistryLoader
	orchestrator *orchestrator.Orchestrator
	cache        ports.CacheStore
	engine       ports.ImageEngine
	telemetry    ports.Telemetry
	logger       ports.Logger
	out          io.Writer
}

// BuildOptions holds the flags of one build invocation.
type BuildOptions struct {
	Force        bool
	FailFast     bool
	NoPersist    bool
	NoDownstream bool
	BestEffort   []string

	// Registry, Organization and Version override the loaded settings when set.
	Registry     string
	Organization string
	Version      string
}

// New creates a new App instance.
func New(
	settings domain.Settings,
	loader ports.RegistryLoader,
	orch *orchestrator.Orchestrator,
	cache ports.CacheStore,
	engine ports.ImageEngine,
	telemetry ports.Telemetry,
	logger ports.Logger,
) *App {
	return &App{
		settings:     settings,
		loader:       loader,
		orchestrator: orch,
		cache:        cache,
		engine:       engine,
		telemetry:    telemetry,
		logger:       logger,
		out:          os.Stdout,
	}
}

// WithOutput sets the writer the run report is rendered to.
func (a *App) WithOutput(w io.Writer) *App {
	a.out = w
	return a
}

// Build provisions one target, or the whole matrix when targets is empty, and
// prints the run report. The returned error is the aggregate of the run.
func (a *App) Build(ctx context.Context, targets []string, opts BuildOptions) error {
	if len(targets) > 1 {
		return zerr.With(zerr.Wrap(domain.ErrTooManyTargets, "build accepts a single target"), "count", len(targets))
	}

	settings := a.settings
	if opts.Registry != "" {
		settings.RegistryDir = opts.Registry
	}
	if opts.Organization != "" {
		settings.Organization = opts.Organization
	}
	if opts.Version != "" {
		settings.Version = opts.Version
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	reg, err := a.loader.Load(settings.RegistryDir)
	if err != nil {
		return zerr.Wrap(err, "failed to load target registry")
	}

	mode := domain.AllTargets()
	if len(targets) == 1 {
		id := domain.TargetID(targets[0])
		if !reg.Has(id) {
			return zerr.With(zerr.Wrap(domain.ErrUnknownTarget, "target is not declared"), "target", id.String())
		}
		mode = domain.SingleTarget(id)
	}

	if err := a.engine.Available(ctx); err != nil {
		return err
	}

	defer func() {
		if err := a.telemetry.Close(); err != nil {
			a.logger.Warn("failed to close telemetry: " + err.Error())
		}
	}()

	rep, runErr := a.orchestrator.Run(ctx, reg, mode, orchestrator.Options{
		Organization:   settings.Organization,
		Version:        settings.Version,
		Downstream:     settings.Downstream,
		Force:          opts.Force,
		FailFast:       opts.FailFast,
		SkipPersist:    opts.NoPersist,
		SkipDownstream: opts.NoDownstream,
		BestEffort:     targetIDs(slices.Concat(settings.BestEffort, opts.BestEffort)),
	})

	if rep != nil && rep.Len() > 0 {
		if err := report.Run(a.out, rep); err != nil {
			a.logger.Warn("failed to render run report: " + err.Error())
		}
	}

	return runErr
}

// List returns the status of every declared target, including the state of its cache entry.
func (a *App) List(ctx context.Context) ([]domain.TargetStatus, error) {
	reg, err := a.loader.Load(a.settings.RegistryDir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load target registry")
	}

	ids := reg.ListDeclaredTargets()
	statuses := make([]domain.TargetStatus, len(ids))
	bestEffort := targetIDs(a.settings.BestEffort)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			statuses[i] = a.status(reg, id, bestEffort)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return statuses, nil
}

func (a *App) status(reg ports.TargetRegistry, id domain.TargetID, bestEffort []domain.TargetID) domain.TargetStatus {
	status := domain.TargetStatus{Target: id, Cache: domain.CacheNone}

	desc, err := reg.Describe(id)
	if err != nil {
		status.Err = err
		return status
	}
	status.Kind = desc.Kind
	status.Digest = desc.Digest
	status.Criticality = desc.Criticality
	if slices.Contains(bestEffort, id) {
		status.Criticality = domain.CriticalityBestEffort
	}

	entry, err := a.cache.Lookup(id)
	if err != nil {
		status.Err = err
		return status
	}
	ref := domain.NewImageRef(a.settings.Organization, id, a.settings.Version)
	status.Cache = entry.State(ref, desc, a.engine.Name())
	return status
}

// CacheEntries returns the metadata of every cached archive.
func (a *App) CacheEntries() ([]domain.CacheEntry, error) {
	return a.cache.List()
}

// CleanCache evicts the cache entries of targets, or every entry when targets is empty.
// It returns the targets that were evicted.
func (a *App) CleanCache(targets []string) ([]domain.TargetID, error) {
	ids := targetIDs(targets)
	if len(ids) == 0 {
		entries, err := a.cache.List()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			ids = append(ids, e.Target)
		}
	}

	evicted := make([]domain.TargetID, 0, len(ids))
	for _, id := range ids {
		if err := id.Validate(); err != nil {
			return evicted, err
		}
		if err := a.cache.Evict(id); err != nil {
			return evicted, zerr.With(zerr.Wrap(err, "failed to evict cache entry"), "target", id.String())
		}
		a.logger.Info("[" + id.String() + "] cache: evicted")
		evicted = append(evicted, id)
	}
	return evicted, nil
}

func targetIDs(names []string) []domain.TargetID {
	ids := make([]domain.TargetID, 0, len(names))
	for _, n := range names {
		ids = append(ids, domain.TargetID(n))
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
