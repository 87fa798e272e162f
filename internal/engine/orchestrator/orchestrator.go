// Package orchestrator processes the target matrix: resolve, build on a miss,
// persist, run the downstream procedure, and record every outcome.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/crossbox/internal/engine/builder"
	"go.trai.ch/crossbox/internal/engine/resolver"
	"go.trai.ch/zerr"
)

// Options configures one orchestration pass.
type Options struct {
	Organization string
	Version      string
	Downstream   domain.DownstreamSettings

	// Force skips the resolver and rebuilds every processed target.
	Force bool
	// FailFast stops a full-matrix run after the first required target fails.
	FailFast bool
	// SkipPersist leaves the cache untouched after fresh builds.
	SkipPersist bool
	// SkipDownstream does not run the downstream procedure.
	SkipDownstream bool
	// BestEffort marks targets as allowed to fail, in addition to their recipe criticality.
	BestEffort []domain.TargetID
}

// Orchestrator runs the per-target pipeline sequentially over a registry.
type Orchestrator struct {
	engine     ports.ImageEngine
	cache      ports.CacheStore
	downstream ports.DownstreamRunner
	telemetry  ports.Telemetry
	logger     ports.Logger

	resolver *resolver.Resolver
	builder  *builder.Builder
	newRunID func() string
}

// New creates an Orchestrator.
func New(
	engine ports.ImageEngine,
	cache ports.CacheStore,
	downstream ports.DownstreamRunner,
	telemetry ports.Telemetry,
	logger ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		engine:     engine,
		cache:      cache,
		downstream: downstream,
		telemetry:  telemetry,
		logger:     logger,
		resolver:   resolver.New(engine, cache, logger),
		builder:    builder.New(engine, logger),
		newRunID:   uuid.NewString,
	}
}

// Run processes the targets selected by mode in lexicographic order and returns the run report.
//
// The returned error is ErrUnknownTarget or ErrNoTargetsDeclared before any
// target is processed, the context error on cancellation, and otherwise
// ErrRunFailed joined with every failure that counts. In single mode every
// failure counts.
func (o *Orchestrator) Run(ctx context.Context, reg ports.TargetRegistry, mode domain.RunMode, opts Options) (*domain.RunReport, error) {
	report := domain.NewRunReport(o.newRunID(), mode)

	targets, err := selectTargets(reg, mode)
	if err != nil {
		return report, err
	}

	o.logger.Info(fmt.Sprintf("run %s: processing %d target(s) in mode %s", report.RunID, len(targets), mode))

	for _, id := range targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		entry := o.process(ctx, reg, id, report.RunID, opts)
		report.Record(entry)

		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !entry.Failed() {
			continue
		}
		if mode.IsSingle() {
			return report, errors.Join(domain.ErrRunFailed, entry.Err)
		}
		if opts.FailFast && entry.Counts() {
			o.logger.Warn(fmt.Sprintf("run %s: stopping after %s failed", report.RunID, id))
			break
		}
	}

	return report, report.Err()
}

func selectTargets(reg ports.TargetRegistry, mode domain.RunMode) ([]domain.TargetID, error) {
	declared := reg.ListDeclaredTargets()

	if mode.IsSingle() {
		id := mode.Target()
		if !slices.Contains(declared, id) {
			return nil, zerr.With(zerr.Wrap(domain.ErrUnknownTarget, "target is not declared"), "target", id.String())
		}
		return []domain.TargetID{id}, nil
	}

	if len(declared) == 0 {
		return nil, domain.ErrNoTargetsDeclared
	}
	targets := slices.Clone(declared)
	slices.Sort(targets)
	return slices.Compact(targets), nil
}

// process runs one target to a terminal state and returns its report entry.
func (o *Orchestrator) process(ctx context.Context, reg ports.TargetRegistry, id domain.TargetID, runID string, opts Options) domain.Entry {
	start := time.Now()
	entry := domain.Entry{
		Target:      id,
		Criticality: criticality(id, nil, opts),
		State:       domain.StatePending,
		Downstream:  domain.DownstreamSkipped,
	}
	finish := func(e domain.Entry) domain.Entry {
		e.Duration = time.Since(start)
		return e
	}

	lc, err := newLifecycle(id)
	if err != nil {
		return finish(o.fail(entry, nil, domain.StageResolve, domain.ErrInvalidTransition, err))
	}

	desc, err := reg.Describe(id)
	if err != nil {
		kind := domain.ErrBuildDescriptionUnresolvable
		if errors.Is(err, domain.ErrUnknownTarget) {
			kind = domain.ErrUnknownTarget
		}
		return finish(o.fail(entry, lc, domain.StageResolve, kind, err))
	}

	entry.Criticality = criticality(id, desc, opts)
	ref := domain.NewImageRef(opts.Organization, id, opts.Version)
	entry.Image = ref

	entry = o.provision(ctx, lc, desc, ref, runID, opts, entry)
	if entry.State != domain.StateReady {
		return finish(entry)
	}

	if opts.Downstream.Enabled() && !opts.SkipDownstream {
		entry = o.runDownstream(ctx, desc, ref, opts.Downstream, entry)
	}
	return finish(entry)
}

// provision drives the lifecycle from pending to ready or failed.
func (o *Orchestrator) provision(ctx context.Context, lc *lifecycle, desc *domain.BuildDescription, ref domain.ImageRef, runID string, opts Options, entry domain.Entry) domain.Entry {
	id := desc.Target

	if err := lc.fire(eventResolve); err != nil {
		return o.fail(entry, lc, domain.StageResolve, domain.ErrInvalidTransition, err)
	}

	rctx, rv := o.telemetry.Record(ctx, id.String()+": resolve")
	res, err := o.resolver.Resolve(rctx, desc, ref, opts.Force)
	entry.Warnings = append(entry.Warnings, res.Warnings...)
	if err != nil {
		rv.Complete(err)
		return o.fail(entry, lc, domain.StageResolve, err, nil)
	}

	if res.Hit {
		rv.Cached()
		rv.Complete(nil)
		if err := lc.fire(eventHit, eventReady); err != nil {
			return o.fail(entry, lc, domain.StageResolve, domain.ErrInvalidTransition, err)
		}
		entry.State = lc.State()
		entry.Outcome = domain.OutcomeCached
		entry.Source = res.Source
		o.logger.Info(fmt.Sprintf("[%s] ready: %s (%s)", id, ref, res.Source))
		return entry
	}

	rv.Complete(nil)
	entry.Reason = res.Reason
	o.logger.Info(fmt.Sprintf("[%s] resolve: cache miss (%s)", id, res.Reason))
	if err := lc.fire(eventMiss, eventBuild); err != nil {
		return o.fail(entry, lc, domain.StageBuild, domain.ErrInvalidTransition, err)
	}

	bctx, bv := o.telemetry.Record(ctx, id.String()+": build")
	out := newStageOutput(o.logger, id, domain.StageBuild, bv)
	_, err = o.builder.Build(bctx, desc, ref, runID, builder.Output{Stdout: out.Stdout, Stderr: out.Stderr})
	out.Flush()
	bv.Complete(err)
	if err != nil {
		var te *domain.TargetError
		if errors.As(err, &te) {
			return o.fail(entry, lc, domain.StageBuild, te.Kind, te.Err)
		}
		return o.fail(entry, lc, domain.StageBuild, err, nil)
	}

	if err := lc.fire(eventReady); err != nil {
		return o.fail(entry, lc, domain.StageBuild, domain.ErrInvalidTransition, err)
	}
	entry.State = lc.State()
	entry.Outcome = domain.OutcomeBuilt
	entry.Source = domain.SourceBuild
	o.logger.Info(fmt.Sprintf("[%s] ready: %s (built)", id, ref))

	if !opts.SkipPersist {
		if warning := o.persist(ctx, desc, ref); warning != nil {
			entry.Warnings = append(entry.Warnings, warning.Error())
		}
	}
	return entry
}

// persist stores the freshly built image in the cache. Failures are warnings.
func (o *Orchestrator) persist(ctx context.Context, desc *domain.BuildDescription, ref domain.ImageRef) error {
	pctx, pv := o.telemetry.Record(ctx, desc.Target.String()+": persist")

	entry := domain.CacheEntry{
		Target:       desc.Target,
		Image:        ref.String(),
		Version:      ref.Version,
		RecipeDigest: desc.Digest,
		Engine:       o.engine.Name(),
	}
	stored, err := o.cache.Persist(pctx, entry, func(w io.Writer) ([]string, error) {
		return o.engine.Save(pctx, ref, w)
	})
	pv.Complete(err)
	if err != nil {
		warning := domain.NewTargetError(desc.Target, domain.StagePersist, domain.ErrCachePersistFailed, err)
		o.logger.Warn(warning.Error())
		return warning
	}

	o.logger.Info(fmt.Sprintf("[%s] persist: cached %d layer(s), %d bytes", desc.Target, len(stored.Layers), stored.Size))
	return nil
}

// runDownstream invokes the downstream procedure against a ready image.
// Its failure fails the entry but leaves the image state ready.
func (o *Orchestrator) runDownstream(ctx context.Context, desc *domain.BuildDescription, ref domain.ImageRef, settings domain.DownstreamSettings, entry domain.Entry) domain.Entry {
	id := desc.Target
	dctx, dv := o.telemetry.Record(ctx, id.String()+": downstream")
	out := newStageOutput(o.logger, id, domain.StageDownstream, dv)

	err := o.downstream.Run(dctx, ports.DownstreamRequest{
		Target:  id.String(),
		Image:   ref.String(),
		Engine:  o.engine.Name(),
		Command: settings.Command,
		Workdir: settings.Workdir,
		Stdout:  out.Stdout,
		Stderr:  out.Stderr,
	})
	out.Flush()
	dv.Complete(err)

	if err != nil {
		entry.Downstream = domain.DownstreamFailed
		entry.Outcome = domain.OutcomeFailed
		entry.Stage = domain.StageDownstream
		entry.Err = domain.NewTargetError(id, domain.StageDownstream, domain.ErrDownstreamFailed, err)
		o.logger.Error(entry.Err)
		return entry
	}

	entry.Downstream = domain.DownstreamPassed
	o.logger.Info(fmt.Sprintf("[%s] downstream: passed", id))
	return entry
}

// fail moves the lifecycle to failed and records the error on the entry.
func (o *Orchestrator) fail(entry domain.Entry, lc *lifecycle, stage domain.Stage, kind, err error) domain.Entry {
	entry.State = domain.StateFailed
	if lc != nil {
		_ = lc.fire(eventFail)
	}
	entry.Outcome = domain.OutcomeFailed
	entry.Stage = stage
	entry.Err = domain.NewTargetError(entry.Target, stage, kind, err)
	o.logger.Error(entry.Err)
	return entry
}

func criticality(id domain.TargetID, desc *domain.BuildDescription, opts Options) domain.Criticality {
	if slices.Contains(opts.BestEffort, id) {
		return domain.CriticalityBestEffort
	}
	if desc != nil && desc.Criticality == domain.CriticalityBestEffort {
		return domain.CriticalityBestEffort
	}
	return domain.CriticalityRequired
}
