package orchestrator_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/crossbox/internal/core/ports/mocks"
	"go.trai.ch/crossbox/internal/engine/orchestrator"
	"go.uber.org/mock/gomock"
)

const (
	targetA domain.TargetID = "aarch64-unknown-linux-gnu"
	targetB domain.TargetID = "armv7-unknown-linux-gnueabihf"
	targetC domain.TargetID = "x86_64-unknown-linux-musl"
)

// world is an in-memory image store and cache behind the engine and cache mocks.
type world struct {
	mu sync.Mutex

	images    map[domain.TargetID]*domain.Image
	entries   map[domain.TargetID]*domain.CacheEntry
	failBuild map[domain.TargetID]bool

	builds     []domain.TargetID
	persisted  []domain.TargetID
	downstream []string

	persistErr    error
	downstreamErr error
}

type harness struct {
	world *world
	reg   *domain.Registry
	orch  *orchestrator.Orchestrator
}

func newRegistry(ids ...domain.TargetID) *domain.Registry {
	reg := domain.NewRegistry("docker")
	for _, id := range ids {
		reg.Add(&domain.BuildDescription{
			Target: id,
			Kind:   domain.RecipeStructured,
			Digest: "digest-" + id.String(),
			Recipe: &domain.Recipe{Base: "ubuntu:22.04"},
		})
	}
	return reg
}

func newHarness(t *testing.T, reg *domain.Registry) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	w := &world{
		images:    make(map[domain.TargetID]*domain.Image),
		entries:   make(map[domain.TargetID]*domain.CacheEntry),
		failBuild: make(map[domain.TargetID]bool),
	}

	engine := mocks.NewMockImageEngine(ctrl)
	engine.EXPECT().Name().Return("docker").AnyTimes()
	engine.EXPECT().Inspect(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ref domain.ImageRef) (*domain.Image, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.images[ref.Target], nil
	}).AnyTimes()
	engine.EXPECT().Verify(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ref domain.ImageRef) error {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.images[ref.Target] == nil {
			return domain.ErrImageUnusable
		}
		return nil
	}).AnyTimes()
	engine.EXPECT().ResolveBase(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	engine.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req ports.BuildRequest) error {
		w.mu.Lock()
		defer w.mu.Unlock()
		id := req.Description.Target
		w.builds = append(w.builds, id)
		if w.failBuild[id] {
			return errors.New("step 2 exited with status 1")
		}
		w.images[id] = &domain.Image{Ref: req.Ref, ID: "sha256:" + id.String(), Labels: req.Labels}
		return nil
	}).AnyTimes()
	engine.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return([]string{"sha256:layer"}, nil).AnyTimes()

	cache := mocks.NewMockCacheStore(ctrl)
	cache.EXPECT().Lookup(gomock.Any()).DoAndReturn(func(id domain.TargetID) (*domain.CacheEntry, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.entries[id], nil
	}).AnyTimes()
	cache.EXPECT().Persist(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry domain.CacheEntry, save func(io.Writer) ([]string, error)) (*domain.CacheEntry, error) {
			layers, err := save(io.Discard)
			if err != nil {
				return nil, err
			}
			w.mu.Lock()
			defer w.mu.Unlock()
			if w.persistErr != nil {
				return nil, w.persistErr
			}
			entry.Layers = layers
			w.entries[entry.Target] = &entry
			w.persisted = append(w.persisted, entry.Target)
			return &entry, nil
		}).AnyTimes()
	cache.EXPECT().Evict(gomock.Any()).Return(nil).AnyTimes()

	downstream := mocks.NewMockDownstreamRunner(ctrl)
	downstream.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req ports.DownstreamRequest) error {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.downstream = append(w.downstream, req.Target+"@"+req.Image)
		return w.downstreamErr
	}).AnyTimes()

	h := &harness{
		world: w,
		reg:   reg,
		orch:  orchestrator.New(engine, cache, downstream, newTelemetry(ctrl), quietLogger(ctrl)),
	}
	orchestrator.SetRunID(h.orch, "run-1")
	return h
}

func newTelemetry(ctrl *gomock.Controller) *mocks.MockTelemetry {
	vertex := mocks.NewMockVertex(ctrl)
	vertex.EXPECT().Stdout().Return(io.Discard).AnyTimes()
	vertex.EXPECT().Stderr().Return(io.Discard).AnyTimes()
	vertex.EXPECT().Complete(gomock.Any()).AnyTimes()
	vertex.EXPECT().Cached().AnyTimes()

	telemetry := mocks.NewMockTelemetry(ctrl)
	telemetry.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ string) (context.Context, ports.Vertex) {
		return ctx, vertex
	}).AnyTimes()
	return telemetry
}

func quietLogger(ctrl *gomock.Controller) *mocks.MockLogger {
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Info(gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any()).AnyTimes()
	logger.EXPECT().Error(gomock.Any()).AnyTimes()
	return logger
}

func (h *harness) warm(id domain.TargetID) {
	desc, _ := h.reg.Describe(id)
	ref := domain.NewImageRef("crossbox", id, "v0.1.0")
	h.world.images[id] = &domain.Image{Ref: ref, Labels: domain.ImageLabels(ref, desc)}
}

func opts() orchestrator.Options {
	return orchestrator.Options{Organization: "crossbox", Version: "v0.1.0"}
}

func TestRun_WarmCacheDoesNotBuild(t *testing.T) {
	h := newHarness(t, newRegistry(targetA))
	h.warm(targetA)

	report, err := h.orch.Run(context.Background(), h.reg, domain.SingleTarget(targetA), opts())
	require.NoError(t, err)

	entry, ok := report.Entry(targetA)
	require.True(t, ok)
	assert.Equal(t, domain.StateReady, entry.State)
	assert.Equal(t, domain.OutcomeCached, entry.Outcome)
	assert.Equal(t, domain.SourceLocal, entry.Source)
	assert.Empty(t, h.world.builds)
	assert.Empty(t, h.world.persisted)
	assert.Equal(t, "run-1", report.RunID)
}

func TestRun_RestoredFromCacheDoesNotBuild(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := newRegistry(targetA)
	desc, _ := reg.Describe(targetA)
	ref := domain.NewImageRef("crossbox", targetA, "v0.1.0")

	engine := mocks.NewMockImageEngine(ctrl)
	cache := mocks.NewMockCacheStore(ctrl)
	engine.EXPECT().Name().Return("docker").AnyTimes()

	gomock.InOrder(
		engine.EXPECT().Inspect(gomock.Any(), ref).Return(nil, nil),
		cache.EXPECT().Lookup(targetA).Return(&domain.CacheEntry{
			Target: targetA, Image: ref.String(), Version: ref.Version, RecipeDigest: desc.Digest, Engine: "docker",
		}, nil),
		cache.EXPECT().Restore(gomock.Any(), targetA, gomock.Any()).Return(nil),
		engine.EXPECT().Verify(gomock.Any(), ref).Return(nil),
		engine.EXPECT().Inspect(gomock.Any(), ref).Return(&domain.Image{
			Ref: ref, Labels: map[string]string{domain.LabelRecipeDigest: desc.Digest},
		}, nil),
	)

	orch := orchestrator.New(engine, cache, mocks.NewMockDownstreamRunner(ctrl), newTelemetry(ctrl), quietLogger(ctrl))
	report, err := orch.Run(context.Background(), reg, domain.AllTargets(), opts())
	require.NoError(t, err)

	entry, _ := report.Entry(targetA)
	assert.Equal(t, domain.OutcomeCached, entry.Outcome)
	assert.Equal(t, domain.SourceCache, entry.Source)
}

func TestRun_MissBuildsExactlyOnce(t *testing.T) {
	h := newHarness(t, newRegistry(targetA))

	report, err := h.orch.Run(context.Background(), h.reg, domain.SingleTarget(targetA), opts())
	require.NoError(t, err)

	entry, _ := report.Entry(targetA)
	assert.Equal(t, domain.StateReady, entry.State)
	assert.Equal(t, domain.OutcomeBuilt, entry.Outcome)
	assert.Equal(t, "no cache entry", entry.Reason)
	assert.Equal(t, []domain.TargetID{targetA}, h.world.builds)
	assert.Equal(t, []domain.TargetID{targetA}, h.world.persisted)
	assert.Equal(t, []string{"sha256:layer"}, h.world.entries[targetA].Layers)
}

func TestRun_UnknownTargetTouchesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	// Strict mocks: any call fails the test.
	orch := orchestrator.New(
		mocks.NewMockImageEngine(ctrl),
		mocks.NewMockCacheStore(ctrl),
		mocks.NewMockDownstreamRunner(ctrl),
		mocks.NewMockTelemetry(ctrl),
		quietLogger(ctrl),
	)

	report, err := orch.Run(context.Background(), newRegistry(targetA), domain.SingleTarget("sparc64-unknown-netbsd"), opts())
	require.ErrorIs(t, err, domain.ErrUnknownTarget)
	assert.Equal(t, 0, report.Len())
}

func TestRun_NoTargetsDeclared(t *testing.T) {
	ctrl := gomock.NewController(t)
	orch := orchestrator.New(
		mocks.NewMockImageEngine(ctrl),
		mocks.NewMockCacheStore(ctrl),
		mocks.NewMockDownstreamRunner(ctrl),
		mocks.NewMockTelemetry(ctrl),
		quietLogger(ctrl),
	)

	_, err := orch.Run(context.Background(), newRegistry(), domain.AllTargets(), opts())
	require.ErrorIs(t, err, domain.ErrNoTargetsDeclared)
}

func TestRun_FullMatrixIsolatesFailures(t *testing.T) {
	h := newHarness(t, newRegistry(targetC, targetA, targetB))
	h.world.failBuild[targetB] = true

	report, err := h.orch.Run(context.Background(), h.reg, domain.AllTargets(), opts())
	require.ErrorIs(t, err, domain.ErrRunFailed)
	require.ErrorIs(t, err, domain.ErrBuildExecutionFailed)

	assert.Equal(t, []domain.TargetID{targetA, targetB, targetC}, h.world.builds, "targets are processed in lexicographic order")

	for _, id := range []domain.TargetID{targetA, targetC} {
		entry, _ := report.Entry(id)
		assert.Equal(t, domain.StateReady, entry.State, id)
	}
	failed, _ := report.Entry(targetB)
	assert.Equal(t, domain.StateFailed, failed.State)
	assert.Equal(t, domain.StageBuild, failed.Stage)

	var te *domain.TargetError
	require.ErrorAs(t, failed.Err, &te)
	assert.Equal(t, targetB, te.Target)
	assert.Equal(t, []domain.TargetID{targetA, targetC}, h.world.persisted)
}

func TestRun_SingleTargetFailureIsImmediate(t *testing.T) {
	h := newHarness(t, newRegistry(targetA, targetB))
	h.world.failBuild[targetB] = true
	o := opts()
	o.Downstream = domain.DownstreamSettings{Command: "make test"}

	report, err := h.orch.Run(context.Background(), h.reg, domain.SingleTarget(targetB), o)
	require.ErrorIs(t, err, domain.ErrRunFailed)
	require.ErrorIs(t, err, domain.ErrBuildExecutionFailed)

	assert.Equal(t, 1, report.Len())
	assert.Empty(t, h.world.persisted)
	assert.Empty(t, h.world.downstream)
}

func TestRun_FailFastStopsTheMatrix(t *testing.T) {
	h := newHarness(t, newRegistry(targetA, targetB, targetC))
	h.world.failBuild[targetA] = true
	o := opts()
	o.FailFast = true

	report, err := h.orch.Run(context.Background(), h.reg, domain.AllTargets(), o)
	require.ErrorIs(t, err, domain.ErrRunFailed)
	assert.Equal(t, 1, report.Len())
	assert.Equal(t, []domain.TargetID{targetA}, h.world.builds)
}

func TestRun_BestEffortFailureDoesNotFailTheRun(t *testing.T) {
	h := newHarness(t, newRegistry(targetA, targetB))
	h.world.failBuild[targetB] = true
	o := opts()
	o.BestEffort = []domain.TargetID{targetB}

	report, err := h.orch.Run(context.Background(), h.reg, domain.AllTargets(), o)
	require.NoError(t, err)
	assert.False(t, report.Failed())

	entry, _ := report.Entry(targetB)
	assert.True(t, entry.Failed())
	assert.Equal(t, domain.CriticalityBestEffort, entry.Criticality)
}

func TestRun_BrokenRecipeIsIsolated(t *testing.T) {
	reg := newRegistry(targetA)
	reg.AddBroken(targetB, domain.ErrRecipeInvalid)
	h := newHarness(t, reg)

	report, err := h.orch.Run(context.Background(), h.reg, domain.AllTargets(), opts())
	require.ErrorIs(t, err, domain.ErrBuildDescriptionUnresolvable)

	entry, _ := report.Entry(targetB)
	assert.Equal(t, domain.StateFailed, entry.State)
	assert.Equal(t, domain.StageResolve, entry.Stage)
	ready, _ := report.Entry(targetA)
	assert.Equal(t, domain.StateReady, ready.State)
}

func TestRun_PersistFailureIsAWarning(t *testing.T) {
	h := newHarness(t, newRegistry(targetA))
	h.world.persistErr = errors.New("no space left on device")

	report, err := h.orch.Run(context.Background(), h.reg, domain.SingleTarget(targetA), opts())
	require.NoError(t, err)

	entry, _ := report.Entry(targetA)
	assert.Equal(t, domain.OutcomeBuilt, entry.Outcome)
	require.Len(t, entry.Warnings, 1)
	assert.Contains(t, entry.Warnings[0], "cache persist failed")
}

func TestRun_SkipPersist(t *testing.T) {
	h := newHarness(t, newRegistry(targetA))
	o := opts()
	o.SkipPersist = true

	_, err := h.orch.Run(context.Background(), h.reg, domain.SingleTarget(targetA), o)
	require.NoError(t, err)
	assert.Empty(t, h.world.persisted)
}

func TestRun_Downstream(t *testing.T) {
	t.Run("passes", func(t *testing.T) {
		h := newHarness(t, newRegistry(targetA))
		h.warm(targetA)
		o := opts()
		o.Downstream = domain.DownstreamSettings{Command: "cargo test"}

		report, err := h.orch.Run(context.Background(), h.reg, domain.AllTargets(), o)
		require.NoError(t, err)

		entry, _ := report.Entry(targetA)
		assert.Equal(t, domain.DownstreamPassed, entry.Downstream)
		assert.Equal(t, []string{"aarch64-unknown-linux-gnu@crossbox/aarch64-unknown-linux-gnu:v0.1.0"}, h.world.downstream)
	})

	t.Run("failure fails the entry but keeps the image ready", func(t *testing.T) {
		h := newHarness(t, newRegistry(targetA))
		h.warm(targetA)
		h.world.downstreamErr = errors.New("exit status 101")
		o := opts()
		o.Downstream = domain.DownstreamSettings{Command: "cargo test"}

		report, err := h.orch.Run(context.Background(), h.reg, domain.AllTargets(), o)
		require.ErrorIs(t, err, domain.ErrDownstreamFailed)

		entry, _ := report.Entry(targetA)
		assert.Equal(t, domain.StateReady, entry.State)
		assert.Equal(t, domain.OutcomeFailed, entry.Outcome)
		assert.Equal(t, domain.DownstreamFailed, entry.Downstream)
		assert.Equal(t, domain.StageDownstream, entry.Stage)
	})

	t.Run("skipped", func(t *testing.T) {
		h := newHarness(t, newRegistry(targetA))
		h.warm(targetA)
		o := opts()
		o.Downstream = domain.DownstreamSettings{Command: "cargo test"}
		o.SkipDownstream = true

		report, err := h.orch.Run(context.Background(), h.reg, domain.AllTargets(), o)
		require.NoError(t, err)
		entry, _ := report.Entry(targetA)
		assert.Equal(t, domain.DownstreamSkipped, entry.Downstream)
		assert.Empty(t, h.world.downstream)
	})
}

func TestRun_RebuildReplacesTheImage(t *testing.T) {
	h := newHarness(t, newRegistry(targetA))

	_, err := h.orch.Run(context.Background(), h.reg, domain.SingleTarget(targetA), opts())
	require.NoError(t, err)

	// The recipe changes: the registry now reports a new digest.
	h.reg.Add(&domain.BuildDescription{
		Target: targetA,
		Kind:   domain.RecipeStructured,
		Digest: "digest-2",
		Recipe: &domain.Recipe{Base: "ubuntu:24.04"},
	})

	report, err := h.orch.Run(context.Background(), h.reg, domain.SingleTarget(targetA), opts())
	require.NoError(t, err)

	entry, _ := report.Entry(targetA)
	assert.Equal(t, domain.OutcomeBuilt, entry.Outcome)
	assert.Equal(t, []domain.TargetID{targetA, targetA}, h.world.builds)
	assert.Len(t, h.world.images, 1)
	assert.Equal(t, "digest-2", h.world.images[targetA].RecipeDigest())
}

func TestRun_Idempotent(t *testing.T) {
	h := newHarness(t, newRegistry(targetA))
	h.warm(targetA)

	first, err := h.orch.Run(context.Background(), h.reg, domain.SingleTarget(targetA), opts())
	require.NoError(t, err)
	second, err := h.orch.Run(context.Background(), h.reg, domain.SingleTarget(targetA), opts())
	require.NoError(t, err)

	a, _ := first.Entry(targetA)
	b, _ := second.Entry(targetA)
	a.Duration, b.Duration = 0, 0
	assert.Equal(t, a, b)
	assert.Equal(t, 1, second.Len())
}

func TestRun_CanceledContext(t *testing.T) {
	h := newHarness(t, newRegistry(targetA, targetB))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.orch.Run(ctx, h.reg, domain.AllTargets(), opts())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Len())
	assert.Empty(t, h.world.builds)
}
