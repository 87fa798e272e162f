package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/crossbox/internal/app"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/crossbox/internal/core/ports/mocks"
	"go.trai.ch/crossbox/internal/engine/orchestrator"
	"go.uber.org/mock/gomock"
)

const (
	targetA domain.TargetID = "aarch64-unknown-linux-gnu"
	targetB domain.TargetID = "armv7-unknown-linux-gnueabihf"
	targetC domain.TargetID = "riscv64gc-unknown-linux-gnu"
)

type fixture struct {
	loader    *mocks.MockRegistryLoader
	cache     *mocks.MockCacheStore
	engine    *mocks.MockImageEngine
	telemetry *mocks.MockTelemetry
	logger    *mocks.MockLogger
	app       *app.App
	out       *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		loader:    mocks.NewMockRegistryLoader(ctrl),
		cache:     mocks.NewMockCacheStore(ctrl),
		engine:    mocks.NewMockImageEngine(ctrl),
		telemetry: mocks.NewMockTelemetry(ctrl),
		logger:    mocks.NewMockLogger(ctrl),
		out:       new(bytes.Buffer),
	}
	downstream := mocks.NewMockDownstreamRunner(ctrl)

	vertex := mocks.NewMockVertex(ctrl)
	vertex.EXPECT().Stdout().Return(io.Discard).AnyTimes()
	vertex.EXPECT().Stderr().Return(io.Discard).AnyTimes()
	vertex.EXPECT().Complete(gomock.Any()).AnyTimes()
	vertex.EXPECT().Cached().AnyTimes()
	f.telemetry.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string) (context.Context, ports.Vertex) {
			return ctx, vertex
		}).AnyTimes()

	f.engine.EXPECT().Name().Return("docker").AnyTimes()
	f.logger.EXPECT().Info(gomock.Any()).AnyTimes()
	f.logger.EXPECT().Warn(gomock.Any()).AnyTimes()
	f.logger.EXPECT().Error(gomock.Any()).AnyTimes()

	orch := orchestrator.New(f.engine, f.cache, downstream, f.telemetry, f.logger)
	f.app = app.New(domain.DefaultSettings(), f.loader, orch, f.cache, f.engine, f.telemetry, f.logger).
		WithOutput(f.out)
	return f
}

func registry(ids ...domain.TargetID) *domain.Registry {
	reg := domain.NewRegistry("docker")
	for _, id := range ids {
		reg.Add(&domain.BuildDescription{
			Target:      id,
			Kind:        domain.RecipeStructured,
			Criticality: domain.CriticalityRequired,
			Digest:      "digest-" + id.String(),
			Recipe:      &domain.Recipe{Base: "ubuntu:22.04"},
		})
	}
	return reg
}

func warmImage(id domain.TargetID) *domain.Image {
	ref := domain.NewImageRef("crossbox", id, "v0.1.0")
	return &domain.Image{
		Ref:    ref,
		ID:     "sha256:" + id.String(),
		Labels: map[string]string{domain.LabelRecipeDigest: "digest-" + id.String()},
	}
}

func TestApp_Build_WarmTarget(t *testing.T) {
	f := newFixture(t)

	f.loader.EXPECT().Load("docker").Return(registry(targetA, targetB), nil)
	f.engine.EXPECT().Available(gomock.Any()).Return(nil)
	f.engine.EXPECT().Inspect(gomock.Any(), domain.NewImageRef("crossbox", targetA, "v0.1.0")).Return(warmImage(targetA), nil)
	f.engine.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(nil)
	f.telemetry.EXPECT().Close().Return(nil)

	err := f.app.Build(context.Background(), []string{targetA.String()}, app.BuildOptions{})
	require.NoError(t, err)

	out := f.out.String()
	assert.Contains(t, out, targetA.String())
	assert.NotContains(t, out, targetB.String())
	assert.Contains(t, out, "1 targets: 1 cached, 0 built, 0 failed")
}

func TestApp_Build_Overrides(t *testing.T) {
	f := newFixture(t)

	f.loader.EXPECT().Load("custom").Return(registry(targetA), nil)
	f.engine.EXPECT().Available(gomock.Any()).Return(nil)
	f.engine.EXPECT().Inspect(gomock.Any(), domain.NewImageRef("acme", targetA, "v2.0.0")).Return(nil, nil)
	f.cache.EXPECT().Lookup(targetA).Return(nil, nil)
	f.engine.EXPECT().ResolveBase(gomock.Any(), "ubuntu:22.04", "").Return(errors.New("pull denied"))
	f.telemetry.EXPECT().Close().Return(nil)

	err := f.app.Build(context.Background(), nil, app.BuildOptions{
		Registry:     "custom",
		Organization: "acme",
		Version:      "v2.0.0",
		BestEffort:   []string{targetA.String()},
	})
	require.NoError(t, err, "best-effort failures do not fail the run")
	assert.Contains(t, f.out.String(), "(1 best-effort)")
}

func TestApp_Build_RequiredFailure(t *testing.T) {
	f := newFixture(t)

	f.loader.EXPECT().Load("docker").Return(registry(targetA), nil)
	f.engine.EXPECT().Available(gomock.Any()).Return(nil)
	f.engine.EXPECT().Inspect(gomock.Any(), gomock.Any()).Return(nil, nil)
	f.cache.EXPECT().Lookup(targetA).Return(nil, nil)
	f.engine.EXPECT().ResolveBase(gomock.Any(), "ubuntu:22.04", "").Return(errors.New("pull denied"))
	f.telemetry.EXPECT().Close().Return(nil)

	err := f.app.Build(context.Background(), nil, app.BuildOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRunFailed)
	assert.ErrorIs(t, err, domain.ErrBuildDescriptionUnresolvable)
	assert.Contains(t, f.out.String(), "failed")
}

func TestApp_Build_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		targets []string
		opts    app.BuildOptions
		wantErr error
	}{
		{
			name:    "too many targets",
			targets: []string{targetA.String(), targetB.String()},
			wantErr: domain.ErrTooManyTargets,
		},
		{
			name:    "invalid version override",
			opts:    app.BuildOptions{Version: "latest"},
			wantErr: domain.ErrInvalidVersion,
		},
		{
			name:    "invalid organization override",
			opts:    app.BuildOptions{Organization: "Acme Corp"},
			wantErr: domain.ErrInvalidOrganization,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.app.Build(context.Background(), tt.targets, tt.opts)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.out.String())
		})
	}
}

func TestApp_Build_EngineUnavailable(t *testing.T) {
	f := newFixture(t)

	f.loader.EXPECT().Load("docker").Return(registry(targetA), nil)
	f.engine.EXPECT().Available(gomock.Any()).Return(domain.ErrEngineNotAvailable)

	err := f.app.Build(context.Background(), nil, app.BuildOptions{})
	require.ErrorIs(t, err, domain.ErrEngineNotAvailable)
	assert.Empty(t, f.out.String())
}

func TestApp_Build_UnknownTarget(t *testing.T) {
	tests := []struct {
		name      string
		available error
	}{
		{name: "engine reachable"},
		{name: "engine unreachable", available: domain.ErrEngineNotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.loader.EXPECT().Load("docker").Return(registry(targetA), nil)
			f.engine.EXPECT().Available(gomock.Any()).Return(tt.available).AnyTimes()

			err := f.app.Build(context.Background(), []string{"sparc-unknown-linux-gnu"}, app.BuildOptions{})
			require.ErrorIs(t, err, domain.ErrUnknownTarget)
			require.NotErrorIs(t, err, domain.ErrEngineNotAvailable)
			assert.Empty(t, f.out.String())
		})
	}
}

func TestApp_List(t *testing.T) {
	f := newFixture(t)

	reg := registry(targetA, targetB, targetC)
	reg.AddBroken("broken", domain.ErrRecipeInvalid)
	f.loader.EXPECT().Load("docker").Return(reg, nil)

	fresh := &domain.CacheEntry{
		Target:       targetA,
		Image:        "crossbox/" + targetA.String() + ":v0.1.0",
		Version:      "v0.1.0",
		RecipeDigest: "digest-" + targetA.String(),
		Engine:       "docker",
	}
	stale := &domain.CacheEntry{
		Target:       targetB,
		Image:        "crossbox/" + targetB.String() + ":v0.1.0",
		Version:      "v0.1.0",
		RecipeDigest: "outdated",
		Engine:       "docker",
	}
	f.cache.EXPECT().Lookup(targetA).Return(fresh, nil)
	f.cache.EXPECT().Lookup(targetB).Return(stale, nil)
	f.cache.EXPECT().Lookup(targetC).Return(nil, nil)

	statuses, err := f.app.List(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 4)

	byTarget := make(map[domain.TargetID]domain.TargetStatus)
	for _, s := range statuses {
		byTarget[s.Target] = s
	}
	assert.Equal(t, domain.CacheFresh, byTarget[targetA].Cache)
	assert.Equal(t, domain.CacheStale, byTarget[targetB].Cache)
	assert.Equal(t, domain.CacheNone, byTarget[targetC].Cache)
	assert.Equal(t, "digest-"+targetC.String(), byTarget[targetC].Digest)
	require.ErrorIs(t, byTarget["broken"].Err, domain.ErrRecipeInvalid)

	assert.Equal(t, domain.TargetID("aarch64-unknown-linux-gnu"), statuses[0].Target, "order follows the registry")
}

func TestApp_CleanCache(t *testing.T) {
	t.Run("all entries", func(t *testing.T) {
		f := newFixture(t)
		f.cache.EXPECT().List().Return([]domain.CacheEntry{{Target: targetA}, {Target: targetB}}, nil)
		f.cache.EXPECT().Evict(targetA).Return(nil)
		f.cache.EXPECT().Evict(targetB).Return(nil)

		evicted, err := f.app.CleanCache(nil)
		require.NoError(t, err)
		assert.Equal(t, []domain.TargetID{targetA, targetB}, evicted)
	})

	t.Run("named targets", func(t *testing.T) {
		f := newFixture(t)
		f.cache.EXPECT().Evict(targetC).Return(nil)

		evicted, err := f.app.CleanCache([]string{targetC.String(), targetC.String()})
		require.NoError(t, err)
		assert.Equal(t, []domain.TargetID{targetC}, evicted)
	})

	t.Run("invalid target", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.app.CleanCache([]string{"../etc"})
		require.ErrorIs(t, err, domain.ErrInvalidTargetID)
	})

	t.Run("evict failure", func(t *testing.T) {
		f := newFixture(t)
		f.cache.EXPECT().Evict(targetA).Return(errors.New("read-only file system"))

		evicted, err := f.app.CleanCache([]string{targetA.String()})
		require.Error(t, err)
		assert.Empty(t, evicted)
	})
}

func TestApp_CacheEntries(t *testing.T) {
	f := newFixture(t)
	want := []domain.CacheEntry{{Target: targetA}}
	f.cache.EXPECT().List().Return(want, nil)

	got, err := f.app.CacheEntries()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
