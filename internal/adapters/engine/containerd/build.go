package containerd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/containerd/v2/pkg/rootfs"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/zerr"
)

var execSeq uint64

func nextExecID() string {
	return fmt.Sprintf("step-%d", atomic.AddUint64(&execSeq, 1))
}

// Build runs the recipe steps in a container started from the base image,
// commits the container diff as one new layer, and tags the result.
// The image is recorded under req.Staging first; req.Ref only moves once the
// manifest is complete.
func (e *Engine) Build(ctx context.Context, req ports.BuildRequest) error {
	desc := req.Description
	if desc.Kind != domain.RecipeStructured || desc.Recipe == nil {
		return zerr.With(zerr.Wrap(domain.ErrUnsupportedRecipe, "containerd builds structured recipes only"), "kind", string(desc.Kind))
	}
	recipe := desc.Recipe

	steps, err := recipe.Script()
	if err != nil {
		return errors.Join(domain.ErrUnsupportedRecipe, err)
	}

	c, err := e.connect()
	if err != nil {
		return err
	}

	platform := e.platformFor(desc.Platform())
	matcher, err := e.matcher(platform)
	if err != nil {
		return err
	}

	// Blobs written below stay alive until the image records reference them.
	ctx, done, err := c.WithLease(ctx)
	if err != nil {
		return zerr.Wrap(err, "failed to acquire lease")
	}
	defer func() { _ = done(context.WithoutCancel(ctx)) }()

	baseName := NormalizeRef(recipe.Base)
	baseRec, err := c.ImageService().Get(ctx, baseName)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "base image is not available"), "image", baseName)
	}
	base := client.NewImageWithPlatform(c, baseRec, matcher)
	if err := base.Unpack(ctx, e.snapshotter); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to unpack base image"), "image", baseName)
	}

	bc := &buildContainer{
		client:      c,
		id:          containerID(req.Staging),
		platform:    platform,
		snapshotter: e.snapshotter,
		stdout:      req.Stdout,
		stderr:      req.Stderr,
	}
	bc.remove(ctx)
	defer bc.remove(context.WithoutCancel(ctx))

	ctr, err := bc.create(ctx, base, recipe)
	if err != nil {
		return zerr.Wrap(err, "failed to create build container")
	}
	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return zerr.Wrap(err, "failed to create build task")
	}
	if err := task.Start(ctx); err != nil {
		_, _ = task.Delete(ctx)
		return zerr.Wrap(err, "failed to start build task")
	}

	spec, err := ctr.Spec(ctx)
	if err != nil {
		return zerr.Wrap(err, "failed to read container spec")
	}

	shell := recipe.ShellOrDefault()
	for i, step := range steps {
		code, err := bc.exec(ctx, task, stepProcess(spec.Process, shell, step))
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to run build step"), "step", i+1)
		}
		if code != 0 {
			return zerr.With(zerr.With(zerr.New("build step exited non-zero"), "step", i+1), "exit_code", code)
		}
	}

	info, err := ctr.Info(ctx)
	if err != nil {
		return zerr.Wrap(err, "failed to read container info")
	}
	layer, err := rootfs.CreateDiff(ctx, info.SnapshotKey, c.SnapshotService(info.Snapshotter), c.DiffService())
	if err != nil {
		return zerr.Wrap(err, "failed to commit build layer")
	}
	diffID, err := images.GetDiffID(ctx, c.ContentStore(), layer)
	if err != nil {
		return zerr.Wrap(err, "failed to compute layer diff id")
	}

	blobs := &blobStore{store: c.ContentStore(), platform: platform}
	target, err := blobs.derive(ctx, baseRec.Target, req.Ref.String(), func(m *ocispec.Manifest, cfg *ocispec.Image) {
		applyBuild(m, cfg, layer, diffID, req, recipe)
	})
	if err != nil {
		return zerr.Wrap(err, "failed to write image manifest")
	}

	return e.commit(ctx, c, req, target, matcher)
}

// commit records the staging image, moves the canonical tag onto its target,
// then drops the staging record and unpacks the result.
func (e *Engine) commit(ctx context.Context, c *client.Client, req ports.BuildRequest, target ocispec.Descriptor, matcher platforms.MatchComparer) error {
	is := c.ImageService()

	staging := images.Image{Name: req.Staging.String(), Target: target, Labels: req.Labels}
	if err := putImage(ctx, is, staging); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to record staging image"), "image", staging.Name)
	}
	defer func() { _ = is.Delete(context.WithoutCancel(ctx), staging.Name) }()

	canonical := images.Image{Name: req.Ref.String(), Target: target, Labels: req.Labels}
	if err := putImage(ctx, is, canonical); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to tag image"), "image", canonical.Name)
	}

	if err := client.NewImageWithPlatform(c, canonical, matcher).Unpack(ctx, e.snapshotter); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to unpack built image"), "image", canonical.Name)
	}
	return nil
}

// putImage creates the record, or swaps the target of an existing one in a single update.
func putImage(ctx context.Context, is images.Store, img images.Image) error {
	if _, err := is.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return err
		}
		if _, err := is.Update(ctx, img, "target", "labels"); err != nil {
			return err
		}
	}
	return nil
}

// applyBuild appends the build layer to the manifest and records the recipe config.
func applyBuild(m *ocispec.Manifest, cfg *ocispec.Image, layer ocispec.Descriptor, diffID digest.Digest, req ports.BuildRequest, recipe *domain.Recipe) {
	now := time.Now().UTC()

	m.Layers = append(m.Layers, layer)
	cfg.RootFS.DiffIDs = append(cfg.RootFS.DiffIDs, diffID)
	cfg.Created = &now
	cfg.History = append(cfg.History, ocispec.History{
		Created:   &now,
		CreatedBy: "crossbox build " + req.Description.Target.String(),
	})

	if cfg.Config.Labels == nil {
		cfg.Config.Labels = make(map[string]string, len(req.Labels))
	}
	maps.Copy(cfg.Config.Labels, req.Labels)

	cfg.Config.Env = mergeEnv(cfg.Config.Env, envList(recipe.Env))
	if recipe.Workdir != "" {
		cfg.Config.WorkingDir = recipe.Workdir
	}
}

// containerID derives the build container id from the staging reference.
func containerID(staging domain.ImageRef) string {
	return "crossbox-" + staging.Target.String() + "-" + staging.Version
}

type buildContainer struct {
	client      *client.Client
	id          string
	platform    string
	snapshotter string
	stdout      io.Writer
	stderr      io.Writer
}

func (b *buildContainer) create(ctx context.Context, image client.Image, recipe *domain.Recipe) (client.Container, error) {
	specOpts := []oci.SpecOpts{
		oci.WithDefaultSpecForPlatform(b.platform),
		oci.WithImageConfig(image),
		oci.WithHostNamespace(specs.NetworkNamespace),
		oci.WithHostResolvconf,
		oci.WithProcessArgs("sleep", "infinity"),
	}
	if len(recipe.Env) > 0 {
		specOpts = append(specOpts, oci.WithEnv(envList(recipe.Env)))
	}
	if recipe.Workdir != "" {
		specOpts = append(specOpts, oci.WithProcessCwd(recipe.Workdir))
	}

	return b.client.NewContainer(ctx, b.id,
		client.WithImage(image),
		client.WithSnapshotter(b.snapshotter),
		client.WithNewSnapshot(b.id, image),
		client.WithRuntime(ociRuntime, nil),
		client.WithNewSpec(specOpts...),
	)
}

// exec runs one process in the build task and returns its exit code.
func (b *buildContainer) exec(ctx context.Context, task client.Task, pspec *specs.Process) (int, error) {
	stdout, stderr := b.stdout, b.stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	process, err := task.Exec(ctx, nextExecID(), pspec, cio.NewCreator(cio.WithStreams(nil, stdout, stderr)))
	if err != nil {
		return 0, err
	}
	defer func() { _, _ = process.Delete(context.WithoutCancel(ctx)) }()

	statusC, err := process.Wait(ctx)
	if err != nil {
		return 0, err
	}
	if err := process.Start(ctx); err != nil {
		return 0, err
	}

	select {
	case status := <-statusC:
		code, _, err := status.Result()
		if err != nil {
			return 0, err
		}
		return int(code), nil
	case <-ctx.Done():
		_ = process.Kill(context.WithoutCancel(ctx), syscall.SIGKILL)
		return 0, ctx.Err()
	}
}

// remove kills and deletes the build container with its snapshot, if it exists.
func (b *buildContainer) remove(ctx context.Context) {
	ctr, err := b.client.LoadContainer(ctx, b.id)
	if err != nil {
		return
	}
	if task, err := ctr.Task(ctx, nil); err == nil {
		_ = task.Kill(ctx, syscall.SIGKILL)
		_, _ = task.Delete(ctx, client.WithProcessKill)
	}
	_ = ctr.Delete(ctx, client.WithSnapshotCleanup)
}

// stepProcess derives the process spec of one step from the container's own process.
func stepProcess(base *specs.Process, shell []string, step domain.Step) *specs.Process {
	pspec := *base
	pspec.Terminal = false
	pspec.Args = append(slices.Clone(shell), step.Run)
	if len(step.Env) > 0 {
		pspec.Env = mergeEnv(base.Env, envList(step.Env))
	}
	if step.Workdir != "" {
		pspec.Cwd = step.Workdir
	}
	return &pspec
}

// mergeEnv overlays KEY=VALUE entries, keeping the first-seen key order.
func mergeEnv(base, overrides []string) []string {
	out := slices.Clone(base)
	index := make(map[string]int, len(out))
	for i, kv := range out {
		k, _, _ := strings.Cut(kv, "=")
		index[k] = i
	}
	for _, kv := range overrides {
		k, _, _ := strings.Cut(kv, "=")
		if i, ok := index[k]; ok {
			out[i] = kv
			continue
		}
		index[k] = len(out)
		out = append(out, kv)
	}
	return out
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}
