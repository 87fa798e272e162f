// Package cli drives docker-compatible container engine binaries (docker, podman).
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/zerr"
)

// missingLayer is printed by `history -q` for layers that were not produced locally.
const missingLayer = "<missing>"

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures an Engine.
	Option func(*Engine)

	// Engine implements ports.ImageEngine by invoking a docker-compatible CLI.
	Engine struct {
		name        string
		binary      string
		platform    string
		execCommand ExecCommandFunc
	}

	// inspectResult is the subset of `image inspect` output crossbox reads.
	inspectResult struct {
		ID     string `json:"Id"`
		Config struct {
			Labels map[string]string `json:"Labels"`
		} `json:"Config"`
		RootFS struct {
			Layers []string `json:"Layers"`
		} `json:"RootFS"`
	}
)

var _ ports.ImageEngine = (*Engine)(nil)

// WithExecCommand sets the function used to create commands.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(e *Engine) {
		e.execCommand = fn
	}
}

// WithBinary overrides the executable, which defaults to the engine name.
func WithBinary(path string) Option {
	return func(e *Engine) {
		e.binary = path
	}
}

// WithPlatform sets the platform used for recipes that do not request one.
func WithPlatform(platform string) Option {
	return func(e *Engine) {
		e.platform = platform
	}
}

// New creates an engine for the named CLI, e.g. "docker" or "podman".
func New(name string, opts ...Option) *Engine {
	e := &Engine{
		name:        name,
		binary:      name,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return e.name
}

// Available checks that the CLI is installed and can reach its daemon or runtime.
func (e *Engine) Available(ctx context.Context) error {
	if _, err := e.output(ctx, nil, "version"); err != nil {
		return errors.Join(domain.ErrEngineNotAvailable, zerr.With(err, "engine", e.name))
	}
	return nil
}

// ResolveBase makes ref available locally, pulling it when it is not present.
func (e *Engine) ResolveBase(ctx context.Context, ref, platform string) error {
	if _, err := e.output(ctx, nil, "image", "inspect", ref); err == nil {
		return nil
	}

	args := []string{"pull"}
	if p := e.platformFor(platform); p != "" {
		args = append(args, "--platform", p)
	}
	args = append(args, ref)

	if _, err := e.output(ctx, nil, args...); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to pull base image"), "image", ref)
	}
	return nil
}

// Build builds the description under the staging tag and then moves req.Ref onto it.
func (e *Engine) Build(ctx context.Context, req ports.BuildRequest) error {
	desc := req.Description

	dockerfile, cleanup, err := e.dockerfileFor(desc)
	if err != nil {
		return err
	}
	defer cleanup()

	staging := req.Staging.String()
	args := []string{"build", "-f", dockerfile, "-t", staging}
	for _, k := range slices.Sorted(maps.Keys(req.Labels)) {
		args = append(args, "--label", k+"="+req.Labels[k])
	}
	if p := e.platformFor(desc.Platform()); p != "" {
		args = append(args, "--platform", p)
	}
	if desc.Recipe != nil {
		for _, k := range slices.Sorted(maps.Keys(desc.Recipe.Args)) {
			args = append(args, "--build-arg", k+"="+desc.Recipe.Args[k])
		}
	}
	args = append(args, desc.Dir)

	cmd := e.command(ctx, args...)
	cmd.Stdout = req.Stdout
	cmd.Stderr = req.Stderr
	if err := cmd.Run(); err != nil {
		return zerr.With(zerr.With(zerr.Wrap(err, "image build failed"), "engine", e.name), "exit_code", exitCode(err))
	}

	if _, err := e.output(ctx, nil, "tag", staging, req.Ref.String()); err != nil {
		_, _ = e.output(context.WithoutCancel(ctx), nil, "image", "rm", staging)
		return zerr.With(zerr.Wrap(err, "failed to tag image"), "image", req.Ref.String())
	}

	// The canonical tag is in place; a leftover staging tag only costs disk space.
	_, _ = e.output(ctx, nil, "image", "rm", staging)
	return nil
}

// dockerfileFor returns the path of the Dockerfile to build and a cleanup func.
func (e *Engine) dockerfileFor(desc *domain.BuildDescription) (string, func(), error) {
	if desc.Kind == domain.RecipeDockerfile {
		return filepath.Join(desc.Dir, desc.File), func() {}, nil
	}

	content, err := RenderDockerfile(desc)
	if err != nil {
		return "", nil, errors.Join(domain.ErrUnsupportedRecipe, err)
	}

	f, err := os.CreateTemp("", "crossbox-"+desc.Target.String()+"-*.Dockerfile")
	if err != nil {
		return "", nil, zerr.Wrap(err, "failed to create Dockerfile")
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	_, werr := f.WriteString(content)
	if err := errors.Join(werr, f.Close()); err != nil {
		cleanup()
		return "", nil, zerr.Wrap(err, "failed to write Dockerfile")
	}
	return f.Name(), cleanup, nil
}

// Inspect returns the local image tagged ref, or nil when it does not exist.
func (e *Engine) Inspect(ctx context.Context, ref domain.ImageRef) (*domain.Image, error) {
	out, err := e.output(ctx, nil, "image", "inspect", ref.String())
	if err != nil {
		// Both engines exit non-zero for unknown images.
		return nil, nil //nolint:nilerr // absence is not an error
	}

	var results []inspectResult
	if err := json.Unmarshal(out, &results); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse image inspect output"), "image", ref.String())
	}
	if len(results) == 0 {
		return nil, nil
	}

	r := results[0]
	return &domain.Image{
		Ref:    ref,
		ID:     r.ID,
		Labels: r.Config.Labels,
		Layers: r.RootFS.Layers,
	}, nil
}

// Verify checks that ref exists and that its history can be walked.
func (e *Engine) Verify(ctx context.Context, ref domain.ImageRef) error {
	img, err := e.Inspect(ctx, ref)
	if err != nil {
		return errors.Join(domain.ErrImageUnusable, err)
	}
	if img == nil {
		return zerr.With(zerr.Wrap(domain.ErrImageUnusable, "image not found"), "image", ref.String())
	}
	if _, err := e.history(ctx, ref); err != nil {
		return errors.Join(domain.ErrImageUnusable, err)
	}
	return nil
}

// Save writes a tar archive of ref and its locally built intermediate layers to w.
func (e *Engine) Save(ctx context.Context, ref domain.ImageRef, w io.Writer) ([]string, error) {
	ids, err := e.history(ctx, ref)
	if err != nil {
		return nil, err
	}

	args := append([]string{"save", ref.String()}, ids...)
	cmd := e.command(ctx, args...)
	var stderr bytes.Buffer
	cmd.Stdout = w
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, commandError(err, &stderr, "image save failed")
	}
	return ids, nil
}

// history returns the locally available image ids in ref's history.
func (e *Engine) history(ctx context.Context, ref domain.ImageRef) ([]string, error) {
	out, err := e.output(ctx, nil, "history", "-q", ref.String())
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read image history"), "image", ref.String())
	}

	var ids []string
	for _, line := range strings.Split(string(out), "\n") {
		id := strings.TrimSpace(line)
		if id == "" || id == missingLayer || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Load imports an archive produced by Save.
func (e *Engine) Load(ctx context.Context, r io.Reader) error {
	if _, err := e.output(ctx, r, "load"); err != nil {
		return zerr.Wrap(err, "image load failed")
	}
	return nil
}

// Remove deletes the local tag ref.
func (e *Engine) Remove(ctx context.Context, ref domain.ImageRef) error {
	if _, err := e.output(ctx, nil, "image", "rm", ref.String()); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to remove image"), "image", ref.String())
	}
	return nil
}

func (e *Engine) platformFor(platform string) string {
	if platform != "" {
		return platform
	}
	return e.platform
}

func (e *Engine) command(ctx context.Context, args ...string) *exec.Cmd {
	return e.execCommand(ctx, e.binary, args...)
}

// output runs the CLI with args and returns its stdout. Stderr is folded into the error.
func (e *Engine) output(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
	cmd := e.command(ctx, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, commandError(err, &stderr, e.name+" "+args[0]+" failed")
	}
	return stdout.Bytes(), nil
}

func commandError(err error, stderr *bytes.Buffer, msg string) error {
	wrapped := zerr.With(zerr.Wrap(err, msg), "exit_code", exitCode(err))
	if s := strings.TrimSpace(stderr.String()); s != "" {
		wrapped = zerr.With(wrapped, "stderr", s)
	}
	return wrapped
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
