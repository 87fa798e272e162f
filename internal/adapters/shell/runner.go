// Package shell runs the downstream build/test procedure against ready images.
package shell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/zerr"
)

// Environment variables exported to the downstream procedure.
const (
	EnvTarget = "CROSSBOX_TARGET"
	EnvImage  = "CROSSBOX_IMAGE"
	EnvEngine = "CROSSBOX_ENGINE"
)

var _ ports.DownstreamRunner = (*Runner)(nil)

// Runner implements ports.DownstreamRunner with sh -c.
type Runner struct {
	logger ports.Logger
	shell  string
}

// NewRunner creates a new Runner.
func NewRunner(logger ports.Logger) *Runner {
	return &Runner{logger: logger, shell: "sh"}
}

// Run executes req.Command with the image coordinates exported in its environment.
// Output goes to req.Stdout and req.Stderr, or line by line to the logger when they are nil.
func (r *Runner) Run(ctx context.Context, req ports.DownstreamRequest) error {
	if strings.TrimSpace(req.Command) == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, r.shell, "-c", req.Command) //nolint:gosec // user provided command
	cmd.Dir = req.Workdir
	cmd.Env = resolveEnvironment(os.Environ(), map[string]string{
		EnvTarget: req.Target,
		EnvImage:  req.Image,
		EnvEngine: req.Engine,
	})

	stdout, stderr := req.Stdout, req.Stderr
	if stdout == nil {
		lw := &logWriter{logger: r.logger, level: "info"}
		defer lw.Flush()
		stdout = lw
	}
	if stderr == nil {
		lw := &logWriter{logger: r.logger, level: "warn"}
		defer lw.Flush()
		stderr = lw
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1 // Unknown or signal
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return zerr.With(zerr.With(zerr.Wrap(err, "downstream command failed"), "exit_code", exitCode),
			"target", req.Target)
	}

	return nil
}

// logWriter forwards complete lines to the logger and buffers partial ones.
type logWriter struct {
	mu     sync.Mutex
	logger ports.Logger
	level  string
	buf    []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := slices.Index(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *logWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.emit(string(w.buf))
		w.buf = nil
	}
}

func (w *logWriter) emit(line string) {
	line = strings.TrimSuffix(line, "\r")
	if w.level == "info" {
		w.logger.Info(line)
	} else {
		w.logger.Warn(line)
	}
}

var _ io.Writer = (*logWriter)(nil)

// resolveEnvironment overlays overrides on the system environment and returns a sorted KEY=VALUE list.
func resolveEnvironment(sysEnv []string, overrides map[string]string) []string {
	envMap := make(map[string]string, len(sysEnv)+len(overrides))
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if ok {
			envMap[k] = v
		}
	}

	for k, v := range overrides {
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}
