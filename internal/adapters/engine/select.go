// Package engine selects the container engine a run builds with.
package engine

import (
	"os/exec"

	"go.trai.ch/crossbox/internal/adapters/engine/cli"
	"go.trai.ch/crossbox/internal/adapters/engine/containerd"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/zerr"
)

// LookPathFunc reports where an executable is installed.
type LookPathFunc func(file string) (string, error)

// cliEngines are tried in order when the engine is "auto".
var cliEngines = []string{domain.EngineDocker, domain.EnginePodman}

// Select returns the engine named by settings.Engine. For "auto" it picks the
// first CLI found on PATH and falls back to containerd.
func Select(settings domain.Settings, lookPath LookPathFunc) (ports.ImageEngine, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	switch settings.Engine {
	case domain.EngineDocker, domain.EnginePodman:
		return cli.New(settings.Engine, cli.WithPlatform(settings.Platform)), nil
	case domain.EngineContainerd:
		return containerd.New(settings.Containerd, settings.Platform), nil
	case domain.EngineAuto, "":
		for _, name := range cliEngines {
			if path, err := lookPath(name); err == nil {
				return cli.New(name, cli.WithBinary(path), cli.WithPlatform(settings.Platform)), nil
			}
		}
		return containerd.New(settings.Containerd, settings.Platform), nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownEngine, "cannot select engine"), "engine", settings.Engine)
	}
}
