package domain

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Engine names accepted by the engine setting.
const (
	EngineAuto       = "auto"
	EngineDocker     = "docker"
	EnginePodman     = "podman"
	EngineContainerd = "containerd"
)

// LogFormatJSON switches the logger to structured JSON output.
const LogFormatJSON = "json"

// Settings is the effective configuration of a crossbox invocation.
type Settings struct {
	Organization string
	Version      string
	RegistryDir  string
	CacheDir     string
	Engine       string
	Platform     string
	BestEffort   []string
	LogFormat    string
	Downstream   DownstreamSettings
	Containerd   ContainerdSettings
}

// DownstreamSettings configures the procedure run against each ready image.
type DownstreamSettings struct {
	Command string
	Workdir string
}

// Enabled reports whether a downstream command is configured.
func (d DownstreamSettings) Enabled() bool {
	return d.Command != ""
}

// ContainerdSettings configures the native containerd engine.
type ContainerdSettings struct {
	Address     string
	Namespace   string
	Snapshotter string
}

// DefaultCacheDir returns the default location of cache archives.
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "crossbox", "images")
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Organization: "crossbox",
		Version:      "v0.1.0",
		RegistryDir:  "docker",
		CacheDir:     DefaultCacheDir(),
		Engine:       EngineAuto,
		LogFormat:    "text",
		Containerd: ContainerdSettings{
			Address:     "/run/containerd/containerd.sock",
			Namespace:   "crossbox",
			Snapshotter: "overlayfs",
		},
	}
}

// Validate checks the settings that every run depends on.
func (s Settings) Validate() error {
	if err := ValidateOrganization(s.Organization); err != nil {
		return err
	}
	return ValidateVersion(s.Version)
}
