// Package config loads crossbox settings from defaults, crossbox.yaml, and the environment.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	// FileName is the settings file looked up in the working directory.
	FileName = "crossbox.yaml"
	// EnvPrefix prefixes every environment override, e.g. CROSSBOX_ENGINE.
	EnvPrefix = "CROSSBOX"
	// PathEnv names an explicit settings file and replaces the working directory lookup.
	PathEnv = EnvPrefix + "_CONFIG"
)

// fileSettings mirrors domain.Settings with the keys used in crossbox.yaml.
type fileSettings struct {
	Organization string   `mapstructure:"organization"`
	Version      string   `mapstructure:"version"`
	Registry     string   `mapstructure:"registry"`
	CacheDir     string   `mapstructure:"cache_dir"`
	Engine       string   `mapstructure:"engine"`
	Platform     string   `mapstructure:"platform"`
	BestEffort   []string `mapstructure:"best_effort"`
	Log          struct {
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Downstream struct {
		Command string `mapstructure:"command"`
		Workdir string `mapstructure:"workdir"`
	} `mapstructure:"downstream"`
	Containerd struct {
		Address     string `mapstructure:"address"`
		Namespace   string `mapstructure:"namespace"`
		Snapshotter string `mapstructure:"snapshotter"`
	} `mapstructure:"containerd"`
}

// Loader reads settings with viper.
type Loader struct {
	Filename string
}

// NewLoader creates a loader for FileName.
func NewLoader() *Loader {
	return &Loader{Filename: FileName}
}

// Load resolves the effective settings for an invocation started in cwd.
func (l *Loader) Load(cwd string) (domain.Settings, error) {
	v := viper.New()
	setDefaults(v, domain.DefaultSettings())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, explicit := os.Getenv(PathEnv), true
	if path == "" {
		path, explicit = filepath.Join(cwd, l.Filename), false
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return domain.Settings{}, errors.Join(domain.ErrConfigReadFailed,
				zerr.With(zerr.Wrap(err, "failed to read settings"), "path", path))
		}
	} else if explicit {
		return domain.Settings{}, errors.Join(domain.ErrConfigReadFailed,
			zerr.With(zerr.Wrap(err, "settings file not found"), "path", path))
	}

	var fs fileSettings
	if err := v.Unmarshal(&fs); err != nil {
		return domain.Settings{}, errors.Join(domain.ErrConfigParseFailed, zerr.Wrap(err, "failed to decode settings"))
	}

	settings := domain.Settings{
		Organization: fs.Organization,
		Version:      fs.Version,
		RegistryDir:  fs.Registry,
		CacheDir:     fs.CacheDir,
		Engine:       strings.ToLower(fs.Engine),
		Platform:     fs.Platform,
		BestEffort:   fs.BestEffort,
		LogFormat:    strings.ToLower(fs.Log.Format),
		Downstream: domain.DownstreamSettings{
			Command: fs.Downstream.Command,
			Workdir: fs.Downstream.Workdir,
		},
		Containerd: domain.ContainerdSettings{
			Address:     fs.Containerd.Address,
			Namespace:   fs.Containerd.Namespace,
			Snapshotter: fs.Containerd.Snapshotter,
		},
	}

	if err := validate(settings); err != nil {
		return domain.Settings{}, errors.Join(domain.ErrConfigParseFailed, err)
	}

	return settings, nil
}

func setDefaults(v *viper.Viper, d domain.Settings) {
	v.SetDefault("organization", d.Organization)
	v.SetDefault("version", d.Version)
	v.SetDefault("registry", d.RegistryDir)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("engine", d.Engine)
	v.SetDefault("platform", d.Platform)
	v.SetDefault("best_effort", []string{})
	v.SetDefault("log.format", d.LogFormat)
	v.SetDefault("downstream.command", d.Downstream.Command)
	v.SetDefault("downstream.workdir", d.Downstream.Workdir)
	v.SetDefault("containerd.address", d.Containerd.Address)
	v.SetDefault("containerd.namespace", d.Containerd.Namespace)
	v.SetDefault("containerd.snapshotter", d.Containerd.Snapshotter)
}

func validate(s domain.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	switch s.Engine {
	case domain.EngineAuto, domain.EngineDocker, domain.EnginePodman, domain.EngineContainerd:
	default:
		return zerr.With(zerr.Wrap(domain.ErrUnknownEngine, "invalid engine setting"), "engine", s.Engine)
	}

	for _, id := range s.BestEffort {
		if err := domain.TargetID(id).Validate(); err != nil {
			return zerr.With(zerr.Wrap(err, "invalid best_effort entry"), "target", id)
		}
	}

	return nil
}
