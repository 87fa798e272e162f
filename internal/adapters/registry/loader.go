// Package registry loads target build descriptions from a directory tree.
package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/zerr"
)

// RecipeFiles are the recipe file names looked up in each target directory, in priority order.
var RecipeFiles = []string{"toolchain.yaml", "toolchain.yml", "toolchain.toml", "Dockerfile"}

var _ ports.RegistryLoader = (*Loader)(nil)

// Loader implements ports.RegistryLoader over a directory of target subdirectories.
type Loader struct {
	hasher ports.Hasher
	logger ports.Logger
}

// NewLoader creates a new registry loader.
func NewLoader(hasher ports.Hasher, logger ports.Logger) *Loader {
	return &Loader{hasher: hasher, logger: logger}
}

// Load scans root for target directories.
func (l *Loader) Load(root string) (*domain.Registry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Join(domain.ErrRegistryReadFailed,
			zerr.With(zerr.Wrap(err, "failed to list registry directory"), "path", root))
	}

	reg := domain.NewRegistry(root)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		id := domain.TargetID(name)
		if err := id.Validate(); err != nil {
			l.logger.Warn("skipping registry directory " + name + ": not a valid target id")
			continue
		}

		dir := filepath.Join(root, name)
		file, ok := findRecipe(dir)
		if !ok {
			l.logger.Warn("skipping registry directory " + name + ": no recipe file")
			continue
		}

		desc, err := l.describe(id, dir, file)
		if err != nil {
			l.logger.Warn("[" + name + "] recipe " + file + " is invalid: " + err.Error())
			reg.AddBroken(id, err)
			continue
		}
		reg.Add(desc)
	}

	return reg, nil
}

func findRecipe(dir string) (string, bool) {
	for _, name := range RecipeFiles {
		info, err := os.Stat(filepath.Join(dir, name))
		if err == nil && info.Mode().IsRegular() {
			return name, true
		}
	}
	return "", false
}

func (l *Loader) describe(id domain.TargetID, dir, file string) (*domain.BuildDescription, error) {
	path := filepath.Join(dir, file)
	data, err := os.ReadFile(path) //nolint:gosec // path is inside the registry
	if err != nil {
		return nil, errors.Join(domain.ErrRecipeInvalid,
			zerr.With(zerr.Wrap(err, "failed to read recipe"), "file", path))
	}

	desc := &domain.BuildDescription{
		Target:      id,
		Dir:         dir,
		File:        file,
		Criticality: domain.CriticalityRequired,
	}

	switch filepath.Ext(file) {
	case ".yaml", ".yml", ".toml":
		decode := decodeYAML
		if filepath.Ext(file) == ".toml" {
			decode = decodeTOML
		}
		dto, err := decode(data)
		if err != nil {
			return nil, errors.Join(domain.ErrRecipeInvalid, zerr.With(err, "file", path))
		}
		recipe, criticality, err := toRecipe(dto)
		if err != nil {
			return nil, errors.Join(domain.ErrRecipeInvalid, zerr.With(err, "file", path))
		}
		desc.Kind = domain.RecipeStructured
		desc.Recipe = recipe
		desc.Criticality = criticality
	default:
		desc.Kind = domain.RecipeDockerfile
		desc.Dockerfile = string(data)
	}

	digest, err := l.hasher.ComputeDirDigest(dir)
	if err != nil {
		return nil, errors.Join(domain.ErrRecipeInvalid, err)
	}
	desc.Digest = digest

	return desc, nil
}
