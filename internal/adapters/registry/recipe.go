package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/containerd/platforms"
	"github.com/pelletier/go-toml/v2"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/syntax"
)

var (
	envKeyPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	packagePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.+:=~_-]*$`)
)

func decodeYAML(data []byte) (RecipeDTO, error) {
	var dto RecipeDTO
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&dto); err != nil {
		if errors.Is(err, io.EOF) {
			return dto, zerr.New("recipe is empty")
		}
		return dto, zerr.Wrap(err, "failed to parse yaml")
	}
	return dto, nil
}

func decodeTOML(data []byte) (RecipeDTO, error) {
	var dto RecipeDTO
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dto); err != nil {
		return dto, zerr.Wrap(err, "failed to parse toml")
	}
	return dto, nil
}

// toRecipe validates dto and converts it into a domain recipe.
func toRecipe(dto RecipeDTO) (*domain.Recipe, domain.Criticality, error) {
	if strings.TrimSpace(dto.Base) == "" {
		return nil, "", zerr.New("base image is required")
	}

	criticality, err := domain.ParseCriticality(dto.Criticality)
	if err != nil {
		return nil, "", err
	}

	platform := ""
	if dto.Platform != "" {
		p, err := platforms.Parse(dto.Platform)
		if err != nil {
			return nil, "", zerr.With(zerr.Wrap(err, "invalid platform"), "platform", dto.Platform)
		}
		platform = platforms.Format(platforms.Normalize(p))
	}

	manager := domain.PackageManager(strings.ToLower(dto.Packages.Manager))
	if manager == "" {
		manager = domain.PackageManagerApt
	}
	for _, pkg := range dto.Packages.Install {
		if !packagePattern.MatchString(pkg) {
			return nil, "", zerr.With(zerr.New("invalid package name"), "package", pkg)
		}
	}

	if err := validateEnv(dto.Env); err != nil {
		return nil, "", err
	}
	if err := validateEnv(dto.Args); err != nil {
		return nil, "", err
	}

	steps := make([]domain.Step, 0, len(dto.Steps))
	for i, s := range dto.Steps {
		if err := validateScript(s.Run, fmt.Sprintf("step %d", i+1)); err != nil {
			return nil, "", err
		}
		if err := validateEnv(s.Env); err != nil {
			return nil, "", err
		}
		steps = append(steps, domain.Step{Run: s.Run, Workdir: s.Workdir, Env: s.Env})
	}

	recipe := &domain.Recipe{
		Base:     strings.TrimSpace(dto.Base),
		Platform: platform,
		Manager:  manager,
		Packages: dto.Packages.Install,
		Env:      dto.Env,
		Args:     dto.Args,
		Workdir:  dto.Workdir,
		Shell:    dto.Shell,
		Steps:    steps,
	}

	// Rendering the install command also rejects unknown managers.
	if _, err := recipe.Script(); err != nil {
		return nil, "", err
	}

	return recipe, criticality, nil
}

func validateEnv(env map[string]string) error {
	for k := range env {
		if !envKeyPattern.MatchString(k) {
			return zerr.With(zerr.New("invalid variable name"), "name", k)
		}
	}
	return nil
}

// validateScript checks that a step is non-empty POSIX shell.
func validateScript(script, name string) error {
	if strings.TrimSpace(script) == "" {
		return zerr.With(zerr.New("step has no run command"), "step", name)
	}

	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	if _, err := parser.Parse(strings.NewReader(script), name); err != nil {
		return zerr.With(zerr.Wrap(err, "step is not valid shell"), "step", name)
	}
	return nil
}
