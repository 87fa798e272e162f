package domain

import (
	"bufio"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// RecipeKind tells engines how a build description is expressed.
type RecipeKind string

const (
	// RecipeStructured is a declarative toolchain recipe (YAML or TOML).
	RecipeStructured RecipeKind = "structured"
	// RecipeDockerfile is a verbatim Dockerfile built with the target directory as context.
	RecipeDockerfile RecipeKind = "dockerfile"
)

// PackageManager is the distribution tool used to install toolchain packages.
type PackageManager string

const (
	PackageManagerApt  PackageManager = "apt"
	PackageManagerApk  PackageManager = "apk"
	PackageManagerDnf  PackageManager = "dnf"
	PackageManagerYum  PackageManager = "yum"
	PackageManagerNone PackageManager = "none"
)

// DefaultShell is used by recipes that do not declare one.
var DefaultShell = []string{"/bin/sh", "-c"}

// Step is a single shell command executed while building an image.
type Step struct {
	Run     string
	Workdir string
	Env     map[string]string
}

// Recipe is the declarative form of a build description.
type Recipe struct {
	Base     string
	Platform string
	Manager  PackageManager
	Packages []string
	Env      map[string]string
	Args     map[string]string
	Workdir  string
	Shell    []string
	Steps    []Step
}

// BuildDescription is the read-only recipe for one target, versioned with the repository.
type BuildDescription struct {
	Target      TargetID
	Dir         string
	File        string
	Kind        RecipeKind
	Criticality Criticality
	// Digest is a content hash of every file in Dir.
	Digest string
	// Recipe is set for structured descriptions.
	Recipe *Recipe
	// Dockerfile holds the verbatim contents for Dockerfile descriptions.
	Dockerfile string
}

// Platform returns the OCI platform requested by the recipe, or an empty string.
func (d *BuildDescription) Platform() string {
	if d.Recipe == nil {
		return ""
	}
	return d.Recipe.Platform
}

// BaseImages returns the images the description builds on, in declaration order.
func (d *BuildDescription) BaseImages() []string {
	switch d.Kind {
	case RecipeStructured:
		if d.Recipe == nil || d.Recipe.Base == "" {
			return nil
		}
		return []string{d.Recipe.Base}
	case RecipeDockerfile:
		return ParseDockerfileBases(d.Dockerfile)
	default:
		return nil
	}
}

// Script expands a recipe into the ordered steps an engine executes:
// package installation first, then the declared steps.
func (r *Recipe) Script() ([]Step, error) {
	steps := make([]Step, 0, len(r.Steps)+1)

	if len(r.Packages) > 0 {
		install, err := installCommand(r.Manager, r.Packages)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Run: install})
	}

	return append(steps, r.Steps...), nil
}

// ShellOrDefault returns the recipe shell, falling back to DefaultShell.
func (r *Recipe) ShellOrDefault() []string {
	if len(r.Shell) == 0 {
		return DefaultShell
	}
	return r.Shell
}

func installCommand(manager PackageManager, packages []string) (string, error) {
	pkgs := strings.Join(packages, " ")

	switch manager {
	case PackageManagerApt, "":
		return "apt-get update && DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends " +
			pkgs + " && rm -rf /var/lib/apt/lists/*", nil
	case PackageManagerApk:
		return "apk add --no-cache " + pkgs, nil
	case PackageManagerDnf:
		return "dnf install -y " + pkgs + " && dnf clean all", nil
	case PackageManagerYum:
		return "yum install -y " + pkgs + " && yum clean all", nil
	case PackageManagerNone:
		return "", zerr.With(zerr.Wrap(ErrRecipeInvalid, "packages listed but package manager is 'none'"),
			"packages", pkgs)
	default:
		return "", zerr.With(zerr.Wrap(ErrRecipeInvalid, "unknown package manager"), "manager", string(manager))
	}
}

// ParseDockerfileBases extracts the external images referenced by FROM instructions.
// References to earlier build stages, scratch, and ARG-templated references are skipped
// because they cannot be resolved before the build runs.
func ParseDockerfileBases(dockerfile string) []string {
	var (
		bases  []string
		stages []string
	)

	scanner := bufio.NewScanner(strings.NewReader(dockerfile))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || !strings.EqualFold(fields[0], "FROM") {
			continue
		}

		args := fields[1:]
		for len(args) > 0 && strings.HasPrefix(args[0], "--") {
			args = args[1:]
		}
		if len(args) == 0 {
			continue
		}

		ref := args[0]
		switch {
		case strings.EqualFold(ref, "scratch"):
		case strings.Contains(ref, "$"):
		case slices.Contains(stages, strings.ToLower(ref)):
		case slices.Contains(bases, ref):
		default:
			bases = append(bases, ref)
		}

		if len(args) >= 3 && strings.EqualFold(args[1], "AS") {
			stages = append(stages, strings.ToLower(args[2]))
		}
	}

	return bases
}
