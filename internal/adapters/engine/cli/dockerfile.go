package cli

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/zerr"
	"mvdan.cc/sh/v3/syntax"
)

// RenderDockerfile renders a structured recipe as a Dockerfile.
//
// Steps use the exec form of RUN with the recipe shell, so multi-line
// scripts survive unchanged. Step env and workdir are applied inside the
// script and do not leak into the image config.
func RenderDockerfile(desc *domain.BuildDescription) (string, error) {
	r := desc.Recipe
	if desc.Kind != domain.RecipeStructured || r == nil {
		return "", zerr.With(zerr.New("not a structured recipe"), "target", desc.Target.String())
	}

	steps, err := r.Script()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Generated by crossbox for " + desc.Target.String() + "\n")
	sb.WriteString("FROM " + r.Base + "\n")

	for _, k := range slices.Sorted(maps.Keys(r.Args)) {
		sb.WriteString("ARG " + k + "\n")
	}

	for _, k := range slices.Sorted(maps.Keys(r.Env)) {
		v, err := quote(r.Env[k])
		if err != nil {
			return "", zerr.With(err, "env", k)
		}
		sb.WriteString("ENV " + k + "=" + v + "\n")
	}

	if r.Workdir != "" {
		sb.WriteString("WORKDIR " + r.Workdir + "\n")
	}

	shell := r.ShellOrDefault()
	for i, step := range steps {
		script, err := stepScript(step)
		if err != nil {
			return "", zerr.With(err, "step", i+1)
		}

		argv, err := execForm(append(slices.Clone(shell), script))
		if err != nil {
			return "", zerr.Wrap(err, "failed to encode RUN instruction")
		}
		sb.WriteString("RUN " + argv + "\n")
	}

	return sb.String(), nil
}

// stepScript prefixes the step command with its workdir and env.
func stepScript(step domain.Step) (string, error) {
	var sb strings.Builder

	if step.Workdir != "" {
		dir, err := quote(step.Workdir)
		if err != nil {
			return "", err
		}
		sb.WriteString("cd " + dir + "\n")
	}

	for _, k := range slices.Sorted(maps.Keys(step.Env)) {
		v, err := quote(step.Env[k])
		if err != nil {
			return "", zerr.With(err, "env", k)
		}
		sb.WriteString("export " + k + "=" + v + "\n")
	}

	sb.WriteString(step.Run)
	return sb.String(), nil
}

// execForm encodes argv as a JSON array without HTML escaping, so && stays readable.
func execForm(argv []string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(argv); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func quote(s string) (string, error) {
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "", zerr.Wrap(err, "value cannot be quoted for a POSIX shell")
	}
	return q, nil
}
