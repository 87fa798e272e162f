package domain

import (
	"fmt"
	"regexp"
	"strings"

	"go.trai.ch/zerr"
)

// targetIDPattern matches target triples such as "aarch64-unknown-linux-gnu" or "thumbv7em-none-eabi".
// Identifiers become image repository names, so they follow the same lowercase component rules.
var targetIDPattern = regexp.MustCompile(`^[a-z0-9]+(?:[._-]+[a-z0-9]+)*$`)

// TargetID names one cross-compilation environment.
type TargetID string

// String returns the identifier as a plain string.
func (t TargetID) String() string {
	return string(t)
}

// Validate checks that the identifier is usable as a directory name and an image name.
func (t TargetID) Validate() error {
	if !targetIDPattern.MatchString(string(t)) {
		return zerr.With(zerr.Wrap(ErrInvalidTargetID, "target id must be lowercase alphanumerics separated by . _ or -"), "target", string(t))
	}
	return nil
}

// Criticality decides whether a target's failure fails the whole run.
type Criticality string

const (
	// CriticalityRequired targets fail the run when they fail.
	CriticalityRequired Criticality = "required"
	// CriticalityBestEffort targets are allowed to fail without failing the run.
	CriticalityBestEffort Criticality = "best-effort"
)

// ParseCriticality converts a recipe value into a Criticality. An empty value means required.
func ParseCriticality(s string) (Criticality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(CriticalityRequired):
		return CriticalityRequired, nil
	case string(CriticalityBestEffort), "best_effort", "besteffort":
		return CriticalityBestEffort, nil
	default:
		return "", zerr.With(zerr.Wrap(ErrInvalidCriticality, "expected required or best-effort"), "criticality", s)
	}
}

// RunMode selects between processing one explicitly named target and the full matrix.
// It is decided once at entry and threaded through the orchestrator.
type RunMode struct {
	target TargetID
	single bool
}

// SingleTarget returns a mode that processes exactly the given target.
func SingleTarget(id TargetID) RunMode {
	return RunMode{target: id, single: true}
}

// AllTargets returns a mode that processes every declared target.
func AllTargets() RunMode {
	return RunMode{}
}

// IsSingle reports whether the mode targets one explicit target.
func (m RunMode) IsSingle() bool {
	return m.single
}

// Target returns the requested target in single mode and an empty id otherwise.
func (m RunMode) Target() TargetID {
	return m.target
}

// String renders the mode for logs and reports.
func (m RunMode) String() string {
	if m.single {
		return "single(" + m.target.String() + ")"
	}
	return "all"
}

// Stage names the part of a target's processing an error came from.
type Stage string

const (
	StageResolve    Stage = "resolve"
	StageBuild      Stage = "build"
	StagePersist    Stage = "persist"
	StageDownstream Stage = "downstream"
)

// TargetError attributes a failure to one target and stage.
// Kind is one of the taxonomy sentinels; Err is the underlying cause.
type TargetError struct {
	Target TargetID
	Stage  Stage
	Kind   error
	Err    error
}

// NewTargetError builds a TargetError.
func NewTargetError(target TargetID, stage Stage, kind, err error) *TargetError {
	return &TargetError{Target: target, Stage: stage, Kind: kind, Err: err}
}

func (e *TargetError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("target %s: %s: %v", e.Target, e.Stage, e.Kind)
	}
	return fmt.Sprintf("target %s: %s: %v: %v", e.Target, e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the cause to errors.Is and errors.As.
func (e *TargetError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
