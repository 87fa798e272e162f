package domain

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
)

// Outcome is the per-target result recorded in the run report.
type Outcome string

const (
	// OutcomeCached means the image was reused without building.
	OutcomeCached Outcome = "cached"
	// OutcomeBuilt means the image was built fresh during this run.
	OutcomeBuilt Outcome = "built"
	// OutcomeFailed means the target did not end with a usable image, or its downstream procedure failed.
	OutcomeFailed Outcome = "failed"
)

// ImageSource tells where a ready image came from.
type ImageSource string

const (
	SourceNone  ImageSource = ""
	SourceLocal ImageSource = "local"
	SourceCache ImageSource = "cache"
	SourceBuild ImageSource = "build"
)

// DownstreamStatus records the result of the build/test procedure run against a ready image.
type DownstreamStatus string

const (
	DownstreamSkipped DownstreamStatus = "skipped"
	DownstreamPassed  DownstreamStatus = "passed"
	DownstreamFailed  DownstreamStatus = "failed"
)

// Entry is the outcome of one target in one orchestration pass.
type Entry struct {
	Target      TargetID
	Criticality Criticality
	State       TargetState
	Outcome     Outcome
	Source      ImageSource
	// Reason explains a cache miss.
	Reason     string
	Image      ImageRef
	Stage      Stage
	Err        error
	Warnings   []string
	Downstream DownstreamStatus
	Duration   time.Duration
}

// Failed reports whether the entry ended in failure, including a failed downstream procedure.
func (e Entry) Failed() bool {
	return e.Outcome == OutcomeFailed
}

// Counts reports whether the entry's failure fails the run.
func (e Entry) Counts() bool {
	return e.Failed() && e.Criticality != CriticalityBestEffort
}

// RunReport collects per-target outcomes for one orchestration pass. It is never persisted.
type RunReport struct {
	RunID     string
	Mode      RunMode
	StartedAt time.Time

	mu      sync.RWMutex
	entries map[TargetID]Entry
}

// NewRunReport creates an empty report.
func NewRunReport(runID string, mode RunMode) *RunReport {
	return &RunReport{
		RunID:     runID,
		Mode:      mode,
		StartedAt: time.Now(),
		entries:   make(map[TargetID]Entry),
	}
}

// Record stores the entry for its target, replacing any previous entry for the same target.
// Recording the same terminal entry again leaves the report unchanged.
func (r *RunReport) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.Target] = e
}

// Entry returns the recorded entry for a target.
func (r *RunReport) Entry(target TargetID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[target]
	return e, ok
}

// Entries returns every recorded entry in lexicographic target order.
func (r *RunReport) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return strings.Compare(a.Target.String(), b.Target.String())
	})
	return out
}

// Len returns the number of recorded targets.
func (r *RunReport) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Failures returns the failed entries that count toward the aggregate result.
// A single-target run has no siblings to tolerate, so its failure always counts.
func (r *RunReport) Failures() []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Counts() || (r.Mode.IsSingle() && e.Failed()) {
			out = append(out, e)
		}
	}
	return out
}

// Failed reports whether any required target failed.
func (r *RunReport) Failed() bool {
	return len(r.Failures()) > 0
}

// Err returns the aggregate error of the run: ErrRunFailed joined with every counted target error.
func (r *RunReport) Err() error {
	failures := r.Failures()
	if len(failures) == 0 {
		return nil
	}

	errs := make([]error, 0, len(failures)+1)
	errs = append(errs, ErrRunFailed)
	for _, e := range failures {
		errs = append(errs, e.Err)
	}
	return errors.Join(errs...)
}
