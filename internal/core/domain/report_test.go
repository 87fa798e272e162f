package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/crossbox/internal/core/domain"
)

func TestRunReport_RecordIsIdempotent(t *testing.T) {
	report := domain.NewRunReport("run-1", domain.AllTargets())

	entry := domain.Entry{
		Target:  "x86_64-unknown-linux-gnu",
		State:   domain.StateReady,
		Outcome: domain.OutcomeCached,
		Source:  domain.SourceCache,
	}

	report.Record(entry)
	report.Record(entry)

	assert.Equal(t, 1, report.Len())
	got, ok := report.Entry("x86_64-unknown-linux-gnu")
	require.True(t, ok)
	assert.Equal(t, domain.StateReady, got.State)
	assert.Equal(t, domain.OutcomeCached, got.Outcome)
}

func TestRunReport_EntriesAreOrdered(t *testing.T) {
	report := domain.NewRunReport("run-1", domain.AllTargets())
	for _, id := range []domain.TargetID{"mips-unknown-linux-gnu", "aarch64-unknown-linux-gnu", "i686-unknown-linux-gnu"} {
		report.Record(domain.Entry{Target: id, State: domain.StateReady, Outcome: domain.OutcomeBuilt})
	}

	entries := report.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, domain.TargetID("aarch64-unknown-linux-gnu"), entries[0].Target)
	assert.Equal(t, domain.TargetID("i686-unknown-linux-gnu"), entries[1].Target)
	assert.Equal(t, domain.TargetID("mips-unknown-linux-gnu"), entries[2].Target)
}

func TestRunReport_Failures(t *testing.T) {
	buildErr := domain.NewTargetError("b", domain.StageBuild, domain.ErrBuildExecutionFailed, errors.New("boom"))
	optionalErr := domain.NewTargetError("c", domain.StageBuild, domain.ErrBuildExecutionFailed, errors.New("flaky"))

	report := domain.NewRunReport("run-1", domain.AllTargets())
	report.Record(domain.Entry{Target: "a", Criticality: domain.CriticalityRequired, State: domain.StateReady, Outcome: domain.OutcomeBuilt})
	report.Record(domain.Entry{Target: "b", Criticality: domain.CriticalityRequired, State: domain.StateFailed, Outcome: domain.OutcomeFailed, Err: buildErr})
	report.Record(domain.Entry{Target: "c", Criticality: domain.CriticalityBestEffort, State: domain.StateFailed, Outcome: domain.OutcomeFailed, Err: optionalErr})

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, domain.TargetID("b"), failures[0].Target)
	assert.True(t, report.Failed())

	err := report.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRunFailed)
	assert.ErrorIs(t, err, domain.ErrBuildExecutionFailed)
	assert.NotContains(t, err.Error(), "flaky")
}

func TestRunReport_BestEffortOnlyFailuresPass(t *testing.T) {
	report := domain.NewRunReport("run-1", domain.AllTargets())
	report.Record(domain.Entry{Target: "c", Criticality: domain.CriticalityBestEffort, State: domain.StateFailed, Outcome: domain.OutcomeFailed})

	assert.False(t, report.Failed())
	assert.NoError(t, report.Err())
}

func TestRunReport_SingleTargetBestEffortFailureCounts(t *testing.T) {
	optionalErr := domain.NewTargetError("c", domain.StageBuild, domain.ErrBuildExecutionFailed, errors.New("flaky"))

	report := domain.NewRunReport("run-1", domain.SingleTarget("c"))
	report.Record(domain.Entry{Target: "c", Criticality: domain.CriticalityBestEffort, State: domain.StateFailed, Outcome: domain.OutcomeFailed, Err: optionalErr})

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.True(t, report.Failed())

	err := report.Err()
	require.ErrorIs(t, err, domain.ErrRunFailed)
	assert.ErrorIs(t, err, domain.ErrBuildExecutionFailed)
}
