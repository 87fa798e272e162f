package orchestrator

import (
	"github.com/felixgeelhaar/statekit"
	"go.trai.ch/crossbox/internal/core/domain"
)

// LifecycleStates drives a fresh lifecycle through events and returns the state after each one.
func LifecycleStates(events ...string) ([]domain.TargetState, error) {
	lc, err := newLifecycle("t")
	if err != nil {
		return nil, err
	}
	states := []domain.TargetState{lc.State()}
	for _, e := range events {
		if err := lc.fire(statekit.EventType(e)); err != nil {
			return states, err
		}
		states = append(states, lc.State())
	}
	return states, nil
}

// SetRunID fixes the run id of o.
func SetRunID(o *Orchestrator, id string) {
	o.newRunID = func() string { return id }
}
