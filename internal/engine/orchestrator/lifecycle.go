package orchestrator

import (
	"github.com/felixgeelhaar/statekit"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/zerr"
)

// Lifecycle events.
const (
	eventResolve = "RESOLVE"
	eventHit     = "HIT"
	eventMiss    = "MISS"
	eventBuild   = "BUILD"
	eventReady   = "READY"
	eventFail    = "FAIL"
)

// State ids, matching domain.TargetState values.
const (
	statePending   = "pending"
	stateResolving = "resolving"
	stateCacheHit  = "cache_hit"
	stateCacheMiss = "cache_miss"
	stateBuilding  = "building"
	stateReady     = "ready"
	stateFailed    = "failed"
)

type lifecycleContext struct {
	Target domain.TargetID
}

// lifecycle tracks one target through
// pending -> resolving -> {cache_hit -> ready} | {cache_miss -> building -> {ready | failed}}.
// A description that cannot be read fails the target from pending.
type lifecycle struct {
	interp *statekit.Interpreter[lifecycleContext]
}

func newLifecycle(target domain.TargetID) (*lifecycle, error) {
	machine, err := statekit.NewMachine[lifecycleContext]("target-lifecycle").
		WithInitial(statePending).
		WithContext(lifecycleContext{Target: target}).
		State(statePending).
		On(eventResolve).Target(stateResolving).
		On(eventFail).Target(stateFailed).Done().
		State(stateResolving).
		On(eventHit).Target(stateCacheHit).
		On(eventMiss).Target(stateCacheMiss).
		On(eventFail).Target(stateFailed).Done().
		State(stateCacheHit).
		On(eventReady).Target(stateReady).Done().
		State(stateCacheMiss).
		On(eventBuild).Target(stateBuilding).Done().
		State(stateBuilding).
		On(eventReady).Target(stateReady).
		On(eventFail).Target(stateFailed).Done().
		State(stateReady).Done().
		State(stateFailed).Done().
		Build()
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to build target lifecycle"), "target", target.String())
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return &lifecycle{interp: interp}, nil
}

// State returns the current lifecycle state.
func (l *lifecycle) State() domain.TargetState {
	return domain.TargetState(l.interp.State().Value)
}

// fire sends events in order and stops at the first one the current state does not accept.
func (l *lifecycle) fire(events ...statekit.EventType) error {
	for _, event := range events {
		from := l.State()
		l.interp.Send(statekit.Event{Type: event})
		if l.State() == from {
			return zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidTransition, "event not accepted"),
				"state", string(from)), "event", string(event))
		}
	}
	return nil
}
