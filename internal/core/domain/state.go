package domain

import "strings"

// TargetState is a step in the per-target lifecycle:
// pending -> resolving -> {cache_hit -> ready} | {cache_miss -> building -> {ready | failed}}.
type TargetState string

const (
	// StatePending indicates the target has not been looked at yet.
	StatePending TargetState = "pending"
	// StateResolving indicates the resolver is looking for a usable image.
	StateResolving TargetState = "resolving"
	// StateCacheHit indicates a usable image was found locally or restored from cache.
	StateCacheHit TargetState = "cache_hit"
	// StateCacheMiss indicates no usable image was found and a build is required.
	StateCacheMiss TargetState = "cache_miss"
	// StateBuilding indicates the builder is producing a fresh image.
	StateBuilding TargetState = "building"
	// StateReady indicates a usable image is tagged under the canonical reference.
	StateReady TargetState = "ready"
	// StateFailed indicates the target could not be made ready.
	StateFailed TargetState = "failed"
)

// IsTerminal reports whether no further transition can leave the state.
func (s TargetState) IsTerminal() bool {
	switch s {
	case StateReady, StateFailed:
		return true
	default:
		return false
	}
}

// NormalizeTargetState converts a string to a TargetState, defaulting to pending if unknown.
func NormalizeTargetState(s string) TargetState {
	switch strings.ToLower(s) {
	case string(StateResolving):
		return StateResolving
	case string(StateCacheHit):
		return StateCacheHit
	case string(StateCacheMiss):
		return StateCacheMiss
	case string(StateBuilding):
		return StateBuilding
	case string(StateReady):
		return StateReady
	case string(StateFailed):
		return StateFailed
	default:
		return StatePending
	}
}
