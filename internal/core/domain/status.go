package domain

// TargetStatus is a read-only summary of a declared target, used by listing commands.
type TargetStatus struct {
	Target      TargetID
	Criticality Criticality
	Kind        RecipeKind
	Digest      string
	Cache       CacheState
	Err         error
}
