package domain

import (
	"maps"
	"slices"

	"go.trai.ch/zerr"
)

// Registry is the set of declared targets discovered from a build description source.
// Targets whose recipe failed to load are still declared; Describe returns their load error.
type Registry struct {
	root         string
	descriptions map[TargetID]*BuildDescription
	loadErrs     map[TargetID]error
}

// NewRegistry creates an empty registry for the given source root.
func NewRegistry(root string) *Registry {
	return &Registry{
		root:         root,
		descriptions: make(map[TargetID]*BuildDescription),
		loadErrs:     make(map[TargetID]error),
	}
}

// Root returns the location the registry was loaded from.
func (r *Registry) Root() string {
	return r.root
}

// Add declares a target with a loaded description.
func (r *Registry) Add(desc *BuildDescription) {
	delete(r.loadErrs, desc.Target)
	r.descriptions[desc.Target] = desc
}

// AddBroken declares a target whose description could not be loaded.
func (r *Registry) AddBroken(id TargetID, err error) {
	delete(r.descriptions, id)
	r.loadErrs[id] = err
}

// ListDeclaredTargets returns every declared target in lexicographic order.
func (r *Registry) ListDeclaredTargets() []TargetID {
	ids := slices.Collect(maps.Keys(r.descriptions))
	ids = slices.AppendSeq(ids, maps.Keys(r.loadErrs))
	slices.Sort(ids)
	return ids
}

// Has reports whether the target is declared.
func (r *Registry) Has(id TargetID) bool {
	_, ok := r.descriptions[id]
	if ok {
		return true
	}
	_, ok = r.loadErrs[id]
	return ok
}

// Describe returns the build description of a declared target.
func (r *Registry) Describe(id TargetID) (*BuildDescription, error) {
	if desc, ok := r.descriptions[id]; ok {
		return desc, nil
	}
	if err, ok := r.loadErrs[id]; ok {
		return nil, err
	}
	return nil, zerr.With(zerr.Wrap(ErrUnknownTarget, "target is not declared"), "target", id.String())
}
