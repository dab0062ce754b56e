package search

import "strings"

// ValuePrefix tags annotation values that came from a search, so overlay
// consumers can tell them apart from user annotations.
const ValuePrefix = "search:"

// Annotation is one per-section overlay record. Value is either a
// search-derived identifier carrying ValuePrefix or a user annotation's own
// location value.
type Annotation struct {
	Value string
}

// IsSearch reports whether the annotation came from a search.
func (a Annotation) IsSearch() bool {
	return strings.HasPrefix(a.Value, ValuePrefix)
}

// Identifier strips the search prefix, returning the underlying location
// identifier.
func (a Annotation) Identifier() string {
	return strings.TrimPrefix(a.Value, ValuePrefix)
}

// Registry keeps per-section annotations. It is rebuilt on every search
// invocation and persists until cleared. Not safe for concurrent use; the
// session owns it under the single-threaded cooperative model.
type Registry struct {
	bySection map[int][]Annotation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{bySection: make(map[int][]Annotation)}
}

// AddSearch registers a search hit's identifier against a section.
func (r *Registry) AddSearch(section int, identifier string) {
	r.bySection[section] = append(r.bySection[section], Annotation{Value: ValuePrefix + identifier})
}

// Add registers a user annotation value against a section.
func (r *Registry) Add(section int, value string) {
	r.bySection[section] = append(r.bySection[section], Annotation{Value: value})
}

// Annotations returns the annotations registered against a section.
func (r *Registry) Annotations(section int) []Annotation {
	return r.bySection[section]
}

// ClearSearch removes only search-derived annotations, keeping user ones.
func (r *Registry) ClearSearch() {
	for sec, anns := range r.bySection {
		kept := anns[:0]
		for _, a := range anns {
			if !a.IsSearch() {
				kept = append(kept, a)
			}
		}
		if len(kept) == 0 {
			delete(r.bySection, sec)
		} else {
			r.bySection[sec] = kept
		}
	}
}

// Clear removes everything. Used on document close.
func (r *Registry) Clear() {
	r.bySection = make(map[int][]Annotation)
}
