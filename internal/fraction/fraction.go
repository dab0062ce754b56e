// Package fraction maps a fractional position in [0,1] over a document's
// weighted size to a concrete section, and back.
package fraction

// Index holds the cumulative size weights of a document's sections.
type Index struct {
	sizes []int
	total int
}

// New builds an index from per-section size weights. Weights below 1 are
// treated as 1 so every section occupies a nonzero span.
func New(sizes []int) *Index {
	x := &Index{sizes: make([]int, len(sizes))}
	for i, s := range sizes {
		if s < 1 {
			s = 1
		}
		x.sizes[i] = s
		x.total += s
	}
	return x
}

// Locate resolves a fraction of the whole document to a section ordinal and
// the fraction of the way through that section. Inputs outside [0,1] clamp
// to the ends.
func (x *Index) Locate(fraction float64) (section int, within float64) {
	if len(x.sizes) == 0 {
		return 0, 0
	}
	if fraction <= 0 {
		return 0, 0
	}
	if fraction >= 1 {
		return len(x.sizes) - 1, 1
	}
	target := fraction * float64(x.total)
	acc := 0.0
	for i, s := range x.sizes {
		next := acc + float64(s)
		if target < next {
			return i, (target - acc) / float64(s)
		}
		acc = next
	}
	return len(x.sizes) - 1, 1
}

// FractionOf converts a position (section ordinal plus fraction of the way
// through that section) back to a fraction of the whole document.
func (x *Index) FractionOf(section int, within float64) float64 {
	if x.total == 0 || len(x.sizes) == 0 {
		return 0
	}
	if section < 0 {
		return 0
	}
	if section >= len(x.sizes) {
		return 1
	}
	if within < 0 {
		within = 0
	}
	if within > 1 {
		within = 1
	}
	acc := 0
	for i := 0; i < section; i++ {
		acc += x.sizes[i]
	}
	return (float64(acc) + within*float64(x.sizes[section])) / float64(x.total)
}

// SectionCount returns the number of sections the index covers.
func (x *Index) SectionCount() int {
	return len(x.sizes)
}
