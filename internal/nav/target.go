package nav

// Target is a navigation target: one of four explicit addressing forms.
// Targets are small comparable values; they double as the opaque entries of
// the back/forward history.
type Target interface {
	// Fraction reports the fractional position carried by the target, if
	// it is a fractional record.
	Fraction() (float64, bool)

	isTarget()
}

// BySection addresses a section by its bare ordinal.
type BySection struct {
	Index int
}

// ByFraction addresses a fractional position in [0,1] over the whole
// document's weighted size.
type ByFraction struct {
	Value float64
}

// ByIdentifier addresses a point or range through a canonical fragment
// identifier string.
type ByIdentifier struct {
	Identifier string
}

// ByDestination addresses a format-opaque destination reference: an href,
// a named destination, a serialized destination key.
type ByDestination struct {
	Dest string
}

func (BySection) isTarget()     {}
func (ByFraction) isTarget()    {}
func (ByIdentifier) isTarget()  {}
func (ByDestination) isTarget() {}

func (BySection) Fraction() (float64, bool)     { return 0, false }
func (t ByFraction) Fraction() (float64, bool)  { return t.Value, true }
func (ByIdentifier) Fraction() (float64, bool)  { return 0, false }
func (ByDestination) Fraction() (float64, bool) { return 0, false }

// ParseTarget classifies a raw navigation string: identifier-shaped strings
// become ByIdentifier, everything else a destination reference.
func ParseTarget(s string, g Grammar) Target {
	if g.IsIdentifier(s) {
		return ByIdentifier{Identifier: s}
	}
	return ByDestination{Dest: s}
}
