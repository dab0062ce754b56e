// Package history keeps a deduplicating back/forward stack over opaque
// location descriptors, with the familiar browser-history truncation rule:
// pushing after going back discards the abandoned forward branch.
package history

// Entry is an opaque location descriptor. Entries must be comparable; the
// stack never inspects them beyond equality and the fraction hooks below.
type Entry interface {
	// Fraction returns the entry's fractional position and whether the
	// entry is a fractional record at all. Two consecutive fractional
	// entries with equal fractions deduplicate even when not identical.
	Fraction() (float64, bool)
}

// Stack is a growable ordered sequence with a current position. The zero
// value is empty, position -1.
type Stack struct {
	entries []Entry
	pos     int

	onNavigate    []func(Entry)
	onIndexChange []func()
}

// New returns an empty stack.
func New() *Stack {
	return &Stack{pos: -1}
}

// OnNavigate registers a callback invoked with the target entry whenever
// Back or Forward moves the position.
func (s *Stack) OnNavigate(fn func(Entry)) {
	s.onNavigate = append(s.onNavigate, fn)
}

// OnIndexChange registers a callback invoked whenever the current position
// changes. A navigation notification is always immediately followed by an
// index-change notification.
func (s *Stack) OnIndexChange(fn func()) {
	s.onIndexChange = append(s.onIndexChange, fn)
}

func (s *Stack) notifyNavigate(e Entry) {
	for _, fn := range s.onNavigate {
		fn(e)
	}
}

func (s *Stack) notifyIndexChange() {
	for _, fn := range s.onIndexChange {
		fn()
	}
}

func sameEntry(a, b Entry) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	fa, oka := a.Fraction()
	fb, okb := b.Fraction()
	return oka && okb && fa == fb
}

// PushState appends an entry after the current position, truncating any
// forward branch, and advances the position. Pushing an entry equal to the
// current top (or a fractional record with the same fraction) is a no-op.
func (s *Stack) PushState(e Entry) {
	if s.pos >= 0 && sameEntry(s.entries[s.pos], e) {
		return
	}
	s.entries = append(s.entries[:s.pos+1], e)
	s.pos++
	s.notifyIndexChange()
}

// ReplaceState overwrites the entry at the current position without moving
// it. On an empty stack it behaves like PushState.
func (s *Stack) ReplaceState(e Entry) {
	if s.pos < 0 {
		s.PushState(e)
		return
	}
	s.entries[s.pos] = e
}

// CanGoBack reports whether Back would move.
func (s *Stack) CanGoBack() bool { return s.pos > 0 }

// CanGoForward reports whether Forward would move.
func (s *Stack) CanGoForward() bool { return s.pos >= 0 && s.pos < len(s.entries)-1 }

// Back moves the position one entry back and reports whether it moved.
// At the boundary it is a silent no-op.
func (s *Stack) Back() bool {
	if !s.CanGoBack() {
		return false
	}
	s.pos--
	s.notifyNavigate(s.entries[s.pos])
	s.notifyIndexChange()
	return true
}

// Forward moves the position one entry forward and reports whether it moved.
func (s *Stack) Forward() bool {
	if !s.CanGoForward() {
		return false
	}
	s.pos++
	s.notifyNavigate(s.entries[s.pos])
	s.notifyIndexChange()
	return true
}

// Current returns the entry at the current position, or nil when empty.
func (s *Stack) Current() Entry {
	if s.pos < 0 {
		return nil
	}
	return s.entries[s.pos]
}

// Len returns the number of entries held.
func (s *Stack) Len() int { return len(s.entries) }

// Clear resets the stack to empty, position -1. Used on document close.
func (s *Stack) Clear() {
	s.entries = nil
	s.pos = -1
}
