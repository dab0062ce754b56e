package history

import "testing"

// fakeEntry implements Entry for tests. Fractional entries carry a value.
type fakeEntry struct {
	name string
	frac float64
	isFr bool
}

func (e fakeEntry) Fraction() (float64, bool) { return e.frac, e.isFr }

func plain(name string) fakeEntry { return fakeEntry{name: name} }
func frac(f float64) fakeEntry    { return fakeEntry{frac: f, isFr: true} }

func TestPushDeduplicatesTop(t *testing.T) {
	s := New()
	s.PushState(plain("a"))
	s.PushState(plain("a"))
	if s.Len() != 1 {
		t.Errorf("identical push should dedup: len %d", s.Len())
	}
	s.PushState(plain("b"))
	s.PushState(plain("a"))
	if s.Len() != 3 {
		t.Errorf("non-consecutive duplicates are fine: len %d", s.Len())
	}
}

func TestPushDeduplicatesEqualFractions(t *testing.T) {
	s := New()
	s.PushState(frac(0.25))
	s.PushState(frac(0.25))
	if s.Len() != 1 {
		t.Errorf("equal fractions should dedup: len %d", s.Len())
	}
	s.PushState(frac(0.5))
	if s.Len() != 2 {
		t.Errorf("different fraction should push: len %d", s.Len())
	}
}

func TestBackForwardRestoresTop(t *testing.T) {
	s := New()
	s.PushState(plain("a"))
	s.PushState(plain("b"))

	if !s.Back() {
		t.Fatal("Back should move")
	}
	if got := s.Current().(fakeEntry).name; got != "a" {
		t.Errorf("after Back: current %q", got)
	}
	if !s.Forward() {
		t.Fatal("Forward should move")
	}
	if got := s.Current().(fakeEntry).name; got != "b" {
		t.Errorf("Forward should restore prior top, got %q", got)
	}
}

func TestPushAfterBackTruncatesForward(t *testing.T) {
	s := New()
	s.PushState(plain("a"))
	s.PushState(plain("b"))
	s.PushState(plain("c"))
	s.Back()
	s.Back()
	s.PushState(plain("d"))

	if s.Len() != 2 {
		t.Errorf("forward branch should be discarded: len %d", s.Len())
	}
	if s.CanGoForward() {
		t.Error("no forward history should remain")
	}
	if got := s.Current().(fakeEntry).name; got != "d" {
		t.Errorf("current: %q", got)
	}
}

func TestBoundariesAreSilentNoOps(t *testing.T) {
	s := New()
	if s.Back() || s.Forward() {
		t.Error("empty stack should not move")
	}
	s.PushState(plain("a"))
	if s.Back() {
		t.Error("single entry: no back")
	}
	if s.Forward() {
		t.Error("single entry: no forward")
	}
	if s.CanGoBack() || s.CanGoForward() {
		t.Error("boundary predicates should be false")
	}
}

func TestReplaceStateKeepsPosition(t *testing.T) {
	s := New()
	s.PushState(plain("a"))
	s.PushState(plain("b"))
	s.ReplaceState(plain("b2"))
	if s.Len() != 2 {
		t.Errorf("replace should not grow: len %d", s.Len())
	}
	if got := s.Current().(fakeEntry).name; got != "b2" {
		t.Errorf("current: %q", got)
	}
	s.Back()
	if got := s.Current().(fakeEntry).name; got != "a" {
		t.Errorf("earlier entries untouched: %q", got)
	}
}

func TestNotificationOrdering(t *testing.T) {
	s := New()
	var events []string
	s.OnNavigate(func(Entry) { events = append(events, "nav") })
	s.OnIndexChange(func() { events = append(events, "idx") })

	s.PushState(plain("a"))
	s.PushState(plain("b"))
	s.Back()
	s.Forward()

	want := []string{"idx", "idx", "nav", "idx", "nav", "idx"}
	if len(events) != len(want) {
		t.Fatalf("events: got %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events: got %v, want %v", events, want)
		}
	}
}

func TestClear(t *testing.T) {
	s := New()
	s.PushState(plain("a"))
	s.PushState(plain("b"))
	s.Clear()
	if s.Len() != 0 || s.Current() != nil || s.CanGoBack() || s.CanGoForward() {
		t.Error("Clear should reset to the empty state")
	}
}
