package fraction

import (
	"math"
	"testing"
)

func TestLocateEnds(t *testing.T) {
	x := New([]int{10, 20, 30})

	if s, w := x.Locate(0); s != 0 || w != 0 {
		t.Errorf("Locate(0): got %d,%v", s, w)
	}
	if s, w := x.Locate(1); s != 2 || w != 1 {
		t.Errorf("Locate(1): got %d,%v", s, w)
	}
	if s, _ := x.Locate(-0.5); s != 0 {
		t.Errorf("Locate(-0.5): got section %d", s)
	}
	if s, _ := x.Locate(1.5); s != 2 {
		t.Errorf("Locate(1.5): got section %d", s)
	}
}

func TestLocateWeighted(t *testing.T) {
	// Sections weigh 10, 20, 30: boundaries at 1/6 and 1/2.
	x := New([]int{10, 20, 30})

	if s, _ := x.Locate(0.1); s != 0 {
		t.Errorf("0.1 should land in section 0, got %d", s)
	}
	if s, _ := x.Locate(0.25); s != 1 {
		t.Errorf("0.25 should land in section 1, got %d", s)
	}
	if s, w := x.Locate(0.75); s != 2 || math.Abs(w-0.5) > 1e-9 {
		t.Errorf("0.75: got section %d within %v, want 2 within 0.5", s, w)
	}
}

func TestRoundTrip(t *testing.T) {
	x := New([]int{3, 1, 7, 2, 5})
	for _, f := range []float64{0.01, 0.2, 0.5, 0.77, 0.99} {
		s, w := x.Locate(f)
		back := x.FractionOf(s, w)
		if math.Abs(back-f) > 1e-9 {
			t.Errorf("round trip %v -> (%d,%v) -> %v", f, s, w, back)
		}
	}
}

func TestZeroWeightSections(t *testing.T) {
	x := New([]int{0, 0, 0})
	if x.SectionCount() != 3 {
		t.Fatalf("section count: got %d", x.SectionCount())
	}
	s, _ := x.Locate(0.5)
	if s < 0 || s > 2 {
		t.Errorf("Locate on zero weights out of bounds: %d", s)
	}
}

func TestEmptyIndex(t *testing.T) {
	x := New(nil)
	if s, w := x.Locate(0.5); s != 0 || w != 0 {
		t.Errorf("empty Locate: got %d,%v", s, w)
	}
	if f := x.FractionOf(0, 0.5); f != 0 {
		t.Errorf("empty FractionOf: got %v", f)
	}
}
