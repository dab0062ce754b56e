package textorder

import (
	"strings"
	"testing"
)

func TestReconstructOrdersLinesTopDown(t *testing.T) {
	frags := []Fragment{
		{Text: "bottom", X: 10, Y: 100},
		{Text: "top", X: 10, Y: 700},
		{Text: "middle", X: 10, Y: 400},
	}

	got := Reconstruct(3, frags)
	lines := bodyLines(got)
	want := []string{"top", "middle", "bottom"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestReconstructGroupsByTolerance(t *testing.T) {
	// Three fragments within 5 units of the running anchor form one line,
	// sorted left to right regardless of input order.
	frags := []Fragment{
		{Text: "world", X: 50, Y: 500},
		{Text: "Hello", X: 10, Y: 503},
		{Text: "again", X: 90, Y: 498},
		{Text: "next", X: 10, Y: 480},
	}

	lines := bodyLines(Reconstruct(0, frags))
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), lines)
	}
	if lines[0] != "Hello world again" {
		t.Errorf("grouped line: got %q", lines[0])
	}
	if lines[1] != "next" {
		t.Errorf("second line: got %q", lines[1])
	}
}

func TestReconstructDiscardsEmptyFragments(t *testing.T) {
	frags := []Fragment{
		{Text: "  ", X: 0, Y: 10},
		{Text: "kept", X: 0, Y: 10},
		{Text: "", X: 5, Y: 10},
	}
	lines := bodyLines(Reconstruct(0, frags))
	if len(lines) != 1 || lines[0] != "kept" {
		t.Errorf("got %q, want single %q line", lines, "kept")
	}
}

func TestReconstructEmptyPage(t *testing.T) {
	got := Reconstruct(7, nil)
	if !strings.Contains(got, Placeholder) {
		t.Errorf("empty page should contain placeholder, got %q", got)
	}
	if !strings.Contains(got, "----- page:7 start -----") ||
		!strings.Contains(got, "----- page:7 end -----") {
		t.Errorf("missing page delimiters: %q", got)
	}
}

func TestReconstructDelimitersTagOrdinal(t *testing.T) {
	got := Reconstruct(12, []Fragment{{Text: "x", X: 0, Y: 0}})
	if !strings.HasPrefix(got, "----- page:12 start -----\n") {
		t.Errorf("bad header: %q", got)
	}
	if !strings.HasSuffix(got, "----- page:12 end -----\n") {
		t.Errorf("bad footer: %q", got)
	}
}

// bodyLines strips the delimiter header/footer and returns content lines.
func bodyLines(s string) []string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	if len(lines) < 2 {
		return nil
	}
	return lines[1 : len(lines)-1]
}
