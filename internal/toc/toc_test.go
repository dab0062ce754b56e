package toc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/0xshellming/foliate/internal/book"
)

func node(label string, children ...book.OutlineNode) book.OutlineNode {
	return book.OutlineNode{Label: label, Dest: label, Children: children}
}

func TestFlattenPreOrderAndLevels(t *testing.T) {
	tree := []book.OutlineNode{
		node("A",
			node("A1", node("A1a")),
			node("A2"),
		),
		node("B"),
	}

	flat := Flatten(tree)

	wantLabels := []string{"A", "A1", "A1a", "A2", "B"}
	wantLevels := []int{0, 1, 2, 1, 0}
	if len(flat) != len(wantLabels) {
		t.Fatalf("got %d entries, want %d", len(flat), len(wantLabels))
	}
	for i, e := range flat {
		if e.Label != wantLabels[i] {
			t.Errorf("entry %d: got label %q, want %q", i, e.Label, wantLabels[i])
		}
		if e.Level != wantLevels[i] {
			t.Errorf("entry %d (%s): got level %d, want %d", i, e.Label, e.Level, wantLevels[i])
		}
	}
}

func TestFlattenLengthEqualsNodeCount(t *testing.T) {
	var build func(depth, width int) []book.OutlineNode
	var count int
	build = func(depth, width int) []book.OutlineNode {
		if depth == 0 {
			return nil
		}
		var out []book.OutlineNode
		for i := 0; i < width; i++ {
			count++
			out = append(out, book.OutlineNode{
				Label:    fmt.Sprintf("d%dw%d", depth, i),
				Children: build(depth-1, width),
			})
		}
		return out
	}
	count = 0
	tree := build(4, 3)

	if got := len(Flatten(tree)); got != count {
		t.Errorf("flatten length %d, want node count %d", got, count)
	}
}

func resolveByLabel(m map[string]int) ResolveFunc {
	return func(_ context.Context, dest string) (int, error) {
		if i, ok := m[dest]; ok {
			return i, nil
		}
		return 0, errors.New("unknown destination")
	}
}

func TestBuildChapterIndexWorkedExample(t *testing.T) {
	outline := []book.OutlineNode{
		node("A", node("A1"), node("A2")),
	}
	idx := BuildChapterIndex(context.Background(), outline, 20,
		resolveByLabel(map[string]int{"A": 0, "A1": 3, "A2": 7}), nil)

	// A has children, so with level-1 entries present only A1 and A2 are kept.
	if len(idx.Ranges) != 2 {
		t.Fatalf("got %d ranges, want 2: %+v", len(idx.Ranges), idx.Ranges)
	}
	if idx.Ranges[0].Start != 3 || idx.Ranges[0].End != 7 {
		t.Errorf("A1 range: got [%d,%d), want [3,7)", idx.Ranges[0].Start, idx.Ranges[0].End)
	}
	if idx.Ranges[1].Start != 7 || idx.Ranges[1].End != 20 {
		t.Errorf("A2 range: got [%d,%d), want [7,20)", idx.Ranges[1].Start, idx.Ranges[1].End)
	}

	pre := idx.RangeFor(1)
	if pre.Start != 0 || pre.End != 3 || pre.Path != "page:0-end" {
		t.Errorf("pre-first range: got %+v", pre)
	}
}

func TestBuildChapterIndexFlatOutlineKeptWhole(t *testing.T) {
	outline := []book.OutlineNode{node("one"), node("two"), node("three")}
	idx := BuildChapterIndex(context.Background(), outline, 30,
		resolveByLabel(map[string]int{"one": 0, "two": 10, "three": 20}), nil)

	if len(idx.Ranges) != 3 {
		t.Fatalf("got %d ranges, want 3", len(idx.Ranges))
	}
	for i, want := range []int{0, 10, 20} {
		if idx.Ranges[i].Start != want {
			t.Errorf("range %d start: got %d, want %d", i, idx.Ranges[i].Start, want)
		}
	}
}

func TestBuildChapterIndexBadDestinationSkipped(t *testing.T) {
	outline := []book.OutlineNode{node("good"), node("bad"), node("also")}
	idx := BuildChapterIndex(context.Background(), outline, 12,
		resolveByLabel(map[string]int{"good": 0, "also": 6}), nil)

	if len(idx.Ranges) != 3 {
		t.Fatalf("failed entry should still appear: got %d ranges", len(idx.Ranges))
	}
	if idx.Ranges[1].Start != -1 {
		t.Errorf("bad entry should be unresolved, got start %d", idx.Ranges[1].Start)
	}
	// The resolved neighbors stay contiguous around the failed entry.
	if idx.Ranges[0].End != 6 {
		t.Errorf("good entry end: got %d, want 6", idx.Ranges[0].End)
	}
	if r := idx.RangeFor(3); r.Start != 0 || r.End != 6 {
		t.Errorf("RangeFor(3): got [%d,%d), want [0,6)", r.Start, r.End)
	}
}

func TestSynthesizedUniformIndex(t *testing.T) {
	for _, n := range []int{1, 9, 10, 11, 25, 100} {
		idx := BuildChapterIndex(context.Background(), nil, n, nil, nil)
		want := (n + uniformStride - 1) / uniformStride
		if len(idx.Ranges) != want {
			t.Errorf("n=%d: got %d boundaries, want %d", n, len(idx.Ranges), want)
			continue
		}
		for i, r := range idx.Ranges {
			if r.Start != i*uniformStride {
				t.Errorf("n=%d boundary %d: start %d", n, i, r.Start)
			}
			if r.End > n {
				t.Errorf("n=%d boundary %d: end %d past section count", n, i, r.End)
			}
		}
	}
}

func TestRangeForPartitionsSections(t *testing.T) {
	const n = 40
	outline := []book.OutlineNode{node("a"), node("b"), node("c")}
	idx := BuildChapterIndex(context.Background(), outline, n,
		resolveByLabel(map[string]int{"a": 5, "b": 17, "c": 29}), nil)

	for i := 0; i < n; i++ {
		r := idx.RangeFor(i)
		if i < r.Start || i >= r.End {
			t.Fatalf("index %d outside its range [%d,%d)", i, r.Start, r.End)
		}
		// Every index inside the range maps back to the same range.
		for j := r.Start; j < r.End; j++ {
			if got := idx.RangeFor(j); got.Start != r.Start || got.End != r.End {
				t.Fatalf("index %d and %d disagree on range", i, j)
			}
		}
	}
}

func TestRangeForMemoizes(t *testing.T) {
	idx := BuildChapterIndex(context.Background(), nil, 30, nil, nil)
	a := idx.RangeFor(12)
	if _, ok := idx.Cache[a.Path]; !ok {
		t.Fatalf("lookup result not cached under %q", a.Path)
	}
	b := idx.RangeFor(12)
	if a != b {
		t.Errorf("memoized lookup differs: %+v vs %+v", a, b)
	}
}

func TestBoundaryNavigation(t *testing.T) {
	outline := []book.OutlineNode{node("a"), node("b"), node("c")}
	idx := BuildChapterIndex(context.Background(), outline, 30,
		resolveByLabel(map[string]int{"a": 4, "b": 12, "c": 20}), nil)

	if b, ok := idx.NextBoundary(4); !ok || b != 12 {
		t.Errorf("NextBoundary(4): got %d,%v, want 12,true", b, ok)
	}
	if _, ok := idx.NextBoundary(20); ok {
		t.Error("NextBoundary past last boundary should fail")
	}
	if b, ok := idx.PrevBoundary(12); !ok || b != 4 {
		t.Errorf("PrevBoundary(12): got %d,%v, want 4,true", b, ok)
	}
	if _, ok := idx.PrevBoundary(4); ok {
		t.Error("PrevBoundary at first boundary should fail")
	}

	// prev(next(i)) never advances past i, including exactly on a boundary.
	for _, i := range []int{4, 5, 12, 13, 19} {
		next, ok := idx.NextBoundary(i)
		if !ok {
			continue
		}
		prev, ok := idx.PrevBoundary(next)
		if !ok {
			continue
		}
		if prev > i {
			t.Errorf("prev(next(%d)) = %d advanced past start", i, prev)
		}
	}
}
