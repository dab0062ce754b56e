// Package toc flattens an outline tree into an ordered chapter index and
// resolves section ordinals to the chapter range that contains them.
package toc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/0xshellming/foliate/internal/book"
)

// uniformStride is the boundary spacing used when a document has no outline.
const uniformStride = 10

// FlatEntry is one outline node projected to a level-tagged record.
// Children holds the node's original subitems so callers can round-trip
// back to the tree shape.
type FlatEntry struct {
	Label    string
	Dest     string
	Level    int
	Children []book.OutlineNode
}

// Flatten projects an outline tree to a pre-order sequence. The root nodes
// get level 0; each nesting step increments the level.
func Flatten(nodes []book.OutlineNode) []FlatEntry {
	return flattenAt(nodes, 0)
}

func flattenAt(nodes []book.OutlineNode, level int) []FlatEntry {
	var out []FlatEntry
	for _, n := range nodes {
		out = append(out, FlatEntry{
			Label:    n.Label,
			Dest:     n.Dest,
			Level:    level,
			Children: n.Children,
		})
		if len(n.Children) > 0 {
			out = append(out, flattenAt(n.Children, level+1)...)
		}
	}
	return out
}

// ChapterRange is a half-open interval [Start, End) of section ordinals
// owned by one outline entry. Start is -1 when the entry's destination
// could not be resolved; such entries keep their place in the list but are
// skipped by lookups.
type ChapterRange struct {
	Index int // ordinal of the owning outline entry
	Label string
	URL   string
	Level int
	Start int
	End   int
	Path  string
}

// Index is the ordered chapter index for one open document.
type Index struct {
	Ranges       []ChapterRange
	SectionCount int

	// Cache memoizes RangeFor results by path. The owning session may
	// replace it with a shared content cache.
	Cache map[string]ChapterRange
}

// ResolveFunc maps a destination reference to a section ordinal.
type ResolveFunc func(ctx context.Context, dest string) (int, error)

// BuildChapterIndex builds the chapter index for a document. When the
// outline flattens to fewer than two entries, a uniform index with one
// boundary every ten sections is synthesized instead, so chapter navigation
// is available even for outline-less documents. Destination resolution
// failures are logged and leave that one entry unresolved; they never abort
// the rest of the build.
func BuildChapterIndex(ctx context.Context, outline []book.OutlineNode, sectionCount int, resolve ResolveFunc, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Index{
		SectionCount: sectionCount,
		Cache:        make(map[string]ChapterRange),
	}

	flat := Flatten(outline)
	if len(flat) < 2 {
		idx.Ranges = uniformRanges(sectionCount)
		return idx
	}

	kept := selectEntries(flat)
	for i, e := range kept {
		r := ChapterRange{
			Index: i,
			Label: e.Label,
			URL:   e.Dest,
			Level: e.Level,
			Start: -1,
			End:   -1,
		}
		start, err := resolve(ctx, e.Dest)
		if err != nil {
			logger.Warn("chapter destination unresolved",
				"label", e.Label, "dest", e.Dest, "err", err)
		} else {
			r.Start = start
		}
		idx.Ranges = append(idx.Ranges, r)
	}

	// Each resolved entry ends where the next resolved entry starts; the
	// final one runs to the section count.
	next := sectionCount
	for i := len(idx.Ranges) - 1; i >= 0; i-- {
		if idx.Ranges[i].Start < 0 {
			continue
		}
		idx.Ranges[i].End = next
		next = idx.Ranges[i].Start
	}
	return idx
}

// selectEntries applies the level-keep rule: when any entry sits at level 1
// or 2, keep the level-2 entries plus the childless entries at level <= 1;
// a flat outline (everything at level 0 with no nesting) is kept whole.
func selectEntries(flat []FlatEntry) []FlatEntry {
	hasNested := false
	for _, e := range flat {
		if e.Level == 1 || e.Level == 2 {
			hasNested = true
			break
		}
	}
	if !hasNested {
		return flat
	}
	var kept []FlatEntry
	for _, e := range flat {
		if e.Level == 2 || (e.Level <= 1 && len(e.Children) == 0) {
			kept = append(kept, e)
		}
	}
	return kept
}

func uniformRanges(sectionCount int) []ChapterRange {
	var out []ChapterRange
	for start := 0; start < sectionCount; start += uniformStride {
		end := start + uniformStride
		if end > sectionCount {
			end = sectionCount
		}
		out = append(out, ChapterRange{
			Index: len(out),
			Label: fmt.Sprintf("Page %d", start+1),
			URL:   fmt.Sprintf("page:%d", start),
			Start: start,
			End:   end,
		})
	}
	return out
}

// RangeFor returns the chapter range containing the given section ordinal.
// An ordinal before the first resolved boundary gets a synthetic range
// covering [0, firstStart) with the path "page:0-end". Results are memoized
// by path in the index cache.
func (x *Index) RangeFor(index int) ChapterRange {
	first := -1
	for _, r := range x.Ranges {
		if r.Start >= 0 {
			first = r.Start
			break
		}
	}
	if first < 0 {
		// Nothing resolved at all; one synthetic range covers the book.
		return x.memo(ChapterRange{Start: 0, End: x.SectionCount, Path: "page:0-end"})
	}
	if index < first {
		return x.memo(ChapterRange{Start: 0, End: first, Path: "page:0-end"})
	}
	var found ChapterRange
	for _, r := range x.Ranges {
		if r.Start < 0 {
			continue
		}
		if index >= r.Start && index < r.End {
			found = r
			break
		}
	}
	if found.Path == "" {
		found.Path = fmt.Sprintf("page:%d-%d", found.Start, found.End)
	}
	return x.memo(found)
}

func (x *Index) memo(r ChapterRange) ChapterRange {
	if x.Cache == nil {
		x.Cache = make(map[string]ChapterRange)
	}
	if cached, ok := x.Cache[r.Path]; ok {
		return cached
	}
	x.Cache[r.Path] = r
	return r
}

// NextBoundary returns the first resolved boundary strictly after index.
// ok is false when index is at or past the last boundary.
func (x *Index) NextBoundary(index int) (boundary int, ok bool) {
	for _, r := range x.Ranges {
		if r.Start > index {
			return r.Start, true
		}
	}
	return 0, false
}

// PrevBoundary returns the last resolved boundary strictly before index.
// ok is false when index is at or before the first boundary.
func (x *Index) PrevBoundary(index int) (boundary int, ok bool) {
	found := false
	boundary = 0
	for _, r := range x.Ranges {
		if r.Start >= 0 && r.Start < index {
			boundary = r.Start
			found = true
		}
	}
	return boundary, found
}
