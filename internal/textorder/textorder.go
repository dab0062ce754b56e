// Package textorder reconstructs linear reading order from unordered,
// spatially positioned text fragments, as extracted from one page of a
// paginated format. It is a heuristic: multi-column and rotated layouts are
// approximated, not understood.
package textorder

import (
	"fmt"
	"sort"
	"strings"
)

// LineTolerance is how far apart two fragments' vertical coordinates may be
// while still counting as the same line, in the source coordinate space.
const LineTolerance = 5.0

// Placeholder is emitted when a page has no usable text at all.
const Placeholder = "[no readable text]"

// Fragment is one positioned run of text. X and Y are the horizontal and
// vertical translation of the fragment's placement.
type Fragment struct {
	Text string
	X, Y float64
}

type line struct {
	anchorY float64
	frags   []Fragment
}

// Lines groups fragments into reading-order lines. Fragments with empty
// text are discarded; the rest are grouped by vertical proximity, lines
// ordered top of page first, and fragments within a line left to right.
func Lines(frags []Fragment) []string {
	var lines []*line
	var cur *line
	for _, f := range frags {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		if cur != nil && abs(f.Y-cur.anchorY) <= LineTolerance {
			cur.frags = append(cur.frags, f)
			continue
		}
		cur = &line{anchorY: f.Y, frags: []Fragment{f}}
		lines = append(lines, cur)
	}

	// Top of page first; PDF-style coordinates grow upward.
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].anchorY > lines[j].anchorY
	})

	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		sort.SliceStable(ln.frags, func(i, j int) bool {
			return ln.frags[i].X < ln.frags[j].X
		})
		parts := make([]string, len(ln.frags))
		for i, f := range ln.frags {
			parts[i] = f.Text
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}

// Reconstruct produces a single reading-order string for one page, wrapped
// in page delimiters so pages of a chapter can be concatenated downstream.
// Reconstruction never fails; a page with no usable fragments degrades to a
// placeholder line.
func Reconstruct(pageIndex int, frags []Fragment) string {
	lines := Lines(frags)
	var sb strings.Builder
	fmt.Fprintf(&sb, "----- page:%d start -----\n", pageIndex)
	if len(lines) == 0 {
		sb.WriteString(Placeholder)
		sb.WriteString("\n")
	}
	for _, ln := range lines {
		sb.WriteString(ln)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "----- page:%d end -----\n", pageIndex)
	return sb.String()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
