// Package cfi implements a canonical fragment identifier grammar in the
// shape of EPUB CFI: element child steps are even numbers, text chunks get
// odd numbers, ':' introduces a character offset, and '!' separates the
// spine-level base from the in-section path. The navigation core treats
// identifiers as opaque strings and only calls the operations here.
package cfi

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/0xshellming/foliate/internal/book"
)

// ErrInvalid marks strings that are not fragment identifiers or paths that
// do not fit the document they are resolved against.
var ErrInvalid = errors.New("cfi: invalid fragment identifier")

var shape = regexp.MustCompile(`^epubcfi\(.+\)$`)

// IsIdentifier is the fast-path recognizer for identifier-shaped strings.
func IsIdentifier(s string) bool {
	return shape.MatchString(s)
}

func wrap(inner string) string { return "epubcfi(" + inner + ")" }

func unwrap(s string) (string, error) {
	m := shape.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return strings.TrimSuffix(strings.TrimPrefix(s, "epubcfi("), ")"), nil
}

// Split divides a full identifier into its spine-level base and its
// in-section path. The sub part is empty for a section's bare base
// identifier.
func Split(s string) (base, sub string, err error) {
	inner, err := unwrap(s)
	if err != nil {
		return "", "", err
	}
	if i := strings.IndexByte(inner, '!'); i >= 0 {
		return inner[:i], inner[i+1:], nil
	}
	return inner, "", nil
}

// Join composes a base address with an in-section path into one full
// identifier. An empty sub yields the bare base identifier.
func Join(base, sub string) string {
	if sub == "" {
		return wrap(base)
	}
	return wrap(base + "!" + sub)
}

// FromIndex synthesizes a base address from a section ordinal, for formats
// with no native identifier grammar. The spine container is step 6 and
// spine children are even steps, so section i becomes /6/2(i+1).
func FromIndex(i int) string {
	return fmt.Sprintf("/6/%d", 2*(i+1))
}

// ToIndex recovers a section ordinal from a base address produced by
// FromIndex (or any base whose second step follows spine numbering).
func ToIndex(base string) (int, bool) {
	parts := strings.Split(strings.TrimPrefix(base, "/"), "/")
	if len(parts) < 2 || parts[0] != "6" {
		return 0, false
	}
	// Strip any assertion or offset trailing the step number.
	num := parts[1]
	if i := strings.IndexAny(num, "[:~"); i >= 0 {
		num = num[:i]
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 2 || n%2 != 0 {
		return 0, false
	}
	return n/2 - 1, true
}

type step struct {
	index     int
	offset    int
	hasOffset bool
}

func parsePath(p string) ([]step, error) {
	if p == "" || p[0] != '/' {
		return nil, fmt.Errorf("%w: path %q", ErrInvalid, p)
	}
	var steps []step
	for _, raw := range strings.Split(p[1:], "/") {
		// Drop [assertions] anywhere in the step.
		for {
			open := strings.IndexByte(raw, '[')
			if open < 0 {
				break
			}
			end := strings.IndexByte(raw[open:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated assertion in %q", ErrInvalid, raw)
			}
			raw = raw[:open] + raw[open+end+1:]
		}
		var st step
		if colon := strings.IndexByte(raw, ':'); colon >= 0 {
			off, err := strconv.Atoi(raw[colon+1:])
			if err != nil {
				return nil, fmt.Errorf("%w: offset in %q", ErrInvalid, raw)
			}
			st.offset = off
			st.hasOffset = true
			raw = raw[:colon]
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: step %q", ErrInvalid, raw)
		}
		st.index = n
		steps = append(steps, st)
	}
	return steps, nil
}

// childAt returns the child addressed by a CFI step number: even steps
// count element children (2, 4, ...), odd steps address the text chunk
// after that many element children.
func childAt(parent *html.Node, index int) (*html.Node, error) {
	if index%2 == 0 {
		want := index / 2
		n := 0
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				n++
				if n == want {
					return c, nil
				}
			}
		}
		return nil, fmt.Errorf("%w: no element child %d", ErrInvalid, index)
	}
	skip := (index - 1) / 2
	n := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			n++
			continue
		}
		if c.Type == html.TextNode && n == skip {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: no text chunk %d", ErrInvalid, index)
}

func resolvePath(root *html.Node, steps []step) (book.Position, error) {
	node := root
	var pos book.Position
	for _, st := range steps {
		child, err := childAt(node, st.index)
		if err != nil {
			return book.Position{}, err
		}
		node = child
		pos = book.Position{Node: node}
		if st.hasOffset {
			pos.Offset = st.offset
		}
	}
	if node == root {
		return book.Position{}, fmt.Errorf("%w: empty path", ErrInvalid)
	}
	if pos.Node.Type == html.TextNode {
		if max := utf8.RuneCountInString(pos.Node.Data); pos.Offset > max {
			pos.Offset = max
		}
	}
	return pos, nil
}

// stepOf computes the CFI step number of a node within its parent.
func stepOf(n *html.Node) int {
	elems := 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c == n {
			if n.Type == html.ElementNode {
				return 2 * (elems + 1)
			}
			return 2*elems + 1
		}
		if c.Type == html.ElementNode {
			elems++
		}
	}
	return 0
}

func pathTo(root *html.Node, pos book.Position) (string, error) {
	if pos.Node == nil {
		return "", fmt.Errorf("%w: position without node", ErrInvalid)
	}
	var steps []string
	for n := pos.Node; n != root; n = n.Parent {
		if n.Parent == nil {
			return "", fmt.Errorf("%w: node outside document", ErrInvalid)
		}
		steps = append(steps, strconv.Itoa(stepOf(n)))
	}
	var sb strings.Builder
	for i := len(steps) - 1; i >= 0; i-- {
		sb.WriteByte('/')
		sb.WriteString(steps[i])
	}
	if pos.Node.Type == html.TextNode {
		fmt.Fprintf(&sb, ":%d", pos.Offset)
	}
	return sb.String(), nil
}

// ToRange resolves an in-section path against a materialized document. A
// path with a ',' is a range of two positions; otherwise the result is a
// collapsed range at one point.
func ToRange(doc *book.Document, sub string) (book.Range, error) {
	if doc == nil || doc.Root == nil {
		return book.Range{}, fmt.Errorf("%w: no document", ErrInvalid)
	}
	if comma := strings.IndexByte(sub, ','); comma >= 0 {
		start, err := resolveOne(doc.Root, sub[:comma])
		if err != nil {
			return book.Range{}, err
		}
		end, err := resolveOne(doc.Root, sub[comma+1:])
		if err != nil {
			return book.Range{}, err
		}
		return book.Range{Start: start, End: end}, nil
	}
	pos, err := resolveOne(doc.Root, sub)
	if err != nil {
		return book.Range{}, err
	}
	return book.Range{Start: pos, End: pos}, nil
}

func resolveOne(root *html.Node, p string) (book.Position, error) {
	steps, err := parsePath(p)
	if err != nil {
		return book.Position{}, err
	}
	return resolvePath(root, steps)
}

// FromRange converts a document range to an in-section path, the inverse of
// ToRange. Collapsed ranges produce a single path.
func FromRange(doc *book.Document, r book.Range) (string, error) {
	if doc == nil || doc.Root == nil {
		return "", fmt.Errorf("%w: no document", ErrInvalid)
	}
	start, err := pathTo(doc.Root, r.Start)
	if err != nil {
		return "", err
	}
	if r.Collapsed() {
		return start, nil
	}
	end, err := pathTo(doc.Root, r.End)
	if err != nil {
		return "", err
	}
	return start + "," + end, nil
}

// Grammar bundles the package operations behind the interface shape the
// navigation core consumes.
type Grammar struct{}

func (Grammar) IsIdentifier(s string) bool                  { return IsIdentifier(s) }
func (Grammar) Split(s string) (string, string, error)      { return Split(s) }
func (Grammar) Join(base, sub string) string                { return Join(base, sub) }
func (Grammar) IndexToBase(i int) string                    { return FromIndex(i) }
func (Grammar) BaseToIndex(base string) (int, bool)         { return ToIndex(base) }
func (Grammar) ToRange(d *book.Document, sub string) (book.Range, error) {
	return ToRange(d, sub)
}
func (Grammar) FromRange(d *book.Document, r book.Range) (string, error) {
	return FromRange(d, r)
}
