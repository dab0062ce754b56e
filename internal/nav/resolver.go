// Package nav resolves heterogeneous navigation targets into concrete
// locations and owns the per-document session state built around them.
package nav

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/0xshellming/foliate/internal/book"
	"github.com/0xshellming/foliate/internal/fraction"
)

// ErrUnresolvable marks navigation targets that cannot be turned into a
// location. Callers report it; they must not crash on it.
var ErrUnresolvable = errors.New("nav: unresolvable navigation target")

// Grammar is the canonical fragment identifier service the resolver calls
// into. The grammar itself is an external collaborator; internal/cfi
// provides one.
type Grammar interface {
	IsIdentifier(s string) bool
	Split(s string) (base, sub string, err error)
	Join(base, sub string) string
	IndexToBase(index int) string
	BaseToIndex(base string) (int, bool)
	ToRange(doc *book.Document, sub string) (book.Range, error)
	FromRange(doc *book.Document, r book.Range) (string, error)
}

// Anchor lazily converts a materialized document into the in-section range
// a location points at. A nil Anchor means "start of section".
type Anchor func(doc *book.Document) (book.Range, error)

// Location is the canonical output of all resolution: a section ordinal
// plus an optional in-section anchor.
type Location struct {
	Index  int
	Anchor Anchor
}

// Resolver resolves the four addressing forms against one open book.
// Resolution never mutates the book; it only reads.
type Resolver struct {
	bk        book.Book
	grammar   Grammar
	fractions *fraction.Index

	baseIndex map[string]int // native section base identifiers
}

// NewResolver builds a resolver over an open book. fractions indexes the
// book's section size weights.
func NewResolver(bk book.Book, g Grammar, fractions *fraction.Index) *Resolver {
	r := &Resolver{bk: bk, grammar: g, fractions: fractions, baseIndex: make(map[string]int)}
	for _, s := range bk.Sections() {
		if base := s.BaseIdentifier(); base != "" {
			r.baseIndex[base] = s.Index()
		}
	}
	return r
}

// Resolve turns a target into a location. Malformed or unknown targets
// fail with an error wrapping ErrUnresolvable; the current location is
// untouched by a failed resolve.
func (r *Resolver) Resolve(ctx context.Context, t Target) (Location, error) {
	switch t := t.(type) {
	case BySection:
		if t.Index < 0 || t.Index >= len(r.bk.Sections()) {
			return Location{}, fmt.Errorf("%w: section %d out of range", ErrUnresolvable, t.Index)
		}
		return Location{Index: t.Index}, nil

	case ByFraction:
		index, within := r.fractions.Locate(t.Value)
		return Location{Index: index, Anchor: fractionAnchor(within)}, nil

	case ByIdentifier:
		return r.resolveIdentifier(t.Identifier)

	case ByDestination:
		return r.resolveDestination(ctx, t.Dest)

	case nil:
		return Location{}, fmt.Errorf("%w: nil target", ErrUnresolvable)

	default:
		return Location{}, fmt.Errorf("%w: unknown target form %T", ErrUnresolvable, t)
	}
}

func (r *Resolver) resolveIdentifier(id string) (Location, error) {
	base, sub, err := r.grammar.Split(id)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	index, ok := r.baseIndex[base]
	if !ok {
		index, ok = r.grammar.BaseToIndex(base)
	}
	if !ok || index < 0 || index >= len(r.bk.Sections()) {
		return Location{}, fmt.Errorf("%w: identifier %q has no section", ErrUnresolvable, id)
	}
	loc := Location{Index: index}
	if sub != "" {
		g := r.grammar
		loc.Anchor = func(doc *book.Document) (book.Range, error) {
			return g.ToRange(doc, sub)
		}
	}
	return loc, nil
}

func (r *Resolver) resolveDestination(ctx context.Context, dest string) (Location, error) {
	if index, locator, err := r.bk.SplitHref(dest); err == nil {
		loc := Location{Index: index}
		if locator != "" {
			loc.Anchor = idAnchor(locator)
		}
		return loc, nil
	}
	index, err := r.bk.ResolveDestination(ctx, dest)
	if err != nil {
		return Location{}, fmt.Errorf("%w: destination %q: %v", ErrUnresolvable, dest, err)
	}
	return Location{Index: index}, nil
}

// ComputeIdentifier produces a full canonical identifier for a section,
// optionally narrowed to an in-document range. With no range it returns the
// section's own base identifier, synthesized from the ordinal when the
// format has no native grammar.
func (r *Resolver) ComputeIdentifier(index int, doc *book.Document, rng *book.Range) (string, error) {
	sections := r.bk.Sections()
	if index < 0 || index >= len(sections) {
		return "", fmt.Errorf("%w: section %d out of range", ErrUnresolvable, index)
	}
	base := sections[index].BaseIdentifier()
	if base == "" {
		base = r.grammar.IndexToBase(index)
	}
	if rng == nil {
		return r.grammar.Join(base, ""), nil
	}
	sub, err := r.grammar.FromRange(doc, *rng)
	if err != nil {
		return "", err
	}
	return r.grammar.Join(base, sub), nil
}

// fractionAnchor locates the text position a given fraction of the way
// through a materialized document.
func fractionAnchor(within float64) Anchor {
	return func(doc *book.Document) (book.Range, error) {
		if doc == nil || doc.Root == nil {
			return book.Range{}, book.ErrNoDocument
		}
		total := 0
		var nodes []*html.Node
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.TextNode {
				nodes = append(nodes, n)
				total += utf8.RuneCountInString(n.Data)
				return
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(doc.Root)
		if total == 0 || len(nodes) == 0 {
			pos := book.Position{Node: doc.Root}
			return book.Range{Start: pos, End: pos}, nil
		}
		if within < 0 {
			within = 0
		}
		if within > 1 {
			within = 1
		}
		target := int(within * float64(total))
		for _, n := range nodes {
			count := utf8.RuneCountInString(n.Data)
			if target <= count {
				pos := book.Position{Node: n, Offset: target}
				return book.Range{Start: pos, End: pos}, nil
			}
			target -= count
		}
		last := nodes[len(nodes)-1]
		pos := book.Position{Node: last, Offset: utf8.RuneCountInString(last.Data)}
		return book.Range{Start: pos, End: pos}, nil
	}
}

// idAnchor finds the element carrying the given id attribute.
func idAnchor(id string) Anchor {
	return func(doc *book.Document) (book.Range, error) {
		if doc == nil || doc.Root == nil {
			return book.Range{}, book.ErrNoDocument
		}
		var found *html.Node
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if found != nil {
				return
			}
			if n.Type == html.ElementNode {
				for _, a := range n.Attr {
					if a.Key == "id" && a.Val == id {
						found = n
						return
					}
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(doc.Root)
		if found == nil {
			return book.Range{}, fmt.Errorf("%w: no element with id %q", ErrUnresolvable, id)
		}
		pos := book.Position{Node: found}
		return book.Range{Start: pos, End: pos}, nil
	}
}
