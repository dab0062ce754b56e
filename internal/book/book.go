// Package book defines the format-neutral view of an open document: an
// ordered sequence of lazily-loaded sections, an optional outline tree, and
// the services a format loader provides for resolving destinations. The
// navigation core depends only on this package; format adapters implement it.
package book

import (
	"context"
	"errors"

	"golang.org/x/net/html"
)

// ErrNoDocument is returned by Section.Document for sections that cannot be
// materialized into a navigable document (image-only pages, for example).
var ErrNoDocument = errors.New("book: section has no navigable document")

// Section is one logical unit of content: a chapter file, a page.
// Sections are fixed for the lifetime of an open book and never mutated.
type Section interface {
	// Index is the section's stable ordinal in spine order.
	Index() int

	// Size is the section's relative weight, used for fractional
	// position math. Always at least 1.
	Size() int

	// Content returns the section's extracted text. May perform I/O.
	Content(ctx context.Context) (string, error)

	// Document materializes the section as a navigable document.
	// Returns ErrNoDocument if the section is not navigable.
	// The caller owns the returned document and must Close it.
	Document(ctx context.Context) (*Document, error)

	// BaseIdentifier is the section's own canonical base identifier,
	// or "" when the format has no native identifier grammar.
	BaseIdentifier() string
}

// Book is an open document as produced by a format loader.
type Book interface {
	Sections() []Section
	Outline() []OutlineNode
	Metadata() Metadata

	// ResolveDestination maps a format-opaque destination reference to a
	// section ordinal. May perform I/O.
	ResolveDestination(ctx context.Context, dest string) (int, error)

	// SplitHref splits an href into a section ordinal and an optional
	// in-section locator (a fragment id).
	SplitHref(href string) (index int, locator string, err error)

	Close() error
}

// OutlineNode is one entry of the hierarchical table of contents.
// Dest is a format-opaque destination reference. Immutable once loaded.
type OutlineNode struct {
	Label    string
	Dest     string
	Children []OutlineNode
}

// Metadata holds document metadata. All fields are optional.
type Metadata struct {
	Title    string
	Author   string
	Language string
}

// Document is a materialized, navigable section: a parsed HTML tree plus a
// release hook for whatever per-section resource backs it.
type Document struct {
	Root *html.Node

	closeFn func() error
	closed  bool
}

// NewDocument wraps a parsed tree. closeFn may be nil.
func NewDocument(root *html.Node, closeFn func() error) *Document {
	return &Document{Root: root, closeFn: closeFn}
}

// Close releases the document's backing resource. Safe to call twice.
func (d *Document) Close() error {
	if d == nil || d.closed {
		return nil
	}
	d.closed = true
	if d.closeFn != nil {
		return d.closeFn()
	}
	return nil
}

// Position is a point inside a materialized document: a node plus a rune
// offset into that node's text (0 for element nodes).
type Position struct {
	Node   *html.Node
	Offset int
}

// Range is a span between two positions of the same document. A collapsed
// range (Start == End) addresses a single point.
type Range struct {
	Start Position
	End   Position
}

// Collapsed reports whether the range addresses a single point.
func (r Range) Collapsed() bool {
	return r.Start == r.End
}
