// Package pdf loads PDF files into the book model: one section per page,
// with page text put into reading order by the textorder reconstructor.
// PDFs carry no identifier grammar and, through this loader, no outline;
// the chapter index falls back to its uniform synthesis.
package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/0xshellming/foliate/internal/book"
	"github.com/0xshellming/foliate/internal/textorder"
)

// Book is an open PDF. The underlying file stays open for lazy page access
// until Close.
type Book struct {
	f        *os.File
	r        *pdflib.Reader
	sections []book.Section
	meta     book.Metadata
}

type section struct {
	owner *Book
	index int
}

// Open opens a PDF file and exposes its pages as sections.
func Open(filename string) (*Book, error) {
	f, r, err := pdflib.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	b := &Book{
		f: f,
		r: r,
		meta: book.Metadata{
			Title: strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)),
		},
	}
	for i := 0; i < r.NumPage(); i++ {
		b.sections = append(b.sections, &section{owner: b, index: i})
	}
	return b, nil
}

func (b *Book) Sections() []book.Section    { return b.sections }
func (b *Book) Outline() []book.OutlineNode { return nil }
func (b *Book) Metadata() book.Metadata     { return b.meta }
func (b *Book) Close() error                { return b.f.Close() }

// ResolveDestination understands "page:N" references and bare page
// numbers, both zero-based.
func (b *Book) ResolveDestination(_ context.Context, dest string) (int, error) {
	return b.pageOf(dest)
}

// SplitHref treats hrefs the same way as destinations; pages have no
// in-section locators.
func (b *Book) SplitHref(href string) (int, string, error) {
	i, err := b.pageOf(href)
	return i, "", err
}

func (b *Book) pageOf(ref string) (int, error) {
	s := strings.TrimPrefix(ref, "page:")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n >= len(b.sections) {
		return 0, fmt.Errorf("no page for destination %q", ref)
	}
	return n, nil
}

func (s *section) Index() int             { return s.index }
func (s *section) Size() int              { return 1 }
func (s *section) BaseIdentifier() string { return "" }

// fragments pulls the page's positioned text runs. An unreadable page
// yields no fragments; the reconstructor degrades to its placeholder.
func (s *section) fragments() []textorder.Fragment {
	page := s.owner.r.Page(s.index + 1)
	if page.V.IsNull() {
		return nil
	}
	content := page.Content()
	frags := make([]textorder.Fragment, 0, len(content.Text))
	for _, t := range content.Text {
		frags = append(frags, textorder.Fragment{Text: t.S, X: t.X, Y: t.Y})
	}
	return frags
}

// Content reconstructs the page's reading-order text.
func (s *section) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return textorder.Reconstruct(s.index, s.fragments()), nil
}

// Document synthesizes a navigable document from the reconstructed lines,
// one paragraph per line, so search and identifiers work uniformly across
// formats.
func (s *section) Document(ctx context.Context) (*book.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return synthesizeDocument(textorder.Lines(s.fragments()))
}

func synthesizeDocument(lines []string) (*book.Document, error) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for _, ln := range lines {
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(ln))
		sb.WriteString("</p>")
	}
	sb.WriteString("</body></html>")
	root, err := html.Parse(strings.NewReader(sb.String()))
	if err != nil {
		return nil, fmt.Errorf("synthesize page document: %w", err)
	}
	return book.NewDocument(root, nil), nil
}
