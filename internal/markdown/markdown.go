// Package markdown loads Markdown files into the book model. The file is
// split into sections at level-1 and level-2 headings; deeper headings stay
// inside their section but still appear in the outline tree. Heading slug
// anchors are the destination references.
package markdown

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"golang.org/x/net/html"

	"github.com/0xshellming/foliate/internal/book"
)

// headerRegex matches markdown headers (# to ######).
var headerRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// sectionSplitLevel is the deepest heading level that starts a new section.
const sectionSplitLevel = 2

// Book is an open Markdown document.
type Book struct {
	sections []book.Section
	outline  []book.OutlineNode
	meta     book.Metadata

	// slugIndex maps heading slugs to the section containing the heading.
	slugIndex map[string]int
}

type section struct {
	index  int
	source []byte
	md     goldmark.Markdown
}

type heading struct {
	level   int
	title   string
	slug    string
	section int
}

// Open reads and sections a Markdown file.
func Open(filename string) (*Book, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open markdown: %w", err)
	}
	defer f.Close()

	md := goldmark.New(goldmark.WithParserOptions(parser.WithAutoHeadingID()))
	b := &Book{
		slugIndex: make(map[string]int),
		meta: book.Metadata{
			Title: strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)),
		},
	}

	var headings []heading
	var chunk bytes.Buffer
	flush := func() {
		if strings.TrimSpace(chunk.String()) == "" {
			chunk.Reset()
			return
		}
		src := make([]byte, chunk.Len())
		copy(src, chunk.Bytes())
		b.sections = append(b.sections, &section{index: len(b.sections), source: src, md: md})
		chunk.Reset()
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if m := headerRegex.FindStringSubmatch(line); m != nil {
			level := len(m[1])
			title := strings.TrimSpace(m[2])
			if level <= sectionSplitLevel {
				flush()
			}
			headings = append(headings, heading{
				level:   level,
				title:   title,
				slug:    slugify(title),
				section: len(b.sections),
			})
		}
		chunk.WriteString(line)
		chunk.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}
	flush()

	if len(b.sections) == 0 {
		b.sections = append(b.sections, &section{index: 0, md: md})
	}
	for _, h := range headings {
		if _, taken := b.slugIndex[h.slug]; !taken {
			b.slugIndex[h.slug] = h.section
		}
	}
	b.outline = buildOutline(headings)
	if len(headings) > 0 {
		b.meta.Title = headings[0].title
	}
	return b, nil
}

// slugify mirrors goldmark's auto heading ids for plain titles: lowercase,
// spaces to dashes, punctuation dropped.
func slugify(title string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		case r == ' ':
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// buildOutline nests the flat heading list back into a tree by level.
func buildOutline(headings []heading) []book.OutlineNode {
	nodes, _ := nest(headings, 0, 0)
	return nodes
}

// nest consumes headings deeper than min, returning them as siblings along
// with the index of the first heading at or above min.
func nest(hs []heading, pos, min int) ([]book.OutlineNode, int) {
	var out []book.OutlineNode
	for pos < len(hs) {
		h := hs[pos]
		if h.level <= min {
			break
		}
		children, next := nest(hs, pos+1, h.level)
		out = append(out, book.OutlineNode{Label: h.title, Dest: "#" + h.slug, Children: children})
		pos = next
	}
	return out, pos
}

func (b *Book) Sections() []book.Section    { return b.sections }
func (b *Book) Outline() []book.OutlineNode { return b.outline }
func (b *Book) Metadata() book.Metadata     { return b.meta }
func (b *Book) Close() error                { return nil }

// ResolveDestination maps a "#slug" destination to the section containing
// that heading.
func (b *Book) ResolveDestination(_ context.Context, dest string) (int, error) {
	i, _, err := b.SplitHref(dest)
	return i, err
}

// SplitHref resolves "#slug" hrefs; the slug doubles as the in-section
// locator since rendered headings carry matching id attributes.
func (b *Book) SplitHref(href string) (int, string, error) {
	slug := strings.TrimPrefix(href, "#")
	if i, ok := b.slugIndex[slug]; ok {
		return i, slug, nil
	}
	return 0, "", fmt.Errorf("no heading for destination %q", href)
}

func (s *section) Index() int             { return s.index }
func (s *section) Size() int              { return len(s.source) + 1 }
func (s *section) BaseIdentifier() string { return "" }

// Content returns the section's raw markdown source.
func (s *section) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(s.source), nil
}

// Document renders the section to HTML and parses it.
func (s *section) Document(ctx context.Context) (*book.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.md.Convert(s.source, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	root, err := html.Parse(&buf)
	if err != nil {
		return nil, fmt.Errorf("parse rendered markdown: %w", err)
	}
	return book.NewDocument(root, nil), nil
}
