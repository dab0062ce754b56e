// Package epub loads EPUB containers into the book model: spine items
// become sections, the NCX navMap becomes the outline tree, and hrefs are
// the destination references.
package epub

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"

	"github.com/0xshellming/foliate/internal/book"
)

// NCX XML structures for parsing toc.ncx.
type ncx struct {
	NavMap navMap `xml:"navMap"`
}

type navMap struct {
	NavPoints []navPoint `xml:"navPoint"`
}

type navPoint struct {
	ID        string     `xml:"id,attr"`
	PlayOrder int        `xml:"playOrder,attr"`
	Label     navLabel   `xml:"navLabel"`
	Content   navContent `xml:"content"`
	Children  []navPoint `xml:"navPoint"`
}

type navLabel struct {
	Text string `xml:"text"`
}

type navContent struct {
	Src string `xml:"src,attr"`
}

// Book is an open EPUB.
type Book struct {
	rc       *epub.ReadCloser
	sections []book.Section
	outline  []book.OutlineNode
	meta     book.Metadata

	// hrefIndex maps each spine item's href, and its base name, to the
	// item's spine position.
	hrefIndex map[string]int
}

type section struct {
	item  *epub.Item
	index int
	size  int
}

// Open opens an EPUB file and builds its section sequence and outline.
func Open(filename string) (*Book, error) {
	rc, err := epub.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	if len(rc.Rootfiles) == 0 {
		rc.Close()
		return nil, fmt.Errorf("open epub: no rootfiles found")
	}
	rf := rc.Rootfiles[0]

	b := &Book{
		rc:        rc,
		hrefIndex: make(map[string]int),
		meta: book.Metadata{
			Title:    rf.Metadata.Title,
			Author:   rf.Metadata.Creator,
			Language: rf.Metadata.Language,
		},
	}

	sizes := uncompressedSizes(filename)
	for _, ref := range rf.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		i := len(b.sections)
		b.sections = append(b.sections, &section{
			item:  ref.Item,
			index: i,
			size:  sizeFor(sizes, ref.Item.HREF),
		})
		if ref.Item.HREF != "" {
			b.hrefIndex[ref.Item.HREF] = i
			b.hrefIndex[path.Base(ref.Item.HREF)] = i
		}
	}

	if ncxData, err := findAndReadNCX(filename, rf); err == nil {
		var t ncx
		if err := xml.Unmarshal(ncxData, &t); err == nil {
			b.outline = toOutline(t.NavMap.NavPoints)
		}
	}

	return b, nil
}

// uncompressedSizes maps archive entry names to their uncompressed sizes.
// Sizes feed the fractional-position index; a missing map just means every
// section weighs the same.
func uncompressedSizes(filename string) map[string]int {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil
	}
	defer zr.Close()
	out := make(map[string]int, len(zr.File))
	for _, f := range zr.File {
		out[f.Name] = int(f.UncompressedSize64)
	}
	return out
}

func sizeFor(sizes map[string]int, href string) int {
	for name, size := range sizes {
		if name == href || strings.HasSuffix(name, "/"+href) {
			return size
		}
	}
	return 1
}

// findAndReadNCX locates the NCX document via the manifest media type,
// falling back to an extension scan of the archive.
func findAndReadNCX(filename string, rf *epub.Rootfile) ([]byte, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var ncxPath string
	for _, item := range rf.Manifest.Items {
		if item.MediaType == "application/x-dtbncx+xml" {
			ncxPath = item.HREF
			break
		}
	}
	if ncxPath == "" {
		for _, f := range zr.File {
			if strings.HasSuffix(strings.ToLower(f.Name), ".ncx") {
				ncxPath = f.Name
				break
			}
		}
	}
	if ncxPath == "" {
		return nil, fmt.Errorf("no NCX file found in EPUB")
	}

	for _, f := range zr.File {
		if f.Name == ncxPath || strings.HasSuffix(f.Name, "/"+ncxPath) || path.Base(f.Name) == path.Base(ncxPath) {
			r, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer r.Close()
			return io.ReadAll(r)
		}
	}
	return nil, fmt.Errorf("NCX file %s not found in archive", ncxPath)
}

// toOutline converts navPoints to the outline tree, preserving nesting.
func toOutline(points []navPoint) []book.OutlineNode {
	var out []book.OutlineNode
	for _, np := range points {
		out = append(out, book.OutlineNode{
			Label:    strings.TrimSpace(np.Label.Text),
			Dest:     np.Content.Src,
			Children: toOutline(np.Children),
		})
	}
	return out
}

func (b *Book) Sections() []book.Section    { return b.sections }
func (b *Book) Outline() []book.OutlineNode { return b.outline }
func (b *Book) Metadata() book.Metadata     { return b.meta }
func (b *Book) Close() error                { b.rc.Close(); return nil }

// SplitHref splits an href into a spine index and an optional fragment id.
// Hrefs match by full path or by base name, mirroring how NCX sources
// reference spine items.
func (b *Book) SplitHref(href string) (int, string, error) {
	name, frag, _ := strings.Cut(href, "#")
	if i, ok := b.hrefIndex[name]; ok {
		return i, frag, nil
	}
	if i, ok := b.hrefIndex[path.Base(name)]; ok {
		return i, frag, nil
	}
	return 0, "", fmt.Errorf("href %q not in spine", href)
}

// ResolveDestination maps an href destination to a spine index.
func (b *Book) ResolveDestination(_ context.Context, dest string) (int, error) {
	i, _, err := b.SplitHref(dest)
	return i, err
}

func (s *section) Index() int             { return s.index }
func (s *section) Size() int              { return s.size }
func (s *section) BaseIdentifier() string { return "" }

func (s *section) read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := s.item.Open()
	if err != nil {
		return nil, fmt.Errorf("open spine item %q: %w", s.item.HREF, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Content extracts the section's plain text.
func (s *section) Content(ctx context.Context) (string, error) {
	data, err := s.read(ctx)
	if err != nil {
		return "", err
	}
	return extractText(string(data)), nil
}

// Document materializes the section as a parsed XHTML tree.
func (s *section) Document(ctx context.Context) (*book.Document, error) {
	data, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parse spine item %q: %w", s.item.HREF, err)
	}
	return book.NewDocument(root, nil), nil
}

// extractText collects the text nodes of an XHTML document.
func extractText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return ""
	}
	var out strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				out.WriteString(t)
				out.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out.String()
}
