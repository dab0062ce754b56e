package search

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/0xshellming/foliate/internal/book"
)

// Options controls how query text is matched against document text.
// The zero value folds case and diacritics, matching anywhere.
type Options struct {
	MatchCase       bool
	MatchDiacritics bool
	MatchWholeWords bool
}

// excerptContext is how many runes of surrounding text an excerpt keeps on
// each side of a hit.
const excerptContext = 30

type docMatch struct {
	rng     book.Range
	excerpt string
}

// foldRune expands one rune under the matching options. Diacritic folding
// decomposes and drops combining marks.
func foldRune(r rune, opts Options) []rune {
	if !opts.MatchCase {
		r = unicode.ToLower(r)
	}
	if opts.MatchDiacritics {
		return []rune{r}
	}
	var out []rune
	for _, d := range norm.NFD.String(string(r)) {
		if unicode.Is(unicode.Mn, d) {
			continue
		}
		if !opts.MatchCase {
			d = unicode.ToLower(d)
		}
		out = append(out, d)
	}
	return out
}

// foldString folds a whole string; origIdx maps each folded rune back to
// the index of the original rune that produced it.
func foldString(s string, opts Options) (folded []rune, origIdx []int) {
	i := 0
	for _, r := range s {
		for _, f := range foldRune(r, opts) {
			folded = append(folded, f)
			origIdx = append(origIdx, i)
		}
		i++
	}
	return folded, origIdx
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// matchNode finds all occurrences of the folded query in one text node.
func matchNode(n *html.Node, query []rune, opts Options) []docMatch {
	folded, origIdx := foldString(n.Data, opts)
	if len(query) == 0 || len(folded) < len(query) {
		return nil
	}
	orig := []rune(n.Data)

	var out []docMatch
	for i := 0; i+len(query) <= len(folded); i++ {
		if !runesEqual(folded[i:i+len(query)], query) {
			continue
		}
		if opts.MatchWholeWords {
			if i > 0 && isWordRune(folded[i-1]) {
				continue
			}
			if end := i + len(query); end < len(folded) && isWordRune(folded[end]) {
				continue
			}
		}
		start := origIdx[i]
		end := origIdx[i+len(query)-1] + 1
		out = append(out, docMatch{
			rng: book.Range{
				Start: book.Position{Node: n, Offset: start},
				End:   book.Position{Node: n, Offset: end},
			},
			excerpt: excerpt(orig, start, end),
		})
	}
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func excerpt(orig []rune, start, end int) string {
	lo := start - excerptContext
	hi := end + excerptContext
	var sb strings.Builder
	if lo < 0 {
		lo = 0
	} else if lo > 0 {
		sb.WriteString("…")
	}
	trailing := hi < len(orig)
	if hi > len(orig) {
		hi = len(orig)
	}
	sb.WriteString(string(orig[lo:hi]))
	if trailing {
		sb.WriteString("…")
	}
	return sb.String()
}

// skipElement marks subtrees whose text is never content.
func skipElement(name string) bool {
	switch name {
	case "script", "style", "head", "template":
		return true
	}
	return false
}

// findMatches runs the matcher over every content text node of a
// materialized document, in document order.
func findMatches(doc *book.Document, query string, opts Options) []docMatch {
	q, _ := foldString(query, opts)
	if len(q) == 0 || doc == nil || doc.Root == nil {
		return nil
	}
	var out []docMatch
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElement(n.Data) {
			return
		}
		if n.Type == html.TextNode {
			out = append(out, matchNode(n, q, opts)...)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc.Root)
	return out
}
