package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/0xshellming/foliate/internal/book"
)

// fakeSection materializes a fixed HTML string. A nil html source means the
// section has no navigable document.
type fakeSection struct {
	index  int
	src    string
	broken bool
	closes *int
}

func (s *fakeSection) Index() int             { return s.index }
func (s *fakeSection) Size() int              { return len(s.src) + 1 }
func (s *fakeSection) BaseIdentifier() string { return "" }

func (s *fakeSection) Content(context.Context) (string, error) { return s.src, nil }

func (s *fakeSection) Document(context.Context) (*book.Document, error) {
	if s.broken {
		return nil, errors.New("materialization failed")
	}
	if s.src == "" {
		return nil, book.ErrNoDocument
	}
	root, err := html.Parse(strings.NewReader(s.src))
	if err != nil {
		return nil, err
	}
	return book.NewDocument(root, func() error {
		if s.closes != nil {
			*s.closes++
		}
		return nil
	}), nil
}

func sections(srcs ...string) []book.Section {
	out := make([]book.Section, len(srcs))
	for i, s := range srcs {
		out[i] = &fakeSection{index: i, src: s}
	}
	return out
}

func fakeComputeID(index int, _ *book.Document, rng book.Range) (string, error) {
	return fmt.Sprintf("epubcfi(/6/%d!/%d)", 2*(index+1), rng.Start.Offset), nil
}

func drain(p *Pipeline) []Result {
	var out []Result
	for {
		r, ok := p.Next()
		if !ok {
			return out
		}
		out = append(out, r)
	}
}

func TestZeroHitQueryStillHeartbeats(t *testing.T) {
	secs := sections(
		"<p>alpha</p>",
		"<p>beta</p>",
		"<p>gamma</p>",
	)
	p := New(context.Background(), secs, "nothing here", Options{}, NewRegistry(), fakeComputeID, nil)
	results := drain(p)

	var progress int
	for _, r := range results {
		switch r.Kind {
		case KindProgress:
			progress++
		case KindSectionHits:
			t.Errorf("unexpected hits: %+v", r)
		}
	}
	if progress != len(secs) {
		t.Errorf("got %d heartbeats, want %d", progress, len(secs))
	}
	if results[len(results)-1].Kind != KindDone {
		t.Error("sequence should end with the done sentinel")
	}
}

func TestHitsArriveInSectionOrder(t *testing.T) {
	secs := sections(
		"<p>alpha</p>",
		"<p>beta</p>",
		"<p>needle</p>",
		"<p>gamma</p>",
		"<p>delta</p>",
		"<p>needle again</p>",
	)
	p := New(context.Background(), secs, "needle", Options{}, NewRegistry(), fakeComputeID, nil)

	var order []int
	var lastProgress float64
	for _, r := range drain(p) {
		switch r.Kind {
		case KindSectionHits:
			order = append(order, r.SectionIndex)
		case KindProgress:
			if r.Progress < lastProgress {
				t.Errorf("progress went backwards: %v after %v", r.Progress, lastProgress)
			}
			lastProgress = r.Progress
		}
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 5 {
		t.Errorf("hit sections: got %v, want [2 5]", order)
	}
	if lastProgress != 1 {
		t.Errorf("final progress: got %v, want 1", lastProgress)
	}
}

func TestBrokenSectionSkippedNotFatal(t *testing.T) {
	secs := sections("<p>needle</p>", "", "<p>needle</p>")
	secs[1] = &fakeSection{index: 1, broken: true}

	p := New(context.Background(), secs, "needle", Options{}, NewRegistry(), fakeComputeID, nil)

	var hits, progress int
	for _, r := range drain(p) {
		switch r.Kind {
		case KindSectionHits:
			hits++
		case KindProgress:
			progress++
		}
	}
	if hits != 2 {
		t.Errorf("hits: got %d, want 2", hits)
	}
	if progress != 3 {
		t.Errorf("skipped section still heartbeats: got %d, want 3", progress)
	}
}

func TestAnnotationsRegisteredPerSection(t *testing.T) {
	reg := NewRegistry()
	reg.Add(0, "user-note") // user annotations survive a new search

	secs := sections("<p>needle one needle two</p>", "<p>clean</p>")
	p := New(context.Background(), secs, "needle", Options{}, reg, fakeComputeID, nil)

	// Annotations for a section are present as soon as its hits yield.
	for {
		r, ok := p.Next()
		if !ok {
			break
		}
		if r.Kind == KindSectionHits {
			anns := reg.Annotations(r.SectionIndex)
			var searchAnns int
			for _, a := range anns {
				if a.IsSearch() {
					searchAnns++
				}
			}
			if searchAnns != len(r.Hits) {
				t.Errorf("section %d: %d search annotations, %d hits",
					r.SectionIndex, searchAnns, len(r.Hits))
			}
		}
	}

	if got := reg.Annotations(0); len(got) != 3 {
		t.Errorf("section 0 annotations: got %d, want user note + 2 hits", len(got))
	}
	if got := reg.Annotations(1); len(got) != 0 {
		t.Errorf("clean section should have no annotations, got %d", len(got))
	}

	// A new search clears the old search annotations but not user ones.
	_ = New(context.Background(), secs, "zzz", Options{}, reg, fakeComputeID, nil)
	anns := reg.Annotations(0)
	if len(anns) != 1 || anns[0].Value != "user-note" {
		t.Errorf("after new search: got %+v, want only the user note", anns)
	}
}

func TestSingleSectionYieldsIndividualMatches(t *testing.T) {
	secs := sections("<p>skip</p>", "<p>needle and needle and needle</p>")
	p := NewSection(context.Background(), secs, 1, "needle", Options{}, NewRegistry(), fakeComputeID, nil)

	results := drain(p)
	var matches int
	for _, r := range results {
		if r.Kind == KindMatch {
			matches++
			if r.Match.Identifier == "" || r.Match.Excerpt == "" {
				t.Errorf("empty match payload: %+v", r.Match)
			}
		}
	}
	if matches != 3 {
		t.Errorf("matches: got %d, want 3", matches)
	}
	if results[len(results)-1].Kind != KindDone {
		t.Error("single-section sequence should end with the done sentinel")
	}
}

func TestCloseStopsEarlyAndReleasesDocuments(t *testing.T) {
	var closes int
	secs := make([]book.Section, 4)
	for i := range secs {
		secs[i] = &fakeSection{index: i, src: "<p>needle</p>", closes: &closes}
	}

	p := New(context.Background(), secs, "needle", Options{}, NewRegistry(), fakeComputeID, nil)
	if _, ok := p.Next(); !ok {
		t.Fatal("first Next should yield")
	}
	scanned := closes
	p.Close()
	if _, ok := p.Next(); ok {
		t.Error("Next after Close should not yield")
	}
	if closes != scanned {
		t.Error("Close must not require draining to release resources")
	}
	if scanned == 0 {
		t.Error("a yielded result implies its section document was already released")
	}
}

func TestMatcherFoldsCaseAndDiacritics(t *testing.T) {
	secs := sections("<p>Crème Brûlée is a dessert</p>")

	p := New(context.Background(), secs, "creme brulee", Options{}, NewRegistry(), fakeComputeID, nil)
	var hits int
	for _, r := range drain(p) {
		if r.Kind == KindSectionHits {
			hits += len(r.Hits)
		}
	}
	if hits != 1 {
		t.Errorf("folded match: got %d hits, want 1", hits)
	}

	p = New(context.Background(), secs, "creme brulee", Options{MatchCase: true, MatchDiacritics: true}, NewRegistry(), fakeComputeID, nil)
	hits = 0
	for _, r := range drain(p) {
		if r.Kind == KindSectionHits {
			hits += len(r.Hits)
		}
	}
	if hits != 0 {
		t.Errorf("strict match: got %d hits, want 0", hits)
	}
}

func TestWholeWordOption(t *testing.T) {
	secs := sections("<p>cat catalog concatenate cat</p>")
	p := New(context.Background(), secs, "cat", Options{MatchWholeWords: true}, NewRegistry(), fakeComputeID, nil)
	var hits int
	for _, r := range drain(p) {
		if r.Kind == KindSectionHits {
			hits += len(r.Hits)
		}
	}
	if hits != 2 {
		t.Errorf("whole-word hits: got %d, want 2", hits)
	}
}
