package nav

import (
	"context"
	"log/slog"

	"github.com/0xshellming/foliate/internal/book"
	"github.com/0xshellming/foliate/internal/fraction"
	"github.com/0xshellming/foliate/internal/history"
	"github.com/0xshellming/foliate/internal/search"
	"github.com/0xshellming/foliate/internal/toc"
)

// Relocation is the bundle handed to observers whenever the current
// location changes: how far along the document the location lies and what
// surrounds it.
type Relocation struct {
	Fraction   float64
	Chapter    toc.ChapterRange
	Page       string
	Identifier string
	Location   Location
}

// Session owns all mutable navigation state for one open document: the
// chapter index and its content cache, the fraction index, the history
// stack, and the annotation registry. Its lifecycle is tied to document
// open/close. Single-threaded cooperative use only.
type Session struct {
	bk        book.Book
	logger    *slog.Logger
	grammar   Grammar
	chapters  *toc.Index
	fractions *fraction.Index
	resolver  *Resolver
	hist      *history.Stack
	registry  *search.Registry

	current Location
	within  float64
	located bool

	relocateFns []func(Relocation)
}

// NewSession opens a session over a loaded book. Building the chapter
// index resolves outline destinations, so this may perform I/O.
func NewSession(ctx context.Context, bk book.Book, g Grammar, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	sections := bk.Sections()
	sizes := make([]int, len(sections))
	for i, sec := range sections {
		sizes[i] = sec.Size()
	}
	fractions := fraction.New(sizes)
	chapters := toc.BuildChapterIndex(ctx, bk.Outline(), len(sections), bk.ResolveDestination, logger)

	return &Session{
		bk:        bk,
		logger:    logger,
		grammar:   g,
		chapters:  chapters,
		fractions: fractions,
		resolver:  NewResolver(bk, g, fractions),
		hist:      history.New(),
		registry:  search.NewRegistry(),
	}
}

// Book returns the underlying book.
func (s *Session) Book() book.Book { return s.bk }

// Chapters returns the chapter index.
func (s *Session) Chapters() *toc.Index { return s.chapters }

// History exposes the back/forward stack for its notification events and
// boundary predicates. Mutation goes through GoTo, Back and Forward.
func (s *Session) History() *history.Stack { return s.hist }

// Annotations returns the annotations registered against a section.
func (s *Session) Annotations(index int) []search.Annotation {
	return s.registry.Annotations(index)
}

// AddAnnotation registers a user annotation value against a section.
func (s *Session) AddAnnotation(index int, value string) {
	s.registry.Add(index, value)
}

// OnRelocate registers an observer invoked after every successful
// navigation with the per-location bundle.
func (s *Session) OnRelocate(fn func(Relocation)) {
	s.relocateFns = append(s.relocateFns, fn)
}

// Current returns the current location. located is false before the first
// successful navigation.
func (s *Session) Current() (loc Location, located bool) {
	return s.current, s.located
}

// Fraction returns how far along the document the current location lies.
func (s *Session) Fraction() float64 {
	return s.fractions.FractionOf(s.current.Index, s.within)
}

// Resolve resolves a target without navigating.
func (s *Session) Resolve(ctx context.Context, t Target) (Location, error) {
	return s.resolver.Resolve(ctx, t)
}

// ComputeIdentifier produces a canonical identifier for a section or an
// in-document range of it.
func (s *Session) ComputeIdentifier(index int, doc *book.Document, rng *book.Range) (string, error) {
	return s.resolver.ComputeIdentifier(index, doc, rng)
}

// GoTo resolves a target and makes it the current location, pushing it
// onto the history stack. A failed resolve leaves the current location and
// the history unchanged.
func (s *Session) GoTo(ctx context.Context, t Target) error {
	loc, err := s.resolver.Resolve(ctx, t)
	if err != nil {
		return err
	}
	s.hist.PushState(t)
	s.apply(t, loc)
	return nil
}

// GoToFraction navigates to a fractional position.
func (s *Session) GoToFraction(ctx context.Context, f float64) error {
	return s.GoTo(ctx, ByFraction{Value: f})
}

// NextChapter navigates to the next chapter boundary after the current
// location. At the last boundary it is a no-op.
func (s *Session) NextChapter(ctx context.Context) error {
	boundary, ok := s.chapters.NextBoundary(s.current.Index)
	if !ok {
		return nil
	}
	return s.GoTo(ctx, BySection{Index: boundary})
}

// PrevChapter navigates to the previous chapter boundary.
func (s *Session) PrevChapter(ctx context.Context) error {
	boundary, ok := s.chapters.PrevBoundary(s.current.Index)
	if !ok {
		return nil
	}
	return s.GoTo(ctx, BySection{Index: boundary})
}

// Back moves one entry back in history and navigates there. At the
// boundary it is a silent no-op.
func (s *Session) Back(ctx context.Context) error {
	if !s.hist.Back() {
		return nil
	}
	return s.applyCurrentHistory(ctx)
}

// Forward moves one entry forward in history and navigates there.
func (s *Session) Forward(ctx context.Context) error {
	if !s.hist.Forward() {
		return nil
	}
	return s.applyCurrentHistory(ctx)
}

// CanGoBack reports whether Back would move.
func (s *Session) CanGoBack() bool { return s.hist.CanGoBack() }

// CanGoForward reports whether Forward would move.
func (s *Session) CanGoForward() bool { return s.hist.CanGoForward() }

func (s *Session) applyCurrentHistory(ctx context.Context) error {
	t, ok := s.hist.Current().(Target)
	if !ok {
		return nil
	}
	loc, err := s.resolver.Resolve(ctx, t)
	if err != nil {
		s.logger.Warn("history navigation failed", "err", err)
		return err
	}
	s.apply(t, loc)
	return nil
}

func (s *Session) apply(t Target, loc Location) {
	s.current = loc
	s.located = true
	if f, ok := t.Fraction(); ok {
		_, s.within = s.fractions.Locate(f)
	} else {
		s.within = 0
	}

	r := Relocation{
		Fraction: s.Fraction(),
		Chapter:  s.chapters.RangeFor(loc.Index),
		Location: loc,
	}
	r.Page = r.Chapter.Path
	id, err := s.resolver.ComputeIdentifier(loc.Index, nil, nil)
	if err == nil {
		r.Identifier = id
	}
	for _, fn := range s.relocateFns {
		fn(r)
	}
}

// Search starts a whole-book search pipeline. Any previous search's
// annotations are cleared as the pipeline is created.
func (s *Session) Search(ctx context.Context, query string, opts search.Options) *search.Pipeline {
	return search.New(ctx, s.bk.Sections(), query, opts, s.registry, s.searchComputeID, s.logger)
}

// SearchSection starts a search restricted to one section.
func (s *Session) SearchSection(ctx context.Context, index int, query string, opts search.Options) *search.Pipeline {
	return search.NewSection(ctx, s.bk.Sections(), index, query, opts, s.registry, s.searchComputeID, s.logger)
}

func (s *Session) searchComputeID(index int, doc *book.Document, rng book.Range) (string, error) {
	return s.resolver.ComputeIdentifier(index, doc, &rng)
}

// Close tears the session down: history, annotations and caches are
// dropped, then the book itself is closed.
func (s *Session) Close() error {
	s.hist.Clear()
	s.registry.Clear()
	s.chapters.Cache = nil
	s.located = false
	return s.bk.Close()
}
