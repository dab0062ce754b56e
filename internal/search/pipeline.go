// Package search runs a query across the sections of an open book as a
// suspendable, progress-reporting pull iterator. The caller drives
// consumption with Next and may stop early with Close; no goroutines are
// involved, so abandoning the pipeline releases everything promptly.
package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/0xshellming/foliate/internal/book"
)

// Kind tags a pipeline result.
type Kind int

const (
	// KindProgress is a heartbeat after one scanned section.
	KindProgress Kind = iota
	// KindSectionHits carries all hits of one section of a whole-book
	// search.
	KindSectionHits
	// KindMatch carries one hit of a single-section search.
	KindMatch
	// KindDone is the terminal sentinel.
	KindDone
)

// Match is one search hit: a resolvable identifier plus display excerpt.
type Match struct {
	Identifier string
	Excerpt    string
}

// Result is one yielded pipeline item. Exactly the fields implied by Kind
// are set.
type Result struct {
	Kind         Kind
	Progress     float64
	SectionIndex int
	Hits         []Match
	Match        Match
}

// ComputeIdentifier converts an in-document range to a full canonical
// identifier for the given section.
type ComputeIdentifier func(index int, doc *book.Document, rng book.Range) (string, error)

// Pipeline is the lazy search sequence. Create with New or NewSection.
type Pipeline struct {
	ctx       context.Context
	sections  []book.Section
	query     string
	opts      Options
	registry  *Registry
	computeID ComputeIdentifier
	logger    *slog.Logger

	single  int // -1 for whole-book search
	started bool
	next    int
	pending []Result
	done    bool
	closed  bool
}

// New starts a whole-book search over every section that exposes a
// materializable document, in section order. Any previous search
// annotations are cleared immediately so stale overlays disappear before
// new ones arrive.
func New(ctx context.Context, sections []book.Section, query string, opts Options, registry *Registry, computeID ComputeIdentifier, logger *slog.Logger) *Pipeline {
	return newPipeline(ctx, sections, query, opts, registry, computeID, logger, -1)
}

// NewSection starts a search restricted to one section, yielding each hit
// individually.
func NewSection(ctx context.Context, sections []book.Section, index int, query string, opts Options, registry *Registry, computeID ComputeIdentifier, logger *slog.Logger) *Pipeline {
	return newPipeline(ctx, sections, query, opts, registry, computeID, logger, index)
}

func newPipeline(ctx context.Context, sections []book.Section, query string, opts Options, registry *Registry, computeID ComputeIdentifier, logger *slog.Logger, single int) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if registry != nil {
		registry.ClearSearch()
	}
	return &Pipeline{
		ctx:       ctx,
		sections:  sections,
		query:     query,
		opts:      opts,
		registry:  registry,
		computeID: computeID,
		logger:    logger,
		single:    single,
	}
}

// Next pulls the next result. The last true return carries the KindDone
// sentinel; after that (or after Close) ok is false.
func (p *Pipeline) Next() (Result, bool) {
	if p.closed {
		return Result{}, false
	}
	for {
		if len(p.pending) > 0 {
			r := p.pending[0]
			p.pending = p.pending[1:]
			return r, true
		}
		if p.done {
			return Result{}, false
		}
		p.advance()
	}
}

// Close abandons the sequence. Any in-flight per-section resources are
// already released by the time a result is yielded, so Close only has to
// stop further work.
func (p *Pipeline) Close() {
	p.closed = true
	p.pending = nil
}

func (p *Pipeline) advance() {
	if p.single >= 0 {
		p.advanceSingle()
		return
	}
	if p.next >= len(p.sections) {
		p.finish()
		return
	}
	sec := p.sections[p.next]
	p.next++

	hits := p.scanSection(sec)
	if len(hits) > 0 {
		p.pending = append(p.pending, Result{
			Kind:         KindSectionHits,
			SectionIndex: sec.Index(),
			Hits:         hits,
		})
	}
	// One heartbeat per scanned section, hits or not.
	p.pending = append(p.pending, Result{
		Kind:     KindProgress,
		Progress: float64(p.next) / float64(len(p.sections)),
	})
}

func (p *Pipeline) advanceSingle() {
	if p.started {
		p.finish()
		return
	}
	p.started = true
	if p.single >= len(p.sections) {
		p.finish()
		return
	}
	hits := p.scanSection(p.sections[p.single])
	for _, m := range hits {
		p.pending = append(p.pending, Result{Kind: KindMatch, Match: m})
	}
	p.pending = append(p.pending, Result{Kind: KindDone})
	p.done = true
}

func (p *Pipeline) finish() {
	p.pending = append(p.pending, Result{Kind: KindDone})
	p.done = true
}

// scanSection materializes one section, matches it, registers each hit as
// a search annotation, and releases the document. A section that cannot be
// materialized is skipped; one bad section never aborts the scan.
func (p *Pipeline) scanSection(sec book.Section) []Match {
	doc, err := sec.Document(p.ctx)
	if err != nil {
		if !errors.Is(err, book.ErrNoDocument) {
			p.logger.Warn("search: section skipped", "section", sec.Index(), "err", err)
		}
		return nil
	}
	defer doc.Close()

	var hits []Match
	for _, dm := range findMatches(doc, p.query, p.opts) {
		id, err := p.computeID(sec.Index(), doc, dm.rng)
		if err != nil {
			p.logger.Warn("search: hit dropped, identifier failed",
				"section", sec.Index(), "err", err)
			continue
		}
		hits = append(hits, Match{Identifier: id, Excerpt: dm.excerpt})
		if p.registry != nil {
			p.registry.AddSearch(sec.Index(), id)
		}
	}
	return hits
}
