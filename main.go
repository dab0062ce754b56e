package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/0xshellming/foliate/internal/book"
	"github.com/0xshellming/foliate/internal/cfi"
	"github.com/0xshellming/foliate/internal/epub"
	"github.com/0xshellming/foliate/internal/markdown"
	"github.com/0xshellming/foliate/internal/nav"
	"github.com/0xshellming/foliate/internal/pdf"
	"github.com/0xshellming/foliate/internal/search"
	"github.com/0xshellming/foliate/internal/state"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAFF"))
)

type mode int

const (
	modeRead mode = iota
	modeChapters
	modeSearch
	modeResults
	modeGoto
)

type model struct {
	session *nav.Session
	ctx     context.Context

	mode     mode
	vp       viewport.Model
	chapters list.Model
	results  list.Model
	input    textinput.Model

	pipe     *search.Pipeline
	scanned  float64
	notice   string
	quitting bool
	ready    bool
	width    int
	height   int
}

type searchMsg struct {
	res search.Result
	ok  bool
}

type chapterItem struct {
	index int
	label string
	page  string
}

func (c chapterItem) Title() string       { return c.label }
func (c chapterItem) Description() string { return c.page }
func (c chapterItem) FilterValue() string { return c.label }

type resultItem struct{ m search.Match }

func (r resultItem) Title() string       { return r.m.Excerpt }
func (r resultItem) Description() string { return r.m.Identifier }
func (r resultItem) FilterValue() string { return r.m.Excerpt }

func newModel(ctx context.Context, session *nav.Session) model {
	delegate := list.NewDefaultDelegate()

	chapters := list.New(nil, delegate, 80, 20)
	chapters.Title = "Chapters"
	chapters.SetShowStatusBar(false)
	var items []list.Item
	for _, r := range session.Chapters().Ranges {
		if r.Start < 0 {
			continue
		}
		items = append(items, chapterItem{index: r.Start, label: r.Label, page: r.Path})
	}
	chapters.SetItems(items)

	results := list.New(nil, delegate, 80, 20)
	results.Title = "Results"
	results.SetShowStatusBar(false)

	input := textinput.New()
	input.CharLimit = 256

	return model{
		session:  session,
		ctx:      ctx,
		vp:       viewport.New(80, 22),
		chapters: chapters,
		results:  results,
		input:    input,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

// showCurrent loads the current section's text into the viewport.
func (m *model) showCurrent() {
	loc, ok := m.session.Current()
	if !ok {
		m.vp.SetContent("No location.")
		return
	}
	sections := m.session.Book().Sections()
	if loc.Index >= len(sections) {
		return
	}
	text, err := sections[loc.Index].Content(m.ctx)
	if err != nil {
		m.notice = fmt.Sprintf("load section: %v", err)
		return
	}
	m.vp.SetContent(text)
	m.vp.GotoTop()
}

func pumpSearch(p *search.Pipeline) tea.Cmd {
	return func() tea.Msg {
		res, ok := p.Next()
		return searchMsg{res: res, ok: ok}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		m.vp.Height = msg.Height - 2
		if m.vp.Height < 1 {
			m.vp.Height = 1
		}
		m.chapters.SetSize(msg.Width, msg.Height-2)
		m.results.SetSize(msg.Width, msg.Height-2)
		if !m.ready {
			m.showCurrent()
		}
		m.ready = true
		return m, nil

	case searchMsg:
		return m.updateSearch(msg)

	case tea.KeyMsg:
		switch m.mode {
		case modeRead:
			return m.updateRead(msg)
		case modeChapters:
			return m.updateChapters(msg)
		case modeResults:
			return m.updateResults(msg)
		case modeSearch, modeGoto:
			return m.updatePrompt(msg)
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m model) updateRead(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "n", "]":
		if err := m.session.NextChapter(m.ctx); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.showCurrent()
		return m, nil

	case "p", "[":
		if err := m.session.PrevChapter(m.ctx); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.showCurrent()
		return m, nil

	case "b", "backspace":
		if err := m.session.Back(m.ctx); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.showCurrent()
		return m, nil

	case "f":
		if err := m.session.Forward(m.ctx); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.showCurrent()
		return m, nil

	case "c", "t":
		m.mode = modeChapters
		return m, nil

	case "/":
		m.mode = modeSearch
		m.input.Prompt = promptStyle.Render("/")
		m.input.Placeholder = "search"
		m.input.SetValue("")
		return m, m.input.Focus()

	case "g":
		m.mode = modeGoto
		m.input.Prompt = promptStyle.Render("go: ")
		m.input.Placeholder = "fraction, #anchor or identifier"
		m.input.SetValue("")
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m model) updateChapters(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.mode = modeRead
		return m, nil
	case "enter":
		if item, ok := m.chapters.SelectedItem().(chapterItem); ok {
			if err := m.session.GoTo(m.ctx, nav.BySection{Index: item.index}); err != nil {
				m.notice = err.Error()
			}
		}
		m.mode = modeRead
		m.showCurrent()
		return m, nil
	}
	var cmd tea.Cmd
	m.chapters, cmd = m.chapters.Update(msg)
	return m, cmd
}

func (m model) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		if m.pipe != nil {
			m.pipe.Close()
			m.pipe = nil
		}
		m.mode = modeRead
		return m, nil
	case "enter":
		if item, ok := m.results.SelectedItem().(resultItem); ok {
			t := nav.ParseTarget(item.m.Identifier, cfi.Grammar{})
			if err := m.session.GoTo(m.ctx, t); err != nil {
				m.notice = err.Error()
			}
		}
		if m.pipe != nil {
			m.pipe.Close()
			m.pipe = nil
		}
		m.mode = modeRead
		m.showCurrent()
		return m, nil
	}
	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func (m model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.mode = modeRead
		return m, nil

	case "enter":
		query := strings.TrimSpace(m.input.Value())
		m.input.Blur()
		if query == "" {
			m.mode = modeRead
			return m, nil
		}
		if m.mode == modeGoto {
			m.mode = modeRead
			m.goTo(query)
			return m, nil
		}
		// Search: reset results and start pumping the pipeline.
		m.results.SetItems(nil)
		m.results.Title = fmt.Sprintf("Results for %q", query)
		m.scanned = 0
		m.pipe = m.session.Search(m.ctx, query, search.Options{})
		m.mode = modeResults
		return m, pumpSearch(m.pipe)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// goTo interprets a raw prompt entry: a bare number is a fractional
// position, anything else a destination or identifier.
func (m *model) goTo(query string) {
	var err error
	if f, ferr := strconv.ParseFloat(query, 64); ferr == nil {
		err = m.session.GoToFraction(m.ctx, f)
	} else {
		err = m.session.GoTo(m.ctx, nav.ParseTarget(query, cfi.Grammar{}))
	}
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.showCurrent()
}

func (m model) updateSearch(msg searchMsg) (tea.Model, tea.Cmd) {
	if m.pipe == nil || !msg.ok {
		return m, nil
	}
	switch msg.res.Kind {
	case search.KindProgress:
		m.scanned = msg.res.Progress
		return m, pumpSearch(m.pipe)
	case search.KindSectionHits:
		for _, hit := range msg.res.Hits {
			m.results.InsertItem(len(m.results.Items()), resultItem{m: hit})
		}
		return m, pumpSearch(m.pipe)
	case search.KindMatch:
		m.results.InsertItem(len(m.results.Items()), resultItem{m: msg.res.Match})
		return m, pumpSearch(m.pipe)
	case search.KindDone:
		m.scanned = 1
		m.pipe.Close()
		m.pipe = nil
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	switch m.mode {
	case modeChapters:
		return m.chapters.View()
	case modeResults:
		header := m.results.View()
		if m.scanned < 1 {
			header += "\n" + statusStyle.Render(fmt.Sprintf("searching... %d%%", int(m.scanned*100)))
		}
		return header
	case modeSearch, modeGoto:
		return m.statusBar() + "\n" + m.vp.View() + "\n" + m.input.View()
	}

	return m.statusBar() + "\n" + m.vp.View() + "\n" + m.controls()
}

func (m model) statusBar() string {
	meta := m.session.Book().Metadata()
	parts := []string{titleStyle.Render(meta.Title)}

	if loc, ok := m.session.Current(); ok {
		ch := m.session.Chapters().RangeFor(loc.Index)
		if ch.Label != "" {
			parts = append(parts, ch.Label)
		}
		parts = append(parts, ch.Path)
		parts = append(parts, fmt.Sprintf("%d%%", int(m.session.Fraction()*100)))
	}
	if m.notice != "" {
		parts = append(parts, noticeStyle.Render(m.notice))
	}
	return statusStyle.Render(strings.Join(parts, " | "))
}

func (m model) controls() string {
	marks := ""
	if m.session.CanGoBack() {
		marks += " ←"
	}
	if m.session.CanGoForward() {
		marks += " →"
	}
	return controlsStyle.Render("n/p: chapter  b/f: history" + marks + "  c: contents  /: search  g: go  q: quit")
}

// openBook dispatches on file extension.
func openBook(filename string) (book.Book, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".epub":
		return epub.Open(filename)
	case ".pdf":
		return pdf.Open(filename)
	case ".md", ".markdown":
		return markdown.Open(filename)
	}
	return nil, fmt.Errorf("unsupported file type: %s", filename)
}

// newLogger writes diagnostics to FOLIATE_LOG when set, discarding
// otherwise so the TUI stays clean.
func newLogger() *slog.Logger {
	if path := os.Getenv("FOLIATE_LOG"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// restore navigates to the persisted position, preferring the precise
// identifier over the coarse fraction.
func restore(ctx context.Context, session *nav.Session, pos state.Position, ok bool) {
	if ok && pos.Identifier != "" {
		if err := session.GoTo(ctx, nav.ByIdentifier{Identifier: pos.Identifier}); err == nil {
			return
		}
	}
	if ok {
		if err := session.GoToFraction(ctx, pos.Fraction); err == nil {
			return
		}
	}
	_ = session.GoTo(ctx, nav.BySection{Index: 0})
}

func main() {
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	noRestore := flag.Bool("fresh", false, "Ignore the saved reading position")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Foliate - Terminal Document Reader\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  foliate [options] <file>\n\n")
		fmt.Fprintf(os.Stderr, "Supported formats: epub, pdf, markdown\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  n/p      Next/previous chapter\n")
		fmt.Fprintf(os.Stderr, "  b/f      Back/forward in history\n")
		fmt.Fprintf(os.Stderr, "  c        Table of contents\n")
		fmt.Fprintf(os.Stderr, "  /        Search\n")
		fmt.Fprintf(os.Stderr, "  g        Go to fraction, anchor or identifier\n")
		fmt.Fprintf(os.Stderr, "  q        Quit\n")
	}
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("foliate %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	filename := flag.Arg(0)

	bk, err := openBook(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	session := nav.NewSession(ctx, bk, cfi.Grammar{}, newLogger())
	defer session.Close()

	var saved state.Position
	var haveSaved bool
	if store, err := state.NewStore(); err == nil {
		if hash, err := state.ComputeHash(filename); err == nil {
			session.OnRelocate(func(r nav.Relocation) {
				_ = store.SetPosition(hash, state.Position{
					Identifier: r.Identifier,
					Fraction:   r.Fraction,
				})
			})
			if !*noRestore {
				saved, haveSaved = store.GetPosition(hash)
			}
		}
	}
	restore(ctx, session, saved, haveSaved)

	p := tea.NewProgram(newModel(ctx, session), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
