// Package lookup fans a token out over the manuals of an architecture and
// presents the matching headings as a peek, a rendered report or viewer
// launches.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/canonical/pdfref/internal/config"
	"github.com/canonical/pdfref/internal/manual"
	"github.com/canonical/pdfref/internal/metrics"
	"github.com/canonical/pdfref/internal/redirect"
	"github.com/canonical/pdfref/internal/report"
)

// NoResults is the single message shown when nothing matched.
const NoResults = "No results to show."

// MaxOpen is the match count at which Open refuses to launch viewers.
const MaxOpen = 10

var (
	ErrEmptyToken     = errors.New("empty token")
	ErrTooManyMatches = errors.New("too many matches to open")
	ErrNoPresenter    = errors.New("lookup engine has no presenter")
)

// Action selects how matches are presented.
type Action int

const (
	Peek Action = iota
	Search
	Open
)

func (a Action) String() string {
	switch a {
	case Peek:
		return "peek"
	case Search:
		return "search"
	case Open:
		return "open"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction accepts an action name in any case.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "peek":
		return Peek, nil
	case "search":
		return Search, nil
	case "open":
		return Open, nil
	}
	return Peek, fmt.Errorf("unknown action %q", s)
}

// Query is one user lookup. An empty Arch uses the configured default.
type Query struct {
	Token  string
	Action Action
	Arch   string
}

// Presenter shows lookup results to the user.
type Presenter interface {
	// Peek flashes messages for speed seconds per ten characters each. It
	// returns early when ctx is cancelled.
	Peek(ctx context.Context, messages []string, speed float64)
	Report(ctx context.Context, title string, collections []report.Collection) error
	Open(ctx context.Context, uri string) error
}

// Source yields the manuals of an architecture; *registry.Registry
// implements it.
type Source interface {
	Manuals(ctx context.Context, arch string) []*manual.Manual
}

// Engine runs lookups. Settings is called once per lookup, so edits to the
// underlying configuration apply from the next call on.
type Engine struct {
	Manuals   Source
	Linker    report.Linker
	Renderer  *report.Renderer
	Presenter Presenter
	Settings  func() config.Settings
	// Arch is used when a query carries none.
	Arch    string
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Found is one matched heading together with its manual.
type Found struct {
	Manual *manual.Manual
	Match  manual.Match
}

// Message is the one-line peek summary of the match.
func (f Found) Message() string {
	return fmt.Sprintf("\"%s\"  %s:%d", f.Match.Heading.Title, f.Manual.Filename, f.Match.Heading.Page)
}

// Run executes q and hands the outcome to the presenter. It fails with
// ErrNoPresenter when none is set.
func (e *Engine) Run(ctx context.Context, q Query) error {
	if e.Presenter == nil {
		return ErrNoPresenter
	}
	settings := e.settings()
	start := time.Now()

	var (
		matches int
		err     error
	)
	switch q.Action {
	case Peek:
		var msgs []string
		if msgs, err = e.peekMessages(ctx, q, settings); err == nil {
			matches = countMatches(msgs)
			e.Presenter.Peek(ctx, msgs, settings.PeekSpeed)
		}
	case Search:
		var collections []report.Collection
		if collections, err = e.collections(ctx, q, settings); err == nil {
			matches = sectionCount(collections)
			if len(collections) == 0 {
				e.Presenter.Peek(ctx, []string{NoResults}, settings.PeekSpeed)
			} else {
				err = e.Presenter.Report(ctx, q.Token, collections)
			}
		}
	case Open:
		var uris []string
		if uris, err = e.openURIs(ctx, q, settings); err == nil {
			matches = len(uris)
			for _, uri := range uris {
				if oerr := e.Presenter.Open(ctx, uri); oerr != nil {
					err = errors.Join(err, oerr)
				}
			}
		}
	default:
		err = fmt.Errorf("unknown action %v", q.Action)
	}

	e.observe(q, err, matches, start)
	return err
}

func (e *Engine) observe(q Query, err error, matches int, start time.Time) {
	elapsed := time.Since(start)
	e.Metrics.ObserveSearch(q.Action.String(), outcome(err, matches), matches, elapsed)
	e.logger().Info("lookup finished", "token", q.Token, "action", q.Action, "matches", matches, "duration", elapsed)
}

func sectionCount(collections []report.Collection) int {
	n := 0
	for _, c := range collections {
		n += len(c.Sections)
	}
	return n
}

func countMatches(msgs []string) int {
	if len(msgs) == 1 && msgs[0] == NoResults {
		return 0
	}
	return len(msgs)
}

func outcome(err error, matches int) string {
	switch {
	case errors.Is(err, ErrTooManyMatches):
		return "refused"
	case err != nil:
		return "error"
	case matches == 0:
		return "empty"
	}
	return "ok"
}

// Find returns every match of q.Token across the manuals of q's
// architecture. Matches keep table of contents order within a manual.
func (e *Engine) Find(ctx context.Context, q Query) ([]Found, error) {
	return e.find(ctx, q, e.settings())
}

func (e *Engine) find(ctx context.Context, q Query, settings config.Settings) ([]Found, error) {
	token := strings.TrimSpace(q.Token)
	if token == "" {
		return nil, ErrEmptyToken
	}
	arch := q.Arch
	if arch == "" {
		arch = e.Arch
	}
	if arch == "" {
		return nil, errors.New("no architecture for lookup")
	}

	// Loading and matching always run to completion.
	ctx = context.WithoutCancel(ctx)
	manuals := e.Manuals.Manuals(ctx, arch)

	perManual := make([][]Found, len(manuals))
	p := pool.New().WithMaxGoroutines(settings.Workers)
	for i, m := range manuals {
		p.Go(func() {
			perManual[i] = e.match(m, token, settings.Match)
		})
	}
	p.Wait()

	var found []Found
	for _, f := range perManual {
		found = append(found, f...)
	}
	return found, nil
}

func (e *Engine) match(m *manual.Manual, token string, opts manual.MatchOptions) (found []Found) {
	defer func() {
		if r := recover(); r != nil {
			name := "<nil>"
			if m != nil {
				name = m.Filename
			}
			e.logger().Error("matching failed", "manual", name, "panic", r)
			found = nil
		}
	}()

	start := time.Now()
	matches := m.Match(token, opts)
	e.logger().Info("matched manual", "manual", m.Filename, "token", token, "count", len(matches), "duration", time.Since(start))

	found = make([]Found, len(matches))
	for i, match := range matches {
		found[i] = Found{Manual: m, Match: match}
	}
	return found
}

// PeekMessages builds the peek summaries for q. It never returns an empty
// list: zero matches yield NoResults.
func (e *Engine) PeekMessages(ctx context.Context, q Query) ([]string, error) {
	start := time.Now()
	q.Action = Peek
	msgs, err := e.peekMessages(ctx, q, e.settings())
	e.observe(q, err, countMatches(msgs), start)
	return msgs, err
}

func (e *Engine) peekMessages(ctx context.Context, q Query, settings config.Settings) ([]string, error) {
	found, err := e.find(ctx, q, settings)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return []string{NoResults}, nil
	}
	msgs := make([]string, len(found))
	for i, f := range found {
		msgs[i] = f.Message()
	}
	return msgs, nil
}

// OpenURIs returns the page-anchored URIs of q's matches, or
// ErrTooManyMatches when there are MaxOpen or more of them.
func (e *Engine) OpenURIs(ctx context.Context, q Query) ([]string, error) {
	start := time.Now()
	q.Action = Open
	uris, err := e.openURIs(ctx, q, e.settings())
	e.observe(q, err, len(uris), start)
	return uris, err
}

func (e *Engine) openURIs(ctx context.Context, q Query, settings config.Settings) ([]string, error) {
	found, err := e.find(ctx, q, settings)
	if err != nil {
		return nil, err
	}
	if len(found) >= MaxOpen {
		return nil, fmt.Errorf("%w: %d matches for %q", ErrTooManyMatches, len(found), q.Token)
	}
	uris := make([]string, len(found))
	for i, f := range found {
		uris[i] = redirect.PageURL(f.Manual.Path, f.Match.Heading.Page)
	}
	return uris, nil
}

type pageSlot struct {
	collection int
	section    int
	index      int
	number     int
	manual     *manual.Manual
}

// Collections renders the page ranges of q's matches into one collection per
// manual that matched. A manual with any page failing to render or link is
// left out. No matches yields no collections.
func (e *Engine) Collections(ctx context.Context, q Query) ([]report.Collection, error) {
	start := time.Now()
	q.Action = Search
	collections, err := e.collections(ctx, q, e.settings())
	e.observe(q, err, sectionCount(collections), start)
	return collections, err
}

func (e *Engine) collections(ctx context.Context, q Query, settings config.Settings) ([]report.Collection, error) {
	found, err := e.find(ctx, q, settings)
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(q.Token)

	var (
		collections []report.Collection
		slots       []pageSlot
		byManual    = map[*manual.Manual]int{}
	)
	for _, f := range found {
		ci, ok := byManual[f.Manual]
		if !ok {
			ci = len(collections)
			byManual[f.Manual] = ci
			collections = append(collections, report.Collection{
				Title:  fmt.Sprintf("%s in %s", token, f.Manual.Filename),
				Manual: f.Manual.Filename,
				Path:   f.Manual.Path,
			})
		}
		start, end := f.Manual.PageRange(f.Match.Index)
		pages := f.Manual.Pages(start, end)
		section := report.Section{
			Heading:  f.Match.Heading.Title,
			Level:    f.Match.Heading.Level,
			Position: f.Match.Index,
			Start:    start,
			End:      end,
			DocTitle: f.Manual.Title,
			Pages:    make([]report.Page, len(pages)),
		}
		si := len(collections[ci].Sections)
		collections[ci].Sections = append(collections[ci].Sections, section)
		for pi, number := range pages {
			slots = append(slots, pageSlot{collection: ci, section: si, index: pi, number: number, manual: f.Manual})
		}
	}

	var (
		mu     sync.Mutex
		failed = map[int]bool{}
	)
	var g errgroup.Group
	g.SetLimit(settings.Workers)
	for _, slot := range slots {
		g.Go(func() error {
			page, err := e.renderPage(slot.manual, slot.number, settings.RenderZoom)
			if err != nil {
				e.logger().Warn("skipping manual in report", "manual", slot.manual.Filename, "page", slot.number, "error", err)
				mu.Lock()
				failed[slot.collection] = true
				mu.Unlock()
				return nil
			}
			// Each slot owns a distinct element; no lock needed.
			collections[slot.collection].Sections[slot.section].Pages[slot.index] = page
			return nil
		})
	}
	_ = g.Wait()

	kept := collections[:0]
	for i, c := range collections {
		if !failed[i] {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

func (e *Engine) renderPage(m *manual.Manual, number int, zoom float64) (page report.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render page %d: panic: %v", number, r)
		}
	}()

	var png []byte
	if e.Renderer != nil {
		png, err = e.Renderer.Render(m, m.Path, number, zoom)
	} else {
		png, err = m.Render(number, zoom)
	}
	if err != nil {
		return report.Page{}, err
	}

	page = report.Page{Number: number, PNG: png}
	if e.Linker != nil {
		link, err := e.Linker.LinkFor(m.Path, number)
		if err != nil {
			return report.Page{}, err
		}
		page.Link = template.URL(link)
	}
	return page, nil
}

func (e *Engine) settings() config.Settings {
	if e.Settings == nil {
		return config.Default().Settings()
	}
	return e.Settings()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}
