// Package registry discovers reference manuals for an architecture and keeps
// one heading index per file for the lifetime of the process.
package registry

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/canonical/pdfref/internal/document"
	"github.com/canonical/pdfref/internal/manual"
	"github.com/canonical/pdfref/internal/metrics"
	"github.com/canonical/pdfref/internal/search"
)

const manualExt = ".pdf"

// stripVariants removes bit-width and endianness tags from an architecture
// name, e.g. mips64el -> mips, armv7eb -> armv7, x86_64 -> x86.
var stripVariants = regexp.MustCompile(`_?(32|64)?(el|eb|be|_le|_eb|_be|l)?$`)

// NormalizeArch derives the architecture key from a raw architecture name.
// The pattern is applied until the name stops changing so the result is a
// fixed point; a name is never reduced to the empty string.
func NormalizeArch(raw string) string {
	key := strings.TrimSpace(raw)
	for {
		next := stripVariants.ReplaceAllString(key, "")
		if next == key || next == "" {
			return key
		}
		key = next
	}
}

// Opener opens a manual file as a document.
type Opener func(path string) (document.Document, error)

// Registry caches heading indexes per architecture key. Lookups for a key
// already built never rescan the filesystem; a restart is needed to see new
// manuals.
type Registry struct {
	// ManualsDir holds bundled manuals under <ManualsDir>/<key>/*.pdf.
	ManualsDir string
	// PluginsDir is scanned for sibling directories whose name contains the
	// key; each match is searched recursively.
	PluginsDir string
	Open       Opener
	Indexer    search.Indexer
	Logger     *slog.Logger
	Metrics    *metrics.Metrics

	mu      sync.RWMutex
	cache   map[string][]*manual.Manual
	known   map[string]bool
	retired [][]*manual.Manual
	closed  bool
}

func New(manualsDir, pluginsDir string) *Registry {
	return &Registry{
		ManualsDir: manualsDir,
		PluginsDir: pluginsDir,
		Open:       document.Open,
		Logger:     slog.New(slog.DiscardHandler),
	}
}

// Manuals returns the heading indexes for raw's architecture key, building
// them on first use. No lock is held while building: concurrent first
// lookups may both scan, and the last one to finish replaces the cache
// entry. Results are equivalent either way.
func (r *Registry) Manuals(ctx context.Context, raw string) []*manual.Manual {
	key := NormalizeArch(raw)

	r.mu.RLock()
	manuals, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return manuals
	}

	start := time.Now()
	manuals = r.build(ctx, key)

	r.mu.Lock()
	if r.cache == nil {
		r.cache = map[string][]*manual.Manual{}
		r.known = map[string]bool{}
	}
	if prev, ok := r.cache[key]; ok {
		r.retired = append(r.retired, prev)
	}
	r.cache[key] = manuals
	for _, m := range manuals {
		r.known[m.Path] = true
	}
	r.mu.Unlock()

	r.Metrics.SetManuals(key, len(manuals))
	r.logger().Info("loaded manuals", "arch", key, "count", len(manuals), "duration", time.Since(start))
	return manuals
}

func (r *Registry) build(ctx context.Context, key string) []*manual.Manual {
	paths := r.discover(key)
	open := r.Open
	if open == nil {
		open = document.Open
	}

	manuals := make([]*manual.Manual, 0, len(paths))
	for _, path := range paths {
		doc, err := open(path)
		if err != nil {
			r.logger().Warn("skipping manual", "path", path, "error", err)
			continue
		}
		m, err := manual.New(path, doc)
		if err != nil {
			_ = doc.Close()
			r.logger().Warn("skipping manual", "path", path, "error", err)
			continue
		}
		manuals = append(manuals, m)
	}

	if r.Indexer != nil {
		for _, m := range manuals {
			if err := r.Indexer.IndexHeadings(ctx, catalogDocs(key, m)); err != nil {
				r.logger().Warn("index headings", "path", m.Path, "error", err)
			}
		}
	}
	return manuals
}

func catalogDocs(key string, m *manual.Manual) []search.Document {
	headings := m.Headings()
	docs := make([]search.Document, 0, len(headings))
	for i, h := range headings {
		docs = append(docs, search.Document{
			Arch:     key,
			Path:     m.Path,
			Filename: m.Filename,
			Position: i,
			Level:    h.Level,
			Title:    h.Title,
			Page:     h.Page,
		})
	}
	return docs
}

// discover lists candidate manual files for key, sorted and deduplicated.
func (r *Registry) discover(key string) []string {
	seen := map[string]bool{}
	var paths []string
	add := func(path string) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	if r.ManualsDir != "" {
		bundled, err := filepath.Glob(filepath.Join(r.ManualsDir, key, "*"+manualExt))
		if err != nil {
			r.logger().Warn("glob bundled manuals", "arch", key, "error", err)
		}
		for _, path := range bundled {
			add(path)
		}
	}

	for _, dir := range r.siblingDirs(key) {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				r.logger().Debug("walk sibling", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), manualExt) {
				add(path)
			}
			return nil
		})
		if err != nil {
			r.logger().Warn("walk sibling", "dir", dir, "error", err)
		}
	}

	sort.Strings(paths)
	return paths
}

// siblingDirs returns directories under PluginsDir whose names contain key.
// WalkDir does not follow symlinked directories, so link cycles cannot hang
// discovery.
func (r *Registry) siblingDirs(key string) []string {
	if r.PluginsDir == "" {
		return nil
	}
	entries, err := os.ReadDir(r.PluginsDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger().Warn("read plugins dir", "path", r.PluginsDir, "error", err)
		}
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.Contains(e.Name(), key) {
			dirs = append(dirs, filepath.Join(r.PluginsDir, e.Name()))
		}
	}
	return dirs
}

// Suggest ranks the bundled architecture directories by fuzzy similarity to
// raw's key. It is meant for "no manuals for this architecture" messages.
func (r *Registry) Suggest(raw string) []string {
	key := NormalizeArch(raw)
	entries, err := os.ReadDir(r.ManualsDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") && e.Name() != key {
			names = append(names, e.Name())
		}
	}
	matches := fuzzy.Find(key, names)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}

// Known reports whether path belongs to a loaded manual.
func (r *Registry) Known(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.known[path]
}

// Keys returns the architecture keys built so far.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.cache))
	for k := range r.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close releases every loaded document, including sets replaced by
// concurrent builds. It is safe to call more than once.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	closeAll := func(manuals []*manual.Manual) {
		for _, m := range manuals {
			if err := m.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for _, manuals := range r.cache {
		closeAll(manuals)
	}
	for _, manuals := range r.retired {
		closeAll(manuals)
	}
	r.cache = nil
	r.retired = nil
	return errors.Join(errs...)
}

func (r *Registry) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}
