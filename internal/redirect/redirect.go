// Package redirect writes disposable HTML stubs that forward to a manual
// with a #page fragment. Viewers drop the fragment from direct file://
// links, but keep it when a page script navigates there.
package redirect

import (
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

var stubTemplate = template.Must(template.New("stub").Parse(`<html><body><script>
	window.location.href = {{.}};
</script></body></html>
`))

// Stubs creates redirect stubs and remembers them for Cleanup. The zero
// value writes into os.TempDir.
type Stubs struct {
	Dir string

	mu    sync.Mutex
	paths []string
}

func New(dir string) *Stubs {
	return &Stubs{Dir: dir}
}

// PageURL is the page-anchored file URL of a manual.
func PageURL(manualPath string, page int) string {
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(manualPath),
		Fragment: fmt.Sprintf("page=%d", page),
	}
	return u.String()
}

// LinkFor writes a new stub redirecting to page of manualPath and returns
// the stub's file:// URL.
func (s *Stubs) LinkFor(manualPath string, page int) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "pdfref-*.html")
	if err != nil {
		return "", fmt.Errorf("create redirect stub: %w", err)
	}
	s.track(f.Name())

	if err := stubTemplate.Execute(f, PageURL(manualPath, page)); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write redirect stub: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close redirect stub: %w", err)
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(f.Name())}
	return u.String(), nil
}

func (s *Stubs) track(path string) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
}

// Paths returns the stubs written so far and not yet cleaned up.
func (s *Stubs) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Cleanup removes every tracked stub. Removal errors are ignored; stubs
// leak if the process dies before this runs.
func (s *Stubs) Cleanup() {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	for _, path := range paths {
		_ = os.Remove(path)
	}
}
