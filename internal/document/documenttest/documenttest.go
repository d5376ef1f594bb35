// Package documenttest provides an in-memory document.Document for tests of
// the layers above the MuPDF adapter.
package documenttest

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/canonical/pdfref/internal/document"
)

// PNG is the image returned for every rendered page unless Render is set.
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// Doc is a scripted document. The zero value is an empty, renderable PDF.
type Doc struct {
	Headings []document.Heading
	Title    string
	Pages    int

	// TOCErr is returned by TableOfContents.
	TOCErr error
	// Render overrides page rendering when set.
	Render func(page int, zoom float64) ([]byte, error)
	// PanicPage makes RenderPage panic on that page when positive.
	PanicPage int

	renders atomic.Int64
	mu      sync.Mutex
	closed  bool
}

// New builds a Doc whose page count covers every heading.
func New(title string, headings ...document.Heading) *Doc {
	pages := 0
	for _, h := range headings {
		if h.Page > pages {
			pages = h.Page
		}
	}
	return &Doc{Headings: headings, Title: title, Pages: pages}
}

func (d *Doc) TableOfContents() ([]document.Heading, error) {
	if d.TOCErr != nil {
		return nil, d.TOCErr
	}
	out := make([]document.Heading, len(d.Headings))
	copy(out, d.Headings)
	return out, nil
}

func (d *Doc) MetadataTitle() string { return d.Title }

func (d *Doc) PageCount() int { return d.Pages }

func (d *Doc) RenderPage(page int, zoom float64) ([]byte, error) {
	d.renders.Add(1)
	if d.PanicPage > 0 && page == d.PanicPage {
		panic(fmt.Sprintf("render page %d: scripted panic", page))
	}
	if d.Render != nil {
		return d.Render(page, zoom)
	}
	if page < 1 || page > d.Pages {
		return nil, fmt.Errorf("render page %d: out of range", page)
	}
	return PNG, nil
}

// Renders counts RenderPage calls.
func (d *Doc) Renders() int { return int(d.renders.Load()) }

func (d *Doc) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("document already closed")
	}
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *Doc) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
