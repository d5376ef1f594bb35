// Package document adapts the MuPDF bindings to the small surface the
// heading index needs: outline extraction, metadata title, page counting and
// page rasterization.
package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// nativeDPI is the PDF user-space resolution; zoom factors scale from it.
const nativeDPI = 72.0

// ErrDecode reports that a file could not be opened as a PDF.
var ErrDecode = errors.New("not a decodable pdf")

// Heading is one table-of-contents entry. Page is 1-based.
type Heading struct {
	Level int
	Title string
	Page  int
}

// Document is an opened reference manual.
type Document interface {
	TableOfContents() ([]Heading, error)
	MetadataTitle() string
	PageCount() int
	// RenderPage rasterizes a 1-based page at zoom times native resolution
	// and returns PNG bytes.
	RenderPage(page int, zoom float64) ([]byte, error)
	Close() error
}

type fitzDocument struct {
	doc *fitz.Document
}

// Open opens path with MuPDF. The handle stays open until Close.
func Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %v", path, ErrDecode, err)
	}
	return &fitzDocument{doc: doc}, nil
}

func (d *fitzDocument) TableOfContents() ([]Heading, error) {
	outline, err := d.doc.ToC()
	if errors.Is(err, fitz.ErrLoadOutline) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load outline: %w", err)
	}
	return headingsFromOutline(outline), nil
}

// headingsFromOutline converts MuPDF's 0-based outline pages. Items without
// a destination inherit the page of the heading before them.
func headingsFromOutline(outline []fitz.Outline) []Heading {
	headings := make([]Heading, 0, len(outline))
	last := 1
	for _, o := range outline {
		page := o.Page + 1
		if o.Page < 0 {
			page = last
		}
		last = page
		headings = append(headings, Heading{
			Level: o.Level,
			Title: strings.TrimSpace(o.Title),
			Page:  page,
		})
	}
	return headings
}

func (d *fitzDocument) MetadataTitle() string {
	return strings.TrimSpace(d.doc.Metadata()["title"])
}

func (d *fitzDocument) PageCount() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(page int, zoom float64) ([]byte, error) {
	if page < 1 || page > d.doc.NumPage() {
		return nil, fmt.Errorf("render page %d: out of range 1-%d", page, d.doc.NumPage())
	}
	dpi := nativeDPI
	if zoom != 1.0 {
		dpi = nativeDPI * zoom
	}
	png, err := d.doc.ImagePNG(page-1, dpi)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	return png, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}

// Pages lists the 1-based pages from start to end inclusive, clamped to the
// document length. An empty document or inverted range yields nil.
func Pages(doc Document, start, end int) []int {
	count := doc.PageCount()
	if start < 1 {
		start = 1
	}
	if end > count {
		end = count
	}
	if start > end {
		return nil
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}
