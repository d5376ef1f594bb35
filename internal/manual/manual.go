// Package manual implements the heading index over one reference manual:
// a snapshot of its table of contents, token matching against heading
// words and page range resolution.
package manual

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/canonical/pdfref/internal/document"
)

// CaseMode selects how tokens and heading words are normalized before
// comparison.
type CaseMode int

const (
	// CaseInsensitive lower-cases both sides. It false-positives on common
	// words such as AND/OR.
	CaseInsensitive CaseMode = iota
	// UpperFold upper-cases the query only, for architectures whose
	// disassembly is lower case while the manuals are upper case.
	UpperFold
	// AsIs compares verbatim.
	AsIs
)

var caseModeNames = map[CaseMode]string{
	CaseInsensitive: "Case Insensitive",
	UpperFold:       "Convert to Upper",
	AsIs:            "As Is",
}

func (m CaseMode) String() string {
	if name, ok := caseModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("CaseMode(%d)", int(m))
}

// ParseCaseMode maps a token_filter setting value to a CaseMode.
func ParseCaseMode(s string) (CaseMode, error) {
	for mode, name := range caseModeNames {
		if strings.EqualFold(s, name) {
			return mode, nil
		}
	}
	return CaseInsensitive, fmt.Errorf("unknown token filter %q", s)
}

// Tokenizer splits heading titles into words on runs of whitespace or any
// of its separator runes.
type Tokenizer struct {
	separators string
}

// NewTokenizer returns a tokenizer splitting on whitespace plus seps.
func NewTokenizer(seps string) Tokenizer {
	return Tokenizer{separators: seps}
}

func (t Tokenizer) isSeparator(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(t.separators, r)
}

// Split returns the non-empty words of title.
func (t Tokenizer) Split(title string) []string {
	return strings.FieldsFunc(title, t.isSeparator)
}

// MatchOptions is the normalization policy applied by Match.
type MatchOptions struct {
	Case      CaseMode
	Tokenizer Tokenizer
}

// Match is a heading together with its position in the table of contents.
type Match struct {
	Index   int
	Heading document.Heading
}

// Manual is one opened reference document and its heading snapshot.
type Manual struct {
	Path     string
	Filename string
	Title    string

	doc document.Document
	toc []document.Heading
}

// New indexes doc. The table of contents is read once; changes to the file
// afterwards are not observed.
func New(path string, doc document.Document) (*Manual, error) {
	toc, err := doc.TableOfContents()
	if err != nil {
		return nil, fmt.Errorf("read table of contents of %s: %w", path, err)
	}
	return &Manual{
		Path:     path,
		Filename: filepath.Base(path),
		Title:    doc.MetadataTitle(),
		doc:      doc,
		toc:      toc,
	}, nil
}

// Open opens path with the PDF adapter and indexes it.
func Open(path string) (*Manual, error) {
	doc, err := document.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := New(path, doc)
	if err != nil {
		_ = doc.Close()
		return nil, err
	}
	return m, nil
}

// Headings returns a copy of the table of contents.
func (m *Manual) Headings() []document.Heading {
	out := make([]document.Heading, len(m.toc))
	copy(out, m.toc)
	return out
}

// Match returns the headings with a word equal to token under opts, in
// table of contents order.
func (m *Manual) Match(token string, opts MatchOptions) []Match {
	query := token
	switch opts.Case {
	case CaseInsensitive:
		query = strings.ToLower(token)
	case UpperFold:
		query = strings.ToUpper(token)
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}

	var matches []Match
	for i, h := range m.toc {
		for _, word := range opts.Tokenizer.Split(h.Title) {
			if opts.Case == CaseInsensitive {
				word = strings.ToLower(word)
			}
			if word == query {
				matches = append(matches, Match{Index: i, Heading: h})
				break
			}
		}
	}
	return matches
}

// PageRange returns the pages owned by the heading at index i: from its page
// to the page of the next heading in document order, regardless of nesting
// level. The last heading owns a single page.
func (m *Manual) PageRange(i int) (start, end int) {
	start = m.toc[i].Page
	end = start
	if i+1 < len(m.toc) {
		end = m.toc[i+1].Page
	}
	if end < start {
		end = start
	}
	return start, end
}

// Pages lists the renderable pages in [start, end].
func (m *Manual) Pages(start, end int) []int {
	return document.Pages(m.doc, start, end)
}

// Render rasterizes a 1-based page to PNG.
func (m *Manual) Render(page int, zoom float64) ([]byte, error) {
	return m.doc.RenderPage(page, zoom)
}

func (m *Manual) Close() error {
	return m.doc.Close()
}
