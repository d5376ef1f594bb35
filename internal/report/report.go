// Package report assembles rendered manual pages into HTML report sections
// grouped by manual.
package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"regexp"
	"strings"
)

// Linker produces the hyperlink wrapped around a rendered page.
type Linker interface {
	LinkFor(manualPath string, page int) (string, error)
}

// Page is one rasterized manual page. Link comes from a Linker and is
// trusted, since file: URLs would otherwise be filtered by html/template.
type Page struct {
	Number int
	PNG    []byte
	Link   template.URL
}

// ImageURI embeds the PNG as a data URI.
func (p Page) ImageURI() template.URL {
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(p.PNG))
}

// Section is the report for one matched heading.
type Section struct {
	Heading  string
	Level    int
	Position int
	Start    int
	End      int
	DocTitle string
	Pages    []Page
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases text and joins its alphanumeric runs with hyphens.
func Slugify(text string) string {
	slug := strings.ToLower(text)
	slug = nonAlphanumeric.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// ID is an anchor unique within a collection.
func (s Section) ID() string {
	slug := Slugify(s.Heading)
	if slug == "" {
		slug = "heading"
	}
	return fmt.Sprintf("%s-%d", slug, s.Position)
}

var fragmentTemplate = template.Must(template.New("fragment").Parse(
	`<b>{{.DocTitle}}</b><br>` +
		`{{range .Pages}}<a href="{{.Link}}"><img src="{{.ImageURI}}" alt="page {{.Number}}"/></a>{{end}}`))

// HTML renders the section body: the manual title followed by each page
// image linked to its page.
func (s Section) HTML() template.HTML {
	var b bytes.Buffer
	if err := fragmentTemplate.Execute(&b, s); err != nil {
		return template.HTML(template.HTMLEscapeString(err.Error()))
	}
	return template.HTML(b.String())
}

// Collection groups the sections found in one manual.
type Collection struct {
	Title    string
	Manual   string
	Path     string
	Sections []Section
}

// PageCount totals the rendered pages of a collection.
func (c Collection) PageCount() int {
	n := 0
	for _, s := range c.Sections {
		n += len(s.Pages)
	}
	return n
}
