package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/report.html
var assets embed.FS

var pageTemplate = template.Must(template.ParseFS(assets, "templates/report.html"))

type pageView struct {
	Title       string
	Collections []Collection
}

// WriteHTML writes a standalone report document for the given collections.
func WriteHTML(w io.Writer, title string, collections []Collection) error {
	if err := pageTemplate.ExecuteTemplate(w, "report", pageView{Title: title, Collections: collections}); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
