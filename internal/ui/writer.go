package ui

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/canonical/pdfref/internal/report"
	"github.com/canonical/pdfref/internal/storage"
)

// ReportWriter saves reports as HTML files and announces their location.
type ReportWriter struct {
	Storage *storage.FSStorage
	// Out receives the path of every report written.
	Out io.Writer
}

// Write renders collections and stores them under a unique name. It
// returns the absolute path of the file.
func (w *ReportWriter) Write(ctx context.Context, title string, collections []report.Collection) (string, error) {
	var buf bytes.Buffer
	if err := report.WriteHTML(&buf, title, collections); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%s.html", reportSlug(title), uuid.NewString())
	path, err := w.Storage.WriteReport(ctx, name, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	if err := w.Storage.LinkLatest(ctx, name); err != nil {
		return "", fmt.Errorf("link latest report: %w", err)
	}
	if w.Out != nil {
		fmt.Fprintln(w.Out, path)
	}
	return path, nil
}

func reportSlug(title string) string {
	if slug := report.Slugify(title); slug != "" {
		return slug
	}
	return "report"
}
