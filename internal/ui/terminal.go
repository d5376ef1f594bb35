package ui

import (
	"context"
	"net/url"

	"github.com/canonical/pdfref/internal/report"
)

// Terminal presents lookups on a terminal: peeks on the status line,
// reports as files opened in the viewer, matches straight in the viewer.
type Terminal struct {
	Status  *StatusLine
	Reports *ReportWriter
	Viewer  *Viewer
	// OpenReports also opens every written report in the viewer.
	OpenReports bool
}

func (t *Terminal) Peek(ctx context.Context, messages []string, speed float64) {
	t.Status.Peek(ctx, messages, speed)
}

func (t *Terminal) Report(ctx context.Context, title string, collections []report.Collection) error {
	path, err := t.Reports.Write(ctx, title, collections)
	if err != nil {
		return err
	}
	if !t.OpenReports {
		return nil
	}
	u := url.URL{Scheme: "file", Path: path}
	return t.Viewer.Open(ctx, u.String())
}

func (t *Terminal) Open(ctx context.Context, uri string) error {
	return t.Viewer.Open(ctx, uri)
}
