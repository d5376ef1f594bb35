package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/canonical/pdfref/internal/app"
	"github.com/canonical/pdfref/internal/config"
	"github.com/canonical/pdfref/internal/logging"
	"github.com/canonical/pdfref/internal/registry"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config JSON")
	logLevel := flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	arch := flag.String("arch", "", "Architecture to load (overrides config arch)")
	manualName := flag.String("manual", "", "Print the table of contents of this manual file name")
	query := flag.String("q", "", "Search loaded headings instead of listing manuals")
	limit := flag.Int("limit", 20, "Maximum number of headings printed by -q")
	flag.Parse()

	logger := logging.BuildLogger(*logLevel)

	opts := options{arch: *arch, manual: *manualName, query: *query, limit: *limit}
	if err := run(os.Stdout, logger, *configPath, opts); err != nil {
		logger.Error("toc failed", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	arch   string
	manual string
	query  string
	limit  int
}

func run(out io.Writer, logger *slog.Logger, configPath string, opts options) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	arch, err := cfg.ResolveArch(opts.arch)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	manuals := a.Registry.Manuals(ctx, arch)
	if len(manuals) == 0 {
		msg := fmt.Sprintf("no manuals for %s", registry.NormalizeArch(arch))
		if suggestions := a.Registry.Suggest(arch); len(suggestions) > 0 {
			msg += "; available: " + strings.Join(suggestions, ", ")
		}
		return errors.New(msg)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()

	switch {
	case opts.query != "":
		resp, err := a.Catalog.Search(ctx, opts.query, registry.NormalizeArch(arch), opts.limit)
		if err != nil {
			return err
		}
		for _, r := range resp.Results {
			fmt.Fprintf(tw, "%s\t%s:%d\n", r.Title, r.Filename, r.Page)
		}
		fmt.Fprintf(tw, "%d of %d headings\n", len(resp.Results), resp.Total)
	case opts.manual != "":
		for _, m := range manuals {
			if m.Filename != opts.manual {
				continue
			}
			for _, h := range m.Headings() {
				fmt.Fprintf(tw, "%s%s\t%d\n", strings.Repeat("  ", max(h.Level-1, 0)), h.Title, h.Page)
			}
			return nil
		}
		return fmt.Errorf("manual %s not loaded for %s", opts.manual, registry.NormalizeArch(arch))
	default:
		for _, m := range manuals {
			fmt.Fprintf(tw, "%s\t%s\t%d headings\t%s\n", m.Filename, m.Title, len(m.Headings()), m.Path)
		}
	}
	return nil
}
