package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/canonical/pdfref/internal/app"
	"github.com/canonical/pdfref/internal/config"
	"github.com/canonical/pdfref/internal/logging"
	"github.com/canonical/pdfref/internal/lookup"
	"github.com/canonical/pdfref/internal/storage"
	"github.com/canonical/pdfref/internal/ui"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config JSON")
	logLevel := flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	arch := flag.String("arch", "", "Architecture of the token (overrides config arch)")
	action := flag.String("action", "peek", "What to do with matches (peek, search, open)")
	openReport := flag.Bool("open-report", true, "Open written search reports in the viewer")
	wait := flag.Bool("wait", false, "Wait for each viewer launch and report its failure")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] token...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := logging.BuildLogger(*logLevel)

	if err := run(logger, *configPath, *arch, *action, *openReport, *wait, flag.Args()); err != nil {
		logger.Error("lookup failed", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, archFlag, actionName string, openReport, wait bool, tokens []string) error {
	if len(tokens) == 0 {
		flag.Usage()
		return errors.New("no token given")
	}
	action, err := lookup.ParseAction(actionName)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	arch, err := cfg.ResolveArch(archFlag)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, logger, nil)
	if err != nil {
		return err
	}
	// Saved reports link to their pages through the stubs.
	a.KeepStubs = action == lookup.Search
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close manuals", "error", err)
		}
	}()

	viewer := ui.NewViewer(cfg.Viewer)
	viewer.Logger = logger
	viewer.Wait = wait
	a.Engine.Presenter = &ui.Terminal{
		Status: &ui.StatusLine{W: os.Stderr},
		Reports: &ui.ReportWriter{
			Storage: storage.NewFSStorage(cfg.ReportDir),
			Out:     os.Stdout,
		},
		Viewer:      viewer,
		OpenReports: openReport,
	}

	// Interrupt cuts the peek display short; loading and rendering finish.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := &ui.Scheduler{Logger: logger}
	tasks := make([]*ui.Task, 0, len(tokens))
	for _, token := range tokens {
		q := lookup.Query{Token: token, Action: action, Arch: arch}
		tasks = append(tasks, scheduler.Submit(ctx, action.String()+" "+token, func(ctx context.Context) error {
			return a.Engine.Run(ctx, q)
		}))
	}
	waitForTasks(ctx, logger, tasks)
	scheduler.Wait()

	var errs []error
	for _, t := range tasks {
		if err := t.Wait(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}

// waitForTasks blocks until every task returned. An interrupt only stops the
// status display, so the wait goes on with a notice.
func waitForTasks(ctx context.Context, logger *slog.Logger, tasks []*ui.Task) {
	interrupted := false
	for i, t := range tasks {
		if !interrupted {
			select {
			case <-t.Done():
				continue
			case <-ctx.Done():
				interrupted = true
				logger.Info("interrupted, waiting for running lookups to finish", "pending", len(tasks)-i)
			}
		}
		<-t.Done()
	}
}
