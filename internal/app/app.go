// Package app wires the configured registry, heading catalog, page renderer
// and lookup engine shared by the pdfref binaries.
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/canonical/pdfref/internal/config"
	"github.com/canonical/pdfref/internal/lookup"
	"github.com/canonical/pdfref/internal/metrics"
	"github.com/canonical/pdfref/internal/redirect"
	"github.com/canonical/pdfref/internal/registry"
	"github.com/canonical/pdfref/internal/report"
	"github.com/canonical/pdfref/internal/search"
)

type App struct {
	Config   *config.Config
	Registry *registry.Registry
	Catalog  *search.Catalog
	Stubs    *redirect.Stubs
	Metrics  *metrics.Metrics
	Engine   *lookup.Engine
	// KeepStubs leaves redirect stubs behind on Close, for reports saved to
	// disk that link through them.
	KeepStubs bool

	logger *slog.Logger
}

// New builds the application for cfg. Metrics are registered on registerer
// when it is not nil. The engine has no presenter; callers set one.
func New(cfg *config.Config, logger *slog.Logger, registerer prometheus.Registerer) (*App, error) {
	var m *metrics.Metrics
	if registerer != nil {
		m = metrics.New(registerer)
	}

	catalog, err := search.NewCatalog()
	if err != nil {
		return nil, fmt.Errorf("open heading catalog: %w", err)
	}

	renderer, err := report.NewRenderer(cfg.RenderCacheSize, m)
	if err != nil {
		_ = catalog.Close()
		return nil, err
	}

	reg := registry.New(cfg.ManualsDir, cfg.PluginsDir)
	reg.Indexer = catalog
	reg.Logger = logger
	reg.Metrics = m

	stubs := redirect.New(cfg.StubDir)
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &App{
		Config:   cfg,
		Registry: reg,
		Catalog:  catalog,
		Stubs:    stubs,
		Metrics:  m,
		logger:   logger,
		Engine: &lookup.Engine{
			Manuals:  reg,
			Linker:   stubs,
			Renderer: renderer,
			Settings: cfg.Settings,
			Arch:     cfg.Arch,
			Logger:   logger,
			Metrics:  m,
		},
	}, nil
}

// Close releases the loaded manuals and the catalog and removes redirect
// stubs unless KeepStubs is set. Stub removal is best effort and never
// reported.
func (a *App) Close() error {
	if a.KeepStubs {
		if kept := a.Stubs.Paths(); len(kept) > 0 {
			a.logger.Info("keeping redirect stubs", "count", len(kept), "dir", a.Stubs.Dir)
		}
	} else {
		a.Stubs.Cleanup()
	}
	return errors.Join(a.Registry.Close(), a.Catalog.Close())
}
