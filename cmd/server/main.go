package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/canonical/pdfref/internal/app"
	"github.com/canonical/pdfref/internal/config"
	"github.com/canonical/pdfref/internal/logging"
	"github.com/canonical/pdfref/internal/web"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config JSON")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	addr := flag.String("addr", ":8080", "HTTP bind address")
	arch := flag.String("arch", "", "Default architecture (overrides config arch)")
	flag.Parse()

	logger := logging.BuildLogger(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if *arch != "" {
		cfg.Arch = *arch
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(cfg, logger, promReg)
	if err != nil {
		logger.Error("init", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := web.NewServer(a.Engine, a.Registry, a.Catalog, promReg, logger)
	err = server.ListenAndServe(ctx, *addr)
	if cerr := a.Close(); cerr != nil {
		logger.Warn("close manuals", "error", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
