package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/canonical/pdfref/internal/manual"
)

const (
	DefaultTokenFilter     = "Case Insensitive"
	DefaultPeekSpeed       = 0.5
	DefaultRenderZoom      = 1.4
	DefaultSeparators      = "—/"
	DefaultWorkers         = 8
	DefaultRenderCacheSize = 256
)

// Config matches the JSON settings file read by the pdfref binaries.
type Config struct {
	ManualsDir      string  `json:"manuals_dir"`
	PluginsDir      string  `json:"plugins_dir"`
	Arch            string  `json:"arch"`
	TokenFilter     string  `json:"token_filter"`
	// PeekSpeed, RenderZoom and Separators are pointers so an explicit
	// zero value in the file is kept rather than defaulted.
	PeekSpeed       *float64 `json:"statusbar_peek_speed,omitempty"`
	RenderZoom      *float64 `json:"pdf_render_zoom,omitempty"`
	Separators      *string  `json:"separators,omitempty"`
	Workers         int      `json:"workers"`
	Viewer          string   `json:"viewer"`
	StubDir         string   `json:"stub_dir"`
	ReportDir       string   `json:"report_dir"`
	RenderCacheSize int      `json:"render_cache_size"`
}

// Settings is the immutable per-search view of the configuration. It is
// resolved once at the start of every lookup and threaded through matching
// and rendering.
type Settings struct {
	Match      manual.MatchOptions
	PeekSpeed  float64
	RenderZoom float64
	Workers    int
}

// DefaultPath returns the config file location, honouring PDFREF_CONFIG_FILE.
func DefaultPath() string {
	if path := os.Getenv("PDFREF_CONFIG_FILE"); path != "" {
		return path
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pdfref.json"
	}
	return filepath.Join(dir, "pdfref", "config.json")
}

// Default returns a configuration with every setting at its default value.
// Manual directories are resolved relative to the running executable.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the config at path. A missing file at the default location
// yields the defaults; a missing file named explicitly is an error.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && path == DefaultPath() {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ManualsDir == "" || c.PluginsDir == "" {
		base := executableDir()
		if c.ManualsDir == "" {
			c.ManualsDir = filepath.Join(base, "manuals")
		}
		if c.PluginsDir == "" {
			c.PluginsDir = filepath.Dir(base)
		}
	}
	if c.TokenFilter == "" {
		c.TokenFilter = DefaultTokenFilter
	}
	if c.PeekSpeed == nil {
		speed := DefaultPeekSpeed
		c.PeekSpeed = &speed
	}
	if c.RenderZoom == nil {
		zoom := DefaultRenderZoom
		c.RenderZoom = &zoom
	}
	if c.Separators == nil {
		seps := DefaultSeparators
		c.Separators = &seps
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.StubDir == "" {
		c.StubDir = os.TempDir()
	}
	if c.ReportDir == "" {
		c.ReportDir = filepath.Join(os.TempDir(), "pdfref-reports")
	}
	if c.RenderCacheSize == 0 {
		c.RenderCacheSize = DefaultRenderCacheSize
	}
}

func (c *Config) Validate() error {
	if _, err := manual.ParseCaseMode(c.TokenFilter); err != nil {
		return fmt.Errorf("config token_filter: %w", err)
	}
	if c.PeekSpeed != nil && *c.PeekSpeed < 0 {
		return errors.New("config statusbar_peek_speed must not be negative")
	}
	if c.RenderZoom != nil && *c.RenderZoom <= 0 {
		return errors.New("config pdf_render_zoom must be positive")
	}
	if c.Workers < 1 {
		return errors.New("config workers must be at least 1")
	}
	if c.RenderCacheSize < 1 {
		return errors.New("config render_cache_size must be at least 1")
	}
	return nil
}

// Settings resolves the per-call settings. Validate guarantees the token
// filter parses, so an unknown value falls back to case insensitive.
func (c *Config) Settings() Settings {
	mode, err := manual.ParseCaseMode(c.TokenFilter)
	if err != nil {
		mode = manual.CaseInsensitive
	}
	seps := DefaultSeparators
	if c.Separators != nil {
		seps = *c.Separators
	}
	workers := c.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	speed, zoom := DefaultPeekSpeed, DefaultRenderZoom
	if c.PeekSpeed != nil {
		speed = *c.PeekSpeed
	}
	if c.RenderZoom != nil {
		zoom = *c.RenderZoom
	}
	return Settings{
		Match: manual.MatchOptions{
			Case:      mode,
			Tokenizer: manual.NewTokenizer(seps),
		},
		PeekSpeed:  speed,
		RenderZoom: zoom,
		Workers:    workers,
	}
}

// ResolveArch picks the architecture for a lookup: an explicit override
// wins over the configured default.
func (c *Config) ResolveArch(override string) (string, error) {
	if arch := strings.TrimSpace(override); arch != "" {
		return arch, nil
	}
	if c.Arch != "" {
		return c.Arch, nil
	}
	return "", errors.New("no architecture given and config arch is empty")
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
