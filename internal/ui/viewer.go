package ui

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// DefaultViewer is the URI opener of the platform.
func DefaultViewer() string {
	if runtime.GOOS == "darwin" {
		return "open"
	}
	return "xdg-open"
}

// Viewer hands URIs to an external program.
type Viewer struct {
	Binary string
	Logger *slog.Logger
	// Timeout bounds how long the launcher itself may run.
	Timeout time.Duration
	// Wait makes Open block until the launcher exits and report its failure.
	Wait bool
}

func NewViewer(binary string) *Viewer {
	if binary == "" {
		binary = DefaultViewer()
	}
	return &Viewer{Binary: binary, Timeout: 30 * time.Second}
}

// Open starts the viewer on uri. Unless Wait is set it returns once the
// launcher started and reaps it in the background, only logging its failure.
func (v *Viewer) Open(ctx context.Context, uri string) error {
	if !v.Wait {
		// The launched viewer outlives the lookup that asked for it.
		ctx = context.WithoutCancel(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout())

	cmd := exec.CommandContext(ctx, v.Binary, uri)
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start viewer %s: %w", v.Binary, err)
	}
	if v.Wait {
		defer cancel()
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("viewer %s failed: %w: %s", v.Binary, err, strings.TrimSpace(stderr.String()))
		}
		return nil
	}
	go func() {
		defer cancel()
		if err := cmd.Wait(); err != nil {
			v.logger().Warn("viewer failed", "binary", v.Binary, "uri", uri, "error", err, "stderr", strings.TrimSpace(stderr.String()))
		}
	}()
	return nil
}

func (v *Viewer) timeout() time.Duration {
	if v.Timeout <= 0 {
		return 30 * time.Second
	}
	return v.Timeout
}

func (v *Viewer) logger() *slog.Logger {
	if v.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return v.Logger
}
