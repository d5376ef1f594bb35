package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PeekTick is the cancellation polling interval of the status line.
const PeekTick = 100 * time.Millisecond

// StatusLine shows messages one after another on a single terminal line.
type StatusLine struct {
	W      io.Writer
	Prefix string
	// Tick overrides PeekTick.
	Tick time.Duration

	mu sync.Mutex
}

// Hold is how long a message stays up: speed seconds per ten characters.
func Hold(message string, speed float64) time.Duration {
	return time.Duration(speed * float64(len(message)) / 10 * float64(time.Second))
}

// Peek writes "<prefix> (i/n) message" for each message and holds it for
// Hold(message, speed). A cancelled ctx cuts the current hold short and
// skips the remaining messages.
func (s *StatusLine) Peek(ctx context.Context, messages []string, speed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tick := s.Tick
	if tick <= 0 {
		tick = PeekTick
	}
	prefix := s.Prefix
	if prefix == "" {
		prefix = "pdfref"
	}

	for i, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprintf(s.W, "\r\033[K%s (%d/%d) %s", prefix, i+1, len(messages), msg)
		if !hold(ctx, int(Hold(msg, speed)/tick), tick) {
			break
		}
	}
	fmt.Fprintln(s.W)
}

func hold(ctx context.Context, ticks int, tick time.Duration) bool {
	if ticks <= 0 {
		return true
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for range ticks {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}
