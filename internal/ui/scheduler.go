// Package ui holds the terminal-side collaborators of a lookup: background
// task scheduling, the transient status line, report files and the external
// viewer.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Scheduler runs each user action on its own background goroutine so the
// caller is never blocked.
type Scheduler struct {
	Logger *slog.Logger

	wg sync.WaitGroup
}

// Task is one submitted action.
type Task struct {
	Name string

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Submit starts fn in the background. Task.Cancel only cancels the context
// passed to fn: the lookup engine stops its status display on it but lets
// in-flight loading and rendering finish.
func (s *Scheduler) Submit(ctx context.Context, name string, fn func(context.Context) error) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{Name: name, cancel: cancel, done: make(chan struct{})}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(t.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task %s panicked: %v", name, r)
			}
			if t.err != nil {
				s.logger().Error("task failed", "task", name, "error", t.err)
			}
		}()
		t.err = fn(ctx)
	}()
	return t
}

// Cancel signals the task's context.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the task returns and reports its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Done is closed when the task has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until every submitted task has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}
