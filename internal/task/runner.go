package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrRunnerClosed is returned by Go once the runner stopped accepting work.
var ErrRunnerClosed = errors.New("task runner is shutting down")

// Runner executes units of work without blocking the caller.
type Runner interface {
	// Go schedules fn. The context passed to fn keeps ctx's values but is
	// not cancelled when ctx is.
	Go(ctx context.Context, name string, fn func(ctx context.Context)) error

	// Wait stops accepting work and blocks until scheduled work finishes
	// or ctx is done.
	Wait(ctx context.Context) error
}

// BackgroundRunner runs each unit of work on its own goroutine.
// There is no ordering between units.
type BackgroundRunner struct {
	logger *slog.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewBackgroundRunner creates a BackgroundRunner.
func NewBackgroundRunner(logger *slog.Logger) *BackgroundRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackgroundRunner{logger: logger}
}

// Go implements Runner.
func (r *BackgroundRunner) Go(ctx context.Context, name string, fn func(ctx context.Context)) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRunnerClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("background task panicked",
					slog.String("task", name),
					slog.String("panic", fmt.Sprint(rec)),
				)
			}
		}()
		fn(detached)
	}()
	return nil
}

// Wait implements Runner.
func (r *BackgroundRunner) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}

// Verify interface implementation at compile time.
var _ Runner = (*BackgroundRunner)(nil)
