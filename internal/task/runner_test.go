package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackgroundRunner_RunsAndWaits(t *testing.T) {
	r := NewBackgroundRunner(discardLogger())
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		if err := r.Go(context.Background(), "unit", func(context.Context) {
			time.Sleep(10 * time.Millisecond)
			count.Add(1)
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count.Load() != 5 {
		t.Errorf("expected 5 completed units, got %d", count.Load())
	}
}

func TestBackgroundRunner_DetachesCancellation(t *testing.T) {
	r := NewBackgroundRunner(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	started := make(chan struct{})
	_ = r.Go(ctx, "unit", func(ctx context.Context) {
		close(started)
		time.Sleep(20 * time.Millisecond)
		errCh <- ctx.Err()
	})

	<-started
	cancel()

	if err := <-errCh; err != nil {
		t.Errorf("expected detached context to stay alive, got %v", err)
	}
	_ = r.Wait(context.Background())
}

func TestBackgroundRunner_RecoversPanics(t *testing.T) {
	r := NewBackgroundRunner(discardLogger())

	_ = r.Go(context.Background(), "boom", func(context.Context) {
		panic("kaboom")
	})

	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBackgroundRunner_RejectsAfterWait(t *testing.T) {
	r := NewBackgroundRunner(discardLogger())
	_ = r.Wait(context.Background())

	err := r.Go(context.Background(), "late", func(context.Context) {})
	if !errors.Is(err, ErrRunnerClosed) {
		t.Errorf("expected ErrRunnerClosed, got %v", err)
	}
}

func TestBackgroundRunner_WaitTimeout(t *testing.T) {
	r := NewBackgroundRunner(discardLogger())
	release := make(chan struct{})
	_ = r.Go(context.Background(), "slow", func(context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	close(release)
}
