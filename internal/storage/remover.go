package storage

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"syscall"
	"time"
)

// Defaults for Remover.
const (
	DefaultRemoveAttempts = 3
	DefaultRemoveBackoff  = 500 * time.Millisecond
)

// Remover performs best-effort deletion of transient files.
// Permission and lock failures are retried with a fixed backoff; once the
// attempts are exhausted a warning is logged and Remove returns normally.
type Remover struct {
	store       Storage
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

// RemoverOption configures a Remover.
type RemoverOption func(*Remover)

// WithMaxAttempts sets how many times a locked file is tried.
func WithMaxAttempts(n int) RemoverOption {
	return func(r *Remover) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBackoff sets the fixed wait between attempts.
func WithBackoff(d time.Duration) RemoverOption {
	return func(r *Remover) {
		if d >= 0 {
			r.backoff = d
		}
	}
}

// NewRemover creates a Remover deleting through store.
func NewRemover(store Storage, logger *slog.Logger, opts ...RemoverOption) *Remover {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Remover{
		store:       store,
		maxAttempts: DefaultRemoveAttempts,
		backoff:     DefaultRemoveBackoff,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Remove deletes path, never returning an error to the caller.
// It reports whether the file is gone.
func (r *Remover) Remove(ctx context.Context, path string) bool {
	if path == "" {
		return true
	}

	var lastErr error
retry:
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := r.store.Remove(ctx, path)
		if err == nil {
			return true
		}
		lastErr = err

		if !isLockError(err) || attempt == r.maxAttempts {
			break retry
		}

		r.logger.Debug("file busy, retrying removal",
			slog.String("path", path),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", r.backoff),
		)

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break retry
		case <-time.After(r.backoff):
		}
	}

	r.logger.Warn("could not remove file",
		slog.String("path", path),
		slog.String("error", lastErr.Error()),
	)
	return false
}

// RemoveAll removes each path independently.
func (r *Remover) RemoveAll(ctx context.Context, paths ...string) {
	for _, p := range paths {
		r.Remove(ctx, p)
	}
}

// isLockError reports failures worth retrying: permission denied or a busy file.
func isLockError(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EBUSY)
}
