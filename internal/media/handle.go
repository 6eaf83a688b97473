package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrHandleClosed is returned when a closed Handle is used.
var ErrHandleClosed = errors.New("media handle is closed")

// Handle gives one operation exclusive access to an inspected media file.
// Files registered with Scratch are owned by the handle and deleted on
// Close unless released with Keep first. A Handle is never shared between
// clip windows.
type Handle struct {
	path string
	info Info

	mu      sync.Mutex
	scratch map[string]struct{}
	order   []string
	closed  bool
}

// Open probes path and returns a Handle over it.
func Open(ctx context.Context, prober Prober, path string) (*Handle, error) {
	info, err := prober.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Handle{
		path:    path,
		info:    info,
		scratch: make(map[string]struct{}),
	}, nil
}

// Path returns the media file path.
func (h *Handle) Path() string { return h.path }

// Info returns the probed metadata.
func (h *Handle) Info() Info { return h.info }

// Duration returns the probed duration in seconds.
func (h *Handle) Duration() float64 { return h.info.Duration }

// Scratch registers path as a transient output of this handle and returns it.
func (h *Handle) Scratch(path string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", ErrHandleClosed
	}
	if _, ok := h.scratch[path]; !ok {
		h.scratch[path] = struct{}{}
		h.order = append(h.order, path)
	}
	return path, nil
}

// Keep releases path from the handle so Close leaves it on disk.
func (h *Handle) Keep(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.scratch, path)
}

// Close deletes every scratch file still owned by the handle.
// It is safe to call more than once.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	for _, p := range h.order {
		if _, owned := h.scratch[p]; !owned {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	h.scratch = nil
	h.order = nil
	return errors.Join(errs...)
}
