// Package asset downloads remote inputs, such as background music, into
// local temp storage.
package asset

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/maauso/clipper-api/internal/storage"
)

// Static errors for asset downloads.
var (
	// ErrUnsupportedURL is returned for anything but absolute http(s) URLs.
	ErrUnsupportedURL = errors.New("asset: unsupported URL")
	// ErrDownloadFailed is returned when the server answers with a non-2xx status.
	ErrDownloadFailed = errors.New("asset: download failed")
	// ErrNotMedia is returned when the body is neither audio nor video.
	ErrNotMedia = errors.New("asset: content is not audio or video")
	// ErrTooLarge is returned when the body exceeds the configured limit.
	ErrTooLarge = errors.New("asset: content too large")
)

// sniffLen is how many leading bytes are inspected to detect the content type.
const sniffLen = 3072

// Result is the outcome of a fetch. A non-nil Err means the caller should
// carry on without the asset; Path is then empty.
type Result struct {
	Path     string
	MIMEType string
	Size     int64
	Err      error
}

// OK reports whether the asset was downloaded.
func (r Result) OK() bool {
	return r.Err == nil && r.Path != ""
}

// Fetcher downloads remote media into storage.
type Fetcher struct {
	store      storage.Storage
	httpClient *http.Client
	maxBytes   int64
	logger     *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithTimeout sets the overall download timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithMaxBytes limits the accepted body size.
func WithMaxBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// NewFetcher creates a Fetcher saving into store.
func NewFetcher(store storage.Storage, logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		store:      store,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxBytes:   200 << 20,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL into temp storage. It never returns an error
// directly: failures are reported in Result.Err and logged as a warning.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Result {
	res := f.fetch(ctx, rawURL)
	if res.Err != nil {
		f.logger.Warn("background music unavailable, continuing without it",
			slog.String("url", rawURL),
			slog.String("error", res.Err.Error()),
		)
		return res
	}
	f.logger.Info("downloaded background music",
		slog.String("url", rawURL),
		slog.String("mime", res.MIMEType),
		slog.String("size", humanize.Bytes(uint64(res.Size))),
	)
	return res
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) Result {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Result{Err: fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{Err: fmt.Errorf("asset: create request: %w", err)}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("asset: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Err: fmt.Errorf("%w with status %d", ErrDownloadFailed, resp.StatusCode)}
	}
	if resp.ContentLength > f.maxBytes {
		return Result{Err: fmt.Errorf("%w: %s", ErrTooLarge, humanize.Bytes(uint64(resp.ContentLength)))}
	}

	br := bufio.NewReaderSize(resp.Body, sniffLen)
	head, _ := br.Peek(sniffLen)
	mtype := mimetype.Detect(head)
	if !isMedia(mtype) {
		return Result{Err: fmt.Errorf("%w: %s", ErrNotMedia, mtype.String())}
	}

	body := &countingReader{r: io.LimitReader(br, f.maxBytes+1)}
	saved, err := f.store.SaveTemp(ctx, fileName(u, mtype), body)
	if err != nil {
		return Result{Err: fmt.Errorf("asset: save: %w", err)}
	}
	if body.n > f.maxBytes {
		_ = f.store.Remove(ctx, saved)
		return Result{Err: fmt.Errorf("%w: more than %s", ErrTooLarge, humanize.Bytes(uint64(f.maxBytes)))}
	}

	return Result{Path: saved, MIMEType: mtype.String(), Size: body.n}
}

// isMedia reports whether mtype, or one of its parents, is audio or video.
func isMedia(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") || strings.HasPrefix(m.String(), "video/") {
			return true
		}
	}
	return false
}

// fileName keeps the URL's base name but takes the extension from the
// detected type, so ffmpeg probes the right demuxer.
func fileName(u *url.URL, mtype *mimetype.MIME) string {
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		base = "music"
	}
	return strings.TrimSuffix(base, path.Ext(base)) + mtype.Extension()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
