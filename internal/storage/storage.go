// Package storage provides file storage for uploads and clip outputs.
// It defines the Storage interface (port) used by the clip pipeline and
// dispatch layer, with implementations for local disk and S3 publication.
package storage

import (
	"context"
	"io"
)

// Storage defines where request inputs and pipeline outputs live.
// The pipeline depends only on this interface, never on a fixed directory.
type Storage interface {
	// SaveTemp saves data to a new uniquely named file and returns its path.
	// The name is used as a hint; its extension is preserved.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp opens a stored file for reading.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// Remove deletes a single stored file. Removing a missing file is not an error.
	Remove(ctx context.Context, path string) error

	// ListExisting returns the subset of paths that are non-empty and refer
	// to existing regular files, preserving order.
	ListExisting(paths []string) []string

	// Path returns the location for a new output file with the given base name.
	Path(name string) string

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
