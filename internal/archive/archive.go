// Package archive bundles result files into a single zip download.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Build writes every existing file of paths into a deflate-compressed zip
// named name, placed in the directory of the first existing file. Entries
// keep only their base names. Empty entries and missing files are skipped;
// when nothing is left Build returns "" and no error.
func Build(paths []string, name string) (string, error) {
	existing := Existing(paths)
	if len(existing) == 0 {
		return "", nil
	}

	name = filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		name += ".zip"
	}
	archivePath := filepath.Join(filepath.Dir(existing[0]), name)

	if err := write(archivePath, existing); err != nil {
		_ = os.Remove(archivePath)
		return "", err
	}
	return archivePath, nil
}

// Existing returns the non-empty entries of paths that are regular files.
func Existing(paths []string) []string {
	var out []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	return out
}

func write(archivePath string, files []string) (err error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
	}()

	zw := zip.NewWriter(f)
	seen := make(map[string]int, len(files))
	for _, p := range files {
		if err := addFile(zw, p, entryName(p, seen)); err != nil {
			return errors.Join(err, zw.Close())
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// entryName returns the base name of p, suffixed when another file with
// the same base name was already added.
func entryName(p string, seen map[string]int) string {
	base := filepath.Base(p)
	n := seen[base]
	seen[base] = n + 1
	if n == 0 {
		return base
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, ext), n, ext)
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	fi, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	header, err := zip.FileInfoHeader(fi)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", path, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("zip copy %s: %w", path, err)
	}
	return nil
}
