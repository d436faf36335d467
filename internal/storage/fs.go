package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/questcard/internal/checksum"
	"github.com/starford/questcard/internal/models"
)

const tempPrefix = ".questcard-tmp-"

// FS implements Provider backed by one local directory.
type FS struct {
	root string // absolute path to vault directory
}

var _ Provider = (*FS)(nil)

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// resolve maps a document name to its absolute path. Names with directory
// components, dot-prefixed names and anything that is not a document are
// rejected, which also keeps every path inside the vault.
func (f *FS) resolve(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", fmt.Errorf("storage: invalid document name %q", name)
	}
	if !IsDocument(name) {
		return "", fmt.Errorf("storage: not a document: %q", name)
	}
	return filepath.Join(f.root, name), nil
}

// List returns metadata for the documents directly under the vault root.
func (f *FS) List() ([]models.DocumentMetadata, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	out := make([]models.DocumentMetadata, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsDocument(e.Name()) {
			continue
		}
		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue // removed since ReadDir
		}
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		data, err := os.ReadFile(filepath.Join(f.root, e.Name()))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		out = append(out, models.DocumentMetadata{
			Path:      e.Name(),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Read returns the raw bytes of a document.
func (f *FS) Read(name string) ([]byte, error) {
	abs, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

// Write atomically replaces a document: temp file, fsync, rename, then fsync
// of the vault directory so the rename itself is durable.
func (f *FS) Write(name string, content []byte) error {
	abs, err := f.resolve(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return f.syncDir()
}

func (f *FS) syncDir() error {
	d, err := os.Open(f.root)
	if err != nil {
		return fmt.Errorf("storage: open root: %w", err)
	}
	defer d.Close()
	// Some platforms cannot fsync a directory; the rename has happened either way.
	_ = d.Sync()
	return nil
}

// Delete removes a document.
func (f *FS) Delete(name string) error {
	abs, err := f.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a document is present.
func (f *FS) Exists(name string) (bool, error) {
	abs, err := f.resolve(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", name, err)
	}
	return true, nil
}

// SweepTemp removes temp files older than maxAge left behind by interrupted
// writes and returns how many were removed.
func (f *FS) SweepTemp(maxAge time.Duration) (int, error) {
	matches, err := filepath.Glob(filepath.Join(f.root, tempPrefix+"*"))
	if err != nil {
		return 0, fmt.Errorf("storage: sweep: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	n := 0
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(m); err == nil {
			n++
		}
	}
	return n, nil
}

// IsDocument reports whether name is a stored document file.
func IsDocument(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, models.DocumentExt) && !strings.HasPrefix(base, ".")
}
