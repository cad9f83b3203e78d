// Package store implements the image destination directory.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir implements a destination directory.
//
// Writes are not visible under their final name until the
// file is fully written and fsynced, the store writes to a
// temporary file and renames it into place.
//
// Writing the same name twice replaces the previous file,
// the store doesn't implement any filesystem level locking.
type Dir struct {
	path string
	perm os.FileMode
}

// Open opens the directory at path, creating it and
// any missing parents.
//
// The method is idempotent, it returns an error if path
// exists and is not a directory or can't be created.
func Open(path string) (*Dir, error) {
	if path == "" {
		return nil, fmt.Errorf("store: empty directory path")
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %q - %w", path, err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("store: stat %q - %w", path, err)
	}

	if !stat.IsDir() {
		return nil, fmt.Errorf("store: %q is not a directory", path)
	}

	return &Dir{path: path, perm: 0o644}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Store writes v to the file `name` and returns its path.
//
// The name must be a plain file name, path separators
// are rejected.
func (d *Dir) Store(ctx context.Context, name string, v []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("store: invalid file name %q", name)
	}

	f, err := os.CreateTemp(d.path, ".*.tmp")
	if err != nil {
		return "", fmt.Errorf("store: open tempfile - %w", err)
	}

	cleanup := func() {
		f.Close()
		os.Remove(f.Name())
	}

	if _, err := f.Write(v); err != nil {
		cleanup()
		return "", fmt.Errorf("store: write - %w", err)
	}

	if err := f.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("store: fsync - %w", err)
	}

	if err := f.Chmod(d.perm); err != nil {
		cleanup()
		return "", fmt.Errorf("store: chmod - %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("store: close %s - %w", f.Name(), err)
	}

	var path = filepath.Join(d.path, name)
	if err := os.Rename(f.Name(), path); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("store: rename - %w", err)
	}

	return path, nil
}
