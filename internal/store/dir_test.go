package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDir(t *testing.T) {
	t.Run("open creates parents", func(t *testing.T) {
		var assert = require.New(t)
		var path = filepath.Join(t.TempDir(), "a", "b")

		d, err := Open(path)
		assert.NoError(err)
		assert.Equal(path, d.Path())
		assert.DirExists(path)

		_, err = Open(path)
		assert.NoError(err)
	})

	t.Run("open file", func(t *testing.T) {
		var assert = require.New(t)
		var path = filepath.Join(t.TempDir(), "file")

		assert.NoError(os.WriteFile(path, []byte("x"), 0o644))

		_, err := Open(path)
		assert.Error(err)
	})

	t.Run("store", func(t *testing.T) {
		var assert = require.New(t)
		var ctx = context.Background()
		var d = open(t)

		path, err := d.Store(ctx, "a.png", []byte("png"))
		assert.NoError(err)
		assert.Equal(filepath.Join(d.Path(), "a.png"), path)

		buf, err := os.ReadFile(path)
		assert.NoError(err)
		assert.Equal("png", string(buf))

		entries, err := os.ReadDir(d.Path())
		assert.NoError(err)
		assert.Len(entries, 1)
	})

	t.Run("store replaces", func(t *testing.T) {
		var assert = require.New(t)
		var ctx = context.Background()
		var d = open(t)

		_, err := d.Store(ctx, "a.png", []byte("first"))
		assert.NoError(err)

		path, err := d.Store(ctx, "a.png", []byte("second"))
		assert.NoError(err)

		buf, err := os.ReadFile(path)
		assert.NoError(err)
		assert.Equal("second", string(buf))
	})

	t.Run("store invalid name", func(t *testing.T) {
		var assert = require.New(t)
		var ctx = context.Background()
		var d = open(t)

		for _, name := range []string{"", "../a.png", "a/b.png", ".hidden"} {
			_, err := d.Store(ctx, name, []byte("x"))
			assert.Error(err, name)
		}
	})

	t.Run("store canceled", func(t *testing.T) {
		var assert = require.New(t)
		var d = open(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := d.Store(ctx, "a.png", []byte("x"))
		assert.Equal(context.Canceled, err)
	})
}

func open(t testing.TB) *Dir {
	t.Helper()

	d, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %s", err)
	}

	return d
}
