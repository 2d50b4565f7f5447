package blob_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfourny/profilescout/internal/blob"
)

func TestNewLocalProvider(t *testing.T) {
	t.Run("ExistingDir", func(t *testing.T) {
		p, err := blob.NewLocalProvider(t.TempDir())
		require.NoError(t, err)
		assert.NotNil(t, p)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "archive")
		_, err := blob.NewLocalProvider(dir)
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("EmptyDir", func(t *testing.T) {
		_, err := blob.NewLocalProvider("  ")
		assert.Error(t, err)
	})

	t.Run("PathIsAFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := blob.NewLocalProvider(file)
		assert.Error(t, err)
	})
}

func TestLocalProviderSave(t *testing.T) {
	dir := t.TempDir()
	p, err := blob.NewLocalProvider(dir)
	require.NoError(t, err)

	t.Run("WritesNestedObject", func(t *testing.T) {
		err := p.Save(context.Background(), "pages/2026/08/23/abc.html", []byte("<html></html>"))
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(dir, "pages", "2026", "08", "23", "abc.html"))
		require.NoError(t, err)
		assert.Equal(t, "<html></html>", string(data))
	})

	t.Run("RejectsTraversal", func(t *testing.T) {
		err := p.Save(context.Background(), "../escape.html", []byte("x"))
		assert.Error(t, err)
	})

	t.Run("RejectsEmptyName", func(t *testing.T) {
		assert.Error(t, p.Save(context.Background(), "", []byte("x")))
	})
}
