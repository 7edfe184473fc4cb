package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	t.Run("valid", func(t *testing.T) {
		cfg, err := New(root, []string{"DST", ".Pes", ".png"})
		require.NoError(t, err)
		assert.Equal(t, root, cfg.TargetDir())
		assert.Equal(t, []string{".dst", ".pes", ".png"}, cfg.Extensions())
		assert.True(t, cfg.Matches("flower.PES"))
		assert.False(t, cfg.Matches("notes.txt"))
	})

	t.Run("no target", func(t *testing.T) {
		cfg, err := New("", nil)
		require.NoError(t, err)
		assert.False(t, cfg.HasTarget())
		assert.Empty(t, cfg.Extensions())
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := New(filepath.Join(root, "nope"), nil)
		require.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("file instead of directory", func(t *testing.T) {
		_, err := New(file, nil)
		require.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "not a directory")
	})

	t.Run("unrecognized extension is rejected", func(t *testing.T) {
		_, err := New(root, []string{".dst", ".txt", ".docx"})
		require.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), ".docx, .txt")
	})
}

func TestWithHelpersRevalidate(t *testing.T) {
	root := t.TempDir()
	cfg, err := New(root, []string{".dst"})
	require.NoError(t, err)

	_, err = cfg.WithExtensions([]string{".zip"})
	require.ErrorIs(t, err, ErrInvalid)

	moved, err := cfg.WithTarget("")
	require.NoError(t, err)
	assert.False(t, moved.HasTarget())
	assert.Equal(t, []string{".dst"}, moved.Extensions())
}

func TestStoreRoundTripJSON(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "cfg", "cleaner.json"))

	cfg, err := New(root, []string{".jef", ".dst"})
	require.NoError(t, err)
	require.NoError(t, store.Save(cfg))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"extensions_to_delete"`)
	assert.Contains(t, string(data), `".dst"`)

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.TargetDir(), got.TargetDir())
	assert.Equal(t, []string{".dst", ".jef"}, got.Extensions())
}

func TestStoreYAML(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "cleaner.yaml")
	content := "target_directory: " + root + "\nextensions_to_delete:\n  - .PES\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, root, got.TargetDir())
	assert.Equal(t, []string{".pes"}, got.Extensions())
}

func TestStoreLoadFallsBackToEmpty(t *testing.T) {
	root := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		cfg, err := NewStore(filepath.Join(root, "absent.json")).Load()
		require.NoError(t, err)
		assert.False(t, cfg.HasTarget())
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(root, "corrupt.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		cfg, err := NewStore(path).Load()
		require.Error(t, err)
		assert.False(t, cfg.HasTarget())
		assert.Empty(t, cfg.Extensions())
	})

	t.Run("invalid record", func(t *testing.T) {
		path := filepath.Join(root, "invalid.json")
		rec := `{"target_directory": "` + root + `", "extensions_to_delete": [".dst", ".exe"]}`
		require.NoError(t, os.WriteFile(path, []byte(rec), 0o644))
		cfg, err := NewStore(path).Load()
		require.ErrorIs(t, err, ErrInvalid)
		assert.False(t, cfg.HasTarget())
		assert.Empty(t, cfg.Extensions())
	})
}

func TestDefaultPathHonorsEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/custom.yaml")
	assert.Equal(t, "/tmp/custom.yaml", DefaultPath())
	assert.Equal(t, "/tmp/custom.yaml", NewStore("").Path())
}
