package console

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"embroidery-template-cleaner/internal/cleaner"
	"embroidery-template-cleaner/internal/config"
	"embroidery-template-cleaner/internal/deleter"
	"embroidery-template-cleaner/internal/deleter/deletertest"
	"embroidery-template-cleaner/internal/events"
	"embroidery-template-cleaner/internal/session"
)

func setup(t *testing.T) (string, config.Configuration) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for _, p := range []string{"a/file.dst", "a/thumb.png"} {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("1234"), 0o644))
	}
	cfg, err := config.New(root, []string{".dst"})
	require.NoError(t, err)
	return root, cfg
}

func TestConsole_PromptsForConfirmation(t *testing.T) {
	root, cfg := setup(t)
	var out bytes.Buffer
	c := New(Options{In: strings.NewReader("y\n"), Out: &out})

	res, err := c.Run(context.Background(), session.Start(context.Background(), cfg, cleaner.Options{}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedCount)
	assert.NoDirExists(t, filepath.Join(root, "a"))
	assert.Contains(t, out.String(), "only contains display files (thumb.png)")
	assert.Contains(t, out.String(), "Deleted 1 files from "+root)
	assert.Contains(t, out.String(), "Freed: 4 B")
}

func TestConsole_EOFDeclines(t *testing.T) {
	root, cfg := setup(t)
	var out bytes.Buffer
	c := New(Options{In: strings.NewReader(""), Out: &out})

	res, err := c.Run(context.Background(), session.Start(context.Background(), cfg, cleaner.Options{}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedCount)
	assert.FileExists(t, filepath.Join(root, "a", "thumb.png"))
}

func TestConsole_RetryPromptRepeatsUntilValid(t *testing.T) {
	root, cfg := setup(t)
	fsys := deletertest.NewFaultFS(nil)
	fsys.Fail(filepath.Join(root, "a", "file.dst"), 1)

	var out bytes.Buffer
	c := New(Options{In: strings.NewReader("later\nr\n"), Out: &out, AssumeYes: true})
	res, err := c.Run(context.Background(), session.Start(context.Background(), cfg, cleaner.Options{FS: fsys}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedCount)
	assert.Equal(t, 2, strings.Count(out.String(), "[r]etry, [s]kip, [a]bort: "))
}

func TestConsole_JSONWithPresetChoice(t *testing.T) {
	root, cfg := setup(t)
	fsys := deletertest.NewFaultFS(nil)
	fsys.Fail(filepath.Join(root, "a", "file.dst"), -1)

	abort := events.Abort
	var out, prompt bytes.Buffer
	c := New(Options{In: strings.NewReader(""), Out: &out, Prompt: &prompt, OnError: &abort, JSON: true})
	_, err := c.Run(context.Background(), session.Start(context.Background(), cfg, cleaner.Options{FS: fsys}))
	require.Error(t, err)

	var got summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, got.Aborted)
	assert.Equal(t, "user aborted", got.Error)
	assert.Empty(t, prompt.String())
}

func TestConsole_PresetRetryRecovers(t *testing.T) {
	root, cfg := setup(t)
	fsys := deletertest.NewFaultFS(nil)
	fsys.Fail(filepath.Join(root, "a", "file.dst"), 2)

	retry := events.Retry
	var out bytes.Buffer
	c := New(Options{In: strings.NewReader(""), Out: &out, OnError: &retry, AssumeYes: true})
	res, err := c.Run(context.Background(), session.Start(context.Background(), cfg, cleaner.Options{FS: fsys}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedCount)
	assert.NotContains(t, out.String(), "[r]etry, [s]kip, [a]bort: ")
}

func TestConsole_PresetRetryGivesUpToPrompt(t *testing.T) {
	root, cfg := setup(t)
	fsys := deletertest.NewFaultFS(nil)
	fsys.Fail(filepath.Join(root, "a", "file.dst"), -1)

	retry := events.Retry
	var out bytes.Buffer
	c := New(Options{In: strings.NewReader(""), Out: &out, OnError: &retry})

	done := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background(), session.Start(context.Background(), cfg, cleaner.Options{FS: fsys}))
		done <- err
	}()
	select {
	case err := <-done:
		require.ErrorIs(t, err, deleter.ErrAborted)
	case <-time.After(5 * time.Second):
		t.Fatal("a path that keeps failing retried forever")
	}
	assert.Equal(t, 1, strings.Count(out.String(), "[r]etry, [s]kip, [a]bort: "))
	assert.Empty(t, fsys.Mutations())
	assert.FileExists(t, filepath.Join(root, "a", "file.dst"))
}
