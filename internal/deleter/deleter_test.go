package deleter_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"embroidery-template-cleaner/internal/deleter"
	"embroidery-template-cleaner/internal/deleter/deletertest"
	"embroidery-template-cleaner/internal/events"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stitch"), 0o644))
}

func TestExecutor_SuccessEmitsNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.dst")
	writeFile(t, path)
	script := &deletertest.Script{}
	ex := deleter.NewExecutor(script)

	ok, err := ex.Do(context.Background(), "deleting file 'a.dst'", path, func() error { return os.Remove(path) })
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, script.Events())
	assert.NoFileExists(t, path)
}

func TestExecutor_RetryUntilSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.dst")
	writeFile(t, path)
	fsys := deletertest.NewFaultFS(nil)
	fsys.Fail(path, 2)
	script := &deletertest.Script{
		Choose: func(events.RequestRetrySkipAbort) events.Choice { return events.Retry },
	}
	ex := deleter.NewExecutor(script)

	ok, err := ex.Do(context.Background(), "deleting file", path, func() error { return fsys.Remove(path) })
	require.NoError(t, err)
	assert.True(t, ok)
	retries := script.Retries()
	require.Len(t, retries, 2)
	assert.Equal(t, path, retries[0].Path)
	assert.Equal(t, "deleting file", retries[0].Operation)
	assert.Contains(t, retries[0].Error, "permission denied")
	assert.NoFileExists(t, path)
}

func TestExecutor_Skip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.dst")
	writeFile(t, path)
	fsys := deletertest.NewFaultFS(nil)
	fsys.Fail(path, -1)
	ex := deleter.NewExecutor(&deletertest.Script{})

	ok, err := ex.Do(context.Background(), "deleting file", path, func() error { return fsys.Remove(path) })
	require.NoError(t, err)
	assert.False(t, ok)
	assert.FileExists(t, path)
}

func TestExecutor_Abort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.dst")
	writeFile(t, path)
	fsys := deletertest.NewFaultFS(nil)
	fsys.Fail(path, -1)
	ex := deleter.NewExecutor(&deletertest.Script{
		Choose: func(events.RequestRetrySkipAbort) events.Choice { return events.Abort },
	})

	ok, err := ex.Do(context.Background(), "deleting file", path, func() error { return fsys.Remove(path) })
	assert.False(t, ok)
	require.ErrorIs(t, err, deleter.ErrAborted)
}

func TestExecutor_NonRecoverableIsFatal(t *testing.T) {
	script := &deletertest.Script{}
	ex := deleter.NewExecutor(script)

	_, err := ex.Do(context.Background(), "op", "x", func() error { return errors.New("boom") })
	require.Error(t, err)
	assert.Empty(t, script.Events())

	_, err = ex.Do(context.Background(), "op", "x", nil)
	require.Error(t, err)
}

func TestExecutor_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := deleter.NewExecutor(&deletertest.Script{})

	_, err := ex.Do(ctx, "op", "x", func() error { return &fs.PathError{Op: "remove", Path: "x", Err: fs.ErrPermission} })
	require.ErrorIs(t, err, context.Canceled)
}

func TestRecoverable(t *testing.T) {
	assert.True(t, deleter.Recoverable(&fs.PathError{Op: "remove", Path: "x", Err: fs.ErrNotExist}))
	assert.True(t, deleter.Recoverable(fs.ErrPermission))
	assert.False(t, deleter.Recoverable(fs.ErrInvalid))
	assert.False(t, deleter.Recoverable(errors.New("logic")))
	assert.False(t, deleter.Recoverable(nil))
}

func TestDryRun_DoesNotDelete(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a")
	file := filepath.Join(dir, "x.dst")
	writeFile(t, file)

	d := deleter.NewDryRun(nil)
	require.NoError(t, d.Remove(file))
	_, err := d.Lstat(file)
	require.ErrorIs(t, err, fs.ErrNotExist)

	entries, err := d.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.NoError(t, d.RemoveDir(dir))

	err = d.RemoveDir(root)
	require.NoError(t, err, "root only held the simulated-removed dir")
	assert.Equal(t, []string{root, dir, file}, d.Removed())

	assert.FileExists(t, file)
	assert.DirExists(t, dir)
}

func TestDryRun_RemoveDirRefusesNonEmpty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.txt"))

	d := deleter.NewDryRun(nil)
	err := d.RemoveDir(root)
	require.Error(t, err)
	assert.True(t, deleter.Recoverable(err))
}
