package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"embroidery-template-cleaner/internal/events"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleaner.log")
	logger, closer := New(Options{File: path, Level: zerolog.InfoLevel})

	Event(&logger, events.StatusUpdate{Message: "Deleting file: a.dst"})
	Event(&logger, events.CleaningResult{DeletedCount: 2, TargetDir: "/data"})
	Event(&logger, events.RequestConfirmation{Path: "/data/a"}) // debug, filtered
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"message":"Deleting file: a.dst"`)
	assert.Contains(t, out, `"deleted":2`)
	assert.NotContains(t, out, "confirmation requested")
}

func TestEventAbortIsWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	Event(&logger, events.ErrorOccurred{Message: "user aborted", Aborted: true})
	assert.Contains(t, buf.String(), `"level":"warn"`)

	buf.Reset()
	Event(&logger, events.ErrorOccurred{Message: "boom", Detail: "stack"})
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"detail":"stack"`)
}

func TestDefaultFileHonorsEnv(t *testing.T) {
	t.Setenv(EnvLogFile, "/tmp/etc.log")
	assert.Equal(t, "/tmp/etc.log", DefaultFile())
}

func TestNewWithoutSinksIsNop(t *testing.T) {
	logger, closer := New(Options{})
	logger.Info().Msg("dropped")
	assert.NoError(t, closer.Close())
}
