// Package logging builds the application logger: an append-only, size
// rotated log file for postmortems, optionally mirrored to the console.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"embroidery-template-cleaner/internal/events"
)

const (
	// EnvLogFile overrides the default log file location.
	EnvLogFile = "ETC_LOG_FILE"

	defaultFileName = "embroidery_template_cleaner.log"
)

// Options configures the logger built by New.
type Options struct {
	File       string    // "" disables the file sink
	MaxSizeMB  int       // rotate after this many megabytes, default 5
	MaxBackups int       // rotated files to keep, default 3
	Console    io.Writer // human readable mirror, nil for none
	Level      zerolog.Level
}

// DefaultFile is $ETC_LOG_FILE, or the log file in the home directory.
func DefaultFile() string {
	if p := strings.TrimSpace(os.Getenv(EnvLogFile)); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultFileName
	}
	return filepath.Join(home, defaultFileName)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns the logger and a closer for its file sink.
func New(opts Options) (zerolog.Logger, io.Closer) {
	var (
		writers []io.Writer
		closer  io.Closer = nopCloser{}
	)
	if opts.File != "" {
		if opts.MaxSizeMB <= 0 {
			opts.MaxSizeMB = 5
		}
		if opts.MaxBackups <= 0 {
			opts.MaxBackups = 3
		}
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		writers = append(writers, rot)
		closer = rot
	}
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.Kitchen})
	}
	if len(writers) == 0 {
		return zerolog.Nop(), closer
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(opts.Level).
		With().Timestamp().Logger()
	return logger, closer
}

// Event records a cleaning event. Status, result and error events are the
// durable trail; requests are logged at debug level.
func Event(l *zerolog.Logger, ev events.Event) {
	switch e := ev.(type) {
	case events.StatusUpdate:
		l.Info().Msg(e.Message)
	case events.CleaningResult:
		l.Info().
			Int("deleted", e.DeletedCount).
			Str("target", e.TargetDir).
			Int("dirs", e.RemovedDirs).
			Int("display", e.DisplayFilesRemoved).
			Int("skipped", e.Skipped).
			Int64("freed_bytes", e.FreedBytes).
			Bool("dry_run", e.DryRun).
			Msg("cleaning result")
	case events.ErrorOccurred:
		evt := l.Error()
		if e.Aborted {
			evt = l.Warn()
		}
		if e.Detail != "" {
			evt = evt.Str("detail", e.Detail)
		}
		evt.Bool("aborted", e.Aborted).Msg(e.Message)
	case events.RequestConfirmation:
		l.Debug().Str("path", e.Path).Strs("files", e.Files).Msg("confirmation requested")
	case events.RequestRetrySkipAbort:
		l.Debug().Str("path", e.Path).Str("error", e.Error).Msg(e.Operation + ": decision requested")
	}
}
