// Package deleter performs filesystem mutations for a cleaning run and lets
// a human decide what happens when one of them fails.
package deleter

import (
	"context"
	"io/fs"
	"os"
	"syscall"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"embroidery-template-cleaner/internal/events"
)

var (
	// ErrAborted is returned once the user answers Abort. Every caller passes
	// it up unchanged so the whole run stops.
	ErrAborted = errors.Base("user aborted")

	// ErrUnexpectedResponse means the shell answered a retry request with the
	// wrong kind of response.
	ErrUnexpectedResponse = errors.Base("unexpected response")

	errNilOperation = errors.Base("nil operation")
)

// Executor runs single mutations and turns recoverable failures into
// Retry/Skip/Abort requests on its channel.
type Executor struct {
	ch events.Channel
}

// NewExecutor returns an Executor that asks ch how to handle failures.
func NewExecutor(ch events.Channel) *Executor {
	return &Executor{ch: ch}
}

// Do runs op until it succeeds, the user skips it, or the user aborts.
// performed is false when the user chose Skip. Errors that are not I/O
// failures are returned immediately without asking.
func (e *Executor) Do(ctx context.Context, description, path string, op func() error) (performed bool, err error) {
	if op == nil {
		return false, errors.WithStack(errNilOperation)
	}
	logger := zerolog.Ctx(ctx)

	for attempt := 1; ; attempt++ {
		opErr := op()
		if opErr == nil {
			logger.Debug().Str("path", path).Int("attempt", attempt).Msg(description)
			return true, nil
		}
		if !Recoverable(opErr) {
			logger.Error().Err(opErr).Str("path", path).Msg(description + " failed")
			return false, errors.Errorf("%s: %w", description, opErr)
		}
		logger.Warn().Err(opErr).Str("path", path).Int("attempt", attempt).Msg(description + " failed")

		resp, reqErr := e.ch.Request(ctx, events.RequestRetrySkipAbort{
			Operation: description,
			Path:      path,
			Error:     opErr.Error(),
		})
		if reqErr != nil {
			return false, reqErr
		}
		r, ok := resp.(events.RetrySkipAbortResponse)
		if !ok {
			return false, errors.Errorf("%w: %T", ErrUnexpectedResponse, resp)
		}
		switch r.Choice {
		case events.Retry:
			continue
		case events.Skip:
			logger.Info().Str("path", path).Msg("skipped " + description)
			return false, nil
		case events.Abort:
			logger.Info().Str("path", path).Msg("aborted at " + description)
			return false, errors.WithStack(ErrAborted)
		default:
			return false, errors.Errorf("%w: choice %d", ErrUnexpectedResponse, int(r.Choice))
		}
	}
}

// Recoverable reports whether err is an I/O failure the user may retry or
// skip: permission problems, files in use, paths that vanished.
func Recoverable(err error) bool {
	if err == nil || errors.Is(err, fs.ErrInvalid) {
		return false
	}
	var (
		pathErr  *fs.PathError
		linkErr  *os.LinkError
		sysErr   *os.SyscallError
		errnoErr syscall.Errno
	)
	switch {
	case errors.As(err, &pathErr), errors.As(err, &linkErr), errors.As(err, &sysErr), errors.As(err, &errnoErr):
		return true
	case errors.Is(err, fs.ErrPermission), errors.Is(err, fs.ErrNotExist):
		return true
	}
	return false
}
