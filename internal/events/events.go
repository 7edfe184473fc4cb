// Package events defines the messages exchanged between a cleaning run and
// the shell driving it. Events flow from the run to the shell; responses flow
// back and answer exactly one suspending event.
package events

import (
	"context"
	"fmt"
)

// Event is emitted by a cleaning run.
type Event interface {
	isEvent()
}

// StatusUpdate is a plain progress message.
type StatusUpdate struct {
	Message string
}

func (StatusUpdate) isEvent() {}

// RequestConfirmation asks whether the display files in Path may be deleted.
// The run is suspended until a ConfirmationResponse arrives.
type RequestConfirmation struct {
	Path  string
	Files []string
}

func (RequestConfirmation) isEvent() {}

// RequestRetrySkipAbort reports a failed mutation. The run is suspended until
// a RetrySkipAbortResponse arrives.
type RequestRetrySkipAbort struct {
	Operation string // e.g. "deleting file 'a.dst'"
	Path      string
	Error     string
}

func (RequestRetrySkipAbort) isEvent() {}

// CleaningResult ends a successful run. DeletedCount only counts files that
// matched the configured extensions.
type CleaningResult struct {
	DeletedCount        int
	TargetDir           string
	RemovedDirs         int
	DisplayFilesRemoved int
	Skipped             int
	FreedBytes          int64
	DryRun              bool
}

func (CleaningResult) isEvent() {}

// ErrorOccurred ends a run that was aborted or failed.
type ErrorOccurred struct {
	Message string
	Detail  string
	Aborted bool
}

func (ErrorOccurred) isEvent() {}

// Response answers a suspending Event.
type Response interface {
	isResponse()
}

// ConfirmationResponse answers RequestConfirmation.
type ConfirmationResponse struct {
	Accepted bool
}

func (ConfirmationResponse) isResponse() {}

// Choice is the answer to a failed mutation.
type Choice int

const (
	Retry Choice = iota
	Skip
	Abort
)

func (c Choice) String() string {
	switch c {
	case Retry:
		return "retry"
	case Skip:
		return "skip"
	case Abort:
		return "abort"
	default:
		return fmt.Sprintf("choice(%d)", int(c))
	}
}

// ParseChoice accepts "retry", "skip", "abort" or their first letter.
func ParseChoice(s string) (Choice, bool) {
	switch s {
	case "r", "retry":
		return Retry, true
	case "s", "skip":
		return Skip, true
	case "a", "abort":
		return Abort, true
	}
	return 0, false
}

// RetrySkipAbortResponse answers RequestRetrySkipAbort.
type RetrySkipAbortResponse struct {
	Choice Choice
}

func (RetrySkipAbortResponse) isResponse() {}

// NeedsResponse reports whether ev suspends the run.
func NeedsResponse(ev Event) bool {
	switch ev.(type) {
	case RequestConfirmation, RequestRetrySkipAbort:
		return true
	}
	return false
}

// IsTerminal reports whether ev ends a run.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case CleaningResult, ErrorOccurred:
		return true
	}
	return false
}

// Answers reports whether resp is the right variant for req.
func Answers(req Event, resp Response) bool {
	switch req.(type) {
	case RequestConfirmation:
		_, ok := resp.(ConfirmationResponse)
		return ok
	case RequestRetrySkipAbort:
		_, ok := resp.(RetrySkipAbortResponse)
		return ok
	}
	return false
}

// Channel connects a run to its shell. Notify never blocks; Request blocks
// until the matching response arrives or ctx is done.
type Channel interface {
	Notify(ev Event)
	Request(ctx context.Context, ev Event) (Response, error)
}
