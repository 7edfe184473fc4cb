// Package deletertest provides fakes for exercising cleaning runs: a
// filesystem that fails on demand and a channel that answers from a script.
package deletertest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"embroidery-template-cleaner/internal/deleter"
	"embroidery-template-cleaner/internal/events"
)

// FaultFS wraps a base FS, records every call and fails mutations of chosen
// paths. Tests running as root cannot rely on permission bits, so failures
// are injected here instead.
type FaultFS struct {
	base deleter.FS

	mu        sync.Mutex
	faults    map[string]int
	mutations []string
	inspected []string
}

// NewFaultFS wraps base, or the real filesystem when base is nil.
func NewFaultFS(base deleter.FS) *FaultFS {
	if base == nil {
		base = deleter.OS()
	}
	return &FaultFS{base: base, faults: make(map[string]int)}
}

// Fail makes the next n mutations of path fail with a permission error.
// A negative n fails forever.
func (f *FaultFS) Fail(path string, n int) {
	f.mu.Lock()
	f.faults[filepath.Clean(path)] = n
	f.mu.Unlock()
}

func (f *FaultFS) fault(op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := filepath.Clean(path)
	n, ok := f.faults[key]
	if !ok || n == 0 {
		return nil
	}
	if n > 0 {
		f.faults[key] = n - 1
	}
	return &fs.PathError{Op: op, Path: path, Err: fs.ErrPermission}
}

func (f *FaultFS) record(list *[]string, entry string) {
	f.mu.Lock()
	*list = append(*list, entry)
	f.mu.Unlock()
}

func (f *FaultFS) Lstat(name string) (fs.FileInfo, error) {
	f.record(&f.inspected, name)
	return f.base.Lstat(name)
}

func (f *FaultFS) ReadDir(name string) ([]fs.DirEntry, error) {
	f.record(&f.inspected, name)
	return f.base.ReadDir(name)
}

func (f *FaultFS) Remove(name string) error {
	if err := f.fault("remove", name); err != nil {
		return err
	}
	if err := f.base.Remove(name); err != nil {
		return err
	}
	f.record(&f.mutations, "remove "+name)
	return nil
}

func (f *FaultFS) RemoveDir(name string) error {
	if err := f.fault("rmdir", name); err != nil {
		return err
	}
	if err := f.base.RemoveDir(name); err != nil {
		return err
	}
	f.record(&f.mutations, "rmdir "+name)
	return nil
}

// Mutations lists successful mutations in order, as "remove <path>" or
// "rmdir <path>".
func (f *FaultFS) Mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.mutations...)
}

// Inspected lists every path passed to Lstat or ReadDir.
func (f *FaultFS) Inspected() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inspected...)
}

// Script is an events.Channel answering requests with callbacks. A nil
// Confirm declines; a nil Choose skips.
type Script struct {
	Confirm func(events.RequestConfirmation) bool
	Choose  func(events.RequestRetrySkipAbort) events.Choice

	mu     sync.Mutex
	events []events.Event
}

func (s *Script) Notify(ev events.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *Script) Request(ctx context.Context, ev events.Event) (events.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.Notify(ev)
	switch req := ev.(type) {
	case events.RequestConfirmation:
		if s.Confirm == nil {
			return events.ConfirmationResponse{Accepted: false}, nil
		}
		return events.ConfirmationResponse{Accepted: s.Confirm(req)}, nil
	case events.RequestRetrySkipAbort:
		if s.Choose == nil {
			return events.RetrySkipAbortResponse{Choice: events.Skip}, nil
		}
		return events.RetrySkipAbortResponse{Choice: s.Choose(req)}, nil
	}
	return nil, fmt.Errorf("unexpected request %T", ev)
}

// Events returns everything notified or requested so far.
func (s *Script) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

// Confirmations returns the confirmation requests seen so far.
func (s *Script) Confirmations() []events.RequestConfirmation {
	var out []events.RequestConfirmation
	for _, ev := range s.Events() {
		if r, ok := ev.(events.RequestConfirmation); ok {
			out = append(out, r)
		}
	}
	return out
}

// Retries returns the retry/skip/abort requests seen so far.
func (s *Script) Retries() []events.RequestRetrySkipAbort {
	var out []events.RequestRetrySkipAbort
	for _, ev := range s.Events() {
		if r, ok := ev.(events.RequestRetrySkipAbort); ok {
			out = append(out, r)
		}
	}
	return out
}

// Last returns the most recent event, or nil.
func (s *Script) Last() events.Event {
	evs := s.Events()
	if len(evs) == 0 {
		return nil
	}
	return evs[len(evs)-1]
}
