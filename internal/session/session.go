// Package session runs a cleaning run on its own goroutine and exposes it to
// a shell as a pull-based event stream plus a response method.
package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"embroidery-template-cleaner/internal/cleaner"
	"embroidery-template-cleaner/internal/config"
	"embroidery-template-cleaner/internal/events"
	"embroidery-template-cleaner/internal/logging"
)

var (
	// ErrNoPendingRequest is returned by Respond when no delivered request is
	// waiting for an answer.
	ErrNoPendingRequest = errors.Base("no request is waiting for a response")

	// ErrResponseMismatch is returned by Respond when the response is not
	// the variant the pending request needs. The request stays pending.
	ErrResponseMismatch = errors.Base("response does not answer the pending request")

	errRequestOutstanding = errors.Base("a request is already outstanding")
)

type queued struct {
	ev  events.Event
	seq uint64
}

// Session bridges one cleaning run and the shell consuming it. Events are
// queued without bound in FIFO order; at most one request is outstanding.
type Session struct {
	logger *zerolog.Logger

	mu         sync.Mutex
	queue      []queued
	seq        uint64
	closed     bool
	pending    events.Event
	pendingSeq uint64
	delivered  bool

	ready     chan struct{}
	responses chan events.Response
	done      chan struct{}

	result cleaner.Result
	err    error
}

// Start launches a run of cfg. Cancelling ctx ends the run at its next
// suspension point or between files; nothing is mutated afterwards.
func Start(ctx context.Context, cfg config.Configuration, opts cleaner.Options) *Session {
	s := &Session{
		logger:    zerolog.Ctx(ctx),
		ready:     make(chan struct{}, 1),
		responses: make(chan events.Response, 1),
		done:      make(chan struct{}),
	}
	s.logger.Info().Str("config", cfg.String()).Bool("dry_run", opts.DryRun).Stringer("prune", opts.Prune).Msg("cleaning started")
	go s.run(ctx, cfg, opts)
	return s
}

func (s *Session) run(ctx context.Context, cfg config.Configuration, opts cleaner.Options) {
	defer close(s.done)
	defer s.finish()
	res, err := cleaner.New(s, opts).Run(ctx, cfg)
	s.mu.Lock()
	s.result, s.err = res, err
	s.mu.Unlock()
}

func (s *Session) finish() {
	s.mu.Lock()
	s.closed = true
	s.pending = nil
	s.mu.Unlock()
	s.signal()
}

func (s *Session) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// push appends ev to the queue. Callers hold s.mu.
func (s *Session) push(ev events.Event) uint64 {
	s.seq++
	s.queue = append(s.queue, queued{ev: ev, seq: s.seq})
	return s.seq
}

// Notify implements events.Channel for the worker side.
func (s *Session) Notify(ev events.Event) {
	logging.Event(s.logger, ev)
	s.mu.Lock()
	s.push(ev)
	s.mu.Unlock()
	s.signal()
}

// Request implements events.Channel for the worker side. It blocks until
// the shell answers or ctx is done.
func (s *Session) Request(ctx context.Context, ev events.Event) (events.Response, error) {
	logging.Event(s.logger, ev)
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return nil, errors.WithStack(errRequestOutstanding)
	}
	s.pending = ev
	s.delivered = false
	s.pendingSeq = s.push(ev)
	s.mu.Unlock()
	s.signal()

	select {
	case resp := <-s.responses:
		return resp, nil
	case <-ctx.Done():
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
		select {
		case <-s.responses:
		default:
		}
		return nil, ctx.Err()
	}
}

// Next returns the next event in order. It returns false once the terminal
// event has been delivered and the run has stopped, or when ctx is done.
func (s *Session) Next(ctx context.Context) (events.Event, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			item := s.queue[0]
			s.queue[0] = queued{}
			s.queue = s.queue[1:]
			if s.pending != nil && item.seq == s.pendingSeq {
				s.delivered = true
			}
			s.mu.Unlock()
			return item.ev, true
		}
		if s.closed {
			s.mu.Unlock()
			return nil, false
		}
		s.mu.Unlock()

		select {
		case <-s.ready:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Respond answers the outstanding request. The request must already have
// been returned by Next.
func (s *Session) Respond(resp events.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || !s.delivered {
		return errors.WithStack(ErrNoPendingRequest)
	}
	if !events.Answers(s.pending, resp) {
		return errors.Errorf("%w: %T for %T", ErrResponseMismatch, resp, s.pending)
	}
	s.pending = nil
	s.delivered = false
	s.responses <- resp
	return nil
}

// Pending returns the delivered request still waiting for a response.
func (s *Session) Pending() (events.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || !s.delivered {
		return nil, false
	}
	return s.pending, true
}

// Wait blocks until the run stops and returns its outcome.
func (s *Session) Wait() (cleaner.Result, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// Drive consumes the session on the calling goroutine: every event is passed
// to observe, every request is answered with answer. Once ctx is done no more
// requests are answered, but the stream is still read to its terminal event.
// It returns the run's outcome once the stream ends.
func (s *Session) Drive(ctx context.Context, observe func(events.Event), answer func(events.Event) events.Response) (cleaner.Result, error) {
	pull := ctx
	draining := false
	for {
		ev, ok := s.Next(pull)
		if !ok {
			if !draining && ctx.Err() != nil {
				// the worker still emits its terminal event after a cancel
				pull, draining = context.Background(), true
				continue
			}
			break
		}
		if observe != nil {
			observe(ev)
		}
		if !events.NeedsResponse(ev) || ctx.Err() != nil {
			continue
		}
		if err := s.Respond(answer(ev)); err != nil {
			if ctx.Err() != nil && errors.Is(err, ErrNoPendingRequest) {
				// cancelled while answering, the request was withdrawn
				continue
			}
			return cleaner.Result{}, err
		}
	}
	return s.Wait()
}
