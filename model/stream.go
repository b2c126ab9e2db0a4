package model

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/freefrancisco/modelfusion/core"
)

// ErrStreamClosed indicates the stream has already been closed.
var ErrStreamClosed = errors.New("stream closed")

// TextStream is a lazy, finite, non-restartable sequence of text fragments
// delivered as they arrive from a provider. Fragments must be consumed in
// arrival order; their concatenation equals the full generated text (modulo
// the trim setting, applied only at the outer boundaries by the generate
// layer, never to interior fragments).
//
// A stream terminates exactly once: normally via Finish, with an error via
// Fail (surfaced after already-yielded fragments), or abandoned by the
// consumer via Close, which cancels production and the underlying transport.
type TextStream struct {
	ctx    context.Context
	cancel context.CancelFunc

	fragments chan string
	done      chan struct{}

	mu      sync.Mutex
	err     error
	usage   *core.TokenUsage
	closed  bool
	senders int
}

// NewTextStream constructs a stream whose producer observes ctx for
// cancellation. Cancelling ctx terminates the stream: pending fragments
// drain and Fragments closes, so consumers never block past cancellation.
func NewTextStream(ctx context.Context) *TextStream {
	if ctx == nil {
		ctx = context.Background()
	}
	c, cancel := context.WithCancel(ctx)
	s := &TextStream{
		ctx:       c,
		cancel:    cancel,
		fragments: make(chan string, 16),
		done:      make(chan struct{}),
	}
	go func() {
		select {
		case <-c.Done():
			s.terminate(c.Err(), nil)
		case <-s.done:
		}
	}()
	return s
}

// Done returns a channel closed once the stream reaches its terminal state,
// whichever of Finish, Fail or Close got there first.
func (s *TextStream) Done() <-chan struct{} { return s.done }

// Context returns the stream-scoped context. Producers pass it to the
// transport so Close tears the connection down.
func (s *TextStream) Context() context.Context { return s.ctx }

// Fragments returns the channel fragments arrive on. It is closed when the
// stream terminates; check Err afterwards to distinguish normal completion
// from a mid-stream failure.
func (s *TextStream) Fragments() <-chan string { return s.fragments }

// Push delivers one fragment. It drops the fragment (and returns false) once
// the stream is closed or cancelled.
//
// The fragments channel is closed only when no Push is in flight: terminate
// defers the close to the last exiting sender, so a Push blocked on a full
// buffer can never race a concurrent Close into a send on a closed channel.
func (s *TextStream) Push(fragment string) bool {
	s.mu.Lock()
	if s.closed || s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.senders++
	s.mu.Unlock()

	delivered := false
	select {
	case s.fragments <- fragment:
		delivered = true
	case <-s.ctx.Done():
	}

	s.mu.Lock()
	s.senders--
	if s.closed && s.senders == 0 {
		close(s.fragments)
	}
	s.mu.Unlock()
	return delivered
}

// Finish terminates the stream normally, optionally recording final usage.
func (s *TextStream) Finish(usage *core.TokenUsage) {
	s.terminate(nil, usage)
}

// Fail terminates the stream with err. Fragments already yielded remain
// consumed; the error is observable via Err after draining.
func (s *TextStream) Fail(err error) {
	s.terminate(err, nil)
}

// Close abandons the stream from the consumer side, cancelling production
// and the underlying transport. Any producer blocked in Push unblocks and
// observes false.
func (s *TextStream) Close() error {
	s.cancel()
	if !s.terminate(context.Canceled, nil) {
		return ErrStreamClosed
	}
	return nil
}

// terminate moves the stream to its terminal state exactly once, reporting
// whether this call was the one that did it. The fragments channel is closed
// here only when no sender is in flight; otherwise the last exiting Push
// closes it (see Push).
func (s *TextStream) terminate(err error, usage *core.TokenUsage) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.err = err
	if usage != nil {
		s.usage = usage
	}
	if s.senders == 0 {
		close(s.fragments)
	}
	close(s.done)
	s.mu.Unlock()
	s.cancel()
	return true
}

// Err returns the terminal error, if the stream failed mid-delivery.
func (s *TextStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Usage returns final token usage when the provider reported it on stream end.
func (s *TextStream) Usage() (*core.TokenUsage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage, s.usage != nil
}

// Collect drains the stream and returns the concatenated text. On mid-stream
// failure the partial text is returned together with the error.
func (s *TextStream) Collect() (string, error) {
	var b strings.Builder
	for fragment := range s.fragments {
		b.WriteString(fragment)
	}
	return b.String(), s.Err()
}
