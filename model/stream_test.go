package model

import (
	"context"
	"testing"
	"time"

	"github.com/freefrancisco/modelfusion/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextStream_OrderedDelivery(t *testing.T) {
	s := NewTextStream(context.Background())

	go func() {
		for _, f := range []string{"Hello", ", ", "world"} {
			s.Push(f)
		}
		s.Finish(&core.TokenUsage{TotalTokens: 3})
	}()

	text, err := s.Collect()
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)

	usage, ok := s.Usage()
	require.True(t, ok)
	assert.Equal(t, 3, usage.TotalTokens)
}

func TestTextStream_MidStreamFailureKeepsPartialOutput(t *testing.T) {
	s := NewTextStream(context.Background())
	failure := &core.ProviderError{Provider: "mock", Class: core.ErrClassNetwork, Message: "reset"}

	go func() {
		s.Push("partial ")
		s.Push("output")
		s.Fail(failure)
	}()

	text, err := s.Collect()
	assert.Equal(t, "partial output", text)
	assert.ErrorIs(t, err, failure)
}

func TestTextStream_CloseStopsProduction(t *testing.T) {
	s := NewTextStream(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Producer keeps pushing until the consumer abandons the stream.
		for s.Push("x") {
		}
	}()

	<-s.Fragments() // take one fragment, then walk away
	require.NoError(t, s.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer did not stop after Close")
	}

	select {
	case <-s.Context().Done():
	default:
		t.Fatal("stream context should be cancelled after Close")
	}

	assert.ErrorIs(t, s.Close(), ErrStreamClosed)
}

func TestTextStream_CancellationStopsProduction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewTextStream(ctx)

	cancel()

	// Push after cancellation is dropped once the buffer is full or the
	// context is observed; it must not block forever.
	deadline := time.After(time.Second)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			s.Push("fragment")
		}
	}()

	select {
	case <-done:
	case <-deadline:
		t.Fatal("Push blocked after cancellation")
	}
}

func TestTextStream_TerminalStateIsFinal(t *testing.T) {
	s := NewTextStream(context.Background())
	s.Finish(nil)

	// Subsequent terminations are no-ops.
	s.Fail(assert.AnError)
	assert.NoError(t, s.Err())
	assert.False(t, s.Push("late"))
}

func TestTextStream_CloseUnblocksPendingPush(t *testing.T) {
	s := NewTextStream(context.Background())

	pushed := make(chan bool, 1)
	go func() {
		// Fill the buffer until a Push blocks, then rely on Close to
		// unblock it.
		for i := 0; i < 100; i++ {
			if !s.Push("x") {
				pushed <- false
				return
			}
		}
		pushed <- true
	}()

	<-s.Fragments() // take one fragment, then abandon
	require.NoError(t, s.Close())

	select {
	case ok := <-pushed:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("producer still blocked in Push after Close")
	}
}

func TestTextStream_CancellationTerminatesStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewTextStream(ctx)

	go func() {
		for s.Push("chunk ") {
		}
	}()

	<-s.Fragments()
	cancel()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range s.Fragments() {
		}
	}()

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("Fragments never closed after cancellation")
	}

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after cancellation")
	}
	assert.ErrorIs(t, s.Err(), context.Canceled)
}
