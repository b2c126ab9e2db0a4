package generate

import (
	"context"
	"testing"
	"time"

	"github.com/freefrancisco/modelfusion/core"
	"github.com/freefrancisco/modelfusion/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamText_ConcatMatchesNonStreamingCall(t *testing.T) {
	const full = "  Hello, world!  "

	streaming := model.NewMockTextModel(full)
	streaming.Fragments = []string{"  Hel", "lo, ", "world", "!  "}

	stream, err := StreamText(context.Background(), streaming, "greet")
	require.NoError(t, err)
	streamed, err := stream.Collect()
	require.NoError(t, err)

	plain := model.NewMockTextModel(full)
	text, err := Text(context.Background(), plain, "greet")
	require.NoError(t, err)

	assert.Equal(t, text, streamed)
	assert.Equal(t, "Hello, world!", streamed)
}

func TestStreamText_InteriorWhitespacePreserved(t *testing.T) {
	m := model.NewMockTextModel("")
	m.Fragments = []string{"  first", "  ", "second  "}

	stream, err := StreamText(context.Background(), m, "p")
	require.NoError(t, err)
	text, err := stream.Collect()
	require.NoError(t, err)

	// Only the outer boundaries are trimmed; the interior run survives.
	assert.Equal(t, "first  second", text)
}

func TestStreamText_TrimDisabledKeepsFragmentsIntact(t *testing.T) {
	m := model.NewMockTextModel("")
	m.Fragments = []string{"  a", "b  "}

	stream, err := StreamText(context.Background(), m, "p",
		WithSettings(model.Settings{Trim: model.Bool(false)}))
	require.NoError(t, err)
	text, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, "  ab  ", text)
}

func TestStreamText_RetryCoversOnlyConnection(t *testing.T) {
	m := model.NewMockTextModel("after retry")
	m.FailAttempts = 1

	stream, err := StreamText(context.Background(), m, "p", WithRetry(fastRetry(3)))
	require.NoError(t, err)
	text, err := stream.Collect()
	require.NoError(t, err)

	assert.Equal(t, "after retry", text)
	assert.Equal(t, 2, m.Calls())
}

func TestStreamText_MidStreamFailureNotRetried(t *testing.T) {
	m := model.NewMockTextModel("")
	m.Fragments = []string{"partial ", "output ", "never delivered"}
	m.StreamFailAfter = 2

	stream, err := StreamText(context.Background(), m, "p", WithRetry(fastRetry(5)))
	require.NoError(t, err)

	text, err := stream.Collect()
	require.Error(t, err)

	// Already-yielded fragments survive; no transparent reconnect happened.
	assert.Equal(t, "partial output", text)
	assert.Equal(t, 1, m.Calls())

	var perr *core.ProviderError
	assert.ErrorAs(t, err, &perr)
}

func TestStreamText_UsageAvailableAfterFinish(t *testing.T) {
	m := model.NewMockTextModel("done")
	m.Usage = &core.TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}

	stream, err := StreamText(context.Background(), m, "p")
	require.NoError(t, err)
	_, err = stream.Collect()
	require.NoError(t, err)

	usage, ok := stream.Usage()
	require.True(t, ok)
	assert.Equal(t, 3, usage.TotalTokens)
}

func TestStreamText_CancellationStopsFragments(t *testing.T) {
	m := model.NewMockTextModel("")
	m.Fragments = make([]string, 1000)
	for i := range m.Fragments {
		m.Fragments[i] = "chunk "
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := StreamText(ctx, m, "p")
	require.NoError(t, err)

	<-stream.Fragments()
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range stream.Fragments() {
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not drain after cancellation")
	}
}

func TestStreamText_EventsOnStreamEnd(t *testing.T) {
	sink := &recordingSink{}
	m := model.NewMockTextModel("evented")

	stream, err := StreamText(context.Background(), m, "p", WithSink(sink))
	require.NoError(t, err)
	_, err = stream.Collect()
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		started, finished, _ := sink.counts()
		return started == 1 && finished == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStreamText_FailureEventOnMidStreamError(t *testing.T) {
	sink := &recordingSink{}
	m := model.NewMockTextModel("")
	m.Fragments = []string{"a", "b"}
	m.StreamFailAfter = 1

	stream, err := StreamText(context.Background(), m, "p", WithSink(sink))
	require.NoError(t, err)
	_, err = stream.Collect()
	require.Error(t, err)

	assert.Eventually(t, func() bool {
		_, _, failed := sink.counts()
		return failed == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStreamText_ConnectionFailureSurfacesBeforeStream(t *testing.T) {
	m := model.NewMockTextModel("never")
	m.FailAttempts = 10
	m.FailErr = &core.ProviderError{Provider: "mock", Class: core.ErrClassAuth, Status: 401}

	_, err := StreamText(context.Background(), m, "p")
	require.Error(t, err)

	var cerr *core.CallError
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, 1, m.Calls())
}

func TestStreamText_CloseAbandonsUnderlyingStream(t *testing.T) {
	m := model.NewMockTextModel("")
	m.Fragments = make([]string, 1000)
	for i := range m.Fragments {
		m.Fragments[i] = "chunk "
	}

	stream, err := StreamText(context.Background(), m, "p")
	require.NoError(t, err)

	<-stream.Fragments()
	require.NoError(t, stream.Close())

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range stream.Fragments() {
		}
	}()

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("trimmed stream never terminated after Close")
	}

	select {
	case <-stream.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Close")
	}
	assert.Error(t, stream.Err())
}
