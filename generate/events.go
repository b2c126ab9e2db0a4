package generate

import (
	"time"

	"github.com/freefrancisco/modelfusion/core"
	"github.com/freefrancisco/modelfusion/logging"
	"github.com/freefrancisco/modelfusion/model"
)

// CallStarted is emitted when a logical call begins, before the first attempt.
type CallStarted struct {
	CallID     string
	FunctionID string
	Model      model.Info
	Prompt     string
	Timestamp  time.Time
}

// CallFinished is emitted once a call reaches its successful terminal state.
// For streaming calls it fires when the stream finishes, carrying whatever
// usage the provider reported on stream end.
type CallFinished struct {
	CallID     string
	FunctionID string
	Model      model.Info
	Value      any
	Usage      *core.TokenUsage
	Duration   time.Duration
	Timestamp  time.Time
}

// CallFailed is emitted once a call reaches a terminal failure, including
// cancellation and mid-stream transport failures.
type CallFailed struct {
	CallID     string
	FunctionID string
	Model      model.Info
	Err        error
	Duration   time.Duration
	Timestamp  time.Time
}

// EventSink receives call lifecycle events. Implementations should be fast;
// they run synchronously on the calling goroutine. Panics are recovered by
// the executor and never propagate into the call result.
type EventSink interface {
	OnCallStarted(ev CallStarted)
	OnCallFinished(ev CallFinished)
	OnCallFailed(ev CallFailed)
}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

// OnCallStarted implements EventSink.
func (m MultiSink) OnCallStarted(ev CallStarted) {
	for _, s := range m {
		s.OnCallStarted(ev)
	}
}

// OnCallFinished implements EventSink.
func (m MultiSink) OnCallFinished(ev CallFinished) {
	for _, s := range m {
		s.OnCallFinished(ev)
	}
}

// OnCallFailed implements EventSink.
func (m MultiSink) OnCallFailed(ev CallFailed) {
	for _, s := range m {
		s.OnCallFailed(ev)
	}
}

// LoggingSink forwards lifecycle events to a structured logger.
type LoggingSink struct {
	Logger logging.Logger
}

// OnCallStarted implements EventSink.
func (s LoggingSink) OnCallStarted(ev CallStarted) {
	s.Logger.Info("model.call.started",
		"call_id", ev.CallID, "function_id", ev.FunctionID,
		"model", ev.Model.Name, "provider", ev.Model.Provider)
}

// OnCallFinished implements EventSink.
func (s LoggingSink) OnCallFinished(ev CallFinished) {
	args := []any{
		"call_id", ev.CallID, "function_id", ev.FunctionID,
		"model", ev.Model.Name, "duration_ms", ev.Duration.Milliseconds(),
	}
	if ev.Usage != nil {
		args = append(args, "total_tokens", ev.Usage.TotalTokens)
	}
	s.Logger.Info("model.call.finished", args...)
}

// OnCallFailed implements EventSink.
func (s LoggingSink) OnCallFailed(ev CallFailed) {
	s.Logger.Error("model.call.failed",
		"call_id", ev.CallID, "function_id", ev.FunctionID,
		"model", ev.Model.Name, "duration_ms", ev.Duration.Milliseconds(),
		"error", ev.Err.Error())
}

// Emission is best-effort: sink panics must never mask or alter the call's
// own outcome.

func emitStarted(sink EventSink, ev CallStarted) {
	if sink == nil {
		return
	}
	defer func() { _ = recover() }()
	sink.OnCallStarted(ev)
}

func emitFinished(sink EventSink, ev CallFinished) {
	if sink == nil {
		return
	}
	defer func() { _ = recover() }()
	sink.OnCallFinished(ev)
}

func emitFailed(sink EventSink, ev CallFailed) {
	if sink == nil {
		return
	}
	defer func() { _ = recover() }()
	sink.OnCallFailed(ev)
}
