package generate

import (
	"context"
	"errors"
	"time"

	"github.com/freefrancisco/modelfusion/core"
	"github.com/freefrancisco/modelfusion/model"
	"github.com/freefrancisco/modelfusion/throttle"
)

// producer performs one network attempt and returns the raw provider response.
type producer func(ctx context.Context) (any, error)

// extractor projects value and usage out of a raw response. Extraction
// failures are fatal: they describe the response, not the transport, so
// re-attempting cannot help.
type extractor func(raw any) (value any, usage *core.TokenUsage, err error)

// Do runs one logical call through throttle, retry and extraction for a
// custom capability invocation. It is the low-level entry point the
// structured-generation layer builds on; most callers want the typed
// operations (Text, StreamText, structured.GenerateJSON, ...) instead.
func Do(ctx context.Context, info model.Info, prompt string, produce func(ctx context.Context) (any, error), extract func(raw any) (any, *core.TokenUsage, error), optFns ...Option) (*Response, error) {
	o := newOptions(ctx, optFns)
	return execute(o, info, prompt, producer(produce), extractor(extract))
}

// ResolveSettings merges per-call overrides from optFns onto a model's
// defaults, later layer winning field by field. Option functions must stay
// pure for this to be safe; all shipped ones are.
func ResolveSettings(defaults model.Settings, optFns ...Option) model.Settings {
	var o Options
	for _, fn := range optFns {
		fn(&o)
	}
	return defaults.Merge(o.Settings)
}

// execute runs the full attempt loop and applies extraction, emitting the
// CallFinished event on success.
func execute(o *Options, info model.Info, prompt string, produce producer, extract extractor) (*Response, error) {
	raw, attempts, started, err := executeAttempts(o, info, prompt, produce)
	if err != nil {
		return nil, err
	}

	value, usage, xerr := extract(raw)
	if xerr != nil {
		return nil, failCall(o, info, attempts, started, xerr)
	}

	duration := time.Since(started)
	emitFinished(o.Sink, CallFinished{
		CallID:     o.Run.CallID,
		FunctionID: o.Run.FunctionID,
		Model:      info,
		Value:      value,
		Usage:      usage,
		Duration:   duration,
		Timestamp:  time.Now(),
	})
	o.Logger.Info("model.call.success",
		"call_id", o.Run.CallID, "model", info.Name,
		"attempts", attempts, "duration_ms", duration.Milliseconds())

	return &Response{
		Value:      value,
		Usage:      usage,
		Raw:        raw,
		CallID:     o.Run.CallID,
		FunctionID: o.Run.FunctionID,
		Model:      info,
		Attempts:   attempts,
		Duration:   duration,
	}, nil
}

// executeAttempts drives throttle admission and retry for one logical call.
// It emits CallStarted before the first attempt and CallFailed on terminal
// failure; a successful return leaves success emission to the caller, which
// knows the extracted value (or, for streams, when the stream ends).
func executeAttempts(o *Options, info model.Info, prompt string, produce producer) (raw any, attempts int, started time.Time, err error) {
	ctx := core.ContextWithRun(o.Run.Context, o.Run)
	started = time.Now()

	emitStarted(o.Sink, CallStarted{
		CallID:     o.Run.CallID,
		FunctionID: o.Run.FunctionID,
		Model:      info,
		Prompt:     prompt,
		Timestamp:  started,
	})
	o.Logger.Debug("model.call.start",
		"call_id", o.Run.CallID, "function_id", o.Run.FunctionID,
		"model", info.Name, "provider", info.Provider)

	if cerr := ctx.Err(); cerr != nil {
		return nil, 0, started, failCall(o, info, 0, started, cerr)
	}

	for {
		attempts++

		raw, aerr := attemptOnce(ctx, o.Throttle, produce)
		if aerr == nil {
			return raw, attempts, started, nil
		}

		if ctx.Err() != nil || errors.Is(aerr, context.Canceled) || errors.Is(aerr, context.DeadlineExceeded) {
			return nil, attempts, started, failCall(o, info, attempts, started, aerr)
		}

		delay, again := o.Retry.ShouldRetry(attempts, aerr)
		if !again {
			return nil, attempts, started, failCall(o, info, attempts, started, aerr)
		}

		o.Logger.Warn("model.call.retrying",
			"call_id", o.Run.CallID, "attempt", attempts,
			"delay_ms", delay.Milliseconds(), "error", aerr.Error())

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempts, started, failCall(o, info, attempts, started, ctx.Err())
		case <-timer.C:
		}
	}
}

// attemptOnce pairs throttle acquisition and release around a single
// provider attempt. Release happens on every exit path; a wait cancelled
// while queued surfaces the cancellation without having consumed a slot.
func attemptOnce(ctx context.Context, th throttle.Policy, produce producer) (any, error) {
	release, err := th.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return produce(ctx)
}

func failCall(o *Options, info model.Info, attempts int, started time.Time, err error) error {
	duration := time.Since(started)
	cerr := &core.CallError{
		CallID:     o.Run.CallID,
		FunctionID: o.Run.FunctionID,
		Model:      info.Name,
		Attempts:   attempts,
		Elapsed:    duration,
		Err:        err,
	}

	emitFailed(o.Sink, CallFailed{
		CallID:     o.Run.CallID,
		FunctionID: o.Run.FunctionID,
		Model:      info,
		Err:        cerr,
		Duration:   duration,
		Timestamp:  time.Now(),
	})
	o.Logger.Error("model.call.failed",
		"call_id", o.Run.CallID, "model", info.Name,
		"attempts", attempts, "duration_ms", duration.Milliseconds(),
		"error", err.Error())

	return cerr
}
