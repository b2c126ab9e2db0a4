package generate

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/freefrancisco/modelfusion/core"
	"github.com/freefrancisco/modelfusion/model"
)

// Text generates text for a prompt and returns just the value, with the
// model's post-processing (whitespace trimming, unless disabled) applied.
func Text(ctx context.Context, m model.TextModel, prompt string, optFns ...Option) (string, error) {
	resp, err := TextResponse(ctx, m, prompt, optFns...)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// TextResponse generates text and returns the full envelope: value, usage
// and raw provider response, all from the same single provider invocation.
func TextResponse(ctx context.Context, m model.TextModel, prompt string, optFns ...Option) (*Response, error) {
	o := newOptions(ctx, optFns)
	settings := m.Settings().Merge(o.Settings)

	produce := func(ctx context.Context) (any, error) {
		return m.Generate(ctx, prompt, settings)
	}
	extract := func(raw any) (any, *core.TokenUsage, error) {
		text, err := m.ExtractText(raw)
		if err != nil {
			return nil, nil, err
		}
		if settings.TrimEnabled() {
			text = strings.TrimSpace(text)
		}
		usage, _ := m.ExtractUsage(raw)
		return text, usage, nil
	}

	return execute(o, m.Info(), prompt, produce, extract)
}

// StreamText generates text with incremental delivery and returns the
// stream. Retry wraps only the initial connection attempt; a mid-stream
// failure surfaces on the stream itself after already-yielded fragments.
func StreamText(ctx context.Context, m model.StreamingTextModel, prompt string, optFns ...Option) (*model.TextStream, error) {
	resp, err := StreamTextResponse(ctx, m, prompt, optFns...)
	if err != nil {
		return nil, err
	}
	return resp.Stream, nil
}

// StreamTextResponse is StreamText returning the full envelope. Value and
// Raw are nil for streams; usage becomes available on the stream once the
// provider reports it at end of delivery.
func StreamTextResponse(ctx context.Context, m model.StreamingTextModel, prompt string, optFns ...Option) (*Response, error) {
	o := newOptions(ctx, optFns)
	settings := m.Settings().Merge(o.Settings)
	info := m.Info()

	produce := func(ctx context.Context) (any, error) {
		return m.GenerateStream(ctx, prompt, settings)
	}

	raw, attempts, started, err := executeAttempts(o, info, prompt, produce)
	if err != nil {
		return nil, err
	}

	stream := raw.(*model.TextStream)
	if settings.TrimEnabled() {
		stream = trimBoundaries(o.Run.Context, stream)
	}

	go watchStream(o, info, started, stream)

	return &Response{
		Stream:     stream,
		CallID:     o.Run.CallID,
		FunctionID: o.Run.FunctionID,
		Model:      info,
		Attempts:   attempts,
		Duration:   time.Since(started),
	}, nil
}

// watchStream emits the terminal lifecycle event once the stream ends.
func watchStream(o *Options, info model.Info, started time.Time, s *model.TextStream) {
	<-s.Done()
	duration := time.Since(started)

	if err := s.Err(); err != nil {
		emitFailed(o.Sink, CallFailed{
			CallID:     o.Run.CallID,
			FunctionID: o.Run.FunctionID,
			Model:      info,
			Err:        err,
			Duration:   duration,
			Timestamp:  time.Now(),
		})
		o.Logger.Error("model.stream.failed",
			"call_id", o.Run.CallID, "model", info.Name, "error", err.Error())
		return
	}

	usage, _ := s.Usage()
	emitFinished(o.Sink, CallFinished{
		CallID:     o.Run.CallID,
		FunctionID: o.Run.FunctionID,
		Model:      info,
		Usage:      usage,
		Duration:   duration,
		Timestamp:  time.Now(),
	})
	o.Logger.Info("model.stream.finished",
		"call_id", o.Run.CallID, "model", info.Name,
		"duration_ms", duration.Milliseconds())
}

// trimBoundaries strips whitespace at the outer edges of a stream only:
// leading whitespace before the first visible character and trailing
// whitespace after the last. Interior fragments pass through intact, so the
// concatenated yield equals strings.TrimSpace of the full text. Trailing
// whitespace is held back and released as soon as later content proves it
// interior.
//
// The wrapper derives from the run context, not from in's stream context:
// in terminating (which cancels its own scope) must not tear the wrapper
// down before the remaining fragments have been forwarded.
func trimBoundaries(ctx context.Context, in *model.TextStream) *model.TextStream {
	out := model.NewTextStream(ctx)

	go func() {
		started := false
		pending := ""

		for fragment := range in.Fragments() {
			if !started {
				fragment = strings.TrimLeftFunc(fragment, unicode.IsSpace)
				if fragment == "" {
					continue
				}
				started = true
			}

			content := strings.TrimRightFunc(fragment, unicode.IsSpace)
			if content == "" {
				// Whitespace-only fragment: interior until proven trailing.
				pending += fragment
				continue
			}

			if !out.Push(pending + content) {
				// Consumer abandoned the trimmed stream; tear down the
				// source and make sure the wrapper reaches a terminal state
				// even if it was cancelled rather than closed.
				_ = in.Close()
				out.Fail(context.Canceled)
				return
			}
			pending = fragment[len(content):]
		}

		if err := in.Err(); err != nil {
			out.Fail(err)
			return
		}
		usage, _ := in.Usage()
		out.Finish(usage)
	}()

	return out
}
