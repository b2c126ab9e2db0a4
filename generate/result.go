package generate

import (
	"time"

	"github.com/freefrancisco/modelfusion/core"
	"github.com/freefrancisco/modelfusion/model"
)

// Response is the envelope around one completed (or, for streaming, in
// flight) call. All projections come from the same underlying provider
// invocation: reading Value, Usage and Raw never triggers a second call.
type Response struct {
	// Value is the extracted, post-processed value: a string for text
	// generation, a map for structured generation, a *model.Choice for
	// multi-schema dispatch. Nil for streaming calls.
	Value any

	// Usage is token usage if the provider reported it.
	Usage *core.TokenUsage

	// Raw is the unmodified provider response. Nil for streaming calls.
	Raw any

	// Stream delivers fragments for streaming calls, nil otherwise.
	Stream *model.TextStream

	CallID     string
	FunctionID string
	Model      model.Info

	// Attempts is how many provider attempts the call took; Duration covers
	// the whole call including backoff delays (for streaming calls, the
	// connection phase only).
	Attempts int
	Duration time.Duration
}

// Text returns the value as a string; empty for non-text calls.
func (r *Response) Text() string {
	s, _ := r.Value.(string)
	return s
}
