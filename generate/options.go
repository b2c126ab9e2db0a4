package generate

import (
	"context"

	"github.com/freefrancisco/modelfusion/core"
	"github.com/freefrancisco/modelfusion/logging"
	"github.com/freefrancisco/modelfusion/model"
	"github.com/freefrancisco/modelfusion/retry"
	"github.com/freefrancisco/modelfusion/throttle"
)

// Options configures one logical call. Zero-value fields fall back to the
// defaults: exponential backoff retry, unlimited throttling, no-op logging,
// no event sink, a fresh RunContext.
type Options struct {
	// Run is the identity + cancellation scope. When nil a new root
	// RunContext is created from the ambient context.
	Run *core.RunContext

	// FunctionID labels the call for observability. When Run is supplied the
	// call becomes a child of it under this label.
	FunctionID string

	// Settings overrides the model's defaults, field by field (later wins).
	Settings model.Settings

	Retry    retry.Policy
	Throttle throttle.Policy
	Sink     EventSink
	Logger   logging.Logger
}

// Option mutates Options during call setup.
type Option func(*Options)

// WithRun threads an existing RunContext through the call, sharing its
// CallID and cancellation with the rest of the call tree.
func WithRun(run *core.RunContext) Option {
	return func(o *Options) { o.Run = run }
}

// WithFunctionID sets the caller-supplied function label.
func WithFunctionID(id string) Option {
	return func(o *Options) { o.FunctionID = id }
}

// WithSettings overrides model settings for this call only.
func WithSettings(s model.Settings) Option {
	return func(o *Options) { o.Settings = s }
}

// WithRetry sets the retry policy.
func WithRetry(p retry.Policy) Option {
	return func(o *Options) { o.Retry = p }
}

// WithThrottle sets the admission policy.
func WithThrottle(p throttle.Policy) Option {
	return func(o *Options) { o.Throttle = p }
}

// WithSink attaches a lifecycle event sink.
func WithSink(s EventSink) Option {
	return func(o *Options) { o.Sink = s }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func newOptions(ctx context.Context, optFns []Option) *Options {
	o := &Options{
		Retry:    retry.NewExponentialBackoff(),
		Throttle: throttle.Unlimited(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(o)
	}

	switch {
	case o.Run == nil:
		o.Run = core.NewRunContext(ctx, core.WithFunctionID(o.FunctionID))
	case o.FunctionID != "":
		o.Run = o.Run.Child(o.FunctionID)
	}

	return o
}
