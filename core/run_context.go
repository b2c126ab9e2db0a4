package core

import (
	"context"

	"github.com/google/uuid"
)

// RunContext carries the identity and cancellation scope of one logical model
// call tree. It aggregates:
//   - The ambient cancellation Context (one-shot, never un-cancelled)
//   - CallID, unique per top-level invocation and inherited by nested calls
//   - FunctionID, a caller-supplied label for observability
//   - UserID, optional, forwarded to a provider only if the model opts in
//
// A RunContext is read-only after construction. Nested calls share it by
// reference; they never copy or mutate it.
type RunContext struct {
	Context    context.Context
	CallID     string
	FunctionID string
	UserID     string
}

// RunOption mutates a RunContext during construction.
type RunOption func(*RunContext)

// WithFunctionID sets the caller-supplied function label.
func WithFunctionID(id string) RunOption {
	return func(rc *RunContext) { rc.FunctionID = id }
}

// WithUserID attaches an end-user identifier. Providers forward it only when
// explicitly configured to do so.
func WithUserID(id string) RunOption {
	return func(rc *RunContext) { rc.UserID = id }
}

// NewRunContext creates the root context for a call tree. The CallID is
// generated once here; descendants obtained via Child reuse it.
func NewRunContext(ctx context.Context, optFns ...RunOption) *RunContext {
	if ctx == nil {
		ctx = context.Background()
	}

	rc := &RunContext{
		Context: ctx,
		CallID:  uuid.NewString(),
	}

	for _, fn := range optFns {
		fn(rc)
	}

	return rc
}

// Child derives a context for a nested call. It shares the parent's Context
// (and therefore its cancellation) and CallID; only the function label may
// differ so nested calls remain attributable.
func (rc *RunContext) Child(functionID string) *RunContext {
	if functionID == "" {
		functionID = rc.FunctionID
	}

	return &RunContext{
		Context:    rc.Context,
		CallID:     rc.CallID,
		FunctionID: functionID,
		UserID:     rc.UserID,
	}
}

type runContextKey struct{}

// ContextWithRun returns a context carrying rc so provider adapters can read
// call identity (for example when forwarding UserID).
func ContextWithRun(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// RunFromContext retrieves the RunContext placed by ContextWithRun.
func RunFromContext(ctx context.Context) (*RunContext, bool) {
	rc, ok := ctx.Value(runContextKey{}).(*RunContext)
	return rc, ok
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }
