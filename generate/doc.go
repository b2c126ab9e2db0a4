// Package generate implements the call executor: it runs one logical model
// call end to end, composing the throttle policy (admission), the retry
// policy (re-attempts on transient failure) and the model capability itself,
// and returns a Response envelope exposing the value, usage and raw provider
// response of that single call.
//
// Per attempt the executor acquires a throttle ticket, invokes the
// capability, extracts the value and usage on success, and releases the
// ticket on every exit path. The outer loop re-attempts per the retry
// policy's decisions until success, a fatal failure, cancellation, or
// exhausted retries; the error surfaced after exhaustion is the last observed
// one, wrapped with attempt count and elapsed time.
//
// Three lifecycle events (CallStarted, CallFinished, CallFailed) are emitted
// to an optional EventSink. Emission is fire-and-forget: a panicking sink is
// recovered and never alters the call's outcome.
package generate
