// Package retry defines the policy deciding whether and when a failed model
// call attempt is re-attempted. Policies are pure: they receive the attempt
// number and the observed error and return a decision, never holding mutable
// per-call state. Only errors classified as transient by core.IsRetryable are
// eligible; cancellation and validation failures always terminate a call.
package retry
