// Package core defines the shared primitives threaded through every model
// call: the RunContext carrying identity and cancellation, the error taxonomy
// used to classify provider failures, and token usage accounting.
//
// Core goals:
//   - One RunContext per top-level call, inherited by reference in nested calls
//   - Cooperative cancellation observed at every blocking point
//   - Explicit retryable/fatal classification so retry policies never see
//     errors they must not act on
//   - Provider-agnostic usage aggregation
//
// Higher layers (generate, structured, tool) depend on this package; it
// depends on nothing inside the module.
package core
