// Package structured drives a JSON-generation model capability to produce
// output conforming to a named schema, or to choose among several candidate
// schemas (or decline with free text).
//
// Validation failures are fatal, never silently retried: the same malformed
// output is likely to recur, so re-attempting is the caller's decision. A
// provider selecting a schema name outside the candidate set is a protocol
// violation surfaced as core.UnknownSchemaError, never coerced to "none".
package structured
