package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorClass categorizes provider failures for retry decisions.
type ErrorClass string

const (
	// ErrClassRateLimit is a provider rate limit (HTTP 429). Retryable.
	ErrClassRateLimit ErrorClass = "rate_limit"
	// ErrClassServer is a provider-side failure (HTTP 5xx). Retryable.
	ErrClassServer ErrorClass = "server"
	// ErrClassNetwork is a transport-level failure (connect, reset, timeout). Retryable.
	ErrClassNetwork ErrorClass = "network"
	// ErrClassBadRequest is a malformed or rejected request. Fatal.
	ErrClassBadRequest ErrorClass = "bad_request"
	// ErrClassAuth is an authentication / authorization failure. Fatal.
	ErrClassAuth ErrorClass = "auth"
	// ErrClassUnknown is an unclassified failure. Fatal by default.
	ErrClassUnknown ErrorClass = "unknown"
)

// ProviderError wraps a failure surfaced by a provider capability with enough
// classification for the retry policy to act on it.
type ProviderError struct {
	Provider string     // provider name ("openai", "anthropic", "mock", ...)
	Class    ErrorClass // failure category
	Status   int        // HTTP status when applicable, else 0
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	b.WriteString(string(e.Class))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Retryable reports whether the failure class is transient.
func (e *ProviderError) Retryable() bool {
	switch e.Class {
	case ErrClassRateLimit, ErrClassServer, ErrClassNetwork:
		return true
	default:
		return false
	}
}

// retryabler is implemented by errors that carry their own retry classification.
type retryabler interface{ Retryable() bool }

// IsRetryable reports whether err may be re-attempted. Cancellation is never
// retryable; everything else defaults to fatal unless the error (or one it
// wraps) classifies itself as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var r retryabler
	if errors.As(err, &r) {
		return r.Retryable()
	}

	return false
}

// ClassifyHTTPStatus provides the default status-code classification used by
// provider adapters. Individual adapters may override it where a vendor
// assigns different semantics to a code.
func ClassifyHTTPStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrClassRateLimit
	case status == http.StatusRequestTimeout:
		return ErrClassNetwork
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrClassAuth
	case status >= 500:
		return ErrClassServer
	case status >= 400:
		return ErrClassBadRequest
	default:
		return ErrClassUnknown
	}
}

// SchemaMismatchError reports that generated JSON failed validation against
// the expected schema. It is fatal: the same malformed output is likely to
// recur, so re-attempting is the caller's decision, never automatic.
type SchemaMismatchError struct {
	Schema string // schema name the output was validated against
	Path   string // field path that violated the schema
	Cause  error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("generated output does not match schema %q at %q: %v", e.Schema, e.Path, e.Cause)
}

func (e *SchemaMismatchError) Unwrap() error { return e.Cause }

// UnknownSchemaError reports that a provider selected a schema name outside
// the candidate set during multi-schema dispatch. This is a protocol
// violation and is never coerced to "no schema selected".
type UnknownSchemaError struct {
	Selected   string
	Candidates []string
}

func (e *UnknownSchemaError) Error() string {
	return fmt.Sprintf("provider selected unknown schema %q (candidates: %s)", e.Selected, strings.Join(e.Candidates, ", "))
}

// CallError is the terminal error of one logical call. It wraps the last
// observed failure with the call identity, attempt count and elapsed time.
type CallError struct {
	CallID     string
	FunctionID string
	Model      string
	Attempts   int
	Elapsed    time.Duration
	Err        error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("model call failed (call %s, %d attempt(s), %s): %v", e.CallID, e.Attempts, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
