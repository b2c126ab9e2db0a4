// Package model defines the provider-agnostic capability abstractions for
// generative model backends.
//
// Core goals:
//   - Represent providers as a fixed capability set (text, streaming text,
//     JSON generation) with explicit interfaces instead of open-ended
//     subclassing; new providers implement the capability interfaces
//   - Separate producing a raw response from extracting its value and usage,
//     so the call executor can expose all three without a second provider call
//   - Keep per-call Settings an immutable value object with an explicit,
//     order-defined merge
//   - Facilitate lightweight mocking for tests (MockTextModel, MockJSONModel)
//
// Providers (e.g. OpenAI, Anthropic) implement these interfaces in
// subpackages so higher layers remain decoupled from vendor SDKs.
package model
