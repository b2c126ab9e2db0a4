package model

import (
	"context"

	"github.com/freefrancisco/modelfusion/core"
)

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Settings is the immutable per-call configuration of a model. All fields are
// pointers (or slices treated as atomic values) so "unset" is distinguishable
// from a zero value; merging never mutates either operand.
type Settings struct {
	Temperature   *float64
	TopP          *float64
	MaxTokens     *int
	StopSequences []string

	// Trim controls whether leading/trailing whitespace is stripped from
	// extracted text. Defaults to enabled when unset.
	Trim *bool

	// ForwardUser opts this model into forwarding the RunContext's UserID
	// to the provider.
	ForwardUser *bool
}

// Merge returns a new Settings where every field set in over replaces the
// receiver's value, field by field. The later layer always wins; neither
// operand is modified.
func (s Settings) Merge(over Settings) Settings {
	out := s
	if over.Temperature != nil {
		out.Temperature = over.Temperature
	}
	if over.TopP != nil {
		out.TopP = over.TopP
	}
	if over.MaxTokens != nil {
		out.MaxTokens = over.MaxTokens
	}
	if over.StopSequences != nil {
		out.StopSequences = over.StopSequences
	}
	if over.Trim != nil {
		out.Trim = over.Trim
	}
	if over.ForwardUser != nil {
		out.ForwardUser = over.ForwardUser
	}
	return out
}

// TrimEnabled reports whether whitespace trimming applies (default on).
func (s Settings) TrimEnabled() bool { return s.Trim == nil || *s.Trim }

// ForwardUserEnabled reports whether the model opted into user forwarding.
func (s Settings) ForwardUserEnabled() bool { return s.ForwardUser != nil && *s.ForwardUser }

// Float returns a pointer to f for use in Settings literals.
func Float(f float64) *float64 { return &f }

// Int returns a pointer to i for use in Settings literals.
func Int(i int) *int { return &i }

// Bool returns a pointer to b for use in Settings literals.
func Bool(b bool) *bool { return &b }

// TextModel is the text-generation capability. Generate produces the raw
// provider response for a prompt; ExtractText and ExtractUsage project value
// and usage out of that response without issuing further network calls.
// Failures returned by Generate should be classified via *core.ProviderError
// so the retry policy can distinguish transient from fatal.
type TextModel interface {
	// Info returns metadata about the model implementation.
	Info() Info

	// Settings returns the model's own immutable default settings. The call
	// executor merges per-call overrides on top of these.
	Settings() Settings

	// Generate performs one network attempt and returns the raw,
	// provider-specific response.
	Generate(ctx context.Context, prompt string, settings Settings) (any, error)

	// ExtractText returns the generated text contained in a raw response.
	ExtractText(raw any) (string, error)

	// ExtractUsage returns token usage if the provider reported it.
	ExtractUsage(raw any) (*core.TokenUsage, bool)
}

// StreamingTextModel adds incremental delivery to the text capability.
// GenerateStream returns once the provider connection is established; retry
// logic wraps only that initial attempt, never mid-stream failures.
type StreamingTextModel interface {
	TextModel

	GenerateStream(ctx context.Context, prompt string, settings Settings) (*TextStream, error)
}

// SchemaDef is the wire-level description of one candidate schema presented
// to a JSON-generation model. Parameters is a JSON Schema object in the
// minimal map form shared across the module.
type SchemaDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Choice is the parsed outcome of a JSON-generation response: either one
// selected schema with its argument object, or — when Schema is empty — a
// decline carrying free text.
type Choice struct {
	Schema    string
	Arguments map[string]any
	Text      string
}

// JSONModel is the JSON-generation capability. Candidate schemas are
// presented in a single call; forced selects single-schema mode where the
// provider must answer with the sole schema rather than free text.
type JSONModel interface {
	// Info returns metadata about the model implementation.
	Info() Info

	// Settings returns the model's own immutable default settings.
	Settings() Settings

	// GenerateJSON performs one network attempt and returns the raw,
	// provider-specific response.
	GenerateJSON(ctx context.Context, prompt string, schemas []SchemaDef, forced bool, settings Settings) (any, error)

	// ExtractChoice parses which schema (if any) the response selected.
	ExtractChoice(raw any) (*Choice, error)

	// ExtractUsage returns token usage if the provider reported it.
	ExtractUsage(raw any) (*core.TokenUsage, bool)
}
