// Package modelfusion provides a high-level façade over the call executor
// and its capability layers (text generation, streaming, structured
// generation & tool execution) enabling provider-agnostic model programs.
// Most applications interact with this package by:
//  1. Constructing a provider model (openai.NewModel, anthropic.NewModel, ...)
//  2. Calling one of the façade functions with a prompt
//  3. Tuning behavior per call via generate options (retry, throttle,
//     settings, event sinks)
//
// The façade delegates orchestration to the generate package while keeping
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a structured logger and
// explicit retry/throttle policies.
package modelfusion

import (
	"context"

	"github.com/freefrancisco/modelfusion/generate"
	"github.com/freefrancisco/modelfusion/model"
	"github.com/freefrancisco/modelfusion/schema"
	"github.com/freefrancisco/modelfusion/structured"
	"github.com/freefrancisco/modelfusion/tool"
)

// GenerateText produces a complete text completion for the prompt.
func GenerateText(ctx context.Context, m model.TextModel, prompt string, optFns ...generate.Option) (string, error) {
	return generate.Text(ctx, m, prompt, optFns...)
}

// GenerateTextResponse is GenerateText returning the full call envelope
// (value, usage, raw provider response).
func GenerateTextResponse(ctx context.Context, m model.TextModel, prompt string, optFns ...generate.Option) (*generate.Response, error) {
	return generate.TextResponse(ctx, m, prompt, optFns...)
}

// StreamText produces an incremental text completion. The returned stream is
// finite and non-restartable; consume it with Collect or by ranging over
// Fragments.
func StreamText(ctx context.Context, m model.StreamingTextModel, prompt string, optFns ...generate.Option) (*model.TextStream, error) {
	return generate.StreamText(ctx, m, prompt, optFns...)
}

// GenerateJSON asks the model to produce an argument object conforming to
// the single schema and returns the validated result.
func GenerateJSON(ctx context.Context, m model.JSONModel, s *schema.Schema, prompt string, optFns ...generate.Option) (map[string]any, error) {
	return structured.GenerateJSON(ctx, m, s, prompt, optFns...)
}

// GenerateJSONOrText presents multiple candidate schemas in one call; the
// model either selects one (validated arguments) or declines with free text.
func GenerateJSONOrText(ctx context.Context, m model.JSONModel, schemas []*schema.Schema, prompt string, optFns ...generate.Option) (*model.Choice, error) {
	return structured.GenerateJSONOrText(ctx, m, schemas, prompt, optFns...)
}

// RunTool asks the model to fill in the tool's parameters, then executes the
// tool action at most once.
func RunTool(ctx context.Context, m model.JSONModel, t tool.Tool, prompt string, optFns ...generate.Option) (*tool.RunResult, error) {
	return tool.Run(ctx, m, t, prompt, optFns...)
}
