// Package openai adapts the OpenAI Chat Completions API (including streaming
// and function/tool calling) to the model capability interfaces. Text
// generation maps to plain chat completions, structured generation to forced
// or free tool selection, streaming to server-sent completion chunks.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/freefrancisco/modelfusion/core"
	"github.com/freefrancisco/modelfusion/model"
)

// Options configure the OpenAI model adapter. Settings holds the adapter's
// default call settings; per-call overrides are merged on top by the
// executor.
type Options struct {
	Model    string
	Settings model.Settings
}

// Model wraps the OpenAI Chat Completions API behind the model.TextModel,
// model.StreamingTextModel and model.JSONModel interfaces.
type Model struct {
	client *openai.Client
	opts   Options
}

var (
	_ model.TextModel          = (*Model)(nil)
	_ model.StreamingTextModel = (*Model)(nil)
	_ model.JSONModel          = (*Model)(nil)
)

// NewModel creates a new OpenAI model using the official client, configured
// from the environment (OPENAI_API_KEY).
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model: openai.ChatModelGPT4oMini,
		Settings: model.Settings{
			Temperature: model.Float(0.7),
			MaxTokens:   model.Int(4096),
		},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai"}
}

// Settings returns the adapter's default call settings.
func (m *Model) Settings() model.Settings { return m.opts.Settings }

// Generate implements model.TextModel with a single non-streaming chat
// completion attempt.
func (m *Model) Generate(ctx context.Context, prompt string, settings model.Settings) (any, error) {
	params := m.buildParams(ctx, prompt, settings)

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &core.ProviderError{
			Provider: "openai",
			Class:    core.ErrClassServer,
			Message:  "no choices returned",
		}
	}
	return resp, nil
}

// ExtractText implements model.TextModel.
func (m *Model) ExtractText(raw any) (string, error) {
	resp, ok := raw.(*openai.ChatCompletion)
	if !ok {
		return "", fmt.Errorf("unexpected raw response type %T", raw)
	}
	return resp.Choices[0].Message.Content, nil
}

// ExtractUsage implements model.TextModel.
func (m *Model) ExtractUsage(raw any) (*core.TokenUsage, bool) {
	resp, ok := raw.(*openai.ChatCompletion)
	if !ok || resp.Usage.TotalTokens == 0 {
		return nil, false
	}
	return &core.TokenUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}, true
}

// GenerateStream implements model.StreamingTextModel. An error establishing
// the connection is returned directly (and is therefore retryable); failures
// after the first chunk surface through the returned stream.
func (m *Model) GenerateStream(ctx context.Context, prompt string, settings model.Settings) (*model.TextStream, error) {
	params := m.buildParams(ctx, prompt, settings)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	sse := m.client.Chat.Completions.NewStreaming(ctx, params)
	if err := sse.Err(); err != nil {
		return nil, wrapErr(err)
	}

	stream := model.NewTextStream(ctx)
	go func() {
		defer sse.Close()

		var usage *core.TokenUsage
		for sse.Next() {
			ck := sse.Current()
			if ck.Usage.TotalTokens > 0 {
				usage = &core.TokenUsage{
					PromptTokens:     int(ck.Usage.PromptTokens),
					CompletionTokens: int(ck.Usage.CompletionTokens),
					TotalTokens:      int(ck.Usage.TotalTokens),
				}
			}
			for _, ch := range ck.Choices {
				if ch.Delta.Content == "" {
					continue
				}
				if !stream.Push(ch.Delta.Content) {
					return
				}
			}
		}
		if err := sse.Err(); err != nil {
			stream.Fail(wrapErr(err))
			return
		}
		stream.Finish(usage)
	}()
	return stream, nil
}

// GenerateJSON implements model.JSONModel. Each candidate schema becomes a
// tool definition; forced mode pins tool choice to the sole schema, free mode
// lets the model pick any tool or answer with plain text.
func (m *Model) GenerateJSON(ctx context.Context, prompt string, schemas []model.SchemaDef, forced bool, settings model.Settings) (any, error) {
	params := m.buildParams(ctx, prompt, settings)

	tools := make([]openai.ChatCompletionToolParam, len(schemas))
	for i, s := range schemas {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        s.Name,
				Description: openai.String(s.Description),
				Parameters:  openai.FunctionParameters(s.Parameters),
			},
		}
	}
	params.Tools = tools

	if forced && len(schemas) == 1 {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Type:     "function",
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: schemas[0].Name},
			},
		}
	} else {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("auto"),
		}
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &core.ProviderError{
			Provider: "openai",
			Class:    core.ErrClassServer,
			Message:  "no choices returned",
		}
	}
	return resp, nil
}

// ExtractChoice implements model.JSONModel. A tool call becomes a schema
// selection with parsed arguments; a plain message becomes a decline.
func (m *Model) ExtractChoice(raw any) (*model.Choice, error) {
	resp, ok := raw.(*openai.ChatCompletion)
	if !ok {
		return nil, fmt.Errorf("unexpected raw response type %T", raw)
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return &model.Choice{Text: msg.Content}, nil
	}

	tc := msg.ToolCalls[0]
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		return nil, fmt.Errorf("parse arguments for %q: %w", tc.Function.Name, err)
	}
	return &model.Choice{Schema: tc.Function.Name, Arguments: args}, nil
}

// buildParams assembles the chat completion parameters from the prompt and
// merged settings.
func (m *Model) buildParams(ctx context.Context, prompt string, s model.Settings) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Model:    m.opts.Model,
	}
	if s.Temperature != nil {
		params.Temperature = openai.Float(*s.Temperature)
	}
	if s.TopP != nil {
		params.TopP = openai.Float(*s.TopP)
	}
	if s.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*s.MaxTokens))
	}
	if len(s.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: s.StopSequences}
	}
	if run, ok := core.RunFromContext(ctx); ok && s.ForwardUserEnabled() && run.UserID != "" {
		params.User = openai.String(run.UserID)
	}
	return params
}

// wrapErr classifies SDK errors into the shared provider error taxonomy so
// the retry policy can distinguish transient from fatal. Context errors pass
// through untouched.
func wrapErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return &core.ProviderError{
			Provider: "openai",
			Class:    core.ClassifyHTTPStatus(apierr.StatusCode),
			Status:   apierr.StatusCode,
			Message:  apierr.Error(),
			Cause:    err,
		}
	}

	// No HTTP response at all: treat as a transient network failure.
	return &core.ProviderError{
		Provider: "openai",
		Class:    core.ErrClassNetwork,
		Message:  err.Error(),
		Cause:    err,
	}
}
