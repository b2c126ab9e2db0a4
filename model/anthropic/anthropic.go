// Package anthropic adapts the Anthropic Messages API to the model
// capability interfaces. Text generation maps to plain messages, structured
// generation to forced or free tool selection via tool_use blocks.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/freefrancisco/modelfusion/core"
	"github.com/freefrancisco/modelfusion/model"
)

// Options configure the Anthropic model adapter. Settings holds the
// adapter's default call settings; per-call overrides are merged on top by
// the executor.
type Options struct {
	Model    anthropic.Model
	APIKey   string
	Settings model.Settings
}

// Model wraps the Anthropic Messages API behind the model.TextModel and
// model.JSONModel interfaces.
type Model struct {
	client *anthropic.Client
	opts   Options
}

var (
	_ model.TextModel = (*Model)(nil)
	_ model.JSONModel = (*Model)(nil)
)

func defaultOptions() Options {
	return Options{
		Model: anthropic.ModelClaude3_5Sonnet20241022,
		Settings: model.Settings{
			Temperature: model.Float(0.7),
			MaxTokens:   model.Int(4096),
		},
	}
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic"}
}

// Settings returns the adapter's default call settings.
func (m *Model) Settings() model.Settings { return m.opts.Settings }

// Generate implements model.TextModel with a single Messages API attempt.
func (m *Model) Generate(ctx context.Context, prompt string, settings model.Settings) (any, error) {
	params := m.buildParams(ctx, prompt, settings)

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapErr(err)
	}
	return resp, nil
}

// ExtractText implements model.TextModel by concatenating text blocks.
func (m *Model) ExtractText(raw any) (string, error) {
	resp, ok := raw.(*anthropic.Message)
	if !ok {
		return "", fmt.Errorf("unexpected raw response type %T", raw)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return text, nil
}

// ExtractUsage implements model.TextModel.
func (m *Model) ExtractUsage(raw any) (*core.TokenUsage, bool) {
	resp, ok := raw.(*anthropic.Message)
	if !ok {
		return nil, false
	}
	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	if in == 0 && out == 0 {
		return nil, false
	}
	return &core.TokenUsage{
		PromptTokens:     in,
		CompletionTokens: out,
		TotalTokens:      in + out,
	}, true
}

// GenerateJSON implements model.JSONModel. Each candidate schema becomes a
// tool; forced mode pins tool choice to the sole schema, free mode lets the
// model pick any tool or answer with plain text.
func (m *Model) GenerateJSON(ctx context.Context, prompt string, schemas []model.SchemaDef, forced bool, settings model.Settings) (any, error) {
	params := m.buildParams(ctx, prompt, settings)

	tools := make([]anthropic.ToolUnionParam, len(schemas))
	for i, s := range schemas {
		tools[i] = anthropic.ToolUnionParamOfTool(inputSchema(s.Parameters), s.Name)
	}
	params.Tools = tools

	if forced && len(schemas) == 1 {
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: schemas[0].Name},
		}
	} else {
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapErr(err)
	}
	return resp, nil
}

// ExtractChoice implements model.JSONModel. A tool_use block becomes a
// schema selection with parsed arguments; text-only content is a decline.
func (m *Model) ExtractChoice(raw any) (*model.Choice, error) {
	resp, ok := raw.(*anthropic.Message)
	if !ok {
		return nil, fmt.Errorf("unexpected raw response type %T", raw)
	}

	var text string
	for _, block := range resp.Content {
		switch block.Type {
		case "tool_use":
			tb := block.AsToolUse()
			args, err := decodeInput(tb.Input)
			if err != nil {
				return nil, fmt.Errorf("parse arguments for %q: %w", tb.Name, err)
			}
			return &model.Choice{Schema: tb.Name, Arguments: args}, nil
		case "text":
			text += block.AsText().Text
		}
	}
	return &model.Choice{Text: text}, nil
}

// buildParams assembles the Messages API parameters from the prompt and
// merged settings.
func (m *Model) buildParams(ctx context.Context, prompt string, s model.Settings) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model: m.opts.Model,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		MaxTokens: 4096,
	}
	if s.MaxTokens != nil {
		params.MaxTokens = int64(*s.MaxTokens)
	}
	if s.Temperature != nil {
		params.Temperature = anthropic.Float(*s.Temperature)
	}
	if s.TopP != nil {
		params.TopP = anthropic.Float(*s.TopP)
	}
	if len(s.StopSequences) > 0 {
		params.StopSequences = s.StopSequences
	}
	if run, ok := core.RunFromContext(ctx); ok && s.ForwardUserEnabled() && run.UserID != "" {
		params.Metadata = anthropic.MetadataParam{UserID: anthropic.String(run.UserID)}
	}
	return params
}

// inputSchema converts the shared JSON-Schema map form into the SDK's tool
// input schema parameter.
func inputSchema(parameters map[string]any) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{
		Type: constant.Object("object"),
	}
	if parameters == nil {
		return schema
	}
	if properties, ok := parameters["properties"]; ok {
		schema.Properties = properties
	}
	switch required := parameters["required"].(type) {
	case []string:
		schema.Required = required
	case []any:
		for _, r := range required {
			if name, ok := r.(string); ok {
				schema.Required = append(schema.Required, name)
			}
		}
	}
	return schema
}

// decodeInput normalizes the SDK's tool input into the shared argument map
// form.
func decodeInput(input any) (map[string]any, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// wrapErr classifies SDK errors into the shared provider error taxonomy so
// the retry policy can distinguish transient from fatal. Context errors pass
// through untouched.
func wrapErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return &core.ProviderError{
			Provider: "anthropic",
			Class:    core.ClassifyHTTPStatus(apierr.StatusCode),
			Status:   apierr.StatusCode,
			Message:  apierr.Error(),
			Cause:    err,
		}
	}

	return &core.ProviderError{
		Provider: "anthropic",
		Class:    core.ErrClassNetwork,
		Message:  err.Error(),
		Cause:    err,
	}
}
