package structured

import (
	"context"
	"errors"
	"fmt"

	"github.com/freefrancisco/modelfusion/core"
	"github.com/freefrancisco/modelfusion/generate"
	"github.com/freefrancisco/modelfusion/model"
	"github.com/freefrancisco/modelfusion/schema"
)

// GenerateJSON calls the model with a single schema and returns the
// validated argument object. On validation failure the call fails with
// *core.SchemaMismatchError naming the violating path.
func GenerateJSON(ctx context.Context, m model.JSONModel, s *schema.Schema, prompt string, optFns ...generate.Option) (map[string]any, error) {
	resp, err := GenerateJSONResponse(ctx, m, s, prompt, optFns...)
	if err != nil {
		return nil, err
	}
	return resp.Value.(map[string]any), nil
}

// GenerateJSONResponse is GenerateJSON returning the full envelope (value,
// usage, raw provider response) from the single underlying call.
func GenerateJSONResponse(ctx context.Context, m model.JSONModel, s *schema.Schema, prompt string, optFns ...generate.Option) (*generate.Response, error) {
	settings := generate.ResolveSettings(m.Settings(), optFns...)
	defs := []model.SchemaDef{{Name: s.Name, Description: s.Description, Parameters: s.Parameters}}

	produce := func(ctx context.Context) (any, error) {
		return m.GenerateJSON(ctx, prompt, defs, true, settings)
	}
	extract := func(raw any) (any, *core.TokenUsage, error) {
		choice, err := m.ExtractChoice(raw)
		if err != nil {
			return nil, nil, err
		}
		if choice.Schema != s.Name {
			return nil, nil, &core.UnknownSchemaError{Selected: choice.Schema, Candidates: []string{s.Name}}
		}
		value, err := validated(s, choice.Arguments)
		if err != nil {
			return nil, nil, err
		}
		usage, _ := m.ExtractUsage(raw)
		return value, usage, nil
	}

	return generate.Do(ctx, m.Info(), prompt, produce, extract, optFns...)
}

// GenerateJSONOrText presents all candidate schemas (plus the implicit
// decline option) to the model in one call. The result is exactly one of:
// a selected schema with its validated arguments, or — Schema empty — the
// model's free-text answer.
func GenerateJSONOrText(ctx context.Context, m model.JSONModel, schemas []*schema.Schema, prompt string, optFns ...generate.Option) (*model.Choice, error) {
	resp, err := GenerateJSONOrTextResponse(ctx, m, schemas, prompt, optFns...)
	if err != nil {
		return nil, err
	}
	return resp.Value.(*model.Choice), nil
}

// GenerateJSONOrTextResponse is GenerateJSONOrText returning the full
// envelope from the single underlying call.
func GenerateJSONOrTextResponse(ctx context.Context, m model.JSONModel, schemas []*schema.Schema, prompt string, optFns ...generate.Option) (*generate.Response, error) {
	if len(schemas) == 0 {
		return nil, fmt.Errorf("at least one candidate schema is required")
	}

	byName := make(map[string]*schema.Schema, len(schemas))
	defs := make([]model.SchemaDef, 0, len(schemas))
	for _, s := range schemas {
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate schema name %q in candidate set", s.Name)
		}
		byName[s.Name] = s
		defs = append(defs, model.SchemaDef{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
	}

	settings := generate.ResolveSettings(m.Settings(), optFns...)

	produce := func(ctx context.Context) (any, error) {
		return m.GenerateJSON(ctx, prompt, defs, false, settings)
	}
	extract := func(raw any) (any, *core.TokenUsage, error) {
		choice, err := m.ExtractChoice(raw)
		if err != nil {
			return nil, nil, err
		}
		usage, _ := m.ExtractUsage(raw)

		if choice.Schema == "" {
			return &model.Choice{Text: choice.Text}, usage, nil
		}

		s, ok := byName[choice.Schema]
		if !ok {
			return nil, nil, &core.UnknownSchemaError{Selected: choice.Schema, Candidates: names(defs)}
		}
		value, err := validated(s, choice.Arguments)
		if err != nil {
			return nil, nil, err
		}
		return &model.Choice{Schema: s.Name, Arguments: value}, usage, nil
	}

	return generate.Do(ctx, m.Info(), prompt, produce, extract, optFns...)
}

// validated runs schema validation, wrapping violations in the fatal
// SchemaMismatchError with the offending path.
func validated(s *schema.Schema, value map[string]any) (map[string]any, error) {
	if err := s.Validate(value); err != nil {
		path := ""
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			path = verr.Field
		}
		return nil, &core.SchemaMismatchError{Schema: s.Name, Path: path, Cause: err}
	}
	return value, nil
}

func names(defs []model.SchemaDef) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}
