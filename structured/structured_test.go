package structured

import (
	"context"
	"testing"

	"github.com/freefrancisco/modelfusion/core"
	"github.com/freefrancisco/modelfusion/model"
	"github.com/freefrancisco/modelfusion/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentimentSchema() *schema.Schema {
	return schema.New("sentiment", "Classify the sentiment of the text", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sentiment": map[string]any{
				"type": "string",
				"enum": []any{"positive", "neutral", "negative"},
			},
		},
		"required": []string{"sentiment"},
	})
}

func TestGenerateJSON_ValidOutput(t *testing.T) {
	m := model.NewMockJSONModel(&model.Choice{
		Schema:    "sentiment",
		Arguments: map[string]any{"sentiment": "negative"},
	})

	value, err := GenerateJSON(context.Background(), m, sentimentSchema(), "classify: awful")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sentiment": "negative"}, value)

	defs, forced := m.LastSchemas()
	require.Len(t, defs, 1)
	assert.Equal(t, "sentiment", defs[0].Name)
	assert.True(t, forced)
}

func TestGenerateJSON_MismatchFailsWithPath(t *testing.T) {
	m := model.NewMockJSONModel(&model.Choice{
		Schema:    "sentiment",
		Arguments: map[string]any{"sentiment": "angry"},
	})

	_, err := GenerateJSON(context.Background(), m, sentimentSchema(), "classify: awful")
	require.Error(t, err)

	var mismatch *core.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "sentiment", mismatch.Schema)
	assert.Equal(t, "sentiment", mismatch.Path)

	// Validation failures are fatal: no automatic re-attempt happened.
	assert.Equal(t, 1, m.Calls())
}

func TestGenerateJSON_WrongSchemaNameIsProtocolError(t *testing.T) {
	m := model.NewMockJSONModel(&model.Choice{
		Schema:    "somethingElse",
		Arguments: map[string]any{},
	})

	_, err := GenerateJSON(context.Background(), m, sentimentSchema(), "p")
	require.Error(t, err)

	var unknown *core.UnknownSchemaError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "somethingElse", unknown.Selected)
}

func TestGenerateJSONResponse_EnvelopeFromOneCall(t *testing.T) {
	m := model.NewMockJSONModel(&model.Choice{
		Schema:    "sentiment",
		Arguments: map[string]any{"sentiment": "positive"},
	})

	resp, err := GenerateJSONResponse(context.Background(), m, sentimentSchema(), "p")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"sentiment": "positive"}, resp.Value)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 20, resp.Usage.TotalTokens)
	assert.NotNil(t, resp.Raw)
	assert.Equal(t, 1, m.Calls())
}

func dispatchSchemas() []*schema.Schema {
	weather := schema.New("getWeather", "Look up the weather", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
		},
		"required": []string{"city"},
	})
	contact := schema.New("getContact", "Look up a contact", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"required": []string{"name"},
	})
	return []*schema.Schema{weather, contact}
}

func TestGenerateJSONOrText_SchemaSelected(t *testing.T) {
	m := model.NewMockJSONModel(&model.Choice{
		Schema:    "getWeather",
		Arguments: map[string]any{"city": "Paris"},
	})

	choice, err := GenerateJSONOrText(context.Background(), m, dispatchSchemas(), "weather in paris?")
	require.NoError(t, err)
	assert.Equal(t, "getWeather", choice.Schema)
	assert.Equal(t, map[string]any{"city": "Paris"}, choice.Arguments)
	assert.Empty(t, choice.Text)

	defs, forced := m.LastSchemas()
	assert.Len(t, defs, 2)
	assert.False(t, forced)
}

func TestGenerateJSONOrText_Decline(t *testing.T) {
	m := model.NewMockJSONModel(&model.Choice{Text: "I don't know"})

	choice, err := GenerateJSONOrText(context.Background(), m, dispatchSchemas(), "what's the meaning of life?")
	require.NoError(t, err)
	assert.Empty(t, choice.Schema)
	assert.Nil(t, choice.Arguments)
	assert.Equal(t, "I don't know", choice.Text)
}

func TestGenerateJSONOrText_UnknownSchemaNeverCoerced(t *testing.T) {
	m := model.NewMockJSONModel(&model.Choice{
		Schema:    "launchMissiles",
		Arguments: map[string]any{},
	})

	_, err := GenerateJSONOrText(context.Background(), m, dispatchSchemas(), "p")
	require.Error(t, err)

	var unknown *core.UnknownSchemaError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "launchMissiles", unknown.Selected)
	assert.ElementsMatch(t, []string{"getWeather", "getContact"}, unknown.Candidates)
}

func TestGenerateJSONOrText_SelectedSchemaStillValidated(t *testing.T) {
	m := model.NewMockJSONModel(&model.Choice{
		Schema:    "getWeather",
		Arguments: map[string]any{}, // missing required "city"
	})

	_, err := GenerateJSONOrText(context.Background(), m, dispatchSchemas(), "p")
	require.Error(t, err)

	var mismatch *core.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "getWeather", mismatch.Schema)
	assert.Equal(t, "city", mismatch.Path)
}

func TestGenerateJSONOrText_DuplicateNamesRejected(t *testing.T) {
	s := sentimentSchema()
	m := model.NewMockJSONModel(&model.Choice{Text: "unused"})

	_, err := GenerateJSONOrText(context.Background(), m, []*schema.Schema{s, s}, "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate schema name")
	assert.Equal(t, 0, m.Calls())
}
