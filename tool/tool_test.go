package tool

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freefrancisco/modelfusion/core"
	"github.com/freefrancisco/modelfusion/generate"
	"github.com/freefrancisco/modelfusion/model"
	"github.com/freefrancisco/modelfusion/retry"
)

func cityParams() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
		},
		"required": []string{"city"},
	}
}

func upperCityTool(calls *int32) *FunctionTool {
	return NewFunctionTool(
		"get_city_upper",
		"Uppercase the given city name",
		cityParams(),
		func(_ context.Context, args map[string]any) (any, error) {
			if calls != nil {
				atomic.AddInt32(calls, 1)
			}
			return strings.ToUpper(args["city"].(string)), nil
		},
	)
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	tl := upperCityTool(nil)

	result, err := tl.Call(context.Background(), map[string]any{"city": "paris"})
	require.NoError(t, err)
	assert.Equal(t, "PARIS", result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	var calls int32
	tl := upperCityTool(&calls)

	_, err := tl.Call(context.Background(), map[string]any{"city": 42})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidationError, toolErr.Code)
	assert.Equal(t, "get_city_upper", toolErr.Tool)
	assert.Zero(t, atomic.LoadInt32(&calls), "validation failure must not run the action")
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	boom := errors.New("downstream unavailable")
	tl := NewFunctionTool("failing", "Always fails", cityParams(),
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, boom
		})

	_, err := tl.Call(context.Background(), map[string]any{"city": "paris"})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecutionError, toolErr.Code)
	assert.ErrorIs(t, err, boom)
}

func TestFunctionTool_CustomToolErrorForwarded(t *testing.T) {
	custom := NewToolError("quota", "monthly quota exceeded", "QUOTA_EXCEEDED")
	tl := NewFunctionTool("quota", "Quota-limited action", cityParams(),
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, custom
		})

	_, err := tl.Call(context.Background(), map[string]any{"city": "paris"})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Same(t, custom, toolErr)
	assert.Equal(t, "QUOTA_EXCEEDED", toolErr.Code)
}

type cityArgs struct {
	City string `json:"city" description:"City name"`
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	tl := NewFunctionToolFromStruct("lookup_city", "Look up a city", cityArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["city"], nil
		})

	props, ok := tl.Parameters()["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "city")

	result, err := tl.Call(context.Background(), map[string]any{"city": "paris"})
	require.NoError(t, err)
	assert.Equal(t, "paris", result)
}

// -------------------- Run Tests --------------------

func fastRetry() *retry.ExponentialBackoff {
	return retry.NewExponentialBackoff(func(o *retry.ExponentialBackoff) {
		o.InitialDelay = time.Millisecond
	})
}

func TestRun_EndToEnd(t *testing.T) {
	m := model.NewMockJSONModel(&model.Choice{
		Schema:    "get_city_upper",
		Arguments: map[string]any{"city": "paris"},
	})
	var actionCalls int32

	result, err := Run(context.Background(), m, upperCityTool(&actionCalls), "Uppercase the capital of France")
	require.NoError(t, err)

	assert.Equal(t, "get_city_upper", result.Tool)
	assert.Equal(t, map[string]any{"city": "paris"}, result.Parameters)
	assert.Equal(t, "PARIS", result.Result)
	require.NotNil(t, result.Usage)
	assert.Equal(t, 20, result.Usage.TotalTokens)
	assert.NotEmpty(t, result.CallID)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, m.Calls())
	assert.Equal(t, int32(1), atomic.LoadInt32(&actionCalls))

	defs, forced := m.LastSchemas()
	require.Len(t, defs, 1)
	assert.Equal(t, "get_city_upper", defs[0].Name)
	assert.True(t, forced)
}

func TestRun_GenerationFailureSkipsAction(t *testing.T) {
	// Model fills the parameter with the wrong type.
	m := model.NewMockJSONModel(&model.Choice{
		Schema:    "get_city_upper",
		Arguments: map[string]any{"city": 42},
	})
	var actionCalls int32

	_, err := Run(context.Background(), m, upperCityTool(&actionCalls), "Uppercase the capital of France")
	require.Error(t, err)

	var mismatch *core.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "city", mismatch.Path)

	var toolErr *ToolError
	assert.False(t, errors.As(err, &toolErr), "generation failures must not masquerade as tool errors")
	assert.Zero(t, atomic.LoadInt32(&actionCalls))
}

func TestRun_ActionFailureIsToolError(t *testing.T) {
	m := model.NewMockJSONModel(&model.Choice{
		Schema:    "flaky_action",
		Arguments: map[string]any{"city": "paris"},
	})
	var actionCalls int32
	tl := NewFunctionTool("flaky_action", "Fails on execution", cityParams(),
		func(_ context.Context, _ map[string]any) (any, error) {
			atomic.AddInt32(&actionCalls, 1)
			return nil, errors.New("backend timeout")
		})

	_, err := Run(context.Background(), m, tl, "do the thing")
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecutionError, toolErr.Code)
	assert.Equal(t, "flaky_action", toolErr.Tool)

	var mismatch *core.SchemaMismatchError
	assert.False(t, errors.As(err, &mismatch))
	assert.Equal(t, int32(1), atomic.LoadInt32(&actionCalls), "action runs at most once")
}

func TestRun_RetryCoversGenerationOnly(t *testing.T) {
	m := model.NewMockJSONModel(&model.Choice{
		Schema:    "get_city_upper",
		Arguments: map[string]any{"city": "paris"},
	})
	m.FailAttempts = 2 // transient server errors before the scripted success
	var actionCalls int32

	result, err := Run(context.Background(), m, upperCityTool(&actionCalls), "Uppercase the capital of France",
		generate.WithRetry(fastRetry()))
	require.NoError(t, err)

	assert.Equal(t, 3, m.Calls())
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&actionCalls), "retries re-run the model call, never the action")
}
