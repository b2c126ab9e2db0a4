package tool

import (
	"context"

	"github.com/freefrancisco/modelfusion/core"
	"github.com/freefrancisco/modelfusion/generate"
	"github.com/freefrancisco/modelfusion/model"
	"github.com/freefrancisco/modelfusion/schema"
	"github.com/freefrancisco/modelfusion/structured"
)

// RunResult combines the model's parameter selection with the outcome of the
// tool action that consumed it.
type RunResult struct {
	// Tool is the name of the executed tool.
	Tool string

	// Parameters are the validated arguments the model selected.
	Parameters map[string]any

	// Result is the value returned by the tool action.
	Result any

	// Usage is token usage of the parameter-selection call, if reported.
	Usage *core.TokenUsage

	CallID     string
	FunctionID string
	Model      model.Info
	Attempts   int
}

// Run asks the model to fill in the tool's parameters, then executes the
// tool with them.
//
// The two phases fail independently: an error from the model call (including
// schema validation of the model's output) is returned as-is and the action
// never runs; an error from the action is returned as *ToolError with the
// selected parameters already bound. The action runs at most once per Run,
// regardless of retry policy on the model call.
func Run(ctx context.Context, m model.JSONModel, t Tool, prompt string, optFns ...generate.Option) (*RunResult, error) {
	s := schema.New(t.Name(), t.Description(), t.Parameters())

	resp, err := structured.GenerateJSONResponse(ctx, m, s, prompt, optFns...)
	if err != nil {
		return nil, err
	}
	params := resp.Value.(map[string]any)

	result, err := t.Call(ctx, params)
	if err != nil {
		if _, ok := err.(*ToolError); ok {
			return nil, err
		}
		return nil, &ToolError{
			Tool:    t.Name(),
			Message: err.Error(),
			Code:    CodeExecutionError,
			Cause:   err,
		}
	}

	return &RunResult{
		Tool:       t.Name(),
		Parameters: params,
		Result:     result,
		Usage:      resp.Usage,
		CallID:     resp.CallID,
		FunctionID: resp.FunctionID,
		Model:      resp.Model,
		Attempts:   resp.Attempts,
	}, nil
}
