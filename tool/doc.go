// Package tool exposes plain Go functions as model-invocable tools with
// schema validated arguments and uniform error handling.
//
// A tool run has two strictly separated phases: first the model selects the
// tool's parameters via structured generation (failures there surface as
// generation errors), then the tool action executes at most once (failures
// there surface as *ToolError). A parameter-selection failure never runs the
// action; an action failure is never confused with a model failure.
package tool
