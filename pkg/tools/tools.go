// Package tools defines the tool invocation surface: the Tool descriptor
// handed to model providers, the ToolCall/ToolCallResult pair exchanged with
// the dispatcher, and the ToolSet interface implemented by tool bundles.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolHandler executes a single tool call and returns its result.
// Failures the model should see (bad arguments, refused writes) are reported
// as error results, not Go errors; a Go error means the handler itself broke.
type ToolHandler func(ctx context.Context, call ToolCall) (*ToolCallResult, error)

// NewHandler adapts a typed handler into a ToolHandler by unmarshalling the
// call's JSON arguments into T. Malformed arguments become an error result so
// the model gets a chance to correct itself.
func NewHandler[T any](fn func(ctx context.Context, params T) (*ToolCallResult, error)) ToolHandler {
	return func(ctx context.Context, call ToolCall) (*ToolCallResult, error) {
		var params T
		if args := call.Function.Arguments; args != "" {
			if err := json.Unmarshal([]byte(args), &params); err != nil {
				return ResultError(fmt.Sprintf("invalid arguments: %s", err)), nil
			}
		}
		return fn(ctx, params)
	}
}

// Tool describes one callable function: its JSON-schema parameters and the
// handler that executes it.
type Tool struct {
	Name        string          `json:"name"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  map[string]any  `json:"parameters,omitempty"`
	Annotations ToolAnnotations `json:"annotations,omitempty"`

	Handler ToolHandler `json:"-"`
}

// ToolAnnotations carry hints about tool behavior.
type ToolAnnotations struct {
	// Title is a human-readable name for display surfaces.
	Title string `json:"title,omitempty"`
	// ReadOnlyHint marks tools that never modify the sandbox or workspace.
	ReadOnlyHint bool `json:"readOnlyHint,omitempty"`
}

// ToolCall is a structured request emitted by the model: a function name and
// its arguments as a raw JSON string.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the requested function and carries its JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCallResult is the structured outcome of one tool call.
type ToolCallResult struct {
	Output  string `json:"output"`
	IsError bool   `json:"isError,omitempty"`
}

// ResultSuccess wraps output in a successful result.
func ResultSuccess(output string) *ToolCallResult {
	return &ToolCallResult{Output: output}
}

// ResultError wraps output in an error result the model can react to.
func ResultError(output string) *ToolCallResult {
	return &ToolCallResult{Output: output, IsError: true}
}

// ToolSet is a named bundle of tools sharing state and lifecycle.
type ToolSet interface {
	// Instructions returns usage guidance injected into the system prompt,
	// or "" when the tool descriptions speak for themselves.
	Instructions() string

	// Tools lists the callable tools of this set.
	Tools(ctx context.Context) ([]Tool, error)
}

// Startable is implemented by toolsets that hold resources needing explicit
// lifecycle management (e.g. a sandbox container).
type Startable interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// BaseToolSet provides a default empty Instructions implementation.
type BaseToolSet struct{}

func (BaseToolSet) Instructions() string { return "" }
