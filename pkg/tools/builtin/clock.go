package builtin

import (
	"context"
	"time"

	"github.com/ffrouin/tux-copilot/pkg/tools"
)

const (
	ToolNameGetDate = "get_date"
	ToolNameGetTime = "get_time"
)

// ClockTool answers date and time questions without a model round trip
// through the sandbox.
type ClockTool struct {
	tools.BaseToolSet
	now func() time.Time
}

var _ tools.ToolSet = (*ClockTool)(nil)

func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

func (c *ClockTool) Tools(context.Context) ([]tools.Tool, error) {
	return []tools.Tool{
		{
			Name:        ToolNameGetDate,
			Category:    "clock",
			Description: "Return the current ISO date (YYYY-MM-DD).",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			Handler: func(context.Context, tools.ToolCall) (*tools.ToolCallResult, error) {
				return tools.ResultSuccess(c.now().Format("2006-01-02")), nil
			},
			Annotations: tools.ToolAnnotations{Title: "Get Date", ReadOnlyHint: true},
		},
		{
			Name:        ToolNameGetTime,
			Category:    "clock",
			Description: "Return the current local time (HH:MM:SS).",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			Handler: func(context.Context, tools.ToolCall) (*tools.ToolCallResult, error) {
				return tools.ResultSuccess(c.now().Format("15:04:05")), nil
			},
			Annotations: tools.ToolAnnotations{Title: "Get Time", ReadOnlyHint: true},
		},
	}, nil
}
