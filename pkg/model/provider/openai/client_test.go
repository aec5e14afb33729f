package openai

import (
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffrouin/tux-copilot/pkg/chat"
	"github.com/ffrouin/tux-copilot/pkg/tools"
)

func TestConvertMessagesBasic(t *testing.T) {
	t.Parallel()

	out := convertMessages([]chat.Message{
		{Role: chat.MessageRoleSystem, Content: "You are a terminal assistant."},
		{Role: chat.MessageRoleUser, Content: "hi"},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "system", out[0].Role)
	assert.Equal(t, "You are a terminal assistant.", out[0].Content)
	assert.Equal(t, "user", out[1].Role)
	assert.Equal(t, "hi", out[1].Content)
}

func TestConvertMessagesToolCalls(t *testing.T) {
	t.Parallel()

	out := convertMessages([]chat.Message{
		{
			Role: chat.MessageRoleAssistant,
			ToolCalls: []tools.ToolCall{{
				ID:       "call_1",
				Type:     "function",
				Function: tools.FunctionCall{Name: "write_file", Arguments: `{"path":"run.sh"}`},
			}},
		},
		{Role: chat.MessageRoleTool, ToolCallID: "call_1", Content: "✅ File created: run.sh"},
	})

	require.Len(t, out, 2)
	require.Len(t, out[0].ToolCalls, 1)
	assert.Equal(t, "call_1", out[0].ToolCalls[0].ID)
	assert.Equal(t, openai.ToolTypeFunction, out[0].ToolCalls[0].Type)
	assert.Equal(t, "write_file", out[0].ToolCalls[0].Function.Name)
	assert.Equal(t, `{"path":"run.sh"}`, out[0].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "call_1", out[1].ToolCallID)
	assert.Equal(t, "tool", out[1].Role)
}

func TestConvertTools(t *testing.T) {
	t.Parallel()

	out := convertTools([]tools.Tool{
		{
			Name:        "read_file",
			Description: "Read a file from the workspace",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": map[string]any{"type": "string"}},
			},
		},
		{Name: "get_date", Description: "Get the current date"},
	})

	require.Len(t, out, 2)
	assert.Equal(t, openai.ToolTypeFunction, out[0].Type)
	assert.Equal(t, "read_file", out[0].Function.Name)
	assert.Equal(t, "Read a file from the workspace", out[0].Function.Description)

	// Tools without parameters still get an object schema; some endpoints
	// reject a missing one.
	params, ok := out[1].Function.Parameters.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", params["type"])
	assert.Empty(t, params["properties"])
}

func TestConvertToolsEmpty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, convertTools(nil))
}

func TestConvertResponseMessage(t *testing.T) {
	t.Parallel()

	msg := convertResponseMessage(openai.ChatCompletionMessage{
		Role:    "assistant",
		Content: "Creating the script now.",
		ToolCalls: []openai.ToolCall{{
			ID:       "call_9",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: "exec_script", Arguments: `{"path":"run.sh"}`},
		}},
	})

	assert.Equal(t, chat.MessageRoleAssistant, msg.Role)
	assert.Equal(t, "Creating the script now.", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_9", msg.ToolCalls[0].ID)
	assert.Equal(t, "exec_script", msg.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"path":"run.sh"}`, msg.ToolCalls[0].Function.Arguments)
}
