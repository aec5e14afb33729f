// Package chat defines the message model exchanged between the assistant,
// the model provider, and the tool layer. The shapes mirror the OpenAI chat
// completions wire format so transcripts can be replayed against any
// compatible endpoint.
package chat

import (
	"time"

	"github.com/ffrouin/tux-copilot/pkg/tools"
)

// MessageRole identifies the author of a message.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// Message is a single transcript entry. Assistant messages may carry tool
// calls instead of (or in addition to) content; tool messages answer exactly
// one tool call, identified by ToolCallID.
type Message struct {
	Role       MessageRole      `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []tools.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	IsError    bool             `json:"is_error,omitempty"`
	CreatedAt  time.Time        `json:"created_at,omitempty"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: MessageRoleSystem, Content: content, CreatedAt: time.Now()}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: MessageRoleUser, Content: content, CreatedAt: time.Now()}
}

// NewAssistantMessage creates an assistant message with plain content.
func NewAssistantMessage(content string) Message {
	return Message{Role: MessageRoleAssistant, Content: content, CreatedAt: time.Now()}
}

// NewToolMessage creates a tool result message answering the given call ID.
func NewToolMessage(toolCallID, content string) Message {
	return Message{
		Role:       MessageRoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		CreatedAt:  time.Now(),
	}
}

// HasToolCalls reports whether the message requests tool execution.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}
