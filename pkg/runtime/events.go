package runtime

import "github.com/ffrouin/tux-copilot/pkg/tools"

// Event is a message from the runtime loop to its consumer. Consumers type
// switch on the concrete pointer types below; the Type discriminator exists
// for serialized surfaces.
type Event any

// AssistantMessageEvent carries assistant text: either the final answer or
// commentary emitted alongside tool calls.
type AssistantMessageEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ToolCallEvent announces that a tool is about to run.
type ToolCallEvent struct {
	Type     string         `json:"type"`
	ToolCall tools.ToolCall `json:"tool_call"`
}

// ToolCallResponseEvent carries the result of a tool call. Every
// ToolCallEvent is followed by exactly one response event with the same ID.
type ToolCallResponseEvent struct {
	Type     string         `json:"type"`
	ToolCall tools.ToolCall `json:"tool_call"`
	Response string         `json:"response"`
	IsError  bool           `json:"is_error,omitempty"`
}

// ErrorEvent reports a loop failure (provider errors, tool listing failures).
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// MaxIterationsReachedEvent signals that the tool-call loop hit its cap
// before the model produced a plain answer.
type MaxIterationsReachedEvent struct {
	Type          string `json:"type"`
	MaxIterations int    `json:"max_iterations"`
}

// StreamStoppedEvent is the last event of every stream.
type StreamStoppedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

func newAssistantMessageEvent(content string) *AssistantMessageEvent {
	return &AssistantMessageEvent{Type: "assistant_message", Content: content}
}

func newToolCallEvent(call tools.ToolCall) *ToolCallEvent {
	return &ToolCallEvent{Type: "tool_call", ToolCall: call}
}

func newToolCallResponseEvent(call tools.ToolCall, result *tools.ToolCallResult) *ToolCallResponseEvent {
	return &ToolCallResponseEvent{
		Type:     "tool_call_response",
		ToolCall: call,
		Response: result.Output,
		IsError:  result.IsError,
	}
}

func newErrorEvent(err error) *ErrorEvent {
	return &ErrorEvent{Type: "error", Error: err.Error()}
}

func newMaxIterationsReachedEvent(maxIterations int) *MaxIterationsReachedEvent {
	return &MaxIterationsReachedEvent{Type: "max_iterations_reached", MaxIterations: maxIterations}
}

func newStreamStoppedEvent(sessionID string) *StreamStoppedEvent {
	return &StreamStoppedEvent{Type: "stream_stopped", SessionID: sessionID}
}
