// Package session holds the conversation state of one assistant session and
// its persistence stores.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/ffrouin/tux-copilot/pkg/chat"
)

// Session is one conversation with the assistant: the transcript, token
// usage, and the sandbox workdir it is bound to.
type Session struct {
	ID            string         `json:"id"`
	Title         string         `json:"title,omitempty"`
	Messages      []chat.Message `json:"messages"`
	InputTokens   int            `json:"input_tokens"`
	OutputTokens  int            `json:"output_tokens"`
	MaxIterations int            `json:"max_iterations"`
	Workdir       string         `json:"working_dir,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Opt configures a new session.
type Opt func(*Session)

// WithID sets an explicit session ID instead of a generated one.
func WithID(id string) Opt {
	return func(s *Session) { s.ID = id }
}

// WithTitle sets the session title shown in listings.
func WithTitle(title string) Opt {
	return func(s *Session) { s.Title = title }
}

// WithMaxIterations caps the number of tool-call rounds per user turn.
func WithMaxIterations(n int) Opt {
	return func(s *Session) { s.MaxIterations = n }
}

// WithWorkdir records the sandbox workdir the session works against.
func WithWorkdir(dir string) Opt {
	return func(s *Session) { s.Workdir = dir }
}

// New creates a session with a generated UUID.
func New(opts ...Opt) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddMessage appends a message to the transcript.
func (s *Session) AddMessage(msg chat.Message) {
	s.Messages = append(s.Messages, msg)
}

// AddUsage accumulates token usage reported by the model provider.
func (s *Session) AddUsage(inputTokens, outputTokens int) {
	s.InputTokens += inputTokens
	s.OutputTokens += outputTokens
}

// GetMessages returns the request transcript: the system prompt followed by
// the conversation, trimmed to maxHistory conversation messages when the
// limit is positive. The system prompt is composed at request time so config
// reloads apply to a running session.
func (s *Session) GetMessages(systemPrompt string, maxHistory int) []chat.Message {
	messages := make([]chat.Message, 0, len(s.Messages)+1)
	if systemPrompt != "" {
		messages = append(messages, chat.NewSystemMessage(systemPrompt))
	}
	messages = append(messages, s.Messages...)
	return trimMessages(messages, maxHistory)
}

// trimMessages drops the oldest removable messages until at most maxItems
// conversation messages remain. System and user messages are never dropped.
// An assistant message and its tool results are removed as one group so the
// transcript never contains a tool result without its call, or a call
// without its result.
func trimMessages(messages []chat.Message, maxItems int) []chat.Message {
	if maxItems <= 0 {
		return messages
	}

	conversation := 0
	for _, msg := range messages {
		if msg.Role != chat.MessageRoleSystem {
			conversation++
		}
	}
	if conversation <= maxItems {
		return messages
	}

	toRemove := conversation - maxItems
	removedCalls := make(map[string]bool)
	trimmed := make([]chat.Message, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case chat.MessageRoleSystem, chat.MessageRoleUser:
			trimmed = append(trimmed, msg)

		case chat.MessageRoleTool:
			// Results of a dropped call go with it, over quota or not.
			if removedCalls[msg.ToolCallID] {
				if toRemove > 0 {
					toRemove--
				}
				continue
			}
			trimmed = append(trimmed, msg)

		default:
			if toRemove > 0 {
				toRemove--
				for _, tc := range msg.ToolCalls {
					removedCalls[tc.ID] = true
				}
				continue
			}
			trimmed = append(trimmed, msg)
		}
	}

	return trimmed
}
