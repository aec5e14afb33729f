// Package runtime drives the conversation: it sends the transcript to the
// model provider, dispatches the tool calls the model requests, feeds results
// back, and repeats until the model answers in plain text. Consumers observe
// the loop through the event stream.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ffrouin/tux-copilot/pkg/chat"
	"github.com/ffrouin/tux-copilot/pkg/model/provider"
	"github.com/ffrouin/tux-copilot/pkg/session"
	"github.com/ffrouin/tux-copilot/pkg/tools"
)

// DefaultMaxIterations caps tool-call rounds per user turn when neither the
// session nor the runtime configures a limit.
const DefaultMaxIterations = 20

// Runtime runs user turns against the model and its tools.
type Runtime interface {
	// Tools returns the aggregated tool list across all toolsets.
	Tools(ctx context.Context) ([]tools.Tool, error)

	// Start brings up toolset resources (the sandbox container among them).
	Start(ctx context.Context) error

	// Stop tears down toolset resources.
	Stop(ctx context.Context) error

	// RunStream runs one user turn: completion, tool dispatch, repeat. The
	// channel closes after a StreamStoppedEvent once the turn is over.
	RunStream(ctx context.Context, sess *session.Session) <-chan Event

	// SetSystemPrompt replaces the base system prompt for subsequent turns.
	SetSystemPrompt(prompt string)

	// SetMaxHistory replaces the history limit for subsequent turns.
	SetMaxHistory(n int)
}

type runtime struct {
	provider      provider.Provider
	toolsets      []tools.ToolSet
	maxIterations int

	mu           sync.RWMutex
	systemPrompt string
	maxHistory   int
}

// Opt configures a Runtime.
type Opt func(*runtime)

// WithToolSets registers the toolsets whose tools the model may call.
func WithToolSets(toolsets ...tools.ToolSet) Opt {
	return func(rt *runtime) { rt.toolsets = append(rt.toolsets, toolsets...) }
}

// WithSystemPrompt sets the base system prompt. Toolset instructions are
// appended to it at request time.
func WithSystemPrompt(prompt string) Opt {
	return func(rt *runtime) { rt.systemPrompt = prompt }
}

// WithMaxIterations caps tool-call rounds per user turn. Zero keeps the
// default; sessions may override with their own limit.
func WithMaxIterations(n int) Opt {
	return func(rt *runtime) { rt.maxIterations = n }
}

// WithMaxHistory caps the conversation messages sent per completion.
// Zero sends the full transcript.
func WithMaxHistory(n int) Opt {
	return func(rt *runtime) { rt.maxHistory = n }
}

// New creates a Runtime backed by the given provider.
func New(p provider.Provider, opts ...Opt) Runtime {
	rt := &runtime{
		provider:      p,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *runtime) Tools(ctx context.Context) ([]tools.Tool, error) {
	var all []tools.Tool
	for _, ts := range rt.toolsets {
		list, err := ts.Tools(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing tools: %w", err)
		}
		all = append(all, list...)
	}
	return all, nil
}

func (rt *runtime) Start(ctx context.Context) error {
	for _, ts := range rt.toolsets {
		if s, ok := ts.(tools.Startable); ok {
			if err := s.Start(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (rt *runtime) Stop(ctx context.Context) error {
	var firstErr error
	for _, ts := range rt.toolsets {
		if s, ok := ts.(tools.Startable); ok {
			if err := s.Stop(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (rt *runtime) SetSystemPrompt(prompt string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.systemPrompt = prompt
}

func (rt *runtime) SetMaxHistory(n int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.maxHistory = n
}

// composeSystemPrompt appends each toolset's instructions to the base prompt.
func (rt *runtime) composeSystemPrompt() string {
	rt.mu.RLock()
	parts := []string{rt.systemPrompt}
	rt.mu.RUnlock()

	for _, ts := range rt.toolsets {
		if instructions := strings.TrimSpace(ts.Instructions()); instructions != "" {
			parts = append(parts, instructions)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func (rt *runtime) currentMaxHistory() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.maxHistory
}

func (rt *runtime) RunStream(ctx context.Context, sess *session.Session) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		rt.run(ctx, sess, out)
		rt.send(ctx, out, newStreamStoppedEvent(sess.ID))
	}()
	return out
}

// send delivers an event unless the context is cancelled. It reports whether
// the event was delivered.
func (rt *runtime) send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (rt *runtime) run(ctx context.Context, sess *session.Session, out chan<- Event) {
	toolList, err := rt.Tools(ctx)
	if err != nil {
		rt.send(ctx, out, newErrorEvent(err))
		return
	}

	maxIterations := sess.MaxIterations
	if maxIterations <= 0 {
		maxIterations = rt.maxIterations
	}

	for iteration := 0; ; iteration++ {
		if ctx.Err() != nil {
			return
		}
		if maxIterations > 0 && iteration >= maxIterations {
			slog.Debug("Tool-call loop hit iteration cap", "max_iterations", maxIterations, "session_id", sess.ID)
			rt.send(ctx, out, newMaxIterationsReachedEvent(maxIterations))
			return
		}

		messages := sess.GetMessages(rt.composeSystemPrompt(), rt.currentMaxHistory())
		reply, usage, err := rt.provider.CreateChatCompletion(ctx, messages, toolList)
		if err != nil {
			rt.send(ctx, out, newErrorEvent(err))
			return
		}
		sess.AddUsage(usage.InputTokens, usage.OutputTokens)

		if !reply.HasToolCalls() {
			sess.AddMessage(*reply)
			rt.send(ctx, out, newAssistantMessageEvent(reply.Content))
			return
		}

		// Local models sometimes omit call IDs; generate them so the
		// call/result pairing in the transcript stays intact.
		for i := range reply.ToolCalls {
			if reply.ToolCalls[i].ID == "" {
				reply.ToolCalls[i].ID = uuid.NewString()
			}
		}
		sess.AddMessage(*reply)
		if strings.TrimSpace(reply.Content) != "" {
			rt.send(ctx, out, newAssistantMessageEvent(reply.Content))
		}

		for _, call := range reply.ToolCalls {
			if ctx.Err() != nil {
				return
			}
			if !rt.send(ctx, out, newToolCallEvent(call)) {
				return
			}

			result := Dispatch(ctx, toolList, call)

			msg := chat.NewToolMessage(call.ID, result.Output)
			msg.IsError = result.IsError
			sess.AddMessage(msg)

			if !rt.send(ctx, out, newToolCallResponseEvent(call, result)) {
				return
			}
		}
	}
}

// Dispatch routes one tool call to its handler. Unknown tools and handler
// failures become error results the model can react to instead of Go errors.
func Dispatch(ctx context.Context, toolList []tools.Tool, call tools.ToolCall) *tools.ToolCallResult {
	name := call.Function.Name
	for i := range toolList {
		if toolList[i].Name != name {
			continue
		}
		slog.Debug("Dispatching tool call", "tool", name, "call_id", call.ID)
		result, err := toolList[i].Handler(ctx, call)
		if err != nil {
			slog.Error("Tool handler failed", "tool", name, "error", err)
			return tools.ResultError(fmt.Sprintf("[ERROR] %s", err))
		}
		return result
	}
	return tools.ResultError(fmt.Sprintf("[ERROR] Unknown tool: %s", name))
}
