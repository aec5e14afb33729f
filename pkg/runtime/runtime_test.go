package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffrouin/tux-copilot/pkg/chat"
	"github.com/ffrouin/tux-copilot/pkg/model/provider/base"
	"github.com/ffrouin/tux-copilot/pkg/session"
	"github.com/ffrouin/tux-copilot/pkg/tools"
)

// scriptedProvider returns canned replies in order and records every request
// transcript it receives. With repeatLast set it keeps returning the final
// reply, which lets tests drive the loop into its iteration cap.
type scriptedProvider struct {
	replies    []chat.Message
	repeatLast bool
	err        error
	usage      base.Usage

	requests [][]chat.Message
}

func (p *scriptedProvider) ID() string { return "fake/model" }

func (p *scriptedProvider) CreateChatCompletion(_ context.Context, messages []chat.Message, _ []tools.Tool) (*chat.Message, base.Usage, error) {
	p.requests = append(p.requests, messages)
	if p.err != nil {
		return nil, base.Usage{}, p.err
	}
	reply := p.replies[0]
	if len(p.replies) > 1 || !p.repeatLast {
		p.replies = p.replies[1:]
	}
	return &reply, p.usage, nil
}

// echoToolSet exposes a single "echo" tool that records its calls.
type echoToolSet struct {
	instructions string
	calls        []tools.ToolCall
	started      bool
	stopped      bool
}

func (f *echoToolSet) Instructions() string { return f.instructions }

func (f *echoToolSet) Tools(context.Context) ([]tools.Tool, error) {
	return []tools.Tool{{
		Name:        "echo",
		Description: "Echo the arguments back",
		Handler: func(_ context.Context, call tools.ToolCall) (*tools.ToolCallResult, error) {
			f.calls = append(f.calls, call)
			return tools.ResultSuccess("echo: " + call.Function.Arguments), nil
		},
	}}, nil
}

func (f *echoToolSet) Start(context.Context) error { f.started = true; return nil }
func (f *echoToolSet) Stop(context.Context) error  { f.stopped = true; return nil }

func assistantReply(content string) chat.Message {
	return chat.Message{Role: chat.MessageRoleAssistant, Content: content}
}

func toolCallReply(content string, calls ...tools.ToolCall) chat.Message {
	return chat.Message{Role: chat.MessageRoleAssistant, Content: content, ToolCalls: calls}
}

func collectEvents(ch <-chan Event) []Event {
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestRunStreamPlainAnswer(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{
		replies: []chat.Message{assistantReply("Hello! How can I help?")},
		usage:   base.Usage{InputTokens: 12, OutputTokens: 7},
	}
	rt := New(p, WithSystemPrompt("You are a terminal assistant."))

	sess := session.New()
	sess.AddMessage(chat.NewUserMessage("hi"))

	events := collectEvents(rt.RunStream(t.Context(), sess))

	require.Len(t, events, 2)
	msg, ok := events[0].(*AssistantMessageEvent)
	require.True(t, ok)
	assert.Equal(t, "Hello! How can I help?", msg.Content)
	stopped, ok := events[1].(*StreamStoppedEvent)
	require.True(t, ok)
	assert.Equal(t, sess.ID, stopped.SessionID)

	// Transcript gained the assistant reply; usage was accumulated.
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, chat.MessageRoleAssistant, sess.Messages[1].Role)
	assert.Equal(t, 12, sess.InputTokens)
	assert.Equal(t, 7, sess.OutputTokens)
}

func TestRunStreamToolRound(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{
		replies: []chat.Message{
			toolCallReply("",
				tools.ToolCall{ID: "call_1", Function: tools.FunctionCall{Name: "echo", Arguments: `{"a":1}`}},
				tools.ToolCall{ID: "call_2", Function: tools.FunctionCall{Name: "echo", Arguments: `{"b":2}`}},
			),
			assistantReply("Both done."),
		},
	}
	ts := &echoToolSet{}
	rt := New(p, WithToolSets(ts))

	sess := session.New()
	sess.AddMessage(chat.NewUserMessage("run both"))

	events := collectEvents(rt.RunStream(t.Context(), sess))

	// call, response, call, response, answer, stopped
	require.Len(t, events, 6)
	call1, ok := events[0].(*ToolCallEvent)
	require.True(t, ok)
	assert.Equal(t, "call_1", call1.ToolCall.ID)
	resp1, ok := events[1].(*ToolCallResponseEvent)
	require.True(t, ok)
	assert.Equal(t, "call_1", resp1.ToolCall.ID)
	assert.Equal(t, `echo: {"a":1}`, resp1.Response)
	assert.False(t, resp1.IsError)
	resp2, ok := events[3].(*ToolCallResponseEvent)
	require.True(t, ok)
	assert.Equal(t, "call_2", resp2.ToolCall.ID)

	answer, ok := events[4].(*AssistantMessageEvent)
	require.True(t, ok)
	assert.Equal(t, "Both done.", answer.Content)

	// Transcript stays OpenAI-shaped: user, assistant tool_calls, one tool
	// message per call, final assistant.
	require.Len(t, sess.Messages, 5)
	assert.True(t, sess.Messages[1].HasToolCalls())
	assert.Equal(t, "call_1", sess.Messages[2].ToolCallID)
	assert.Equal(t, "call_2", sess.Messages[3].ToolCallID)
	assert.Equal(t, "Both done.", sess.Messages[4].Content)

	require.Len(t, ts.calls, 2)
}

func TestRunStreamUnknownTool(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{
		replies: []chat.Message{
			toolCallReply("", tools.ToolCall{ID: "call_1", Function: tools.FunctionCall{Name: "nuke"}}),
			assistantReply("That tool does not exist."),
		},
	}
	rt := New(p, WithToolSets(&echoToolSet{}))

	sess := session.New()
	sess.AddMessage(chat.NewUserMessage("nuke it"))

	events := collectEvents(rt.RunStream(t.Context(), sess))

	resp, ok := events[1].(*ToolCallResponseEvent)
	require.True(t, ok)
	assert.True(t, resp.IsError)
	assert.Equal(t, "[ERROR] Unknown tool: nuke", resp.Response)

	// The error went back to the model as a tool message.
	assert.Equal(t, "[ERROR] Unknown tool: nuke", sess.Messages[2].Content)
	assert.True(t, sess.Messages[2].IsError)
}

func TestRunStreamGeneratesMissingCallIDs(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{
		replies: []chat.Message{
			toolCallReply("", tools.ToolCall{Function: tools.FunctionCall{Name: "echo", Arguments: `{}`}}),
			assistantReply("done"),
		},
	}
	rt := New(p, WithToolSets(&echoToolSet{}))

	sess := session.New()
	sess.AddMessage(chat.NewUserMessage("go"))

	collectEvents(rt.RunStream(t.Context(), sess))

	// The generated ID pairs the assistant call with its tool result.
	id := sess.Messages[1].ToolCalls[0].ID
	require.NotEmpty(t, id)
	assert.Equal(t, id, sess.Messages[2].ToolCallID)
}

func TestRunStreamMaxIterations(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{
		replies: []chat.Message{
			toolCallReply("", tools.ToolCall{ID: "call_1", Function: tools.FunctionCall{Name: "echo", Arguments: `{}`}}),
		},
		repeatLast: true,
	}
	ts := &echoToolSet{}
	rt := New(p, WithToolSets(ts))

	sess := session.New(session.WithMaxIterations(2))
	sess.AddMessage(chat.NewUserMessage("loop forever"))

	events := collectEvents(rt.RunStream(t.Context(), sess))

	last := events[len(events)-2]
	capped, ok := last.(*MaxIterationsReachedEvent)
	require.True(t, ok)
	assert.Equal(t, 2, capped.MaxIterations)
	assert.Len(t, ts.calls, 2)
}

func TestRunStreamProviderError(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{err: errors.New("connection refused")}
	rt := New(p)

	sess := session.New()
	sess.AddMessage(chat.NewUserMessage("hi"))

	events := collectEvents(rt.RunStream(t.Context(), sess))

	require.Len(t, events, 2)
	errEv, ok := events[0].(*ErrorEvent)
	require.True(t, ok)
	assert.Contains(t, errEv.Error, "connection refused")
	_, ok = events[1].(*StreamStoppedEvent)
	assert.True(t, ok)
}

func TestRunStreamAssistantCommentaryBeforeToolCalls(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{
		replies: []chat.Message{
			toolCallReply("Let me check.", tools.ToolCall{ID: "call_1", Function: tools.FunctionCall{Name: "echo", Arguments: `{}`}}),
			assistantReply("Checked."),
		},
	}
	rt := New(p, WithToolSets(&echoToolSet{}))

	sess := session.New()
	sess.AddMessage(chat.NewUserMessage("check"))

	events := collectEvents(rt.RunStream(t.Context(), sess))

	commentary, ok := events[0].(*AssistantMessageEvent)
	require.True(t, ok)
	assert.Equal(t, "Let me check.", commentary.Content)
	_, ok = events[1].(*ToolCallEvent)
	assert.True(t, ok)
}

func TestRunStreamSystemPromptComposition(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{replies: []chat.Message{assistantReply("ok")}}
	rt := New(p,
		WithSystemPrompt("You are a terminal assistant."),
		WithToolSets(&echoToolSet{instructions: "Workspace files live under /workdir."}),
	)

	sess := session.New()
	sess.AddMessage(chat.NewUserMessage("hi"))

	collectEvents(rt.RunStream(t.Context(), sess))

	require.Len(t, p.requests, 1)
	system := p.requests[0][0]
	assert.Equal(t, chat.MessageRoleSystem, system.Role)
	assert.Contains(t, system.Content, "You are a terminal assistant.")
	assert.Contains(t, system.Content, "Workspace files live under /workdir.")
}

func TestRunStreamAppliesUpdatedSystemPrompt(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{replies: []chat.Message{assistantReply("ok")}, repeatLast: true}
	rt := New(p, WithSystemPrompt("old prompt"))

	sess := session.New()
	sess.AddMessage(chat.NewUserMessage("hi"))
	collectEvents(rt.RunStream(t.Context(), sess))

	rt.SetSystemPrompt("new prompt")
	sess.AddMessage(chat.NewUserMessage("again"))
	collectEvents(rt.RunStream(t.Context(), sess))

	require.Len(t, p.requests, 2)
	assert.Equal(t, "old prompt", p.requests[0][0].Content)
	assert.Equal(t, "new prompt", p.requests[1][0].Content)
}

func TestStartStopToolSets(t *testing.T) {
	t.Parallel()

	ts := &echoToolSet{}
	rt := New(&scriptedProvider{}, WithToolSets(ts))

	require.NoError(t, rt.Start(t.Context()))
	assert.True(t, ts.started)
	require.NoError(t, rt.Stop(t.Context()))
	assert.True(t, ts.stopped)
}

func TestDispatchHandlerError(t *testing.T) {
	t.Parallel()

	toolList := []tools.Tool{{
		Name: "broken",
		Handler: func(context.Context, tools.ToolCall) (*tools.ToolCallResult, error) {
			return nil, errors.New("exploded")
		},
	}}

	result := Dispatch(t.Context(), toolList, tools.ToolCall{Function: tools.FunctionCall{Name: "broken"}})

	assert.True(t, result.IsError)
	assert.Equal(t, "[ERROR] exploded", result.Output)
}

func TestRunStreamCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	p := &scriptedProvider{replies: []chat.Message{assistantReply("never")}, repeatLast: true}
	rt := New(p)

	sess := session.New()
	sess.AddMessage(chat.NewUserMessage("hi"))

	// Drain; the stream must terminate despite the dead context.
	for range rt.RunStream(ctx, sess) {
	}
}
