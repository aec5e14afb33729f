package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ffrouin/tux-copilot/pkg/chat"
	"github.com/ffrouin/tux-copilot/pkg/runtime"
	"github.com/ffrouin/tux-copilot/pkg/session"
)

// maxTitleRunes bounds session titles derived from the first user message.
const maxTitleRunes = 80

// exitWords end the interactive loop.
var exitWords = map[string]bool{"exit": true, "quit": true, "bye": true}

// RunInteractive reads user turns from in until EOF or an exit word. Each
// turn runs the full tool-call loop, printing events as they arrive. When a
// store is given, the session is persisted after every turn.
func RunInteractive(ctx context.Context, out *Printer, rt runtime.Runtime, sess *session.Session, store session.Store, in io.Reader) error {
	out.Welcome()

	scanner := bufio.NewScanner(in)
	for ctx.Err() == nil {
		out.Prompt()
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitWords[strings.ToLower(line)] {
			break
		}

		runTurn(ctx, out, rt, sess, line, false)
		persistSession(ctx, store, sess)
	}

	out.Goodbye()
	return scanner.Err()
}

// RunOnce runs a single message and prints only the final answer, keeping
// stdout clean for piping. It returns an error when the turn failed or hit
// the iteration cap without an answer.
func RunOnce(ctx context.Context, out *Printer, rt runtime.Runtime, sess *session.Session, store session.Store, message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("message cannot be empty")
	}

	err := runTurn(ctx, out, rt, sess, message, true)
	persistSession(ctx, store, sess)
	return err
}

// runTurn sends one user message through the runtime. In quiet mode only the
// final answer is printed; otherwise every event renders as it arrives.
func runTurn(ctx context.Context, out *Printer, rt runtime.Runtime, sess *session.Session, message string, quiet bool) error {
	sess.AddMessage(chat.NewUserMessage(message))
	if sess.Title == "" {
		sess.Title = deriveTitle(message)
	}

	var turnErr error
	var finalAnswer string
	for ev := range rt.RunStream(ctx, sess) {
		switch e := ev.(type) {
		case *runtime.AssistantMessageEvent:
			if quiet {
				finalAnswer = e.Content
			} else {
				out.Assistant(e.Content)
			}
		case *runtime.ToolCallEvent:
			if !quiet {
				out.ToolCall(e.ToolCall)
			}
		case *runtime.ToolCallResponseEvent:
			if !quiet {
				out.ToolResult(e.ToolCall, e.Response, e.IsError)
			}
		case *runtime.ErrorEvent:
			turnErr = errors.New(e.Error)
			out.Error(turnErr)
		case *runtime.MaxIterationsReachedEvent:
			if quiet {
				turnErr = fmt.Errorf("stopped after %d tool iterations without a final answer", e.MaxIterations)
			} else {
				out.MaxIterations(e.MaxIterations)
			}
		}
	}

	if quiet && finalAnswer != "" {
		out.Plain(finalAnswer)
	}
	return turnErr
}

func persistSession(ctx context.Context, store session.Store, sess *session.Session) {
	if store == nil {
		return
	}
	err := store.UpdateSession(ctx, sess)
	if errors.Is(err, session.ErrNotFound) {
		err = store.AddSession(ctx, sess)
	}
	if err != nil {
		slog.Error("Failed to persist session", "session_id", sess.ID, "error", err)
	}
}

func deriveTitle(message string) string {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) > maxTitleRunes {
		return string(runes[:maxTitleRunes]) + "…"
	}
	return string(runes)
}
