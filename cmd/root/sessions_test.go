package root

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffrouin/tux-copilot/pkg/chat"
	"github.com/ffrouin/tux-copilot/pkg/session"
	"github.com/ffrouin/tux-copilot/pkg/tools"
)

func newStoreWithSession(t *testing.T) (string, *session.Session) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := session.NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	sess := session.New(session.WithTitle("fix the build"))
	sess.AddMessage(chat.NewUserMessage("fix the build"))
	sess.AddMessage(chat.NewAssistantMessage("Done."))
	require.NoError(t, store.AddSession(t.Context(), sess))

	return path, sess
}

func runSessionsCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"sessions"}, args...))
	err := cmd.ExecuteContext(t.Context())
	return buf.String(), err
}

func TestSessionsList(t *testing.T) {
	path, sess := newStoreWithSession(t)

	out, err := runSessionsCmd(t, "list", "--store", path)
	require.NoError(t, err)

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, sess.ID)
	assert.Contains(t, out, "fix the build")
}

func TestSessionsShow(t *testing.T) {
	path, sess := newStoreWithSession(t)

	out, err := runSessionsCmd(t, "show", sess.ID, "--store", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Session "+sess.ID)
	assert.Contains(t, out, "You> fix the build")
	assert.Contains(t, out, "Tux> Done.")
}

func TestSessionsShowUnknownID(t *testing.T) {
	path, _ := newStoreWithSession(t)

	_, err := runSessionsCmd(t, "show", "no-such-session", "--store", path)
	require.Error(t, err)
}

func TestSessionsDelete(t *testing.T) {
	path, sess := newStoreWithSession(t)

	out, err := runSessionsCmd(t, "delete", sess.ID, "--store", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted session "+sess.ID)

	out, err = runSessionsCmd(t, "list", "--store", path)
	require.NoError(t, err)
	assert.NotContains(t, out, sess.ID)
}

func TestOpenStoreUnconfigured(t *testing.T) {
	flags := sessionsFlags{root: &rootFlags{}}
	_, err := flags.openStore(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no session store configured")
}

func TestFormatCreatedAt(t *testing.T) {
	t.Parallel()

	recent := formatCreatedAt(time.Now().Add(-10 * time.Minute))
	assert.Contains(t, recent, "ago")

	old := formatCreatedAt(time.Date(2024, 3, 9, 14, 30, 0, 0, time.Local))
	assert.Equal(t, "Mar 9, 2024 14:30", old)
}

func TestPrintTranscriptMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	printTranscriptMessage(&buf, chat.NewUserMessage("hello"))
	msg := chat.NewAssistantMessage("working on it")
	msg.ToolCalls = []tools.ToolCall{{
		ID:       "call_1",
		Function: tools.FunctionCall{Name: "exec_script", Arguments: `{"path":"run.sh"}`},
	}}
	printTranscriptMessage(&buf, msg)
	printTranscriptMessage(&buf, chat.NewToolMessage("call_1", "line one\nline two"))

	out := buf.String()
	assert.Contains(t, out, "You> hello")
	assert.Contains(t, out, "Tux> working on it")
	assert.Contains(t, out, "[tool call] exec_script({\"path\":\"run.sh\"})")
	assert.Contains(t, out, "[tool result] line one ...")
	assert.NotContains(t, out, "line two")
}
