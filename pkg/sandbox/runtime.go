package sandbox

import (
	"context"
	"time"

	"github.com/ffrouin/tux-copilot/pkg/tools"
)

// ContainerWorkdir is the fixed workspace path inside the sandbox container.
// Every tool path the model supplies is resolved relative to it.
const ContainerWorkdir = "/workdir"

// Runtime is a pluggable interface for sandbox execution backends.
// Implementations run commands and move files in an isolated environment
// (Docker containers today, other engines later).
type Runtime interface {
	// Exec runs argv inside the sandbox workspace and returns the result.
	// The execCtx carries the command timeout; ctx is the parent context.
	// timeout is the original duration for formatting timeout messages.
	Exec(execCtx, ctx context.Context, argv []string, timeout time.Duration) *tools.ToolCallResult

	// CopyTo copies a host file into the sandbox at containerPath.
	CopyTo(ctx context.Context, hostPath, containerPath string) error

	// Start prepares the backend (e.g. ensure the image exists).
	Start(ctx context.Context) error
	// Stop tears the sandbox down. It must always be safe to call,
	// including when nothing was ever started.
	Stop(ctx context.Context) error
}
