package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ffrouin/tux-copilot/pkg/config"
	"github.com/ffrouin/tux-copilot/pkg/sandbox"
	"github.com/ffrouin/tux-copilot/pkg/tools"
)

const (
	ToolNameExecScript = "exec_script"
	ToolNameChmodX     = "chmod_x"
)

// ExecTool runs workspace scripts inside the sandbox container. Execution
// never happens on the host, whatever the mount mode.
type ExecTool struct {
	tools.BaseToolSet
	handler *execHandler
}

var _ tools.ToolSet = (*ExecTool)(nil)
var _ tools.Startable = (*ExecTool)(nil)

type execHandler struct {
	config *config.SandboxConfig
	engine sandbox.Runtime
}

type ExecScriptArgs struct {
	Path string `json:"path" jsonschema:"Path of the script to execute, relative to the workspace root,required"`
}

type ChmodXArgs struct {
	Path string `json:"path" jsonschema:"Path of the file to make executable, relative to the workspace root,required"`
}

// NewExecTool creates the script execution toolset.
func NewExecTool(cfg *config.SandboxConfig, engine sandbox.Runtime) *ExecTool {
	return &ExecTool{
		handler: &execHandler{
			config: cfg,
			engine: engine,
		},
	}
}

func (t *ExecTool) Tools(context.Context) ([]tools.Tool, error) {
	return []tools.Tool{
		{
			Name:        ToolNameExecScript,
			Category:    "exec",
			Description: "Execute a script inside the sandbox container.",
			Parameters:  tools.MustSchemaFor[ExecScriptArgs](),
			Handler:     tools.NewHandler(t.handler.execScript),
			Annotations: tools.ToolAnnotations{Title: "Execute Script"},
		},
		{
			Name:        ToolNameChmodX,
			Category:    "exec",
			Description: "Apply chmod +x to a file inside the sandbox workspace.",
			Parameters:  tools.MustSchemaFor[ChmodXArgs](),
			Handler:     tools.NewHandler(t.handler.chmodX),
			Annotations: tools.ToolAnnotations{Title: "Make Executable"},
		},
	}, nil
}

// Start prepares the sandbox engine (image build happens here when needed).
func (t *ExecTool) Start(ctx context.Context) error {
	return t.handler.engine.Start(ctx)
}

// Stop tears the sandbox engine down.
func (t *ExecTool) Stop(ctx context.Context) error {
	return t.handler.engine.Stop(ctx)
}

// execScript runs the script at the workspace-relative path inside the
// container, bounded by the configured timeout.
func (h *execHandler) execScript(ctx context.Context, params ExecScriptArgs) (*tools.ToolCallResult, error) {
	scriptPath, err := containerPath(params.Path)
	if err != nil {
		return tools.ResultError(err.Error()), nil
	}

	timeout := h.config.ExecTimeout.Std()
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return h.engine.Exec(execCtx, ctx, []string{scriptPath}, timeout), nil
}

// chmodX sets the execute bits. With a bind mount the change is applied on
// the host side so ownership stays with the host user; without one it runs
// inside the container.
func (h *execHandler) chmodX(ctx context.Context, params ChmodXArgs) (*tools.ToolCallResult, error) {
	if h.config.MountEnabled() {
		return h.chmodHost(params)
	}
	return h.chmodSandbox(ctx, params)
}

func (h *execHandler) chmodHost(params ChmodXArgs) (*tools.ToolCallResult, error) {
	root, err := filepath.Abs(h.config.Workdir)
	if err != nil {
		return tools.ResultError(fmt.Sprintf("[ERROR] Failed to resolve workspace: %s", err)), nil
	}

	full, err := resolveWithinRoot(root, params.Path)
	if err != nil {
		return tools.ResultError(err.Error()), nil
	}

	info, err := os.Stat(full)
	if err != nil {
		return tools.ResultError(fmt.Sprintf("[ERROR] File not found: %s", full)), nil
	}
	if err := os.Chmod(full, info.Mode()|0o111); err != nil {
		return tools.ResultError(fmt.Sprintf("[ERROR] Failed to chmod file: %s", err)), nil
	}

	return tools.ResultSuccess(fmt.Sprintf("✅ chmod +x applied to %s", full)), nil
}

func (h *execHandler) chmodSandbox(ctx context.Context, params ChmodXArgs) (*tools.ToolCallResult, error) {
	target, err := containerPath(params.Path)
	if err != nil {
		return tools.ResultError(err.Error()), nil
	}

	timeout := h.config.ExecTimeout.Std()
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := h.engine.Exec(execCtx, ctx, []string{"chmod", "+x", target}, timeout)
	if res.IsError || strings.Contains(res.Output, "Error executing command") {
		return tools.ResultError(res.Output), nil
	}
	return tools.ResultSuccess(fmt.Sprintf("✅ chmod +x applied to %s", target)), nil
}
