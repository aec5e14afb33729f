package builtin

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/ffrouin/tux-copilot/pkg/config"
	"github.com/ffrouin/tux-copilot/pkg/sandbox"
	"github.com/ffrouin/tux-copilot/pkg/tools"
)

const (
	ToolNameWriteFile = "write_file"
	ToolNameReadFile  = "read_file"
)

// WorkspaceTool exposes file creation and reading inside the session
// workspace. With the host workdir bind-mounted it works on the host side of
// the mount; without a mount it stages files through the sandbox engine.
type WorkspaceTool struct {
	handler *workspaceHandler
}

var _ tools.ToolSet = (*WorkspaceTool)(nil)
var _ tools.Startable = (*WorkspaceTool)(nil)

type workspaceHandler struct {
	config *config.SandboxConfig
	engine sandbox.Runtime
}

type WriteFileArgs struct {
	Path     string `json:"path" jsonschema:"Path of the file to create, relative to the workspace root,required"`
	Contents string `json:"contents" jsonschema:"Full contents of the file,required"`
}

type ReadFileArgs struct {
	Path string `json:"path" jsonschema:"Path of the file to read, relative to the workspace root,required"`
}

// NewWorkspaceTool creates the workspace file toolset.
func NewWorkspaceTool(cfg *config.SandboxConfig, engine sandbox.Runtime) *WorkspaceTool {
	return &WorkspaceTool{
		handler: &workspaceHandler{
			config: cfg,
			engine: engine,
		},
	}
}

func (t *WorkspaceTool) Instructions() string {
	var b strings.Builder
	b.WriteString("## Workspace Files\n\n")
	b.WriteString("All file paths are relative to the workspace root (" + sandbox.ContainerWorkdir + " inside the sandbox).\n")
	if t.handler.config.OverwriteRefused() {
		b.WriteString("write_file refuses to overwrite an existing file; pick a new name instead.\n")
	}
	return b.String()
}

func (t *WorkspaceTool) Tools(context.Context) ([]tools.Tool, error) {
	return []tools.Tool{
		{
			Name:        ToolNameWriteFile,
			Category:    "workspace",
			Description: "Write a file to the sandbox workspace. Provide path and contents.",
			Parameters:  tools.MustSchemaFor[WriteFileArgs](),
			Handler:     tools.NewHandler(t.handler.writeFile),
			Annotations: tools.ToolAnnotations{Title: "Write File"},
		},
		{
			Name:        ToolNameReadFile,
			Category:    "workspace",
			Description: "Read the contents of a file inside the sandbox workspace. Provide path.",
			Parameters:  tools.MustSchemaFor[ReadFileArgs](),
			Handler:     tools.NewHandler(t.handler.readFile),
			Annotations: tools.ToolAnnotations{Title: "Read File", ReadOnlyHint: true},
		},
	}, nil
}

// Start prepares the sandbox engine so mountless file staging can reach the
// container.
func (t *WorkspaceTool) Start(ctx context.Context) error {
	return t.handler.engine.Start(ctx)
}

// Stop tears the sandbox engine down.
func (t *WorkspaceTool) Stop(ctx context.Context) error {
	return t.handler.engine.Stop(ctx)
}

func (h *workspaceHandler) writeFile(ctx context.Context, params WriteFileArgs) (*tools.ToolCallResult, error) {
	if h.config.MountEnabled() {
		return h.writeHostFile(params)
	}
	return h.writeSandboxFile(ctx, params)
}

// writeHostFile writes through the bind mount on the host side.
func (h *workspaceHandler) writeHostFile(params WriteFileArgs) (*tools.ToolCallResult, error) {
	root, err := filepath.Abs(h.config.Workdir)
	if err != nil {
		return tools.ResultError(fmt.Sprintf("[ERROR] Failed to resolve workspace: %s", err)), nil
	}

	full, err := resolveWithinRoot(root, params.Path)
	if err != nil {
		return tools.ResultError(err.Error()), nil
	}

	if h.config.OverwriteRefused() {
		if _, err := os.Stat(full); err == nil {
			return tools.ResultError(fmt.Sprintf("❌ REFUSED: File already exists: %s", full)), nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return tools.ResultError(fmt.Sprintf("[ERROR] Failed to create directory: %s", err)), nil
	}
	if err := atomic.WriteFile(full, strings.NewReader(params.Contents)); err != nil {
		return tools.ResultError(fmt.Sprintf("[ERROR] Failed to write file: %s", err)), nil
	}

	return tools.ResultSuccess(fmt.Sprintf("✅ File created: %s", full)), nil
}

// writeSandboxFile stages the contents in a temp file and copies it into the
// container. A single probe exec creates the parent directory and checks the
// overwrite policy in one round trip.
func (h *workspaceHandler) writeSandboxFile(ctx context.Context, params WriteFileArgs) (*tools.ToolCallResult, error) {
	dst, err := containerPath(params.Path)
	if err != nil {
		return tools.ResultError(err.Error()), nil
	}

	probe := fmt.Sprintf("mkdir -p %s && if [ -e %s ]; then echo EXISTS; else echo READY; fi",
		shQuote(path.Dir(dst)), shQuote(dst))

	timeout := h.config.ExecTimeout.Std()
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := h.engine.Exec(execCtx, ctx, []string{"/bin/sh", "-c", probe}, timeout)
	switch {
	case res.IsError:
		return res, nil
	case strings.Contains(res.Output, "EXISTS"):
		if h.config.OverwriteRefused() {
			return tools.ResultError(fmt.Sprintf("❌ REFUSED: File already exists: %s", dst)), nil
		}
	case !strings.Contains(res.Output, "READY"):
		return tools.ResultError(fmt.Sprintf("[ERROR] Failed to prepare workspace path: %s", res.Output)), nil
	}

	tmp, err := os.CreateTemp("", "tux-copilot-*")
	if err != nil {
		return tools.ResultError(fmt.Sprintf("[ERROR] Failed to stage file: %s", err)), nil
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(params.Contents); err != nil {
		tmp.Close()
		return tools.ResultError(fmt.Sprintf("[ERROR] Failed to stage file: %s", err)), nil
	}
	if err := tmp.Close(); err != nil {
		return tools.ResultError(fmt.Sprintf("[ERROR] Failed to stage file: %s", err)), nil
	}

	if err := h.engine.CopyTo(ctx, tmp.Name(), dst); err != nil {
		return tools.ResultError(fmt.Sprintf("[ERROR] Failed to write file: %s", err)), nil
	}

	return tools.ResultSuccess(fmt.Sprintf("✅ File created: %s", dst)), nil
}

func (h *workspaceHandler) readFile(ctx context.Context, params ReadFileArgs) (*tools.ToolCallResult, error) {
	if h.config.MountEnabled() {
		return h.readHostFile(params)
	}
	return h.readSandboxFile(ctx, params)
}

func (h *workspaceHandler) readHostFile(params ReadFileArgs) (*tools.ToolCallResult, error) {
	root, err := filepath.Abs(h.config.Workdir)
	if err != nil {
		return tools.ResultError(fmt.Sprintf("[ERROR] Failed to resolve workspace: %s", err)), nil
	}

	full, err := resolveWithinRoot(root, params.Path)
	if err != nil {
		return tools.ResultError(err.Error()), nil
	}

	contents, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return tools.ResultError(fmt.Sprintf("❌ File not found: %s", full)), nil
		}
		return tools.ResultError(fmt.Sprintf("[ERROR] Failed to read file: %s", err)), nil
	}

	return tools.ResultSuccess(sandbox.LimitOutput(string(contents))), nil
}

func (h *workspaceHandler) readSandboxFile(ctx context.Context, params ReadFileArgs) (*tools.ToolCallResult, error) {
	target, err := containerPath(params.Path)
	if err != nil {
		return tools.ResultError(err.Error()), nil
	}

	timeout := h.config.ExecTimeout.Std()
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return h.engine.Exec(execCtx, ctx, []string{"cat", target}, timeout), nil
}
