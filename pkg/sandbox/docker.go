package sandbox

import (
	"bytes"
	"cmp"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ffrouin/tux-copilot/pkg/config"
	"github.com/ffrouin/tux-copilot/pkg/tools"
)

const (
	// sandboxLabelKey is the label used to identify tux-copilot sandbox containers.
	sandboxLabelKey = "com.ffrouin.tux-copilot.sandbox"
	// sandboxLabelPID stores the PID of the tux-copilot process that created the container.
	sandboxLabelPID = "com.ffrouin.tux-copilot.sandbox.pid"
)

// DockerEngine runs the sandbox in a Docker container driven through the
// docker CLI. The container is started lazily on first use and removes
// itself on stop.
type DockerEngine struct {
	config      *config.SandboxConfig
	containerID string
	mu          sync.Mutex
}

// Verify interface compliance.
var _ Runtime = (*DockerEngine)(nil)

// NewDockerEngine creates a Docker sandbox engine.
// It cleans up any orphaned containers from previous tux-copilot runs.
func NewDockerEngine(cfg *config.SandboxConfig) *DockerEngine {
	cleanupOrphanedSandboxContainers()

	return &DockerEngine{config: cfg}
}

// cleanupOrphanedSandboxContainers removes sandbox containers from previous
// tux-copilot processes that are no longer running. This handles cases where
// the process was killed or crashed before teardown.
func cleanupOrphanedSandboxContainers() {
	cmd := exec.Command("docker", "ps", "-q", "--filter", "label="+sandboxLabelKey)
	output, err := cmd.Output()
	if err != nil {
		return // Docker not available or no containers
	}

	containerIDs := strings.Fields(string(output))
	currentPID := os.Getpid()

	for _, containerID := range containerIDs {
		pid := getContainerOwnerPID(containerID)
		if pid == 0 || pid == currentPID || isProcessRunning(pid) {
			continue
		}

		slog.Debug("Cleaning up orphaned sandbox container", "container", containerID, "pid", pid)
		stopCmd := exec.Command("docker", "stop", "-t", "1", containerID)
		_ = stopCmd.Run()
	}
}

// getContainerOwnerPID returns the PID that created the container, or 0 if unknown.
func getContainerOwnerPID(containerID string) int {
	cmd := exec.Command("docker", "inspect", "-f",
		"{{index .Config.Labels \""+sandboxLabelPID+"\"}}", containerID)
	output, err := cmd.Output()
	if err != nil {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(output)))
	return pid
}

// isProcessRunning checks if a process with the given PID is still running.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds, so we need to send signal 0
	// to check if the process actually exists
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// Exec runs argv inside the sandbox container at /workdir.
func (e *DockerEngine) Exec(execCtx, ctx context.Context, argv []string, timeout time.Duration) *tools.ToolCallResult {
	containerID, err := e.ensureContainer(ctx)
	if err != nil {
		return tools.ResultError(fmt.Sprintf("Failed to start sandbox container: %s", err))
	}

	args := []string{"exec", "-w", ContainerWorkdir}
	args = append(args, e.buildEnvVars()...)
	args = append(args, containerID)
	args = append(args, argv...)

	cmd := exec.CommandContext(execCtx, "docker", args...)
	var outBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &outBuf

	err = cmd.Run()

	output := FormatCommandOutput(execCtx, ctx, err, outBuf.String(), timeout)
	return tools.ResultSuccess(LimitOutput(output))
}

// CopyTo copies a host file into the sandbox container.
func (e *DockerEngine) CopyTo(ctx context.Context, hostPath, containerPath string) error {
	containerID, err := e.ensureContainer(ctx)
	if err != nil {
		return fmt.Errorf("failed to start sandbox container: %w", err)
	}

	cmd := exec.CommandContext(ctx, "docker", "cp", hostPath, containerID+":"+containerPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to copy %s into sandbox: %w\nstderr: %s", hostPath, err, stderr.String())
	}
	return nil
}

// Start ensures the sandbox image exists, building it when missing.
// The container itself is started lazily on first use.
func (e *DockerEngine) Start(ctx context.Context) error {
	return e.EnsureImage(ctx)
}

// Stop stops the sandbox container. The container removes itself via --rm.
func (e *DockerEngine) Stop(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.containerID == "" {
		return nil
	}

	stopCmd := exec.Command("docker", "stop", "-t", "1", e.containerID)
	_ = stopCmd.Run()

	e.containerID = ""
	return nil
}

// ensureContainer ensures the sandbox container is running, starting it if necessary.
func (e *DockerEngine) ensureContainer(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.containerID != "" && e.isContainerRunning(ctx) {
		return e.containerID, nil
	}
	e.containerID = ""

	return e.startContainer(ctx)
}

func (e *DockerEngine) isContainerRunning(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "docker", "container", "inspect", "-f", "{{.State.Running}}", e.containerID)
	output, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(output)) == "true"
}

func (e *DockerEngine) startContainer(ctx context.Context) (string, error) {
	containerName := e.generateContainerName()
	image := cmp.Or(e.config.Image, config.DefaultImage)

	args := []string{
		"run", "-d",
		"--name", containerName,
		"--rm", "--init",
		"--label", sandboxLabelKey + "=true",
		"--label", fmt.Sprintf("%s=%d", sandboxLabelPID, os.Getpid()),
	}
	mounts, err := e.buildVolumeMounts()
	if err != nil {
		return "", err
	}
	args = append(args, mounts...)
	args = append(args, e.buildEnvVars()...)
	args = append(args, "-w", ContainerWorkdir, image, "tail", "-f", "/dev/null")

	cmd := exec.CommandContext(ctx, "docker", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to start sandbox container: %w\nstderr: %s", err, stderr.String())
	}

	e.containerID = strings.TrimSpace(string(output))
	slog.Debug("started sandbox container", "container", containerName, "id", e.containerID, "image", image)
	return e.containerID, nil
}

func (e *DockerEngine) generateContainerName() string {
	randomBytes := make([]byte, 4)
	_, _ = rand.Read(randomBytes)
	return fmt.Sprintf("tux-copilot-%s", hex.EncodeToString(randomBytes))
}

// buildVolumeMounts assembles the -v flags for the container: the session
// workdir at /workdir when mounting is enabled, plus any extra paths.
func (e *DockerEngine) buildVolumeMounts() ([]string, error) {
	var args []string

	if e.config.MountEnabled() {
		hostWorkdir, err := filepath.Abs(e.config.Workdir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sandbox workdir: %w", err)
		}
		if err := os.MkdirAll(hostWorkdir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sandbox workdir: %w", err)
		}
		args = append(args, "-v", hostWorkdir+":"+ContainerWorkdir+":rw")
	}

	for _, pathSpec := range e.config.Paths {
		hostPath, mode := ParseSandboxPath(pathSpec)

		hostPath, err := filepath.Abs(hostPath)
		if err != nil {
			// Skip invalid paths
			continue
		}
		hostPath = filepath.Clean(hostPath)

		// Container path mirrors host path for simplicity
		mountSpec := fmt.Sprintf("%s:%s:%s", hostPath, hostPath, mode)
		args = append(args, "-v", mountSpec)
	}
	return args, nil
}

// buildEnvVars creates Docker -e flags for the configured sandbox
// environment. Entries are either KEY=VALUE pairs or bare KEY names whose
// values docker resolves from the host environment. Nothing is forwarded
// unless the config names it. Only variables with valid POSIX names pass.
func (e *DockerEngine) buildEnvVars() []string {
	var args []string
	for _, envVar := range e.config.Env {
		key := envVar
		if idx := strings.Index(envVar, "="); idx > 0 {
			key = envVar[:idx]
		}
		if IsValidEnvVarName(key) {
			args = append(args, "-e", envVar)
		}
	}
	return args
}

// IsValidEnvVarName checks if an environment variable name is valid for POSIX.
// Valid names start with a letter or underscore and contain only alphanumerics and underscores.
func IsValidEnvVarName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		isValid := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || (i > 0 && c >= '0' && c <= '9')
		if !isValid {
			return false
		}
	}
	return true
}

// ParseSandboxPath parses a path specification like "./path" or "/path:ro" into path and mode.
func ParseSandboxPath(pathSpec string) (path, mode string) {
	mode = "rw" // Default to read-write

	switch {
	case strings.HasSuffix(pathSpec, ":ro"):
		path = strings.TrimSuffix(pathSpec, ":ro")
		mode = "ro"
	case strings.HasSuffix(pathSpec, ":rw"):
		path = strings.TrimSuffix(pathSpec, ":rw")
		mode = "rw"
	default:
		path = pathSpec
	}

	return path, mode
}

// FormatCommandOutput formats command output handling timeout, cancellation, and errors.
func FormatCommandOutput(execCtx, ctx context.Context, err error, rawOutput string, timeout time.Duration) string {
	var output string
	if execCtx.Err() != nil {
		if ctx.Err() != nil {
			output = "Command cancelled"
		} else {
			output = fmt.Sprintf("Command timed out after %v\nOutput: %s", timeout, rawOutput)
		}
	} else {
		output = rawOutput
		if err != nil {
			output = fmt.Sprintf("Error executing command: %s\nOutput: %s", err, output)
		}
	}
	return cmp.Or(strings.TrimSpace(output), "<no output>")
}

// LimitOutput truncates output to a maximum size.
func LimitOutput(output string) string {
	const maxOutputSize = 30000
	if len(output) > maxOutputSize {
		return output[:maxOutputSize] + "\n\n[Output truncated: exceeded 30,000 character limit]"
	}
	return output
}
