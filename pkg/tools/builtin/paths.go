package builtin

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/ffrouin/tux-copilot/pkg/sandbox"
)

// resolveWithinRoot joins a model-supplied relative path onto the host
// workspace root and rejects anything that would escape it. Absolute paths
// are refused outright; "no host access" is the whole point of the sandbox.
func resolveWithinRoot(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path must not be empty")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path must be relative to the workspace: %s", rel)
	}

	full := filepath.Join(root, rel)

	relToRoot, err := filepath.Rel(root, full)
	if err != nil || relToRoot == ".." || strings.HasPrefix(relToRoot, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the workspace: %s", rel)
	}
	return full, nil
}

// containerPath resolves a model-supplied relative path against the fixed
// container workspace, with the same escape rules as resolveWithinRoot.
// Container paths always use forward slashes.
func containerPath(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path must not be empty")
	}
	if strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("path must be relative to the workspace: %s", rel)
	}

	clean := path.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path escapes the workspace: %s", rel)
	}
	return path.Join(sandbox.ContainerWorkdir, clean), nil
}

// shQuote single-quotes s for safe interpolation into a /bin/sh command line.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
