package sandbox

import (
	"bytes"
	"cmp"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/ffrouin/tux-copilot/pkg/config"
)

//go:embed Dockerfile
var sandboxDockerfile string

// DefaultDockerfile returns the Dockerfile the sandbox image is built from.
func DefaultDockerfile() string {
	return sandboxDockerfile
}

// ImageExists reports whether the sandbox image is present locally.
func (e *DockerEngine) ImageExists(ctx context.Context) (bool, error) {
	image := cmp.Or(e.config.Image, config.DefaultImage)

	cmd := exec.CommandContext(ctx, "docker", "images", "-q", image)
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to query docker images: %w", err)
	}
	return strings.TrimSpace(string(output)) != "", nil
}

// EnsureImage makes sure the sandbox image exists, building it from the
// embedded Dockerfile when missing.
func (e *DockerEngine) EnsureImage(ctx context.Context) error {
	exists, err := e.ImageExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return e.BuildImage(ctx, false)
}

// BuildImage builds the sandbox image from the embedded Dockerfile.
// The Dockerfile is fed over stdin so no build context directory is needed.
// When noCache is set the build bypasses the layer cache.
func (e *DockerEngine) BuildImage(ctx context.Context, noCache bool) error {
	image := cmp.Or(e.config.Image, config.DefaultImage)
	slog.Info("building sandbox image", "image", image)

	uid, gid := e.imageUser()

	args := []string{"build", "-t", image}
	if noCache {
		args = append(args, "--no-cache")
	}
	args = append(args,
		"--build-arg", fmt.Sprintf("USER_UID=%d", uid),
		"--build-arg", fmt.Sprintf("USER_GID=%d", gid),
	)
	if e.config.Sudo {
		args = append(args, "--build-arg", "SUDO=true")
	}
	args = append(args, "-")

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stdin = strings.NewReader(sandboxDockerfile)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to build sandbox image %s: %w\nstderr: %s", image, err, stderr.String())
	}

	slog.Info("sandbox image built", "image", image)
	return nil
}

// imageUser resolves the UID/GID the image is built for. An explicit
// user spec in the config wins; otherwise the current process's IDs are
// used so a bind-mounted workdir keeps host ownership.
func (e *DockerEngine) imageUser() (uid, gid int) {
	if e.config.User != "" {
		if u, g, err := config.ParseUserSpec(e.config.User); err == nil {
			return u, g
		}
	}
	return os.Getuid(), os.Getgid()
}
