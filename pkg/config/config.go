// Package config loads and validates the assistant configuration from YAML,
// applying defaults and TUX_COPILOT_* environment overrides.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default values mirror the shipped sandbox image and a local LM Studio
// endpoint, so the assistant runs without any configuration file.
const (
	DefaultProvider    = "openai"
	DefaultBaseURL     = "http://localhost:1234/v1"
	DefaultModel       = "openai/gpt-oss-20b"
	DefaultImage       = "tux-copilot:latest"
	DefaultWorkdir     = "./sandbox_workdir"
	DefaultExecTimeout = 60 * time.Second
	DefaultTimeout     = 300 * time.Second
	DefaultMaxLoops    = 20
)

// DefaultSystemPrompt is injected as the system message when the
// configuration does not override it.
const DefaultSystemPrompt = "You are Tux Copilot, a smart AI coding assistant. " +
	"You operate exclusively inside a sandboxed Docker container. " +
	"All user requests must be executed safely; never try to modify the docker host system. " +
	"Ask for clarification if any action might be destructive. " +
	"Don't output files the user asked you to read until they ask for it. " +
	"Use one shell command per action, do not try to do everything with one command line. " +
	"Provide clear, concise, and helpful responses."

// Config is the root configuration document.
type Config struct {
	Model         ModelConfig   `yaml:"model"`
	Sandbox       SandboxConfig `yaml:"sandbox"`
	Session       SessionConfig `yaml:"session"`
	SystemPrompt  string        `yaml:"system_prompt"`
	MaxIterations int           `yaml:"max_iterations"`

	// MaxHistory caps the number of conversation messages sent to the model.
	// Zero means unlimited.
	MaxHistory int `yaml:"max_history"`
}

// ModelConfig selects and tunes the model provider.
type ModelConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature float64  `yaml:"temperature"`
	TopP        float64  `yaml:"top_p"`
	Timeout     Duration `yaml:"timeout"`
}

// SandboxConfig describes the Docker sandbox: which image to run, what to
// mount, and the execution policies enforced on tool calls.
type SandboxConfig struct {
	Image   string `yaml:"image"`
	Workdir string `yaml:"workdir"`

	// Mount controls whether Workdir is bind-mounted at /workdir.
	// When disabled the workspace tools fall back to docker cp / exec.
	Mount *bool `yaml:"mount"`

	// Paths lists extra bind mounts as "host/path[:ro|:rw]".
	Paths []string `yaml:"paths"`

	// User is the uid[:gid] the image is built for.
	User string `yaml:"user"`

	// Sudo grants the sandbox user passwordless root inside the container.
	Sudo bool `yaml:"sudo"`

	// NoOverwrite refuses write_file calls that target an existing file.
	NoOverwrite *bool `yaml:"no_overwrite"`

	ExecTimeout Duration `yaml:"exec_timeout"`

	// Env lists environment variables forwarded into the container.
	Env []string `yaml:"env"`
}

// SessionConfig controls transcript persistence.
type SessionConfig struct {
	// Store is the SQLite database path; empty keeps sessions in memory.
	Store string `yaml:"store"`
}

// knownProviders are the model providers this build can construct.
var knownProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
}

// UnmarshalYAML validates the document while decoding.
func (c *Config) UnmarshalYAML(unmarshal func(any) error) error {
	type alias Config
	var tmp alias
	if err := unmarshal(&tmp); err != nil {
		return err
	}
	*c = Config(tmp)
	return c.validate()
}

func (c *Config) validate() error {
	if c.Model.Provider != "" && !knownProviders[c.Model.Provider] {
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Model.Timeout < 0 {
		return fmt.Errorf("model timeout must not be negative")
	}
	if c.Sandbox.ExecTimeout < 0 {
		return fmt.Errorf("sandbox exec_timeout must not be negative")
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative")
	}
	if c.Sandbox.User != "" {
		if _, _, err := ParseUserSpec(c.Sandbox.User); err != nil {
			return err
		}
	}
	return nil
}

// applyDefaults fills every unset field so callers never branch on zeroes.
func (c *Config) applyDefaults() {
	if c.Model.Provider == "" {
		c.Model.Provider = DefaultProvider
	}
	if c.Model.Model == "" {
		c.Model.Model = DefaultModel
	}
	if c.Model.BaseURL == "" && c.Model.Provider == DefaultProvider {
		c.Model.BaseURL = DefaultBaseURL
	}
	if c.Model.Timeout == 0 {
		c.Model.Timeout = Duration(DefaultTimeout)
	}
	if c.Sandbox.Image == "" {
		c.Sandbox.Image = DefaultImage
	}
	if c.Sandbox.Workdir == "" {
		c.Sandbox.Workdir = DefaultWorkdir
	}
	if c.Sandbox.Mount == nil {
		c.Sandbox.Mount = boolPtr(true)
	}
	if c.Sandbox.NoOverwrite == nil {
		c.Sandbox.NoOverwrite = boolPtr(true)
	}
	if c.Sandbox.ExecTimeout == 0 {
		c.Sandbox.ExecTimeout = Duration(DefaultExecTimeout)
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxLoops
	}
}

// MountEnabled reports whether the host workdir is bind-mounted.
func (s *SandboxConfig) MountEnabled() bool {
	return s.Mount == nil || *s.Mount
}

// OverwriteRefused reports whether write_file must refuse existing targets.
func (s *SandboxConfig) OverwriteRefused() bool {
	return s.NoOverwrite == nil || *s.NoOverwrite
}

// ParseUserSpec splits a "uid[:gid]" spec into its numeric parts.
// A missing gid defaults to the uid.
func ParseUserSpec(spec string) (uid, gid int, err error) {
	uidStr, gidStr, found := strings.Cut(spec, ":")
	if !found {
		gidStr = uidStr
	}
	uid, err = strconv.Atoi(uidStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid uid in user spec %q", spec)
	}
	gid, err = strconv.Atoi(gidStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid gid in user spec %q", spec)
	}
	return uid, gid, nil
}

func boolPtr(b bool) *bool {
	return &b
}
