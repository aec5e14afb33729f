package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ffrouin/tux-copilot/pkg/environment"
)

// Environment variables honored on top of the YAML document.
// All use the TUX_COPILOT_ prefix carried over from earlier releases.
const (
	EnvProvider       = "TUX_COPILOT_PROVIDER"
	EnvModel          = "TUX_COPILOT_MODEL"
	EnvBaseURL        = "TUX_COPILOT_BASE_URL"
	EnvLegacyBaseURL  = "TUX_COPILOT_LMSTUDIO_URL"
	EnvImage          = "TUX_COPILOT_IMAGE"
	EnvSandboxWorkdir = "TUX_COPILOT_SANDBOX_WORKDIR"
	EnvTimeoutRead    = "TUX_COPILOT_TIMEOUT_READ"
	EnvDebug          = "TUX_COPILOT_DEBUG"
)

// Load reads and validates a configuration file, then applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault loads path when given, otherwise starts from the built-in
// defaults. Environment overrides are applied in both cases.
func LoadOrDefault(ctx context.Context, path string, env environment.Provider) (*Config, error) {
	var cfg *Config
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = &Config{}
		cfg.applyDefaults()
	}

	if err := applyEnv(ctx, cfg, env); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides individual fields from TUX_COPILOT_* variables.
// Environment wins over the file, matching the earlier env-only releases.
func applyEnv(ctx context.Context, cfg *Config, env environment.Provider) error {
	if env == nil {
		return nil
	}

	if v, ok := env.Get(ctx, EnvProvider); ok {
		if !knownProviders[v] {
			return fmt.Errorf("unknown model provider %q in %s", v, EnvProvider)
		}
		cfg.Model.Provider = v
	}
	if v, ok := env.Get(ctx, EnvModel); ok {
		cfg.Model.Model = v
	}
	if v, ok := env.Get(ctx, EnvLegacyBaseURL); ok {
		cfg.Model.BaseURL = v
	}
	if v, ok := env.Get(ctx, EnvBaseURL); ok {
		cfg.Model.BaseURL = v
	}
	if v, ok := env.Get(ctx, EnvImage); ok {
		cfg.Sandbox.Image = v
	}
	if v, ok := env.Get(ctx, EnvSandboxWorkdir); ok {
		cfg.Sandbox.Workdir = v
	}
	if v, ok := env.Get(ctx, EnvTimeoutRead); ok {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs < 0 {
			return fmt.Errorf("invalid %s value %q", EnvTimeoutRead, v)
		}
		cfg.Model.Timeout = Duration(time.Duration(secs * float64(time.Second)))
	}

	return nil
}
