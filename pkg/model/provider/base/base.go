// Package base carries the state shared by every model client.
package base

import (
	"github.com/ffrouin/tux-copilot/pkg/config"
	"github.com/ffrouin/tux-copilot/pkg/environment"
)

// Usage reports the token counts of one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Config is embedded by every client: the resolved model configuration and
// the environment used to look up credentials.
type Config struct {
	ModelConfig config.ModelConfig
	Env         environment.Provider
}

// ID identifies the provider/model pair, e.g. "openai/gpt-oss-20b".
func (c *Config) ID() string {
	return c.ModelConfig.Provider + "/" + c.ModelConfig.Model
}
