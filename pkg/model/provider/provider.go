// Package provider constructs model clients from configuration. Every client
// speaks the same non-streaming contract: send the conversation plus the tool
// catalog, get back one assistant message that either answers or requests
// tool calls.
package provider

import (
	"context"
	"fmt"

	"github.com/ffrouin/tux-copilot/pkg/chat"
	"github.com/ffrouin/tux-copilot/pkg/config"
	"github.com/ffrouin/tux-copilot/pkg/environment"
	"github.com/ffrouin/tux-copilot/pkg/model/provider/anthropic"
	"github.com/ffrouin/tux-copilot/pkg/model/provider/base"
	"github.com/ffrouin/tux-copilot/pkg/model/provider/openai"
	"github.com/ffrouin/tux-copilot/pkg/tools"
)

// Usage reports the token counts of one completion.
type Usage = base.Usage

// Provider answers chat completions for one configured model.
type Provider interface {
	// ID identifies the provider/model pair, e.g. "openai/gpt-oss-20b".
	ID() string

	// CreateChatCompletion sends the conversation and tool catalog and
	// returns the assistant's reply with its token usage.
	CreateChatCompletion(ctx context.Context, messages []chat.Message, toolList []tools.Tool) (*chat.Message, Usage, error)
}

// New constructs the provider selected by cfg.Provider.
func New(ctx context.Context, cfg *config.ModelConfig, env environment.Provider) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(ctx, cfg, env)
	case "anthropic":
		return anthropic.NewClient(ctx, cfg, env)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
