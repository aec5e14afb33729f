// Package openai implements the model client for OpenAI-compatible chat
// completion endpoints, including local servers such as LM Studio.
package openai

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/ffrouin/tux-copilot/pkg/chat"
	"github.com/ffrouin/tux-copilot/pkg/config"
	"github.com/ffrouin/tux-copilot/pkg/environment"
	"github.com/ffrouin/tux-copilot/pkg/model/provider/base"
	"github.com/ffrouin/tux-copilot/pkg/tools"
)

// Client wraps an OpenAI-compatible chat completions endpoint.
type Client struct {
	base.Config
	client *openai.Client
}

// NewClient creates a client for cfg's endpoint. The API key is read from
// cfg.APIKeyEnv, then OPENAI_API_KEY; local servers ignore the key, so a
// placeholder is used when neither is set.
func NewClient(ctx context.Context, cfg *config.ModelConfig, env environment.Provider) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("model config is required")
	}
	if env == nil {
		return nil, errors.New("environment provider is required")
	}

	var apiKey string
	if cfg.APIKeyEnv != "" {
		apiKey, _ = env.Get(ctx, cfg.APIKeyEnv)
	}
	if apiKey == "" {
		apiKey, _ = env.Get(ctx, "OPENAI_API_KEY")
	}

	oc := openai.DefaultConfig(cmp.Or(apiKey, "lm-studio"))
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if timeout := cfg.Timeout.Std(); timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: timeout}
	}

	slog.Debug("Creating OpenAI-compatible client", "model", cfg.Model, "base_url", oc.BaseURL)

	return &Client{
		Config: base.Config{ModelConfig: *cfg, Env: env},
		client: openai.NewClientWithConfig(oc),
	}, nil
}

// CreateChatCompletion sends one completion request and returns the
// assistant's reply. Tool calls requested by the model are carried on the
// returned message.
func (c *Client) CreateChatCompletion(
	ctx context.Context,
	messages []chat.Message,
	requestTools []tools.Tool,
) (*chat.Message, base.Usage, error) {
	if len(messages) == 0 {
		return nil, base.Usage{}, errors.New("at least one message is required")
	}

	slog.Debug("Creating chat completion",
		"model", c.ModelConfig.Model,
		"message_count", len(messages),
		"tool_count", len(requestTools))

	req := openai.ChatCompletionRequest{
		Model:       c.ModelConfig.Model,
		Messages:    convertMessages(messages),
		Temperature: float32(c.ModelConfig.Temperature),
		TopP:        float32(c.ModelConfig.TopP),
		Tools:       convertTools(requestTools),
	}
	if c.ModelConfig.MaxTokens > 0 {
		req.MaxTokens = c.ModelConfig.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, base.Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return nil, base.Usage{}, errors.New("model returned no choices")
	}

	msg := convertResponseMessage(resp.Choices[0].Message)
	usage := base.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	return &msg, usage, nil
}

func convertMessages(messages []chat.Message) []openai.ChatCompletionMessage {
	openaiMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i := range messages {
		msg := &messages[i]
		m := openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		if len(msg.ToolCalls) > 0 {
			m.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				m.ToolCalls[j] = openai.ToolCall{
					ID:       tc.ID,
					Type:     openai.ToolType(tc.Type),
					Function: openai.FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
				}
			}
		}
		if msg.ToolCallID != "" {
			m.ToolCallID = msg.ToolCallID
		}
		openaiMessages[i] = m
	}
	return openaiMessages
}

func convertTools(requestTools []tools.Tool) []openai.Tool {
	if len(requestTools) == 0 {
		return nil
	}
	out := make([]openai.Tool, len(requestTools))
	for i, tool := range requestTools {
		params := tool.Parameters
		if len(params) == 0 {
			// Some endpoints reject tools without an object schema.
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		}
	}
	return out
}

func convertResponseMessage(m openai.ChatCompletionMessage) chat.Message {
	msg := chat.NewAssistantMessage(m.Content)
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, tools.ToolCall{
			ID:       tc.ID,
			Type:     string(tc.Type),
			Function: tools.FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
		})
	}
	return msg
}
