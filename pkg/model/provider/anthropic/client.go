// Package anthropic implements the model client for the Anthropic Messages
// API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/ffrouin/tux-copilot/pkg/chat"
	"github.com/ffrouin/tux-copilot/pkg/config"
	"github.com/ffrouin/tux-copilot/pkg/environment"
	"github.com/ffrouin/tux-copilot/pkg/model/provider/base"
	"github.com/ffrouin/tux-copilot/pkg/tools"
)

// defaultMaxTokens is used when max_tokens is not configured. The Messages
// API requires the field; this value works for all current models.
const defaultMaxTokens = 8192

// Client wraps the Anthropic Messages API.
type Client struct {
	base.Config
	client anthropic.Client
}

// NewClient creates an Anthropic client. The API key is read from
// cfg.APIKeyEnv, then ANTHROPIC_API_KEY; unlike OpenAI-compatible local
// servers, the key is mandatory.
func NewClient(ctx context.Context, cfg *config.ModelConfig, env environment.Provider) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("model config is required")
	}
	if env == nil {
		return nil, errors.New("environment provider is required")
	}

	var authToken string
	if cfg.APIKeyEnv != "" {
		authToken, _ = env.Get(ctx, cfg.APIKeyEnv)
	}
	if authToken == "" {
		authToken, _ = env.Get(ctx, "ANTHROPIC_API_KEY")
	}
	if authToken == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable is required")
	}

	requestOptions := []option.RequestOption{
		option.WithAPIKey(authToken),
	}
	if cfg.BaseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(cfg.BaseURL))
	}
	if timeout := cfg.Timeout.Std(); timeout > 0 {
		requestOptions = append(requestOptions, option.WithHTTPClient(&http.Client{Timeout: timeout}))
	}

	slog.Debug("Creating Anthropic client", "model", cfg.Model)

	return &Client{
		Config: base.Config{ModelConfig: *cfg, Env: env},
		client: anthropic.NewClient(requestOptions...),
	}, nil
}

// CreateChatCompletion sends one Messages API request and returns the
// assistant's reply. Tool calls requested by the model are carried on the
// returned message.
func (c *Client) CreateChatCompletion(
	ctx context.Context,
	messages []chat.Message,
	requestTools []tools.Tool,
) (*chat.Message, base.Usage, error) {
	slog.Debug("Creating Anthropic chat completion",
		"model", c.ModelConfig.Model,
		"message_count", len(messages),
		"tool_count", len(requestTools))

	maxTokens := int64(c.ModelConfig.MaxTokens)
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	allTools, err := convertTools(requestTools)
	if err != nil {
		return nil, base.Usage{}, fmt.Errorf("converting tools: %w", err)
	}

	converted, err := convertMessages(messages)
	if err != nil {
		return nil, base.Usage{}, fmt.Errorf("converting messages: %w", err)
	}
	if len(converted) == 0 {
		return nil, base.Usage{}, errors.New("no messages to send after conversion")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.ModelConfig.Model),
		MaxTokens: maxTokens,
		System:    extractSystemBlocks(messages),
		Messages:  converted,
		Tools:     allTools,
	}
	if c.ModelConfig.Temperature > 0 {
		params.Temperature = param.NewOpt(c.ModelConfig.Temperature)
	}
	if c.ModelConfig.TopP > 0 {
		params.TopP = param.NewOpt(c.ModelConfig.TopP)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, base.Usage{}, err
	}

	msg := convertResponseMessage(resp)
	usage := base.Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	return &msg, usage, nil
}

// convertMessages maps the transcript to Anthropic message params, enforcing
// the API's tool sequencing: every assistant tool_use must be immediately
// followed by one user message carrying tool_result blocks for exactly those
// IDs. Consecutive tool messages are grouped into that single user message.
func convertMessages(messages []chat.Message) ([]anthropic.MessageParam, error) {
	var anthropicMessages []anthropic.MessageParam
	// Tool_use IDs of the last appended assistant message, still awaiting
	// their results.
	var pendingToolUseIDs map[string]struct{}

	for i := 0; i < len(messages); i++ {
		msg := &messages[i]
		switch msg.Role {
		case chat.MessageRoleSystem:
			// Carried via the top-level params.System.
			continue

		case chat.MessageRoleUser:
			if pendingToolUseIDs != nil {
				return nil, errors.New("assistant tool_use must be immediately followed by tool results")
			}
			if txt := strings.TrimSpace(msg.Content); txt != "" {
				anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(txt)))
			}

		case chat.MessageRoleAssistant:
			if pendingToolUseIDs != nil {
				return nil, errors.New("assistant tool_use must be immediately followed by tool results")
			}
			if len(msg.ToolCalls) > 0 {
				pendingToolUseIDs = make(map[string]struct{}, len(msg.ToolCalls))
				var blocks []anthropic.ContentBlockParamUnion
				if txt := strings.TrimSpace(msg.Content); txt != "" {
					blocks = append(blocks, anthropic.NewTextBlock(txt))
				}
				for _, toolCall := range msg.ToolCalls {
					var input map[string]any
					if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &input); err != nil {
						input = map[string]any{}
					}
					if toolCall.ID != "" {
						pendingToolUseIDs[toolCall.ID] = struct{}{}
					}
					blocks = append(blocks, anthropic.ContentBlockParamUnion{
						OfToolUse: &anthropic.ToolUseBlockParam{
							ID:    toolCall.ID,
							Input: input,
							Name:  toolCall.Function.Name,
						},
					})
				}
				anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(blocks...))
			} else if txt := strings.TrimSpace(msg.Content); txt != "" {
				anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(txt)))
			}

		case chat.MessageRoleTool:
			if pendingToolUseIDs == nil {
				return nil, fmt.Errorf("unexpected tool result without preceding tool_use (tool_use_id=%q)", msg.ToolCallID)
			}
			var blocks []anthropic.ContentBlockParamUnion
			j := i
			for j < len(messages) && messages[j].Role == chat.MessageRoleTool {
				id := messages[j].ToolCallID
				if strings.TrimSpace(id) == "" {
					return nil, errors.New("tool result is missing tool_use_id")
				}
				if _, ok := pendingToolUseIDs[id]; !ok {
					return nil, fmt.Errorf("unexpected tool_result tool_use_id=%q", id)
				}
				blocks = append(blocks, anthropic.NewToolResultBlock(id, strings.TrimSpace(messages[j].Content), messages[j].IsError))
				delete(pendingToolUseIDs, id)
				j++
			}
			if len(pendingToolUseIDs) > 0 {
				missing := make([]string, 0, len(pendingToolUseIDs))
				for id := range pendingToolUseIDs {
					missing = append(missing, id)
				}
				return nil, fmt.Errorf("missing tool_result for tool_use id %s (and %d more)", missing[0], len(missing)-1)
			}
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(blocks...))
			pendingToolUseIDs = nil
			i = j - 1
		}
	}

	if pendingToolUseIDs != nil {
		return nil, errors.New("assistant tool_use present but no subsequent tool results")
	}

	return anthropicMessages, nil
}

// extractSystemBlocks collects system messages into top-level system blocks.
func extractSystemBlocks(messages []chat.Message) []anthropic.TextBlockParam {
	var systemBlocks []anthropic.TextBlockParam
	for i := range messages {
		msg := &messages[i]
		if msg.Role != chat.MessageRoleSystem {
			continue
		}
		if txt := strings.TrimSpace(msg.Content); txt != "" {
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: txt})
		}
	}
	return systemBlocks
}

func convertTools(requestTools []tools.Tool) ([]anthropic.ToolUnionParam, error) {
	if len(requestTools) == 0 {
		return nil, nil
	}
	toolParams := make([]anthropic.ToolParam, len(requestTools))
	for i, tool := range requestTools {
		inputSchema, err := convertParametersToSchema(tool.Parameters)
		if err != nil {
			return nil, err
		}
		toolParams[i] = anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: inputSchema,
		}
	}
	anthropicTools := make([]anthropic.ToolUnionParam, len(toolParams))
	for i := range toolParams {
		anthropicTools[i] = anthropic.ToolUnionParam{OfTool: &toolParams[i]}
	}
	return anthropicTools, nil
}

func convertParametersToSchema(params map[string]any) (anthropic.ToolInputSchemaParam, error) {
	if len(params) == 0 {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var schema anthropic.ToolInputSchemaParam
	if err := tools.ConvertSchema(params, &schema); err != nil {
		return anthropic.ToolInputSchemaParam{}, err
	}
	return schema, nil
}

func convertResponseMessage(resp *anthropic.Message) chat.Message {
	var text strings.Builder
	msg := chat.NewAssistantMessage("")
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			msg.ToolCalls = append(msg.ToolCalls, tools.ToolCall{
				ID:       b.ID,
				Type:     "function",
				Function: tools.FunctionCall{Name: b.Name, Arguments: string(b.Input)},
			})
		}
	}
	msg.Content = text.String()
	return msg
}
