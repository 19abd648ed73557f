package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
)

const defaultAnthropicModel = "claude-sonnet-4-6"

// AnthropicModel wraps the Anthropic Messages API with tool use
type AnthropicModel struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicModel creates a model backed by Anthropic Claude or a compatible proxy
func NewAnthropicModel(apiKey, model, baseURL string) *AnthropicModel {
	if model == "" {
		model = defaultAnthropicModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicModel{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: 1024,
	}
}

func (m *AnthropicModel) Name() string { return "anthropic:" + m.model }

func (m *AnthropicModel) Complete(ctx context.Context, req Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(m.model)),
		MaxTokens: anthropic.F(int64(m.maxTokens)),
		Messages:  anthropic.F(toAnthropicMessages(req.Messages)),
	}
	if len(req.Tools) > 0 {
		params.Tools = anthropic.F(toAnthropicTools(req.Tools))
	}
	if req.System != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(req.System),
		})
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	out := &Response{StopReason: string(resp.StopReason)}
	for _, block := range resp.Content {
		switch b := block.AsUnion().(type) {
		case anthropic.TextBlock:
			out.Text += b.Text
		case anthropic.ToolUseBlock:
			var input map[string]interface{}
			if err := json.Unmarshal(b.Input, &input); err != nil {
				log.Warn().Err(err).Str("tool", b.Name).Msg("failed to parse tool input")
				input = map[string]interface{}{}
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: b.ID, Name: b.Name, Input: input})
		}
	}
	return out, nil
}

func toAnthropicTools(specs []ToolSpec) []anthropic.ToolUnionUnionParam {
	params := make([]anthropic.ToolUnionUnionParam, len(specs))
	for i, t := range specs {
		schema := map[string]interface{}{
			"type":       "object",
			"properties": t.InputSchema["properties"],
		}
		if required, ok := t.InputSchema["required"]; ok {
			schema["required"] = required
		}
		params[i] = anthropic.ToolParam{
			Name:        anthropic.String(t.Name),
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.F[interface{}](schema),
		}
	}
	return params
}

// toAnthropicMessages folds history into strictly alternating user/assistant
// turns. Tool results travel in user turns.
func toAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	var (
		out     []anthropic.MessageParam
		blocks  []anthropic.ContentBlockParamUnion
		current Role
	)
	flush := func() {
		if len(blocks) == 0 {
			return
		}
		if current == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
		blocks = nil
	}

	for _, msg := range msgs {
		side := RoleUser
		if msg.Role == RoleAssistant {
			side = RoleAssistant
		}
		if side != current {
			flush()
			current = side
		}
		switch msg.Role {
		case RoleAssistant:
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlockParam(tc.ID, tc.Name, tc.Input))
			}
		case RoleTool:
			blocks = append(blocks, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
		default:
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
		}
	}
	flush()
	return out
}
