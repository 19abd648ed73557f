package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// AzureConfig locates a chat deployment on Azure OpenAI
type AzureConfig struct {
	Endpoint   string
	Deployment string
	APIVersion string
	APIKey     string
}

// NewAzureClient builds a go-openai client that targets an Azure deployment.
// Every model name is mapped onto the configured deployment.
func NewAzureClient(cfg AzureConfig) *openai.Client {
	c := openai.DefaultAzureConfig(cfg.APIKey, strings.TrimSuffix(cfg.Endpoint, "/"))
	if cfg.APIVersion != "" {
		c.APIVersion = cfg.APIVersion
	}
	if cfg.Deployment != "" {
		deployment := cfg.Deployment
		c.AzureModelMapperFunc = func(string) string { return deployment }
	}
	return openai.NewClientWithConfig(c)
}

// NewOpenAIClient builds a go-openai client for api.openai.com or a compatible base URL
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	c := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(c)
}

// OpenAIModel runs chat completions with function tools
type OpenAIModel struct {
	client *openai.Client
	model  string
}

func NewOpenAIModel(client *openai.Client, model string) *OpenAIModel {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIModel{client: client, model: model}
}

func (m *OpenAIModel) Name() string { return "openai:" + m.model }

func (m *OpenAIModel) Complete(ctx context.Context, req Request) (*Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    m.model,
		Messages: toOpenAIMessages(req.System, req.Messages),
	}
	for _, t := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	resp, err := m.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: empty choices")
	}

	choice := resp.Choices[0]
	out := &Response{
		Text:       choice.Message.Content,
		StopReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		input := map[string]interface{}{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				log.Warn().Err(err).Str("tool", tc.Function.Name).Msg("failed to parse tool arguments")
				input = map[string]interface{}{}
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Input: input})
	}
	return out, nil
}

func toOpenAIMessages(system string, msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, msg := range msgs {
		switch msg.Role {
		case RoleAssistant:
			m := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				args, _ := json.Marshal(tc.Input)
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, m)
		case RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		}
	}
	return out
}
