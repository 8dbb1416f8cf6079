package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig 描述 OpenAI 兼容接口的连接参数。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIGenerator 使用 JSON 模式调用 OpenAI 兼容的 Chat Completions 接口。
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator backed by go-openai.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Generate 发送一次 JSON 模式的补全请求。
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Payload, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: strings.TrimSpace(req.System) + "\n\n" + jsonOnlyDirective},
			{Role: openai.ChatMessageRoleUser, Content: req.Instruction},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUnparsable)
	}

	payload, err := DecodePayload(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	log.Printf("[ai] openai generated %s, tokens=%d", req.Schema, resp.Usage.TotalTokens)
	return payload, nil
}
