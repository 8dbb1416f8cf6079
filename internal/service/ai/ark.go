package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ArkGenerator 基于 eino chain 调用火山方舟模型。
type ArkGenerator struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkGenerator 使用给定的聊天模型编译 prompt chain。
func NewArkGenerator(ctx context.Context, chatModel model.ChatModel) (*ArkGenerator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{instruction}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile generation chain: %w", err)
	}

	return &ArkGenerator{chain: runnable}, nil
}

// Generate 运行 chain 并把回复解析为 JSON 对象。
func (g *ArkGenerator) Generate(ctx context.Context, req Request) (Payload, error) {
	input := map[string]any{
		"system":      strings.TrimSpace(req.System) + "\n\n" + jsonOnlyDirective,
		"instruction": req.Instruction,
	}

	msg, err := g.chain.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run generation chain: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: empty message", ErrUnparsable)
	}

	payload, err := DecodePayload(msg.Content)
	if err != nil {
		return nil, err
	}

	log.Printf("[ai] ark generated %s, fields=%d", req.Schema, len(payload))
	return payload, nil
}

const jsonOnlyDirective = "Respond with a single JSON object only. Do not wrap it in markdown and do not add any commentary."
