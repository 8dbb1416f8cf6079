package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnparsable 表示模型输出中找不到可解析的 JSON 对象。
	ErrUnparsable = errors.New("ai: output is not a json object")
	// ErrNotConfigured 表示没有可用的大模型凭证
	ErrNotConfigured = errors.New("ai: generator not configured")
)

// Request 描述一次结构化文本生成调用。
type Request struct {
	// Schema 是期望输出的名称，仅用于日志与 JSON 模式命名。
	Schema      string
	System      string
	Instruction string
}

// Payload 是模型返回的 JSON 对象，字段类型不做任何保证。
type Payload map[string]any

// Generator 以结构化 JSON 的形式调用大模型。
type Generator interface {
	Generate(ctx context.Context, req Request) (Payload, error)
}

// Disabled 在未配置大模型时使用，调用方会走各自的回退逻辑。
type Disabled struct{}

// Generate always fails with ErrNotConfigured.
func (Disabled) Generate(context.Context, Request) (Payload, error) {
	return nil, ErrNotConfigured
}

// DecodePayload 从模型输出中提取第一个 JSON 对象。
// 输出可能包含 markdown 代码块或前后说明文字；若顶层是数组则取第一个元素。
func DecodePayload(content string) (Payload, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrUnparsable
	}

	objStart := strings.Index(trimmed, "{")
	listStart := strings.Index(trimmed, "[")

	if listStart != -1 && (objStart == -1 || listStart < objStart) {
		if end := strings.LastIndex(trimmed, "]"); end > listStart {
			var items []any
			if err := json.Unmarshal([]byte(trimmed[listStart:end+1]), &items); err == nil {
				if len(items) == 0 {
					return nil, fmt.Errorf("%w: empty list", ErrUnparsable)
				}
				first, ok := items[0].(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%w: list element is %T", ErrUnparsable, items[0])
				}
				return Payload(first), nil
			}
		}
	}

	end := strings.LastIndex(trimmed, "}")
	if objStart == -1 || end == -1 || end <= objStart {
		return nil, fmt.Errorf("%w: missing json object", ErrUnparsable)
	}

	payload := Payload{}
	if err := json.Unmarshal([]byte(trimmed[objStart:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	return payload, nil
}
