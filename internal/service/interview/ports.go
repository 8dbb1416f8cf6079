package interview

import (
	"context"
	"time"

	speechmodel "github.com/zhouzirui/interview-pilot/backend/internal/model/speech"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/ai"
)

// Transcriber 把一段完整的回答音频转写为文本。
type Transcriber interface {
	TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speechmodel.ASRResponse, error)
}

// TextGenerator 以 JSON 对象的形式调用大模型。
type TextGenerator interface {
	Generate(ctx context.Context, req ai.Request) (ai.Payload, error)
}

// Clock 返回当前时间，测试中可替换为可控时钟。
type Clock func() time.Time

// Audio 是一次提交的回答音频。
type Audio struct {
	Data     []byte
	Format   string
	Language string
}
