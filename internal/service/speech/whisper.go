package speech

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	speechmodel "github.com/zhouzirui/interview-pilot/backend/internal/model/speech"
)

var whisperFormats = map[string]struct{}{
	"flac": {}, "m4a": {}, "mp3": {}, "mp4": {}, "mpeg": {},
	"mpga": {}, "oga": {}, "ogg": {}, "wav": {}, "webm": {},
}

// WhisperClient 通过 OpenAI 兼容的 /audio/transcriptions 接口识别语音
type WhisperClient struct {
	client *openai.Client
	model  string
}

// NewWhisperClient creates a Whisper transcriber from the speech config.
func NewWhisperClient(cfg *speechmodel.SpeechConfig) (*WhisperClient, error) {
	if cfg == nil || strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is required for whisper", ErrNotConfigured)
	}

	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}

	model := cfg.WhisperModel
	if model == "" {
		model = openai.Whisper1
	}

	return &WhisperClient{client: openai.NewClientWithConfig(clientConfig), model: model}, nil
}

// SupportsFormat 报告 Whisper 是否接受该音频格式
func (c *WhisperClient) SupportsFormat(format string) bool {
	_, ok := whisperFormats[format]
	return ok
}

// Transcribe 上传整段音频并返回转写文本
func (c *WhisperClient) Transcribe(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	started := time.Now()
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		Reader:   req.AudioData,
		FilePath: "answer." + req.Format,
		Language: whisperLanguage(req.Language),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	log.Printf("[ASR] whisper session=%s chars=%d took=%s", req.SessionID, len(text), time.Since(started))

	return &speechmodel.ASRResponse{
		SessionID:  req.SessionID,
		Text:       text,
		Confidence: estimateConfidence(text),
		Duration:   int64(resp.Duration * 1000),
		RequestID:  req.SessionID,
		CreatedAt:  time.Now(),
	}, nil
}

// whisperLanguage 把 "en-US" 这样的区域标记转换为 Whisper 需要的 ISO-639-1 代码
func whisperLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	if idx := strings.IndexAny(lang, "-_"); idx > 0 {
		lang = lang[:idx]
	}
	return strings.ToLower(lang)
}
