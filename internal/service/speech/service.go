package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	speechmodel "github.com/zhouzirui/interview-pilot/backend/internal/model/speech"
)

var (
	// ErrEmptyAudio 表示上传的音频为空
	ErrEmptyAudio = errors.New("speech: audio is empty")
	// ErrUnsupportedFormat 表示当前识别服务不支持该音频格式
	ErrUnsupportedFormat = errors.New("speech: unsupported audio format")
	// ErrNotConfigured 表示识别服务缺少凭证
	ErrNotConfigured = errors.New("speech: recognizer not configured")
)

type recognizer interface {
	Transcribe(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error)
	SupportsFormat(format string) bool
}

// Service 语音识别服务，按配置选择火山引擎或 Whisper
type Service struct {
	config     *speechmodel.SpeechConfig
	recognizer recognizer
}

// NewService 创建语音服务实例
func NewService(config *speechmodel.SpeechConfig) (*Service, error) {
	if config == nil {
		return nil, ErrNotConfigured
	}

	var (
		rec recognizer
		err error
	)
	switch config.Provider {
	case speechmodel.ProviderWhisper:
		rec, err = NewWhisperClient(config)
	case speechmodel.ProviderVolcengine, "":
		if _, _, err = resolveCredentials(config); err == nil {
			rec = NewVolcengineASRClient(config)
		}
	default:
		err = fmt.Errorf("unsupported speech provider %q", config.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &Service{config: config, recognizer: rec}, nil
}

// Provider 返回当前使用的识别服务
func (s *Service) Provider() speechmodel.Provider {
	if s.config.Provider == "" {
		return speechmodel.ProviderVolcengine
	}
	return s.config.Provider
}

// TranscribeBuffer 识别一段完整音频
func (s *Service) TranscribeBuffer(ctx context.Context, sessionID string, audioData []byte, format, language string) (*speechmodel.ASRResponse, error) {
	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	format = NormalizeFormat(format)
	if !s.recognizer.SupportsFormat(format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	req := &speechmodel.ASRRequest{
		SessionID: sessionID,
		AudioData: bytes.NewReader(audioData),
		Format:    format,
		Language:  language,
	}
	return s.recognizer.Transcribe(ctx, req)
}

// Disabled 在未配置识别服务时使用，所有请求都返回 ErrNotConfigured。
type Disabled struct{}

// TranscribeBuffer always fails with ErrNotConfigured.
func (Disabled) TranscribeBuffer(context.Context, string, []byte, string, string) (*speechmodel.ASRResponse, error) {
	return nil, ErrNotConfigured
}

// NormalizeFormat 把 "audio/webm;codecs=opus"、".WAV" 等写法统一成短格式名，空值默认为 wav。
func NormalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if idx := strings.Index(format, ";"); idx >= 0 {
		format = format[:idx]
	}
	format = strings.TrimPrefix(format, "audio/")
	format = strings.TrimPrefix(format, "video/")
	format = strings.TrimPrefix(format, ".")
	switch format {
	case "":
		return "wav"
	case "x-wav", "wave", "vnd.wave":
		return "wav"
	case "mpeg", "mpeg3", "x-mpeg-3":
		return "mp3"
	case "x-m4a":
		return "m4a"
	}
	return format
}
