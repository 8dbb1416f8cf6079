package speech

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/interview-pilot/backend/internal/model/speech"
	speechsvc "github.com/zhouzirui/interview-pilot/backend/internal/service/speech"
	"github.com/zhouzirui/interview-pilot/backend/pkg/utils"
)

const maxTranscribeBytes = 32 << 20

// Transcriber 独立语音识别接口，用于面试前的麦克风检查
type Transcriber interface {
	TranscribeBuffer(ctx context.Context, sessionID string, audioData []byte, format, language string) (*speech.ASRResponse, error)
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	transcriber Transcriber
	provider    string
}

// New 创建语音处理器，transcriber 为 nil 时识别接口返回 503。
func New(transcriber Transcriber, provider string) *Handler {
	return &Handler{transcriber: transcriber, provider: provider}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/transcribe", h.handleTranscribe)
		speechRouter.Get("/health", h.handleHealth)
	})
}

// handleTranscribe 处理语音转文本请求
func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "speech recognition unavailable")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxTranscribeBytes+1<<20)
	if err := r.ParseMultipartForm(maxTranscribeBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxTranscribeBytes))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio")
		return
	}

	sessionID := r.FormValue("sessionId")
	if sessionID == "" {
		sessionID = "mic-check"
	}

	language := r.FormValue("language")
	if language == "" {
		language = "en-US"
	}

	format := r.FormValue("format")
	if format == "" {
		format = inferAudioFormat(header.Filename)
	}

	resp, err := h.transcriber.TranscribeBuffer(r.Context(), sessionID, data, format, language)
	if err != nil {
		switch {
		case errors.Is(err, speechsvc.ErrEmptyAudio):
			utils.RespondError(w, http.StatusBadRequest, "audio is required")
		case errors.Is(err, speechsvc.ErrUnsupportedFormat):
			utils.RespondError(w, http.StatusBadRequest, "unsupported audio format")
		default:
			log.Printf("[speech] ASR error: %v", err)
			utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if h.transcriber == nil {
		status = "disabled"
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"service":  "speech",
		"provider": h.provider,
	})
}

// inferAudioFormat 从文件名推断音频格式
func inferAudioFormat(filename string) string {
	return speechsvc.NormalizeFormat(filepath.Ext(filename))
}
