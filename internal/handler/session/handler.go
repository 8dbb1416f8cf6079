package session

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	model "github.com/zhouzirui/interview-pilot/backend/internal/model/interview"
	"github.com/zhouzirui/interview-pilot/backend/internal/model/persona"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/interview"
	speechsvc "github.com/zhouzirui/interview-pilot/backend/internal/service/speech"
	"github.com/zhouzirui/interview-pilot/backend/pkg/utils"
)

// maxAudioBytes 单次回答允许上传的音频大小
const maxAudioBytes = 32 << 20

// Engine 会话处理器依赖的面试引擎操作
type Engine interface {
	CreateSession(ctx context.Context, pers persona.Persona, durationMinutes int) (*interview.Snapshot, error)
	SubmitAnswer(ctx context.Context, sessionID string, audio interview.Audio) (*interview.TurnResult, error)
	RecordAnomaly(sessionID string, faceMissingSeconds int) error
	Status(sessionID string) (*interview.Snapshot, error)
	Summary(ctx context.Context, sessionID string) (model.Summary, error)
	Report(ctx context.Context, sessionID string) (*interview.Report, error)
	Stats() interview.StatsSnapshot
}

// Handler 面试会话的HTTP处理器
type Handler struct {
	engine   Engine
	personas persona.Store
}

// New 创建会话处理器
func New(engine Engine, personas persona.Store) *Handler {
	return &Handler{engine: engine, personas: personas}
}

// RegisterRoutes 注册会话路由，limit 只作用于会修改状态的接口。
func (h *Handler) RegisterRoutes(r chi.Router, limit ...func(http.Handler) http.Handler) {
	mutating := r.With(limit...)
	mutating.Post("/session/start", h.handleStart)
	mutating.Post("/session/{sessionID}/audio", h.handleAudio)
	mutating.Post("/session/{sessionID}/end", h.handleEnd)

	r.Get("/session/{sessionID}", h.handleStatus)
	r.Get("/session/{sessionID}/summary", h.handleSummary)
	r.Get("/session/{sessionID}/report", h.handleReport)
	r.Get("/stats", h.handleStats)
}

type startRequest struct {
	Persona         *persona.Persona `json:"persona"`
	PersonaID       string           `json:"personaId"`
	DurationMinutes int              `json:"durationMinutes"`
}

type startResponse struct {
	SessionID     string          `json:"sessionId"`
	PersonaID     string          `json:"personaId"`
	FirstQuestion *model.Question `json:"firstQuestion"`
	TimeRemaining int             `json:"timeRemaining"`
}

// handleStart 创建面试会话，persona 可以内联提供或引用预设 ID
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var pers persona.Persona
	switch {
	case req.Persona != nil:
		pers = *req.Persona
	case strings.TrimSpace(req.PersonaID) != "":
		found, ok := h.personas.FindByID(strings.TrimSpace(req.PersonaID))
		if !ok {
			utils.RespondError(w, http.StatusBadRequest, "persona not found")
			return
		}
		pers = found
	}

	snap, err := h.engine.CreateSession(r.Context(), pers, req.DurationMinutes)
	if err != nil {
		respondEngineError(w, r, "", err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, startResponse{
		SessionID:     snap.SessionID,
		PersonaID:     snap.PersonaID,
		FirstQuestion: snap.CurrentQuestion,
		TimeRemaining: snap.TimeRemaining,
	})
}

// handleAudio 提交一次回答音频，等待评估和下一题
func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes+1<<20)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
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

	data, err := io.ReadAll(io.LimitReader(file, maxAudioBytes))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio")
		return
	}

	format := r.FormValue("format")
	if format == "" {
		format = header.Header.Get("Content-Type")
	}
	if format == "" || format == "application/octet-stream" {
		format = filepath.Ext(header.Filename)
	}

	result, err := h.engine.SubmitAnswer(r.Context(), sessionID, interview.Audio{
		Data:     data,
		Format:   speechsvc.NormalizeFormat(format),
		Language: r.FormValue("language"),
	})
	if err != nil {
		respondEngineError(w, r, sessionID, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

type endRequest struct {
	FaceMissingSeconds int `json:"faceMissingSeconds"`
}

// handleEnd 记录前端上报的异常（未检测到人脸的秒数）
func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req endRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.engine.RecordAnomaly(sessionID, req.FaceMissingSeconds); err != nil {
		respondEngineError(w, r, sessionID, err)
		return
	}

	snap, err := h.engine.Status(sessionID)
	if err != nil {
		respondEngineError(w, r, sessionID, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	snap, err := h.engine.Status(sessionID)
	if err != nil {
		respondEngineError(w, r, sessionID, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	summary, err := h.engine.Summary(r.Context(), sessionID)
	if err != nil {
		respondEngineError(w, r, sessionID, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	report, err := h.engine.Report(r.Context(), sessionID)
	if err != nil {
		respondEngineError(w, r, sessionID, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, report)
}

func (h *Handler) handleStats(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.engine.Stats())
}
