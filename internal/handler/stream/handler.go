package stream

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/interview-pilot/backend/internal/service/interview"
	"github.com/zhouzirui/interview-pilot/backend/pkg/utils"
)

// DefaultInterval 时钟推送间隔
const DefaultInterval = time.Second

// StatusSource 提供会话快照
type StatusSource interface {
	Status(sessionID string) (*interview.Snapshot, error)
}

// Handler 通过 Server-Sent Events 推送面试剩余时间
type Handler struct {
	sessions StatusSource
	interval time.Duration
}

// New creates a clock stream handler; a non-positive interval falls back to DefaultInterval.
func New(sessions StatusSource, interval time.Duration) *Handler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Handler{sessions: sessions, interval: interval}
}

// RegisterRoutes 注册时钟流路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/clock", h.handleClock)
}

// ClockEvent 一次时钟推送
type ClockEvent struct {
	SessionID     string          `json:"sessionId"`
	State         interview.State `json:"state"`
	TimeRemaining int             `json:"timeRemaining"`
	TurnCount     int             `json:"turnCount"`
}

func newClockEvent(snap *interview.Snapshot) ClockEvent {
	return ClockEvent{
		SessionID:     snap.SessionID,
		State:         snap.State,
		TimeRemaining: snap.TimeRemaining,
		TurnCount:     snap.TurnCount,
	}
}

func (h *Handler) handleClock(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	snap, err := h.sessions.Status(sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	log.Printf("[sse] opening clock stream for session=%s", sessionID)
	defer log.Printf("[sse] closing clock stream for session=%s", sessionID)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	// 预算耗尽后会话仍接受最后一个回答，只有状态变为 finished 才结束推送
	expired := false
	for {
		if snap.State == interview.StateFinished {
			if err := utils.SendSSEEvent(w, flusher, "finished", newClockEvent(snap)); err != nil {
				log.Printf("[sse] %v", err)
			}
			return
		}

		event := "status"
		if snap.TimeRemaining <= 0 && !expired {
			event = "expired"
			expired = true
		}
		if err := utils.SendSSEEvent(w, flusher, event, newClockEvent(snap)); err != nil {
			log.Printf("[sse] %v", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// 会话可能被清理
		if snap, err = h.sessions.Status(sessionID); err != nil {
			utils.SendSSEEvent(w, flusher, "error", map[string]string{"message": "session not found"})
			return
		}
	}
}
