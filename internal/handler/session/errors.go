package session

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/interview-pilot/backend/internal/service/interview"
	speechsvc "github.com/zhouzirui/interview-pilot/backend/internal/service/speech"
	"github.com/zhouzirui/interview-pilot/backend/pkg/utils"
)

// statusClientClosedRequest 客户端在处理完成前断开（沿用 nginx 的 499）
const statusClientClosedRequest = 499

// ErrorStatus 把引擎错误映射为 HTTP 状态码和可以返回给客户端的消息。
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, interview.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, interview.ErrSessionFinished):
		return http.StatusConflict, "session already finished"
	case errors.Is(err, interview.ErrTurnInProgress):
		return http.StatusConflict, "an answer is already being processed"
	case errors.Is(err, speechsvc.ErrEmptyAudio), errors.Is(err, interview.ErrNoAudio):
		return http.StatusBadRequest, "audio is required"
	case errors.Is(err, speechsvc.ErrUnsupportedFormat):
		return http.StatusBadRequest, "unsupported audio format"
	case errors.Is(err, interview.ErrPersonaRequired),
		errors.Is(err, interview.ErrInvalidDuration),
		errors.Is(err, interview.ErrInvalidAnomaly):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, interview.ErrTranscription):
		return http.StatusBadGateway, "speech recognition failed"
	case errors.Is(err, interview.ErrStoreClosed):
		return http.StatusServiceUnavailable, "service is shutting down"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "request canceled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func respondEngineError(w http.ResponseWriter, r *http.Request, sessionID string, err error) {
	status, message := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[interview] %s %s session=%s request=%s: %v", r.Method, r.URL.Path, sessionID, middleware.GetReqID(r.Context()), err)
	}
	utils.RespondError(w, status, message)
}
