package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/interview-pilot/backend/internal/handler/persona"
	"github.com/zhouzirui/interview-pilot/backend/internal/handler/session"
	"github.com/zhouzirui/interview-pilot/backend/internal/handler/speech"
	"github.com/zhouzirui/interview-pilot/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/interview-pilot/backend/internal/middleware"
	personaModel "github.com/zhouzirui/interview-pilot/backend/internal/model/persona"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/interview"
	"github.com/zhouzirui/interview-pilot/backend/pkg/utils"
)

// Services 路由依赖的服务
type Services struct {
	Personas personaModel.Store
	Engine   *interview.Engine
	// Transcriber 为 nil 时独立识别接口返回 503
	Transcriber    speech.Transcriber
	SpeechProvider string
	WebSocket      *speech.WebSocketHandler
	Limiter        *middlewarePkg.RateLimiter
	ClockInterval  time.Duration
}

// NewRouter wires HTTP routes to core services.
func NewRouter(s Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var limits []func(http.Handler) http.Handler
	if s.Limiter != nil {
		limits = append(limits, s.Limiter.Handler)
	}

	wsHandler := s.WebSocket
	if wsHandler == nil {
		wsHandler = speech.NewWebSocketHandler(s.Engine)
	}

	r.Route("/api", func(api chi.Router) {
		persona.New(s.Personas).RegisterRoutes(api)
		session.New(s.Engine, s.Personas).RegisterRoutes(api, limits...)
		stream.New(s.Engine, s.ClockInterval).RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
		speech.New(s.Transcriber, s.SpeechProvider).RegisterRoutes(api)
	})

	return r
}
