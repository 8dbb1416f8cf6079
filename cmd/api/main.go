package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/interview-pilot/backend/internal/config"
	"github.com/zhouzirui/interview-pilot/backend/internal/handler"
	speechHandler "github.com/zhouzirui/interview-pilot/backend/internal/handler/speech"
	"github.com/zhouzirui/interview-pilot/backend/internal/middleware"
	"github.com/zhouzirui/interview-pilot/backend/internal/model/persona"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/ai"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/interview"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	personaStore, err := loadPersonas(cfg.Interview.PersonasFile)
	if err != nil {
		log.Fatalf("failed to load personas: %v", err)
	}

	// 大模型不可用时仍然启动，出题与评估全部走回退内容
	var generator interview.TextGenerator = ai.Disabled{}
	if cfg.AI.Enabled() {
		gen, err := ai.NewGenerator(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI generator: %v", err)
		} else {
			generator = gen
			log.Printf("AI generator initialized (provider=%s)", cfg.AI.Provider)
		}
	} else {
		log.Println("大模型凭证未配置，面试题目将使用默认内容")
	}

	var (
		transcriber    interview.Transcriber = speech.Disabled{}
		micCheck       speechHandler.Transcriber
		speechProvider string
	)
	if cfg.Speech.Enabled {
		svc, err := speech.NewService(cfg.Speech.ToModel())
		if err != nil {
			log.Printf("warning: failed to initialize speech service: %v", err)
		} else {
			transcriber, micCheck = svc, svc
			speechProvider = string(svc.Provider())
			log.Printf("Speech service initialized (provider=%s)", speechProvider)
		}
	} else {
		log.Println("语音服务凭证未配置，回答将无法识别")
	}

	engine := interview.NewEngine(generator, transcriber, interview.Config{
		MaxDurationMinutes: cfg.Interview.MaxDurationMinutes,
		Policy: interview.Policy{
			WrapUpThreshold: cfg.Interview.WrapUpThreshold,
			MaxTopicDwell:   cfg.Interview.MaxTopicDwell,
			HistoryWindow:   cfg.Interview.HistoryWindow,
		},
		Concurrency: cfg.Interview.CapabilityConcurrency,
		Retention:   cfg.Interview.Retention,
	})
	wsHandler := speechHandler.NewWebSocketHandler(engine)

	router := handler.NewRouter(handler.Services{
		Personas:       personaStore,
		Engine:         engine,
		Transcriber:    micCheck,
		SpeechProvider: speechProvider,
		WebSocket:      wsHandler,
		Limiter:        middleware.NewRateLimiter(cfg.Interview.RateLimitRPS, cfg.Interview.RateLimitBurst),
	})

	startServer(ctx, cfg.Server, router)

	// 先断开实时连接，再等待处理中的回答提交
	wsHandler.Close()
	engine.Close()
	log.Println("interview engine stopped")
}

func loadPersonas(path string) (persona.Store, error) {
	if path == "" {
		return persona.NewMemoryStore(persona.Seed()), nil
	}
	items, err := persona.LoadFile(path)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded %d personas from %s", len(items), path)
	return persona.NewMemoryStore(items), nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Interview Pilot backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
