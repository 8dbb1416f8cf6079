package interview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	model "github.com/zhouzirui/interview-pilot/backend/internal/model/interview"
	"github.com/zhouzirui/interview-pilot/backend/internal/model/persona"
	speechmodel "github.com/zhouzirui/interview-pilot/backend/internal/model/speech"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/dispatch"
)

// maxBudgetMinutes 是 time.Duration 能表示的最大分钟数。
const maxBudgetMinutes = math.MaxInt64 / int64(time.Minute)

// Config 面试引擎参数。
type Config struct {
	// MaxDurationMinutes 运营方设置的时长上限，0 表示不限制。
	MaxDurationMinutes int
	Policy             Policy
	// Concurrency 单个会话同时进行的外部能力调用上限，会话之间互不影响。
	Concurrency int
	Retention   time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Policy:      DefaultPolicy(),
		Concurrency: 2,
	}
}

// Engine 提供与传输层无关的面试操作。
type Engine struct {
	store       *Store
	pool        *dispatch.Pool
	transcriber Transcriber
	questions   *QuestionGenerator
	evaluator   *AnswerEvaluator
	summarizer  *SessionSummarizer
	clock       Clock
	maxDuration int
	stats       *Stats
}

// Option 配置 Engine。
type Option func(*Engine)

// WithClock 替换引擎时钟，所有剩余时间都基于该时钟计算。
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// TurnResult 一次回答的处理结果。
type TurnResult struct {
	TurnIndex     int              `json:"turnIndex"`
	Transcript    string           `json:"transcript"`
	Evaluation    model.Evaluation `json:"evaluation"`
	NextQuestion  *model.Question  `json:"nextQuestion"`
	TimeRemaining int              `json:"timeRemaining"`
	Finished      bool             `json:"finished"`
}

// Report 提供给报告渲染的数据。
type Report struct {
	Snapshot        Snapshot        `json:"session"`
	Persona         persona.Persona `json:"persona"`
	History         []model.Turn    `json:"history"`
	Summary         model.Summary   `json:"summary"`
	DurationSeconds int             `json:"durationSeconds"`
	GeneratedAt     time.Time       `json:"generatedAt"`
}

// NewEngine 组装引擎。generator 与 transcriber 是外部能力。
func NewEngine(generator TextGenerator, transcriber Transcriber, cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.MaxDurationMinutes < 0 {
		cfg.MaxDurationMinutes = 0
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}

	stats := &Stats{}
	e := &Engine{
		pool:        dispatch.New(cfg.Concurrency),
		transcriber: transcriber,
		questions:   NewQuestionGenerator(generator, cfg.Policy, stats),
		evaluator:   NewAnswerEvaluator(generator, stats),
		summarizer:  NewSessionSummarizer(generator, stats),
		clock:       time.Now,
		maxDuration: cfg.MaxDurationMinutes,
		stats:       stats,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.store = NewStore(WithRetention(cfg.Retention), WithStoreClock(e.clock), withStoreStats(stats))
	return e
}

// Store exposes the underlying session store.
func (e *Engine) Store() *Store {
	return e.store
}

// CreateSession 创建会话并生成开场题，会话在完全就绪后才注册。
func (e *Engine) CreateSession(ctx context.Context, pers persona.Persona, durationMinutes int) (*Snapshot, error) {
	if strings.TrimSpace(pers.SystemPrompt) == "" && len(pers.Topics) == 0 {
		return nil, ErrPersonaRequired
	}
	if err := e.validateDuration(durationMinutes); err != nil {
		return nil, err
	}
	if e.store.Closed() {
		return nil, ErrStoreClosed
	}
	pers = pers.Normalize()
	budget := time.Duration(durationMinutes) * time.Minute

	// 会话尚未注册，开场题不占用任何会话的槽位
	opening, err := dispatch.Call(ctx, e.pool, "", func(ctx context.Context) (model.Question, error) {
		return e.questions.Generate(ctx, pers, nil, budget, true), nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate opening question: %w", poolError(err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session := newSession(uuid.NewString(), pers, budget, e.clock, opening)
	if err := e.store.Add(session); err != nil {
		return nil, err
	}
	e.stats.sessionsCreated.Add(1)

	log.Printf("[interview] session created id=%s persona=%s duration=%dm", session.ID, pers.ID, durationMinutes)
	snap := session.Snapshot()
	return &snap, nil
}

func (e *Engine) validateDuration(minutes int) error {
	if minutes <= 0 || int64(minutes) > maxBudgetMinutes {
		return fmt.Errorf("%w: %d minutes", ErrInvalidDuration, minutes)
	}
	if e.maxDuration > 0 && minutes > e.maxDuration {
		return fmt.Errorf("%w: %d minutes (allowed 1-%d)", ErrInvalidDuration, minutes, e.maxDuration)
	}
	return nil
}

// poolError 把调用池关闭映射为存储关闭，其余错误原样返回。
func poolError(err error) error {
	if errors.Is(err, dispatch.ErrClosed) {
		return ErrStoreClosed
	}
	return err
}

// SubmitAnswer 处理一次回答。回答在与调用方解耦的上下文中执行，
// 调用方取消只会停止等待，回答仍会完成并提交。
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID string, audio Audio) (*TurnResult, error) {
	session, ok := e.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.State() == StateFinished {
		return nil, ErrSessionFinished
	}
	if len(audio.Data) == 0 {
		return nil, ErrNoAudio
	}

	if !session.tryBeginTurn() {
		e.stats.rejectedSubmits.Add(1)
		return nil, ErrTurnInProgress
	}
	// 拿到令牌之前可能刚有一轮把会话结束
	if session.State() == StateFinished {
		session.endTurn()
		return nil, ErrSessionFinished
	}
	release, err := e.store.beginTurn(session)
	if err != nil {
		session.endTurn()
		return nil, err
	}

	type outcome struct {
		result *TurnResult
		err    error
	}
	done := make(chan outcome, 1)
	turnCtx := context.WithoutCancel(ctx)

	go func() {
		defer release()
		defer session.endTurn()
		result, err := e.runTurn(turnCtx, session, audio)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		log.Printf("[interview] caller left before turn completed, session=%s: %v", sessionID, ctx.Err())
		return nil, ctx.Err()
	}
}

func (e *Engine) runTurn(ctx context.Context, session *Session, audio Audio) (*TurnResult, error) {
	pending, ok := session.PendingQuestion()
	if !ok {
		return nil, ErrSessionFinished
	}

	language := audio.Language
	if language == "" {
		language = session.Persona.Language
	}

	asr, err := dispatch.Call(ctx, e.pool, session.ID, func(ctx context.Context) (*speechmodel.ASRResponse, error) {
		return e.transcriber.TranscribeBuffer(ctx, session.ID, audio.Data, audio.Format, language)
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrClosed) {
			return nil, ErrStoreClosed
		}
		e.stats.transcriptionFailures.Add(1)
		log.Printf("[interview] transcription failed session=%s: %v", session.ID, err)
		return nil, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	transcript := ""
	if asr != nil {
		transcript = strings.TrimSpace(asr.Text)
	}

	evaluation, err := dispatch.Call(ctx, e.pool, session.ID, func(ctx context.Context) (model.Evaluation, error) {
		return e.evaluator.Evaluate(ctx, pending, transcript), nil
	})
	if err != nil {
		return nil, ErrStoreClosed
	}

	turn := model.Turn{
		Question:   pending,
		Answer:     transcript,
		Evaluation: evaluation,
		AnsweredAt: e.clock(),
	}

	var next *model.Question
	if remaining := session.TimeRemaining(); remaining > 0 {
		history := append(session.History(), turn)
		history[len(history)-1].Index = len(history) - 1
		q, err := dispatch.Call(ctx, e.pool, session.ID, func(ctx context.Context) (model.Question, error) {
			return e.questions.Generate(ctx, session.Persona, history, remaining, false), nil
		})
		if err != nil {
			return nil, ErrStoreClosed
		}
		next = &q
	}

	committed := session.commit(turn, next)
	e.stats.turnsCompleted.Add(1)
	if next == nil {
		e.stats.sessionsFinished.Add(1)
		log.Printf("[interview] session finished id=%s turns=%d", session.ID, committed.Index+1)
	}

	return &TurnResult{
		TurnIndex:     committed.Index,
		Transcript:    transcript,
		Evaluation:    evaluation,
		NextQuestion:  next,
		TimeRemaining: session.RemainingSeconds(),
		Finished:      next == nil,
	}, nil
}

// RecordAnomaly 覆盖未检测到人脸的秒数，任何状态下都允许。
func (e *Engine) RecordAnomaly(sessionID string, faceMissingSeconds int) error {
	if faceMissingSeconds < 0 {
		return ErrInvalidAnomaly
	}
	session, ok := e.store.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	session.recordAnomaly(faceMissingSeconds)
	return nil
}

// Status 返回会话快照。
func (e *Engine) Status(sessionID string) (*Snapshot, error) {
	session, ok := e.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	snap := session.Snapshot()
	return &snap, nil
}

// Summary 基于完整历史即时生成总结，不做缓存。
func (e *Engine) Summary(ctx context.Context, sessionID string) (model.Summary, error) {
	session, ok := e.store.Get(sessionID)
	if !ok {
		return model.Summary{}, ErrSessionNotFound
	}
	return e.summarize(ctx, session)
}

func (e *Engine) summarize(ctx context.Context, session *Session) (model.Summary, error) {
	history := session.History()
	summary, err := dispatch.Call(ctx, e.pool, session.ID, func(ctx context.Context) (model.Summary, error) {
		return e.summarizer.Summarize(ctx, session.Persona, history), nil
	})
	if err != nil {
		return model.Summary{}, poolError(err)
	}
	return summary, nil
}

// Report 汇总渲染报告所需的数据。
func (e *Engine) Report(ctx context.Context, sessionID string) (*Report, error) {
	session, ok := e.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	summary, err := e.summarize(ctx, session)
	if err != nil {
		return nil, err
	}

	snap := session.Snapshot()
	now := e.clock()
	end := now
	if snap.FinishedAt != nil {
		end = *snap.FinishedAt
	}
	elapsed := end.Sub(session.CreatedAt)
	if elapsed > session.Budget {
		elapsed = session.Budget
	}

	return &Report{
		Snapshot:        snap,
		Persona:         session.Persona,
		History:         session.History(),
		Summary:         summary,
		DurationSeconds: int(elapsed / time.Second),
		GeneratedAt:     now,
	}, nil
}

// Stats 返回运行计数。
func (e *Engine) Stats() StatsSnapshot {
	snap := e.stats.snapshot()
	e.store.Range(func(session *Session) bool {
		snap.StoredSessions++
		if session.State() == StateActive {
			snap.ActiveSessions++
		}
		return true
	})
	snap.InFlightCalls = e.pool.InFlight()
	return snap
}

// Close 拒绝新的会话与回答，等待处理中的回答提交后关闭调用池。
func (e *Engine) Close() {
	e.store.Close()
	e.pool.Close()
}
