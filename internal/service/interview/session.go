package interview

import (
	"sync"
	"sync/atomic"
	"time"

	model "github.com/zhouzirui/interview-pilot/backend/internal/model/interview"
	"github.com/zhouzirui/interview-pilot/backend/internal/model/persona"
)

// State 会话状态
type State string

const (
	StateActive   State = "active"
	StateFinished State = "finished"
)

// Session 是一场进行中的面试。ID、Persona、CreatedAt、Budget 创建后不变，
// 其余状态由 mu 保护，且持锁期间从不调用外部能力。
type Session struct {
	ID        string
	Persona   persona.Persona
	CreatedAt time.Time
	Budget    time.Duration

	clock Clock

	mu          sync.RWMutex
	turns       []model.Turn
	pending     *model.Question
	finishedAt  time.Time
	faceMissing int

	// 同一时刻只允许一个回答在处理中
	turnToken atomic.Bool
}

func newSession(id string, pers persona.Persona, budget time.Duration, clock Clock, opening model.Question) *Session {
	return &Session{
		ID:        id,
		Persona:   pers,
		CreatedAt: clock(),
		Budget:    budget,
		clock:     clock,
		turns:     make([]model.Turn, 0, 16),
		pending:   &opening,
	}
}

// TimeRemaining = max(0, budget - elapsed)，每次调用都重新计算。
func (s *Session) TimeRemaining() time.Duration {
	remaining := s.Budget - s.clock().Sub(s.CreatedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingSeconds 截断为整秒。
func (s *Session) RemainingSeconds() int {
	return int(s.TimeRemaining() / time.Second)
}

// State reports whether the session still has a pending question.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	if s.pending == nil {
		return StateFinished
	}
	return StateActive
}

// PendingQuestion 返回当前待回答的题目，会话结束后返回 false。
func (s *Session) PendingQuestion() (model.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending == nil {
		return model.Question{}, false
	}
	return *s.pending, true
}

// History 返回问答记录的副本。
func (s *Session) History() []model.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// FaceMissingSeconds 返回最近一次上报的未检测到人脸时长。
func (s *Session) FaceMissingSeconds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.faceMissing
}

// recordAnomaly 覆盖而不是累加。
func (s *Session) recordAnomaly(seconds int) {
	s.mu.Lock()
	s.faceMissing = seconds
	s.mu.Unlock()
}

func (s *Session) tryBeginTurn() bool {
	return s.turnToken.CompareAndSwap(false, true)
}

func (s *Session) endTurn() {
	s.turnToken.Store(false)
}

func (s *Session) turnInFlight() bool {
	return s.turnToken.Load()
}

// commit 原子地追加一轮记录并切换待答题目；next 为 nil 表示面试结束。
func (s *Session) commit(turn model.Turn, next *model.Question) model.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn.Index = len(s.turns)
	s.turns = append(s.turns, turn)
	s.pending = next
	if next == nil {
		s.finishedAt = s.clock()
	}
	return turn
}

// Snapshot 会话的只读视图
type Snapshot struct {
	SessionID          string          `json:"sessionId"`
	PersonaID          string          `json:"personaId"`
	State              State           `json:"state"`
	CurrentQuestion    *model.Question `json:"currentQuestion,omitempty"`
	TimeRemaining      int             `json:"timeRemaining"`
	BudgetSeconds      int             `json:"budgetSeconds"`
	TurnCount          int             `json:"turnCount"`
	FaceMissingSeconds int             `json:"faceMissingSeconds"`
	CreatedAt          time.Time       `json:"createdAt"`
	FinishedAt         *time.Time      `json:"finishedAt,omitempty"`
}

// Snapshot 在一次读锁内采集状态，保证题目与状态一致。
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		SessionID:          s.ID,
		PersonaID:          s.Persona.ID,
		State:              s.stateLocked(),
		TimeRemaining:      s.RemainingSeconds(),
		BudgetSeconds:      int(s.Budget / time.Second),
		TurnCount:          len(s.turns),
		FaceMissingSeconds: s.faceMissing,
		CreatedAt:          s.CreatedAt,
	}
	if s.pending != nil {
		q := *s.pending
		snap.CurrentQuestion = &q
	}
	if !s.finishedAt.IsZero() {
		finished := s.finishedAt
		snap.FinishedAt = &finished
	}
	return snap
}

// expiredBefore 判断会话是否已结束（或预算耗尽）且早于 cutoff。
func (s *Session) expiredBefore(cutoff time.Time) bool {
	s.mu.RLock()
	finishedAt := s.finishedAt
	s.mu.RUnlock()

	if !finishedAt.IsZero() {
		return finishedAt.Before(cutoff)
	}
	return s.CreatedAt.Add(s.Budget).Before(cutoff)
}
