package interview

import "sync/atomic"

// Stats 引擎运行计数，字段均为原子计数器。
type Stats struct {
	sessionsCreated       atomic.Int64
	sessionsFinished      atomic.Int64
	turnsCompleted        atomic.Int64
	transcriptionFailures atomic.Int64
	questionFallbacks     atomic.Int64
	evaluationFallbacks   atomic.Int64
	summaryFallbacks      atomic.Int64
	rejectedSubmits       atomic.Int64
	sessionsSwept         atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	SessionsCreated       int64 `json:"sessionsCreated"`
	SessionsFinished      int64 `json:"sessionsFinished"`
	TurnsCompleted        int64 `json:"turnsCompleted"`
	TranscriptionFailures int64 `json:"transcriptionFailures"`
	QuestionFallbacks     int64 `json:"questionFallbacks"`
	EvaluationFallbacks   int64 `json:"evaluationFallbacks"`
	SummaryFallbacks      int64 `json:"summaryFallbacks"`
	RejectedSubmits       int64 `json:"rejectedSubmits"`
	SessionsSwept         int64 `json:"sessionsSwept"`
	StoredSessions        int   `json:"storedSessions"`
	ActiveSessions        int   `json:"activeSessions"`
	InFlightCalls         int   `json:"inFlightCalls"`
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		SessionsCreated:       s.sessionsCreated.Load(),
		SessionsFinished:      s.sessionsFinished.Load(),
		TurnsCompleted:        s.turnsCompleted.Load(),
		TranscriptionFailures: s.transcriptionFailures.Load(),
		QuestionFallbacks:     s.questionFallbacks.Load(),
		EvaluationFallbacks:   s.evaluationFallbacks.Load(),
		SummaryFallbacks:      s.summaryFallbacks.Load(),
		RejectedSubmits:       s.rejectedSubmits.Load(),
		SessionsSwept:         s.sessionsSwept.Load(),
	}
}
