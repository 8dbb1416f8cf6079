package interview

import (
	"context"
	"fmt"
	"log"
	"strings"

	model "github.com/zhouzirui/interview-pilot/backend/internal/model/interview"
	"github.com/zhouzirui/interview-pilot/backend/internal/model/persona"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/ai"
)

const summarySystemPrompt = "You are a hiring panel lead writing the final assessment of an interview. " +
	"Be specific, balanced and actionable."

const summarySchema = `Output JSON matching this schema:
{
  "overall_score": 1-10,
  "strengths": ["..."],
  "areas_for_improvement": ["..."],
  "summary_feedback": "detailed paragraph"
}`

// SessionSummarizer 基于完整问答历史生成面试总结，每次调用都会重新计算。
type SessionSummarizer struct {
	gen   TextGenerator
	stats *Stats
}

// NewSessionSummarizer creates a summarizer.
func NewSessionSummarizer(gen TextGenerator, stats *Stats) *SessionSummarizer {
	if stats == nil {
		stats = &Stats{}
	}
	return &SessionSummarizer{gen: gen, stats: stats}
}

// Summarize 返回总结；没有任何问答时直接返回默认总结。
func (s *SessionSummarizer) Summarize(ctx context.Context, pers persona.Persona, history []model.Turn) model.Summary {
	if len(history) == 0 {
		return neutralSummary()
	}

	var b strings.Builder
	b.WriteString("Analyze the following interview session and provide a comprehensive summary.\n\n")
	fmt.Fprintf(&b, "Interviewer persona: %s\n", strings.TrimSpace(pers.SystemPrompt))
	fmt.Fprintf(&b, "Topics to evaluate: %s\n\n", joinOrNone(pers.Topics))
	b.WriteString("Interview history:\n")
	for _, turn := range history {
		writeTurn(&b, turn)
		b.WriteString("\n")
	}
	b.WriteString(summarySchema)

	payload, err := s.gen.Generate(ctx, ai.Request{
		Schema:      "summary",
		System:      summarySystemPrompt,
		Instruction: b.String(),
	})
	if err != nil {
		log.Printf("[interview] summary generation failed, use fallback: %v", err)
		payload = nil
	}

	summary, fallback := parseSummary(payload)
	if fallback {
		s.stats.summaryFallbacks.Add(1)
	}
	return summary
}
