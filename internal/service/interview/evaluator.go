package interview

import (
	"context"
	"fmt"
	"log"
	"strings"

	model "github.com/zhouzirui/interview-pilot/backend/internal/model/interview"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/ai"
)

const evaluationSystemPrompt = "You are a fair, experienced interviewer scoring a single spoken answer. " +
	"Judge only what the candidate said. Transcripts come from speech recognition and may contain small errors."

const evaluationSchema = `Output JSON matching this schema:
{
  "confidence_score": 1-5,
  "clarity_score": 1-5,
  "correctness_score": 1-5,
  "feedback": "short constructive feedback",
  "follow_up_needed": true/false
}`

// AnswerEvaluator 对单个回答打分，从不返回错误。
type AnswerEvaluator struct {
	gen   TextGenerator
	stats *Stats
}

// NewAnswerEvaluator creates an evaluator.
func NewAnswerEvaluator(gen TextGenerator, stats *Stats) *AnswerEvaluator {
	if stats == nil {
		stats = &Stats{}
	}
	return &AnswerEvaluator{gen: gen, stats: stats}
}

// Evaluate scores the transcript against the question; unusable model output yields the neutral evaluation.
func (e *AnswerEvaluator) Evaluate(ctx context.Context, question model.Question, transcript string) model.Evaluation {
	var b strings.Builder
	b.WriteString("Evaluate the following answer based on the question asked.\n\n")
	fmt.Fprintf(&b, "Question (%s, %s difficulty): %s\n", question.Type, question.Difficulty, question.Text)
	fmt.Fprintf(&b, "Answer: %s\n\n", strings.TrimSpace(transcript))
	b.WriteString("Score from 1 to 5 on confidence, clarity and correctness.\n\n")
	b.WriteString(evaluationSchema)

	payload, err := e.gen.Generate(ctx, ai.Request{
		Schema:      "evaluation",
		System:      evaluationSystemPrompt,
		Instruction: b.String(),
	})
	if err != nil {
		log.Printf("[interview] answer evaluation failed, use fallback: %v", err)
		payload = nil
	}

	eval, fallback := parseEvaluation(payload)
	if fallback {
		e.stats.evaluationFallbacks.Add(1)
	}
	return eval
}
