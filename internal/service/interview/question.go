package interview

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	model "github.com/zhouzirui/interview-pilot/backend/internal/model/interview"
	"github.com/zhouzirui/interview-pilot/backend/internal/model/persona"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/ai"
)

const questionSchema = `Output JSON matching this schema:
{
  "question_text": "...",
  "question_type": "technical|behavioral|wrap-up",
  "reason": "why you are asking this",
  "difficulty": "low|medium|high",
  "topic": "which topic to evaluate this question covers"
}`

// QuestionGenerator 生成下一道面试题，出题规则由 Policy 决定并在模型输出上再次校正。
type QuestionGenerator struct {
	gen    TextGenerator
	policy Policy
	stats  *Stats
}

// NewQuestionGenerator creates a generator; stats may be shared with the engine.
func NewQuestionGenerator(gen TextGenerator, policy Policy, stats *Stats) *QuestionGenerator {
	if stats == nil {
		stats = &Stats{}
	}
	return &QuestionGenerator{gen: gen, policy: policy.withDefaults(), stats: stats}
}

// Generate 总是返回一道完整的题目；模型失败或输出不可用时使用回退题目。
func (g *QuestionGenerator) Generate(ctx context.Context, pers persona.Persona, history []model.Turn, remaining time.Duration, isFirst bool) model.Question {
	directive := g.policy.Decide(pers, history, remaining, isFirst)

	req := ai.Request{
		Schema:      "question",
		System:      ai.BuildInterviewerPrompt(pers),
		Instruction: g.buildInstruction(pers, history, remaining, directive),
	}

	payload, err := g.gen.Generate(ctx, req)
	if err != nil {
		log.Printf("[interview] question generation failed, use fallback: %v", err)
		payload = nil
	}

	q, fallback := parseQuestion(payload)
	if fallback {
		g.stats.questionFallbacks.Add(1)
		q = directive.Fallback()
	}
	return directive.Enforce(q)
}

func (g *QuestionGenerator) buildInstruction(pers persona.Persona, history []model.Turn, remaining time.Duration, d Directive) string {
	var b strings.Builder

	b.WriteString("Current context:\n")
	fmt.Fprintf(&b, "- Time remaining: %d seconds\n", int(remaining/time.Second))
	fmt.Fprintf(&b, "- Topics to evaluate: %s\n", joinOrNone(pers.Topics))
	fmt.Fprintf(&b, "- Topics not yet covered: %s\n", joinOrNone(d.RemainingTopic))
	fmt.Fprintf(&b, "- Questions asked so far: %d\n", len(history))

	if !d.First && len(history) > 0 {
		b.WriteString("\nRecent exchanges (oldest first):\n")
		start := len(history) - g.policy.HistoryWindow
		if start < 0 {
			start = 0
		}
		for _, turn := range history[start:] {
			writeTurn(&b, turn)
		}
	}

	b.WriteString("\nInstructions:\n")
	for i, line := range d.Instructions(pers, g.policy.WrapUpThreshold) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, line)
	}

	b.WriteString("\n")
	b.WriteString(questionSchema)
	return b.String()
}

func writeTurn(b *strings.Builder, turn model.Turn) {
	q := turn.Question
	fmt.Fprintf(b, "Q%d [%s, %s", turn.Index+1, q.Type, q.Difficulty)
	if q.Topic != "" {
		fmt.Fprintf(b, ", topic: %s", q.Topic)
	}
	fmt.Fprintf(b, "]: %s\n", q.Text)
	fmt.Fprintf(b, "A: %s\n", strings.TrimSpace(turn.Answer))
	e := turn.Evaluation
	fmt.Fprintf(b, "Evaluation: confidence=%d clarity=%d correctness=%d follow_up_needed=%t feedback=%q\n",
		e.Confidence, e.Clarity, e.Correctness, e.FollowUpNeeded, e.Feedback)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
