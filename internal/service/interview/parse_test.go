package interview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	model "github.com/zhouzirui/interview-pilot/backend/internal/model/interview"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/ai"
)

func TestParseQuestionFallbacks(t *testing.T) {
	q, fallback := parseQuestion(nil)
	assert.True(t, fallback)
	assert.Equal(t, fallbackQuestion(), q)

	q, fallback = parseQuestion(ai.Payload{"question_type": "technical"})
	assert.True(t, fallback, "missing question text means whole fallback")
	assert.Equal(t, "Could you elaborate on that?", q.Text)

	q, fallback = parseQuestion(ai.Payload{"questionText": "What is a goroutine leak?", "difficulty": "HARD", "question_type": "sparkly"})
	assert.False(t, fallback)
	assert.Equal(t, "What is a goroutine leak?", q.Text)
	assert.Equal(t, model.High, q.Difficulty)
	assert.Equal(t, model.Behavioral, q.Type, "unknown type falls back per field")
	assert.Equal(t, "Follow up", q.Reason)
}

func TestParseEvaluationLenientScores(t *testing.T) {
	eval, fallback := parseEvaluation(ai.Payload{
		"confidence_score":  "0",
		"clarity_score":     9.0,
		"correctness_score": "4.6",
		"follow_up_needed":  "yes",
	})
	assert.False(t, fallback)
	assert.Equal(t, 1, eval.Confidence)
	assert.Equal(t, 5, eval.Clarity)
	assert.Equal(t, 5, eval.Correctness)
	assert.True(t, eval.FollowUpNeeded)
	assert.Equal(t, "Good answer.", eval.Feedback)

	eval, fallback = parseEvaluation(ai.Payload{"clarity_score": "3/5", "confidence_score": "n/a"})
	assert.False(t, fallback)
	assert.Equal(t, 3, eval.Clarity)
	assert.Equal(t, 3, eval.Confidence)

	eval, fallback = parseEvaluation(ai.Payload{"confidence_score": 1e20, "clarity_score": -1e20, "correctness_score": "9e300"})
	assert.False(t, fallback)
	assert.Equal(t, 5, eval.Confidence)
	assert.Equal(t, 1, eval.Clarity)
	assert.Equal(t, 5, eval.Correctness)

	eval, fallback = parseEvaluation(ai.Payload{"unrelated": true})
	assert.True(t, fallback)
	assert.Equal(t, neutralEvaluation(), eval)
}

func TestParseSummaryClampsScore(t *testing.T) {
	summary, fallback := parseSummary(ai.Payload{
		"overall_score":         14,
		"strengths":             []any{"Clear communication", "", 42},
		"areas_for_improvement": "Go generics",
	})
	assert.False(t, fallback)
	assert.Equal(t, 10, summary.OverallScore)
	assert.Equal(t, []string{"Clear communication"}, summary.Strengths)
	assert.Equal(t, []string{"Go generics"}, summary.AreasForImprovement)
	assert.Equal(t, "Interview completed.", summary.Feedback)

	summary, fallback = parseSummary(ai.Payload{"overall_score": -3})
	assert.False(t, fallback)
	assert.Equal(t, 1, summary.OverallScore)

	summary, fallback = parseSummary(ai.Payload{"overall_score": 1e19})
	assert.False(t, fallback)
	assert.Equal(t, 10, summary.OverallScore)

	summary, fallback = parseSummary(nil)
	assert.True(t, fallback)
	assert.Equal(t, 5, summary.OverallScore)
	assert.NotNil(t, summary.Strengths)
	assert.NotNil(t, summary.AreasForImprovement)
}
