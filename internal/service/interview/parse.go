package interview

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	model "github.com/zhouzirui/interview-pilot/backend/internal/model/interview"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/ai"
)

// 模型输出缺失或无法解析时使用的默认值。

func fallbackQuestion() model.Question {
	return model.Question{
		Text:       "Could you elaborate on that?",
		Type:       model.Behavioral,
		Reason:     "Follow up",
		Difficulty: model.Medium,
	}
}

func neutralEvaluation() model.Evaluation {
	return model.Evaluation{
		Confidence:     3,
		Clarity:        3,
		Correctness:    3,
		Feedback:       "Good answer.",
		FollowUpNeeded: false,
	}
}

func neutralSummary() model.Summary {
	return model.Summary{
		OverallScore:        5,
		Strengths:           []string{},
		AreasForImprovement: []string{},
		Feedback:            "Interview completed.",
	}
}

// parseQuestion 把模型输出转换为题目。没有题干时整体回退，其余字段逐项补默认值。
// 第二个返回值表示是否使用了整体回退。
func parseQuestion(payload ai.Payload) (model.Question, bool) {
	fallback := fallbackQuestion()
	text := stringField(payload, "question_text", "questionText", "question")
	if text == "" {
		return fallback, true
	}

	q := model.Question{
		Text:       text,
		Type:       fallback.Type,
		Reason:     fallback.Reason,
		Difficulty: fallback.Difficulty,
		Topic:      stringField(payload, "topic"),
	}
	if t, ok := model.ParseQuestionType(stringField(payload, "question_type", "questionType", "type")); ok {
		q.Type = t
	}
	if reason := stringField(payload, "reason", "rationale"); reason != "" {
		q.Reason = reason
	}
	if d, ok := model.ParseDifficulty(stringField(payload, "difficulty")); ok {
		q.Difficulty = d
	}
	return q, false
}

// parseEvaluation 解析评分，分数取整并限制在 [1,5]。第二个返回值表示是否整体回退。
func parseEvaluation(payload ai.Payload) (model.Evaluation, bool) {
	eval := neutralEvaluation()
	if len(payload) == 0 {
		return eval, true
	}

	found := false
	if v, ok := numberField(payload, "confidence_score", "confidenceScore", "confidence"); ok {
		eval.Confidence, found = clampScore(v, 1, 5), true
	}
	if v, ok := numberField(payload, "clarity_score", "clarityScore", "clarity"); ok {
		eval.Clarity, found = clampScore(v, 1, 5), true
	}
	if v, ok := numberField(payload, "correctness_score", "correctnessScore", "correctness"); ok {
		eval.Correctness, found = clampScore(v, 1, 5), true
	}
	if feedback := stringField(payload, "feedback"); feedback != "" {
		eval.Feedback, found = feedback, true
	}
	if v, ok := boolField(payload, "follow_up_needed", "followUpNeeded"); ok {
		eval.FollowUpNeeded, found = v, true
	}
	return eval, !found
}

// parseSummary 解析总结，总分限制在 [1,10]。第二个返回值表示是否整体回退。
func parseSummary(payload ai.Payload) (model.Summary, bool) {
	summary := neutralSummary()
	if len(payload) == 0 {
		return summary, true
	}

	found := false
	if v, ok := numberField(payload, "overall_score", "overallScore", "score"); ok {
		summary.OverallScore, found = clampScore(v, 1, 10), true
	}
	if items, ok := stringListField(payload, "strengths"); ok {
		summary.Strengths, found = items, true
	}
	if items, ok := stringListField(payload, "areas_for_improvement", "areasForImprovement", "improvements"); ok {
		summary.AreasForImprovement, found = items, true
	}
	if feedback := stringField(payload, "summary_feedback", "summaryFeedback", "feedback"); feedback != "" {
		summary.Feedback, found = feedback, true
	}
	return summary, !found
}

func lookup(payload ai.Payload, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := payload[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringField(payload ai.Payload, keys ...string) string {
	v, ok := lookup(payload, keys...)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64, json.Number, bool:
		return strings.TrimSpace(toString(val))
	default:
		return ""
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// numberField 接受数字或数字字符串，例如 4、"4"、"4.5"、"4/5"。
func numberField(payload ai.Payload, keys ...string) (float64, bool) {
	v, ok := lookup(payload, keys...)
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, !math.IsNaN(val) && !math.IsInf(val, 0)
	case int:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		raw := strings.TrimSpace(val)
		if idx := strings.Index(raw, "/"); idx > 0 {
			raw = strings.TrimSpace(raw[:idx])
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func boolField(payload ai.Payload, keys ...string) (bool, bool) {
	v, ok := lookup(payload, keys...)
	if !ok {
		return false, false
	}
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(val)))
		if err != nil {
			switch strings.ToLower(strings.TrimSpace(val)) {
			case "yes", "y":
				return true, true
			case "no", "n":
				return false, true
			}
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

func stringListField(payload ai.Payload, keys ...string) ([]string, bool) {
	v, ok := lookup(payload, keys...)
	if !ok {
		return nil, false
	}
	switch val := v.(type) {
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					items = append(items, s)
				}
			}
		}
		return items, true
	case []string:
		items := make([]string, 0, len(val))
		for _, s := range val {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		return items, true
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}, true
		}
		return []string{}, true
	default:
		return nil, false
	}
}

// clampScore 先在 float64 上限定范围再取整，超大数值不会溢出。
func clampScore(v float64, lo, hi int) int {
	switch {
	case math.IsNaN(v) || v < float64(lo):
		return lo
	case v > float64(hi):
		return hi
	}
	n := int(math.Round(v))
	if n > hi {
		return hi
	}
	return n
}
