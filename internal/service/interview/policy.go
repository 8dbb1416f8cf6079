package interview

import (
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/interview-pilot/backend/internal/analysis/answer"
	model "github.com/zhouzirui/interview-pilot/backend/internal/model/interview"
	"github.com/zhouzirui/interview-pilot/backend/internal/model/persona"
)

// Policy 出题规则的参数。
type Policy struct {
	// WrapUpThreshold 剩余时间低于该值时只允许收尾题。
	WrapUpThreshold time.Duration
	// MaxTopicDwell 同一话题连续提问的上限。
	MaxTopicDwell int
	// HistoryWindow 提示词中携带的最近轮次数。
	HistoryWindow int
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		WrapUpThreshold: 120 * time.Second,
		MaxTopicDwell:   3,
		HistoryWindow:   3,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.WrapUpThreshold < 0 {
		p.WrapUpThreshold = 0
	}
	if p.MaxTopicDwell < 1 {
		p.MaxTopicDwell = def.MaxTopicDwell
	}
	if p.HistoryWindow < 1 {
		p.HistoryWindow = def.HistoryWindow
	}
	return p
}

// Directive 是针对下一题计算出的确定性约束，同时用于生成提示词与校正模型输出。
type Directive struct {
	First  bool
	WrapUp bool

	// 以下字段只在非首题时有意义，描述最近一轮回答。
	Meta          bool
	Weak          bool
	Strong        bool
	DwellExceeded bool
	Dwell         int

	LastAnswer     string
	Previous       model.Question
	NextTopic      string
	RemainingTopic []string
}

// Decide 根据最近一轮回答和剩余时间计算下一题的约束。
func (p Policy) Decide(pers persona.Persona, history []model.Turn, remaining time.Duration, isFirst bool) Directive {
	p = p.withDefaults()
	d := Directive{
		First:  isFirst,
		WrapUp: remaining < p.WrapUpThreshold,
	}
	d.RemainingTopic = uncoveredTopics(pers.Topics, history)
	if len(d.RemainingTopic) > 0 {
		d.NextTopic = d.RemainingTopic[0]
	}
	if isFirst || len(history) == 0 {
		return d
	}

	last := history[len(history)-1]
	d.Previous = last.Question
	d.LastAnswer = last.Answer
	d.Dwell = topicDwell(history)
	d.DwellExceeded = d.Dwell >= p.MaxTopicDwell

	analysis := answer.Analyze(last.Answer)
	if analysis.Kind == answer.Meta {
		d.Meta = true
		return d
	}

	eval := last.Evaluation
	d.Weak = analysis.Kind == answer.Vague || eval.Clarity <= 2 || eval.Correctness <= 2
	d.Strong = !d.Weak && eval.Clarity >= 4 && eval.Correctness >= 4
	return d
}

// Enforce 把模型给出的题目修正到约束允许的范围内。
func (d Directive) Enforce(q model.Question) model.Question {
	if d.First {
		if q.Type == model.WrapUp {
			q.Type = model.Behavioral
		}
		q.Difficulty = model.Low
		return q
	}

	if d.Weak {
		sameTopic := q.Topic == "" || strings.EqualFold(strings.TrimSpace(q.Topic), strings.TrimSpace(d.Previous.Topic))
		limit := d.Previous.Difficulty.Lower()
		if sameTopic && q.Difficulty.Rank() > limit.Rank() {
			q.Difficulty = limit
		}
	}

	if d.WrapUp {
		q.Type = model.WrapUp
	}
	return q
}

// Fallback 返回模型不可用时的回退题目。回退同样遵守约束：
// 确认类话语后重复上一题，回答薄弱或话题停留过久时转向下一个未覆盖的话题。
func (d Directive) Fallback() model.Question {
	q := fallbackQuestion()
	if d.First {
		return q
	}

	switch {
	case d.Meta && strings.TrimSpace(d.Previous.Text) != "":
		q = d.Previous
		q.Text = "Yes, I can hear you clearly. " + strings.TrimSpace(d.Previous.Text)
		q.Reason = "Repeat the previous question"
	case (d.Weak || d.DwellExceeded) && d.NextTopic != "":
		q = model.Question{
			Text:       fmt.Sprintf("Let's move on to something different. Could you tell me about your experience with %s?", d.NextTopic),
			Type:       model.Technical,
			Reason:     "Move to the next topic",
			Difficulty: model.Medium,
			Topic:      d.NextTopic,
		}
		if d.Weak {
			q.Difficulty = d.Previous.Difficulty.Lower()
		}
	}
	return q
}

// Instructions 返回需要写入提示词的出题要求。
func (d Directive) Instructions(pers persona.Persona, threshold time.Duration) []string {
	var out []string

	if d.First {
		out = append(out,
			"Generate the first question to start the interview.",
			"It must be a welcoming, low-pressure opening question, for example asking the candidate to introduce themselves or talk about their background.",
			"Use difficulty \"low\" and do not use the wrap-up type.",
		)
		if greeting := strings.TrimSpace(pers.Greeting); greeting != "" {
			out = append(out, fmt.Sprintf("Open with a greeting in the spirit of: %q", greeting))
		}
		return out
	}

	switch {
	case d.Meta:
		out = append(out,
			fmt.Sprintf("The candidate's last utterance (%q) was about the call itself, not an answer.", d.LastAnswer),
			fmt.Sprintf("Briefly confirm that you can hear them clearly, then repeat your previous question (%q) or move on to the next planned topic.", d.Previous.Text),
			"Do not evaluate or comment on that utterance.",
		)
	case d.Weak:
		out = append(out,
			"The last answer was short, vague or weak. Do NOT keep pressing on it.",
			fmt.Sprintf("Gently pivot to a new topic, or ask a simpler question with difficulty no higher than %q.", d.Previous.Difficulty.Lower()),
		)
	case d.Strong && !d.DwellExceeded:
		out = append(out, "The last answer was strong. You may ask a deeper follow-up on the same topic.")
	default:
		out = append(out, "Ask the next question that best advances the topics to evaluate.")
	}

	if d.DwellExceeded && !d.Meta {
		if d.NextTopic != "" {
			out = append(out, fmt.Sprintf("You have already asked %d consecutive questions about %q. Move on to the next uncovered topic: %q.", d.Dwell, d.Previous.Topic, d.NextTopic))
		} else {
			out = append(out, fmt.Sprintf("You have already asked %d consecutive questions about %q. Move on to a different topic.", d.Dwell, d.Previous.Topic))
		}
	}

	if d.WrapUp {
		out = append(out,
			fmt.Sprintf("Less than %d seconds remain. Start wrapping up with a closing question, for example whether the candidate has any questions for you.", int(threshold.Seconds())),
			"The question_type must be \"wrap-up\".",
		)
	}

	out = append(out, "Be conversational and encouraging.")
	return out
}

// topicDwell 统计末尾连续相同话题的轮数，话题为空时视为 1。
func topicDwell(history []model.Turn) int {
	if len(history) == 0 {
		return 0
	}
	topic := strings.TrimSpace(history[len(history)-1].Question.Topic)
	if topic == "" {
		return 1
	}

	count := 0
	for i := len(history) - 1; i >= 0; i-- {
		if !strings.EqualFold(strings.TrimSpace(history[i].Question.Topic), topic) {
			break
		}
		count++
	}
	return count
}

func uncoveredTopics(topics []string, history []model.Turn) []string {
	covered := make(map[string]struct{}, len(history))
	for _, turn := range history {
		if t := strings.ToLower(strings.TrimSpace(turn.Question.Topic)); t != "" {
			covered[t] = struct{}{}
		}
	}

	remaining := make([]string, 0, len(topics))
	for _, topic := range topics {
		if _, ok := covered[strings.ToLower(strings.TrimSpace(topic))]; !ok {
			remaining = append(remaining, topic)
		}
	}
	return remaining
}
