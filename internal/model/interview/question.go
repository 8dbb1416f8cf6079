package interview

import "strings"

// QuestionType 题目类型
type QuestionType string

const (
	Technical  QuestionType = "technical"
	Behavioral QuestionType = "behavioral"
	WrapUp     QuestionType = "wrap-up"
)

// Difficulty 题目难度
type Difficulty string

const (
	Low    Difficulty = "low"
	Medium Difficulty = "medium"
	High   Difficulty = "high"
)

// Question is one interviewer question.
type Question struct {
	Text       string       `json:"questionText"`
	Type       QuestionType `json:"questionType"`
	Reason     string       `json:"reason"`
	Difficulty Difficulty   `json:"difficulty"`
	Topic      string       `json:"topic,omitempty"`
}

// ParseQuestionType 将模型返回的类型归一化，无法识别时返回 false。
func ParseQuestionType(raw string) (QuestionType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("_", "-", " ", "-").Replace(normalized)
	switch normalized {
	case "technical":
		return Technical, true
	case "behavioral", "behavioural":
		return Behavioral, true
	case "wrap-up", "wrapup", "closing":
		return WrapUp, true
	default:
		return "", false
	}
}

// ParseDifficulty 将模型返回的难度归一化，无法识别时返回 false。
func ParseDifficulty(raw string) (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low", "easy":
		return Low, true
	case "medium", "moderate":
		return Medium, true
	case "high", "hard":
		return High, true
	default:
		return "", false
	}
}

// Lower returns the next easier difficulty; Low stays Low.
func (d Difficulty) Lower() Difficulty {
	switch d {
	case High:
		return Medium
	default:
		return Low
	}
}

// Rank orders difficulties from Low (0) to High (2).
func (d Difficulty) Rank() int {
	switch d {
	case Low:
		return 0
	case High:
		return 2
	default:
		return 1
	}
}
