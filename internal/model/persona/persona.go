package persona

import (
	"strings"

	"github.com/lithammer/shortuuid/v4"
)

// Persona 描述一场面试中面试官的固定行为设定，会话创建后不可变。
type Persona struct {
	ID           string   `json:"agentId" yaml:"id"`
	Name         string   `json:"name,omitempty" yaml:"name"`
	Title        string   `json:"title,omitempty" yaml:"title"`
	SystemPrompt string   `json:"systemPrompt" yaml:"system_prompt"`
	Greeting     string   `json:"initialGreeting" yaml:"initial_greeting"`
	Topics       []string `json:"topicsToEvaluate" yaml:"topics_to_evaluate"`
	Language     string   `json:"language,omitempty" yaml:"language"`
}

// Normalize trims free-text fields and fills the identifier and language when absent.
func (p Persona) Normalize() Persona {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = shortuuid.New()
	}
	p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
	p.Greeting = strings.TrimSpace(p.Greeting)
	p.Language = strings.TrimSpace(p.Language)
	if p.Language == "" {
		p.Language = "en-US"
	}

	topics := make([]string, 0, len(p.Topics))
	for _, topic := range p.Topics {
		if topic = strings.TrimSpace(topic); topic != "" {
			topics = append(topics, topic)
		}
	}
	p.Topics = topics
	return p
}

// Seed 提供内置的面试官预设，未配置预设文件时使用。
func Seed() []Persona {
	return []Persona{
		{
			ID:    "backend-engineer",
			Name:  "Maya",
			Title: "Staff Backend Engineer",
			SystemPrompt: "You are Maya, a staff backend engineer interviewing a candidate for a senior Go backend role. " +
				"Be friendly but rigorous: probe for concrete experience, trade-offs and failure handling. " +
				"Keep questions short and conversational, one question at a time.",
			Greeting: "Hi, thanks for joining today. I'm Maya, I lead the platform team. Let's have a relaxed conversation about your experience.",
			Topics: []string{
				"Go concurrency",
				"API design",
				"Databases and consistency",
				"Observability and incident response",
				"Team collaboration",
			},
			Language: "en-US",
		},
		{
			ID:    "product-manager",
			Name:  "Daniel",
			Title: "Group Product Manager",
			SystemPrompt: "You are Daniel, a group product manager interviewing a product manager candidate. " +
				"Be warm and curious, ask for specific examples and measurable outcomes.",
			Greeting: "Hello and welcome! I'm Daniel. I'd love to hear about the products you've built.",
			Topics: []string{
				"Product discovery",
				"Prioritization",
				"Stakeholder management",
				"Metrics and experimentation",
			},
			Language: "en-US",
		},
		{
			ID:    "data-scientist",
			Name:  "Priya",
			Title: "Principal Data Scientist",
			SystemPrompt: "You are Priya, a principal data scientist interviewing a data science candidate. " +
				"Balance statistics fundamentals with practical modelling questions and stay encouraging.",
			Greeting: "Hi there, I'm Priya. Thanks for making the time, let's talk data.",
			Topics: []string{
				"Statistics fundamentals",
				"Feature engineering",
				"Model evaluation",
				"Communicating results",
			},
			Language: "en-US",
		},
	}
}
