package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/interview-pilot/backend/internal/model/persona"
)

// BuildInterviewerPrompt 把面试官预设拼成系统提示词。
func BuildInterviewerPrompt(p persona.Persona) string {
	var builder strings.Builder

	directive := strings.TrimSpace(p.SystemPrompt)
	if directive == "" {
		directive = "You are a professional interviewer."
	}
	builder.WriteString(directive)

	if name := strings.TrimSpace(p.Name); name != "" {
		builder.WriteString("\n\nInterviewer: ")
		builder.WriteString(name)
		if title := strings.TrimSpace(p.Title); title != "" {
			builder.WriteString(", ")
			builder.WriteString(title)
		}
	}

	if len(p.Topics) > 0 {
		builder.WriteString("\n\nTopics to evaluate, in order:\n")
		for i, topic := range p.Topics {
			builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, topic))
		}
	}

	builder.WriteString("\nInterview rules:\n")
	for _, rule := range interviewRules {
		builder.WriteString("- ")
		builder.WriteString(rule)
		builder.WriteString("\n")
	}

	if lang := strings.TrimSpace(p.Language); lang != "" {
		builder.WriteString("\nConduct the interview in language: ")
		builder.WriteString(lang)
	}
	return strings.TrimSpace(builder.String())
}

var interviewRules = []string{
	"Ask exactly one question at a time and keep it short enough to answer out loud.",
	"Stay in character and keep a professional, encouraging tone.",
	"Never reveal scores or evaluation notes to the candidate.",
	"Do not repeat a question that was already answered.",
}
