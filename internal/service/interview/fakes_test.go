package interview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zhouzirui/interview-pilot/backend/internal/model/persona"
	speechmodel "github.com/zhouzirui/interview-pilot/backend/internal/model/speech"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/ai"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scriptedGenerator 按 schema 依次返回预设的 payload，最后一个会被重复使用。
type scriptedGenerator struct {
	mu        sync.Mutex
	responses map[string][]ai.Payload
	errs      map[string]error
	requests  []ai.Request
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		responses: map[string][]ai.Payload{},
		errs:      map[string]error{},
	}
}

func (g *scriptedGenerator) on(schema string, payloads ...ai.Payload) *scriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses[schema] = append(g.responses[schema], payloads...)
	return g
}

func (g *scriptedGenerator) fail(schema string, err error) *scriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[schema] = err
	return g
}

func (g *scriptedGenerator) Generate(_ context.Context, req ai.Request) (ai.Payload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)

	if err := g.errs[req.Schema]; err != nil {
		return nil, err
	}
	queue := g.responses[req.Schema]
	if len(queue) == 0 {
		return nil, errors.New("no scripted response")
	}
	payload := queue[0]
	if len(queue) > 1 {
		g.responses[req.Schema] = queue[1:]
	}
	return payload, nil
}

func (g *scriptedGenerator) count(schema string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, req := range g.requests {
		if req.Schema == schema {
			n++
		}
	}
	return n
}

// fakeTranscriber 依次返回预设文本；设置 gate 后会在返回前阻塞。
type fakeTranscriber struct {
	mu      sync.Mutex
	texts   []string
	err     error
	calls   int
	started chan struct{}
	gate    chan struct{}
}

func (t *fakeTranscriber) TranscribeBuffer(_ context.Context, sessionID string, _ []byte, _, _ string) (*speechmodel.ASRResponse, error) {
	t.mu.Lock()
	t.calls++
	idx := t.calls - 1
	started, gate, err := t.started, t.gate, t.err
	t.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	text := "I would profile first, then fix the hottest path and measure again."
	t.mu.Lock()
	if idx < len(t.texts) {
		text = t.texts[idx]
	}
	t.mu.Unlock()
	return &speechmodel.ASRResponse{SessionID: sessionID, Text: text}, nil
}

func testPersona() persona.Persona {
	return persona.Persona{
		ID:           "backend",
		Name:         "Maya",
		SystemPrompt: "You interview backend engineers.",
		Greeting:     "Welcome!",
		Topics:       []string{"Go concurrency", "Databases", "Incident response"},
	}
}

func questionPayload(text, qType, difficulty, topic string) ai.Payload {
	return ai.Payload{
		"question_text": text,
		"question_type": qType,
		"reason":        "planned",
		"difficulty":    difficulty,
		"topic":         topic,
	}
}

func evaluationPayload(confidence, clarity, correctness any) ai.Payload {
	return ai.Payload{
		"confidence_score":  confidence,
		"clarity_score":     clarity,
		"correctness_score": correctness,
		"feedback":          "Solid.",
		"follow_up_needed":  false,
	}
}

var audioSample = Audio{Data: []byte("RIFF....WAVE"), Format: "wav"}
