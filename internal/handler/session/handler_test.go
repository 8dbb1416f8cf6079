package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/interview-pilot/backend/internal/model/persona"
	speechmodel "github.com/zhouzirui/interview-pilot/backend/internal/model/speech"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/ai"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/interview"
	speechsvc "github.com/zhouzirui/interview-pilot/backend/internal/service/speech"
)

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, req ai.Request) (ai.Payload, error) {
	switch req.Schema {
	case "question":
		return ai.Payload{"question_text": "How do goroutines communicate?", "question_type": "technical", "difficulty": "medium"}, nil
	case "evaluation":
		return ai.Payload{"confidence_score": 4, "clarity_score": 4, "correctness_score": 5, "feedback": "Clear."}, nil
	default:
		return ai.Payload{"overall_score": 8, "strengths": []any{"Concurrency"}, "summary_feedback": "Strong."}, nil
	}
}

type stubTranscriber struct {
	mu     sync.Mutex
	err    error
	format string
}

func (s *stubTranscriber) TranscribeBuffer(_ context.Context, sessionID string, _ []byte, format, _ string) (*speechmodel.ASRResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.format = format
	if s.err != nil {
		return nil, s.err
	}
	return &speechmodel.ASRResponse{SessionID: sessionID, Text: "Goroutines communicate over channels and share memory only behind a mutex."}, nil
}

func setupRouter(t *testing.T) (*chi.Mux, *interview.Engine, *stubTranscriber) {
	t.Helper()
	transcriber := &stubTranscriber{}
	engine := interview.NewEngine(stubGenerator{}, transcriber, interview.DefaultConfig())
	t.Cleanup(engine.Close)

	r := chi.NewRouter()
	New(engine, persona.NewMemoryStore(persona.Seed())).RegisterRoutes(r)
	return r, engine, transcriber
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func doAudio(t *testing.T, r http.Handler, sessionID, filename string, audio []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		t.Fatalf("CreateFormFile err: %v", err)
	}
	part.Write(audio)
	writer.WriteField("language", "en-US")
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close err: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/session/"+sessionID+"/audio", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func startSession(t *testing.T, r http.Handler) startResponse {
	t.Helper()
	rr := doJSON(r, http.MethodPost, "/session/start", map[string]any{"personaId": "backend-engineer", "durationMinutes": 30})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp startResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	return resp
}

func TestStartSessionWithPreset(t *testing.T) {
	r, _, _ := setupRouter(t)
	resp := startSession(t, r)

	if resp.SessionID == "" {
		t.Fatal("expected session id")
	}
	if resp.TimeRemaining != 30*60 {
		t.Fatalf("unexpected time remaining %d", resp.TimeRemaining)
	}
	if resp.FirstQuestion == nil || resp.FirstQuestion.Difficulty != "low" {
		t.Fatalf("expected low difficulty opening question, got %#v", resp.FirstQuestion)
	}
}

func TestStartSessionWithInlinePersona(t *testing.T) {
	r, _, _ := setupRouter(t)
	rr := doJSON(r, http.MethodPost, "/session/start", map[string]any{
		"persona": map[string]any{
			"systemPrompt":     "You interview SREs.",
			"topicsToEvaluate": []string{"On-call"},
		},
		"durationMinutes": 10,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestStartSessionValidation(t *testing.T) {
	r, _, _ := setupRouter(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"unknown persona", map[string]any{"personaId": "nobody", "durationMinutes": 10}},
		{"missing persona", map[string]any{"durationMinutes": 10}},
		{"zero duration", map[string]any{"personaId": "backend-engineer", "durationMinutes": 0}},
		{"negative duration", map[string]any{"personaId": "backend-engineer", "durationMinutes": -3}},
		{"overflowing duration", map[string]any{"personaId": "backend-engineer", "durationMinutes": int64(1) << 40}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(r, http.MethodPost, "/session/start", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestAudioAnswerFlow(t *testing.T) {
	r, _, transcriber := setupRouter(t)
	start := startSession(t, r)

	rr := doAudio(t, r, start.SessionID, "answer.webm", []byte("webm-bytes"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var result interview.TurnResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode turn result: %v", err)
	}
	if result.TurnIndex != 0 || result.Finished || result.NextQuestion == nil {
		t.Fatalf("unexpected turn result %#v", result)
	}
	if result.Evaluation.Correctness != 5 {
		t.Fatalf("unexpected evaluation %#v", result.Evaluation)
	}
	if transcriber.format != "webm" {
		t.Fatalf("expected webm format, got %q", transcriber.format)
	}

	status := doJSON(r, http.MethodGet, "/session/"+start.SessionID, nil)
	if status.Code != http.StatusOK || !strings.Contains(status.Body.String(), `"turnCount":1`) {
		t.Fatalf("unexpected status response %d: %s", status.Code, status.Body.String())
	}
}

func TestAudioErrors(t *testing.T) {
	r, _, transcriber := setupRouter(t)
	start := startSession(t, r)

	if rr := doAudio(t, r, "missing", "a.wav", []byte("x")); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := doAudio(t, r, start.SessionID, "a.wav", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty audio, got %d", rr.Code)
	}

	transcriber.err = errors.New("upstream timeout")
	rr := doAudio(t, r, start.SessionID, "a.wav", []byte("x"))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "speech recognition failed") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}

	transcriber.err = speechsvc.ErrUnsupportedFormat
	if rr := doAudio(t, r, start.SessionID, "a.wav", []byte("x")); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported format, got %d", rr.Code)
	}
}

func TestEndSummaryAndReport(t *testing.T) {
	r, _, _ := setupRouter(t)
	start := startSession(t, r)

	if rr := doJSON(r, http.MethodPost, "/session/"+start.SessionID+"/end", map[string]int{"faceMissingSeconds": -3}); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr := doJSON(r, http.MethodPost, "/session/"+start.SessionID+"/end", map[string]int{"faceMissingSeconds": 12})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"faceMissingSeconds":12`) {
		t.Fatalf("unexpected end response %d: %s", rr.Code, rr.Body.String())
	}

	doAudio(t, r, start.SessionID, "a.wav", []byte("x"))

	rr = doJSON(r, http.MethodGet, "/session/"+start.SessionID+"/summary", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"overallScore":8`) {
		t.Fatalf("unexpected summary %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(r, http.MethodGet, "/session/"+start.SessionID+"/report", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var report interview.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.History) != 1 || report.Snapshot.FaceMissingSeconds != 12 {
		t.Fatalf("unexpected report %#v", report)
	}

	if rr := doJSON(r, http.MethodGet, "/session/missing/summary", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	r, _, _ := setupRouter(t)
	startSession(t, r)

	rr := doJSON(r, http.MethodGet, "/stats", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"sessionsCreated":1`) {
		t.Fatalf("unexpected stats %d: %s", rr.Code, rr.Body.String())
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{interview.ErrSessionNotFound, http.StatusNotFound},
		{interview.ErrSessionFinished, http.StatusConflict},
		{interview.ErrTurnInProgress, http.StatusConflict},
		{interview.ErrNoAudio, http.StatusBadRequest},
		{interview.ErrStoreClosed, http.StatusServiceUnavailable},
		{context.Canceled, statusClientClosedRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := ErrorStatus(tc.err); got != tc.want {
			t.Errorf("ErrorStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}

	status, message := ErrorStatus(errors.New("dial tcp 10.0.0.1: secret detail"))
	if status != http.StatusInternalServerError || strings.Contains(message, "secret") {
		t.Fatalf("internal errors must stay opaque, got %d %q", status, message)
	}
}
