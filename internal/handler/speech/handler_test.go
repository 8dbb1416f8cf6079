package speech

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	speechmodel "github.com/zhouzirui/interview-pilot/backend/internal/model/speech"
	speechsvc "github.com/zhouzirui/interview-pilot/backend/internal/service/speech"
)

type fakeTranscriber struct {
	sessionID string
	format    string
	language  string
	err       error
}

func (f *fakeTranscriber) TranscribeBuffer(_ context.Context, sessionID string, _ []byte, format, language string) (*speechmodel.ASRResponse, error) {
	f.sessionID, f.format, f.language = sessionID, format, language
	if f.err != nil {
		return nil, f.err
	}
	return &speechmodel.ASRResponse{SessionID: sessionID, Text: "ok"}, nil
}

func transcribeRequest(t *testing.T, filename string, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename != "" {
		part, err := writer.CreateFormFile("audio", filename)
		if err != nil {
			t.Fatalf("CreateFormFile err: %v", err)
		}
		if _, err := part.Write([]byte("audio")); err != nil {
			t.Fatalf("write audio err: %v", err)
		}
	}
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close err: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/speech/transcribe", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serveTranscribe(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestTranscribeInfersFormatAndDefaults(t *testing.T) {
	fake := &fakeTranscriber{}
	rr := serveTranscribe(New(fake, "whisper"), transcribeRequest(t, "clip.MP3", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if fake.format != "mp3" || fake.language != "en-US" || fake.sessionID != "mic-check" {
		t.Fatalf("unexpected call: %#v", fake)
	}
}

func TestTranscribeUsesFormFields(t *testing.T) {
	fake := &fakeTranscriber{}
	req := transcribeRequest(t, "clip", map[string]string{"sessionId": "s-9", "language": "zh-CN", "format": "ogg"})
	rr := serveTranscribe(New(fake, "volcengine"), req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if fake.sessionID != "s-9" || fake.language != "zh-CN" || fake.format != "ogg" {
		t.Fatalf("unexpected call: %#v", fake)
	}
}

func TestTranscribeErrors(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		err      error
		want     int
	}{
		{"missing file", "", nil, http.StatusBadRequest},
		{"unsupported format", "clip.aiff", speechsvc.ErrUnsupportedFormat, http.StatusBadRequest},
		{"upstream failure", "clip.wav", errors.New("asr down"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serveTranscribe(New(&fakeTranscriber{err: tc.err}, "volcengine"), transcribeRequest(t, tc.filename, nil))
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestTranscribeUnavailable(t *testing.T) {
	rr := serveTranscribe(New(nil, ""), transcribeRequest(t, "clip.wav", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
