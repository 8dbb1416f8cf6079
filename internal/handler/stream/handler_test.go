package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/interview-pilot/backend/internal/service/interview"
)

// countdownSource 每次查询剩余时间减一秒；归零后再被查询 finishAfter 次才结束
type countdownSource struct {
	mu          sync.Mutex
	remaining   int
	finished    bool
	finishAfter int
	zeroPolls   int
}

func (c *countdownSource) Status(sessionID string) (*interview.Snapshot, error) {
	if sessionID != "s-1" {
		return nil, interview.ErrSessionNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.remaining == 0 && !c.finished {
		if c.zeroPolls >= c.finishAfter {
			c.finished = true
		}
		c.zeroPolls++
	}

	snap := &interview.Snapshot{SessionID: sessionID, State: interview.StateActive, TimeRemaining: c.remaining}
	if c.finished {
		snap.State = interview.StateFinished
	}
	if c.remaining > 0 {
		c.remaining--
	}
	return snap, nil
}

func serve(ctx context.Context, source StatusSource, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	New(source, time.Millisecond).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestClockStreamsUntilSessionFinished(t *testing.T) {
	rr := serve(context.Background(), &countdownSource{remaining: 3, finishAfter: 2}, "/session/s-1/clock")

	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rr.Body.String()
	if got := strings.Count(body, "event: status"); got != 4 {
		t.Fatalf("expected 4 status events, got %d:\n%s", got, body)
	}
	if got := strings.Count(body, "event: expired"); got != 1 {
		t.Fatalf("expected a single expired event, got %d:\n%s", got, body)
	}
	if !strings.Contains(body, "event: finished") {
		t.Fatalf("expected finished event:\n%s", body)
	}
	if strings.Index(body, "event: expired") > strings.Index(body, "event: finished") {
		t.Fatalf("expired must precede finished:\n%s", body)
	}
	if !strings.Contains(body, `"timeRemaining":3`) || !strings.Contains(body, `"timeRemaining":1`) {
		t.Fatalf("missing countdown values:\n%s", body)
	}
}

func TestClockExpiredActiveSessionIsNotFinished(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	rr := serve(ctx, &countdownSource{remaining: 0, finishAfter: 1 << 30}, "/session/s-1/clock")
	body := rr.Body.String()
	if strings.Count(body, "event: expired") != 1 {
		t.Fatalf("expected a single expired event:\n%s", body)
	}
	if strings.Contains(body, "event: finished") {
		t.Fatalf("active session must not be reported finished:\n%s", body)
	}
	if !strings.Contains(body, `"state":"active"`) {
		t.Fatalf("expected active state in events:\n%s", body)
	}
}

func TestClockFinishedSessionEmitsSingleEvent(t *testing.T) {
	rr := serve(context.Background(), &countdownSource{remaining: 100, finished: true}, "/session/s-1/clock")

	body := rr.Body.String()
	if strings.Contains(body, "event: status") || strings.Count(body, "event: finished") != 1 {
		t.Fatalf("unexpected stream:\n%s", body)
	}
}

func TestClockStopsWhenClientLeaves(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	rr := serve(ctx, &countdownSource{remaining: 1 << 30}, "/session/s-1/clock")
	if strings.Contains(rr.Body.String(), "event: finished") {
		t.Fatal("stream should end without finished event")
	}
}

func TestClockUnknownSession(t *testing.T) {
	rr := serve(context.Background(), &countdownSource{}, "/session/other/clock")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
