package interview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	speechmodel "github.com/zhouzirui/interview-pilot/backend/internal/model/speech"
)

var hangingAudio = Audio{Data: []byte("hang"), Format: "wav"}

// hangingTranscriber 对内容为 "hang" 的音频一直阻塞到 release 关闭，其余立即返回。
type hangingTranscriber struct {
	started chan struct{}
	release chan struct{}
}

func (h *hangingTranscriber) TranscribeBuffer(_ context.Context, sessionID string, audio []byte, _, _ string) (*speechmodel.ASRResponse, error) {
	if string(audio) == "hang" {
		h.started <- struct{}{}
		<-h.release
	}
	return &speechmodel.ASRResponse{SessionID: sessionID, Text: "I would profile first, then fix the hottest path and measure again."}, nil
}

func TestHungTurnsDoNotStallOtherSessions(t *testing.T) {
	clock := newFakeClock()
	gen := newScriptedGenerator().
		on("question", questionPayload("Tell me about yourself.", "behavioral", "low", "")).
		on("evaluation", evaluationPayload(4, 4, 4)).
		on("summary", evaluationPayload(4, 4, 4))
	transcriber := &hangingTranscriber{started: make(chan struct{}, 16), release: make(chan struct{})}

	engine := NewEngine(gen, transcriber, DefaultConfig(), WithClock(clock.Now))
	defer engine.Close()
	defer close(transcriber.release)

	const hung = 8
	ids := make([]string, 0, hung+1)
	for i := 0; i < hung+1; i++ {
		snap, err := engine.CreateSession(context.Background(), testPersona(), 30)
		require.NoError(t, err)
		ids = append(ids, snap.SessionID)
	}

	errs := make(chan error, hung)
	for _, id := range ids[:hung] {
		go func(id string) {
			_, err := engine.SubmitAnswer(context.Background(), id, hangingAudio)
			errs <- err
		}(id)
	}
	for i := 0; i < hung; i++ {
		select {
		case <-transcriber.started:
		case <-time.After(time.Second):
			t.Fatalf("only %d transcriptions started", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := engine.CreateSession(ctx, testPersona(), 30)
	require.NoError(t, err, "creation must not wait for other sessions' calls")

	idle := ids[hung]
	_, err = engine.Summary(ctx, idle)
	require.NoError(t, err)

	res, err := engine.SubmitAnswer(ctx, idle, audioSample)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TurnIndex)

	// 卡住的会话自己的总结仍有槽位可用
	_, err = engine.Summary(ctx, ids[0])
	require.NoError(t, err)

	transcriber.release <- struct{}{}
	require.NoError(t, <-errs)
}

func TestConcurrentCreationAndTurnsStayIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const (
		busySessions = 4
		creators     = 16
		perCreator   = 4
		answers      = 3
	)

	busy := make([]string, 0, busySessions)
	for i := 0; i < busySessions; i++ {
		snap, err := f.engine.CreateSession(ctx, testPersona(), 30)
		require.NoError(t, err)
		busy = append(busy, snap.SessionID)
	}

	var (
		mu      sync.Mutex
		created = make(map[string]struct{})
		wg      sync.WaitGroup
		stop    = make(chan struct{})
	)

	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perCreator; j++ {
				snap, err := f.engine.CreateSession(ctx, testPersona(), 15)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				created[snap.SessionID] = struct{}{}
				mu.Unlock()
			}
		}()
	}

	for _, id := range busy {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < answers; j++ {
				res, err := f.engine.SubmitAnswer(ctx, id, audioSample)
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, j, res.TurnIndex)
			}
		}(id)
	}

	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func(i int) {
			defer readers.Done()
			id := busy[i%len(busy)]
			for {
				select {
				case <-stop:
					return
				default:
				}
				_, ok := f.engine.Store().Get(id)
				assert.True(t, ok)
				snap, err := f.engine.Status(id)
				if assert.NoError(t, err) {
					assert.Equal(t, StateActive, snap.State)
				}
				f.engine.Stats()
			}
		}(i)
	}

	wg.Wait()
	close(stop)
	readers.Wait()

	assert.Len(t, created, creators*perCreator, "session ids must be unique")
	for _, id := range busy {
		_, dup := created[id]
		assert.False(t, dup)

		session, ok := f.engine.Store().Get(id)
		require.True(t, ok)
		history := session.History()
		require.Len(t, history, answers)
		for i, turn := range history {
			assert.Equal(t, i, turn.Index)
		}
	}
	assert.Equal(t, busySessions+creators*perCreator, f.engine.Store().Len())
	assert.Equal(t, int64(busySessions*answers), f.engine.Stats().TurnsCompleted)
}
