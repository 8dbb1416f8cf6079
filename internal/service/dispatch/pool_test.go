package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBoundsConcurrencyPerKey(t *testing.T) {
	pool := New(2)
	release := make(chan struct{})

	var running, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Call(context.Background(), pool, "session-a", func(context.Context) (struct{}, error) {
				now := running.Add(1)
				for {
					old := peak.Load()
					if now <= old || peak.CompareAndSwap(old, now) {
						break
					}
				}
				<-release
				running.Add(-1)
				return struct{}{}, nil
			})
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return pool.InFlight() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(2), peak.Load())
	assert.Equal(t, 0, pool.InFlight())
	assert.Equal(t, 0, pool.Keys())
}

func TestBlockedKeyDoesNotStallOtherKeys(t *testing.T) {
	pool := New(1)
	block := make(chan struct{})
	defer close(block)

	for i := 0; i < 8; i++ {
		key := string(rune('a' + i))
		_, err := pool.Submit(context.Background(), key, func() { <-block })
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return pool.InFlight() == 8 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := Call(ctx, pool, "other", func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	got, err = Call(ctx, pool, "", func(context.Context) (string, error) { return "free", nil })
	require.NoError(t, err)
	assert.Equal(t, "free", got)
}

func TestCallReturnsValueAndError(t *testing.T) {
	pool := New(1)

	got, err := Call(context.Background(), pool, "k", func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	boom := errors.New("boom")
	_, err = Call(context.Background(), pool, "k", func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestSubmitHonoursContextWhileQueued(t *testing.T) {
	pool := New(1)
	block := make(chan struct{})
	done, err := pool.Submit(context.Background(), "k", func() { <-block })
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Submit(ctx, "k", func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	<-done
	assert.Equal(t, 0, pool.Keys())
}

func TestCloseWaitsAndRejects(t *testing.T) {
	pool := New(1)
	var finished atomic.Bool
	_, err := pool.Submit(context.Background(), "k", func() {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})
	require.NoError(t, err)

	pool.Close()
	assert.True(t, finished.Load())

	_, err = pool.Submit(context.Background(), "k", func() {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 1, pool.PerKey())
}
