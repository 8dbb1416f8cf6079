package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrClosed 表示池已关闭，不再接受新的调用。
var ErrClosed = errors.New("dispatch: pool closed")

// Pool 运行外部能力调用（大模型、语音识别），每个调用在独立的 goroutine 中执行。
// 并发上限按 key（会话 ID）分别计算：一个会话的慢调用只会让同一会话的后续调用排队，
// 不同 key 之间互不影响。空 key 不受限制。
type Pool struct {
	perKey   int64
	mu       sync.Mutex
	keys     map[string]*keySlot
	closed   bool
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

type keySlot struct {
	sem  *semaphore.Weighted
	refs int
}

// New creates a pool allowing perKey concurrent calls for each key; values below 1 mean 1.
func New(perKey int) *Pool {
	if perKey < 1 {
		perKey = 1
	}
	return &Pool{perKey: int64(perKey), keys: make(map[string]*keySlot)}
}

// Submit 等待 key 的空闲槽位后在新的 goroutine 中运行 fn，返回的 channel 在 fn 结束后关闭。
// ctx 只控制排队等待，fn 开始执行后不受其影响。
func (p *Pool) Submit(ctx context.Context, key string, fn func()) (<-chan struct{}, error) {
	slot, err := p.acquireSlot(key)
	if err != nil {
		return nil, err
	}

	if slot != nil {
		if err := slot.sem.Acquire(ctx, 1); err != nil {
			p.releaseSlot(key, slot, false)
			return nil, err
		}
	}

	done := make(chan struct{})
	p.inFlight.Add(1)
	go func() {
		defer func() {
			p.inFlight.Add(-1)
			p.releaseSlot(key, slot, true)
			close(done)
		}()
		fn()
	}()
	return done, nil
}

// acquireSlot 登记一次调用并返回 key 对应的信号量；空 key 返回 nil。
func (p *Pool) acquireSlot(key string) (*keySlot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	p.wg.Add(1)
	if key == "" {
		return nil, nil
	}

	slot, ok := p.keys[key]
	if !ok {
		slot = &keySlot{sem: semaphore.NewWeighted(p.perKey)}
		p.keys[key] = slot
	}
	slot.refs++
	return slot, nil
}

func (p *Pool) releaseSlot(key string, slot *keySlot, acquired bool) {
	if slot != nil {
		if acquired {
			slot.sem.Release(1)
		}
		p.mu.Lock()
		slot.refs--
		if slot.refs == 0 {
			delete(p.keys, key)
		}
		p.mu.Unlock()
	}
	p.wg.Done()
}

// Call 通过池执行 fn 并等待结果。
func Call[T any](ctx context.Context, p *Pool, key string, fn func(context.Context) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	done, submitErr := p.Submit(ctx, key, func() {
		out, err = fn(ctx)
	})
	if submitErr != nil {
		var zero T
		return zero, submitErr
	}
	<-done
	return out, err
}

// InFlight 返回正在执行的调用数。
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// PerKey 返回每个 key 的槽位数。
func (p *Pool) PerKey() int {
	return int(p.perKey)
}

// Keys 返回当前有调用登记的 key 数。
func (p *Pool) Keys() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Close 拒绝新的调用并等待已提交的调用完成。
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
