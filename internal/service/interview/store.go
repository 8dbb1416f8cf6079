package interview

import (
	"log"
	"sync"
	"time"
)

// Store 保存所有面试会话。锁只保护 map 本身。
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	// 正在处理的回答，Close 时等待它们提交
	turns sync.WaitGroup

	clock     Clock
	retention time.Duration
	stats     *Stats
	stop      chan struct{}
	sweepDone chan struct{}
}

// StoreOption 配置 Store。
type StoreOption func(*Store)

// WithRetention 启用清理：结束（或预算耗尽）超过 d 的会话会被移除。0 表示永久保留。
func WithRetention(d time.Duration) StoreOption {
	return func(s *Store) { s.retention = d }
}

// WithStoreClock 替换清理使用的时钟。
func WithStoreClock(clock Clock) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func withStoreStats(stats *Stats) StoreOption {
	return func(s *Store) { s.stats = stats }
}

// NewStore 创建会话存储，启用保留期时会启动后台清理。
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		clock:    time.Now,
		stats:    &Stats{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.retention > 0 {
		s.stop = make(chan struct{})
		s.sweepDone = make(chan struct{})
		go s.sweepLoop()
	}
	return s
}

// Add 注册会话，ID 冲突时拒绝。
func (s *Store) Add(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, exists := s.sessions[session.ID]; exists {
		return ErrDuplicateSession
	}
	s.sessions[session.ID] = session
	return nil
}

// Get 按 ID 查找会话。
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Range 遍历会话快照，fn 返回 false 时停止。遍历期间不持有锁。
func (s *Store) Range(fn func(*Session) bool) {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	for _, session := range sessions {
		if !fn(session) {
			return
		}
	}
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// beginTurn 登记一个进行中的回答，返回的函数在提交后调用。
// 调用方必须已持有会话的回答令牌：Sweep 在同一把锁内检查令牌，
// 因此这里确认会话仍在册后，它在提交前不会被清理。
func (s *Store) beginTurn(session *Session) (func(), error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if current, ok := s.sessions[session.ID]; !ok || current != session {
		return nil, ErrSessionNotFound
	}
	s.turns.Add(1)
	return s.turns.Done, nil
}

// Sweep 移除在 now-retention 之前结束的会话，处理中的会话跳过。返回移除数量。
func (s *Store) Sweep(now time.Time) int {
	if s.retention <= 0 {
		return 0
	}
	cutoff := now.Add(-s.retention)

	var expired []*Session
	s.Range(func(session *Session) bool {
		if session.expiredBefore(cutoff) {
			expired = append(expired, session)
		}
		return true
	})
	if len(expired) == 0 {
		return 0
	}

	removed := 0
	s.mu.Lock()
	for _, session := range expired {
		if session.turnInFlight() {
			continue
		}
		delete(s.sessions, session.ID)
		removed++
	}
	s.mu.Unlock()

	if removed > 0 {
		s.stats.sessionsSwept.Add(int64(removed))
		log.Printf("[interview] swept %d expired sessions", removed)
	}
	return removed
}

func (s *Store) sweepLoop() {
	defer close(s.sweepDone)

	interval := s.retention / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(s.clock())
		case <-s.stop:
			return
		}
	}
}

// Close 拒绝新的会话与回答，停止清理并等待处理中的回答提交。重复调用是安全的。
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
		<-s.sweepDone
	}
	s.turns.Wait()
}
