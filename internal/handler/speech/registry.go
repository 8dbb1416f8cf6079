package speech

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// wsConn 包装连接，gorilla/websocket 同一时刻只允许一个写者。
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// ConnectionRegistry 每个面试会话最多保留一个活动连接，新连接会顶替旧连接。
type ConnectionRegistry struct {
	mu          sync.Mutex
	connections map[string]*wsConn
}

// NewConnectionRegistry 创建连接注册表
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{connections: make(map[string]*wsConn)}
}

// add 注册连接，已存在的旧连接会被关闭
func (r *ConnectionRegistry) add(sessionID string, conn *wsConn) {
	r.mu.Lock()
	old, exists := r.connections[sessionID]
	r.connections[sessionID] = conn
	r.mu.Unlock()

	if exists && old != conn {
		old.mu.Lock()
		old.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "replaced by a newer connection"),
			time.Now().Add(time.Second))
		old.mu.Unlock()
		old.conn.Close()
	}
}

// remove 只移除仍属于该连接的登记，避免误删顶替者
func (r *ConnectionRegistry) remove(sessionID string, conn *wsConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.connections[sessionID]; ok && current == conn {
		delete(r.connections, sessionID)
	}
}

// Len returns the number of live connections.
func (r *ConnectionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections)
}

// CloseAll 关闭所有连接
func (r *ConnectionRegistry) CloseAll() {
	r.mu.Lock()
	conns := r.connections
	r.connections = make(map[string]*wsConn)
	r.mu.Unlock()

	for _, c := range conns {
		c.conn.Close()
	}
}
