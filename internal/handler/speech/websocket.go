package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	sessionhandler "github.com/zhouzirui/interview-pilot/backend/internal/handler/session"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/interview"
	speechsvc "github.com/zhouzirui/interview-pilot/backend/internal/service/speech"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	// maxBufferedAudio 单个回答在连接上累积的音频上限
	maxBufferedAudio = 32 << 20
)

// InterviewEngine WebSocket 通道使用的面试操作
type InterviewEngine interface {
	SubmitAnswer(ctx context.Context, sessionID string, audio interview.Audio) (*interview.TurnResult, error)
	RecordAnomaly(sessionID string, faceMissingSeconds int) error
	Status(sessionID string) (*interview.Snapshot, error)
}

// WebSocketHandler 面试回答的实时通道：客户端分片上传音频，服务端推送评估结果和下一题。
type WebSocketHandler struct {
	engine   InterviewEngine
	registry *ConnectionRegistry
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(engine InterviewEngine) *WebSocketHandler {
	return &WebSocketHandler{
		engine:   engine,
		registry: NewConnectionRegistry(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/ws", h.handleWebSocket)
}

// Registry exposes the live connection registry.
func (h *WebSocketHandler) Registry() *ConnectionRegistry {
	return h.registry
}

// Close 关闭所有连接
func (h *WebSocketHandler) Close() {
	h.registry.CloseAll()
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// AudioMessage 音频分片，audioData 为 base64
type AudioMessage struct {
	AudioData []byte `json:"audioData"`
	Format    string `json:"format"`
	Language  string `json:"language"`
	IsFinal   bool   `json:"isFinal"`
}

// AnomalyMessage 前端检测到的异常
type AnomalyMessage struct {
	FaceMissingSeconds int `json:"faceMissingSeconds"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type errorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// connectionState 单个连接上正在累积的回答
type connectionState struct {
	sessionID string
	conn      *wsConn

	mu       sync.Mutex
	buffer   bytes.Buffer
	format   string
	language string
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	snap, err := h.engine.Status(sessionID)
	if err != nil {
		status, message := sessionhandler.ErrorStatus(err)
		http.Error(w, message, status)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	conn := &wsConn{conn: raw}
	h.registry.add(sessionID, conn)
	defer func() {
		h.registry.remove(sessionID, conn)
		raw.Close()
	}()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	// 断开连接只会停止等待，正在处理的回答仍会在引擎中提交
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	raw.SetReadLimit(maxBufferedAudio)
	raw.SetReadDeadline(time.Now().Add(readTimeout))
	raw.SetPongHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, conn)

	state := &connectionState{sessionID: sessionID, conn: conn}
	h.send(state, "connected", snap)

	for {
		var msg inboundMessage
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error session=%s: %v", sessionID, err)
			}
			return
		}
		raw.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, state, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "audio":
		h.handleAudioMessage(ctx, state, msg.Data)
	case "anomaly":
		h.handleAnomalyMessage(state, msg.Data)
	case "status":
		h.sendStatus(state, "status")
	default:
		h.sendError(state, http.StatusBadRequest, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleAudioMessage(ctx context.Context, state *connectionState, raw json.RawMessage) {
	var audio AudioMessage
	if err := json.Unmarshal(raw, &audio); err != nil {
		h.sendError(state, http.StatusBadRequest, "invalid audio payload")
		return
	}

	state.mu.Lock()
	if state.buffer.Len()+len(audio.AudioData) > maxBufferedAudio {
		state.buffer.Reset()
		state.mu.Unlock()
		h.sendError(state, http.StatusRequestEntityTooLarge, "answer audio too large")
		return
	}
	state.buffer.Write(audio.AudioData)
	if audio.Format != "" {
		state.format = audio.Format
	}
	if audio.Language != "" {
		state.language = audio.Language
	}
	if !audio.IsFinal {
		state.mu.Unlock()
		return
	}

	answer := interview.Audio{
		Data:     bytes.Clone(state.buffer.Bytes()),
		Format:   speechsvc.NormalizeFormat(state.format),
		Language: state.language,
	}
	state.buffer.Reset()
	state.mu.Unlock()

	log.Printf("[websocket] submitting answer session=%s format=%s bytes=%d", state.sessionID, answer.Format, len(answer.Data))

	// 回答处理可能需要数秒，放到独立 goroutine 中以便继续读取控制帧；
	// 同一会话的并发提交由引擎拒绝。
	go func() {
		result, err := h.engine.SubmitAnswer(ctx, state.sessionID, answer)
		if err != nil {
			status, message := sessionhandler.ErrorStatus(err)
			if status >= http.StatusInternalServerError {
				log.Printf("[websocket] submit failed session=%s: %v", state.sessionID, err)
			}
			h.sendError(state, status, message)
			return
		}
		h.send(state, "turn", result)
	}()
}

func (h *WebSocketHandler) handleAnomalyMessage(state *connectionState, raw json.RawMessage) {
	var anomaly AnomalyMessage
	if err := json.Unmarshal(raw, &anomaly); err != nil {
		h.sendError(state, http.StatusBadRequest, "invalid anomaly payload")
		return
	}
	if err := h.engine.RecordAnomaly(state.sessionID, anomaly.FaceMissingSeconds); err != nil {
		status, message := sessionhandler.ErrorStatus(err)
		h.sendError(state, status, message)
		return
	}
	h.sendStatus(state, "anomaly")
}

func (h *WebSocketHandler) sendStatus(state *connectionState, msgType string) {
	snap, err := h.engine.Status(state.sessionID)
	if err != nil {
		status, message := sessionhandler.ErrorStatus(err)
		h.sendError(state, status, message)
		return
	}
	h.send(state, msgType, snap)
}

func (h *WebSocketHandler) send(state *connectionState, msgType string, data any) {
	msg := outgoingMessage{
		Type:      msgType,
		SessionID: state.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := state.conn.writeJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed session=%s: %v", msgType, state.sessionID, err)
	}
}

func (h *WebSocketHandler) sendError(state *connectionState, status int, message string) {
	h.send(state, "error", errorPayload{Message: message, Status: status})
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.writePing(); err != nil {
				return
			}
		}
	}
}
