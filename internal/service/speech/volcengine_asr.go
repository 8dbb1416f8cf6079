package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	speechmodel "github.com/zhouzirui/interview-pilot/backend/internal/model/speech"
)

const (
	volcengineNostreamURL = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"

	// 16kHz, 16bit, mono, 200ms = 6400 bytes
	audioChunkSize     = 6400
	audioChunkInterval = 200 * time.Millisecond

	volcengineSuccessCode = 20000000
)

var volcengineFormats = map[string]string{
	"wav": "raw",
	"pcm": "raw",
	"mp3": "raw",
	"ogg": "opus",
}

// VolcengineASRClient 火山引擎大模型 ASR WebSocket 客户端
type VolcengineASRClient struct {
	config   *speechmodel.SpeechConfig
	dialer   *websocket.Dialer
	endpoint string
	interval time.Duration
}

type asrUtterance struct {
	Text      string `json:"text"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Definite  bool   `json:"definite"`
}

type asrServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result,omitempty"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info,omitempty"`
}

// asrParams 首帧 JSON 参数（按火山引擎文档格式）
type asrParams struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user,omitempty"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

// NewVolcengineASRClient 创建火山引擎 ASR 客户端
func NewVolcengineASRClient(config *speechmodel.SpeechConfig) *VolcengineASRClient {
	handshake := 30 * time.Second
	if config != nil && config.Timeout > 0 {
		handshake = time.Duration(config.Timeout) * time.Second
	}
	return &VolcengineASRClient{
		config:   config,
		dialer:   &websocket.Dialer{HandshakeTimeout: handshake},
		endpoint: volcengineNostreamURL,
		interval: audioChunkInterval,
	}
}

// SupportsFormat 报告火山引擎是否接受该音频格式
func (c *VolcengineASRClient) SupportsFormat(format string) bool {
	_, ok := volcengineFormats[format]
	return ok
}

// Transcribe 建立一次 WebSocket 会话完成整段音频识别
func (c *VolcengineASRClient) Transcribe(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	appID, token, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	audio, err := io.ReadAll(req.AudioData)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	resourceID := "volc.bigasr.sauc.duration" // 小时版
	if c.config.ConcurrentMode {
		resourceID = "volc.bigasr.sauc.concurrent" // 并发版
	}
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", req.SessionID)

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ASR WebSocket: %w", err)
	}
	defer conn.Close()

	// 读取阻塞时依靠关闭连接来响应取消
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
		log.Printf("[ASR] connected session=%s logid=%s", req.SessionID, logid)
	}

	params, err := json.Marshal(c.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ASR request: %w", err)
	}
	first, err := newFullClientRequest(params)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, EncodeMessage(first)); err != nil {
		return nil, fmt.Errorf("failed to send ASR request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 发送与接收并行，服务端提前报错时可以及时停止发送
	sendErrCh := make(chan error, 1)
	go func() {
		sendErrCh <- c.sendAudio(ctx, conn, audio)
	}()

	type result struct {
		resp *speechmodel.ASRResponse
		err  error
	}
	recvCh := make(chan result, 1)
	go func() {
		resp, err := c.receive(conn, req.SessionID)
		recvCh <- result{resp: resp, err: err}
	}()

	for {
		select {
		case err := <-sendErrCh:
			if err != nil {
				return nil, fmt.Errorf("failed to send audio data: %w", err)
			}
			sendErrCh = nil
		case r := <-recvCh:
			if r.err != nil && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return r.resp, r.err
		}
	}
}

func (c *VolcengineASRClient) buildParams(req *speechmodel.ASRRequest) *asrParams {
	params := &asrParams{}
	params.User.UID = req.SessionID

	params.Audio.Format = req.Format
	if params.Audio.Format == "" {
		params.Audio.Format = "wav"
	}
	params.Audio.Codec = volcengineFormats[params.Audio.Format]
	if params.Audio.Codec == "" {
		params.Audio.Codec = "raw"
	}

	params.Audio.Language = req.Language
	if params.Audio.Language == "" && c.config != nil {
		params.Audio.Language = c.config.ASRLanguage
	}
	if params.Audio.Language == "" {
		params.Audio.Language = "en-US"
	}

	params.Audio.Rate = 16000
	params.Audio.Bits = 16
	params.Audio.Channel = 1

	params.Request.ModelName = "bigmodel"
	if c.config != nil && c.config.ASRModel != "" {
		params.Request.ModelName = c.config.ASRModel
	}
	params.Request.EnableITN = true
	params.Request.EnablePunc = true
	params.Request.ShowUtterances = true
	params.Request.ResultType = "full"
	params.Request.EndWindowSize = 800
	return params
}

// sendAudio 按 200ms 分包发送，模拟实时音频流
func (c *VolcengineASRClient) sendAudio(ctx context.Context, conn *websocket.Conn, audio []byte) error {
	sequence := int32(2) // 首帧占用序号 1
	for offset := 0; offset < len(audio); offset += audioChunkSize {
		end := offset + audioChunkSize
		if end > len(audio) {
			end = len(audio)
		}
		last := end == len(audio)

		msg, err := newAudioRequest(audio[offset:end], sequence, last)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, EncodeMessage(msg)); err != nil {
			return fmt.Errorf("failed to send audio chunk: %w", err)
		}
		if last {
			return nil
		}
		sequence++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.interval):
		}
	}
	return nil
}

func (c *VolcengineASRClient) receive(conn *websocket.Conn, sessionID string) (*speechmodel.ASRResponse, error) {
	var (
		finalText string
		duration  int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read ASR response: %w", err)
		}

		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode ASR message: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			payload, _ := msg.payloadBytes()
			return nil, fmt.Errorf("ASR error %d: %s", msg.ErrorCode, string(payload))

		case FullServerResponse:
			payload, err := msg.payloadBytes()
			if err != nil {
				return nil, fmt.Errorf("failed to decompress ASR payload: %w", err)
			}

			var serverResp asrServerMessage
			if err := json.Unmarshal(payload, &serverResp); err != nil {
				log.Printf("[ASR] failed to unmarshal response: %v", err)
				continue
			}
			if serverResp.Code != 0 && serverResp.Code != volcengineSuccessCode {
				return nil, fmt.Errorf("ASR API error %d: %s", serverResp.Code, serverResp.Message)
			}

			text := serverResp.Result.Text
			if text == "" {
				text = joinUtterances(serverResp.Result.Utterances)
			}
			if text != "" {
				finalText = text
			}
			if serverResp.AudioInfo.Duration > 0 {
				duration = serverResp.AudioInfo.Duration
			}

			if msg.IsLastPacket() || serverResp.Sequence < 0 {
				if finalText == "" {
					log.Printf("[ASR] empty transcript for session %s", sessionID)
				}
				return &speechmodel.ASRResponse{
					SessionID:  sessionID,
					Text:       strings.TrimSpace(finalText),
					Confidence: estimateConfidence(finalText),
					Duration:   duration,
					RequestID:  sessionID,
					CreatedAt:  time.Now(),
				}, nil
			}
		}
	}
}

func joinUtterances(utterances []asrUtterance) string {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if text := strings.TrimSpace(u.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func estimateConfidence(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return 0.95
}
