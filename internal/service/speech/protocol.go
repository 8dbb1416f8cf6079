package speech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// 火山引擎大模型 ASR 使用的二进制帧格式：
// 4 字节 header，可选 4 字节 sequence，4 字节 payload size，然后是 payload。
// 错误帧在 payload size 之前额外携带 4 字节错误码。

// ProtocolVersion 二进制协议版本
const ProtocolVersion = 0b0001

// MessageType 消息类型
type MessageType uint8

const (
	FullClientRequest  MessageType = 0b0001
	AudioOnlyRequest   MessageType = 0b0010
	FullServerResponse MessageType = 0b1001
	ServerAck          MessageType = 0b1011
	ErrorMessage       MessageType = 0b1111
)

// MessageFlags 描述 sequence 字段的含义
type MessageFlags uint8

const (
	NoSequenceNumber       MessageFlags = 0b0000
	PositiveSequenceNumber MessageFlags = 0b0001
	LastPacketNoSequence   MessageFlags = 0b0010
	NegativeSequenceNumber MessageFlags = 0b0011
)

// SerializationMethod 序列化方法
type SerializationMethod uint8

const (
	NoSerialization   SerializationMethod = 0b0000
	JSONSerialization SerializationMethod = 0b0001
)

// CompressionMethod 压缩方法
type CompressionMethod uint8

const (
	NoCompression   CompressionMethod = 0b0000
	GzipCompression CompressionMethod = 0b0001
)

// Header 帧头，每个字段占 4 bit（Reserved 占 8 bit）
type Header struct {
	ProtocolVersion     uint8
	HeaderSize          uint8 // 以 4 字节为单位
	MessageType         MessageType
	MessageFlags        MessageFlags
	SerializationMethod SerializationMethod
	CompressionMethod   CompressionMethod
	Reserved            uint8
}

// Message 一帧完整消息
type Message struct {
	Header    Header
	Sequence  int32
	ErrorCode uint32
	Payload   []byte
}

// NewHeader 创建 4 字节帧头
func NewHeader(msgType MessageType, flags MessageFlags, serialization SerializationMethod, compression CompressionMethod) Header {
	return Header{
		ProtocolVersion:     ProtocolVersion,
		HeaderSize:          1,
		MessageType:         msgType,
		MessageFlags:        flags,
		SerializationMethod: serialization,
		CompressionMethod:   compression,
	}
}

func (h Header) bytes() [4]byte {
	return [4]byte{
		h.ProtocolVersion<<4 | h.HeaderSize&0x0F,
		uint8(h.MessageType)<<4 | uint8(h.MessageFlags)&0x0F,
		uint8(h.SerializationMethod)<<4 | uint8(h.CompressionMethod)&0x0F,
		h.Reserved,
	}
}

func parseHeader(raw [4]byte) (Header, error) {
	h := Header{
		ProtocolVersion:     raw[0] >> 4,
		HeaderSize:          raw[0] & 0x0F,
		MessageType:         MessageType(raw[1] >> 4),
		MessageFlags:        MessageFlags(raw[1] & 0x0F),
		SerializationMethod: SerializationMethod(raw[2] >> 4),
		CompressionMethod:   CompressionMethod(raw[2] & 0x0F),
		Reserved:            raw[3],
	}
	if h.ProtocolVersion != ProtocolVersion {
		return Header{}, fmt.Errorf("unsupported protocol version: %d", h.ProtocolVersion)
	}
	if h.HeaderSize == 0 {
		return Header{}, fmt.Errorf("invalid header size 0")
	}
	return h, nil
}

func (m *Message) hasSequence() bool {
	switch m.Header.MessageFlags & 0b0011 {
	case PositiveSequenceNumber, NegativeSequenceNumber:
		return true
	default:
		return false
	}
}

// IsLastPacket 判断是否为最后一包
func (m *Message) IsLastPacket() bool {
	switch m.Header.MessageFlags & 0b0011 {
	case LastPacketNoSequence, NegativeSequenceNumber:
		return true
	default:
		return false
	}
}

// EncodeMessage 编码为一帧二进制数据
func EncodeMessage(msg *Message) []byte {
	var buf bytes.Buffer
	header := msg.Header.bytes()
	buf.Write(header[:])

	var word [4]byte
	if msg.hasSequence() {
		binary.BigEndian.PutUint32(word[:], uint32(msg.Sequence))
		buf.Write(word[:])
	}
	if msg.Header.MessageType == ErrorMessage {
		binary.BigEndian.PutUint32(word[:], msg.ErrorCode)
		buf.Write(word[:])
	}
	binary.BigEndian.PutUint32(word[:], uint32(len(msg.Payload)))
	buf.Write(word[:])
	buf.Write(msg.Payload)
	return buf.Bytes()
}

// DecodeMessage 解码一帧二进制数据
func DecodeMessage(r io.Reader) (*Message, error) {
	var raw [4]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}

	// 跳过扩展头
	if extra := int(header.HeaderSize)*4 - 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extra)); err != nil {
			return nil, fmt.Errorf("failed to read extended header: %w", err)
		}
	}

	msg := &Message{Header: header}
	var word [4]byte

	if msg.hasSequence() {
		if _, err := io.ReadFull(r, word[:]); err != nil {
			return nil, fmt.Errorf("failed to read sequence: %w", err)
		}
		msg.Sequence = int32(binary.BigEndian.Uint32(word[:]))
	}

	if header.MessageType == ErrorMessage {
		if _, err := io.ReadFull(r, word[:]); err != nil {
			return nil, fmt.Errorf("failed to read error code: %w", err)
		}
		msg.ErrorCode = binary.BigEndian.Uint32(word[:])
	}

	if _, err := io.ReadFull(r, word[:]); err != nil {
		return nil, fmt.Errorf("failed to read payload size: %w", err)
	}
	size := binary.BigEndian.Uint32(word[:])
	if size > 0 {
		msg.Payload = make([]byte, size)
		if _, err := io.ReadFull(r, msg.Payload); err != nil {
			return nil, fmt.Errorf("failed to read payload (expected %d bytes): %w", size, err)
		}
	}
	return msg, nil
}

// newFullClientRequest 构造携带 JSON 参数的首帧，payload 使用 gzip 压缩。
func newFullClientRequest(params []byte) (*Message, error) {
	payload, err := gzipBytes(params)
	if err != nil {
		return nil, err
	}
	return &Message{
		Header:  NewHeader(FullClientRequest, NoSequenceNumber, JSONSerialization, GzipCompression),
		Payload: payload,
	}, nil
}

// newAudioRequest 构造音频帧，最后一包使用负序号。
func newAudioRequest(chunk []byte, sequence int32, last bool) (*Message, error) {
	payload, err := gzipBytes(chunk)
	if err != nil {
		return nil, err
	}

	flags := PositiveSequenceNumber
	if last {
		flags = NegativeSequenceNumber
		sequence = -sequence
	}
	return &Message{
		Header:   NewHeader(AudioOnlyRequest, flags, NoSerialization, GzipCompression),
		Sequence: sequence,
		Payload:  payload,
	}, nil
}

// payloadBytes 按帧头声明的压缩方式还原 payload
func (m *Message) payloadBytes() ([]byte, error) {
	switch m.Header.CompressionMethod {
	case NoCompression:
		return m.Payload, nil
	case GzipCompression:
		return gunzipBytes(m.Payload)
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", m.Header.CompressionMethod)
	}
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("gzip write failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip close failed: %w", err)
	}
	return buf.Bytes(), nil
}

func gunzipBytes(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader creation failed: %w", err)
	}
	defer reader.Close()

	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gzip read failed: %w", err)
	}
	return out, nil
}
