// Package protocol defines the JSON messages exchanged with the browser UI
// over /ws/control and /ws/transcript.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-assistant/pkg/turn"
)

// MessageType identifies a message.
type MessageType string

const (
	// UI → assistant commands.
	TypeClear       MessageType = "clear"
	TypeRestart     MessageType = "restart"
	TypeToggleTools MessageType = "toggle_tools"
	TypeTool        MessageType = "tool"
	TypeExport      MessageType = "export"
	TypeStatus      MessageType = "status"
	TypePing        MessageType = "ping"

	// Assistant → UI.
	TypeResult     MessageType = "result"
	TypeError      MessageType = "error"
	TypePong       MessageType = "pong"
	TypeTranscript MessageType = "transcript"
)

// IsCommand reports whether t is a command the UI may send.
func (t MessageType) IsCommand() bool {
	switch t {
	case TypeClear, TypeRestart, TypeToggleTools, TypeTool, TypeExport, TypeStatus, TypePing:
		return true
	}
	return false
}

// Message wraps every payload. ID correlates a reply with its command.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}
	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      raw,
	}, nil
}

// ParseData unmarshals the payload into v. A message without data leaves
// v untouched.
func (m *Message) ParseData(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON encoding.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes a message.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// ToolCommand asks for a manual tool call.
type ToolCommand struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"`
}

// PingData carries the client's send time.
type PingData struct {
	Timestamp int64 `json:"ts"`
}

// PongData answers a ping.
type PongData struct {
	PingTS    int64 `json:"ping_ts"`
	PongTS    int64 `json:"pong_ts"`
	LatencyMs int64 `json:"latency_ms"`
}

// ResultData is the reply to a successful command. Value depends on the
// command: the tool output, the export location, the new tools setting or
// a status object.
type ResultData struct {
	Command MessageType `json:"command"`
	Value   any         `json:"value,omitempty"`
}

// ErrorData is the reply to a failed command.
type ErrorData struct {
	Command MessageType `json:"command,omitempty"`
	Error   string      `json:"error"`
}

// TranscriptData is a transcript snapshot.
type TranscriptData struct {
	SessionID string       `json:"session_id"`
	Active    bool         `json:"session_active"`
	Entries   []turn.Entry `json:"entries"`
}
