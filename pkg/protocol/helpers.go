package protocol

import (
	"encoding/json"
	"time"

	"github.com/teslashibe/go-assistant/pkg/turn"
)

// NewResultMessage answers command id.
func NewResultMessage(id string, command MessageType, value any) (*Message, error) {
	msg, err := NewMessage(TypeResult, ResultData{Command: command, Value: value})
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// NewErrorMessage reports a failed command.
func NewErrorMessage(id string, command MessageType, err error) *Message {
	// ErrorData always encodes.
	msg, _ := NewMessage(TypeError, ErrorData{Command: command, Error: err.Error()})
	msg.ID = id
	return msg
}

// NewPongMessage answers a ping sent at pingTS.
func NewPongMessage(id string, pingTS int64) *Message {
	now := time.Now().UnixMilli()
	msg, _ := NewMessage(TypePong, PongData{
		PingTS:    pingTS,
		PongTS:    now,
		LatencyMs: now - pingTS,
	})
	msg.ID = id
	return msg
}

// NewTranscriptMessage wraps a transcript snapshot. A nil entries slice is
// sent as an empty list.
func NewTranscriptMessage(sessionID string, active bool, entries []turn.Entry) (*Message, error) {
	if entries == nil {
		entries = []turn.Entry{}
	}
	return NewMessage(TypeTranscript, TranscriptData{
		SessionID: sessionID,
		Active:    active,
		Entries:   entries,
	})
}

// NewToolMessage builds a tool command.
func NewToolMessage(id, name string, args map[string]string) (*Message, error) {
	msg, err := NewMessage(TypeTool, ToolCommand{Name: name, Args: args})
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// GetToolCommand extracts a tool command.
func (m *Message) GetToolCommand() (*ToolCommand, error) {
	var cmd ToolCommand
	if err := m.ParseData(&cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// GetPingData extracts ping data.
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTranscript extracts a transcript snapshot.
func (m *Message) GetTranscript() (*TranscriptData, error) {
	var data TranscriptData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetResult extracts a result. Value is decoded into value when non-nil.
func (m *Message) GetResult(value any) (*ResultData, error) {
	var raw struct {
		Command MessageType     `json:"command"`
		Value   json.RawMessage `json:"value"`
	}
	if err := m.ParseData(&raw); err != nil {
		return nil, err
	}
	data := &ResultData{Command: raw.Command}
	if value != nil && len(raw.Value) > 0 {
		if err := json.Unmarshal(raw.Value, value); err != nil {
			return nil, err
		}
		data.Value = value
	}
	return data, nil
}

// GetError extracts an error reply.
func (m *Message) GetError() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
