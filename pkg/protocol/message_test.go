package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/teslashibe/go-assistant/pkg/turn"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    any
		wantErr bool
	}{
		{
			name:    "tool command",
			msgType: TypeTool,
			data:    ToolCommand{Name: "weather", Args: map[string]string{"city": "Paris"}},
		},
		{
			name:    "nil data",
			msgType: TypeClear,
		},
		{
			name:    "unencodable",
			msgType: TypeResult,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("Type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("timestamp should be set")
			}
			if tt.data == nil && msg.Data != nil {
				t.Errorf("Data = %s, want none", msg.Data)
			}
		})
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    MessageType
		wantErr bool
	}{
		{name: "command", in: `{"type":"clear","id":"1"}`, want: TypeClear},
		{name: "with data", in: `{"type":"tool","data":{"name":"time"}}`, want: TypeTool},
		{name: "missing type", in: `{"id":"1"}`, wantErr: true},
		{name: "not json", in: `clear`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && msg.Type != tt.want {
				t.Errorf("Type = %v, want %v", msg.Type, tt.want)
			}
		})
	}
}

func TestIsCommand(t *testing.T) {
	for _, typ := range []MessageType{TypeClear, TypeRestart, TypeToggleTools, TypeTool, TypeExport, TypeStatus, TypePing} {
		if !typ.IsCommand() {
			t.Errorf("%s should be a command", typ)
		}
	}
	for _, typ := range []MessageType{TypeResult, TypeError, TypePong, TypeTranscript, "dance"} {
		if typ.IsCommand() {
			t.Errorf("%s should not be a command", typ)
		}
	}
}

func TestToolMessage(t *testing.T) {
	msg, err := NewToolMessage("7", "weather", map[string]string{"city": "Tokyo"})
	if err != nil {
		t.Fatalf("NewToolMessage() error = %v", err)
	}

	b, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	parsed, err := ParseMessage(b)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.ID != "7" {
		t.Errorf("ID = %q, want 7", parsed.ID)
	}

	cmd, err := parsed.GetToolCommand()
	if err != nil {
		t.Fatalf("GetToolCommand() error = %v", err)
	}
	if cmd.Name != "weather" || cmd.Args["city"] != "Tokyo" {
		t.Errorf("GetToolCommand() = %+v", cmd)
	}
}

func TestResultMessage(t *testing.T) {
	msg, err := NewResultMessage("3", TypeToggleTools, false)
	if err != nil {
		t.Fatalf("NewResultMessage() error = %v", err)
	}
	if msg.Type != TypeResult || msg.ID != "3" {
		t.Errorf("got type %v id %q", msg.Type, msg.ID)
	}

	enabled := true
	res, err := msg.GetResult(&enabled)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if res.Command != TypeToggleTools {
		t.Errorf("Command = %v, want %v", res.Command, TypeToggleTools)
	}
	if enabled {
		t.Error("value should decode to false")
	}
}

func TestErrorMessage(t *testing.T) {
	msg := NewErrorMessage("9", TypeExport, errors.New("no sink"))
	if msg.Type != TypeError || msg.ID != "9" {
		t.Errorf("got type %v id %q", msg.Type, msg.ID)
	}

	data, err := msg.GetError()
	if err != nil {
		t.Fatalf("GetError() error = %v", err)
	}
	if data.Command != TypeExport || data.Error != "no sink" {
		t.Errorf("GetError() = %+v", data)
	}
}

func TestPongMessage(t *testing.T) {
	msg := NewPongMessage("p", 1000)

	var pong PongData
	if err := msg.ParseData(&pong); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if pong.PingTS != 1000 {
		t.Errorf("PingTS = %v, want 1000", pong.PingTS)
	}
	if pong.LatencyMs != pong.PongTS-pong.PingTS {
		t.Errorf("LatencyMs = %v, want %v", pong.LatencyMs, pong.PongTS-pong.PingTS)
	}
}

func TestTranscriptMessage(t *testing.T) {
	t.Run("entries", func(t *testing.T) {
		entries := []turn.Entry{{Speaker: "hi", Text: "hello"}, turn.SystemEntry("Session ended")}
		msg, err := NewTranscriptMessage("s1", false, entries)
		if err != nil {
			t.Fatalf("NewTranscriptMessage() error = %v", err)
		}

		data, err := msg.GetTranscript()
		if err != nil {
			t.Fatalf("GetTranscript() error = %v", err)
		}
		if data.SessionID != "s1" || data.Active {
			t.Errorf("got session %q active %v", data.SessionID, data.Active)
		}
		if len(data.Entries) != 2 || data.Entries[1].Speaker != turn.SystemSpeaker {
			t.Errorf("Entries = %+v", data.Entries)
		}
	})

	t.Run("nil entries encode as list", func(t *testing.T) {
		msg, err := NewTranscriptMessage("s1", true, nil)
		if err != nil {
			t.Fatalf("NewTranscriptMessage() error = %v", err)
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			t.Fatal(err)
		}
		if string(raw["entries"]) != "[]" {
			t.Errorf("entries = %s, want []", raw["entries"])
		}
	})
}
