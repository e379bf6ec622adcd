// Package turn runs one conversational turn: record, transcribe, detect the
// intent, call a tool, compose a reply and speak it.
//
// A Pipeline threads a single mutable State through a fixed sequence of
// stages. Stage failures never abort a turn; they are captured in
// State.ErrorMessage and routed to the error handler, which records them in
// the transcript.
package turn

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/teslashibe/go-assistant/pkg/inference"
	"github.com/teslashibe/go-assistant/pkg/intent"
)

// SystemSpeaker labels notices that did not come from the conversation.
const SystemSpeaker = "System"

// Entry is one transcript row. A conversational exchange is stored as the
// user's words in Speaker and the reply in Text.
type Entry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// SystemEntry returns a notice row.
func SystemEntry(text string) Entry {
	return Entry{Speaker: SystemSpeaker, Text: text}
}

// ToolEntry returns the row recorded for a manual tool call.
func ToolEntry(tool, result string) Entry {
	return Entry{Speaker: "🔧 " + tool, Text: result}
}

// IsSystem reports whether e is a notice.
func (e Entry) IsSystem() bool {
	return e.Speaker == SystemSpeaker
}

// State is threaded through every stage of one turn.
type State struct {
	TurnID string

	// MessageLog is model context for this turn only.
	MessageLog []inference.Message

	// ChatHistory is the durable transcript, carried in and out of the turn.
	ChatHistory []Entry

	// AudioSource is where this turn's recording is written.
	AudioSource string

	CurrentUserInput string
	CurrentResponse  string

	// ErrorMessage holds the pending stage failure. Empty means none.
	ErrorMessage string

	// Failure is the first stage error of the turn. Unlike ErrorMessage it
	// is kept after the error handler ran.
	Failure *StageError

	SessionActive   bool
	ProcessingAudio bool

	DetectedIntent     intent.Label
	NeedsToolExecution bool
	ToolName           string
	ToolResults        *string

	// ToolsEnabled gates tool execution.
	ToolsEnabled bool
}

// NewState returns a fresh turn state seeded with a copy of history.
func NewState(history []Entry, audioSource string, toolsEnabled bool) *State {
	return &State{
		TurnID:        newTurnID(),
		ChatHistory:   append(make([]Entry, 0, len(history)+2), history...),
		AudioSource:   audioSource,
		SessionActive: true,
		ToolsEnabled:  toolsEnabled,
	}
}

func (s *State) appendEntry(e Entry) {
	s.ChatHistory = append(s.ChatHistory, e)
}

func newTurnID() string {
	id, err := gonanoid.New(10)
	if err != nil {
		return fmt.Sprintf("turn-%p", &id)
	}
	return id
}

// Stage names a pipeline step.
type Stage string

// Pipeline stages in execution order.
const (
	StageRecord       Stage = "record_audio"
	StageTranscribe   Stage = "transcribe"
	StageIntent       Stage = "intent_detection"
	StageTool         Stage = "tool_execution"
	StageResponse     Stage = "ai_response"
	StageSynthesis    Stage = "text_to_speech"
	StageErrorHandler Stage = "error_handler"
	StageEnd          Stage = "end"
)
