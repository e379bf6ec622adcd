package turn

import (
	"errors"
	"fmt"
)

// Kind classifies a stage failure.
type Kind int

const (
	Recording Kind = iota + 1
	Transcription
	IntentDetection
	ToolExecution
	Response
	Synthesis
	UnexpectedFault
)

var kindLabels = map[Kind]string{
	Recording:       "Audio recording error",
	Transcription:   "Transcription error",
	IntentDetection: "Intent detection error",
	ToolExecution:   "Tool execution error",
	Response:        "AI response error",
	Synthesis:       "TTS error",
	UnexpectedFault: "Unexpected error",
}

func (k Kind) String() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// StageError is a failure captured by a stage.
type StageError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err carries a StageError of kind k.
func IsKind(err error, k Kind) bool {
	var se *StageError
	return errors.As(err, &se) && se.Kind == k
}

// FaultError is a defect the pipeline could not turn into a stage error,
// such as a panic inside a collaborator.
type FaultError struct {
	Stage Stage
	Value any
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("unexpected fault in %s: %v", e.Stage, e.Value)
}

func (e *FaultError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
