// Package protocol defines the JSON frames exchanged with the agent
// backend over the session socket: outbound command frames and the
// inbound tagged union of event, response, error, and auth frames.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// FrameType identifies the type of a frame on the wire.
type FrameType string

const (
	// Backend → client frame types

	// FrameTypeEvent is an asynchronous backend notification.
	FrameTypeEvent FrameType = "event"
	// FrameTypeResponse is a correlated reply to a command.
	FrameTypeResponse FrameType = "response"
	// FrameTypeError is a backend-reported command failure.
	FrameTypeError FrameType = "error"
	// FrameTypeAuthSuccess acknowledges the presented credential.
	FrameTypeAuthSuccess FrameType = "auth_success"

	// Client → backend frame types

	// FrameTypeCommand is a caller-issued instruction.
	FrameTypeCommand FrameType = "command"
)

// Well-known event types emitted by the backend.
const (
	EventTypeTaskStart      = "task_start"
	EventTypeBuildStart     = "build_start"
	EventTypeTestStart      = "test_start"
	EventTypeTaskComplete   = "task_complete"
	EventTypeSuccess        = "success"
	EventTypeComplete       = "complete"
	EventTypeError          = "error"
	EventTypeFailure        = "failure"
	EventTypeHibernate      = "hibernate"
	EventTypeApprovalNeeded = "approval_needed"
	EventTypeApprovalDone   = "approval_resolved"
)

// ErrMalformedFrame indicates an inbound frame that could not be decoded.
// Malformed frames are dropped by the dispatcher; they never terminate
// the receive loop.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is the decoded form of an inbound message. Type discriminates
// the union; Data holds the type-specific payload. Unknown fields in the
// payload are preserved in Data and ignored by the typed accessors.
type Frame struct {
	Type   FrameType       `json:"type"`
	Action string          `json:"action,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// DecodeFrame parses an inbound wire message. It returns
// ErrMalformedFrame (wrapped) for anything that is not a JSON object
// with a non-empty type tag. An unrecognized type tag is not an error
// here; the dispatcher decides what to do with it.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("%w: missing type tag", ErrMalformedFrame)
	}
	return &f, nil
}

// Event is a backend-originated notification describing a state change.
type Event struct {
	ID        *int64         `json:"id,omitempty"`
	Timestamp float64        `json:"timestamp"`
	Type      string         `json:"event_type"`
	Summary   string         `json:"summary"`
	SessionID string         `json:"session_id,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	FeatureID string         `json:"feature_id,omitempty"`
	CostUSD   float64        `json:"cost_usd,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Identity returns the deduplication key for the event: the numeric id
// when the backend assigned one, otherwise a composite of task id, event
// type, and timestamp.
func (e *Event) Identity() string {
	if e.ID != nil {
		return "id:" + strconv.FormatInt(*e.ID, 10)
	}
	return fmt.Sprintf("%s/%s/%s", e.TaskID, e.Type,
		strconv.FormatFloat(e.Timestamp, 'f', -1, 64))
}

// EventData returns the event payload if this is an event frame.
func (f *Frame) EventData() (*Event, error) {
	if f.Type != FrameTypeEvent {
		return nil, fmt.Errorf("frame is not an event: %s", f.Type)
	}
	var ev Event
	if err := json.Unmarshal(f.Data, &ev); err != nil {
		return nil, fmt.Errorf("%w: event data: %v", ErrMalformedFrame, err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("%w: event missing event_type", ErrMalformedFrame)
	}
	return &ev, nil
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	CorrelationID string `json:"correlation_id,omitempty"`
	Message       string `json:"message"`
}

// ErrorData returns the error payload if this is an error frame.
func (f *Frame) ErrorData() (*ErrorData, error) {
	if f.Type != FrameTypeError {
		return nil, fmt.Errorf("frame is not an error: %s", f.Type)
	}
	var ed ErrorData
	if err := json.Unmarshal(f.Data, &ed); err != nil {
		return nil, fmt.Errorf("%w: error data: %v", ErrMalformedFrame, err)
	}
	return &ed, nil
}

// CorrelationID extracts the correlation id embedded in a response or
// error frame's data object. Returns the empty string when the frame
// carries none (unsolicited or legacy frames).
func (f *Frame) CorrelationID() string {
	if len(f.Data) == 0 {
		return ""
	}
	var probe struct {
		CorrelationID string `json:"correlation_id"`
	}
	if err := json.Unmarshal(f.Data, &probe); err != nil {
		return ""
	}
	return probe.CorrelationID
}

// EncodeCommand serializes an outbound command frame. Data may be nil
// for commands without parameters.
func EncodeCommand(action string, data map[string]any) ([]byte, error) {
	if action == "" {
		return nil, errors.New("command action is required")
	}
	frame := struct {
		Type   FrameType      `json:"type"`
		Action string         `json:"action"`
		Data   map[string]any `json:"data,omitempty"`
	}{
		Type:   FrameTypeCommand,
		Action: action,
		Data:   data,
	}
	out, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command %q: %w", action, err)
	}
	return out, nil
}
