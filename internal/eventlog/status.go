package eventlog

import "github.com/tetherlabs/tether/internal/protocol"

// Status is the coarse application status folded from the event stream.
// It is derived state: only the store writes it, callers read it.
type Status string

const (
	StatusIdle            Status = "idle"
	StatusBuilding        Status = "building"
	StatusTesting         Status = "testing"
	StatusWaitingApproval Status = "waiting_approval"
	StatusError           Status = "error"
	StatusHibernated      Status = "hibernated"
)

// ParseStatus maps a backend status string to a Status. The boolean is
// false for strings the projector does not recognize.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusIdle, StatusBuilding, StatusTesting, StatusWaitingApproval,
		StatusError, StatusHibernated:
		return Status(s), true
	}
	// Backends report the running states with more granularity than the
	// client tracks.
	switch s {
	case "active", "running":
		return StatusBuilding, true
	}
	return "", false
}

// statusForEvent maps an event type to the status it implies. The
// boolean is false for event types that carry no status signal.
func statusForEvent(eventType string) (Status, bool) {
	switch eventType {
	case protocol.EventTypeTaskStart, protocol.EventTypeBuildStart:
		return StatusBuilding, true
	case protocol.EventTypeTestStart:
		return StatusTesting, true
	case protocol.EventTypeApprovalNeeded:
		return StatusWaitingApproval, true
	case protocol.EventTypeError, protocol.EventTypeFailure:
		return StatusError, true
	case protocol.EventTypeTaskComplete, protocol.EventTypeSuccess,
		protocol.EventTypeComplete:
		return StatusIdle, true
	case protocol.EventTypeHibernate:
		return StatusHibernated, true
	}
	return "", false
}

// fold applies one event's status signal to the current status. Error is
// sticky: once entered, only a success or completion signal moves the
// projection off it. An authoritative snapshot bypasses fold entirely.
func fold(current Status, eventType string) Status {
	next, ok := statusForEvent(eventType)
	if !ok {
		return current
	}
	if current == StatusError && next != StatusIdle {
		return current
	}
	return next
}
