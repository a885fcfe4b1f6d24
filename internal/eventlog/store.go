// Package eventlog maintains the client-side view of the backend
// session: a bounded, newest-first log of lifecycle events, the
// deduplicated set of approvals awaiting user resolution, and the
// coarse status folded from the stream.
package eventlog

import (
	"sync"

	"github.com/tetherlabs/tether/internal/protocol"
)

// DefaultCapacity is the event log capacity used when none is configured.
const DefaultCapacity = 200

// Approval is a pending approval request derived from an
// approval_needed event.
type Approval struct {
	// Identity is the deduplication key of the underlying event.
	Identity string
	// TaskID is the task the approval belongs to, when known.
	TaskID string
	// Summary is the human-readable description from the event.
	Summary string
	// Event is the event that raised the approval.
	Event protocol.Event
}

// Store holds the in-memory session view. All methods are safe for
// concurrent use; in practice the dispatch loop is the only writer for
// event ingestion, and command paths only resolve approvals.
type Store struct {
	mu       sync.RWMutex
	capacity int

	// events is ordered newest-first. seen tracks the identity of every
	// event currently in the log for idempotent ingestion.
	events []protocol.Event
	seen   map[string]struct{}

	// approvals is keyed by event identity. resolved tombstones keep a
	// resolved approval from reappearing when the underlying event is
	// redelivered after the fact; resolvedOrder bounds the tombstones.
	approvals     map[string]*Approval
	resolved      map[string]struct{}
	resolvedOrder []string

	status Status
}

// NewStore creates a Store with the given event log capacity.
// Non-positive capacities fall back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity:  capacity,
		events:    make([]protocol.Event, 0, capacity),
		seen:      make(map[string]struct{}, capacity),
		approvals: make(map[string]*Approval),
		resolved:  make(map[string]struct{}),
		status:    StatusIdle,
	}
}

// Ingest records an inbound event. Duplicates (by identity) are dropped
// silently and return false. New events are prepended to the log,
// evicting the oldest entry when capacity is exceeded, and folded into
// the status projection. approval_needed events enter the
// pending-approval set unless already resolved.
func (s *Store) Ingest(ev protocol.Event) bool {
	identity := ev.Identity()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[identity]; dup {
		return false
	}
	s.seen[identity] = struct{}{}

	s.events = append([]protocol.Event{ev}, s.events...)
	if len(s.events) > s.capacity {
		oldest := s.events[len(s.events)-1]
		delete(s.seen, oldest.Identity())
		s.events = s.events[:s.capacity]
	}

	switch ev.Type {
	case protocol.EventTypeApprovalNeeded:
		if _, done := s.resolved[identity]; !done {
			s.approvals[identity] = &Approval{
				Identity: identity,
				TaskID:   ev.TaskID,
				Summary:  ev.Summary,
				Event:    ev,
			}
		}
	case protocol.EventTypeApprovalDone:
		s.resolveLocked(ev.TaskID)
	}

	s.status = fold(s.status, ev.Type)
	return true
}

// ResolveApproval removes a pending approval by its identity or by its
// task id. Removal is idempotent: resolving an absent approval is a
// no-op, and a resolved approval never re-enters the set regardless of
// how many duplicate events are delivered afterwards.
func (s *Store) ResolveApproval(key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveLocked(key)
}

// resolveLocked removes matching approvals and records tombstones.
// Caller must hold s.mu.
func (s *Store) resolveLocked(key string) {
	for identity, ap := range s.approvals {
		if identity == key || (ap.TaskID != "" && ap.TaskID == key) {
			delete(s.approvals, identity)
			s.tombstoneLocked(identity)
		}
	}
	// Tombstone the key itself so a late approval_needed delivery for an
	// approval resolved while disconnected stays out of the set.
	s.tombstoneLocked(key)
}

func (s *Store) tombstoneLocked(identity string) {
	if _, ok := s.resolved[identity]; ok {
		return
	}
	s.resolved[identity] = struct{}{}
	s.resolvedOrder = append(s.resolvedOrder, identity)
	if len(s.resolvedOrder) > s.capacity {
		delete(s.resolved, s.resolvedOrder[0])
		s.resolvedOrder = s.resolvedOrder[1:]
	}
}

// ApplyStatusSnapshot overrides the projected status with an
// authoritative value from a status query. A snapshot that says the
// backend is not waiting on approval clears the pending set: anything
// still in it was resolved while the client was disconnected.
func (s *Store) ApplyStatusSnapshot(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = status
	if status != StatusWaitingApproval {
		for identity := range s.approvals {
			delete(s.approvals, identity)
			s.tombstoneLocked(identity)
		}
	}
}

// Status returns the current projected status.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Events returns a copy of the event log, newest first.
func (s *Store) Events() []protocol.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of events currently retained.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// PendingApprovals returns the approvals awaiting resolution.
func (s *Store) PendingApprovals() []Approval {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Approval, 0, len(s.approvals))
	for _, ap := range s.approvals {
		out = append(out, *ap)
	}
	return out
}
