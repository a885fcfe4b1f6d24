package client

import (
	"encoding/json"
	"sync"
)

// result is the terminal outcome of a correlated command: either a
// response payload or an error, never both.
type result struct {
	data json.RawMessage
	err  error
}

// pendingRequest is one in-flight correlated command. done is buffered
// so completion never blocks the dispatch loop.
type pendingRequest struct {
	id     string
	action string
	done   chan result
}

// pendingTable tracks in-flight correlated commands keyed by correlation
// id. An entry is removed exactly once: by a matching response or error
// frame, by timeout, by caller cancellation, or by Close.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingRequest
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingRequest)}
}

// register adds a new entry. Correlation ids are uuids, so collisions
// are not a practical concern; a duplicate id is rejected regardless.
func (t *pendingTable) register(id, action string) (*pendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[id]; exists {
		return nil, false
	}
	req := &pendingRequest{
		id:     id,
		action: action,
		done:   make(chan result, 1),
	}
	t.entries[id] = req
	return req, true
}

// remove deletes the entry without completing it. Returns false when the
// entry was already gone (a completion raced the caller).
func (t *pendingTable) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; !ok {
		return false
	}
	delete(t.entries, id)
	return true
}

// resolve completes the entry with a response payload. Returns false for
// unknown ids (late, duplicate, or unsolicited responses).
func (t *pendingTable) resolve(id string, data json.RawMessage) bool {
	return t.complete(id, result{data: data})
}

// fail completes the entry with an error.
func (t *pendingTable) fail(id string, err error) bool {
	return t.complete(id, result{err: err})
}

func (t *pendingTable) complete(id string, res result) bool {
	t.mu.Lock()
	req, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	req.done <- res
	return true
}

// failAll completes every entry with err. Used on Close so no caller is
// left suspended.
func (t *pendingTable) failAll(err error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*pendingRequest)
	t.mu.Unlock()
	for _, req := range entries {
		req.done <- result{err: err}
	}
}

// size returns the number of in-flight entries.
func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
