package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tetherlabs/tether/internal/client"
	"github.com/tetherlabs/tether/internal/config"
	"github.com/tetherlabs/tether/internal/eventlog"
	"github.com/tetherlabs/tether/internal/protocol"
)

// mockSessionClient implements SessionClient for testing.
type mockSessionClient struct {
	mu        sync.Mutex
	status    eventlog.Status
	events    []protocol.Event
	approvals []eventlog.Approval
	state     client.ConnState

	responses map[string]json.RawMessage
	sendErr   error

	connectErr error
	connected  bool
	closed     bool

	sent     []string
	approved []string
	denied   []string

	synced chan struct{}
	fatal  chan error
}

func newMockSessionClient() *mockSessionClient {
	synced := make(chan struct{})
	close(synced)
	return &mockSessionClient{
		status:    eventlog.StatusIdle,
		state:     client.StateConnected,
		responses: make(map[string]json.RawMessage),
		synced:    synced,
		fatal:     make(chan error, 1),
	}
}

func (m *mockSessionClient) Connect(ctx context.Context) error {
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *mockSessionClient) Close() error {
	m.closed = true
	return nil
}

func (m *mockSessionClient) ConnState() client.ConnState { return m.state }
func (m *mockSessionClient) Synced() <-chan struct{}     { return m.synced }
func (m *mockSessionClient) Fatal() <-chan error         { return m.fatal }

func (m *mockSessionClient) Status() eventlog.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *mockSessionClient) setStatus(s eventlog.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = s
}

func (m *mockSessionClient) Events() []protocol.Event {
	return m.events
}

func (m *mockSessionClient) PendingApprovals() []eventlog.Approval {
	return m.approvals
}

func (m *mockSessionClient) SendAwait(ctx context.Context, action string, data map[string]any, timeout time.Duration) (json.RawMessage, error) {
	m.sent = append(m.sent, action)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	return m.responses[action], nil
}

func (m *mockSessionClient) Approve(ctx context.Context, taskID string, timeout time.Duration) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.approved = append(m.approved, taskID)
	return nil
}

func (m *mockSessionClient) Deny(ctx context.Context, taskID string, timeout time.Duration) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.denied = append(m.denied, taskID)
	return nil
}

// useMockClient routes command construction at the mock and restores
// the real factory on cleanup.
func useMockClient(mock *mockSessionClient) func() {
	prev := newSessionClient
	newSessionClient = func() (SessionClient, *config.Config, error) {
		cfg := config.DefaultConfig()
		return mock, &cfg, nil
	}
	return func() { newSessionClient = prev }
}

func captureOutput(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}
