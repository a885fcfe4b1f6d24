package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tetherlabs/tether/internal/logging"
)

// ConnState is the observable connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

const defaultDialTimeout = 15 * time.Second

// connManager owns the websocket lifecycle: at most one active socket
// and at most one scheduled reconnect timer at any time. Scheduling a
// reconnect always cancels the prior timer; Disconnect cancels it
// unconditionally, so a manual shutdown never races a retry.
type connManager struct {
	url         string
	dialer      *websocket.Dialer
	dialTimeout time.Duration
	log         *logging.Logger
	metrics     *Metrics

	// frames is the single inbound feed; the client's dispatch loop is
	// the only consumer.
	frames chan<- []byte
	// done unblocks readLoop sends when the client is torn down.
	done <-chan struct{}

	// onConnected fires after every successful connect, initial or not.
	// The client hooks resync here.
	onConnected func()
	// onState fires on every lifecycle transition.
	onState func(ConnState)
	// onFatal fires on a terminal failure discovered after connect.
	onFatal func(error)

	mu             sync.Mutex
	token          string
	state          ConnState
	conn           *websocket.Conn
	reconnectTimer *time.Timer
	backoff        *backoff
	closed         bool

	// writeMu serializes all outbound writes onto the one connection.
	writeMu sync.Mutex
}

// setStateLocked updates the state. Caller must hold m.mu and call
// notifyState after unlocking if this returned true.
func (m *connManager) setStateLocked(s ConnState) bool {
	if m.state == s {
		return false
	}
	m.state = s
	return true
}

func (m *connManager) notifyState() {
	if m.onState == nil {
		return
	}
	m.mu.Lock()
	s := m.state
	m.mu.Unlock()
	m.onState(s)
}

// State returns the current lifecycle state.
func (m *connManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect establishes the initial connection. Transient dial failures
// are returned to the caller rather than retried: backoff applies only
// to reconnection after an unexpected close.
func (m *connManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClientClosed
	}
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return errors.New("already connected")
	}
	changed := m.setStateLocked(StateConnecting)
	m.mu.Unlock()
	if changed {
		m.notifyState()
	}

	conn, err := m.dial(ctx)
	if err != nil {
		m.mu.Lock()
		changed = m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
		if changed {
			m.notifyState()
		}
		return err
	}

	m.adopt(conn)
	return nil
}

// dial performs one connection attempt, classifying the failure. An
// HTTP 401/403 on the upgrade is a terminal credential rejection: the
// token is cleared and no retry follows.
func (m *connManager) dial(ctx context.Context) (*websocket.Conn, error) {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := m.dialer.DialContext(ctx, m.url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized ||
			resp.StatusCode == http.StatusForbidden) {
			m.clearToken()
			return nil, &AuthError{Reason: resp.Status}
		}
		return nil, &ConnectionError{Op: "dial", Err: err}
	}
	return conn, nil
}

// adopt installs a freshly dialed connection and starts its read loop.
func (m *connManager) adopt(conn *websocket.Conn) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.backoff.reset()
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	m.metrics.connect()
	m.notifyState()
	go m.readLoop(conn)

	if m.onConnected != nil {
		m.onConnected()
	}
}

// readLoop feeds inbound messages to the dispatch channel until the
// connection breaks or the client is torn down.
func (m *connManager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleReadError(conn, err)
			return
		}
		select {
		case m.frames <- data:
		case <-m.done:
			return
		}
	}
}

// handleReadError classifies a broken read. An intentional disconnect
// is quiet; a policy-violation close is terminal; everything else
// schedules a reconnect under backoff.
func (m *connManager) handleReadError(conn *websocket.Conn, err error) {
	m.mu.Lock()
	if m.closed || m.conn != conn {
		// Manual disconnect, or a stale loop from a replaced connection.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	_ = conn.Close()

	if reason, terminal := terminalCloseReason(err); terminal {
		m.token = ""
		m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
		m.log.Error("connection rejected by peer", "reason", reason)
		m.notifyState()
		if m.onFatal != nil {
			m.onFatal(&AuthError{Reason: reason})
		}
		return
	}

	m.setStateLocked(StateReconnecting)
	m.scheduleReconnectLocked(err)
	m.mu.Unlock()
	m.notifyState()
}

// terminalCloseReason reports whether the peer's close is a permanent
// rejection. All other close reasons are retried.
func terminalCloseReason(err error) (string, bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code == websocket.ClosePolicyViolation {
		reason := ce.Text
		if reason == "" {
			reason = "policy violation"
		}
		return reason, true
	}
	return "", false
}

// scheduleReconnectLocked arms the reconnect timer, cancelling any
// previously scheduled one. Caller must hold m.mu.
func (m *connManager) scheduleReconnectLocked(cause error) {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
	}
	delay := m.backoff.next()
	m.log.Warn("connection lost, scheduling reconnect",
		"cause", cause, "delay", delay)
	m.reconnectTimer = time.AfterFunc(delay, m.attemptReconnect)
}

// attemptReconnect runs on the reconnect timer goroutine.
func (m *connManager) attemptReconnect() {
	m.mu.Lock()
	if m.closed || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.metrics.reconnectAttempt()

	ctx, cancel := context.WithTimeout(context.Background(), m.dialTimeout)
	conn, err := m.dial(ctx)
	cancel()
	if err != nil {
		var ae *AuthError
		if errors.As(err, &ae) {
			m.mu.Lock()
			changed := m.setStateLocked(StateDisconnected)
			m.mu.Unlock()
			m.log.Error("reconnect rejected", "reason", ae.Reason)
			if changed {
				m.notifyState()
			}
			if m.onFatal != nil {
				m.onFatal(ae)
			}
			return
		}

		m.mu.Lock()
		if m.closed || m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		m.scheduleReconnectLocked(err)
		m.mu.Unlock()
		return
	}

	m.adopt(conn)
}

// Disconnect tears the connection down for good: the pending reconnect
// timer (if any) is cancelled unconditionally and no further connection
// attempt is made.
func (m *connManager) Disconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	conn := m.conn
	m.conn = nil
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"),
			deadline)
		_ = conn.Close()
	}
	m.notifyState()
}

// write serializes one outbound frame onto the connection.
func (m *connManager) write(data []byte) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

func (m *connManager) clearToken() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
}
