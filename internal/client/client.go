// Package client implements the persistent session-protocol client: a
// single logical websocket connection to the backend agent process,
// with reconnection under exponential backoff, correlated commands,
// and resynchronization of the client-side session view after any gap.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tetherlabs/tether/internal/eventlog"
	"github.com/tetherlabs/tether/internal/logging"
	"github.com/tetherlabs/tether/internal/protocol"
)

// Actions issued internally during resync.
const (
	actionGetStatus       = "get_status"
	actionGetRecentEvents = "get_recent_events"
)

// DefaultCommandTimeout bounds SendAwait when the caller passes no
// positive timeout.
const DefaultCommandTimeout = 10 * time.Second

const frameBuffer = 64

// Client is the public surface of the session client. Construct with
// New, establish the connection with Connect, and tear down with Close.
// There is no shared global: multiple independent clients coexist.
type Client struct {
	log     *logging.Logger
	metrics *Metrics
	store   *eventlog.Store

	conn    *connManager
	pending *pendingTable

	frames chan []byte
	done   chan struct{}
	wg     sync.WaitGroup

	resyncTimeout time.Duration

	startOnce sync.Once
	closeOnce sync.Once

	synced     chan struct{}
	syncedOnce sync.Once

	fatalCh chan error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used by the client and its connection
// manager.
func WithLogger(log *logging.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithEventCapacity sets the bounded event log capacity.
func WithEventCapacity(n int) Option {
	return func(c *Client) {
		c.store = eventlog.NewStore(n)
	}
}

// WithBackoff sets the reconnect backoff base and cap.
func WithBackoff(base, cap time.Duration) Option {
	return func(c *Client) {
		c.conn.backoff = newBackoff(base, cap)
	}
}

// WithDialer sets a custom websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		c.conn.dialer = d
	}
}

// WithStateHandler registers a callback invoked on every connection
// state transition, for connectivity indicators.
func WithStateHandler(fn func(ConnState)) Option {
	return func(c *Client) {
		c.conn.onState = fn
	}
}

// WithResyncTimeout bounds the snapshot commands issued after a
// (re)connect.
func WithResyncTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.resyncTimeout = d
	}
}

// New creates a Client for the given websocket URL and bearer token.
func New(url, token string, opts ...Option) *Client {
	c := &Client{
		log:           logging.With("component", "client"),
		store:         eventlog.NewStore(eventlog.DefaultCapacity),
		pending:       newPendingTable(),
		frames:        make(chan []byte, frameBuffer),
		done:          make(chan struct{}),
		resyncTimeout: DefaultCommandTimeout,
		synced:        make(chan struct{}),
		fatalCh:       make(chan error, 1),
	}
	c.conn = &connManager{
		url:         url,
		token:       token,
		dialer:      &websocket.Dialer{HandshakeTimeout: defaultDialTimeout},
		dialTimeout: defaultDialTimeout,
		backoff:     newBackoff(DefaultBackoffBase, DefaultBackoffCap),
		frames:      c.frames,
		done:        c.done,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.conn.log = c.log
	c.conn.metrics = c.metrics
	c.conn.onConnected = c.resync
	c.conn.onFatal = c.handleFatal
	return c
}

// Connect establishes the connection and starts the dispatch loop. A
// terminal AuthError is returned as-is; transient failures are returned
// wrapped in ConnectionError (the caller decides whether to retry an
// initial connect — automatic backoff applies only after an unexpected
// close of an established connection).
func (c *Client) Connect(ctx context.Context) error {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.dispatchLoop()
	})
	return c.conn.Connect(ctx)
}

// Close disconnects and releases all resources. Any commands still in
// flight fail with ErrClientClosed; none are silently dropped.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.conn.Disconnect()
		close(c.done)
		c.wg.Wait()
		c.pending.failAll(ErrClientClosed)
		c.metrics.setPending(0)
		c.syncedOnce.Do(func() { close(c.synced) })
	})
	return nil
}

// ConnState returns the current connection lifecycle state.
func (c *Client) ConnState() ConnState {
	return c.conn.State()
}

// Synced is closed once the first post-connect resynchronization pass
// has finished, successfully or not. Callers that want a settled view
// before reading Status or Events wait on it.
func (c *Client) Synced() <-chan struct{} {
	return c.synced
}

// Fatal delivers the terminal error, if any, that ended the session
// (today that is only a credential rejection).
func (c *Client) Fatal() <-chan error {
	return c.fatalCh
}

func (c *Client) handleFatal(err error) {
	// Commands can never complete once the session is terminally down.
	c.pending.failAll(err)
	c.metrics.setPending(0)
	select {
	case c.fatalCh <- err:
	default:
	}
}

// Send issues a fire-and-forget command. Delivery visibility is limited
// to connection-level errors; no response is awaited and no pending
// entry is created.
func (c *Client) Send(action string, data map[string]any) error {
	raw, err := protocol.EncodeCommand(action, data)
	if err != nil {
		return err
	}
	if err := c.conn.write(raw); err != nil {
		return err
	}
	c.metrics.commandSent(action)
	return nil
}

// SendAwait issues a correlated command and suspends the caller until a
// matching response or error arrives, the timeout elapses, or ctx is
// cancelled. The pending entry is removed exactly once on every path.
// Correlation keys on a per-call id, never the action name, so
// concurrent calls for the same action cannot cross-complete.
func (c *Client) SendAwait(ctx context.Context, action string, data map[string]any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	id := uuid.NewString()
	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["correlation_id"] = id

	raw, err := protocol.EncodeCommand(action, payload)
	if err != nil {
		return nil, err
	}

	req, ok := c.pending.register(id, action)
	if !ok {
		return nil, fmt.Errorf("duplicate correlation id %s", id)
	}
	c.metrics.setPending(c.pending.size())

	if err := c.conn.write(raw); err != nil {
		c.pending.remove(id)
		c.metrics.setPending(c.pending.size())
		return nil, err
	}
	c.metrics.commandSent(action)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-req.done:
		c.metrics.setPending(c.pending.size())
		return res.data, res.err

	case <-timer.C:
		removed := c.pending.remove(id)
		c.metrics.setPending(c.pending.size())
		if !removed {
			// A completion raced the deadline; prefer the real outcome.
			res := <-req.done
			return res.data, res.err
		}
		c.metrics.commandTimeout()
		return nil, fmt.Errorf("%w: %s after %s", ErrCommandTimeout, action, timeout)

	case <-ctx.Done():
		removed := c.pending.remove(id)
		c.metrics.setPending(c.pending.size())
		if !removed {
			res := <-req.done
			return res.data, res.err
		}
		return nil, ctx.Err()
	}
}

// Status returns the projected coarse session status.
func (c *Client) Status() eventlog.Status {
	return c.store.Status()
}

// Events returns the retained event log, newest first.
func (c *Client) Events() []protocol.Event {
	return c.store.Events()
}

// PendingApprovals returns approvals awaiting user resolution.
func (c *Client) PendingApprovals() []eventlog.Approval {
	return c.store.PendingApprovals()
}

// Approve resolves a pending approval affirmatively. The local pending
// entry is removed only after the backend confirms the command.
func (c *Client) Approve(ctx context.Context, taskID string, timeout time.Duration) error {
	_, err := c.SendAwait(ctx, "approve", map[string]any{"task_id": taskID}, timeout)
	if err != nil {
		return err
	}
	c.store.ResolveApproval(taskID)
	return nil
}

// Deny resolves a pending approval negatively.
func (c *Client) Deny(ctx context.Context, taskID string, timeout time.Duration) error {
	_, err := c.SendAwait(ctx, "deny", map[string]any{"task_id": taskID}, timeout)
	if err != nil {
		return err
	}
	c.store.ResolveApproval(taskID)
	return nil
}

// dispatchLoop is the single dispatch context: it consumes decoded
// frames strictly in arrival order, so event ordering and pending
// request completion are race-free by construction.
func (c *Client) dispatchLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case raw := <-c.frames:
			c.dispatch(raw)
		}
	}
}

// dispatch routes one inbound frame. Nothing here may panic or
// terminate the loop: a bad frame is logged and dropped, and the
// session stays healthy.
func (c *Client) dispatch(raw []byte) {
	frame, err := protocol.DecodeFrame(raw)
	if err != nil {
		c.log.Warn("dropping malformed frame", "error", err)
		c.metrics.frameDropped("malformed")
		return
	}
	c.metrics.frameReceived(string(frame.Type))

	switch frame.Type {
	case protocol.FrameTypeEvent:
		ev, err := frame.EventData()
		if err != nil {
			c.log.Warn("dropping bad event frame", "error", err)
			c.metrics.frameDropped("bad_event")
			return
		}
		c.store.Ingest(*ev)
		c.metrics.setEventLogSize(c.store.Len())

	case protocol.FrameTypeResponse:
		id := frame.CorrelationID()
		if id == "" || !c.pending.resolve(id, frame.Data) {
			c.log.Debug("dropping unmatched response",
				"action", frame.Action, "correlation_id", id)
			c.metrics.frameDropped("unmatched_response")
			return
		}
		c.metrics.setPending(c.pending.size())

	case protocol.FrameTypeError:
		ed, err := frame.ErrorData()
		if err != nil {
			c.log.Warn("dropping bad error frame", "error", err)
			c.metrics.frameDropped("bad_error")
			return
		}
		if ed.CorrelationID == "" || !c.pending.fail(ed.CorrelationID,
			&CommandError{Action: frame.Action, Message: ed.Message}) {
			c.log.Warn("backend error without matching command",
				"message", ed.Message)
			c.metrics.frameDropped("unmatched_error")
			return
		}
		c.metrics.setPending(c.pending.size())

	case protocol.FrameTypeAuthSuccess:
		c.log.Debug("authentication acknowledged")

	default:
		c.log.Warn("dropping unrecognized frame", "type", string(frame.Type))
		c.metrics.frameDropped("unrecognized")
	}
}

// resync reconciles the client view with backend ground truth after
// every successful connect. Recent events are replayed first (ingestion
// is idempotent), then the authoritative status snapshot overrides
// whatever the projection drifted to while disconnected.
func (c *Client) resync() {
	go func() {
		defer c.syncedOnce.Do(func() { close(c.synced) })

		ctx, cancel := context.WithTimeout(context.Background(), 2*c.resyncTimeout)
		defer cancel()

		data, err := c.SendAwait(ctx, actionGetRecentEvents, nil, c.resyncTimeout)
		if err != nil {
			c.log.Warn("resync event replay failed", "error", err)
		} else {
			var payload struct {
				Events []protocol.Event `json:"events"`
			}
			if err := json.Unmarshal(data, &payload); err != nil {
				c.log.Warn("resync event payload malformed", "error", err)
			} else {
				for _, ev := range payload.Events {
					c.store.Ingest(ev)
				}
				c.metrics.setEventLogSize(c.store.Len())
			}
		}

		data, err = c.SendAwait(ctx, actionGetStatus, nil, c.resyncTimeout)
		if err != nil {
			c.log.Warn("resync status query failed", "error", err)
			return
		}
		var payload struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			c.log.Warn("resync status payload malformed", "error", err)
			return
		}
		status, ok := eventlog.ParseStatus(payload.Status)
		if !ok {
			c.log.Warn("resync returned unknown status", "status", payload.Status)
			return
		}
		c.store.ApplyStatusSnapshot(status)
	}()
}
