package client

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the client.
var (
	// ErrNotConnected is returned by write paths when no socket is up.
	ErrNotConnected = errors.New("not connected")
	// ErrClientClosed is returned after Close; it also fails any commands
	// still in flight at that point.
	ErrClientClosed = errors.New("client closed")
	// ErrCommandTimeout is returned by SendAwait when no correlated
	// response arrives within the deadline.
	ErrCommandTimeout = errors.New("command timed out")
)

// ConnectionError is a transient network or socket failure. The
// connection manager retries these under backoff; they are never
// terminal for the session.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError is a terminal credential rejection. It is surfaced
// immediately, the credential is cleared, and no reconnect is attempted.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected: %s", e.Reason)
}

// CommandError is a failure the backend reported for a specific command.
type CommandError struct {
	Action  string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %s", e.Action, e.Message)
}

// IsTerminal reports whether err ends the session rather than being
// retryable or command-scoped.
func IsTerminal(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
