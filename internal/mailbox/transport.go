// Package mailbox provides request-scoped access to mail backends. A
// Transport opens one Session per retrieval request; sessions are never
// pooled or shared, and Close must run on every exit path.
package mailbox

import (
	"context"
	"fmt"
	"time"
)

// RawMessage is one undecoded message fetched from a mailbox.
type RawMessage struct {
	Raw      []byte
	Received time.Time // server-side received time when the transport knows it
}

// Session is an open connection to one mailbox.
type Session interface {
	// ListRecent returns messages received after the cutoff.
	ListRecent(ctx context.Context, since time.Time) ([]RawMessage, error)
	// Close releases the session. Safe to call once on every exit path.
	Close() error
}

// Transport opens sessions to a mailbox.
type Transport interface {
	Open(ctx context.Context) (Session, error)
}

// ConnectionError reports a failure to open a session.
type ConnectionError struct {
	Mailbox string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to mailbox %s: %v", e.Mailbox, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError reports a failure while listing or fetching messages.
// Transient; callers may retry and must not deactivate the account.
type TransportError struct {
	Mailbox string
	Op      string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mailbox %s: %s: %v", e.Mailbox, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
