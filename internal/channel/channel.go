// Package channel implements the abstract bidirectional transport of
// envelopes between the supervisor and a child process, plus two
// concrete variants: FileIPC (atomic file drop) and Stdio (pipe-based).
package channel

import (
	"errors"
	"time"

	"github.com/kelvinlab/fleetsup/internal/envelope"
)

// Kind identifies a concrete transport.
type Kind string

const (
	KindFileIPC Kind = "file_ipc"
	KindStdio   Kind = "stdio"
)

// Channel is the capability set every transport satisfies: initialize,
// send, receive, close, plus a static Kind tag. This is the closed-enum
// dispatch the design notes permit in place of a base-class hierarchy.
type Channel interface {
	// Initialize acquires the channel's OS resources. Idempotent.
	Initialize() error
	// Send serializes and delivers one envelope.
	Send(env envelope.Envelope) error
	// Receive returns at most one envelope, or (Envelope{}, false, nil)
	// on timeout without error.
	Receive(timeout time.Duration) (envelope.Envelope, bool, error)
	// Close releases the channel's OS resources. Subsequent operations
	// return ErrClosed.
	Close() error
	Kind() Kind
}

var (
	ErrClosed          = errors.New("channel: closed")
	ErrNotInitialized  = errors.New("channel: not initialized")
	ErrTimeout         = errors.New("channel: timeout")
	ErrTransportFailed = errors.New("channel: transport failed")
)
