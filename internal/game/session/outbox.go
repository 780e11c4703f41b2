// Package session tracks authenticated player sessions, their active character and battle,
// and the chat connections attached to them.
package session

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrOutboxClosed is returned when pushing to a closed outbox.
	ErrOutboxClosed = errors.New("outbox closed")
	// ErrOutboxFull is returned when a slow reader has let the buffer fill up.
	ErrOutboxFull = errors.New("outbox full")
)

// Outbox buffers frames for one chat connection. The connection's writer goroutine drains
// Frames; producers never block on a slow client.
type Outbox struct {
	connID string
	frames chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox for connID. A non-positive size selects a buffer of 64.
//
// Precondition: connID must be non-empty.
func NewOutbox(connID string, size int) *Outbox {
	if size <= 0 {
		size = 64
	}
	return &Outbox{connID: connID, frames: make(chan []byte, size)}
}

// ConnID returns the connection identifier.
func (o *Outbox) ConnID() string { return o.connID }

// Push enqueues frame without blocking.
//
// Postcondition: frame is buffered, or ErrOutboxClosed/ErrOutboxFull is returned.
func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("%w: %s", ErrOutboxClosed, o.connID)
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrOutboxFull, o.connID)
	}
}

// Frames returns the channel the writer goroutine reads from. It is closed by Close.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Close closes the frame channel. It is idempotent.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.frames)
	}
}

// IsClosed reports whether Close has been called.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
