// Package session tracks connected raid participants, the room each one occupies
// and the outbound frame queue that feeds each connection.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultOutboxSize is used when NewOutbox is given a non-positive size.
const DefaultOutboxSize = 64

var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("outbox closed")
	// ErrFull is returned by Send when the consumer has fallen behind.
	ErrFull = errors.New("outbox buffer full")
)

// Conn is the transport handle a room uses to reach one participant.
type Conn interface {
	Send(frame []byte) error
	Close() error
}

// LossyConn is implemented by connections that can shed frames a later frame
// supersedes, such as state snapshots, before they shed anything else.
type LossyConn interface {
	Conn
	SendLossy(frame []byte) error
}

// Outbox routes Send calls to a buffered channel drained by a transport write
// loop. It implements LossyConn: a quarter of the buffer is held back from lossy
// frames so one-shot frames still fit when snapshots back up.
type Outbox struct {
	id      string
	frames  chan []byte
	reserve int
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewOutbox creates an Outbox for the given connection id.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an Outbox with an open frame channel.
func NewOutbox(id string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = DefaultOutboxSize
	}
	return &Outbox{
		id:      id,
		frames:  make(chan []byte, bufferSize),
		reserve: min(max(1, bufferSize/4), bufferSize-1),
		done:    make(chan struct{}),
	}
}

// ID returns the connection identifier.
func (o *Outbox) ID() string {
	return o.id
}

// Send enqueues frame without blocking.
//
// Precondition: frame must be non-nil.
// Postcondition: frame is queued, or ErrClosed / ErrFull is returned and nothing is queued.
func (o *Outbox) Send(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("connection %s: %w", o.id, ErrClosed)
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return fmt.Errorf("connection %s: %w", o.id, ErrFull)
	}
}

// SendLossy enqueues a frame that may be dropped. It fails with ErrFull once the
// queue reaches the space reserved for Send.
//
// Postcondition: frame is queued, or ErrClosed / ErrFull is returned and nothing is queued.
func (o *Outbox) SendLossy(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("connection %s: %w", o.id, ErrClosed)
	}
	if len(o.frames) >= cap(o.frames)-o.reserve {
		return fmt.Errorf("connection %s: %w", o.id, ErrFull)
	}
	o.frames <- frame
	return nil
}

// Frames returns the queue read by the transport write loop. It is closed by Close
// once queued frames are drained.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Done is closed when the outbox is closed.
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}

// Close stops accepting frames. Frames already queued remain readable.
//
// Postcondition: Frames is closed and Done is closed. Further Send calls return ErrClosed.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
		close(o.done)
	}
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
