// Package session is the world authority: it owns the online-player registry,
// room occupancy, and each player's location, and hands notices to per-session
// output queues.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// Queue errors.
var (
	ErrQueueFull   = errors.New("output queue full")
	ErrQueueClosed = errors.New("output queue closed")
)

// DefaultQueueSize is used when NewQueue is given a non-positive size.
const DefaultQueueSize = 256

// Queue is a bounded, non-blocking output queue owned by one session.
// Producers never block: a push into a full queue trips the overflow signal so
// the owning connection can be dropped as a slow consumer.
type Queue struct {
	owner    string
	lines    chan string
	overflow chan struct{}

	mu      sync.Mutex
	closed  bool
	tripped bool
}

// NewQueue creates a Queue holding at most size pending lines.
//
// Precondition: owner should identify the session for error messages.
// Postcondition: Returns an open, empty Queue.
func NewQueue(owner string, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		owner:    owner,
		lines:    make(chan string, size),
		overflow: make(chan struct{}),
	}
}

// Owner returns the identifier the queue was created with.
func (q *Queue) Owner() string {
	return q.owner
}

// Push enqueues line without blocking.
//
// Postcondition: Returns nil if enqueued; ErrQueueClosed after Close; ErrQueueFull
// if the bound is reached, in which case Overflowed is closed.
func (q *Queue) Push(line string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("session %s: %w", q.owner, ErrQueueClosed)
	}
	if q.tripped {
		return fmt.Errorf("session %s: %w", q.owner, ErrQueueFull)
	}
	select {
	case q.lines <- line:
		return nil
	default:
		q.tripped = true
		close(q.overflow)
		return fmt.Errorf("session %s: %w", q.owner, ErrQueueFull)
	}
}

// Lines returns the channel the writer goroutine drains. It is closed by Close
// after which any buffered lines can still be received.
func (q *Queue) Lines() <-chan string {
	return q.lines
}

// Overflowed returns a channel that is closed the first time a push finds the queue full.
func (q *Queue) Overflowed() <-chan struct{} {
	return q.overflow
}

// Close stops accepting lines. Buffered lines remain readable from Lines.
// Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.lines)
	}
}

// IsClosed reports whether Close has been called.
func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of pending lines.
func (q *Queue) Len() int {
	return len(q.lines)
}
