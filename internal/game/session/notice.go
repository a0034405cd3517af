package session

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/vowmud/internal/game/world"
)

// NoticeKind classifies an occupancy change.
type NoticeKind int

const (
	// NoticeEnter is sent to a room when a character logs in there.
	NoticeEnter NoticeKind = iota
	// NoticeLeave is sent to a room when a character leaves the world from it.
	NoticeLeave
	// NoticeDepart is sent to the room a character walks out of.
	NoticeDepart
	// NoticeArrive is sent to the room a character walks into.
	NoticeArrive
)

// Notice describes an occupancy change observed by the other players in RoomID.
type Notice struct {
	Kind   NoticeKind
	Actor  string
	RoomID string
	// Direction is the direction of travel for depart and arrive notices.
	Direction world.Direction
}

// DefaultNoticeText renders a notice as a plain sentence.
func DefaultNoticeText(n Notice) string {
	switch n.Kind {
	case NoticeEnter:
		return fmt.Sprintf("%s has entered the world.", n.Actor)
	case NoticeLeave:
		return fmt.Sprintf("%s has left the world.", n.Actor)
	case NoticeDepart:
		return fmt.Sprintf("%s leaves %s.", n.Actor, n.Direction)
	case NoticeArrive:
		if from := n.Direction.Opposite(); from != "" {
			switch from {
			case world.Up:
				return fmt.Sprintf("%s arrives from above.", n.Actor)
			case world.Down:
				return fmt.Sprintf("%s arrives from below.", n.Actor)
			}
			return fmt.Sprintf("%s arrives from the %s.", n.Actor, from)
		}
		return fmt.Sprintf("%s arrives.", n.Actor)
	default:
		return ""
	}
}

// outbox holds hand-offs recorded under the Manager lock until they can run
// without it. Entries run in the order they were recorded and only one
// goroutine runs entries at a time.
type outbox struct {
	mu      sync.Mutex
	pending []func()

	flushMu sync.Mutex
}

func (o *outbox) push(fn func()) {
	o.mu.Lock()
	o.pending = append(o.pending, fn)
	o.mu.Unlock()
}

// flush runs pending entries until none remain. Entries recorded by the caller
// before it released the Manager lock have run when flush returns.
func (o *outbox) flush() {
	o.flushMu.Lock()
	defer o.flushMu.Unlock()
	for {
		o.mu.Lock()
		batch := o.pending
		o.pending = nil
		o.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

// notifyLocked records n for delivery to queues.
//
// Precondition: m.mu must be held.
func (m *Manager) notifyLocked(queues []*Queue, n Notice) {
	if len(queues) == 0 {
		return
	}
	text := m.format(n)
	if text == "" {
		return
	}
	m.outbox.push(func() { m.pushAll(queues, text) })
}

// pushAll delivers text to each queue independently. Refused pushes are
// counted and otherwise ignored.
func (m *Manager) pushAll(queues []*Queue, text string) int {
	delivered := 0
	for _, q := range queues {
		if err := q.Push(text); err != nil {
			m.dropped.Add(1)
			continue
		}
		delivered++
	}
	return delivered
}
