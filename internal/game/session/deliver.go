package session

import (
	"fmt"

	"github.com/cory-johannsen/vowmud/internal/game/character"
)

type audienceKind int

const (
	audienceRoom audienceKind = iota
	audienceGlobal
	audienceDirect
)

// Audience selects the recipients of a Deliver call.
type Audience struct {
	kind       audienceKind
	roomID     string
	name       string
	excludeUID string
}

// RoomAudience addresses every player in roomID except excludeUID.
func RoomAudience(roomID, excludeUID string) Audience {
	return Audience{kind: audienceRoom, roomID: roomID, excludeUID: excludeUID}
}

// GlobalAudience addresses every online player except excludeUID.
func GlobalAudience(excludeUID string) Audience {
	return Audience{kind: audienceGlobal, excludeUID: excludeUID}
}

// DirectAudience addresses the one online character named name, case-insensitively.
func DirectAudience(name string) Audience {
	return Audience{kind: audienceDirect, name: name}
}

// Delivery reports the outcome of Deliver.
type Delivery struct {
	// Recipients is the number of queues that accepted the line.
	Recipients int
	// Name is the resolved display name for a direct audience.
	Name string
}

// Deliver resolves the audience against a snapshot of the registry taken under
// the read lock and pushes text to every recipient after the lock is released.
// A queue that refuses the line is skipped and counted in Dropped.
//
// Postcondition: Returns ErrRecipientOffline if a direct audience names no online character.
func (m *Manager) Deliver(a Audience, text string) (Delivery, error) {
	var (
		queues []*Queue
		result Delivery
	)

	m.mu.RLock()
	switch a.kind {
	case audienceRoom:
		queues = m.roomQueuesLocked(a.roomID, a.excludeUID)
	case audienceGlobal:
		queues = make([]*Queue, 0, len(m.byUID))
		for uid, sess := range m.byUID {
			if uid != a.excludeUID {
				queues = append(queues, sess.Queue)
			}
		}
	case audienceDirect:
		uid, ok := m.names[character.FoldName(a.name)]
		if !ok {
			m.mu.RUnlock()
			return Delivery{}, fmt.Errorf("%s: %w", a.name, ErrRecipientOffline)
		}
		sess := m.byUID[uid]
		result.Name = sess.CharName
		queues = []*Queue{sess.Queue}
	}
	if len(queues) > 0 {
		m.outbox.push(func() { result.Recipients = m.pushAll(queues, text) })
	}
	m.mu.RUnlock()

	m.outbox.flush()
	return result, nil
}

// Dropped returns how many lines recipients' queues have refused since the
// Manager was created.
func (m *Manager) Dropped() int64 {
	return m.dropped.Load()
}
