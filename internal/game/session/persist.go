package session

import (
	"context"
	"sync"
)

// LocationStore persists a character's room.
type LocationStore interface {
	SaveCharacterLocation(ctx context.Context, characterID int64, roomID string) error
}

// saveLocks serializes location writes per character. Entries live only
// while someone holds or waits for them.
type saveLocks struct {
	mu    sync.Mutex
	locks map[int64]*saveLock
}

type saveLock struct {
	sync.Mutex
	refs int
}

func (s *saveLocks) lock(characterID int64) (unlock func()) {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[int64]*saveLock)
	}
	l := s.locks[characterID]
	if l == nil {
		l = &saveLock{}
		s.locks[characterID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, characterID)
		}
		s.mu.Unlock()
	}
}

// LocationOf returns the room of the online character with characterID.
func (m *Manager) LocationOf(characterID int64) (roomID string, online bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sess := range m.byUID {
		if sess.CharacterID == characterID {
			return sess.roomID, true
		}
	}
	return "", false
}

// SaveLocation writes roomID for characterID. Writes for one character never
// overlap with each other or with SaveCurrentLocation.
func (m *Manager) SaveLocation(ctx context.Context, store LocationStore, characterID int64, roomID string) error {
	unlock := m.saves.lock(characterID)
	defer unlock()
	return store.SaveCharacterLocation(ctx, characterID, roomID)
}

// SaveCurrentLocation writes the room characterID is in at the moment of the
// write. A character that has left the world is skipped, since its final room
// is written by the logout save and a periodic pass must not overwrite it.
func (m *Manager) SaveCurrentLocation(ctx context.Context, store LocationStore, characterID int64) (saved bool, err error) {
	unlock := m.saves.lock(characterID)
	defer unlock()

	roomID, online := m.LocationOf(characterID)
	if !online {
		return false, nil
	}
	if err := store.SaveCharacterLocation(ctx, characterID, roomID); err != nil {
		return false, err
	}
	return true, nil
}
