package session

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cory-johannsen/vowmud/internal/game/character"
	"github.com/cory-johannsen/vowmud/internal/game/world"
)

// World authority errors. ErrNoSuchExit and ErrExitLocked are the world graph's
// navigation errors so errors.Is matches either name.
var (
	ErrNoSuchExit         = world.ErrNoSuchExit
	ErrExitLocked         = world.ErrExitLocked
	ErrPlayerNotFound     = errors.New("player not found")
	ErrAlreadyOnline      = errors.New("character already online")
	ErrRecipientOffline   = errors.New("recipient offline")
	ErrInvariantViolation = errors.New("occupancy invariant violated")
)

// PlayerSession is the world authority's record of one online character.
// All exported fields are fixed at Enter; the current room is owned by the
// Manager and read through Manager.RoomOf or a View.
type PlayerSession struct {
	UID         string // connection id
	AccountID   int64
	Username    string
	CharacterID int64
	CharName    string // as the player typed it at creation
	// Queue receives every line destined for this session.
	Queue *Queue

	roomID string
	key    string
}

// EnterParams describes a character joining the world.
type EnterParams struct {
	UID         string
	AccountID   int64
	Username    string
	CharacterID int64
	CharName    string
	// RoomID is the character's last known room. Empty or unknown rooms fall back to the start room.
	RoomID string
	Queue  *Queue
}

// View is a consistent snapshot of a room as seen by one player.
type View struct {
	Room *world.Room
	// Occupants are the display names of the other players present, sorted.
	Occupants []string
}

// MoveResult describes a completed move.
type MoveResult struct {
	From      *world.Room
	Direction world.Direction
	View      View
}

// LeaveResult describes a character removed from the world.
type LeaveResult struct {
	CharacterID int64
	CharName    string
	RoomID      string
}

// Location is a character's current room, as captured by Locations.
type Location struct {
	CharacterID int64
	CharName    string
	RoomID      string
}

// Manager is the single serialization point for shared world state: the
// online-player registry, the name index, and room occupancy. One RWMutex guards
// all three. Notices produced inside the critical section are queued on an
// ordered outbox and delivered after the lock is released.
// All methods are safe for concurrent use.
type Manager struct {
	graph  *world.Graph
	logger *zap.Logger

	mu        sync.RWMutex
	byUID     map[string]*PlayerSession
	names     map[string]string              // folded character name to uid
	occupancy map[string]map[string]struct{} // room id to the uids inside

	outbox  outbox
	format  func(Notice) string
	dropped atomic.Int64

	saves saveLocks
}

// NewManager creates an empty Manager over the given world graph.
//
// Precondition: graph and logger must be non-nil.
func NewManager(graph *world.Graph, logger *zap.Logger) *Manager {
	return &Manager{
		graph:     graph,
		logger:    logger,
		byUID:     make(map[string]*PlayerSession),
		names:     make(map[string]string),
		occupancy: make(map[string]map[string]struct{}),
		format:    DefaultNoticeText,
	}
}

// SetNoticeFormatter replaces the text used for enter/leave/arrive/depart notices.
//
// Precondition: must be called before any player enters.
func (m *Manager) SetNoticeFormatter(f func(Notice) string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.format = f
}

// Graph returns the world graph the Manager was built over.
func (m *Manager) Graph() *world.Graph {
	return m.graph
}

// Enter registers a character and places it in its last known room, or the start
// room when that is empty or unknown. Other occupants are told of the arrival.
//
// Precondition: p.UID, p.CharName, and p.Queue must be set.
// Postcondition: Returns the session and the player's first view, or ErrAlreadyOnline
// if the session or the character is already registered.
func (m *Manager) Enter(p EnterParams) (*PlayerSession, View, error) {
	room, ok := m.graph.GetRoom(p.RoomID)
	if !ok {
		room = m.graph.StartRoom()
	}
	key := character.FoldName(p.CharName)

	m.mu.Lock()
	if _, exists := m.byUID[p.UID]; exists {
		m.mu.Unlock()
		return nil, View{}, fmt.Errorf("session %q: %w", p.UID, ErrAlreadyOnline)
	}
	if _, exists := m.names[key]; exists {
		m.mu.Unlock()
		return nil, View{}, fmt.Errorf("%s: %w", p.CharName, ErrAlreadyOnline)
	}

	sess := &PlayerSession{
		UID:         p.UID,
		AccountID:   p.AccountID,
		Username:    p.Username,
		CharacterID: p.CharacterID,
		CharName:    p.CharName,
		Queue:       p.Queue,
		roomID:      room.ID,
		key:         key,
	}

	m.notifyLocked(m.roomQueuesLocked(room.ID, ""), Notice{Kind: NoticeEnter, Actor: sess.CharName, RoomID: room.ID})

	m.byUID[sess.UID] = sess
	m.names[key] = sess.UID
	m.addToRoomLocked(room.ID, sess.UID)
	view := m.viewLocked(sess, room)
	m.mu.Unlock()

	m.outbox.flush()
	return sess, view, nil
}

// Move resolves dir from the player's current room and, on success, moves the
// player in one critical section: leave the source occupancy set, join the
// destination set, update the location. Departure and arrival notices are
// addressed from the occupancy captured inside that section.
//
// Postcondition: On error the world is unchanged and no notice is sent.
func (m *Manager) Move(uid string, dir world.Direction) (MoveResult, error) {
	m.mu.Lock()
	sess, ok := m.byUID[uid]
	if !ok {
		m.mu.Unlock()
		return MoveResult{}, fmt.Errorf("%s: %w", uid, ErrPlayerNotFound)
	}
	if err := m.checkPlayerLocked(sess); err != nil {
		m.mu.Unlock()
		m.logger.Error("refusing move", zap.String("uid", uid), zap.Error(err))
		return MoveResult{}, err
	}

	from, _ := m.graph.GetRoom(sess.roomID)
	dest, err := m.graph.Navigate(sess.roomID, dir)
	if err != nil {
		m.mu.Unlock()
		return MoveResult{}, err
	}

	m.notifyLocked(m.roomQueuesLocked(from.ID, uid), Notice{Kind: NoticeDepart, Actor: sess.CharName, RoomID: from.ID, Direction: dir})
	m.notifyLocked(m.roomQueuesLocked(dest.ID, uid), Notice{Kind: NoticeArrive, Actor: sess.CharName, RoomID: dest.ID, Direction: dir})

	m.removeFromRoomLocked(from.ID, uid)
	m.addToRoomLocked(dest.ID, uid)
	sess.roomID = dest.ID

	view := m.viewLocked(sess, dest)
	m.mu.Unlock()

	m.outbox.flush()
	return MoveResult{From: from, Direction: dir, View: view}, nil
}

// Leave removes the player from occupancy and the registry and closes its queue
// so the writer can drain what is left. Remaining occupants are told the
// character left the world.
//
// Postcondition: Returns ErrPlayerNotFound if uid is not registered.
func (m *Manager) Leave(uid string) (LeaveResult, error) {
	m.mu.Lock()
	sess, ok := m.byUID[uid]
	if !ok {
		m.mu.Unlock()
		return LeaveResult{}, fmt.Errorf("%s: %w", uid, ErrPlayerNotFound)
	}

	roomID := sess.roomID
	m.removeFromRoomLocked(roomID, uid)
	delete(m.byUID, uid)
	delete(m.names, sess.key)

	m.notifyLocked(m.roomQueuesLocked(roomID, ""), Notice{Kind: NoticeLeave, Actor: sess.CharName, RoomID: roomID})
	m.outbox.push(func() { sess.Queue.Close() })
	m.mu.Unlock()

	m.outbox.flush()
	return LeaveResult{CharacterID: sess.CharacterID, CharName: sess.CharName, RoomID: roomID}, nil
}

// Look returns the player's current room and the other occupants.
// Repeated calls with no intervening change return identical views.
func (m *Manager) Look(uid string) (View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.byUID[uid]
	if !ok {
		return View{}, fmt.Errorf("%s: %w", uid, ErrPlayerNotFound)
	}
	room, ok := m.graph.GetRoom(sess.roomID)
	if !ok {
		return View{}, fmt.Errorf("%s in unknown room %q: %w", sess.CharName, sess.roomID, ErrInvariantViolation)
	}
	return m.viewLocked(sess, room), nil
}

// Peek returns the view of the room through the player's exit in dir without
// moving them. Exits resolve as they do for Move: hidden exits can be looked
// through, locked ones cannot.
func (m *Manager) Peek(uid string, dir world.Direction) (View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.byUID[uid]
	if !ok {
		return View{}, fmt.Errorf("%s: %w", uid, ErrPlayerNotFound)
	}
	dest, err := m.graph.Navigate(sess.roomID, dir)
	if err != nil {
		return View{}, err
	}
	return m.viewLocked(sess, dest), nil
}

// RoomOf returns the room the player currently occupies.
func (m *Manager) RoomOf(uid string) (*world.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.byUID[uid]
	if !ok {
		return nil, fmt.Errorf("%s: %w", uid, ErrPlayerNotFound)
	}
	room, _ := m.graph.GetRoom(sess.roomID)
	return room, nil
}

// GetPlayer returns the session registered under uid.
func (m *Manager) GetPlayer(uid string) (*PlayerSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.byUID[uid]
	return sess, ok
}

// GetPlayerByCharName returns the online session for a character name, case-insensitively.
func (m *Manager) GetPlayerByCharName(charName string) (*PlayerSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.names[character.FoldName(charName)]
	if !ok {
		return nil, false
	}
	return m.byUID[uid], true
}

// IsOnline reports whether a character with this name is in the world.
func (m *Manager) IsOnline(charName string) bool {
	_, ok := m.GetPlayerByCharName(charName)
	return ok
}

// PlayerCount returns the number of online players.
func (m *Manager) PlayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUID)
}

// Online returns the display names of all online characters, sorted.
func (m *Manager) Online() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.byUID))
	for _, sess := range m.byUID {
		names = append(names, sess.CharName)
	}
	slices.Sort(names)
	return names
}

// PlayersInRoom returns the display names of all players in the room, sorted.
func (m *Manager) PlayersInRoom(roomID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.namesInRoomLocked(roomID, "")
}

// Locations snapshots every online character's room for persistence.
func (m *Manager) Locations() []Location {
	m.mu.RLock()
	defer m.mu.RUnlock()
	locs := make([]Location, 0, len(m.byUID))
	for _, sess := range m.byUID {
		locs = append(locs, Location{CharacterID: sess.CharacterID, CharName: sess.CharName, RoomID: sess.roomID})
	}
	slices.SortFunc(locs, func(a, b Location) int { return cmp.Compare(a.CharacterID, b.CharacterID) })
	return locs
}

// CheckInvariants verifies that occupancy sets and player locations agree:
// every player is in exactly the room it records, every occupant is a registered
// player recorded in that room, and the name index matches the registry.
//
// Postcondition: Returns nil, or an error wrapping ErrInvariantViolation.
func (m *Manager) CheckInvariants() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for uid, sess := range m.byUID {
		if err := m.checkPlayerLocked(sess); err != nil {
			return err
		}
		if m.names[sess.key] != uid {
			return fmt.Errorf("%s missing from name index: %w", sess.CharName, ErrInvariantViolation)
		}
	}
	seen := make(map[string]string)
	for roomID, set := range m.occupancy {
		for uid := range set {
			if other, dup := seen[uid]; dup {
				return fmt.Errorf("%s in rooms %q and %q: %w", uid, other, roomID, ErrInvariantViolation)
			}
			seen[uid] = roomID
			sess, ok := m.byUID[uid]
			if !ok {
				return fmt.Errorf("unregistered %s in room %q: %w", uid, roomID, ErrInvariantViolation)
			}
			if sess.roomID != roomID {
				return fmt.Errorf("%s occupies %q but is located in %q: %w", sess.CharName, roomID, sess.roomID, ErrInvariantViolation)
			}
		}
	}
	if len(m.names) != len(m.byUID) {
		return fmt.Errorf("name index has %d entries for %d players: %w", len(m.names), len(m.byUID), ErrInvariantViolation)
	}
	return nil
}

func (m *Manager) checkPlayerLocked(sess *PlayerSession) error {
	if _, ok := m.occupancy[sess.roomID][sess.UID]; !ok {
		return fmt.Errorf("%s located in %q but absent from its occupancy: %w", sess.CharName, sess.roomID, ErrInvariantViolation)
	}
	return nil
}

func (m *Manager) addToRoomLocked(roomID, uid string) {
	set, ok := m.occupancy[roomID]
	if !ok {
		set = make(map[string]struct{})
		m.occupancy[roomID] = set
	}
	set[uid] = struct{}{}
}

// removeFromRoomLocked drops uid from roomID, forgetting the room once empty.
func (m *Manager) removeFromRoomLocked(roomID, uid string) {
	delete(m.occupancy[roomID], uid)
	if len(m.occupancy[roomID]) == 0 {
		delete(m.occupancy, roomID)
	}
}

// namesInRoomLocked lists who is in roomID apart from except, sorted.
func (m *Manager) namesInRoomLocked(roomID, except string) []string {
	var names []string
	for uid := range m.occupancy[roomID] {
		if sess := m.byUID[uid]; sess != nil && uid != except {
			names = append(names, sess.CharName)
		}
	}
	slices.Sort(names)
	return names
}

func (m *Manager) viewLocked(sess *PlayerSession, room *world.Room) View {
	return View{Room: room, Occupants: m.namesInRoomLocked(room.ID, sess.UID)}
}

func (m *Manager) roomQueuesLocked(roomID, except string) []*Queue {
	var queues []*Queue
	for uid := range m.occupancy[roomID] {
		if uid != except {
			queues = append(queues, m.byUID[uid].Queue)
		}
	}
	return queues
}
