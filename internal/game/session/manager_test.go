package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/vowmud/internal/game/world"
)

// testGraph builds plaza <-> hall <-> loft, with a locked gate east of the plaza
// and a custom "ladder" exit from the hall to the loft.
func testGraph(t testing.TB) *world.Graph {
	t.Helper()
	zone := &world.Zone{
		ID:        "town",
		Name:      "Town",
		StartRoom: "plaza",
		Rooms: map[string]*world.Room{
			"plaza": {ID: "plaza", ZoneID: "town", Title: "Plaza", Description: "An open plaza.",
				Exits: []world.Exit{
					{Direction: world.North, TargetRoom: "hall"},
					{Direction: world.East, TargetRoom: "gate", Locked: true},
				}},
			"hall": {ID: "hall", ZoneID: "town", Title: "Hall", Description: "A long hall.",
				Exits: []world.Exit{
					{Direction: world.South, TargetRoom: "plaza"},
					{Direction: "ladder", TargetRoom: "loft"},
				}},
			"loft": {ID: "loft", ZoneID: "town", Title: "Loft", Description: "A dusty loft.",
				Exits: []world.Exit{{Direction: world.Down, TargetRoom: "hall"}}},
			"gate": {ID: "gate", ZoneID: "town", Title: "Gate", Description: "A barred gate.",
				Exits: []world.Exit{{Direction: world.West, TargetRoom: "plaza"}}},
		},
	}
	g, err := world.NewGraph([]*world.Zone{zone}, "")
	require.NoError(t, err)
	return g
}

func newTestManager(t testing.TB) *Manager {
	t.Helper()
	return NewManager(testGraph(t), zaptest.NewLogger(t))
}

func enter(t testing.TB, m *Manager, uid, name, room string) *PlayerSession {
	t.Helper()
	sess, _, err := m.Enter(EnterParams{
		UID:      uid,
		CharName: name,
		RoomID:   room,
		Queue:    NewQueue(uid, 64),
	})
	require.NoError(t, err)
	return sess
}

// drain returns every line currently buffered in q.
func drain(q *Queue) []string {
	var lines []string
	for {
		select {
		case line, ok := <-q.Lines():
			if !ok {
				return lines
			}
			lines = append(lines, line)
		default:
			return lines
		}
	}
}

func TestManager_EnterPlacesInLastRoom(t *testing.T) {
	m := newTestManager(t)
	sess, view, err := m.Enter(EnterParams{UID: "u1", CharName: "Alice", RoomID: "hall", Queue: NewQueue("u1", 8)})
	require.NoError(t, err)
	assert.Equal(t, "Alice", sess.CharName)
	assert.Equal(t, "hall", view.Room.ID)
	assert.Empty(t, view.Occupants)
	assert.Equal(t, 1, m.PlayerCount())
	require.NoError(t, m.CheckInvariants())
}

func TestManager_EnterUnknownRoomFallsBackToStart(t *testing.T) {
	m := newTestManager(t)
	for _, room := range []string{"", "demolished"} {
		uid := "u-" + room
		_, view, err := m.Enter(EnterParams{UID: uid, CharName: "Char" + strings.ToUpper(room), RoomID: room, Queue: NewQueue(uid, 8)})
		require.NoError(t, err)
		assert.Equal(t, "plaza", view.Room.ID)
	}
}

func TestManager_EnterNotifiesOccupants(t *testing.T) {
	m := newTestManager(t)
	alice := enter(t, m, "u1", "Alice", "plaza")

	_, view, err := m.Enter(EnterParams{UID: "u2", CharName: "Bob", RoomID: "plaza", Queue: NewQueue("u2", 8)})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, view.Occupants)
	assert.Equal(t, []string{"Bob has entered the world."}, drain(alice.Queue))
}

func TestManager_EnterDuplicate(t *testing.T) {
	m := newTestManager(t)
	enter(t, m, "u1", "Alice", "plaza")

	_, _, err := m.Enter(EnterParams{UID: "u2", CharName: "ALICE", Queue: NewQueue("u2", 8)})
	assert.ErrorIs(t, err, ErrAlreadyOnline)

	_, _, err = m.Enter(EnterParams{UID: "u1", CharName: "Bob", Queue: NewQueue("u1", 8)})
	assert.ErrorIs(t, err, ErrAlreadyOnline)

	assert.Equal(t, 1, m.PlayerCount())
	require.NoError(t, m.CheckInvariants())
}

func TestManager_Move(t *testing.T) {
	m := newTestManager(t)
	alice := enter(t, m, "u1", "Alice", "plaza")
	bob := enter(t, m, "u2", "Bob", "plaza")
	carol := enter(t, m, "u3", "Carol", "hall")
	drain(alice.Queue)

	res, err := m.Move("u2", world.North)
	require.NoError(t, err)
	assert.Equal(t, "plaza", res.From.ID)
	assert.Equal(t, "hall", res.View.Room.ID)
	assert.Equal(t, []string{"Carol"}, res.View.Occupants)

	assert.Equal(t, []string{"Bob leaves north."}, drain(alice.Queue))
	assert.Equal(t, []string{"Bob arrives from the south."}, drain(carol.Queue))
	assert.Empty(t, drain(bob.Queue))

	assert.Equal(t, []string{"Alice"}, m.PlayersInRoom("plaza"))
	assert.Equal(t, []string{"Bob", "Carol"}, m.PlayersInRoom("hall"))
	require.NoError(t, m.CheckInvariants())
}

func TestManager_MoveCustomExit(t *testing.T) {
	m := newTestManager(t)
	enter(t, m, "u1", "Alice", "hall")
	watcher := enter(t, m, "u2", "Bob", "loft")

	res, err := m.Move("u1", "ladder")
	require.NoError(t, err)
	assert.Equal(t, "loft", res.View.Room.ID)
	assert.Equal(t, []string{"Alice arrives."}, drain(watcher.Queue))
}

func TestManager_MoveFailuresLeaveWorldUnchanged(t *testing.T) {
	m := newTestManager(t)
	alice := enter(t, m, "u1", "Alice", "plaza")
	bob := enter(t, m, "u2", "Bob", "plaza")
	drain(alice.Queue)

	_, err := m.Move("u2", world.South)
	assert.ErrorIs(t, err, ErrNoSuchExit)

	_, err = m.Move("u2", world.East)
	assert.ErrorIs(t, err, ErrExitLocked)

	_, err = m.Move("ghost", world.North)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	room, err := m.RoomOf("u2")
	require.NoError(t, err)
	assert.Equal(t, "plaza", room.ID)
	assert.Empty(t, drain(alice.Queue))
	assert.Empty(t, drain(bob.Queue))
	require.NoError(t, m.CheckInvariants())
}

func TestManager_MoveRefusesOnBrokenInvariant(t *testing.T) {
	m := newTestManager(t)
	enter(t, m, "u1", "Alice", "plaza")

	m.mu.Lock()
	delete(m.occupancy, "plaza")
	m.mu.Unlock()

	_, err := m.Move("u1", world.North)
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.ErrorIs(t, m.CheckInvariants(), ErrInvariantViolation)
}

func TestManager_Leave(t *testing.T) {
	m := newTestManager(t)
	alice := enter(t, m, "u1", "Alice", "plaza")
	bob := enter(t, m, "u2", "Bob", "plaza")
	drain(alice.Queue)

	res, err := m.Leave("u2")
	require.NoError(t, err)
	assert.Equal(t, "Bob", res.CharName)
	assert.Equal(t, "plaza", res.RoomID)

	assert.True(t, bob.Queue.IsClosed())
	assert.Equal(t, []string{"Bob has left the world."}, drain(alice.Queue))
	assert.False(t, m.IsOnline("Bob"))
	assert.Equal(t, []string{"Alice"}, m.Online())

	_, err = m.Leave("u2")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	require.NoError(t, m.CheckInvariants())

	// The name is free again.
	enter(t, m, "u3", "Bob", "hall")
}

func TestManager_LookIsStable(t *testing.T) {
	m := newTestManager(t)
	enter(t, m, "u1", "Alice", "plaza")
	enter(t, m, "u2", "Zed", "plaza")
	enter(t, m, "u3", "Bob", "plaza")

	first, err := m.Look("u1")
	require.NoError(t, err)
	second, err := m.Look("u1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"Bob", "Zed"}, first.Occupants)

	_, err = m.Look("ghost")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestManager_Deliver(t *testing.T) {
	m := newTestManager(t)
	alice := enter(t, m, "u1", "Alice", "plaza")
	bob := enter(t, m, "u2", "Bob", "plaza")
	carol := enter(t, m, "u3", "Carol", "hall")
	drain(alice.Queue)
	drain(bob.Queue)

	d, err := m.Deliver(RoomAudience("plaza", "u1"), "room line")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Recipients)
	assert.Equal(t, []string{"room line"}, drain(bob.Queue))
	assert.Empty(t, drain(alice.Queue))
	assert.Empty(t, drain(carol.Queue))

	d, err = m.Deliver(GlobalAudience("u1"), "global line")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Recipients)
	assert.Equal(t, []string{"global line"}, drain(bob.Queue))
	assert.Equal(t, []string{"global line"}, drain(carol.Queue))
	assert.Empty(t, drain(alice.Queue))

	d, err = m.Deliver(DirectAudience("carol"), "direct line")
	require.NoError(t, err)
	assert.Equal(t, "Carol", d.Name)
	assert.Equal(t, 1, d.Recipients)
	assert.Equal(t, []string{"direct line"}, drain(carol.Queue))

	_, err = m.Deliver(DirectAudience("Nobody"), "lost")
	assert.ErrorIs(t, err, ErrRecipientOffline)

	d, err = m.Deliver(RoomAudience("loft", ""), "empty room")
	require.NoError(t, err)
	assert.Zero(t, d.Recipients)
}

func TestManager_DeliverSkipsFailingRecipient(t *testing.T) {
	m := newTestManager(t)
	_, _, err := m.Enter(EnterParams{UID: "slow", CharName: "Slow", RoomID: "plaza", Queue: NewQueue("slow", 1)})
	require.NoError(t, err)
	fast := enter(t, m, "fast", "Fast", "plaza")
	drain(fast.Queue)

	for i := 0; i < 3; i++ {
		_, err := m.Deliver(GlobalAudience(""), fmt.Sprintf("line %d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"line 0", "line 1", "line 2"}, drain(fast.Queue))
	assert.Equal(t, int64(3), m.Dropped())

	slow, ok := m.GetPlayer("slow")
	require.True(t, ok)
	select {
	case <-slow.Queue.Overflowed():
	default:
		t.Fatal("slow queue did not trip overflow")
	}
}

func TestManager_SetNoticeFormatter(t *testing.T) {
	m := newTestManager(t)
	m.SetNoticeFormatter(func(n Notice) string {
		if n.Kind == NoticeEnter {
			return "** " + n.Actor + " **"
		}
		return ""
	})
	alice := enter(t, m, "u1", "Alice", "plaza")
	enter(t, m, "u2", "Bob", "plaza")
	_, err := m.Leave("u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"** Bob **"}, drain(alice.Queue))
}

func TestManager_Locations(t *testing.T) {
	m := newTestManager(t)
	_, _, err := m.Enter(EnterParams{UID: "u2", CharacterID: 2, CharName: "Bob", RoomID: "hall", Queue: NewQueue("u2", 8)})
	require.NoError(t, err)
	_, _, err = m.Enter(EnterParams{UID: "u1", CharacterID: 1, CharName: "Alice", RoomID: "plaza", Queue: NewQueue("u1", 8)})
	require.NoError(t, err)

	assert.Equal(t, []Location{
		{CharacterID: 1, CharName: "Alice", RoomID: "plaza"},
		{CharacterID: 2, CharName: "Bob", RoomID: "hall"},
	}, m.Locations())
}

func TestManager_GetPlayerByCharName(t *testing.T) {
	m := newTestManager(t)
	enter(t, m, "u1", "Alice", "plaza")
	sess, ok := m.GetPlayerByCharName("aLiCe")
	require.True(t, ok)
	assert.Equal(t, "u1", sess.UID)
	_, ok = m.GetPlayerByCharName("Bob")
	assert.False(t, ok)
}

func TestDefaultNoticeText(t *testing.T) {
	cases := []struct {
		n    Notice
		want string
	}{
		{Notice{Kind: NoticeEnter, Actor: "A"}, "A has entered the world."},
		{Notice{Kind: NoticeLeave, Actor: "A"}, "A has left the world."},
		{Notice{Kind: NoticeDepart, Actor: "A", Direction: world.Up}, "A leaves up."},
		{Notice{Kind: NoticeArrive, Actor: "A", Direction: world.Up}, "A arrives from below."},
		{Notice{Kind: NoticeArrive, Actor: "A", Direction: world.Down}, "A arrives from above."},
		{Notice{Kind: NoticeArrive, Actor: "A", Direction: world.Northeast}, "A arrives from the southwest."},
		{Notice{Kind: NoticeArrive, Actor: "A", Direction: "portal"}, "A arrives."},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DefaultNoticeText(tc.n))
	}
}

func TestManager_ConcurrentMovesKeepInvariants(t *testing.T) {
	m := newTestManager(t)
	const players = 16
	for i := 0; i < players; i++ {
		enter(t, m, fmt.Sprintf("u%d", i), fmt.Sprintf("Player%c", 'A'+i), "plaza")
	}

	route := []world.Direction{world.North, "ladder", world.Down, world.South}
	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			for round := 0; round < 25; round++ {
				for _, dir := range route {
					_, err := m.Move(uid, dir)
					assert.NoError(t, err)
					_, err = m.Deliver(GlobalAudience(uid), "ping")
					assert.NoError(t, err)
				}
			}
		}(fmt.Sprintf("u%d", i))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			assert.NoError(t, m.CheckInvariants())
			_ = m.Locations()
		}
	}()

	wg.Wait()
	<-done
	require.NoError(t, m.CheckInvariants())
	assert.Len(t, m.PlayersInRoom("plaza"), players)
}

// Every observer sees one mover's notices in the order the moves happened.
func TestManager_PerRecipientOrdering(t *testing.T) {
	m := newTestManager(t)
	observer, _, err := m.Enter(EnterParams{UID: "obs", CharName: "Observer", RoomID: "plaza", Queue: NewQueue("obs", 4096)})
	require.NoError(t, err)
	enter(t, m, "mover", "Mover", "plaza")
	drain(observer.Queue)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, err := m.Move("mover", world.North)
			assert.NoError(t, err)
			_, err = m.Move("mover", world.South)
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, err := m.Deliver(GlobalAudience(""), "noise")
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	var moves []string
	for _, line := range drain(observer.Queue) {
		if line != "noise" {
			moves = append(moves, line)
		}
	}
	require.Len(t, moves, 400)
	for i := 0; i < len(moves); i += 2 {
		assert.Equal(t, "Mover leaves north.", moves[i])
		assert.Equal(t, "Mover arrives from the north.", moves[i+1])
	}
}

func TestPropertyManager_OccupancyMatchesLocation(t *testing.T) {
	g := testGraph(t)
	rooms := g.RoomIDs()
	dirs := []world.Direction{world.North, world.South, world.East, world.West, world.Down, "ladder", "nowhere"}

	rapid.Check(t, func(rt *rapid.T) {
		m := NewManager(g, zaptest.NewLogger(t))
		online := map[string]string{}
		ops := rapid.IntRange(1, 80).Draw(rt, "ops")
		for i := 0; i < ops; i++ {
			uid := fmt.Sprintf("u%d", rapid.IntRange(0, 5).Draw(rt, "player"))
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				room := rapid.SampledFrom(rooms).Draw(rt, "room")
				_, _, err := m.Enter(EnterParams{UID: uid, CharName: "Name" + uid[1:], RoomID: room, Queue: NewQueue(uid, 4)})
				if _, exists := online[uid]; exists {
					if err == nil {
						rt.Fatalf("%s entered twice", uid)
					}
				} else if err != nil {
					rt.Fatalf("enter %s: %v", uid, err)
				} else {
					online[uid] = room
				}
			case 1:
				dir := rapid.SampledFrom(dirs).Draw(rt, "dir")
				before, known := online[uid]
				res, err := m.Move(uid, dir)
				if err == nil {
					online[uid] = res.View.Room.ID
				} else if known {
					after, _ := m.RoomOf(uid)
					if after.ID != before {
						rt.Fatalf("failed move changed room %q -> %q", before, after.ID)
					}
				}
			case 2:
				_, err := m.Leave(uid)
				if _, known := online[uid]; known != (err == nil) {
					rt.Fatalf("leave %s: known=%v err=%v", uid, known, err)
				}
				delete(online, uid)
			}
			if err := m.CheckInvariants(); err != nil {
				rt.Fatalf("after op %d: %v", i, err)
			}
		}
		if m.PlayerCount() != len(online) {
			rt.Fatalf("player count %d, model %d", m.PlayerCount(), len(online))
		}
		for uid, room := range online {
			got, err := m.RoomOf(uid)
			if err != nil || got.ID != room {
				rt.Fatalf("%s: want %q got %v (%v)", uid, room, got, err)
			}
		}
	})
}

func TestManager_Peek(t *testing.T) {
	m := newTestManager(t)
	alice := enter(t, m, "u1", "Alice", "plaza")
	bob := enter(t, m, "u2", "Bob", "hall")
	drain(alice.Queue)
	drain(bob.Queue)

	view, err := m.Peek("u1", world.North)
	require.NoError(t, err)
	assert.Equal(t, "hall", view.Room.ID)
	assert.Equal(t, []string{"Bob"}, view.Occupants)

	_, err = m.Peek("u1", world.East)
	assert.ErrorIs(t, err, ErrExitLocked)
	_, err = m.Peek("u1", world.West)
	assert.ErrorIs(t, err, ErrNoSuchExit)
	_, err = m.Peek("ghost", world.North)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	view, err = m.Peek("u2", "ladder")
	require.NoError(t, err)
	assert.Equal(t, "loft", view.Room.ID)

	room, err := m.RoomOf("u1")
	require.NoError(t, err)
	assert.Equal(t, "plaza", room.ID)
	assert.Empty(t, drain(bob.Queue))
	require.NoError(t, m.CheckInvariants())
}
