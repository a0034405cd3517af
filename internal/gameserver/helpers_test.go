package gameserver

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/vowmud/internal/frontend/telnet"
	"github.com/cory-johannsen/vowmud/internal/game/command"
	"github.com/cory-johannsen/vowmud/internal/game/session"
	"github.com/cory-johannsen/vowmud/internal/game/world"
	"github.com/cory-johannsen/vowmud/internal/storage"
)

func testGraph(t testing.TB) *world.Graph {
	t.Helper()
	zone := &world.Zone{
		ID:          "test",
		Name:        "Test",
		Description: "Test zone",
		StartRoom:   "room_a",
		Rooms: map[string]*world.Room{
			"room_a": {
				ID:          "room_a",
				ZoneID:      "test",
				Title:       "Room A",
				Description: "The first room.",
				Exits: []world.Exit{
					{Direction: world.North, TargetRoom: "room_b"},
					{Direction: world.East, TargetRoom: "room_c", Locked: true},
				},
			},
			"room_b": {
				ID:          "room_b",
				ZoneID:      "test",
				Title:       "Room B",
				Description: "The second room.",
				Exits: []world.Exit{
					{Direction: world.South, TargetRoom: "room_a"},
					{Direction: "trapdoor", TargetRoom: "room_c", Hidden: true},
				},
			},
			"room_c": {
				ID:          "room_c",
				ZoneID:      "test",
				Title:       "Room C",
				Description: "A cramped cellar.",
				Exits: []world.Exit{
					{Direction: world.Up, TargetRoom: "room_b"},
				},
			},
		},
	}
	g, err := world.NewGraph([]*world.Zone{zone}, "")
	require.NoError(t, err)
	return g
}

type fakeHooks struct {
	mu    sync.Mutex
	calls []string
	msgs  map[string]string
}

func (f *fakeHooks) OnEnter(zoneID, roomID, character string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, zoneID+"/"+roomID+"/"+character)
	return f.msgs[roomID]
}

type fakeAccounts struct {
	password string
	err      error
}

func (f *fakeAccounts) ChangePassword(_ context.Context, _ int64, oldSecret, newSecret string) error {
	if f.err != nil {
		return f.err
	}
	if oldSecret != f.password {
		return storage.ErrInvalidCredentials
	}
	if err := storage.ValidatePassword(newSecret); err != nil {
		return err
	}
	f.password = newSecret
	return nil
}

type fixture struct {
	sessions   *session.Manager
	router     *Router
	hooks      *fakeHooks
	accounts   *fakeAccounts
	dispatcher *Dispatcher
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	sessions := session.NewManager(testGraph(t), logger)
	router := NewRouter(sessions, logger)
	hooks := &fakeHooks{msgs: map[string]string{"room_c": "It smells of damp earth."}}
	accounts := &fakeAccounts{password: "correct-horse"}

	d, err := NewDispatcher(
		command.DefaultRegistry(),
		NewWorldHandler(sessions, hooks, logger),
		NewChatHandler(sessions, router),
		NewAccountHandler(accounts, logger),
		logger,
	)
	require.NoError(t, err)
	return &fixture{sessions: sessions, router: router, hooks: hooks, accounts: accounts, dispatcher: d}
}

func (f *fixture) enter(t testing.TB, uid, name, room string) *session.PlayerSession {
	t.Helper()
	sess, _, err := f.sessions.Enter(session.EnterParams{
		UID:         uid,
		AccountID:   1,
		CharacterID: int64(len(uid)),
		CharName:    name,
		RoomID:      room,
		Queue:       session.NewQueue(uid, 64),
	})
	require.NoError(t, err)
	return sess
}

func (f *fixture) dispatch(sess *session.PlayerSession, line string) Outcome {
	return f.dispatcher.Dispatch(context.Background(), sess, line)
}

// drain returns the buffered lines of q with ANSI styling removed.
func drain(q *session.Queue) []string {
	var lines []string
	for {
		select {
		case line, ok := <-q.Lines():
			if !ok {
				return lines
			}
			lines = append(lines, telnet.StripANSI(line))
		default:
			return lines
		}
	}
}
