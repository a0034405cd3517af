package handlers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/vowmud/internal/config"
	"github.com/cory-johannsen/vowmud/internal/frontend/telnet"
	"github.com/cory-johannsen/vowmud/internal/game/command"
	"github.com/cory-johannsen/vowmud/internal/game/session"
	"github.com/cory-johannsen/vowmud/internal/game/world"
	"github.com/cory-johannsen/vowmud/internal/gameserver"
	"github.com/cory-johannsen/vowmud/internal/storage"
	"github.com/cory-johannsen/vowmud/internal/storage/migrations"
	"github.com/cory-johannsen/vowmud/internal/storage/sqlite"
	"github.com/cory-johannsen/vowmud/internal/testutil"
)

const (
	testPassword = "correct-horse"
	readTimeout  = 5 * time.Second
)

func testGraph(t testing.TB) *world.Graph {
	t.Helper()
	zone := &world.Zone{
		ID:          "test",
		Name:        "Test",
		Description: "Test zone",
		StartRoom:   "start",
		Rooms: map[string]*world.Room{
			"start": {
				ID:          "start",
				ZoneID:      "test",
				Title:       "Courtyard",
				Description: "A cobbled courtyard.",
				Exits:       []world.Exit{{Direction: world.North, TargetRoom: "hall"}},
			},
			"hall": {
				ID:          "hall",
				ZoneID:      "test",
				Title:       "Great Hall",
				Description: "Banners hang from the rafters.",
				Exits:       []world.Exit{{Direction: world.South, TargetRoom: "start"}},
			},
		},
	}
	g, err := world.NewGraph([]*world.Zone{zone}, "")
	require.NoError(t, err)
	return g
}

// server is a complete in-process game server listening on a loopback port.
type server struct {
	addr     string
	store    *sqlite.Store
	sessions *session.Manager
	acceptor *telnet.Acceptor
}

func newServer(t *testing.T, opts Options) *server {
	t.Helper()
	logger := zaptest.NewLogger(t)

	path := filepath.Join(t.TempDir(), "mud.db")
	require.NoError(t, migrations.Up(config.DriverSQLite, migrations.SQLiteURL(path)))
	db, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := sqlite.NewStore(db)

	sessions := session.NewManager(testGraph(t), logger)
	router := gameserver.NewRouter(sessions, logger)
	dispatcher, err := gameserver.NewDispatcher(
		command.DefaultRegistry(),
		gameserver.NewWorldHandler(sessions, nil, logger),
		gameserver.NewChatHandler(sessions, router),
		gameserver.NewAccountHandler(store, logger),
		logger,
	)
	require.NoError(t, err)

	if opts.FlushTimeout == 0 {
		opts.FlushTimeout = time.Second
	}
	handler := NewGameHandler(store, sessions, dispatcher, opts, logger)
	acc := telnet.NewAcceptor(config.TelnetConfig{
		Host:          "127.0.0.1",
		Port:          0,
		WriteTimeout:  5 * time.Second,
		MaxLineLength: 256,
	}, 0, handler, logger)

	go func() { _ = acc.ListenAndServe() }()
	t.Cleanup(acc.Stop)
	require.Eventually(t, func() bool { return acc.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	return &server{addr: acc.Addr(), store: store, sessions: sessions, acceptor: acc}
}

// seed creates an account owning one character and returns the account.
func (s *server) seed(t *testing.T, username, charName string) storage.Account {
	t.Helper()
	ctx := context.Background()
	acct, err := s.store.CreateAccount(ctx, username, testPassword)
	require.NoError(t, err)
	_, err = s.store.CreateCharacter(ctx, acct.ID, charName, "start")
	require.NoError(t, err)
	return acct
}

// login connects, authenticates, selects the account's first character, and
// consumes output through the first room view.
func (s *server) login(t *testing.T, username, charName string) *testutil.TelnetClient {
	t.Helper()
	c := testutil.NewTelnetClient(t, s.addr)
	c.ReadUntil("Username: ", readTimeout)
	c.Send(username)
	c.ReadUntil("Password: ", readTimeout)
	c.Send(testPassword)
	c.ReadUntil("Select: ", readTimeout)
	c.Send("1")
	c.ReadUntil("Welcome, "+charName+".", readTimeout)
	c.ReadUntil("[Exits:", readTimeout)
	s.waitOnline(t, charName, true)
	return c
}

// waitOnline blocks until name is registered with the world.
func (s *server) waitOnline(t *testing.T, name string, online bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.sessions.IsOnline(name) == online
	}, readTimeout, 10*time.Millisecond)
}
