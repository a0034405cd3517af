// Package testutil holds test helpers: a throwaway PostgreSQL container, the
// persistence contract suite every gateway must pass, and a telnet client.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/vowmud/internal/config"
	"github.com/cory-johannsen/vowmud/internal/storage/migrations"
	"github.com/cory-johannsen/vowmud/internal/storage/postgres"
)

const (
	pgImage = "postgres:16-alpine"
	pgCreds = "vowmud"
)

// PostgresContainer is a migrated database with a pool already connected.
type PostgresContainer struct {
	Pool   *postgres.Pool
	Config config.DatabaseConfig
}

// NewPostgresContainer starts PostgreSQL in a container and migrates it.
// The test is skipped under -short or when no container runtime is usable.
// Everything is torn down by t.Cleanup.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("container tests are skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	began := time.Now()
	fatal := func(step string, err error) {
		t.Helper()
		t.Fatalf("%s: %v (after %s)", step, err, time.Since(began))
	}

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        pgImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     pgCreds,
				"POSTGRES_PASSWORD": pgCreds,
				"POSTGRES_DB":       pgCreds,
			},
			// The server logs readiness once for the init run and again for real.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30 * time.Second),
		},
	})
	if err != nil {
		fatal("starting "+pgImage, err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	host, err := ctr.Host(ctx)
	if err != nil {
		fatal("container host", err)
	}
	port, err := ctr.MappedPort(ctx, "5432")
	if err != nil {
		fatal("container port", err)
	}

	cfg := config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            pgCreds,
		Password:        pgCreds,
		Name:            pgCreds,
		SSLMode:         "disable",
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Minute,
	}
	if err := migrations.Up(config.DriverPostgres, migrations.PostgresURL(cfg)); err != nil {
		fatal("migrating", err)
	}
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		fatal("connecting", err)
	}
	t.Cleanup(pool.Close)

	t.Logf("postgres ready at %s:%d in %s", host, cfg.Port, time.Since(began))
	return &PostgresContainer{Pool: pool, Config: cfg}
}
