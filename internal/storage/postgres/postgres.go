// Package postgres is the production persistence gateway, on pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/vowmud/internal/config"
)

// uniqueViolation is the SQLSTATE for a broken unique constraint.
const uniqueViolation = "23505"

// Pool is a pgx connection pool sized from config.DatabaseConfig.
type Pool struct {
	db *pgxpool.Pool
}

// NewPool connects and pings. The schema is expected to be migrated already.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn for %s: %w", cfg.Host, err)
	}
	pc.MaxConns, pc.MinConns = cfg.MaxConns, cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime

	db, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Pool{db: db}, nil
}

// Health pings the server, giving up after timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.db.Ping(ctx)
}

func (p *Pool) Close() { p.db.Close() }

// Store is the storage.Gateway over a Pool.
type Store struct {
	*AccountRepository
	*CharacterRepository
}

func NewStore(p *Pool) *Store {
	return &Store{
		AccountRepository:   NewAccountRepository(p.db),
		CharacterRepository: NewCharacterRepository(p.db),
	}
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
