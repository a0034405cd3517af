// Package sqlite provides single-file persistence on modernc.org/sqlite, for
// development and small deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a database/sql handle opened on the "sqlite" driver.
type DB struct {
	db *sql.DB
}

// DSN returns a connection string for path with WAL journaling, a busy timeout,
// and foreign keys enabled.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

// Open opens the database file at path and verifies it is reachable.
//
// Precondition: the schema must already be migrated.
// Postcondition: Returns an open DB or a non-nil error.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

// Health checks that the database answers within timeout.
func (d *DB) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Close releases the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Store combines the account and character repositories into a storage.Gateway.
type Store struct {
	*AccountRepository
	*CharacterRepository
}

// NewStore creates a Store backed by d.
func NewStore(d *DB) *Store {
	return &Store{
		AccountRepository:   &AccountRepository{db: d.db},
		CharacterRepository: &CharacterRepository{db: d.db},
	}
}

// timestamp scans SQLite DATETIME values, which arrive as time.Time or text
// depending on the column's declared type in the result set.
type timestamp struct {
	t *time.Time
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

func (ts timestamp) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		*ts.t = time.Time{}
		return nil
	case time.Time:
		*ts.t = x
		return nil
	case []byte:
		return ts.parse(string(x))
	case string:
		return ts.parse(x)
	case int64:
		*ts.t = time.Unix(x, 0).UTC()
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func (ts timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*ts.t = t
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
