package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	. "github.com/memoria-dev/memoria/internal/logging"
)

// Store is a handle to the embedded SQLite database backing every
// memoria entity. All exported methods on Store are failure-tolerant:
// see the package doc for the contract.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if absent) the SQLite database at path and runs
// pending migrations. The caller owns the returned Store and must call
// Close when done.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The FTS5 triggers issue nested statements against the same
	// connection; go-sqlite3 serializes via database/sql's pool, but a
	// single connection avoids SQLITE_BUSY under WAL during migration.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path this Store was opened with.
func (s *Store) Path() string {
	return s.path
}

func logStoreError(op string, err error, kv ...interface{}) {
	args := append([]interface{}{"op", op, "error", err}, kv...)
	L_error("store: operation failed", args...)
}
