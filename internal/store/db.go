package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrStorageUnavailable marks any local persistence failure. Callers degrade
// to remote-only operation; it is never fatal.
var ErrStorageUnavailable = errors.New("local store unavailable")

// DB wraps a SQLite database connection for the app-owned cache.db.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w: %w", ErrStorageUnavailable, err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w: %w", ErrStorageUnavailable, err)
	}
	return &DB{db}, nil
}

// storageErr wraps a backend error so callers can match ErrStorageUnavailable.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
