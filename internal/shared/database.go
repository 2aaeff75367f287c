package shared

import (
	"database/sql"
	"fmt"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"
)

// NewDatabase opens a connection to a SQLite database at the specified path.
// The path can be ":memory:" for an in-memory database.
// Returns an open database connection or an error if connection fails.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: is its own database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
// Recommended for production use to limit connections and improve performance.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}

// LockDatabase takes an exclusive advisory lock next to the database file so only one process owns the catalog.
//
// In-memory databases need no lock and return a nil [flock.Flock]; [UnlockDatabase] accepts it.
func LockDatabase(path string) (*flock.Flock, error) {
	if path == "" || path == ":memory:" {
		return nil, nil
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire catalog lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCatalogLocked, lock.Path())
	}
	return lock, nil
}

// UnlockDatabase releases a lock obtained from [LockDatabase].
func UnlockDatabase(lock *flock.Flock) error {
	if lock == nil {
		return nil
	}
	return lock.Unlock()
}
