// Package history persists the rolling window of raw maps across process
// restarts. The window is the only shared state between pipeline cycles.
package history

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle backing the history window.
type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the history database at path and applies any
// pending schema migrations.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}
