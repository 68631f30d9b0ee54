// Package journal records placement runs in a SQLite database so a run can
// be audited, compared against earlier runs of the same source, or resumed
// by hand after a failure.
package journal

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the journal database.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the journal at path and applies all
// pending migrations. Use ":memory:" for a throwaway journal.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent and matches
	// the driver's strictly sequential writes.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}
