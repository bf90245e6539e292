// Package historystore persists timestamped topology-file snapshots
// taken on every successful start(), indexed in a small SQLite table so
// they can be listed and deleted by path.
package historystore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// CreateDDL is the history_snapshots table definition, the same table the
// embedded golang-migrate migration creates (without its mtime index).
// Nothing in this package executes it; MigrateDB applies only the
// embedded migration files.
const CreateDDL = `
CREATE TABLE IF NOT EXISTS history_snapshots (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	path        TEXT NOT NULL UNIQUE,
	unix_mtime  INTEGER NOT NULL
);
`

// OpenDB opens (or creates) a SQLite database at path with the teacher
// package's recommended pragmas: WAL journal mode, synchronous=NORMAL,
// a single writer connection, and a busy timeout.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("historystore: open db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("historystore: exec %q on %s: %w", pragma, path, err)
		}
	}
	return db, nil
}
