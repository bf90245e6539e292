package historystore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dronemesh/meshsim/internal/config"
	"github.com/dronemesh/meshsim/internal/topology"
)

// Snapshot is one recorded topology-file snapshot's metadata.
type Snapshot struct {
	ID        string
	Name      string
	Path      string
	UnixMtime int64
}

// Store writes timestamped topology-file snapshots into snapshotDir and
// indexes them in a SQLite database, satisfying controller.HistoryStore.
type Store struct {
	db          *sql.DB
	snapshotDir string
}

// Open opens (creating if absent) the SQLite database at dbPath,
// applies pending migrations, and ensures snapshotDir exists.
func Open(dbPath, snapshotDir string) (*Store, error) {
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		return nil, fmt.Errorf("historystore: mkdir %s: %w", snapshotDir, err)
	}

	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, snapshotDir: snapshotDir}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot writes cfg as a timestamped TOML file under the store's
// snapshot directory and records its metadata, satisfying
// controller.HistoryStore. The returned string is the snapshot's
// absolute path.
func (s *Store) SaveSnapshot(cfg topology.Config) (string, error) {
	now := time.Now()
	name := fmt.Sprintf("config_%s.toml", now.Format("20060102150405"))
	path, err := filepath.Abs(filepath.Join(s.snapshotDir, name))
	if err != nil {
		return "", fmt.Errorf("historystore: resolve snapshot path %s: %w", name, err)
	}

	if err := config.WriteTopologyFile(path, cfg); err != nil {
		return "", fmt.Errorf("historystore: write snapshot %s: %w", path, err)
	}

	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO history_snapshots (id, name, path, unix_mtime) VALUES (?, ?, ?, ?)`,
		id, name, path, now.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("historystore: record snapshot %s: %w", path, err)
	}
	return path, nil
}

// List returns every recorded snapshot, most recently written first.
func (s *Store) List() ([]Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT id, name, path, unix_mtime FROM history_snapshots ORDER BY unix_mtime DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("historystore: list: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Name, &snap.Path, &snap.UnixMtime); err != nil {
			return nil, fmt.Errorf("historystore: scan: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Delete removes the snapshot recorded at the given absolute path, both
// its file on disk and its database row. A path with no matching record
// is a no-op.
func (s *Store) Delete(path string) error {
	res, err := s.db.Exec(`DELETE FROM history_snapshots WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("historystore: delete %s: %w", path, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("historystore: delete %s: %w", path, err)
	}
	if affected == 0 {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("historystore: remove file %s: %w", path, err)
	}
	return nil
}
