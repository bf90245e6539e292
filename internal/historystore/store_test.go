package historystore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dronemesh/meshsim/internal/node"
	"github.com/dronemesh/meshsim/internal/topology"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "history.db"), dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleConfig() topology.Config {
	return topology.Config{
		Drones:  []topology.DroneSpec{{ID: 1, Neighbors: []node.ID{10}}},
		Clients: []topology.HostSpec{{ID: 10, Neighbors: []node.ID{1}}},
	}
}

func TestSaveSnapshotWritesFileAndRecord(t *testing.T) {
	store := newTestStore(t)

	path, err := store.SaveSnapshot(sampleConfig())
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected snapshot file at %s: %v", path, err)
	}

	snaps, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 recorded snapshot, got %d", len(snaps))
	}
	if snaps[0].Path != path {
		t.Errorf("expected recorded path %s, got %s", path, snaps[0].Path)
	}
	if snaps[0].ID == "" {
		t.Error("expected a non-empty uuid id")
	}
}

func TestListOrdersMostRecentFirst(t *testing.T) {
	store := newTestStore(t)

	first, err := store.SaveSnapshot(sampleConfig())
	if err != nil {
		t.Fatalf("SaveSnapshot (first): %v", err)
	}
	time.Sleep(1100 * time.Millisecond) // unix_mtime has 1s resolution
	second, err := store.SaveSnapshot(sampleConfig())
	if err != nil {
		t.Fatalf("SaveSnapshot (second): %v", err)
	}

	snaps, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].Path != second || snaps[1].Path != first {
		t.Fatalf("expected most-recent-first order [%s, %s], got [%s, %s]", second, first, snaps[0].Path, snaps[1].Path)
	}
}

func TestDeleteRemovesFileAndRecord(t *testing.T) {
	store := newTestStore(t)

	path, err := store.SaveSnapshot(sampleConfig())
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	if err := store.Delete(path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected snapshot file to be removed, stat err=%v", err)
	}
	snaps, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 0 {
		t.Fatalf("expected no recorded snapshots after delete, got %d", len(snaps))
	}
}

func TestDeleteUnknownPathIsNoop(t *testing.T) {
	store := newTestStore(t)
	if err := store.Delete("/nonexistent/path.toml"); err != nil {
		t.Fatalf("expected no error deleting an unrecorded path, got %v", err)
	}
}

func TestReopenPreservesRecords(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")

	store1, err := Open(dbPath, dir)
	if err != nil {
		t.Fatalf("Open (first): %v", err)
	}
	path, err := store1.SaveSnapshot(sampleConfig())
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := store1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store2, err := Open(dbPath, dir)
	if err != nil {
		t.Fatalf("Open (second): %v", err)
	}
	defer store2.Close()

	snaps, err := store2.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Path != path {
		t.Fatalf("expected the snapshot to survive reopen, got %+v", snaps)
	}
}
