package store

import (
	"os"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func pragma(t *testing.T, s *Store, name string) string {
	t.Helper()
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		t.Fatalf("PRAGMA %s: %v", name, err)
	}
	return value
}

func hasIndex(t *testing.T, s *Store, name string) bool {
	t.Helper()
	var n int
	err := s.db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type='index' AND name=?", name).Scan(&n)
	if err != nil {
		t.Fatalf("sqlite_master: %v", err)
	}
	return n == 1
}

func TestOpen_CreatesFile(t *testing.T) {
	s := createTestStore(t)
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("history file not created: %v", err)
	}
	if got := pragma(t, s, "user_version"); got != "1" {
		t.Errorf("user_version = %s, want 1", got)
	}
}

func TestOpen_ConnectionSettings(t *testing.T) {
	s := createTestStore(t)

	want := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, value := range want {
		if got := pragma(t, s, name); got != value {
			t.Errorf("PRAGMA %s = %s, want %s", name, got, value)
		}
	}
}

func TestOpen_ReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec(`INSERT INTO runs (id, scenario, started_at, duration_ns, passed, failed, total, trace_hash)
		VALUES ('r1', 'items_create', '2026-10-17T09:30:00Z', 0, 1, 0, 1, '')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	var n int
	if err := s.db.QueryRow("SELECT count(*) FROM runs").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("runs after reopen = %d, want 1", n)
	}
}

func TestOpen_UpgradesOldFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	// Make the file look like one written before the scenario index existed.
	for _, stmt := range []string{"DROP INDEX idx_runs_scenario", "PRAGMA user_version = 0"} {
		if _, err := s.db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if !hasIndex(t, s, "idx_runs_scenario") {
		t.Error("idx_runs_scenario not recreated")
	}
	if got := pragma(t, s, "user_version"); got != "1" {
		t.Errorf("user_version = %s, want 1", got)
	}
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "history.db"))
	if err == nil {
		t.Fatal("expected error for a path in a missing directory")
	}
}
