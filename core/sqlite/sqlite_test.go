package sqlite

import (
	"path/filepath"
	"testing"
)

func TestDriverInfo(t *testing.T) {
	info := GetInfo()
	if info.DriverName != DriverName() || info.DriverType != DriverType() || info.IsCGO != IsCGO() {
		t.Errorf("GetInfo() = %+v disagrees with accessors", info)
	}
	if info.Package == "" {
		t.Error("Package should not be empty")
	}
	if !IsCGO() && info.DriverName != "sqlite" {
		t.Errorf("pure Go driver name = %q", info.DriverName)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE runs (id TEXT PRIMARY KEY, groups INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO runs VALUES (?, ?)`, "r1", 3); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var groups int
	if err := db.QueryRow(`SELECT groups FROM runs WHERE id = ?`, "r1").Scan(&groups); err != nil || groups != 3 {
		t.Errorf("select = %d, %v", groups, err)
	}

	var fk int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil || fk != 1 {
		t.Errorf("foreign_keys = %d, %v", fk, err)
	}
}

func TestOpenMemory(t *testing.T) {
	db := MustOpen(":memory:")
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE t (x INTEGER)`); err != nil {
		t.Fatal(err)
	}
	// A second query must see the table, which needs the single connection.
	if _, err := db.Exec(`INSERT INTO t VALUES (1)`); err != nil {
		t.Errorf("table not visible on later statement: %v", err)
	}
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.db")
	db := MustOpen(path)
	db.Exec(`CREATE TABLE t (x INTEGER)`)
	db.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer ro.Close()
	if _, err := ro.Exec(`INSERT INTO t VALUES (1)`); err == nil {
		t.Error("write succeeded on a read-only database")
	}
}

func TestOpenFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "x.db")
	if _, err := Open(path); err == nil {
		t.Error("expected error opening a database in a missing directory")
	}
}

func TestMustOpenPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustOpen did not panic")
		}
	}()
	MustOpen(filepath.Join(t.TempDir(), "missing", "x.db"))
}
