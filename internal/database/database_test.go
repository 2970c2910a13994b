package database

import "testing"

func TestConnectQueryClose(t *testing.T) {
	m := NewModule()
	if err := m.Connect("t1", "sqlite", "file::memory:?cache=shared"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if _, err := m.Query("t1", "CREATE TABLE widgets (id INTEGER, name TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := m.Query("t1", "INSERT INTO widgets (id, name) VALUES (1, 'sprocket')"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := m.Query("t1", "SELECT id, name FROM widgets WHERE id = ?", 1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["name"] != "sprocket" {
		t.Fatalf("got name %v", rows[0]["name"])
	}

	if err := m.Close("t1"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := m.Close("t1"); err == nil {
		t.Fatal("expected an error closing an already-closed connection")
	}
}

func TestQueryUnknownConnection(t *testing.T) {
	m := NewModule()
	if _, err := m.Query("missing", "SELECT 1"); err == nil {
		t.Fatal("expected an error for an unregistered connection id")
	}
}

func TestDriverFor(t *testing.T) {
	cases := map[string]string{
		"mysql":      "mysql",
		"postgres":   "postgres",
		"postgresql": "postgres",
		"sqlite":     "sqlite",
		"sqlite3":    "sqlite",
		"mssql":      "sqlserver",
		"sqlserver":  "sqlserver",
	}
	for in, want := range cases {
		if got := driverFor(in); got != want {
			t.Errorf("driverFor(%q) = %q, want %q", in, got, want)
		}
	}
}
