// Package database backs Vela's Base `Database` module: a small connection
// registry over database/sql, adapted from the teacher's
// internal/database.DatabaseModule (connection-table-plus-mutex shape), with
// the teacher's security-scanning methods (ScanDatabaseService,
// TestCredentials, ScanForVulnerabilities, ...) trimmed — a scientific-
// computing Base library exposes connect/query/close, not a pentest scanner.
package database

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Connection is one open handle, keyed by a caller-chosen ID so Base-level
// Vela code can hold onto it as an opaque string rather than a Go pointer.
type Connection struct {
	ID         string
	Driver     string
	DB         *sql.DB
	OpenedAt   time.Time
	LastAccess time.Time
}

// Module is the process-wide connection registry backing the Database Base
// builtins (internal/base/dbmodule.go). One Module is shared by every VM in
// the process, matching spec.md §5's "read-mostly lock, tolerate poisoning"
// discipline for shared Base-library resources.
type Module struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

func NewModule() *Module {
	return &Module{conns: map[string]*Connection{}}
}

// driverFor maps Vela's Base-level driver name to the registered database/sql
// driver name. Both "sqlite" and "sqlite3" map to modernc.org/sqlite's
// "sqlite" driver (pure Go, no cgo), so the module works without a C
// toolchain available.
func driverFor(name string) string {
	switch name {
	case "mysql":
		return "mysql"
	case "postgres", "postgresql":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite"
	case "mssql", "sqlserver":
		return "sqlserver"
	default:
		return name
	}
}

// Connect opens (or replaces) the connection registered under id.
func (m *Module) Connect(id, driver, dsn string) error {
	db, err := sql.Open(driverFor(driver), dsn)
	if err != nil {
		return fmt.Errorf("database: open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("database: ping %s: %w", driver, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.conns[id]; ok {
		old.DB.Close()
	}
	m.conns[id] = &Connection{ID: id, Driver: driver, DB: db, OpenedAt: time.Now(), LastAccess: time.Now()}
	return nil
}

// Query runs a SELECT and returns each row as a column-name/value map (a Go
// map, so column order is not kept), the shape the VM's Dict value can
// represent directly.
func (m *Module) Query(id, query string, args ...interface{}) ([]map[string]interface{}, error) {
	m.mu.RLock()
	conn, ok := m.conns[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("database: no connection %q", id)
	}
	conn.LastAccess = time.Now()
	rows, err := conn.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("database: query: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("database: scan: %w", err)
		}
		row := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close releases and forgets the connection registered under id.
func (m *Module) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[id]
	if !ok {
		return fmt.Errorf("database: no connection %q", id)
	}
	delete(m.conns, id)
	return conn.DB.Close()
}
