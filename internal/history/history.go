// Package history persists one row per distinct source snapshot so
// completion trends can be charted across fetches.
package history

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS metric_runs (
	id              TEXT PRIMARY KEY,
	snapshot_id     TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL DEFAULT '',
	taken_at        DATETIME NOT NULL,
	checksum        TEXT NOT NULL,
	total           INTEGER NOT NULL DEFAULT 0,
	open            INTEGER NOT NULL DEFAULT 0,
	working         INTEGER NOT NULL DEFAULT 0,
	done            INTEGER NOT NULL DEFAULT 0,
	archived        INTEGER NOT NULL DEFAULT 0,
	overdue         INTEGER NOT NULL DEFAULT 0,
	completion_rate REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_metric_runs_taken_at ON metric_runs(taken_at);
`

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS metric_runs (
	id              TEXT PRIMARY KEY,
	snapshot_id     TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL DEFAULT '',
	taken_at        TIMESTAMPTZ NOT NULL,
	checksum        TEXT NOT NULL,
	total           INTEGER NOT NULL DEFAULT 0,
	open            INTEGER NOT NULL DEFAULT 0,
	working         INTEGER NOT NULL DEFAULT 0,
	done            INTEGER NOT NULL DEFAULT 0,
	archived        INTEGER NOT NULL DEFAULT 0,
	overdue         INTEGER NOT NULL DEFAULT 0,
	completion_rate DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_metric_runs_taken_at ON metric_runs(taken_at);
`

// DB wraps a sql.DB with history-specific operations.
type DB struct {
	conn   *sql.DB
	driver string
}

// Open connects with driver and applies the schema. For sqlite3 the dsn is a
// file path; for pgx it is a PostgreSQL connection URL.
func Open(driver, dsn string) (*DB, error) {
	var schema string
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
		schema = sqliteSchemaSQL
	case DriverPostgres:
		schema = postgresSchemaSQL
	default:
		return nil, fmt.Errorf("history: unsupported driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := conn.Exec(stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("history: apply schema: %w", err)
		}
	}
	return &DB{conn: conn, driver: driver}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
