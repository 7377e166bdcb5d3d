// Package database persists posts, scores, profiles and custom patterns.
// It runs on PostgreSQL (lib/pq) or SQLite (modernc) chosen by the DSN.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/XSAM/otelsql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DB represents the database connection
type DB struct {
	conn   *sqlx.DB
	driver string
}

// DriverFor picks the driver for a DSN. PostgreSQL URLs and key/value
// strings select lib/pq; anything else is a SQLite path or URI.
func DriverFor(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"),
		strings.HasPrefix(dsn, "host="), strings.Contains(dsn, " dbname="):
		return DriverPostgres
	default:
		return DriverSQLite
	}
}

// New opens and pings a database connection instrumented with OpenTelemetry
func New(dsn string) (*DB, error) {
	driver := DriverFor(dsn)
	conn, err := otelsql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// one connection keeps in-memory databases shared and serializes writers
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: sqlx.NewDb(conn, driver), driver: driver}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection
func (db *DB) Conn() *sql.DB {
	return db.conn.DB
}

// Driver returns the name of the driver in use
func (db *DB) Driver() string {
	return db.driver
}
