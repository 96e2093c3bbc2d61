package db

import "database/sql"

// Database is the storage handle the rest of the application depends on.
// Both the sqlite-backed DB and the per-test database satisfy it.
type Database interface {
	Conn() *sql.DB
	Close() error
	Migrate() error
}

var _ Database = (*DB)(nil)
