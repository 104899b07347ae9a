// Package database wraps the sql.DB handle used by the store
// implementations, following the lib/pq connection idiom.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// DB wraps a standard sql.DB connection pool opened against Postgres.
type DB struct {
	*sql.DB
}

// Connect opens a connection pool against the given Postgres URL and
// verifies it with a ping.
func Connect(databaseURL string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB}, nil
}
