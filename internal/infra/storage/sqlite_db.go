package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// InitSQLite opens the local SQLite database and creates the snapshot and
// event schemas.
func InitSQLite(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := createSchemas(db, sqliteDialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

// NewSQLiteEventRepository returns the event repository for a SQLite database.
func NewSQLiteEventRepository(db *sql.DB) *SQLEventRepository {
	return newSQLEventRepository(db, sqliteDialect)
}

// NewSQLiteSnapshotRepository returns the snapshot repository for a SQLite database.
func NewSQLiteSnapshotRepository(db *sql.DB) *SQLSnapshotRepository {
	return newSQLSnapshotRepository(db, sqliteDialect)
}
