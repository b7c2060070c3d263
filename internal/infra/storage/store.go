package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Config selects and configures a backend.
type Config struct {
	Type string // "sqlite" or "postgres"
	Path string // sqlite file
	URL  string // postgres connection string
	Pool PoolConfig
}

// Store bundles the repositories of one database.
type Store struct {
	DB        *sql.DB
	Events    EventRepository
	Snapshots SnapshotRepository
	Dialect   string
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Type {
	case "", sqliteDialect.name:
		db, err := InitSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Store{
			DB:        db,
			Events:    NewSQLiteEventRepository(db),
			Snapshots: NewSQLiteSnapshotRepository(db),
			Dialect:   sqliteDialect.name,
		}, nil
	case postgresDialect.name:
		db, err := InitPostgres(ctx, cfg.URL, cfg.Pool)
		if err != nil {
			return nil, err
		}
		return &Store{
			DB:        db,
			Events:    NewPostgresEventRepository(db),
			Snapshots: NewPostgresSnapshotRepository(db),
			Dialect:   postgresDialect.name,
		}, nil
	}
	return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
}

// Close releases the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
