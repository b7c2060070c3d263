package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// PoolConfig sizes the PostgreSQL connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// InitPostgres connects to PostgreSQL through pgx and creates the schemas.
func InitPostgres(ctx context.Context, url string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}
	if err := createSchemas(db, postgresDialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return db, nil
}

// NewPostgresEventRepository returns the event repository for PostgreSQL.
func NewPostgresEventRepository(db *sql.DB) *SQLEventRepository {
	return newSQLEventRepository(db, postgresDialect)
}

// NewPostgresSnapshotRepository returns the snapshot repository for PostgreSQL.
func NewPostgresSnapshotRepository(db *sql.DB) *SQLSnapshotRepository {
	return newSQLSnapshotRepository(db, postgresDialect)
}
