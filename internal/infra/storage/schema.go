package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	name string
	// placeholder returns the n-th (1-based) bind parameter.
	placeholder func(n int) string
	blob        string
	timestamp   string
}

var (
	sqliteDialect = dialect{
		name:        "sqlite",
		placeholder: func(int) string { return "?" },
		blob:        "TEXT",
		timestamp:   "DATETIME",
	}
	postgresDialect = dialect{
		name:        "postgres",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		blob:        "JSONB",
		timestamp:   "TIMESTAMPTZ",
	}
)

// bind rewrites ? placeholders into the dialect's form.
func (d dialect) bind(query string) string {
	if d.name == sqliteDialect.name {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) schemas() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS game_snapshots (
			game_id TEXT PRIMARY KEY,
			sim_time_ns BIGINT NOT NULL,
			saved_at ` + d.timestamp + ` NOT NULL,
			inventory ` + d.blob + ` NOT NULL,
			facilities ` + d.blob + ` NOT NULL,
			crafting_queue ` + d.blob + ` NOT NULL,
			research ` + d.blob + ` NOT NULL,
			extra ` + d.blob + ` NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			timestamp ` + d.timestamp + ` NOT NULL,
			sim_time_ns BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			payload ` + d.blob + ` NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_game_seq ON events(game_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_events_actor_id ON events(actor_id);`,
		`CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type);`,
	}
}

func createSchemas(db *sql.DB, d dialect) error {
	for _, query := range d.schemas() {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}
