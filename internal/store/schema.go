package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Timestamps are unix milliseconds. Append-only rows carry a value from
// the global sequence so reads can order across tables.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS courses (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		version    TEXT NOT NULL,
		document   TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS progress (
		user_id               TEXT NOT NULL,
		course_id             TEXT NOT NULL,
		lesson_id             TEXT NOT NULL DEFAULT '',
		block_id              TEXT NOT NULL DEFAULT '',
		completion_percentage INTEGER NOT NULL DEFAULT 0,
		score                 INTEGER NOT NULL DEFAULT 0,
		time_spent            INTEGER NOT NULL DEFAULT 0,
		completed             INTEGER NOT NULL DEFAULT 0,
		answers               TEXT,
		completed_at          INTEGER,
		updated_at            INTEGER NOT NULL,
		sequence              INTEGER NOT NULL,
		PRIMARY KEY (user_id, course_id, lesson_id, block_id)
	)`,
	`CREATE INDEX IF NOT EXISTS progress_user_course ON progress (user_id, course_id, sequence)`,
	`CREATE TABLE IF NOT EXISTS user_xp (
		user_id          TEXT PRIMARY KEY,
		total_xp         INTEGER NOT NULL DEFAULT 0,
		level            INTEGER NOT NULL DEFAULT 1,
		xp_to_next_level INTEGER NOT NULL DEFAULT 100,
		updated_at       INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS xp_ledger (
		id          TEXT PRIMARY KEY,
		sequence    INTEGER NOT NULL,
		user_id     TEXT NOT NULL,
		amount      INTEGER NOT NULL,
		source      TEXT NOT NULL,
		source_id   TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS xp_ledger_source ON xp_ledger (user_id, source, source_id)`,
	`CREATE TABLE IF NOT EXISTS achievements (
		code        TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		points      INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS user_achievements (
		user_id    TEXT NOT NULL,
		code       TEXT NOT NULL REFERENCES achievements (code),
		awarded_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         TEXT PRIMARY KEY,
		sequence   INTEGER NOT NULL,
		user_id    TEXT NOT NULL,
		course_id  TEXT NOT NULL DEFAULT '',
		title      TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user ON notifications (user_id, sequence)`,
	`CREATE TABLE IF NOT EXISTS llm_requests (
		sequence      INTEGER PRIMARY KEY,
		provider      TEXT NOT NULL,
		model         TEXT NOT NULL,
		purpose       TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms    INTEGER NOT NULL DEFAULT 0,
		success       INTEGER NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		created_at    INTEGER NOT NULL
	)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
