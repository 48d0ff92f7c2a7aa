package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: Initial schema
	`CREATE TABLE IF NOT EXISTS bills (
		id                              INTEGER PRIMARY KEY AUTOINCREMENT,
		title                           TEXT NOT NULL,
		amount                          TEXT NOT NULL DEFAULT '0',
		due_date                        TEXT NOT NULL,
		status                          TEXT NOT NULL DEFAULT 'unpaid' CHECK(status IN ('unpaid', 'paid')),
		category                        TEXT NOT NULL DEFAULT '',
		is_recurring                    INTEGER NOT NULL DEFAULT 0,
		recurring_interval              TEXT NOT NULL DEFAULT '',
		invoice_url                     TEXT NOT NULL DEFAULT '',
		reminder_sound_interval_minutes INTEGER NOT NULL DEFAULT 120,
		last_email_reminded_at          INTEGER,
		last_reminded_at                INTEGER,
		created_at                      INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bills_status ON bills(status);
	CREATE INDEX IF NOT EXISTS idx_bills_due_date ON bills(due_date);

	CREATE TABLE IF NOT EXISTS settings (
		id                  INTEGER PRIMARY KEY CHECK(id = 1),
		user_email          TEXT NOT NULL DEFAULT '',
		is_email_enabled    INTEGER NOT NULL DEFAULT 1,
		telegram_token      TEXT NOT NULL DEFAULT '',
		telegram_chat_id    TEXT NOT NULL DEFAULT '',
		is_telegram_enabled INTEGER NOT NULL DEFAULT 0,
		alert_sound_url     TEXT NOT NULL DEFAULT '',
		is_sound_enabled    INTEGER NOT NULL DEFAULT 0,
		is_muted            INTEGER NOT NULL DEFAULT 0,
		updated_at          INTEGER NOT NULL
	);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	// Ensure migration tracking table exists
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
