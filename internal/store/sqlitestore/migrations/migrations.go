// Package migrations holds kinlink's numbered schema migrations, one
// function per file (bd's internal/storage/sqlite/migrations/NNN_*.go
// convention).
package migrations

import (
	"database/sql"
	"fmt"
)

// Migration is one numbered, idempotent schema step.
type Migration struct {
	Version int
	Name    string
	Apply   func(db *sql.DB) error
}

// All returns every migration in version order.
func All() []Migration {
	return []Migration{
		{Version: 1, Name: "initial_schema", Apply: MigrateInitialSchema},
	}
}

// Run applies every migration newer than the database's current
// schema_version, one function per migration. Each step and its
// schema_version update run directly on db, not inside a transaction;
// steps are idempotent, so one interrupted part-way is applied again in
// full on the next Run.
func Run(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("migrations: creating schema_version: %w", err)
	}

	var current int
	row := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`)
	if err := row.Scan(&current); err != nil {
		if err != sql.ErrNoRows {
			return fmt.Errorf("migrations: reading schema_version: %w", err)
		}
		current = 0
	}

	for _, m := range All() {
		if m.Version <= current {
			continue
		}
		if err := m.Apply(db); err != nil {
			return fmt.Errorf("migrations: applying %d_%s: %w", m.Version, m.Name, err)
		}
		if _, err := db.Exec(`DELETE FROM schema_version`); err != nil {
			return fmt.Errorf("migrations: clearing schema_version: %w", err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version(version) VALUES (?)`, m.Version); err != nil {
			return fmt.Errorf("migrations: recording version %d: %w", m.Version, err)
		}
		current = m.Version
	}
	return nil
}
