package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateInitialSchema creates the full schema: person, external
// identity, parent/spouse edges, vital events, claims, databases and
// membership, favorites, blobs, media, place geocodes, and the person_fts
// full-text index.
func MigrateInitialSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS person (
			person_id   TEXT PRIMARY KEY,
			display     TEXT NOT NULL,
			birth_name  TEXT NOT NULL DEFAULT '',
			gender      TEXT NOT NULL DEFAULT 'unknown',
			living      INTEGER NOT NULL DEFAULT 0,
			bio         TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS external_identity (
			person_id     TEXT NOT NULL REFERENCES person(person_id),
			source        TEXT NOT NULL,
			external_id   TEXT NOT NULL,
			url           TEXT NOT NULL DEFAULT '',
			confidence    REAL NOT NULL DEFAULT 1.0,
			registered_at DATETIME NOT NULL,
			PRIMARY KEY (source, external_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_external_identity_person ON external_identity(person_id, source)`,

		`CREATE TABLE IF NOT EXISTS parent_edge (
			child_id    TEXT NOT NULL REFERENCES person(person_id),
			parent_id   TEXT NOT NULL REFERENCES person(person_id),
			parent_role TEXT NOT NULL DEFAULT 'parent',
			source      TEXT NOT NULL,
			PRIMARY KEY (child_id, parent_id, source)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_parent_edge_parent ON parent_edge(parent_id)`,

		`CREATE TABLE IF NOT EXISTS spouse_edge (
			person1_id TEXT NOT NULL REFERENCES person(person_id),
			person2_id TEXT NOT NULL REFERENCES person(person_id),
			source     TEXT NOT NULL,
			PRIMARY KEY (person1_id, person2_id, source)
		)`,

		`CREATE TABLE IF NOT EXISTS vital_event (
			person_id     TEXT NOT NULL REFERENCES person(person_id),
			event_type    TEXT NOT NULL,
			date_original TEXT NOT NULL DEFAULT '',
			date_year     INTEGER,
			place         TEXT NOT NULL DEFAULT '',
			place_id      TEXT NOT NULL DEFAULT '',
			source        TEXT NOT NULL,
			PRIMARY KEY (person_id, event_type, source)
		)`,

		`CREATE TABLE IF NOT EXISTS claim (
			claim_id   TEXT PRIMARY KEY,
			person_id  TEXT NOT NULL REFERENCES person(person_id),
			predicate  TEXT NOT NULL,
			value_text TEXT NOT NULL,
			source     TEXT NOT NULL,
			UNIQUE (person_id, predicate, value_text, source)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_claim_person ON claim(person_id)`,

		`CREATE TABLE IF NOT EXISTS database_info (
			db_id          TEXT PRIMARY KEY,
			root_id        TEXT NOT NULL REFERENCES person(person_id),
			name           TEXT NOT NULL DEFAULT '',
			max_generations INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS database_membership (
			db_id      TEXT NOT NULL REFERENCES database_info(db_id),
			person_id  TEXT NOT NULL REFERENCES person(person_id),
			is_root    INTEGER NOT NULL DEFAULT 0,
			generation INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (db_id, person_id)
		)`,

		`CREATE TABLE IF NOT EXISTS favorite (
			db_id           TEXT NOT NULL REFERENCES database_info(db_id),
			person_id       TEXT NOT NULL REFERENCES person(person_id),
			why_interesting TEXT NOT NULL DEFAULT '',
			tags            TEXT NOT NULL DEFAULT '[]',
			added_at        DATETIME NOT NULL,
			PRIMARY KEY (db_id, person_id)
		)`,

		`CREATE TABLE IF NOT EXISTS blob (
			blob_hash  TEXT PRIMARY KEY,
			path       TEXT NOT NULL,
			mime_type  TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			width      INTEGER,
			height     INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS media (
			media_id   TEXT PRIMARY KEY,
			person_id  TEXT NOT NULL REFERENCES person(person_id),
			blob_hash  TEXT NOT NULL REFERENCES blob(blob_hash),
			source     TEXT NOT NULL,
			is_primary INTEGER NOT NULL DEFAULT 0,
			caption    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_media_blob ON media(blob_hash)`,

		`CREATE TABLE IF NOT EXISTS place_geocode (
			place_text   TEXT PRIMARY KEY,
			lat          REAL NOT NULL DEFAULT 0,
			lng          REAL NOT NULL DEFAULT 0,
			display_name TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'pending',
			geocoded_at  DATETIME
		)`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS person_fts USING fts5(
			person_id UNINDEXED,
			display,
			birth_name,
			aliases,
			bio,
			occupations
		)`,
	}

	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("initial schema: %s: %w", s, err)
		}
	}
	return nil
}
