package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kinlink/kinlink/internal/kinderr"
	"github.com/kinlink/kinlink/internal/model"
)

// GetDatabase returns a named rooted subgraph's metadata.
func (s *Store) GetDatabase(ctx context.Context, dbID string) (*model.Database, error) {
	var d model.Database
	row := s.db.QueryRowContext(ctx, `
		SELECT db_id, root_id, name, max_generations FROM database_info WHERE db_id = ?
	`, dbID)
	if err := row.Scan(&d.DBID, &d.RootID, &d.Name, &d.MaxGenerations); err != nil {
		return nil, kinderr.WrapDB("get_database", dbID, err)
	}
	return &d, nil
}

// UpsertDatabase creates or updates a database's metadata.
func (s *Store) UpsertDatabase(ctx context.Context, db model.Database) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO database_info (db_id, root_id, name, max_generations)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(db_id) DO UPDATE SET
				root_id = excluded.root_id,
				name = excluded.name,
				max_generations = excluded.max_generations
		`, db.DBID, db.RootID, db.Name, db.MaxGenerations)
		if err != nil {
			return kinderr.WrapDB("upsert_database", db.DBID, err)
		}
		return nil
	})
}

// DeleteDatabase removes a database and everything that only existed
// because of it: its favorites and memberships, and any member person
// left with no membership in another database — along with that
// person's edges, events, claims, media, identities, and FTS row
//. Blob files stay on disk until an explicit GC.
func (s *Store) DeleteDatabase(ctx context.Context, dbID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT person_id FROM database_membership WHERE db_id = ?`, dbID)
		if err != nil {
			return kinderr.WrapDB("delete_database_members", dbID, err)
		}
		var members []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return kinderr.WrapDB("delete_database_members_scan", dbID, err)
			}
			members = append(members, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return kinderr.WrapDB("delete_database_members", dbID, err)
		}

		for _, stmt := range []string{
			`DELETE FROM favorite WHERE db_id = ?`,
			`DELETE FROM database_membership WHERE db_id = ?`,
			`DELETE FROM database_info WHERE db_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, dbID); err != nil {
				return kinderr.WrapDB("delete_database", dbID, err)
			}
		}

		stranded, err := tx.PrepareContext(ctx, `
			SELECT NOT EXISTS (SELECT 1 FROM database_membership WHERE person_id = ?)
		`)
		if err != nil {
			return kinderr.WrapDB("delete_database_prepare", dbID, err)
		}
		defer stranded.Close()

		purge := make([]*sql.Stmt, 0, 8)
		defer func() {
			for _, p := range purge {
				p.Close()
			}
		}()
		for _, q := range []string{
			`DELETE FROM parent_edge WHERE child_id = ?1 OR parent_id = ?1`,
			`DELETE FROM spouse_edge WHERE person1_id = ?1 OR person2_id = ?1`,
			`DELETE FROM vital_event WHERE person_id = ?`,
			`DELETE FROM claim WHERE person_id = ?`,
			`DELETE FROM media WHERE person_id = ?`,
			`DELETE FROM external_identity WHERE person_id = ?`,
			`DELETE FROM person_fts WHERE person_id = ?`,
			`DELETE FROM person WHERE person_id = ?`,
		} {
			p, err := tx.PrepareContext(ctx, q)
			if err != nil {
				return kinderr.WrapDB("delete_database_prepare", dbID, err)
			}
			purge = append(purge, p)
		}

		for _, personID := range members {
			var orphaned bool
			if err := stranded.QueryRowContext(ctx, personID).Scan(&orphaned); err != nil {
				return kinderr.WrapDB("delete_database_stranded", personID, err)
			}
			if !orphaned {
				continue
			}
			for _, p := range purge {
				if _, err := p.ExecContext(ctx, personID); err != nil {
					return kinderr.WrapDB("delete_database_purge", personID, err)
				}
			}
		}
		return nil
	})
}

// Memberships returns every person's generation within a database.
func (s *Store) Memberships(ctx context.Context, dbID string) ([]model.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT db_id, person_id, is_root, generation FROM database_membership WHERE db_id = ?
	`, dbID)
	if err != nil {
		return nil, kinderr.WrapDB("memberships", dbID, err)
	}
	defer rows.Close()

	var out []model.Membership
	for rows.Next() {
		var m model.Membership
		var isRoot int
		if err := rows.Scan(&m.DBID, &m.PersonID, &isRoot, &m.Generation); err != nil {
			return nil, kinderr.WrapDB("memberships_scan", dbID, err)
		}
		m.IsRoot = isRoot != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// Favorites returns every favorite in a database.
func (s *Store) Favorites(ctx context.Context, dbID string) ([]model.Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT db_id, person_id, why_interesting, tags, added_at FROM favorite WHERE db_id = ?
	`, dbID)
	if err != nil {
		return nil, kinderr.WrapDB("favorites", dbID, err)
	}
	defer rows.Close()

	var out []model.Favorite
	for rows.Next() {
		var f model.Favorite
		var tagsJSON string
		if err := rows.Scan(&f.DBID, &f.PersonID, &f.WhyInteresting, &tagsJSON, &f.AddedAt); err != nil {
			return nil, kinderr.WrapDB("favorites_scan", dbID, err)
		}
		_ = json.Unmarshal([]byte(tagsJSON), &f.Tags)
		out = append(out, f)
	}
	return out, rows.Err()
}

// SetFavorite marks a person as a favorite within a database.
func (s *Store) SetFavorite(ctx context.Context, fav model.Favorite) error {
	if fav.AddedAt.IsZero() {
		fav.AddedAt = time.Now()
	}
	tagsJSON, err := json.Marshal(fav.Tags)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO favorite (db_id, person_id, why_interesting, tags, added_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(db_id, person_id) DO UPDATE SET
				why_interesting = excluded.why_interesting,
				tags = excluded.tags
		`, fav.DBID, fav.PersonID, fav.WhyInteresting, string(tagsJSON), fav.AddedAt)
		if err != nil {
			return kinderr.WrapDB("set_favorite", fav.PersonID, err)
		}
		return nil
	})
}
