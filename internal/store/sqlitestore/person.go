package sqlitestore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/kinlink/kinlink/internal/ids"
	"github.com/kinlink/kinlink/internal/kinderr"
	"github.com/kinlink/kinlink/internal/model"
	"github.com/kinlink/kinlink/internal/store"
)

// WritePerson writes the person row, its identities, vital events, and
// claims in one transaction, and refreshes the FTS row in the same
// transaction so a search can never observe a person whose base row
// isn't present yet.
func (s *Store) WritePerson(ctx context.Context, fp store.FullPerson) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		p := fp.Person
		_, err := tx.ExecContext(ctx, `
			INSERT INTO person (person_id, display, birth_name, gender, living, bio, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(person_id) DO UPDATE SET
				display = excluded.display,
				birth_name = excluded.birth_name,
				gender = excluded.gender,
				living = excluded.living,
				bio = excluded.bio,
				updated_at = excluded.updated_at
		`, p.PersonID, p.Display, p.BirthName, string(p.Gender), boolToInt(p.Living), p.Bio, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return kinderr.WrapDB("write_person", p.PersonID, err)
		}

		for _, ident := range fp.Identities {
			if err := upsertIdentity(ctx, tx, ident); err != nil {
				return err
			}
		}

		for _, ev := range fp.Events {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO vital_event (person_id, event_type, date_original, date_year, place, place_id, source)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(person_id, event_type, source) DO UPDATE SET
					date_original = excluded.date_original,
					date_year = excluded.date_year,
					place = excluded.place,
					place_id = excluded.place_id
			`, ev.PersonID, string(ev.EventType), ev.DateOriginal, ev.DateYear, ev.Place, ev.PlaceID, ev.Source)
			if err != nil {
				return kinderr.WrapDB("write_vital_event", p.PersonID, err)
			}
		}

		var occupations, aliases []string
		for _, c := range fp.Claims {
			if c.ClaimID == "" {
				c.ClaimID = ids.New()
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO claim (claim_id, person_id, predicate, value_text, source)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(person_id, predicate, value_text, source) DO NOTHING
			`, c.ClaimID, c.PersonID, c.Predicate, c.Value, c.Source)
			if err != nil {
				return kinderr.WrapDB("write_claim", p.PersonID, err)
			}
			switch c.Predicate {
			case "occupation":
				occupations = append(occupations, c.Value)
			case "alias":
				aliases = append(aliases, c.Value)
			}
		}

		if p.BirthName != "" && p.BirthName != p.Display {
			aliases = append(aliases, p.BirthName)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM person_fts WHERE person_id = ?`, p.PersonID); err != nil {
			return kinderr.WrapDB("fts_delete", p.PersonID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO person_fts (person_id, display, birth_name, aliases, bio, occupations)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.PersonID, p.Display, p.BirthName, strings.Join(aliases, " "), p.Bio, strings.Join(occupations, " ")); err != nil {
			return kinderr.WrapDB("fts_insert", p.PersonID, err)
		}

		return nil
	})
}

func upsertIdentity(ctx context.Context, tx *sql.Tx, ident model.ExternalIdentity) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO external_identity (person_id, source, external_id, url, confidence, registered_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, external_id) DO UPDATE SET
			person_id = excluded.person_id,
			url = excluded.url,
			confidence = MAX(external_identity.confidence, excluded.confidence),
			registered_at = excluded.registered_at
	`, ident.PersonID, ident.Source, ident.ExternalID, ident.URL, ident.Confidence, ident.RegisteredAt)
	if err != nil {
		return kinderr.WrapDB("register_identity", ident.ExternalID, err)
	}
	return nil
}

// GetPerson returns a person by canonical ID.
func (s *Store) GetPerson(ctx context.Context, personID string) (*model.Person, error) {
	var p model.Person
	var gender, living string
	row := s.db.QueryRowContext(ctx, `
		SELECT person_id, display, birth_name, gender, living, bio, created_at, updated_at
		FROM person WHERE person_id = ?
	`, personID)
	if err := row.Scan(&p.PersonID, &p.Display, &p.BirthName, &gender, &living, &p.Bio, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, kinderr.WrapDB("get_person", personID, err)
	}
	p.Gender = model.Gender(gender)
	p.Living = living != "0"
	return &p, nil
}

// EventsOf returns every vital event recorded for a person across all
// sources.
func (s *Store) EventsOf(ctx context.Context, personID string) ([]model.VitalEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id, event_type, date_original, date_year, place, place_id, source
		FROM vital_event WHERE person_id = ?
		ORDER BY event_type, source
	`, personID)
	if err != nil {
		return nil, kinderr.WrapDB("events_of", personID, err)
	}
	defer rows.Close()

	var out []model.VitalEvent
	for rows.Next() {
		var e model.VitalEvent
		var eventType string
		if err := rows.Scan(&e.PersonID, &eventType, &e.DateOriginal, &e.DateYear, &e.Place, &e.PlaceID, &e.Source); err != nil {
			return nil, kinderr.WrapDB("events_of_scan", personID, err)
		}
		e.EventType = model.EventType(eventType)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Search runs the person_fts full-text query.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]store.SearchHit, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.person_id, p.display, bm25(person_fts) AS rank
		FROM person_fts f
		JOIN person p ON p.person_id = f.person_id
		WHERE person_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery(query), limit)
	if err != nil {
		return nil, kinderr.WrapDB("search", query, err)
	}
	defer rows.Close()

	var hits []store.SearchHit
	for rows.Next() {
		var h store.SearchHit
		if err := rows.Scan(&h.PersonID, &h.Display, &h.Rank); err != nil {
			return nil, kinderr.WrapDB("search_scan", query, err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ftsQuery quotes each term so punctuation in names (apostrophes,
// hyphens) doesn't break FTS5's query syntax. FTS5 string literals
// escape an embedded double quote by doubling it, not with a
// backslash, so this can't reuse fmt's %q/Go-string quoting.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
