package sqlitestore

import (
	"context"
	"database/sql"

	"github.com/kinlink/kinlink/internal/ids"
	"github.com/kinlink/kinlink/internal/kinderr"
	"github.com/kinlink/kinlink/internal/model"
)

// ExternalIdentities returns every identity row for a person, optionally
// filtered to one source, ordered highest-confidence first.
func (s *Store) ExternalIdentities(ctx context.Context, personID, source string) ([]model.ExternalIdentity, error) {
	query := `
		SELECT person_id, source, external_id, url, confidence, registered_at
		FROM external_identity WHERE person_id = ?`
	args := []any{personID}
	if source != "" {
		query += ` AND source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY confidence DESC, registered_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, kinderr.WrapDB("external_identities", personID, err)
	}
	defer rows.Close()

	var out []model.ExternalIdentity
	for rows.Next() {
		var e model.ExternalIdentity
		if err := rows.Scan(&e.PersonID, &e.Source, &e.ExternalID, &e.URL, &e.Confidence, &e.RegisteredAt); err != nil {
			return nil, kinderr.WrapDB("external_identities_scan", personID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindByExternalID resolves (source, external_id) to a canonical person
// ID, or a kinderr NotFound.
func (s *Store) FindByExternalID(ctx context.Context, source, externalID string) (string, error) {
	var personID string
	row := s.db.QueryRowContext(ctx, `
		SELECT person_id FROM external_identity WHERE source = ? AND external_id = ?
	`, source, externalID)
	if err := row.Scan(&personID); err != nil {
		return "", kinderr.WrapDB("find_by_external_id", externalID, err)
	}
	return personID, nil
}

// RegisterIdentity is an idempotent upsert. Every other row of the same
// (person, source) whose confidence does not exceed the new row's is
// kept but demoted to half the new confidence, so the new registration
// shadows it.
func (s *Store) RegisterIdentity(ctx context.Context, ident model.ExternalIdentity) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE external_identity SET confidence = ? / 2
			WHERE person_id = ? AND source = ? AND external_id <> ? AND confidence <= ?
		`, ident.Confidence, ident.PersonID, ident.Source, ident.ExternalID, ident.Confidence); err != nil {
			return kinderr.WrapDB("demote_identities", ident.ExternalID, err)
		}
		return upsertIdentity(ctx, tx, ident)
	})
}

// CreatePerson atomically creates a bare person row plus its first
// identity.
func (s *Store) CreatePerson(ctx context.Context, p model.Person, ident model.ExternalIdentity) (string, error) {
	if p.PersonID == "" {
		p.PersonID = ids.New()
	}
	ident.PersonID = p.PersonID

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO person (person_id, display, birth_name, gender, living, bio, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, p.PersonID, p.Display, p.BirthName, string(p.Gender), boolToInt(p.Living), p.Bio, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return kinderr.WrapDB("create_person", p.PersonID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO person_fts (person_id, display, birth_name, aliases, bio, occupations)
			VALUES (?, ?, ?, '', ?, '')
		`, p.PersonID, p.Display, p.BirthName, p.Bio); err != nil {
			return kinderr.WrapDB("create_person_fts", p.PersonID, err)
		}
		return upsertIdentity(ctx, tx, ident)
	})
	if err != nil {
		return "", err
	}
	return p.PersonID, nil
}
