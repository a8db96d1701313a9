package sqlitestore

import (
	"context"
	"database/sql"

	"github.com/kinlink/kinlink/internal/kinderr"
	"github.com/kinlink/kinlink/internal/model"
)

// WriteParentEdges writes every edge in one transaction.
func (s *Store) WriteParentEdges(ctx context.Context, edges []model.ParentEdge) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range edges {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO parent_edge (child_id, parent_id, parent_role, source)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(child_id, parent_id, source) DO UPDATE SET parent_role = excluded.parent_role
			`, e.ChildID, e.ParentID, string(e.Role), e.Source)
			if err != nil {
				return kinderr.WrapDB("write_parent_edge", e.ChildID, err)
			}
		}
		return nil
	})
}

// WriteSpouseEdges writes canonicalized spouse edges.
func (s *Store) WriteSpouseEdges(ctx context.Context, edges []model.SpouseEdge) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range edges {
			canon := model.NewSpouseEdge(e.Person1ID, e.Person2ID, e.Source)
			_, err := tx.ExecContext(ctx, `
				INSERT INTO spouse_edge (person1_id, person2_id, source)
				VALUES (?, ?, ?)
				ON CONFLICT(person1_id, person2_id, source) DO NOTHING
			`, canon.Person1ID, canon.Person2ID, canon.Source)
			if err != nil {
				return kinderr.WrapDB("write_spouse_edge", canon.Person1ID, err)
			}
		}
		return nil
	})
}

// ParentsOf returns every parent_edge where personID is the child.
func (s *Store) ParentsOf(ctx context.Context, personID string) ([]model.ParentEdge, error) {
	return queryEdges(ctx, s.db, `SELECT child_id, parent_id, parent_role, source FROM parent_edge WHERE child_id = ?`, personID)
}

// ChildrenOf returns every parent_edge where personID is the parent.
func (s *Store) ChildrenOf(ctx context.Context, personID string) ([]model.ParentEdge, error) {
	return queryEdges(ctx, s.db, `SELECT child_id, parent_id, parent_role, source FROM parent_edge WHERE parent_id = ?`, personID)
}

func queryEdges(ctx context.Context, db *sql.DB, query, id string) ([]model.ParentEdge, error) {
	rows, err := db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, kinderr.WrapDB("query_edges", id, err)
	}
	defer rows.Close()

	var edges []model.ParentEdge
	for rows.Next() {
		var e model.ParentEdge
		var role string
		if err := rows.Scan(&e.ChildID, &e.ParentID, &role, &e.Source); err != nil {
			return nil, kinderr.WrapDB("scan_edges", id, err)
		}
		e.Role = model.ParentRole(role)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// WriteMemberships upserts database membership/generation rows.
func (s *Store) WriteMemberships(ctx context.Context, memberships []model.Membership) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, m := range memberships {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO database_membership (db_id, person_id, is_root, generation)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(db_id, person_id) DO UPDATE SET
					is_root = excluded.is_root,
					generation = excluded.generation
			`, m.DBID, m.PersonID, boolToInt(m.IsRoot), m.Generation)
			if err != nil {
				return kinderr.WrapDB("write_membership", m.PersonID, err)
			}
		}
		return nil
	})
}
