package graphalgo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kinlink/kinlink/internal/ids"
	"github.com/kinlink/kinlink/internal/model"
	"github.com/kinlink/kinlink/internal/store"
	"github.com/kinlink/kinlink/internal/store/sqlitestore"
)

func openStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlitestore.Open(context.Background(), filepath.Join(t.TempDir(), "kinlink.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addPerson(t *testing.T, ctx context.Context, s store.Store, display string) string {
	t.Helper()
	id := ids.New()
	now := time.Now()
	err := s.WritePerson(ctx, store.FullPerson{
		Person: model.Person{PersonID: id, Display: display, Gender: model.GenderUnknown, CreatedAt: now, UpdatedAt: now},
	})
	require.NoError(t, err)
	return id
}

func addParent(t *testing.T, ctx context.Context, s store.Store, child, parent string, role model.ParentRole) {
	t.Helper()
	err := s.WriteParentEdges(ctx, []model.ParentEdge{{ChildID: child, ParentID: parent, Role: role, Source: "test"}})
	require.NoError(t, err)
}

// TestAncestorsCycleTolerant: a cycle A->B->A terminates, and the walk
// from A reports only B: the start person is never listed as its own
// ancestor, even when the cycle leads back to it.
func TestAncestorsCycleTolerant(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	a := addPerson(t, ctx, s, "A")
	b := addPerson(t, ctx, s, "B")
	addParent(t, ctx, s, a, b, model.RoleParent)
	addParent(t, ctx, s, b, a, model.RoleParent)

	hops, err := Ancestors(ctx, s, a, 0)
	require.NoError(t, err)
	require.Len(t, hops, 1)
	require.Equal(t, b, hops[0].PersonID)
}

func TestAncestorsNoParentsIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	a := addPerson(t, ctx, s, "A")

	hops, err := Ancestors(ctx, s, a, 0)
	require.NoError(t, err)
	require.Empty(t, hops)
}

// TestPathShortestVsLongest: chains
// A->B->C and D->B give a single least common ancestor B, so shortest
// and longest agree; adding E two generations above both A and D (via
// G1 and G2) introduces a second common ancestor, so longest picks E.
func TestPathShortestVsLongest(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	a := addPerson(t, ctx, s, "A")
	b := addPerson(t, ctx, s, "B")
	c := addPerson(t, ctx, s, "C")
	d := addPerson(t, ctx, s, "D")
	addParent(t, ctx, s, a, b, model.RoleParent)
	addParent(t, ctx, s, b, c, model.RoleParent)
	addParent(t, ctx, s, d, b, model.RoleParent)

	shortest, err := Path(ctx, s, a, d, Shortest)
	require.NoError(t, err)
	require.NotNil(t, shortest)
	require.Equal(t, b, shortest.CommonAncestor)
	require.Equal(t, 2, shortest.TotalDepth)
	require.Equal(t, []string{a, b, d}, shortest.Path)

	longest, err := Path(ctx, s, a, d, Longest)
	require.NoError(t, err)
	require.Equal(t, b, longest.CommonAncestor)

	// E is a common ancestor reached through one extra generation on
	// each side, so its total depth (4) strictly exceeds B's (2) and
	// longest must pick E unambiguously.
	e := addPerson(t, ctx, s, "E")
	g1 := addPerson(t, ctx, s, "G1")
	g2 := addPerson(t, ctx, s, "G2")
	addParent(t, ctx, s, a, g1, model.RoleParent)
	addParent(t, ctx, s, g1, e, model.RoleParent)
	addParent(t, ctx, s, d, g2, model.RoleParent)
	addParent(t, ctx, s, g2, e, model.RoleParent)

	longest2, err := Path(ctx, s, a, d, Longest)
	require.NoError(t, err)
	require.Equal(t, e, longest2.CommonAncestor)
	require.Equal(t, []string{a, g1, e, g2, d}, longest2.Path)

	require.LessOrEqual(t, shortest.TotalDepth, longest2.TotalDepth)
}

func TestPathNoCommonAncestor(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	a := addPerson(t, ctx, s, "A")
	d := addPerson(t, ctx, s, "D")

	result, err := Path(ctx, s, a, d, Shortest)
	require.NoError(t, err)
	require.Nil(t, result)
}

// TestSparseTreeScenario: a root with two
// favorites at different depths along a shared prefix.
func TestSparseTreeScenario(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	root := addPerson(t, ctx, s, "R")
	p1 := addPerson(t, ctx, s, "P1")
	p2 := addPerson(t, ctx, s, "P2")
	f1 := addPerson(t, ctx, s, "F1")
	p3 := addPerson(t, ctx, s, "P3")
	p4 := addPerson(t, ctx, s, "P4")
	f2 := addPerson(t, ctx, s, "F2")

	addParent(t, ctx, s, root, p1, model.RoleFather)
	addParent(t, ctx, s, p1, p2, model.RoleFather)
	addParent(t, ctx, s, p2, f1, model.RoleFather)
	addParent(t, ctx, s, p2, p3, model.RoleMother)
	addParent(t, ctx, s, p3, p4, model.RoleFather)
	addParent(t, ctx, s, p4, f2, model.RoleFather)

	dbID := "db-test"
	require.NoError(t, s.UpsertDatabase(ctx, model.Database{DBID: dbID, RootID: root, Name: "test"}))
	require.NoError(t, s.WriteMemberships(ctx, []model.Membership{
		{DBID: dbID, PersonID: root, IsRoot: true, Generation: 0},
		{DBID: dbID, PersonID: f1, Generation: 3},
		{DBID: dbID, PersonID: f2, Generation: 5},
	}))
	require.NoError(t, s.SetFavorite(ctx, model.Favorite{DBID: dbID, PersonID: f1}))
	require.NoError(t, s.SetFavorite(ctx, model.Favorite{DBID: dbID, PersonID: f2}))

	nodes, err := SparseTree(ctx, s, dbID)
	require.NoError(t, err)

	byID := map[string]SparseNode{}
	for _, n := range nodes {
		byID[n.PersonID] = n
	}
	require.Contains(t, byID, root)
	require.Contains(t, byID, p1)
	require.Contains(t, byID, p2)
	require.Contains(t, byID, f1)
	require.Contains(t, byID, p3)
	require.Contains(t, byID, p4)
	require.Contains(t, byID, f2)

	for id, n := range byID {
		if id == root {
			require.Equal(t, LineageSelf, n.LineageFromParent)
			continue
		}
		require.Zero(t, n.GenerationsSkipped)
	}
}

func TestSparseTreeNoFavoritesIsJustRoot(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	root := addPerson(t, ctx, s, "R")
	dbID := "db-empty"
	require.NoError(t, s.UpsertDatabase(ctx, model.Database{DBID: dbID, RootID: root, Name: "empty"}))
	require.NoError(t, s.WriteMemberships(ctx, []model.Membership{{DBID: dbID, PersonID: root, IsRoot: true}}))

	nodes, err := SparseTree(ctx, s, dbID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, root, nodes[0].PersonID)
	require.Zero(t, nodes[0].GenerationsSkipped)
}
