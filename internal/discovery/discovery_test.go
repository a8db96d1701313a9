package discovery

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kinlink/kinlink/internal/codec"
	"github.com/kinlink/kinlink/internal/identity"
	"github.com/kinlink/kinlink/internal/jobs"
	"github.com/kinlink/kinlink/internal/model"
	"github.com/kinlink/kinlink/internal/provider"
	"github.com/kinlink/kinlink/internal/store/sqlitestore"
)

type fakeAdapter struct {
	records map[string]codec.RawRecord
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Fetch(ctx context.Context, externalID string) (provider.RawRecord, error) {
	rec, ok := f.records[externalID]
	if !ok {
		return nil, &provider.Error{Kind: provider.Permanent, Message: "no fixture"}
	}
	return json.Marshal(rec)
}

func (f *fakeAdapter) Parse(raw provider.RawRecord) (codec.RawRecord, error) {
	var rec codec.RawRecord
	err := json.Unmarshal(raw, &rec)
	return rec, err
}

func namedRecord(id, name string, parentIDs ...string) codec.RawRecord {
	return codec.RawRecord{
		ID:           id,
		Names:        []codec.RawName{{Preferred: true, FullText: name}},
		ParentIDs:    parentIDs,
		ParentsKnown: len(parentIDs) > 0,
	}
}

func openStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	s, err := sqlitestore.Open(context.Background(), filepath.Join(t.TempDir(), "kinlink.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedGap creates a local parent (unlinked to the fake provider) with a
// child that IS linked: a parent linkage gap.
func seedGap(t *testing.T, s *sqlitestore.Store, idmap *identity.Map, parentDisplay, childExternalID string, role model.ParentRole) (parentID, childID string) {
	t.Helper()
	ctx := context.Background()

	parentID, err := s.CreatePerson(ctx, model.Person{Display: parentDisplay}, model.ExternalIdentity{
		Source: "other", ExternalID: "p-" + parentDisplay, Confidence: 1.0,
	})
	require.NoError(t, err)

	childID, err = idmap.GetOrCreate(ctx, "fake", childExternalID, "Child Person", identity.CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, s.WriteParentEdges(ctx, []model.ParentEdge{{ChildID: childID, ParentID: parentID, Role: role, Source: "local"}}))
	require.NoError(t, s.UpsertDatabase(ctx, model.Database{DBID: "db1", RootID: childID, Name: "Test"}))
	require.NoError(t, s.WriteMemberships(ctx, []model.Membership{
		{DBID: "db1", PersonID: childID, IsRoot: true, Generation: 0},
		{DBID: "db1", PersonID: parentID, Generation: 1},
	}))
	return parentID, childID
}

func TestFindGapsDetectsMissingParentLink(t *testing.T) {
	s := openStore(t)
	idmap := identity.New(s)
	ctx := context.Background()

	parentID, childID := seedGap(t, s, idmap, "Jean Dupont", "CHILD1", model.RoleFather)

	adapter := &fakeAdapter{records: map[string]codec.RawRecord{}}
	m := New(adapter, s, idmap)

	gaps, err := m.FindGaps(ctx, "db1")
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	require.Equal(t, parentID, gaps[0].PersonID)
	require.Equal(t, childID, gaps[0].ChildID)
	require.Equal(t, "CHILD1", gaps[0].ChildExternalID)
	require.Equal(t, model.RoleFather, gaps[0].Role)
}

func TestResolveNameMatchGetsFullConfidence(t *testing.T) {
	s := openStore(t)
	idmap := identity.New(s)
	ctx := context.Background()

	parentID, _ := seedGap(t, s, idmap, "Jean Dupont", "CHILD1", model.RoleFather)

	adapter := &fakeAdapter{records: map[string]codec.RawRecord{
		"CHILD1": namedRecord("CHILD1", "Child Person", "FATHER1", "MOTHER1"),
		"FATHER1": namedRecord("FATHER1", "Jean Dupont"),
	}}
	m := New(adapter, s, idmap)

	gaps, err := m.FindGaps(ctx, "db1")
	require.NoError(t, err)
	require.Len(t, gaps, 1)

	res, err := m.Resolve(ctx, gaps[0])
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.Equal(t, 1.0, res.Confidence)
	require.Equal(t, "FATHER1", res.CandidateExternalID)

	ext, err := idmap.GetExternal(ctx, parentID, "fake")
	require.NoError(t, err)
	require.Equal(t, "FATHER1", ext)
}

func TestResolveRoleOnlyMatchGetsPartialConfidence(t *testing.T) {
	s := openStore(t)
	idmap := identity.New(s)
	ctx := context.Background()

	seedGap(t, s, idmap, "Jean Dupont", "CHILD1", model.RoleFather)

	adapter := &fakeAdapter{records: map[string]codec.RawRecord{
		"CHILD1":  namedRecord("CHILD1", "Child Person", "FATHER1", "MOTHER1"),
		"FATHER1": namedRecord("FATHER1", "Someone Else Entirely"),
	}}
	m := New(adapter, s, idmap)

	gaps, err := m.FindGaps(ctx, "db1")
	require.NoError(t, err)
	require.Len(t, gaps, 1)

	res, err := m.Resolve(ctx, gaps[0])
	require.NoError(t, err)
	require.False(t, res.Matched)
	require.Equal(t, 0.7, res.Confidence)
}

func TestFuzzyNameMatchAccentAndCaseInsensitive(t *testing.T) {
	require.True(t, fuzzyNameMatch("François Léger", "francois leger"))
	require.True(t, fuzzyNameMatch("Jean Dupont", "Dupont"))
	require.True(t, fuzzyNameMatch("Marie Dupont", "Marie Dupont-Martin"))
	require.False(t, fuzzyNameMatch("Jean Dupont", "Marie Lefevre"))
}

func TestDiscoverAllRespectsCancellation(t *testing.T) {
	s := openStore(t)
	idmap := identity.New(s)
	ctx, cancel := context.WithCancel(context.Background())

	seedGap(t, s, idmap, "Jean Dupont", "CHILD1", model.RoleFather)

	adapter := &fakeAdapter{records: map[string]codec.RawRecord{
		"CHILD1":  namedRecord("CHILD1", "Child Person", "FATHER1", "MOTHER1"),
		"FATHER1": namedRecord("FATHER1", "Jean Dupont"),
	}}
	m := New(adapter, s, idmap)

	var events []jobs.Progress
	cancel() // cancel up front: DiscoverAll must still return ctx.Err() cleanly
	err := m.DiscoverAll(ctx, "db1", nil, func(p jobs.Progress) { events = append(events, p) })
	require.Error(t, err)
}
