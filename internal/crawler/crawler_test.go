package crawler

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kinlink/kinlink/internal/codec"
	"github.com/kinlink/kinlink/internal/config"
	"github.com/kinlink/kinlink/internal/identity"
	"github.com/kinlink/kinlink/internal/jobs"
	"github.com/kinlink/kinlink/internal/provider"
	"github.com/kinlink/kinlink/internal/store/sqlitestore"
)

// fakeAdapter serves a scripted sequence of codec.RawRecord responses
// per external ID, so a test can make the "same" provider record change
// across successive fetches.
type fakeAdapter struct {
	sequences  map[string][]codec.RawRecord
	deleted    map[string]bool
	fetchCount map[string]int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		sequences:  map[string][]codec.RawRecord{},
		deleted:    map[string]bool{},
		fetchCount: map[string]int{},
	}
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Fetch(ctx context.Context, externalID string) (provider.RawRecord, error) {
	f.fetchCount[externalID]++
	if f.deleted[externalID] {
		return nil, &provider.Error{Kind: provider.Deleted, Message: "gone"}
	}
	seq := f.sequences[externalID]
	if len(seq) == 0 {
		return nil, &provider.Error{Kind: provider.Permanent, Message: "no fixture"}
	}
	idx := f.fetchCount[externalID] - 1
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	return json.Marshal(seq[idx])
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

var noDelay = config.ProviderDefaults{MinDelay: 0, MaxDelay: time.Millisecond}

func TestCrawlRootAndParentsBasic(t *testing.T) {
	s := openStore(t)
	idmap := identity.New(s)
	adapter := newFakeAdapter()
	adapter.sequences["R"] = []codec.RawRecord{namedRecord("R", "Root Person", "F", "M")}
	adapter.sequences["F"] = []codec.RawRecord{namedRecord("F", "Father Person")}
	adapter.sequences["M"] = []codec.RawRecord{namedRecord("M", "Mother Person")}

	c := New(adapter, idmap, s, t.TempDir(), noDelay)
	opts := Options{DBID: "db1", DBName: "Test", RootExternalID: "R", CacheMode: CacheNone}

	var events []jobs.Progress
	err := c.Run(context.Background(), opts, func(p jobs.Progress) { events = append(events, p) })
	require.NoError(t, err)
	require.NotEmpty(t, events)

	rid, err := idmap.GetOrCreate(context.Background(), "fake", "R", "", identity.CreateOptions{})
	require.NoError(t, err)
	root, err := s.GetPerson(context.Background(), rid)
	require.NoError(t, err)
	require.Equal(t, "Root Person", root.Display)

	edges, err := s.ParentsOf(context.Background(), rid)
	require.NoError(t, err)
	require.Len(t, edges, 2)

	memberships, err := s.Memberships(context.Background(), "db1")
	require.NoError(t, err)
	require.Len(t, memberships, 3)
	for _, m := range memberships {
		if m.PersonID == rid {
			require.True(t, m.IsRoot)
			require.Equal(t, 0, m.Generation)
		} else {
			require.Equal(t, 1, m.Generation)
		}
	}
}

// TestDeletedParentTriggersChildRefetch: the provider reports X's
// parent Y deleted; the crawler purges Y's cache entry and re-fetches
// X, which now names a different parent Y2.
func TestDeletedParentTriggersChildRefetch(t *testing.T) {
	s := openStore(t)
	idmap := identity.New(s)
	adapter := newFakeAdapter()
	adapter.sequences["X"] = []codec.RawRecord{
		namedRecord("X", "Person X", "Y"),
		namedRecord("X", "Person X", "Y2"),
	}
	adapter.deleted["Y"] = true
	adapter.sequences["Y2"] = []codec.RawRecord{namedRecord("Y2", "Person Y2")}

	c := New(adapter, idmap, s, t.TempDir(), noDelay)
	opts := Options{DBID: "db1", DBName: "Test", RootExternalID: "X", CacheMode: CacheNone}

	err := c.Run(context.Background(), opts, func(jobs.Progress) {})
	require.NoError(t, err)

	xid, err := idmap.GetOrCreate(context.Background(), "fake", "X", "", identity.CreateOptions{})
	require.NoError(t, err)
	y2id, err := idmap.GetOrCreate(context.Background(), "fake", "Y2", "", identity.CreateOptions{})
	require.NoError(t, err)

	edges, err := s.ParentsOf(context.Background(), xid)
	require.NoError(t, err)
	require.Len(t, edges, 1, "the stale edge to deleted Y must not survive finalize")
	require.Equal(t, y2id, edges[0].ParentID)

	y2, err := s.GetPerson(context.Background(), y2id)
	require.NoError(t, err)
	require.Equal(t, "Person Y2", y2.Display)
}

func TestPlaceholderParentLeavesNoEdge(t *testing.T) {
	s := openStore(t)
	idmap := identity.New(s)
	adapter := newFakeAdapter()
	adapter.sequences["R"] = []codec.RawRecord{namedRecord("R", "Root Person", "U", "M")}
	adapter.sequences["U"] = []codec.RawRecord{namedRecord("U", "Unknown Father")}
	adapter.sequences["M"] = []codec.RawRecord{namedRecord("M", "Mother Person")}

	c := New(adapter, idmap, s, t.TempDir(), noDelay)
	opts := Options{DBID: "db1", DBName: "Test", RootExternalID: "R", CacheMode: CacheNone}
	require.NoError(t, c.Run(context.Background(), opts, func(jobs.Progress) {}))

	rid, err := idmap.GetOrCreate(context.Background(), "fake", "R", "", identity.CreateOptions{})
	require.NoError(t, err)
	mid, err := idmap.GetOrCreate(context.Background(), "fake", "M", "", identity.CreateOptions{})
	require.NoError(t, err)

	edges, err := s.ParentsOf(context.Background(), rid)
	require.NoError(t, err)
	require.Len(t, edges, 1, "the dropped placeholder parent must leave no edge behind")
	require.Equal(t, mid, edges[0].ParentID)
}

func TestCacheModeAllAvoidsRefetch(t *testing.T) {
	s := openStore(t)
	idmap := identity.New(s)
	adapter := newFakeAdapter()
	adapter.sequences["R"] = []codec.RawRecord{namedRecord("R", "Root Person")}

	cacheDir := t.TempDir()
	c := New(adapter, idmap, s, cacheDir, noDelay)
	opts := Options{DBID: "db1", DBName: "Test", RootExternalID: "R", CacheMode: CacheAll}

	require.NoError(t, c.Run(context.Background(), opts, func(jobs.Progress) {}))
	require.Equal(t, 1, adapter.fetchCount["R"])

	// Second crawl with a fresh working set must serve "R" from cache,
	// not issue a second live fetch.
	require.NoError(t, c.Run(context.Background(), opts, func(jobs.Progress) {}))
	require.Equal(t, 1, adapter.fetchCount["R"])
}

func TestIgnoreSetSkipsPerson(t *testing.T) {
	s := openStore(t)
	idmap := identity.New(s)
	adapter := newFakeAdapter()
	adapter.sequences["R"] = []codec.RawRecord{namedRecord("R", "Root Person", "F")}
	adapter.sequences["F"] = []codec.RawRecord{namedRecord("F", "Father Person")}

	c := New(adapter, idmap, s, t.TempDir(), noDelay)
	opts := Options{
		DBID: "db1", DBName: "Test", RootExternalID: "R", CacheMode: CacheNone,
		Ignore: map[string]bool{"F": true},
	}
	require.NoError(t, c.Run(context.Background(), opts, func(jobs.Progress) {}))
	require.Equal(t, 0, adapter.fetchCount["F"], "an ignored external ID must never be fetched")
}
