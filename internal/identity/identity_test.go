package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kinlink/kinlink/internal/store/sqlitestore"
)

func openStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	s, err := sqlitestore.Open(context.Background(), filepath.Join(t.TempDir(), "kinlink.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := New(openStore(t))

	id1, err := m.GetOrCreate(ctx, "familysearch", "FS-1", "Jane Doe", CreateOptions{})
	require.NoError(t, err)
	id2, err := m.GetOrCreate(ctx, "familysearch", "FS-1", "Jane Doe", CreateOptions{})
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	history, err := m.GetExternalHistory(ctx, id1, "familysearch")
	require.NoError(t, err)
	require.Len(t, history, 1, "repeat get_or_create must not duplicate the identity row")
}

func TestResolveTieBreakOrder(t *testing.T) {
	ctx := context.Background()
	m := New(openStore(t))

	canonical, err := m.GetOrCreate(ctx, "wikitree", "WT-1", "Someone", CreateOptions{})
	require.NoError(t, err)

	// Exact canonical-ID match wins.
	got, err := m.Resolve(ctx, canonical, "familysearch")
	require.NoError(t, err)
	require.Equal(t, canonical, got)

	// hint_source match.
	got, err = m.Resolve(ctx, "WT-1", "wikitree")
	require.NoError(t, err)
	require.Equal(t, canonical, got)

	// Any-source fallback when the hint doesn't hold the ID.
	got, err = m.Resolve(ctx, "WT-1", "familysearch")
	require.NoError(t, err)
	require.Equal(t, canonical, got)

	// Unknown input is returned unchanged; the caller decides what
	// not-found means.
	got, err = m.Resolve(ctx, "NOPE-404", "")
	require.NoError(t, err)
	require.Equal(t, "NOPE-404", got)
}

func TestRegisterHigherConfidenceShadowsOlderIdentity(t *testing.T) {
	ctx := context.Background()
	m := New(openStore(t))

	id, err := m.GetOrCreate(ctx, "familysearch", "OLD-1", "Merged Person", CreateOptions{})
	require.NoError(t, err)

	// Provider merged OLD-1 into NEW-1; register the successor at full
	// confidence and demote the old mapping.
	require.NoError(t, m.Register(ctx, id, "familysearch", "NEW-1", "", 1.0))
	require.NoError(t, m.Register(ctx, id, "familysearch", "OLD-1", "", 0.5))

	ext, err := m.GetExternal(ctx, id, "familysearch")
	require.NoError(t, err)
	require.Equal(t, "NEW-1", ext)

	history, err := m.GetExternalHistory(ctx, id, "familysearch")
	require.NoError(t, err)
	require.Len(t, history, 2, "demoted identity is retained, not removed")
}

func TestRegisterNeverLowersConfidence(t *testing.T) {
	ctx := context.Background()
	m := New(openStore(t))

	id, err := m.GetOrCreate(ctx, "ancestry", "A-1", "Person", CreateOptions{})
	require.NoError(t, err)

	// A later registration of the same (source, external_id) at a lower
	// confidence must not clobber the existing full-confidence row.
	require.NoError(t, m.Register(ctx, id, "ancestry", "A-1", "", 0.3))

	history, err := m.GetExternalHistory(ctx, id, "ancestry")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, 1.0, history[0].Confidence)
}
