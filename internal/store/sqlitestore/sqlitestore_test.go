package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kinlink/kinlink/internal/ids"
	"github.com/kinlink/kinlink/internal/kinderr"
	"github.com/kinlink/kinlink/internal/model"
	"github.com/kinlink/kinlink/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "kinlink.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePerson(display string) store.FullPerson {
	id := ids.New()
	now := time.Now()
	return store.FullPerson{
		Person: model.Person{
			PersonID: id, Display: display, Gender: model.GenderUnknown,
			CreatedAt: now, UpdatedAt: now,
		},
		Identities: []model.ExternalIdentity{
			{PersonID: id, Source: "familysearch", ExternalID: "FS-" + id, Confidence: 1.0, RegisteredAt: now},
		},
	}
}

func TestWriteAndGetPerson(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fp := samplePerson("Jane Doe")
	if err := s.WritePerson(ctx, fp); err != nil {
		t.Fatalf("WritePerson: %v", err)
	}

	got, err := s.GetPerson(ctx, fp.Person.PersonID)
	if err != nil {
		t.Fatalf("GetPerson: %v", err)
	}
	if got.Display != "Jane Doe" {
		t.Errorf("expected display 'Jane Doe', got %q", got.Display)
	}
}

func TestGetPersonNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetPerson(context.Background(), ids.New())
	if !kinderr.Is(err, kinderr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestSearchFindsExactDisplayName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fp := samplePerson("Zacharias Oldham")
	if err := s.WritePerson(ctx, fp); err != nil {
		t.Fatalf("WritePerson: %v", err)
	}

	hits, err := s.Search(ctx, "Zacharias Oldham", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].PersonID != fp.Person.PersonID {
		t.Fatalf("expected exact match for person %s, got %+v", fp.Person.PersonID, hits)
	}
}

func TestSearchFindsAliasClaim(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fp := samplePerson("Zacharias Oldham")
	fp.Claims = []model.Claim{
		{ClaimID: ids.New(), PersonID: fp.Person.PersonID, Predicate: "alias", Value: "Zach Oldham", Source: "familysearch"},
	}
	if err := s.WritePerson(ctx, fp); err != nil {
		t.Fatalf("WritePerson: %v", err)
	}

	hits, err := s.Search(ctx, "Zach Oldham", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].PersonID != fp.Person.PersonID {
		t.Fatalf("expected alias match for person %s, got %+v", fp.Person.PersonID, hits)
	}
}

func TestSearchQuoteInTermDoesNotBreakFTSSyntax(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fp := samplePerson(`O"Brien`)
	if err := s.WritePerson(ctx, fp); err != nil {
		t.Fatalf("WritePerson: %v", err)
	}

	if _, err := s.Search(ctx, `O"Brien`, 10); err != nil {
		t.Fatalf("Search with embedded quote should not error, got: %v", err)
	}
}

func TestStoreBlobIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	data := []byte("a small jpeg, in spirit")
	h1, isNew1, err := s.StoreBlob(ctx, data, "image/jpeg")
	if err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}
	if !isNew1 {
		t.Fatal("expected first StoreBlob to be new")
	}

	h2, isNew2, err := s.StoreBlob(ctx, data, "image/jpeg")
	if err != nil {
		t.Fatalf("StoreBlob (again): %v", err)
	}
	if isNew2 {
		t.Error("expected second StoreBlob of identical bytes to be a dedup hit")
	}
	if h1 != h2 {
		t.Errorf("expected identical hash, got %s != %s", h1, h2)
	}
}

func TestDeleteBlobRefusedWhileReferenced(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fp := samplePerson("Media Owner")
	if err := s.WritePerson(ctx, fp); err != nil {
		t.Fatalf("WritePerson: %v", err)
	}
	hash, _, err := s.StoreBlob(ctx, []byte("photo bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}
	if err := s.AddMedia(ctx, model.Media{
		MediaID: ids.New(), PersonID: fp.Person.PersonID, BlobHash: hash, Source: "familysearch",
	}); err != nil {
		t.Fatalf("AddMedia: %v", err)
	}

	if err := s.DeleteBlob(ctx, hash); !kinderr.Is(err, kinderr.Conflict) {
		t.Fatalf("expected Conflict deleting referenced blob, got %v", err)
	}
}

func TestCreatePersonResolvesByExternalID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := model.Person{Display: "Idempotent Ike", Gender: model.GenderMale, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	ident := model.ExternalIdentity{Source: "wikitree", ExternalID: "Ike-1", Confidence: 1.0, RegisteredAt: time.Now()}

	id1, err := s.CreatePerson(ctx, p, ident)
	if err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}

	existing, err := s.FindByExternalID(ctx, "wikitree", "Ike-1")
	if err != nil {
		t.Fatalf("FindByExternalID: %v", err)
	}
	if existing != id1 {
		t.Fatalf("expected to resolve back to %s, got %s", id1, existing)
	}
}

func TestDeleteDatabaseCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	root := samplePerson("Root")
	shared := samplePerson("Shared")
	for _, fp := range []store.FullPerson{root, shared} {
		if err := s.WritePerson(ctx, fp); err != nil {
			t.Fatalf("WritePerson: %v", err)
		}
	}
	rootID, sharedID := root.Person.PersonID, shared.Person.PersonID

	if err := s.UpsertDatabase(ctx, model.Database{DBID: "db1", RootID: rootID, Name: "first"}); err != nil {
		t.Fatalf("UpsertDatabase: %v", err)
	}
	if err := s.UpsertDatabase(ctx, model.Database{DBID: "db2", RootID: sharedID, Name: "second"}); err != nil {
		t.Fatalf("UpsertDatabase: %v", err)
	}
	if err := s.WriteMemberships(ctx, []model.Membership{
		{DBID: "db1", PersonID: rootID, IsRoot: true},
		{DBID: "db1", PersonID: sharedID, Generation: 1},
		{DBID: "db2", PersonID: sharedID, IsRoot: true},
	}); err != nil {
		t.Fatalf("WriteMemberships: %v", err)
	}
	if err := s.WriteParentEdges(ctx, []model.ParentEdge{
		{ChildID: rootID, ParentID: sharedID, Role: model.RoleFather, Source: "familysearch"},
	}); err != nil {
		t.Fatalf("WriteParentEdges: %v", err)
	}

	if err := s.DeleteDatabase(ctx, "db1"); err != nil {
		t.Fatalf("DeleteDatabase: %v", err)
	}

	// Root belonged only to db1: gone, with its edges and identities.
	if _, err := s.GetPerson(ctx, rootID); !kinderr.Is(err, kinderr.NotFound) {
		t.Fatalf("expected root purged, got %v", err)
	}
	if hits, err := s.Search(ctx, "Root", 10); err != nil || len(hits) != 0 {
		t.Fatalf("expected no FTS row for purged root, got %v %v", hits, err)
	}
	// Shared is still a member of db2: survives.
	if _, err := s.GetPerson(ctx, sharedID); err != nil {
		t.Fatalf("expected shared person to survive, got %v", err)
	}
	if edges, err := s.ParentsOf(ctx, rootID); err != nil || len(edges) != 0 {
		t.Fatalf("expected purged root's edges removed, got %v %v", edges, err)
	}
}

func TestParentEdgeReadBackViaParentsOf(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	child := samplePerson("Child")
	parent := samplePerson("Parent")
	if err := s.WritePerson(ctx, child); err != nil {
		t.Fatalf("WritePerson(child): %v", err)
	}
	if err := s.WritePerson(ctx, parent); err != nil {
		t.Fatalf("WritePerson(parent): %v", err)
	}

	edge := model.ParentEdge{ChildID: child.Person.PersonID, ParentID: parent.Person.PersonID, Role: model.RoleFather, Source: "familysearch"}
	if err := s.WriteParentEdges(ctx, []model.ParentEdge{edge}); err != nil {
		t.Fatalf("WriteParentEdges: %v", err)
	}

	parents, err := s.ParentsOf(ctx, child.Person.PersonID)
	if err != nil {
		t.Fatalf("ParentsOf: %v", err)
	}
	if len(parents) != 1 || parents[0].ParentID != parent.Person.PersonID {
		t.Fatalf("expected one parent edge, got %+v", parents)
	}
}
