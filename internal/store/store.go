// Package store defines the transactional, content-addressed genealogy
// store. The concrete embedded-SQLite implementation lives in
// the sqlitestore subpackage; this package holds the storage-agnostic
// contract and the shared model-adjacent types used by every caller.
package store

import (
	"context"
	"io"

	"github.com/kinlink/kinlink/internal/model"
)

// FullPerson bundles everything written in one transaction for a single
// crawled/imported person: the base row, its identities, vital events,
// and claims.
type FullPerson struct {
	Person     model.Person
	Identities []model.ExternalIdentity
	Events     []model.VitalEvent
	Claims     []model.Claim
}

// SearchHit is one full-text search result.
type SearchHit struct {
	PersonID string
	Display  string
	Rank     float64
}

// Store is the contract every read/write path in kinlink depends on. It
// is intentionally broad — the store is the single owner of persons,
// edges, events, claims, databases, favorites, blobs, media, and place
// geocodes, plus the full-text index kept in sync with person writes.
type Store interface {
	// WritePerson persists a FullPerson (person + identities + events +
	// claims + FTS row) in a single transaction.
	WritePerson(ctx context.Context, fp FullPerson) error

	// GetPerson returns a person by canonical ID, or a kinderr NotFound.
	GetPerson(ctx context.Context, personID string) (*model.Person, error)

	// Search runs a full-text query over display name, birth name,
	// aliases, bio, and occupations.
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)

	// WriteParentEdges and WriteMemberships are called during the
	// crawler's finalize phase, each in its own transaction.
	WriteParentEdges(ctx context.Context, edges []model.ParentEdge) error
	WriteSpouseEdges(ctx context.Context, edges []model.SpouseEdge) error
	WriteMemberships(ctx context.Context, memberships []model.Membership) error

	// ParentsOf and ChildrenOf read the parent_edge table in either
	// direction; used by graphalgo.
	ParentsOf(ctx context.Context, personID string) ([]model.ParentEdge, error)
	ChildrenOf(ctx context.Context, personID string) ([]model.ParentEdge, error)

	// EventsOf returns every vital event recorded for a person, across
	// all sources.
	EventsOf(ctx context.Context, personID string) ([]model.VitalEvent, error)

	// GetDatabase / UpsertDatabase manage the named rooted subgraph.
	// DeleteDatabase removes a database and cascades: memberships and
	// favorites go, and persons left without any database membership are
	// deleted along with their edges, events, claims, and identities.
	GetDatabase(ctx context.Context, dbID string) (*model.Database, error)
	UpsertDatabase(ctx context.Context, db model.Database) error
	DeleteDatabase(ctx context.Context, dbID string) error
	Memberships(ctx context.Context, dbID string) ([]model.Membership, error)

	// Favorites within a database.
	Favorites(ctx context.Context, dbID string) ([]model.Favorite, error)
	SetFavorite(ctx context.Context, fav model.Favorite) error

	// Identity map support (also used directly by internal/identity).
	ExternalIdentities(ctx context.Context, personID, source string) ([]model.ExternalIdentity, error)
	FindByExternalID(ctx context.Context, source, externalID string) (string, error)
	RegisterIdentity(ctx context.Context, ident model.ExternalIdentity) error
	CreatePerson(ctx context.Context, p model.Person, ident model.ExternalIdentity) (string, error)

	// Blob CAS.
	StoreBlob(ctx context.Context, data []byte, mimeType string) (hash string, isNew bool, err error)
	GetBlob(ctx context.Context, hash string) (io.ReadCloser, *model.Blob, error)
	DeleteBlob(ctx context.Context, hash string) error
	AddMedia(ctx context.Context, m model.Media) error

	// Geocode cache.
	GetGeocode(ctx context.Context, placeText string) (*model.PlaceGeocode, error)
	PutGeocode(ctx context.Context, g model.PlaceGeocode) error
	ResetNotFound(ctx context.Context) (int, error)

	// Backup snapshots the database file to dst.
	Backup(ctx context.Context, dst string) error

	Close() error
}
