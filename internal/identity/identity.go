// Package identity implements the identity map: resolution
// between canonical person IDs and provider-specific external IDs.
package identity

import (
	"context"
	"fmt"

	"github.com/kinlink/kinlink/internal/ids"
	"github.com/kinlink/kinlink/internal/kinderr"
	"github.com/kinlink/kinlink/internal/model"
	"github.com/kinlink/kinlink/internal/store"
)

// Map wraps a store.Store with canonical/external ID resolution.
type Map struct {
	store store.Store
}

// New returns an identity Map backed by s.
func New(s store.Store) *Map {
	return &Map{store: s}
}

// CreateOptions carries the optional fields get_or_create may seed a new
// person row with.
type CreateOptions struct {
	BirthName string
	Gender    model.Gender
	URL       string
}

// Resolve applies the resolution tie-break: exact canonical-ID match,
// then hintSource, then any source, then the input unchanged.
func (m *Map) Resolve(ctx context.Context, id, hintSource string) (string, error) {
	if ids.Valid(id) {
		if _, err := m.store.GetPerson(ctx, id); err == nil {
			return id, nil
		} else if !kinderr.Is(err, kinderr.NotFound) {
			return "", err
		}
	}

	if hintSource != "" {
		if personID, err := m.store.FindByExternalID(ctx, hintSource, id); err == nil {
			return personID, nil
		} else if !kinderr.Is(err, kinderr.NotFound) {
			return "", err
		}
	}

	for _, source := range knownSources {
		if source == hintSource {
			continue
		}
		if personID, err := m.store.FindByExternalID(ctx, source, id); err == nil {
			return personID, nil
		} else if !kinderr.Is(err, kinderr.NotFound) {
			return "", err
		}
	}

	return id, nil
}

// knownSources lists the provider names the identity map tries when no
// hint_source narrows the search.
var knownSources = []string{"familysearch", "ancestry", "wikitree", "23andme"}

// GetExternal returns the highest-confidence external ID for a person
// under one source, or a kinderr NotFound.
func (m *Map) GetExternal(ctx context.Context, internalID, source string) (string, error) {
	idents, err := m.store.ExternalIdentities(ctx, internalID, source)
	if err != nil {
		return "", err
	}
	if len(idents) == 0 {
		return "", kinderr.New(kinderr.NotFound, "get_external", internalID, fmt.Errorf("no %s identity", source))
	}
	return idents[0].ExternalID, nil
}

// GetExternalHistory returns every identity row registered for a person
// under one source (or every source, if source is ""), including rows
// demoted to lower confidence by a later merge. Exposing demoted rows
// is left to the caller's discretion; this method is the
// explicit opt-in for callers — e.g. an audit or discovery job — that
// need the full history rather than just the current best mapping.
func (m *Map) GetExternalHistory(ctx context.Context, internalID, source string) ([]model.ExternalIdentity, error) {
	return m.store.ExternalIdentities(ctx, internalID, source)
}

// GetOrCreate looks up (source, externalID); if absent, atomically
// creates a person row plus its first identity row.
func (m *Map) GetOrCreate(ctx context.Context, source, externalID, displayName string, opts CreateOptions) (string, error) {
	personID, err := m.store.FindByExternalID(ctx, source, externalID)
	if err == nil {
		return personID, nil
	}
	if !kinderr.Is(err, kinderr.NotFound) {
		return "", err
	}

	gender := opts.Gender
	if gender == "" {
		gender = model.GenderUnknown
	}
	p := model.Person{
		Display:   displayName,
		BirthName: opts.BirthName,
		Gender:    gender,
	}
	ident := model.ExternalIdentity{
		Source:     source,
		ExternalID: externalID,
		URL:        opts.URL,
		Confidence: 1.0,
	}
	return m.store.CreatePerson(ctx, p, ident)
}

// Register is an idempotent upsert that preserves prior rows of the
// same (internal_id, source) at lower confidence rather than deleting
// them.
func (m *Map) Register(ctx context.Context, internalID, source, externalID, url string, confidence float64) error {
	return m.store.RegisterIdentity(ctx, model.ExternalIdentity{
		PersonID:   internalID,
		Source:     source,
		ExternalID: externalID,
		URL:        url,
		Confidence: confidence,
	})
}
