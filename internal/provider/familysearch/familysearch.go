// Package familysearch implements the FamilySearch provider adapter:
// a GEDCOM-X JSON API client plus the parser that maps its wire shape
// onto codec.RawRecord.
package familysearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kinlink/kinlink/internal/codec"
	"github.com/kinlink/kinlink/internal/provider"
)

func init() {
	provider.Register("familysearch", func(cfg provider.Config) provider.Adapter {
		return New(cfg)
	})
}

const defaultBaseURL = "https://familysearch.org/platform/tree/persons"

// defaultDeletedMarkers are FamilySearch's own delete-signal
// substrings, overridable via provider.Config.DeletedMarkers.
var defaultDeletedMarkers = []string{"unable to read person"}

// Adapter is the FamilySearch provider.Adapter implementation.
type Adapter struct {
	baseURL        string
	client         *http.Client
	apiKey         string
	deletedMarkers []string
}

// New builds a FamilySearch adapter from provider.Config.
func New(cfg provider.Config) *Adapter {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	markers := cfg.DeletedMarkers
	if len(markers) == 0 {
		markers = defaultDeletedMarkers
	}
	return &Adapter{baseURL: base, client: client, apiKey: cfg.APIKey, deletedMarkers: markers}
}

func (a *Adapter) Name() string { return "familysearch" }

// Fetch retrieves one person's raw GEDCOM-X JSON document.
func (a *Adapter) Fetch(ctx context.Context, externalID string) (provider.RawRecord, error) {
	url := fmt.Sprintf("%s/%s", a.baseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &provider.Error{Kind: provider.Permanent, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &provider.Error{Kind: provider.Transient, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.Error{Kind: provider.Transient, Message: err.Error()}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &provider.Error{Kind: provider.Transient, Code: resp.Status, Message: string(body)}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &provider.Error{Kind: provider.Auth, Code: resp.Status, Message: string(body)}
	}
	if provider.IsDeletedMessage(string(body), a.deletedMarkers) {
		return nil, &provider.Error{Kind: provider.Deleted, Message: "person deleted on provider"}
	}
	if resp.StatusCode >= 400 {
		return nil, &provider.Error{Kind: provider.Permanent, Code: resp.Status, Message: string(body)}
	}

	return provider.RawRecord(body), nil
}

// wireDocument is the minimal GEDCOM-X "persons" response shape this
// adapter understands.
type wireDocument struct {
	Persons                      []wirePerson          `json:"persons"`
	ChildAndParentsRelationships []wireParentRelation   `json:"childAndParentsRelationships"`
}

type wireParentRelation struct {
	Child   *wireResourceRef `json:"child"`
	Parent1 *wireResourceRef `json:"parent1"`
	Parent2 *wireResourceRef `json:"parent2"`
}

type wireResourceRef struct {
	ResourceId string `json:"resourceId"`
}

type wirePerson struct {
	ID      string     `json:"id"`
	Living  bool       `json:"living"`
	Gender  *wireURI   `json:"gender"`
	Names   []wireName `json:"names"`
	Facts   []wireFact `json:"facts"`
	Private bool       `json:"private"`
}

type wireURI struct {
	Type string `json:"type"`
}

type wireName struct {
	Type  string `json:"type"`
	Parts []struct {
		Value string `json:"value"`
	} `json:"nameForms"`
	Preferred bool        `json:"preferred"`
	Attrib    wireAttrib  `json:"attribution"`
}

type wireFact struct {
	Type  string      `json:"type"`
	Date  *wireDate   `json:"date"`
	Place *wirePlace  `json:"place"`
	Value string      `json:"value"`
	Attrib wireAttrib `json:"attribution"`
}

type wireDate struct {
	Original string   `json:"original"`
	Normalized []struct {
		Value string `json:"value"`
	} `json:"normalized"`
	Formal string `json:"formal"`
}

type wirePlace struct {
	Original    string `json:"original"`
	Description string `json:"description"`
}

type wireAttrib struct {
	ModifiedTimestamp int64 `json:"modified"`
}

// Parse converts a cached FamilySearch document into codec.RawRecord.
func (a *Adapter) Parse(raw provider.RawRecord) (codec.RawRecord, error) {
	var doc wireDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return codec.RawRecord{}, &provider.Error{Kind: provider.Permanent, Message: "malformed JSON: " + err.Error()}
	}
	if len(doc.Persons) == 0 {
		return codec.RawRecord{}, &provider.Error{Kind: provider.Permanent, Message: "no persons in document"}
	}
	wp := doc.Persons[0]

	rec := codec.RawRecord{ID: wp.ID, Living: wp.Living}
	if wp.Gender != nil {
		rec.GenderURI = wp.Gender.Type
	}
	for _, n := range wp.Names {
		rec.Names = append(rec.Names, codec.RawName{
			Type:       n.Type,
			FullText:   joinNameParts(n.Parts),
			Preferred:  n.Preferred,
			ModifiedAt: unixMillis(n.Attrib.ModifiedTimestamp),
		})
	}
	for _, f := range wp.Facts {
		rf := codec.RawFact{Type: f.Type, Value: f.Value, ModifiedAt: unixMillis(f.Attrib.ModifiedTimestamp)}
		if f.Date != nil {
			rf.DateOriginal = f.Date.Original
			rf.DateFormal = f.Date.Formal
			for _, n := range f.Date.Normalized {
				rf.DateNormalized = append(rf.DateNormalized, n.Value)
			}
		}
		if f.Place != nil {
			rf.PlaceOriginal = f.Place.Original
			rf.PlaceDescriptionRef = f.Place.Description
		}
		rec.Facts = append(rec.Facts, rf)
	}
	for _, rel := range doc.ChildAndParentsRelationships {
		if rel.Child != nil && rel.Child.ResourceId == wp.ID {
			if rel.Parent1 != nil && rel.Parent1.ResourceId != "" {
				rec.ParentIDs = append(rec.ParentIDs, rel.Parent1.ResourceId)
			}
			if rel.Parent2 != nil && rel.Parent2.ResourceId != "" {
				rec.ParentIDs = append(rec.ParentIDs, rel.Parent2.ResourceId)
			}
			if len(rec.ParentIDs) > 0 {
				rec.ParentsKnown = true
			}
			continue
		}
		isParent1 := rel.Parent1 != nil && rel.Parent1.ResourceId == wp.ID
		isParent2 := rel.Parent2 != nil && rel.Parent2.ResourceId == wp.ID
		if isParent1 || isParent2 {
			fam := codec.RawFamily{}
			if rel.Parent1 != nil {
				fam.Parent1ID = rel.Parent1.ResourceId
			}
			if rel.Parent2 != nil {
				fam.Parent2ID = rel.Parent2.ResourceId
			}
			rec.FamiliesAsParent = append(rec.FamiliesAsParent, fam)
		}
	}
	return rec, nil
}

func joinNameParts(parts []struct {
	Value string `json:"value"`
}) string {
	vals := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Value != "" {
			vals = append(vals, p.Value)
		}
	}
	return strings.Join(vals, " ")
}

func unixMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
