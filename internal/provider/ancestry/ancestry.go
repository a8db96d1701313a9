// Package ancestry implements the Ancestry.com provider adapter.
package ancestry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kinlink/kinlink/internal/codec"
	"github.com/kinlink/kinlink/internal/provider"
)

func init() {
	provider.Register("ancestry", func(cfg provider.Config) provider.Adapter {
		return New(cfg)
	})
}

const defaultBaseURL = "https://www.ancestry.com/api/v2/trees/person"

var defaultDeletedMarkers = []string{"person_not_found"}

type Adapter struct {
	baseURL        string
	client         *http.Client
	apiKey         string
	deletedMarkers []string
}

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

func (a *Adapter) Name() string { return "ancestry" }

func (a *Adapter) Fetch(ctx context.Context, externalID string) (provider.RawRecord, error) {
	url := fmt.Sprintf("%s/%s", a.baseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &provider.Error{Kind: provider.Permanent, Message: err.Error()}
	}
	if a.apiKey != "" {
		req.Header.Set("X-Api-Key", a.apiKey)
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

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &provider.Error{Kind: provider.Transient, Code: resp.Status, Message: string(body)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &provider.Error{Kind: provider.Auth, Code: resp.Status, Message: string(body)}
	case provider.IsDeletedMessage(string(body), a.deletedMarkers):
		return nil, &provider.Error{Kind: provider.Deleted, Message: "person deleted on provider"}
	case resp.StatusCode >= 400:
		return nil, &provider.Error{Kind: provider.Permanent, Code: resp.Status, Message: string(body)}
	}
	return provider.RawRecord(body), nil
}

// wirePerson is Ancestry's flatter per-person shape: names and facts
// are both simple string-keyed lists rather than GEDCOM-X's typed URIs.
type wirePerson struct {
	PersonID string `json:"personId"`
	Gender   string `json:"gender"`
	Names    []struct {
		NameType  string `json:"nameType"`
		FullName  string `json:"fullName"`
		IsPrimary bool   `json:"isPrimary"`
	} `json:"names"`
	Facts []struct {
		FactType     string `json:"factType"`
		Date         string `json:"date"`
		Place        string `json:"place"`
		PlaceID      string `json:"placeId"`
		Description  string `json:"description"`
	} `json:"facts"`
	Parents []struct {
		PersonID string `json:"personId"`
	} `json:"parents"`
	Spouses []struct {
		PersonID string `json:"personId"`
	} `json:"spouses"`
}

func (a *Adapter) Parse(raw provider.RawRecord) (codec.RawRecord, error) {
	var wp wirePerson
	if err := json.Unmarshal(raw, &wp); err != nil {
		return codec.RawRecord{}, &provider.Error{Kind: provider.Permanent, Message: "malformed JSON: " + err.Error()}
	}

	rec := codec.RawRecord{ID: wp.PersonID, GenderURI: mapGender(wp.Gender)}
	for _, n := range wp.Names {
		rec.Names = append(rec.Names, codec.RawName{
			Type:      mapNameType(n.NameType),
			FullText:  n.FullName,
			Preferred: n.IsPrimary,
		})
	}
	for _, f := range wp.Facts {
		rec.Facts = append(rec.Facts, codec.RawFact{
			Type:                mapFactType(f.FactType),
			DateOriginal:        f.Date,
			PlaceOriginal:       f.Place,
			PlaceDescriptionRef: f.PlaceID,
			Value:               f.Description,
		})
	}
	for _, p := range wp.Parents {
		if p.PersonID != "" {
			rec.ParentIDs = append(rec.ParentIDs, p.PersonID)
		}
	}
	rec.ParentsKnown = len(rec.ParentIDs) > 0
	for _, s := range wp.Spouses {
		if s.PersonID != "" {
			rec.FamiliesAsParent = append(rec.FamiliesAsParent, codec.RawFamily{Parent1ID: wp.PersonID, Parent2ID: s.PersonID})
		}
	}
	return rec, nil
}

func mapGender(g string) string {
	switch strings.ToLower(g) {
	case "male":
		return "http://gedcomx.org/Male"
	case "female":
		return "http://gedcomx.org/Female"
	default:
		return ""
	}
}

func mapNameType(t string) string {
	switch strings.ToLower(t) {
	case "birth":
		return "http://gedcomx.org/BirthName"
	case "married":
		return "http://gedcomx.org/MarriedName"
	case "aka", "alias":
		return "http://gedcomx.org/AlsoKnownAs"
	default:
		return ""
	}
}

func mapFactType(t string) string {
	switch strings.ToLower(t) {
	case "birth":
		return "http://gedcomx.org/Birth"
	case "death":
		return "http://gedcomx.org/Death"
	case "burial":
		return "http://gedcomx.org/Burial"
	case "occupation":
		return "http://gedcomx.org/Occupation"
	case "title":
		return "http://gedcomx.org/Title"
	case "biography", "lifesketch":
		return "http://gedcomx.org/LifeSketch"
	default:
		return t
	}
}
