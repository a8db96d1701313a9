// Package wikitree implements the WikiTree provider adapter, wrapping
// its public getProfile API.
package wikitree

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
	provider.Register("wikitree", func(cfg provider.Config) provider.Adapter {
		return New(cfg)
	})
}

const defaultBaseURL = "https://api.wikitree.com/api.php"

var defaultDeletedMarkers = []string{"not found"}

type Adapter struct {
	baseURL        string
	client         *http.Client
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
	return &Adapter{baseURL: base, client: client, deletedMarkers: markers}
}

func (a *Adapter) Name() string { return "wikitree" }

func (a *Adapter) Fetch(ctx context.Context, externalID string) (provider.RawRecord, error) {
	url := fmt.Sprintf("%s?action=getProfile&key=%s&fields=*", a.baseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &provider.Error{Kind: provider.Permanent, Message: err.Error()}
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
	if strings.Contains(string(body), "profile is private") {
		return nil, &provider.Error{Kind: provider.Auth, Message: "profile is private"}
	}
	if provider.IsDeletedMessage(string(body), a.deletedMarkers) {
		return nil, &provider.Error{Kind: provider.Deleted, Message: "profile deleted on provider"}
	}
	if resp.StatusCode >= 400 {
		return nil, &provider.Error{Kind: provider.Permanent, Code: resp.Status, Message: string(body)}
	}
	return provider.RawRecord(body), nil
}

// wireEnvelope mirrors the WikiTree API's odd top-level-array-of-one-
// object convention: [{"profile": {...}}].
type wireEnvelope []struct {
	Profile wireProfile `json:"profile"`
}

type wireProfile struct {
	Name           string `json:"Name"`
	FirstName      string `json:"FirstName"`
	LastNameAtBirth string `json:"LastNameAtBirth"`
	LastNameCurrent string `json:"LastNameCurrent"`
	Gender         string `json:"Gender"`
	BirthDate      string `json:"BirthDate"`
	DeathDate      string `json:"DeathDate"`
	BirthLocation  string `json:"BirthLocation"`
	DeathLocation  string `json:"DeathLocation"`
	Bio            string `json:"Bio"`
	Father         int64  `json:"Father"`
	Mother         int64  `json:"Mother"`
	Spouses        map[string]struct {
		Name string `json:"Name"`
	} `json:"Spouses"`
}

func (a *Adapter) Parse(raw provider.RawRecord) (codec.RawRecord, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return codec.RawRecord{}, &provider.Error{Kind: provider.Permanent, Message: "malformed JSON: " + err.Error()}
	}
	if len(env) == 0 {
		return codec.RawRecord{}, &provider.Error{Kind: provider.Permanent, Message: "empty WikiTree envelope"}
	}
	p := env[0].Profile

	rec := codec.RawRecord{ID: p.Name, GenderURI: mapGender(p.Gender)}
	if p.FirstName != "" || p.LastNameAtBirth != "" {
		rec.Names = append(rec.Names, codec.RawName{
			Type:      "http://gedcomx.org/BirthName",
			FullText:  strings.TrimSpace(p.FirstName + " " + p.LastNameAtBirth),
			Preferred: true,
		})
	}
	if p.LastNameCurrent != "" && p.LastNameCurrent != p.LastNameAtBirth {
		rec.Names = append(rec.Names, codec.RawName{
			Type:     "http://gedcomx.org/MarriedName",
			FullText: strings.TrimSpace(p.FirstName + " " + p.LastNameCurrent),
		})
	}
	if p.BirthDate != "" {
		rec.Facts = append(rec.Facts, codec.RawFact{Type: "http://gedcomx.org/Birth", DateOriginal: p.BirthDate, PlaceOriginal: p.BirthLocation})
	}
	if p.DeathDate != "" {
		rec.Facts = append(rec.Facts, codec.RawFact{Type: "http://gedcomx.org/Death", DateOriginal: p.DeathDate, PlaceOriginal: p.DeathLocation})
	}
	if p.Bio != "" {
		rec.Facts = append(rec.Facts, codec.RawFact{Type: "http://gedcomx.org/LifeSketch", Value: p.Bio})
	}
	if p.Father != 0 {
		rec.ParentIDs = append(rec.ParentIDs, fmt.Sprintf("%d", p.Father))
	}
	if p.Mother != 0 {
		rec.ParentIDs = append(rec.ParentIDs, fmt.Sprintf("%d", p.Mother))
	}
	rec.ParentsKnown = len(rec.ParentIDs) > 0
	for spouseID := range p.Spouses {
		rec.FamiliesAsParent = append(rec.FamiliesAsParent, codec.RawFamily{Parent1ID: p.Name, Parent2ID: spouseID})
	}
	return rec, nil
}

func mapGender(g string) string {
	switch g {
	case "Male":
		return "http://gedcomx.org/Male"
	case "Female":
		return "http://gedcomx.org/Female"
	default:
		return ""
	}
}
