// Package tdme implements the 23andMe ("tdme" — the DNA-match exchange)
// provider adapter. 23andMe exposes DNA relative matches rather than a
// parent-linked family tree, so most records surface with ParentsKnown
// false and no FamiliesAsParent; the crawler still folds them into the
// graph as leaf persons. The predicted relationship and shared
// centimorgans are carried only as the text of an occupation fact; no
// confidence score is derived from them.
package tdme

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kinlink/kinlink/internal/codec"
	"github.com/kinlink/kinlink/internal/provider"
)

func init() {
	provider.Register("23andme", func(cfg provider.Config) provider.Adapter {
		return New(cfg)
	})
}

const defaultBaseURL = "https://api.23andme.com/3/relative"

var defaultDeletedMarkers = []string{"profile_deleted"}

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

func (a *Adapter) Name() string { return "23andme" }

func (a *Adapter) Fetch(ctx context.Context, externalID string) (provider.RawRecord, error) {
	url := fmt.Sprintf("%s/%s", a.baseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &provider.Error{Kind: provider.Permanent, Message: err.Error()}
	}
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
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &provider.Error{Kind: provider.Transient, Code: resp.Status, Message: string(body)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &provider.Error{Kind: provider.Auth, Code: resp.Status, Message: string(body)}
	case provider.IsDeletedMessage(string(body), a.deletedMarkers):
		return nil, &provider.Error{Kind: provider.Deleted, Message: "relative profile deleted on provider"}
	case resp.StatusCode >= 400:
		return nil, &provider.Error{Kind: provider.Permanent, Code: resp.Status, Message: string(body)}
	}
	return provider.RawRecord(body), nil
}

type wireRelative struct {
	ProfileID       string  `json:"profile_id"`
	DisplayName     string  `json:"display_name"`
	Sex             string  `json:"sex"`
	PredictedRel    string  `json:"predicted_relationship"`
	SharedCentimorgans float64 `json:"shared_cm"`
}

func (a *Adapter) Parse(raw provider.RawRecord) (codec.RawRecord, error) {
	var wr wireRelative
	if err := json.Unmarshal(raw, &wr); err != nil {
		return codec.RawRecord{}, &provider.Error{Kind: provider.Permanent, Message: "malformed JSON: " + err.Error()}
	}
	rec := codec.RawRecord{ID: wr.ProfileID, GenderURI: mapGender(wr.Sex)}
	if wr.DisplayName != "" {
		rec.Names = append(rec.Names, codec.RawName{Type: "http://gedcomx.org/BirthName", FullText: wr.DisplayName, Preferred: true})
	}
	if wr.PredictedRel != "" {
		rec.Facts = append(rec.Facts, codec.RawFact{
			Type:  "http://gedcomx.org/Occupation",
			Value: fmt.Sprintf("DNA match: %s (%.1f cM shared)", wr.PredictedRel, wr.SharedCentimorgans),
		})
	}
	return rec, nil
}

func mapGender(sex string) string {
	switch sex {
	case "M":
		return "http://gedcomx.org/Male"
	case "F":
		return "http://gedcomx.org/Female"
	default:
		return ""
	}
}
