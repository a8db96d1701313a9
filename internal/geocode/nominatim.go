package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kinlink/kinlink/internal/kinderr"
)

// NominatimClient implements Querier against a Nominatim-compatible
// HTTP endpoint: GET with q, format=json,
// limit=1, a required User-Agent header, and a response that is a JSON
// array whose first element supplies lat/lon/display_name.
type NominatimClient struct {
	BaseURL   string
	UserAgent string
	HTTPClient *http.Client
}

const defaultNominatimBaseURL = "https://nominatim.openstreetmap.org/search"

// NewNominatimClient returns a client with kinlink's default base URL
// and a required User-Agent (Nominatim's usage policy rejects requests
// without one).
func NewNominatimClient(userAgent string) *NominatimClient {
	return &NominatimClient{
		BaseURL:    defaultNominatimBaseURL,
		UserAgent:  userAgent,
		HTTPClient: http.DefaultClient,
	}
}

type nominatimEntry struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Query implements Querier.
func (c *NominatimClient) Query(ctx context.Context, q string) (*Result, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("geocode: bad base URL: %w", err)
	}
	query := u.Query()
	query.Set("q", q)
	query.Set("format", "json")
	query.Set("limit", "1")
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, kinderr.New(kinderr.Transient, "geocode.query", q, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrTooManyRequests
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, kinderr.New(kinderr.Transient, "geocode.query", q, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var entries []nominatimEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("geocode: decoding response: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(entries[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode: parsing lat %q: %w", entries[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(entries[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode: parsing lon %q: %w", entries[0].Lon, err)
	}
	return &Result{Lat: lat, Lng: lng, DisplayName: entries[0].DisplayName}, nil
}
