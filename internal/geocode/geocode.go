// Package geocode implements the serial, globally rate-limited place
// geocoder: progressive-broadening Nominatim-style lookups
// with a cache-backed "pending/resolved/not_found/error" lifecycle.
package geocode

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kinlink/kinlink/internal/kinderr"
	"github.com/kinlink/kinlink/internal/model"
	"github.com/kinlink/kinlink/internal/store"
)

// Result is one successful Nominatim-style hit.
type Result struct {
	Lat         float64
	Lng         float64
	DisplayName string
}

// ErrTooManyRequests is returned by a Querier when the remote service
// answers HTTP 429.
var ErrTooManyRequests = kinderr.New(kinderr.Transient, "geocode.query", "", nil)

// Querier looks up one query string. A nil Result with a nil error
// means the provider returned no matches (an empty result array), not
// an error.
type Querier interface {
	Query(ctx context.Context, q string) (*Result, error)
}

// Service is the serial rate-limited geocoder. Every
// concurrent caller funnels through the same limiter and mutex, so no
// two requests are ever in flight simultaneously. Callers waiting on
// the mutex are not queued first-in first-out: sync.Mutex does not
// guarantee that waiters acquire it in arrival order.
type Service struct {
	store      store.Store
	client     Querier
	limiter    *rate.Limiter
	mu         sync.Mutex
	retryDelay time.Duration // default 60s, overridable in tests
}

// DefaultMinGap is the Nominatim-politeness default: at most one
// request every 1.1s.
const DefaultMinGap = 1100 * time.Millisecond

// New returns a Service that serializes all lookups through client, at
// most one request per minGap (use 0 for DefaultMinGap).
func New(s store.Store, client Querier, minGap time.Duration) *Service {
	if minGap <= 0 {
		minGap = DefaultMinGap
	}
	return &Service{
		store:      s,
		client:     client,
		limiter:    rate.NewLimiter(rate.Every(minGap), 1),
		retryDelay: 60 * time.Second,
	}
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// Normalize canonicalizes place text: lowercase, trimmed, internal
// whitespace collapsed. Idempotent by construction.
func Normalize(s string) string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		p = whitespaceRE.ReplaceAllString(p, " ")
		parts[i] = strings.ToLower(p)
	}
	return strings.Join(parts, ", ")
}

// Geocode resolves placeText through the cache, falling back to a
// progressive-broadening live lookup.
func (g *Service) Geocode(ctx context.Context, placeText string) (*model.PlaceGeocode, error) {
	norm := Normalize(placeText)

	cached, err := g.store.GetGeocode(ctx, norm)
	if err != nil && !kinderr.Is(err, kinderr.NotFound) {
		return nil, err
	}
	if err == nil && (cached.Status == model.GeocodeResolved || cached.Status == model.GeocodeNotFound) {
		return cached, nil
	}

	pending := model.PlaceGeocode{PlaceText: norm, Status: model.GeocodePending}
	if err := g.store.PutGeocode(ctx, pending); err != nil {
		return nil, err
	}

	result, broadened, err := g.broadenedLookup(ctx, norm)
	out := model.PlaceGeocode{PlaceText: norm, GeocodedAt: time.Now()}
	switch {
	case err != nil:
		out.Status = model.GeocodeError
	case result != nil:
		out.Status = model.GeocodeResolved
		out.Lat = result.Lat
		out.Lng = result.Lng
		out.DisplayName = result.DisplayName
	default:
		out.Status = model.GeocodeNotFound
	}
	if broadened {
		slog.Info("geocode resolved after broadening", "component", "geocode", "place", norm, "status", out.Status)
	}

	if putErr := g.store.PutGeocode(ctx, out); putErr != nil {
		return nil, putErr
	}
	return &out, nil
}

// broadenedLookup is the progressive-broadening loop: try the full
// comma-separated string, then progressively drop the left-most
// segment, stopping once at most two segments remain.
func (g *Service) broadenedLookup(ctx context.Context, norm string) (*Result, bool, error) {
	segments := strings.Split(norm, ",")
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}

	broadened := false
	for {
		query := strings.Join(segments, ", ")
		result, err := g.query(ctx, query)
		if err != nil {
			return nil, broadened, err
		}
		if result != nil {
			return result, broadened, nil
		}
		if len(segments) <= 2 {
			return nil, broadened, nil
		}
		segments = segments[1:]
		broadened = true
	}
}

// query issues one rate-limited request, retrying a single time after
// a 60s pause on HTTP 429.
func (g *Service) query(ctx context.Context, q string) (*Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	result, err := g.rateLimitedQuery(ctx, q)
	if err == ErrTooManyRequests {
		select {
		case <-time.After(g.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		result, err = g.rateLimitedQuery(ctx, q)
	}
	return result, err
}

func (g *Service) rateLimitedQuery(ctx context.Context, q string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return g.client.Query(ctx, q)
}
