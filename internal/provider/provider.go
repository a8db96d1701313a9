// Package provider defines the Fetcher port the crawler
// depends on, plus the provider registry every concrete adapter
// (familysearch, ancestry, wikitree, tdme) self-registers into at
// init time via a factory-registry keyed by provider name.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/kinlink/kinlink/internal/codec"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	Transient ErrorKind = "transient"
	Deleted   ErrorKind = "deleted"
	Auth      ErrorKind = "auth"
	Permanent ErrorKind = "permanent"
)

// Error is the structured failure a Fetcher returns. The crawler
// switches on Kind to decide retry/purge/skip behavior.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider: %s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("provider: %s: %s", e.Kind, e.Message)
}

// RawRecord is the verbatim bytes a provider returned for one external
// ID, persisted as-is to the provider cache.
type RawRecord []byte

// Fetcher is the port the crawler depends on. Implementations
// may hit an HTTP API, scrape a rendered page, or replay a fixture.
type Fetcher interface {
	Fetch(ctx context.Context, externalID string) (RawRecord, error)
}

// Parser turns a provider's cached raw bytes into the codec's
// provider-agnostic tree.
type Parser interface {
	Parse(raw RawRecord) (codec.RawRecord, error)
}

// Adapter is a complete provider: it can fetch and it can parse what it
// fetched. Every provider subpackage registers a factory that builds
// one of these.
type Adapter interface {
	Fetcher
	Parser
	// Name returns the provider's stable lowercase identifier, e.g.
	// "familysearch" — used for cache paths, rate-limit config lookup,
	// and external-identity source tags.
	Name() string
}

// Config carries whatever an adapter factory needs to build a live
// client: credentials, base URL overrides, and an injectable HTTP
// client so tests can point an adapter at an httptest.Server.
type Config struct {
	BaseURL    string
	Username   string
	Password   string
	APIKey     string
	HTTPClient *http.Client

	// DeletedMarkers overrides an adapter's default set of
	// case-insensitive substrings that mark a fetch response as
	// "provider deleted this record". Empty
	// means keep the adapter's own default marker set.
	DeletedMarkers []string
}

// IsDeletedMessage reports whether body contains any of markers,
// matched case-insensitively — the shared substring-set check behind
// every adapter's Deleted detection.
func IsDeletedMessage(body string, markers []string) bool {
	lower := strings.ToLower(body)
	for _, m := range markers {
		if m == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

type factory func(cfg Config) Adapter

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register installs a provider factory under name. Called from each
// provider subpackage's init() so importing the subpackage for its
// side effect is enough to make it available to Build.
func Register(name string, f factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// Build constructs the named provider's adapter, or reports that no
// such provider has registered itself.
func Build(name string, cfg Config) (Adapter, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider: unknown provider %q", name)
	}
	return f(cfg), nil
}

// Known returns the names of every registered provider, sorted for
// stable CLI help output.
func Known() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
