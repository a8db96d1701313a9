package crawler

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kinlink/kinlink/internal/codec"
	"github.com/kinlink/kinlink/internal/provider"
)

// fetch resolves one external ID through the configured cache mode
//, parsing whatever bytes it ends up
// with. liveFetched reports whether a network round-trip actually
// happened, so the caller only rate-limits after a real fetch.
func (r *run) fetch(ctx context.Context, externalID string) (provider.RawRecord, codec.RawRecord, bool, error) {
	path := r.cachePath(externalID)

	switch r.opts.CacheMode {
	case CacheNone:
		return r.liveFetch(ctx, externalID, path)

	case CacheComplete:
		if raw, ok := readCache(path); ok {
			rec, err := r.c.adapter.Parse(raw)
			if err == nil && len(rec.ParentIDs) >= 2 {
				return raw, rec, false, nil
			}
		}
		return r.liveFetch(ctx, externalID, path)

	default: // CacheAll
		if raw, ok := readCache(path); ok {
			rec, err := r.c.adapter.Parse(raw)
			if err == nil {
				return raw, rec, false, nil
			}
		}
		return r.liveFetch(ctx, externalID, path)
	}
}

// liveFetch performs a network fetch with the retry policy —
// transient errors retry up to 3 times with 5s·2^attempt backoff — then
// persists the raw bytes to cache and parses them.
func (r *run) liveFetch(ctx context.Context, externalID, cachePath string) (provider.RawRecord, codec.RawRecord, bool, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	var raw provider.RawRecord
	err := backoff.Retry(func() error {
		var fetchErr error
		raw, fetchErr = r.c.adapter.Fetch(ctx, externalID)
		if fetchErr == nil {
			return nil
		}
		if pe, ok := fetchErr.(*provider.Error); ok && pe.Kind == provider.Transient {
			crawlMetrics.retryCount.Add(ctx, 1)
			return fetchErr
		}
		return backoff.Permanent(fetchErr)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx))
	if err != nil {
		if perm, ok := err.(*backoff.PermanentError); ok {
			return nil, codec.RawRecord{}, false, perm.Err
		}
		return nil, codec.RawRecord{}, false, err
	}

	rec, err := r.c.adapter.Parse(raw)
	if err != nil {
		return nil, codec.RawRecord{}, false, &provider.Error{Kind: provider.Permanent, Message: err.Error()}
	}

	writeCache(cachePath, raw)
	return raw, rec, true, nil
}

func (r *run) cachePath(externalID string) string {
	return filepath.Join(r.c.cacheDir, externalID+".json")
}

func (r *run) purgeCache(externalID string) {
	os.Remove(r.cachePath(externalID))
}

func readCache(path string) (provider.RawRecord, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return provider.RawRecord(data), true
}

func writeCache(path string, raw provider.RawRecord) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(path, raw, 0o644)
}
