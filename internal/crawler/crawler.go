// Package crawler implements the single-root BFS crawler:
// fetch-parse-store per person, cache-mode selection, transient-error
// retry, deleted-record purge-and-refetch, and a dual-write/finalize
// split so parent edges are never written before the persons they
// reference exist.
package crawler

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kinlink/kinlink/internal/codec"
	"github.com/kinlink/kinlink/internal/config"
	"github.com/kinlink/kinlink/internal/identity"
	"github.com/kinlink/kinlink/internal/jobs"
	"github.com/kinlink/kinlink/internal/model"
	"github.com/kinlink/kinlink/internal/provider"
	"github.com/kinlink/kinlink/internal/store"
)

// CacheMode selects how the crawler consults the on-disk provider
// cache.
type CacheMode string

const (
	CacheAll      CacheMode = "all"
	CacheNone     CacheMode = "none"
	CacheComplete CacheMode = "complete"
)

// Options parameterizes one crawl run.
type Options struct {
	DBID           string
	DBName         string
	RootExternalID string
	MaxGenerations int // 0 means unbounded
	Ignore         map[string]bool
	CacheMode      CacheMode
	OldestYear     *int // ancestors born before this year are dropped (too-old)

	// WatchCache enables an fsnotify watch on the provider cache
	// directory for the duration of the crawl, so an external ID that
	// failed with a permanent error is retried as soon as someone
	// drops a corrected cache file in place.
	WatchCache bool
}

// Crawler owns one provider adapter and drives BFS crawls against a
// store through the identity map.
type Crawler struct {
	adapter  provider.Adapter
	identity *identity.Map
	store    store.Store
	cacheDir string
	delays   config.ProviderDefaults
	rand     *rand.Rand
}

// New returns a Crawler that fetches through adapter, resolving and
// creating persons through idmap, persisting through s, and caching raw
// provider responses under cacheDir.
func New(adapter provider.Adapter, idmap *identity.Map, s store.Store, cacheDir string, delays config.ProviderDefaults) *Crawler {
	return &Crawler{
		adapter:  adapter,
		identity: idmap,
		store:    s,
		cacheDir: cacheDir,
		delays:   delays,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// queueItem is one pending BFS node.
type queueItem struct {
	externalID string
	generation int
}

// run carries the mutable state of one crawl, scoped to a single Run
// call so a Crawler itself stays reusable/concurrency-safe across runs.
type run struct {
	c    *Crawler
	opts Options

	visited             map[string]bool     // external IDs already enqueued or done
	refetchedOnDelete   map[string]bool     // external IDs already given one deletion-triggered refetch
	childrenOf          map[string][]string // parent external ID -> child external IDs that named it
	pendingEdgesByChild map[string][]model.ParentEdge
	pendingSpouses      []model.SpouseEdge
	droppedPlaceholder  map[string]bool // internal IDs dropped as "unknown" termination nodes
	counters            jobs.Counters
	errored             map[string]bool // external IDs that failed permanently, eligible for cache-watch recovery
}

// Run executes one BFS crawl, dual-writing persons as they're parsed
// and finalizing parent edges, spouse edges, and memberships once BFS
// drains or ctx is cancelled.
func (c *Crawler) Run(ctx context.Context, opts Options, emit func(jobs.Progress)) error {
	r := &run{
		c:                   c,
		opts:                opts,
		visited:             map[string]bool{},
		refetchedOnDelete:   map[string]bool{},
		childrenOf:          map[string][]string{},
		pendingEdgesByChild: map[string][]model.ParentEdge{},
		droppedPlaceholder:  map[string]bool{},
		errored:             map[string]bool{},
	}

	rootID, err := c.identity.GetOrCreate(ctx, c.adapter.Name(), opts.RootExternalID, "", identity.CreateOptions{})
	if err != nil {
		return err
	}

	queue := []queueItem{{externalID: opts.RootExternalID, generation: 0}}
	r.visited[opts.RootExternalID] = true

	runErr := r.drain(ctx, &queue, emit)

	// Finalize against a detached context: a checkpoint on cancellation
	// must still persist whatever was collected.
	if fErr := r.finalize(context.Background(), rootID); fErr != nil && runErr == nil {
		runErr = fErr
	}

	return runErr
}

func (r *run) drain(ctx context.Context, queue *[]queueItem, emit func(jobs.Progress)) error {
	var recovered chan string
	if r.opts.WatchCache && r.c.cacheDir != "" {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		recovered = make(chan string, 16)
		go r.watchCache(watchCtx, recovered)
	}

	for len(*queue) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if recovered != nil {
			drainRecovered(recovered, r, queue)
		}

		item := (*queue)[0]
		*queue = (*queue)[1:]

		if r.opts.MaxGenerations > 0 && item.generation > r.opts.MaxGenerations {
			r.counters.Skipped++
			continue
		}
		if r.opts.Ignore[item.externalID] {
			r.counters.Skipped++
			emit(jobs.Progress{CurrentItem: item.externalID, Counters: r.counters, Message: "ignored"})
			continue
		}

		deleted, err := r.processOne(ctx, item, queue)
		if err != nil {
			return err
		}
		if deleted {
			emit(jobs.Progress{CurrentItem: item.externalID, Counters: r.counters, Message: "deleted upstream"})
			continue
		}

		emit(jobs.Progress{CurrentItem: item.externalID, Counters: r.counters})
	}
	return nil
}

// processOne fetches, parses, and dual-writes a single person, enqueuing
// its parents. The bool result reports whether the provider reported
// the record deleted (processOne already triggered the recursive
// child-refetch in that case).
func (r *run) processOne(ctx context.Context, item queueItem, queue *[]queueItem) (bool, error) {
	ctx, span := crawlTracer.Start(ctx, "crawler.process_person",
		trace.WithAttributes(personSpanAttrs(r.c.adapter.Name(), item.externalID)...))
	var outcome error
	defer func() { endSpan(span, outcome) }()

	_, rec, liveFetched, err := r.fetch(ctx, item.externalID)
	if err != nil {
		if pe, ok := err.(*provider.Error); ok && pe.Kind == provider.Deleted {
			crawlMetrics.deletedCount.Add(ctx, 1)
			r.handleDeleted(item.externalID, queue)
			return true, nil
		}
		if pe, ok := err.(*provider.Error); ok && pe.Kind == provider.Auth {
			outcome = err
			return false, err
		}
		// Permanent (or retries exhausted on transient): log and skip,
		// but remember it in case a cache watch recovers it later.
		slog.Warn("crawler: skipping person after fetch failure",
			"component", "crawler", "external_id", item.externalID, "error", err)
		r.counters.Errors++
		r.errored[item.externalID] = true
		return false, nil
	}

	decoded, ok := codec.Decode(rec, codec.Options{Source: r.c.adapter.Name(), PlaceholderNames: codec.DefaultPlaceholderNames()})
	if !ok {
		// An "unknown"-placeholder termination node: don't store it, and
		// make sure the edge its child already queued up is dropped too.
		if internalID, err := r.c.identity.GetOrCreate(ctx, r.c.adapter.Name(), item.externalID, "", identity.CreateOptions{}); err == nil {
			r.droppedPlaceholder[internalID] = true
		}
		r.counters.Skipped++
		return false, nil
	}

	if r.tooOld(decoded) {
		r.counters.Skipped++
		return false, nil
	}

	internalID, err := r.c.identity.GetOrCreate(ctx, r.c.adapter.Name(), item.externalID, decoded.Person.Display, identity.CreateOptions{
		BirthName: decoded.Person.BirthName,
		Gender:    decoded.Person.Gender,
	})
	if err != nil {
		return false, err
	}
	decoded.Person.PersonID = internalID
	for i := range decoded.Events {
		decoded.Events[i].PersonID = internalID
	}
	for i := range decoded.Claims {
		decoded.Claims[i].PersonID = internalID
	}

	if err := r.c.identity.Register(ctx, internalID, r.c.adapter.Name(), item.externalID, "", 1.0); err != nil {
		return false, err
	}

	ident := model.ExternalIdentity{PersonID: internalID, Source: r.c.adapter.Name(), ExternalID: item.externalID, Confidence: 1.0}
	if err := r.c.store.WritePerson(ctx, store.FullPerson{
		Person:     decoded.Person,
		Identities: []model.ExternalIdentity{ident},
		Events:     decoded.Events,
		Claims:     decoded.Claims,
	}); err != nil {
		return false, err
	}
	r.counters.Discovered++

	for _, spouseExtID := range decoded.SpouseIDs {
		spouseInternalID, err := r.c.identity.GetOrCreate(ctx, r.c.adapter.Name(), spouseExtID, "", identity.CreateOptions{})
		if err != nil {
			return false, err
		}
		r.pendingSpouses = append(r.pendingSpouses, model.NewSpouseEdge(internalID, spouseInternalID, r.c.adapter.Name()))
	}

	var edges []model.ParentEdge
	for i, parentExtID := range rec.ParentIDs {
		role := model.RoleParent
		switch i {
		case 0:
			role = model.RoleFather
		case 1:
			role = model.RoleMother
		}
		parentInternalID, err := r.c.identity.GetOrCreate(ctx, r.c.adapter.Name(), parentExtID, "", identity.CreateOptions{})
		if err != nil {
			return false, err
		}
		edges = append(edges, model.ParentEdge{ChildID: internalID, ParentID: parentInternalID, Role: role, Source: r.c.adapter.Name()})

		r.childrenOf[parentExtID] = append(r.childrenOf[parentExtID], item.externalID)

		if !r.visited[parentExtID] && !r.opts.Ignore[parentExtID] {
			r.visited[parentExtID] = true
			*queue = append(*queue, queueItem{externalID: parentExtID, generation: item.generation + 1})
		}
	}
	// Overwrite rather than append: a deletion-triggered refetch of this
	// same child must replace its stale parent set, not accumulate it.
	r.pendingEdgesByChild[internalID] = edges

	if liveFetched {
		r.sleepRateLimit(ctx)
	}
	return false, nil
}

// tooOld applies the optional oldest_year floor.
func (r *run) tooOld(res *codec.Result) bool {
	if r.opts.OldestYear == nil {
		return false
	}
	for _, ev := range res.Events {
		if ev.EventType == model.EventBirth && ev.DateYear != nil && *ev.DateYear < *r.opts.OldestYear {
			return true
		}
	}
	return false
}

// handleDeleted handles a provider-deleted record: purge the cache
// file, release the ID from the working set, and re-fetch every already-
// loaded child that named it as a parent, one generation up.
func (r *run) handleDeleted(externalID string, queue *[]queueItem) {
	r.purgeCache(externalID)
	delete(r.visited, externalID)

	for _, childExtID := range r.childrenOf[externalID] {
		if r.refetchedOnDelete[childExtID] {
			continue // cap one retry per child; avoids looping on a flaky provider
		}
		r.refetchedOnDelete[childExtID] = true
		*queue = append([]queueItem{{externalID: childExtID, generation: 0}}, *queue...)
	}
	delete(r.childrenOf, externalID)
}

func (r *run) sleepRateLimit(ctx context.Context) {
	min, max := r.c.delays.MinDelay, r.c.delays.MaxDelay
	if max <= min {
		max = min + time.Millisecond
	}
	d := min + time.Duration(r.c.rand.Int63n(int64(max-min)))
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
