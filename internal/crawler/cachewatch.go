package crawler

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// watchCache watches the crawl's cache directory for externally dropped
// or rewritten files and reports the affected external ID on recovered.
// A crawl can run for hours against a provider that occasionally demands
// a captcha or re-login; watchCache lets someone fix up the on-disk
// cache by hand (drop a freshly captured response in place) and have
// the still-running crawl notice, instead of waiting for the whole
// index to be restarted. Build a fsnotify.Watcher, filter to
// Write/Create, translate the path back to a domain key, report it,
// and give up quietly if the watch can't be established (the cache
// dir may not exist yet on a first crawl).
func (r *run) watchCache(ctx context.Context, recovered chan<- string) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	defer w.Close()

	if err := w.Add(r.c.cacheDir); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			externalID, ok := externalIDFromCachePath(ev.Name)
			if !ok {
				continue
			}
			select {
			case recovered <- externalID:
			case <-ctx.Done():
				return
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

func externalIDFromCachePath(path string) (string, bool) {
	name := filepath.Base(path)
	externalID := strings.TrimSuffix(name, ".json")
	if externalID == name {
		return "", false
	}
	return externalID, true
}

// drainRecovered requeues every external ID currently waiting on
// recovered that previously failed with a permanent error, appending it
// to the back of the queue with generation 0. Non-blocking: it drains
// whatever is already buffered and returns.
func drainRecovered(recovered <-chan string, r *run, queue *[]queueItem) {
	for {
		select {
		case externalID := <-recovered:
			if r.errored[externalID] {
				delete(r.errored, externalID)
				*queue = append(*queue, queueItem{externalID: externalID, generation: 0})
			}
		default:
			return
		}
	}
}
