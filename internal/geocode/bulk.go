package geocode

import (
	"context"

	"github.com/kinlink/kinlink/internal/jobs"
	"github.com/kinlink/kinlink/internal/model"
)

// GeocodeAll runs Geocode over every place text, checking for
// cancellation at each iteration boundary and emitting progress —
// suitable as a jobs.Func body for the batch-geocoding job kind.
func (g *Service) GeocodeAll(ctx context.Context, placeTexts []string, emit func(jobs.Progress)) error {
	counters := jobs.Counters{}
	total := len(placeTexts)
	for i, place := range placeTexts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row, err := g.Geocode(ctx, place)
		if err != nil {
			counters.Errors++
			emit(jobs.Progress{Current: i + 1, Total: total, CurrentItem: place, Counters: counters, Message: err.Error()})
			continue
		}
		if row.Status == model.GeocodeNotFound {
			counters.Skipped++
		} else {
			counters.Discovered++
		}
		emit(jobs.Progress{Current: i + 1, Total: total, CurrentItem: place, Counters: counters})
	}
	return nil
}

// ResetNotFound resets every sticky not_found row to pending so the
// broadened-query logic can be retried after it is improved.
func (g *Service) ResetNotFound(ctx context.Context) (int, error) {
	return g.store.ResetNotFound(ctx)
}
