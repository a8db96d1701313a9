package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kinlink/kinlink/internal/kinderr"
)

func drain(t *testing.T, ch <-chan Progress, timeout time.Duration) []Progress {
	t.Helper()
	var out []Progress
	deadline := time.After(timeout)
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, p)
		case <-deadline:
			t.Fatal("timed out draining progress channel")
			return nil
		}
	}
}

func TestStartEmitsStartedThenCompleted(t *testing.T) {
	o := New()
	_, stream, err := o.Start("index", func(ctx context.Context, emit func(Progress)) error {
		emit(Progress{Current: 1, Total: 1})
		return nil
	})
	require.NoError(t, err)

	events := drain(t, stream, time.Second)

	require.GreaterOrEqual(t, len(events), 3)
	require.Equal(t, string(PhaseStarted), events[0].Type)
	require.Equal(t, string(PhaseCompleted), events[len(events)-1].Type)
}

func TestSecondStartOfSameKindIsBusy(t *testing.T) {
	o := New()
	block := make(chan struct{})
	_, _, err := o.Start("index", func(ctx context.Context, emit func(Progress)) error {
		<-block
		return nil
	})
	require.NoError(t, err)

	_, _, err = o.Start("index", func(ctx context.Context, emit func(Progress)) error { return nil })
	require.Error(t, err)
	require.True(t, kinderr.Is(err, kinderr.Busy))

	close(block)
}

// TestCancellationEmitsTerminalCancelled exercises mid-crawl
// cancellation at small scale: a job processes items one at a time, checking
// cancellation at each boundary; once cancelled it must emit a
// terminal "cancelled" event and free its slot for a new job of the
// same kind.
func TestCancellationEmitsTerminalCancelled(t *testing.T) {
	o := New()
	const totalItems = 50
	processed := make(chan int, totalItems)

	job, stream, err := o.Start("crawl", func(ctx context.Context, emit func(Progress)) error {
		for i := 0; i < totalItems; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			processed <- i
			emit(Progress{Current: i + 1, Total: totalItems})
		}
		return nil
	})
	require.NoError(t, err)

	<-processed // ensure the job has started iterating
	ok := o.Cancel(job.ID)
	require.True(t, ok)

	events := drain(t, stream, time.Second)
	require.NotEmpty(t, events)
	require.Equal(t, string(PhaseCancelled), events[len(events)-1].Type)

	require.False(t, o.IsRunning("crawl"))
	_, _, err = o.Start("crawl", func(ctx context.Context, emit func(Progress)) error { return nil })
	require.NoError(t, err)
}

func TestSlowSubscriberIsDroppedNotBlocked(t *testing.T) {
	o := New()
	const n = 200
	job, _, err := o.Start("geocode", func(ctx context.Context, emit func(Progress)) error {
		for i := 0; i < n; i++ {
			emit(Progress{Current: i})
		}
		return nil
	})
	require.NoError(t, err)

	// Buffer of 1 with nobody reading: publish must never block, and
	// the subscriber gets dropped (channel closed) rather than stalling
	// the producer.
	sub, unsub := job.Subscribe(1)
	defer unsub()

	select {
	case <-job.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("producer appears blocked by a slow subscriber")
	}

	// The channel should now be closed (subscriber dropped) or have at
	// most a couple of buffered events; either way it must not still be
	// open with 200 pending values.
	count := 0
	for range sub {
		count++
	}
	require.Less(t, count, n)
}

func TestShutdownCancelsActiveJobsWithinGrace(t *testing.T) {
	o := New()
	_, _, err := o.Start("discover", func(ctx context.Context, emit func(Progress)) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		o.Shutdown(time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return within its grace period")
	}
	require.False(t, o.IsRunning("discover"))
}

func TestUnknownErrorEmitsErrorTerminal(t *testing.T) {
	o := New()
	_, stream, err := o.Start("geocode", func(ctx context.Context, emit func(Progress)) error {
		return errors.New("boom")
	})
	require.NoError(t, err)

	events := drain(t, stream, time.Second)
	require.Equal(t, string(PhaseError), events[len(events)-1].Type)
	require.Equal(t, "boom", events[len(events)-1].Message)
}
