// Package jobs implements the long-running job orchestrator:
// cancellable streaming jobs with at-most-one running instance
// per kind, broadcast progress with drop-slowest-subscriber semantics,
// and a bounded-grace shutdown.
//
// The broadcast model generalizes a single principle: a subscriber's
// error or slowness is logged or dropped but never blocks the next
// subscriber. It goes from one process-wide bus serving many handlers to
// one broadcaster per running job serving many progress subscribers: a
// subscriber that can't keep up is dropped rather than allowed to stall
// the producer.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kinlink/kinlink/internal/kinderr"
)

// Phase is a progress event's lifecycle stage.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseProgress  Phase = "progress"
	PhaseCompleted Phase = "completed"
	PhaseCancelled Phase = "cancelled"
	PhaseError     Phase = "error"
)

// Counters tallies a job's running totals.
type Counters struct {
	Discovered int
	Skipped    int
	Errors     int
}

// Progress is one emitted event.
// Stable across job kinds so a single subscription UI can render any
// of them.
type Progress struct {
	Type        string // mirrors Phase; kept as its own field so the wire shape is uniform
	JobID       string
	Kind        string
	Current     int
	Total       int
	Message     string
	CurrentItem string
	Counters    Counters
	Payload     any
}

// Func is a job's body. It runs on its own goroutine; ctx is cancelled
// when the job is cancelled or the orchestrator shuts down. emit
// publishes a Progress event to every live subscriber. Func should
// check ctx.Err() at each iteration boundary.
type Func func(ctx context.Context, emit func(Progress)) error

// Job is a handle to one running (or just-finished) job instance.
type Job struct {
	ID   string
	Kind string

	cancel context.CancelFunc
	done   chan struct{}
	bus    *broadcaster
}

// Done returns a channel closed when the job's terminal event has been
// emitted and its slot released.
func (j *Job) Done() <-chan struct{} { return j.done }

// Subscribe registers a new progress subscriber with a bounded buffer.
// If the subscriber can't drain fast enough, it is dropped — the
// producer is never blocked by a slow reader.
// unsubscribe must be called to release the subscription once the
// caller stops reading.
func (j *Job) Subscribe(bufSize int) (ch <-chan Progress, unsubscribe func()) {
	return j.bus.subscribe(bufSize)
}

// Orchestrator owns the registry of active jobs (keyed by kind) and
// enforces at-most-one-running-instance-per-kind.
type Orchestrator struct {
	mu     sync.Mutex
	active map[string]*Job // kind -> running job
	byID   map[string]*Job
	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// New returns an orchestrator ready to accept jobs.
func New() *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		active:     map[string]*Job{},
		byID:       map[string]*Job{},
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

// streamBufSize is the primary subscriber's buffer. Generous, because
// the primary stream is handed out before the producer starts and is
// usually the one UI actually draining; it still drops rather than
// blocks if the reader walks away.
const streamBufSize = 256

// Start launches fn as a new job of the given kind, returning its
// handle plus the primary progress stream. The stream is subscribed before the
// producer runs, so it is guaranteed to observe the started event and,
// unless it falls behind, the terminal event. If another job of the
// same kind is already running, Start fails synchronously with a
// kinderr.Busy.
func (o *Orchestrator) Start(kind string, fn Func) (*Job, <-chan Progress, error) {
	o.mu.Lock()
	if _, running := o.active[kind]; running {
		o.mu.Unlock()
		return nil, nil, kinderr.New(kinderr.Busy, "jobs.start", kind, nil)
	}

	ctx, cancel := context.WithCancel(o.rootCtx)
	job := &Job{
		ID:     uuid.NewString(),
		Kind:   kind,
		cancel: cancel,
		done:   make(chan struct{}),
		bus:    newBroadcaster(),
	}
	o.active[kind] = job
	o.byID[job.ID] = job
	o.mu.Unlock()

	stream, _ := job.bus.subscribe(streamBufSize)
	job.bus.publish(Progress{Type: string(PhaseStarted), JobID: job.ID, Kind: kind})

	go o.run(job, ctx, fn)

	return job, stream, nil
}

func (o *Orchestrator) run(job *Job, ctx context.Context, fn Func) {
	defer close(job.done)

	emit := func(p Progress) {
		p.JobID = job.ID
		p.Kind = job.Kind
		if p.Type == "" {
			p.Type = string(PhaseProgress)
		}
		job.bus.publish(p)
	}

	err := fn(ctx, emit)

	switch {
	case ctx.Err() != nil:
		job.bus.publish(Progress{Type: string(PhaseCancelled), JobID: job.ID, Kind: job.Kind})
	case err != nil:
		job.bus.publish(Progress{Type: string(PhaseError), JobID: job.ID, Kind: job.Kind, Message: err.Error()})
	default:
		job.bus.publish(Progress{Type: string(PhaseCompleted), JobID: job.ID, Kind: job.Kind})
	}
	job.bus.closeAll()

	o.mu.Lock()
	if o.active[job.Kind] == job {
		delete(o.active, job.Kind)
	}
	delete(o.byID, job.ID)
	o.mu.Unlock()
}

// Cancel cooperatively cancels the running job with the given ID,
// returning false if no such job is running.
func (o *Orchestrator) Cancel(jobID string) bool {
	o.mu.Lock()
	job, ok := o.byID[jobID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	job.cancel()
	return true
}

// IsRunning reports whether a job of the given kind is currently
// active.
func (o *Orchestrator) IsRunning(kind string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[kind]
	return ok
}

// Lookup returns the running or just-finished job by ID, if still
// tracked.
func (o *Orchestrator) Lookup(jobID string) (*Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.byID[jobID]
	return j, ok
}

// Shutdown cancels every active job and waits up to grace for each to
// emit its terminal event, then returns.
// Jobs that haven't finished within the grace period are abandoned —
// their goroutines keep running to completion in the background but
// Shutdown does not wait further.
func (o *Orchestrator) Shutdown(grace time.Duration) {
	o.mu.Lock()
	jobs := make([]*Job, 0, len(o.active))
	for _, j := range o.active {
		jobs = append(jobs, j)
	}
	o.mu.Unlock()

	o.rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	var g errgroup.Group
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			select {
			case <-j.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	_ = g.Wait()
}
