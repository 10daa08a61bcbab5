package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/datallboy/hydrofetch/internal/diag"
	"github.com/datallboy/hydrofetch/internal/domain"
)

// Coordinator turns job lists into batches of concurrently running workers.
type Coordinator struct {
	capacity  int
	retriever Retriever
	sink      diag.Sink
}

// NewCoordinator validates capacity here, not at acquire time, so a bad
// max_num_threads fails before any job runs.
func NewCoordinator(capacity int, r Retriever, sink diag.Sink) (*Coordinator, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: max_num_threads must be positive, got %d", domain.ErrConfiguration, capacity)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: no retriever", domain.ErrConfiguration)
	}
	if sink == nil {
		sink = diag.Discard
	}
	return &Coordinator{capacity: capacity, retriever: r, sink: sink}, nil
}

func (c *Coordinator) Capacity() int { return c.capacity }

// Submit starts one worker per job and returns without waiting. Every
// worker of the batch shares one Limiter.
func (c *Coordinator) Submit(ctx context.Context, jobs []domain.Job) *Batch {
	return c.SubmitWith(ctx, jobs, c.retriever)
}

// SubmitWith runs jobs through r instead of the coordinator's retriever.
func (c *Coordinator) SubmitWith(ctx context.Context, jobs []domain.Job, r Retriever) *Batch {
	limiter, _ := NewLimiter(c.capacity)

	b := &Batch{
		limiter:   limiter,
		retriever: r,
		sink:      c.sink,
		outcomes:  make([]domain.Outcome, 0, len(jobs)),
		size:      len(jobs),
	}
	b.pending.Store(int64(len(jobs)))

	diag.Emitter{Sink: c.sink}.Info("Starting %d jobs with maximum number of concurrent workers = %d", len(jobs), c.capacity)

	for _, job := range jobs {
		b.wg.Go(func() {
			defer b.pending.Add(-1)

			var pc panics.Catcher
			var out domain.Outcome
			pc.Try(func() { out = b.work(ctx, job) })
			if r := pc.Recovered(); r != nil {
				out = panicOutcome(job, r.Value)
				diag.Emitter{Sink: b.sink, SourceID: job.SourceID}.Error("Unexpected error for URL %s: %v", job.Address, r.Value)
			}
			b.record(out)
		})
	}
	return b
}

// Batch owns the workers of one Submit call.
type Batch struct {
	wg        conc.WaitGroup
	limiter   *Limiter
	retriever Retriever
	sink      diag.Sink
	size      int

	pending atomic.Int64

	joinOnce sync.Once
	mu       sync.Mutex
	outcomes []domain.Outcome
}

func (b *Batch) record(out domain.Outcome) {
	b.mu.Lock()
	b.outcomes = append(b.outcomes, out)
	b.mu.Unlock()
}

// Len is the number of jobs submitted.
func (b *Batch) Len() int { return b.size }

// Join blocks until every worker has finished and returns their outcomes in
// completion order. Later calls return the same outcomes immediately.
func (b *Batch) Join() []domain.Outcome {
	b.joinOnce.Do(b.wg.Wait)

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Outcome, len(b.outcomes))
	copy(out, b.outcomes)
	return out
}

// RequireAny is the batch-level policy for query-style sources: a batch
// where no job produced data points at a systemic problem, a wrong query or
// a dead endpoint, rather than a gap at a few stations.
func RequireAny(outcomes []domain.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	for _, o := range outcomes {
		if o.HasData() {
			return nil
		}
	}
	return fmt.Errorf("%w: none of %d jobs produced data", domain.ErrNoData, len(outcomes))
}

// ByDestination indexes outcomes by destination path, the key that
// correlates them with the submitted jobs.
func ByDestination(outcomes []domain.Outcome) map[string]domain.Outcome {
	m := make(map[string]domain.Outcome, len(outcomes))
	for _, o := range outcomes {
		m[o.Job.Destination] = o
	}
	return m
}
