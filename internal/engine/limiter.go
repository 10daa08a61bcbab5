package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/datallboy/hydrofetch/internal/domain"
)

// Limiter caps how many transfers run at once. It is a permit pool, not a
// rate limiter: there is no time-based throttling and no priority.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int
	inUse    atomic.Int64
}

// NewLimiter rejects non-positive capacities up front so Acquire can never
// deadlock on an empty pool.
func NewLimiter(capacity int) (*Limiter, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: max_num_threads must be positive, got %d", domain.ErrConfiguration, capacity)
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}, nil
}

// Acquire blocks until a permit is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.inUse.Add(1)
	return nil
}

func (l *Limiter) Release() {
	l.inUse.Add(-1)
	l.sem.Release(1)
}

func (l *Limiter) Capacity() int { return l.capacity }

// InUse is the number of permits currently held.
func (l *Limiter) InUse() int { return int(l.inUse.Load()) }
