// Package parallel dispatches independent work items over a bounded pool of
// goroutines with all-or-fail semantics.
package parallel

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// MaxPartitions bounds the number of partitions a batch is split into.
const MaxPartitions = 15000

// Scheduler runs batches of work items. The zero value is ready to use.
type Scheduler struct {
	// Workers is the maximum number of partitions processed concurrently.
	// If 0, defaults to runtime.GOMAXPROCS(0).
	Workers int

	// MaxPartitions caps how many contiguous partitions a batch is split into.
	// If 0, defaults to MaxPartitions.
	MaxPartitions int

	// Limiter throttles item starts across all workers. Nil means unlimited.
	Limiter *rate.Limiter
}

// New creates a Scheduler. opsPerSecond <= 0 disables throttling.
func New(workers int, opsPerSecond float64) *Scheduler {
	s := &Scheduler{Workers: workers}
	if opsPerSecond > 0 {
		s.Limiter = rate.NewLimiter(rate.Limit(opsPerSecond), max(1, int(opsPerSecond)))
	}
	return s
}

func (s *Scheduler) workers() int {
	if s == nil || s.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return s.Workers
}

func (s *Scheduler) maxPartitions() int64 {
	if s == nil || s.MaxPartitions <= 0 {
		return MaxPartitions
	}
	return int64(s.MaxPartitions)
}

// Partitions returns the number of partitions a batch of n items is split into.
func (s *Scheduler) Partitions(n int64) int64 {
	return min(n, s.maxPartitions())
}

// ItemError reports the failure of one work item.
type ItemError struct {
	Index int64
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Dispatch calls fn for every index in [0, n). Items are grouped into
// contiguous partitions processed sequentially, with partitions running
// concurrently. The first failure cancels the context passed to the
// remaining items and is returned once all running items have finished.
func (s *Scheduler) Dispatch(ctx context.Context, n int64, fn func(ctx context.Context, i int64) error) error {
	if n <= 0 {
		return nil
	}
	partitions := s.Partitions(n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())

	for p := range partitions {
		start := p * n / partitions
		end := (p + 1) * n / partitions
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if s != nil && s.Limiter != nil {
					if err := s.Limiter.Wait(gctx); err != nil {
						return err
					}
				}
				if err := fn(gctx, i); err != nil {
					return &ItemError{Index: i, Err: err}
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// DispatchItems calls fn for every element of items.
func DispatchItems[T any](ctx context.Context, s *Scheduler, items []T, fn func(ctx context.Context, item T) error) error {
	return s.Dispatch(ctx, int64(len(items)), func(ctx context.Context, i int64) error {
		return fn(ctx, items[i])
	})
}
