package parallel_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/TuSKan/n5-gomlx/parallel"
)

func TestScheduler_DispatchVisitsEveryIndexOnce(t *testing.T) {
	for _, s := range []*parallel.Scheduler{
		nil,
		{},
		{Workers: 3, MaxPartitions: 7},
		{Workers: 1, MaxPartitions: 1},
	} {
		const n = 1000
		var mu sync.Mutex
		seen := make(map[int64]int)
		err := s.Dispatch(context.Background(), n, func(_ context.Context, i int64) error {
			mu.Lock()
			defer mu.Unlock()
			seen[i]++
			return nil
		})
		require.NoError(t, err)
		require.Len(t, seen, n)
		for i, c := range seen {
			require.Equal(t, 1, c, "index %d", i)
		}
	}
}

func TestScheduler_Partitions(t *testing.T) {
	s := &parallel.Scheduler{}
	require.Equal(t, int64(10), s.Partitions(10))
	require.Equal(t, int64(parallel.MaxPartitions), s.Partitions(1<<40))

	s.MaxPartitions = 4
	require.Equal(t, int64(4), s.Partitions(10))
}

func TestScheduler_DispatchEmpty(t *testing.T) {
	called := false
	err := (&parallel.Scheduler{}).Dispatch(context.Background(), 0, func(context.Context, int64) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.False(t, called)
}

func TestScheduler_FirstFailureAborts(t *testing.T) {
	boom := errors.New("boom")
	var after atomic.Int64
	s := &parallel.Scheduler{Workers: 1, MaxPartitions: 1}

	err := s.Dispatch(context.Background(), 100, func(_ context.Context, i int64) error {
		if i == 10 {
			return boom
		}
		if i > 10 {
			after.Add(1)
		}
		return nil
	})
	require.ErrorIs(t, err, boom)

	var itemErr *parallel.ItemError
	require.ErrorAs(t, err, &itemErr)
	require.Equal(t, int64(10), itemErr.Index)
	require.Zero(t, after.Load())
}

func TestScheduler_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (&parallel.Scheduler{}).Dispatch(ctx, 5, func(context.Context, int64) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestScheduler_Limiter(t *testing.T) {
	s := parallel.New(2, 1000)
	require.NotNil(t, s.Limiter)
	require.Equal(t, rate.Limit(1000), s.Limiter.Limit())

	var n atomic.Int64
	require.NoError(t, s.Dispatch(context.Background(), 20, func(context.Context, int64) error {
		n.Add(1)
		return nil
	}))
	require.Equal(t, int64(20), n.Load())

	require.Nil(t, parallel.New(2, 0).Limiter)
}

func TestDispatchItems(t *testing.T) {
	items := []string{"a", "b", "c"}
	var mu sync.Mutex
	var got []string
	err := parallel.DispatchItems(context.Background(), &parallel.Scheduler{Workers: 2}, items, func(_ context.Context, s string) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, items, got)
}
