package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelMap(t *testing.T) {
	t.Run("preserves order", func(t *testing.T) {
		items := []int{1, 2, 3, 4, 5, 6, 7}
		results, errs := ParallelMap(context.Background(), items, 3, func(_ context.Context, _ int, n int) (int, error) {
			time.Sleep(time.Duration(8-n) * time.Millisecond)
			return n * n, nil
		})
		assert.Equal(t, []int{1, 4, 9, 16, 25, 36, 49}, results)
		assert.Nil(t, FirstError(errs))
	})

	t.Run("empty input", func(t *testing.T) {
		results, errs := ParallelMap(context.Background(), []string{}, 4, func(_ context.Context, _ int, s string) (string, error) {
			return s, nil
		})
		assert.Empty(t, results)
		assert.Empty(t, errs)
	})

	t.Run("bounded concurrency", func(t *testing.T) {
		var running, peak int32
		items := make([]int, 20)
		ParallelForEach(context.Background(), items, 2, func(_ context.Context, _ int) error {
			cur := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		})
		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	})

	t.Run("errors by index", func(t *testing.T) {
		boom := errors.New("boom")
		errs := ParallelForEach(context.Background(), []int{1, 2, 3}, 0, func(_ context.Context, n int) error {
			if n == 2 {
				return boom
			}
			return nil
		})
		require.Len(t, errs, 3)
		assert.Nil(t, errs[0])
		assert.Equal(t, boom, errs[1])
		assert.Equal(t, boom, FirstError(errs))
		assert.Len(t, CollectErrors(errs), 1)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		errs := ParallelForEach(ctx, []int{1, 2, 3}, 1, func(ctx context.Context, _ int) error {
			return ctx.Err()
		})
		require.Len(t, errs, 3)
		assert.Len(t, CollectErrors(errs), 3)
	})
}
