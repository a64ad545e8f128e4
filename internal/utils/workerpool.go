package utils

import (
	"context"
	"sync"
)

// ParallelMap applies fn to every item using a bounded number of workers.
// Results and errors are returned in input order. Items not started before
// ctx is cancelled get ctx.Err() as their error.
func ParallelMap[T, R any](ctx context.Context, items []T, workers int, fn func(context.Context, int, T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return results, errs
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				// each index is written by exactly one worker
				results[idx], errs[idx] = fn(ctx, idx, items[idx])
			}
		}()
	}

	next := 0
submit:
	for ; next < len(items); next++ {
		select {
		case <-ctx.Done():
			break submit
		case indexes <- next:
		}
	}
	close(indexes)
	wg.Wait()

	for i := next; i < len(items); i++ {
		errs[i] = ctx.Err()
	}
	return results, errs
}

// ParallelForEach executes a function for each item in parallel
func ParallelForEach[T any](ctx context.Context, items []T, workers int, fn func(context.Context, T) error) []error {
	_, errs := ParallelMap(ctx, items, workers, func(ctx context.Context, _ int, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	return errs
}

// FirstError returns the first non-nil error from a slice of errors
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// CollectErrors collects all non-nil errors from a slice
func CollectErrors(errs []error) []error {
	var result []error
	for _, err := range errs {
		if err != nil {
			result = append(result, err)
		}
	}
	return result
}
