package pipeline

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency keeps fan-out within the generation API's rate limits.
const DefaultConcurrency = 4

// MapWithConcurrency runs task over items with at most limit calls in flight and returns
// the results in input order.
//
// The first task error fails the batch and is returned at once: nothing new is
// dispatched, tasks already running are left to finish in the background, and their
// results are dropped. ctx is handed to every task as is; a failing sibling never
// cancels it.
func MapWithConcurrency[T, R any](ctx context.Context, items []T, limit int, task func(ctx context.Context, item T, index int) (R, error)) ([]R, error) {
	if limit < 1 {
		limit = 1
	}

	results := make([]R, len(items))
	errs := make(chan error, len(items)+1)
	done := make(chan struct{})

	var failed atomic.Bool

	go func() {
		defer close(done)

		var g errgroup.Group
		g.SetLimit(limit)

		for i, item := range items {
			if failed.Load() {
				break
			}
			if err := ctx.Err(); err != nil {
				failed.Store(true)
				errs <- err
				break
			}

			g.Go(func() error {
				// A slot may open up only after a sibling has already failed.
				if failed.Load() {
					return nil
				}
				r, err := task(ctx, item, i)
				if err != nil {
					failed.Store(true)
					errs <- err
					return err
				}
				results[i] = r
				return nil
			})
		}
		g.Wait()
	}()

	select {
	case err := <-errs:
		return nil, err
	case <-done:
	}

	// Every task has returned; one may have failed just before the last finished.
	select {
	case err := <-errs:
		return nil, err
	default:
		return results, nil
	}
}
