// Package work provides a small bounded worker pool for CPU-light batch
// stages. Extraction and per-narrative metric computation are pure
// functions, so items can fan out across workers freely.
package work

import (
	"context"
	"runtime"
	"sync"
)

// Map applies fn to every input on up to workers goroutines and returns
// results in input order. If workers <= 0, runtime.NumCPU() is used.
// Cancellation is cooperative: remaining inputs are skipped once ctx is
// done, leaving their results at the zero value.
func Map[T, R any](ctx context.Context, workers int, inputs []T, fn func(context.Context, T) R) []R {
	if len(inputs) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}

	results := make([]R, len(inputs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				results[i] = fn(ctx, inputs[i])
			}
		}()
	}

	for i := range inputs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
