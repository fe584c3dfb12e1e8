// Copyright 2025 The Kube Resource Orchestrator Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package walker runs independent per-item work on a bounded worker pool.
//
// Module loading and transformation are independent per module, so the
// bundler hands each phase's items to Walk and waits for the barrier.
package walker

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ItemFunc is executed once for each item.
type ItemFunc[T comparable] func(ctx context.Context, item T) error

// Options configures the walker's execution behavior.
type Options struct {
	// Parallelism sets the maximum number of concurrent workers.
	// If <= 0, defaults to runtime.NumCPU().
	Parallelism int

	// StopOnError stops scheduling new items after the first failure.
	// Items already running are allowed to finish.
	StopOnError bool
}

// Walk calls fn for every item with at most opts.Parallelism calls in
// flight and returns the errors keyed by item. Items are scheduled in
// slice order. The returned error is the parent context's error when the
// walk was cut short by cancellation; items never scheduled have no entry
// in the map.
func Walk[T comparable](ctx context.Context, items []T, fn ItemFunc[T], opts Options) (map[T]error, error) {
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}

	var mu sync.Mutex
	errs := make(map[T]error)

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(opts.Parallelism))

	for _, item := range items {
		// Acquire fails once gctx is done, either because the caller
		// cancelled or because a failing item stopped the walk.
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			err := fn(gctx, item)
			if err == nil {
				return nil
			}
			mu.Lock()
			errs[item] = err
			mu.Unlock()
			if opts.StopOnError {
				return err
			}
			return nil
		})
	}

	_ = g.Wait()
	return errs, ctx.Err()
}
