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

package walker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalk_AllItems(t *testing.T) {
	items := []string{"a.js", "b.js", "c.js", "d.js"}

	var mu sync.Mutex
	seen := map[string]int{}
	errs, err := Walk(context.Background(), items, func(ctx context.Context, item string) error {
		mu.Lock()
		seen[item]++
		mu.Unlock()
		return nil
	}, Options{Parallelism: 2})

	require.NoError(t, err)
	assert.Empty(t, errs)
	for _, item := range items {
		assert.Equal(t, 1, seen[item], "item %s must run exactly once", item)
	}
}

func TestWalk_BoundedParallelism(t *testing.T) {
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	var inFlight, peak int32
	_, err := Walk(context.Background(), items, func(ctx context.Context, item int) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	}, Options{Parallelism: 3})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int32(3))
	assert.Positive(t, peak)
}

func TestWalk_CollectsErrors(t *testing.T) {
	items := []string{"ok.js", "bad.js", "worse.js"}
	errs, err := Walk(context.Background(), items, func(ctx context.Context, item string) error {
		if item == "ok.js" {
			return nil
		}
		return errors.New("failed " + item)
	}, Options{Parallelism: 1})

	require.NoError(t, err)
	assert.Len(t, errs, 2)
	assert.EqualError(t, errs["bad.js"], "failed bad.js")
	assert.EqualError(t, errs["worse.js"], "failed worse.js")
}

func TestWalk_StopOnError(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	var ran int32
	errs, err := Walk(context.Background(), items, func(ctx context.Context, item int) error {
		atomic.AddInt32(&ran, 1)
		if item == 0 {
			return errors.New("boom")
		}
		time.Sleep(time.Millisecond)
		return nil
	}, Options{Parallelism: 1, StopOnError: true})

	require.NoError(t, err)
	assert.Contains(t, errs, 0)
	assert.Less(t, atomic.LoadInt32(&ran), int32(len(items)))
}

func TestWalk_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran int32
	_, err := Walk(ctx, []int{1, 2, 3}, func(ctx context.Context, item int) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}, Options{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&ran))
}
