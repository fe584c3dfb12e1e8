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

// Package transform compiles module sources through an ordered table of
// (predicate, function) pairs.
//
// Every transform whose predicate matches a module is applied, in
// registration order, with the output of one transform feeding the next.
// Transform functions must be pure: the same path and source always yield
// the same output, which is what makes results cacheable.
package transform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kubernetes-sigs/jsbundle/pkg/graph"
	"github.com/kubernetes-sigs/jsbundle/pkg/graph/walker"
)

// DefaultCacheSize is the number of transform results kept in memory.
const DefaultCacheSize = 4096

// Predicate reports whether a transform applies to the module with the
// given root-relative path.
type Predicate func(path string) bool

// Func maps a module's source to its compiled form.
type Func func(path string, src []byte) ([]byte, error)

// Transform is a named entry of the pipeline.
type Transform struct {
	Name  string
	Match Predicate
	Apply Func
}

// TransformError reports the module and transform that failed.
type TransformError struct {
	ModulePath string
	Transform  string
	Cause      error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s failed for %s: %v", e.Transform, e.ModulePath, e.Cause)
}

func (e *TransformError) Unwrap() error { return e.Cause }

// IsTransformError reports whether err (or any error in its chain) is a
// TransformError.
func IsTransformError(err error) bool {
	var te *TransformError
	return errors.As(err, &te)
}

// Options configures a Pipeline.
type Options struct {
	// CacheSize bounds the result cache. Zero selects DefaultCacheSize and
	// a negative value disables caching.
	CacheSize int
	// Parallelism bounds the number of modules compiled concurrently.
	Parallelism int
	// Log receives progress messages.
	Log logr.Logger
}

// Stats summarises a pipeline run.
type Stats struct {
	// Modules is the number of modules compiled.
	Modules int
	// Applied counts transform applications, cached ones included.
	Applied int64
	// CacheHits counts applications served from the cache.
	CacheHits int64
}

// Pipeline is an ordered set of transforms. Registration is not safe for
// concurrent use; compilation is.
type Pipeline struct {
	transforms  []Transform
	cache       *lru.Cache[string, []byte]
	parallelism int
	log         logr.Logger

	applied   atomic.Int64
	cacheHits atomic.Int64
}

// NewPipeline returns an empty pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	p := &Pipeline{
		parallelism: opts.Parallelism,
		log:         opts.Log,
	}
	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		cache, err := lru.New[string, []byte](size)
		if err != nil {
			return nil, fmt.Errorf("failed to create transform cache: %w", err)
		}
		p.cache = cache
	}
	return p, nil
}

// Register appends t to the pipeline. A nil Match applies t to every
// module.
func (p *Pipeline) Register(t Transform) error {
	if t.Name == "" {
		return errors.New("transform name must not be empty")
	}
	if t.Apply == nil {
		return fmt.Errorf("transform %s: apply function must not be nil", t.Name)
	}
	if t.Match == nil {
		t.Match = func(string) bool { return true }
	}
	p.transforms = append(p.transforms, t)
	return nil
}

// RegisterTransform appends an anonymous transform applied to every module
// match accepts.
func (p *Pipeline) RegisterTransform(match Predicate, fn Func) error {
	return p.Register(Transform{
		Name:  fmt.Sprintf("transform-%d", len(p.transforms)),
		Match: match,
		Apply: fn,
	})
}

// Names returns the registered transform names in order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.transforms))
	for _, t := range p.transforms {
		names = append(names, t.Name)
	}
	return names
}

// Compile runs src through every matching transform.
func (p *Pipeline) Compile(path string, src []byte) ([]byte, error) {
	out := src
	for i, t := range p.transforms {
		if !t.Match(path) {
			continue
		}
		p.applied.Add(1)

		key := cacheKey(i, t.Name, path, out)
		if p.cache != nil {
			if cached, ok := p.cache.Get(key); ok {
				p.cacheHits.Add(1)
				out = cached
				continue
			}
		}

		next, err := t.Apply(path, out)
		if err != nil {
			return nil, &TransformError{ModulePath: path, Transform: t.Name, Cause: err}
		}
		if p.cache != nil {
			p.cache.Add(key, next)
		}
		out = next
	}
	return out, nil
}

// Run compiles every module of g. Compiled output is written back to the
// graph only when all modules succeeded; on failure the graph is left
// untouched and the error of the earliest discovered failing module is
// returned.
func (p *Pipeline) Run(ctx context.Context, g *graph.ModuleGraph) (Stats, error) {
	applied, hits := p.applied.Load(), p.cacheHits.Load()

	var mu sync.Mutex
	results := make(map[string][]byte, g.Len())

	errs, err := walker.Walk(ctx, g.Order, func(_ context.Context, path string) error {
		m := g.Modules[path]
		out, err := p.Compile(m.ID, m.Source)
		if err != nil {
			return err
		}
		mu.Lock()
		results[path] = out
		mu.Unlock()
		return nil
	}, walker.Options{Parallelism: p.parallelism, StopOnError: true})
	if err != nil {
		return Stats{}, err
	}
	for _, path := range g.Order {
		if err := errs[path]; err != nil {
			return Stats{}, err
		}
	}

	for path, out := range results {
		g.Modules[path].Compiled = out
	}

	stats := Stats{
		Modules:   len(results),
		Applied:   p.applied.Load() - applied,
		CacheHits: p.cacheHits.Load() - hits,
	}
	p.log.V(1).Info("Compiled modules", "modules", stats.Modules, "applied", stats.Applied, "cacheHits", stats.CacheHits)
	return stats, nil
}

func cacheKey(index int, name, path string, src []byte) string {
	sum := sha256.Sum256(src)
	return fmt.Sprintf("%d\x00%s\x00%s\x00%s", index, name, path, hex.EncodeToString(sum[:]))
}
