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

// Package bundler runs a build: it discovers the module graph, compiles
// every module, allocates chunks and emits them.
//
// Phases are strict barriers. Nothing is written to the output directory
// unless every phase before emission succeeded.
package bundler

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"time"

	"github.com/go-logr/logr"

	"github.com/kubernetes-sigs/jsbundle/api/v1alpha1"
	"github.com/kubernetes-sigs/jsbundle/pkg/chunk"
	"github.com/kubernetes-sigs/jsbundle/pkg/emit"
	"github.com/kubernetes-sigs/jsbundle/pkg/graph"
	"github.com/kubernetes-sigs/jsbundle/pkg/metrics"
	"github.com/kubernetes-sigs/jsbundle/pkg/resolve"
	"github.com/kubernetes-sigs/jsbundle/pkg/transform"
)

// Options configures a Bundler.
type Options struct {
	// Metrics receives build metrics. Optional.
	Metrics *metrics.BuildMetrics
	// DryRun renders the output without writing it.
	DryRun bool
}

// Result describes a finished build.
type Result struct {
	Graph      *graph.ModuleGraph
	Allocation *chunk.Allocation
	Output     *emit.Output
	Stats      transform.Stats
	// Warnings holds every non-fatal problem found.
	Warnings []error
	Duration time.Duration
}

// Bundler builds one configuration. A Bundler may build repeatedly; the
// transform cache is kept between builds.
type Bundler struct {
	spec     *v1alpha1.BundleSpec
	root     string
	opts     Options
	pipeline *transform.Pipeline
}

// New validates spec and prepares a Bundler for it. Defaults are applied to
// spec, which must not be modified afterwards. Env files are read here.
func New(ctx context.Context, spec *v1alpha1.BundleSpec, opts Options) (*Bundler, error) {
	spec.SetDefaults()
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}

	root, err := filepath.Abs(spec.Root)
	if err != nil {
		return nil, err
	}

	pipeline, err := transform.NewPipelineFromSpec(spec, root, transform.Options{
		Parallelism: spec.Parallelism,
		Log:         logr.FromContextOrDiscard(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}

	return &Bundler{
		spec:     spec,
		root:     root,
		opts:     opts,
		pipeline: pipeline,
	}, nil
}

// Root returns the absolute project root.
func (b *Bundler) Root() string {
	return b.root
}

// Build runs every phase. On error the returned Result holds whatever the
// completed phases produced.
func (b *Bundler) Build(ctx context.Context) (*Result, error) {
	log := logr.FromContextOrDiscard(ctx)
	start := time.Now()

	var deadline time.Time
	if b.spec.Timeout != nil && b.spec.Timeout.Duration > 0 {
		deadline = start.Add(b.spec.Timeout.Duration)
	}

	res := &Result{}
	err := b.build(ctx, log, deadline, res)
	res.Duration = time.Since(start)

	if m := b.opts.Metrics; m != nil {
		m.ObserveBuild(res.Duration.Seconds(), err)
		for _, w := range res.Warnings {
			m.ObserveWarning(warningType(w))
		}
	}
	for _, w := range res.Warnings {
		log.Info("Build warning", "warning", w.Error())
	}
	if err != nil {
		log.Error(err, "Build failed", "duration", res.Duration)
		return res, err
	}
	log.Info("Build finished", "modules", res.Graph.Len(), "chunks", len(res.Allocation.Chunks), "duration", res.Duration)
	return res, nil
}

func (b *Bundler) build(ctx context.Context, log logr.Logger, deadline time.Time, res *Result) error {
	run := func(phase Phase, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return &PhaseError{Phase: phase, Err: err}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return &PhaseError{Phase: phase, Err: ErrTimeout}
		}
		started := time.Now()
		err := fn()
		if m := b.opts.Metrics; m != nil {
			m.ObservePhase(string(phase), time.Since(started).Seconds(), err)
		}
		log.V(1).Info("Finished phase", "phase", phase, "duration", time.Since(started), "error", err != nil)
		if err != nil {
			return &PhaseError{Phase: phase, Err: err}
		}
		return nil
	}

	if err := run(PhaseGraph, func() error {
		g, err := b.buildGraph(ctx, log)
		res.Graph = g
		return err
	}); err != nil {
		return err
	}

	if err := run(PhaseTransform, func() error {
		stats, err := b.pipeline.Run(ctx, res.Graph)
		res.Stats = stats
		return err
	}); err != nil {
		return err
	}

	if err := run(PhaseAllocate, func() error {
		alloc, err := chunk.NewAllocator(chunk.OptionsFromSpec(b.spec), log).Allocate(res.Graph)
		if err != nil {
			return err
		}
		res.Allocation = alloc
		res.Warnings = append(res.Warnings, alloc.Warnings...)
		return nil
	}); err != nil {
		return err
	}

	return run(PhaseEmit, func() error {
		emitter := emit.New(emit.OptionsFromSpec(b.spec, b.root), log)
		out, err := emitter.Render(res.Graph, res.Allocation)
		if err != nil {
			return err
		}
		res.Output = out

		if hints := b.checkPerformance(out); len(hints) > 0 {
			if b.spec.Performance.Hints == v1alpha1.HintsError {
				return hints[0]
			}
			res.Warnings = append(res.Warnings, hints...)
		}

		if m := b.opts.Metrics; m != nil {
			m.SetModules(res.Graph.Len())
			m.AddTransforms(res.Stats.Applied, res.Stats.CacheHits)
			samples := make([]metrics.ChunkSample, 0, len(out.Files))
			for _, f := range out.Files {
				samples = append(samples, metrics.ChunkSample{Name: f.Chunk, Kind: string(f.Kind), Size: f.Size()})
			}
			m.SetChunks(samples)
		}

		if b.opts.DryRun {
			return nil
		}
		return emitter.Write(ctx, out)
	})
}

func (b *Bundler) buildGraph(ctx context.Context, log logr.Logger) (*graph.ModuleGraph, error) {
	resolver, err := resolve.New(resolve.Options{
		Root:       b.root,
		Extensions: b.spec.Resolve.Extensions,
		Alias:      b.spec.Resolve.Alias,
		Modules:    b.spec.Resolve.Modules,
	})
	if err != nil {
		return nil, err
	}

	vendorTest := v1alpha1.DefaultVendorTest
	if v := b.spec.Optimization.SplitChunks.Vendor; v != nil && v.Test != "" {
		vendorTest = v.Test
	}
	builder := graph.NewBuilder(resolver, graph.Options{
		Provide:     b.spec.Provide,
		VendorTest:  vendorTest,
		Parallelism: b.spec.Parallelism,
	}, log)

	entries := make(map[string][]string, len(b.spec.Entries))
	for name, entry := range b.spec.Entries {
		entries[name] = entry.Import
	}
	return builder.Build(ctx, entries)
}

// checkPerformance reports every file and entry above the performance
// limits. It reports nothing when hints are off.
func (b *Bundler) checkPerformance(out *emit.Output) []error {
	perf := b.spec.Performance
	if perf.Hints == v1alpha1.HintsOff {
		return nil
	}
	var hints []error
	if perf.MaxAssetSize > 0 {
		for _, f := range out.Files {
			if f.Size() > perf.MaxAssetSize {
				hints = append(hints, &PerformanceBudgetExceeded{Name: f.Path, Size: f.Size(), Limit: perf.MaxAssetSize})
			}
		}
	}
	if perf.MaxEntrypointSize > 0 {
		for _, entry := range out.Manifest.EntryNames() {
			if size := out.EntrySize(entry); size > perf.MaxEntrypointSize {
				hints = append(hints, &PerformanceBudgetExceeded{Name: entry, Entrypoint: true, Size: size, Limit: perf.MaxEntrypointSize})
			}
		}
	}
	return hints
}

// warningType returns the type name of a warning, such as
// "SizeBudgetExceeded".
func warningType(err error) string {
	t := reflect.TypeOf(err)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
