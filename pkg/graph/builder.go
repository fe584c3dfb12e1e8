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

package graph

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/kubernetes-sigs/jsbundle/pkg/graph/walker"
)

// Resolver maps an import specifier, as written in the importer, to the
// canonical path of a file. An empty importer denotes an entry.
type Resolver interface {
	Resolve(specifier, importer string) (string, error)
	Root() string
}

// Options configures a Builder.
type Options struct {
	// Provide maps a free identifier to the specifier required in its
	// place, e.g. {"React": "react"}.
	Provide map[string]string

	// VendorTest is the path segment identifying third-party modules.
	// Provided identifiers are never injected into them.
	VendorTest string

	// Parallelism bounds the number of modules loaded concurrently.
	Parallelism int
}

// Builder discovers the modules reachable from a set of entries.
//
// Discovery is level-synchronous: all modules of a level are loaded in
// parallel and the next level is formed afterwards in a fixed order, so
// the resulting graph does not depend on scheduling.
type Builder struct {
	resolver Resolver
	opts     Options
	log      logr.Logger
}

// NewBuilder creates a new Builder.
func NewBuilder(resolver Resolver, opts Options, log logr.Logger) *Builder {
	return &Builder{
		resolver: resolver,
		opts:     opts,
		log:      log,
	}
}

// Build loads every module reachable from entries, which map an entry name
// to the specifiers of its root modules.
func (b *Builder) Build(ctx context.Context, entries map[string][]string) (*ModuleGraph, error) {
	g := &ModuleGraph{
		Root:    b.resolver.Root(),
		Modules: make(map[string]*Module),
		Entries: make(map[string][]string, len(entries)),
	}

	var frontier []*Module
	// Modules are recorded as visited when they are queued, before their
	// imports are known, which keeps import cycles finite.
	visit := func(path string) {
		if _, ok := g.Modules[path]; ok {
			return
		}
		m := &Module{
			Path:  path,
			ID:    b.moduleID(path),
			Index: len(g.Order),
		}
		g.Modules[path] = m
		g.Order = append(g.Order, path)
		frontier = append(frontier, m)
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	entryOf := make(map[string]string)
	for _, name := range names {
		var roots []string
		for _, spec := range entries[name] {
			path, err := b.resolver.Resolve(spec, "")
			if err != nil {
				return nil, err
			}
			if slices.Contains(roots, path) {
				continue
			}
			roots = append(roots, path)
			if _, ok := entryOf[path]; !ok {
				entryOf[path] = name
			}
			visit(path)
		}
		g.Entries[name] = roots
	}

	for level := 0; len(frontier) > 0; level++ {
		current := frontier
		frontier = nil

		errs, err := walker.Walk(ctx, current, b.load, walker.Options{
			Parallelism: b.opts.Parallelism,
			StopOnError: true,
		})
		if err != nil {
			return nil, err
		}
		for _, m := range current {
			if err := errs[m]; err != nil {
				return nil, err
			}
		}

		for _, m := range current {
			for _, spec := range m.Imports {
				dep := m.Deps[spec]
				if dep == m.Path {
					if entry, ok := entryOf[m.Path]; ok {
						return nil, &CyclicEntryError{Entry: entry, Module: m.ID}
					}
				}
				visit(dep)
			}
		}
		b.log.V(1).Info("Loaded module level", "level", level, "modules", len(current), "discovered", len(g.Order))
	}

	b.log.V(1).Info("Built module graph", "modules", g.Len(), "entries", len(g.Entries))
	return g, nil
}

// load reads a module, scans its imports and resolves them.
func (b *Builder) load(_ context.Context, m *Module) error {
	src, err := os.ReadFile(m.Path)
	if err != nil {
		return &LoadError{Module: m.ID, Err: err}
	}
	if strings.EqualFold(filepath.Ext(m.Path), ".json") {
		m.Source = src
		m.Deps = map[string]string{}
		return nil
	}

	imports := ScanImports(src)
	deps := make(map[string]string, len(imports))
	for _, spec := range imports {
		path, err := b.resolver.Resolve(spec, m.Path)
		if err != nil {
			return err
		}
		deps[spec] = path
	}

	if b.opts.VendorTest == "" || !strings.Contains(m.ID, b.opts.VendorTest) {
		var prelude strings.Builder
		var provided []string
		for _, ident := range missingProvides(src, b.opts.Provide) {
			spec := b.opts.Provide[ident]
			path, err := b.resolver.Resolve(spec, m.Path)
			if err != nil {
				return err
			}
			if path == m.Path {
				continue
			}
			prelude.WriteString(provideStatement(ident, spec))
			if _, ok := deps[spec]; !ok {
				deps[spec] = path
				provided = append(provided, spec)
			}
		}
		if prelude.Len() > 0 {
			src = append([]byte(prelude.String()), src...)
			imports = append(provided, imports...)
		}
	}

	m.Source = src
	m.Imports = imports
	m.Deps = deps
	return nil
}

func (b *Builder) moduleID(path string) string {
	rel, err := filepath.Rel(b.resolver.Root(), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
