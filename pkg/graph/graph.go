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
	"sort"
)

// Module is a single source file of the graph.
type Module struct {
	// Path is the canonical absolute path and the identity of the module.
	Path string
	// ID is the root-relative, slash-separated path used in emitted code.
	ID string
	// Index is the discovery position, starting at zero.
	Index int
	// Source holds the raw source, including injected provide statements.
	Source []byte
	// Imports lists import specifiers in source order without duplicates.
	Imports []string
	// Deps maps each specifier in Imports to the canonical path it
	// resolved to.
	Deps map[string]string
	// Compiled is the transform pipeline output. It is nil until the
	// module has been compiled.
	Compiled []byte
}

// Code returns the compiled output if present, the raw source otherwise.
func (m *Module) Code() []byte {
	if m.Compiled != nil {
		return m.Compiled
	}
	return m.Source
}

// Size returns the size in bytes of Code.
func (m *Module) Size() int64 {
	return int64(len(m.Code()))
}

// Edge is an import relation between two modules.
type Edge struct {
	From string
	To   string
}

// ModuleGraph is the result of a build: every reachable module, keyed by
// canonical path, plus the entries it was discovered from. Import cycles
// between modules are allowed.
type ModuleGraph struct {
	// Root is the canonical project root.
	Root string

	// Modules maps a canonical path to its module.
	Modules map[string]*Module

	// Order holds module paths in discovery order.
	Order []string

	// Entries maps an entry name to its root module paths, in the order
	// they were declared.
	Entries map[string][]string
}

// Module returns the module with the given path, or nil.
func (g *ModuleGraph) Module(path string) *Module {
	return g.Modules[path]
}

// Len returns the number of modules.
func (g *ModuleGraph) Len() int {
	return len(g.Modules)
}

// EntryNames returns the entry names sorted.
func (g *ModuleGraph) EntryNames() []string {
	names := make([]string, 0, len(g.Entries))
	for name := range g.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dependencies returns the distinct paths path imports, in import order.
func (g *ModuleGraph) Dependencies(path string) []string {
	m := g.Modules[path]
	if m == nil {
		return nil
	}
	deps := make([]string, 0, len(m.Imports))
	seen := make(map[string]bool, len(m.Imports))
	for _, spec := range m.Imports {
		dep, ok := m.Deps[spec]
		if !ok || seen[dep] {
			continue
		}
		seen[dep] = true
		deps = append(deps, dep)
	}
	return deps
}

// Edges returns every import relation, importers in discovery order.
func (g *ModuleGraph) Edges() []Edge {
	var edges []Edge
	for _, path := range g.Order {
		for _, dep := range g.Dependencies(path) {
			edges = append(edges, Edge{From: path, To: dep})
		}
	}
	return edges
}

// Reachable returns every module path reachable from roots, roots
// included, in discovery order.
func (g *ModuleGraph) Reachable(roots []string) []string {
	seen := make(map[string]bool)
	stack := append([]string(nil), roots...)
	for len(stack) > 0 {
		path := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[path] || g.Modules[path] == nil {
			continue
		}
		seen[path] = true
		stack = append(stack, g.Dependencies(path)...)
	}

	reachable := make([]string, 0, len(seen))
	for _, path := range g.Order {
		if seen[path] {
			reachable = append(reachable, path)
		}
	}
	return reachable
}

// TotalSize returns the summed size of all modules.
func (g *ModuleGraph) TotalSize() int64 {
	var total int64
	for _, m := range g.Modules {
		total += m.Size()
	}
	return total
}
