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

// Package dag implements a small generic directed acyclic graph used to
// order chunks. Vertices carry an insertion order that every sort honours
// whenever dependencies allow it, which keeps output deterministic.
package dag

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Vertex is a node of the graph.
type Vertex[T cmp.Ordered] struct {
	// ID identifies the vertex.
	ID T
	// Order is the position used to break ties between independent vertices.
	Order int
	// DependsOn holds the vertices that must come before this one.
	DependsOn map[T]struct{}
}

// DirectedAcyclicGraph is a set of vertices with dependency edges that
// rejects every edge that would introduce a cycle.
type DirectedAcyclicGraph[T cmp.Ordered] struct {
	Vertices map[T]*Vertex[T]
}

// CycleError is returned when an operation would create, or found, a cycle.
type CycleError[T cmp.Ordered] struct {
	Cycle []T
}

func (e *CycleError[T]) Error() string {
	parts := make([]string, 0, len(e.Cycle))
	for _, id := range e.Cycle {
		parts = append(parts, fmt.Sprint(id))
	}
	return fmt.Sprintf("graph contains a cycle: %s", strings.Join(parts, " -> "))
}

// AsCycleError returns the CycleError wrapped in err, or nil.
func AsCycleError[T cmp.Ordered](err error) *CycleError[T] {
	var cycleErr *CycleError[T]
	if errors.As(err, &cycleErr) {
		return cycleErr
	}
	return nil
}

// NewDirectedAcyclicGraph returns an empty graph.
func NewDirectedAcyclicGraph[T cmp.Ordered]() *DirectedAcyclicGraph[T] {
	return &DirectedAcyclicGraph[T]{
		Vertices: make(map[T]*Vertex[T]),
	}
}

// AddVertex adds a vertex with the given tie-breaking order.
func (d *DirectedAcyclicGraph[T]) AddVertex(id T, order int) error {
	if _, exists := d.Vertices[id]; exists {
		return fmt.Errorf("node %v already exists", id)
	}
	d.Vertices[id] = &Vertex[T]{
		ID:        id,
		Order:     order,
		DependsOn: make(map[T]struct{}),
	}
	return nil
}

// AddDependencies records that id depends on every vertex in dependencies.
// The graph is left unchanged when an error is returned.
func (d *DirectedAcyclicGraph[T]) AddDependencies(id T, dependencies []T) error {
	vertex, ok := d.Vertices[id]
	if !ok {
		return fmt.Errorf("node %v does not exist", id)
	}

	added := make([]T, 0, len(dependencies))
	for _, dep := range dependencies {
		if dep == id {
			d.rollback(vertex, added)
			return fmt.Errorf("self references are not allowed: %v", id)
		}
		if _, ok := d.Vertices[dep]; !ok {
			d.rollback(vertex, added)
			return fmt.Errorf("dependency %v of %v does not exist", dep, id)
		}
		if _, exists := vertex.DependsOn[dep]; exists {
			continue
		}
		vertex.DependsOn[dep] = struct{}{}
		added = append(added, dep)
	}

	if cyclic, cycle := d.hasCycle(); cyclic {
		d.rollback(vertex, added)
		return &CycleError[T]{Cycle: cycle}
	}
	return nil
}

func (d *DirectedAcyclicGraph[T]) rollback(vertex *Vertex[T], added []T) {
	for _, dep := range added {
		delete(vertex.DependsOn, dep)
	}
}

// sortedIDs returns vertex IDs ordered by Order, then by ID.
func (d *DirectedAcyclicGraph[T]) sortedIDs() []T {
	ids := make([]T, 0, len(d.Vertices))
	for id := range d.Vertices {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b T) int {
		if c := cmp.Compare(d.Vertices[a].Order, d.Vertices[b].Order); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

// TopologicalSort returns the vertices so that every vertex follows its
// dependencies. Vertices are visited in order repeatedly and emitted as
// soon as they are ready, so independent vertices keep their order.
func (d *DirectedAcyclicGraph[T]) TopologicalSort() ([]T, error) {
	ids := d.sortedIDs()
	emitted := make(map[T]bool, len(ids))
	order := make([]T, 0, len(ids))

	for len(order) < len(ids) {
		progress := false
		for _, id := range ids {
			if emitted[id] || !d.ready(id, emitted) {
				continue
			}
			emitted[id] = true
			order = append(order, id)
			progress = true
		}
		if !progress {
			_, cycle := d.hasCycle()
			return nil, &CycleError[T]{Cycle: cycle}
		}
	}
	return order, nil
}

func (d *DirectedAcyclicGraph[T]) ready(id T, done map[T]bool) bool {
	for dep := range d.Vertices[id].DependsOn {
		if !done[dep] {
			return false
		}
	}
	return true
}

// hasCycle reports whether the graph contains a cycle and returns one.
func (d *DirectedAcyclicGraph[T]) hasCycle() (bool, []T) {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[T]int, len(d.Vertices))
	var stack []T
	var cycle []T

	var visit func(id T) bool
	visit = func(id T) bool {
		state[id] = visiting
		stack = append(stack, id)

		deps := make([]T, 0, len(d.Vertices[id].DependsOn))
		for dep := range d.Vertices[id].DependsOn {
			deps = append(deps, dep)
		}
		slices.Sort(deps)

		for _, dep := range deps {
			switch state[dep] {
			case visiting:
				start := slices.Index(stack, dep)
				cycle = append(slices.Clone(stack[start:]), dep)
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = visited
		return false
	}

	for _, id := range d.sortedIDs() {
		if state[id] == unvisited && visit(id) {
			return true, cycle
		}
	}
	return false, nil
}
