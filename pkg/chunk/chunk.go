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

// Package chunk partitions a module graph into chunks.
//
// Every module is placed in exactly one chunk. Entry roots stay in their
// entry chunk; other modules are placed by the set of entries that reach
// them: one entry keeps the module in that entry's chunk, enough entries
// move it to the commons chunk, and a smaller group of entries gets a
// shared chunk of its own. Third-party modules go to the vendor chunk
// instead of a shared one. Chunks above the size limit are split.
package chunk

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/kubernetes-sigs/jsbundle/pkg/graph"
	"github.com/kubernetes-sigs/jsbundle/pkg/graph/dag"
)

// Kind classifies chunks.
type Kind string

const (
	// KindEntry is the chunk holding an entry's own modules.
	KindEntry Kind = "entry"
	// KindCommons holds modules shared by at least MinChunks entries.
	KindCommons Kind = "commons"
	// KindShared holds modules shared by fewer than MinChunks entries.
	KindShared Kind = "shared"
	// KindVendor holds shared third-party modules.
	KindVendor Kind = "vendor"
	// KindSplit is carved out of an oversize chunk.
	KindSplit Kind = "split"
)

// Chunk is a named group of modules emitted as one file.
type Chunk struct {
	Name string
	Kind Kind
	// Modules holds module paths in discovery order.
	Modules []string
	// Entries lists, sorted, the entries that load the chunk.
	Entries []string
	// Size is the summed size of the modules in bytes.
	Size int64
	// Origin names the chunk this one was split from.
	Origin string
}

// SizeBudgetExceeded reports a chunk above the size limit that could not
// be split any further.
type SizeBudgetExceeded struct {
	Chunk string
	Size  int64
	Limit int64
}

func (e *SizeBudgetExceeded) Error() string {
	return fmt.Sprintf("chunk %q is %d bytes, above the limit of %d bytes, and cannot be split further", e.Chunk, e.Size, e.Limit)
}

// IsSizeBudgetExceeded reports whether err (or any error in its chain) is
// a SizeBudgetExceeded.
func IsSizeBudgetExceeded(err error) bool {
	var se *SizeBudgetExceeded
	return errors.As(err, &se)
}

// VendorOptions configures the vendor group.
type VendorOptions struct {
	// Test is the path segment identifying vendor modules.
	Test string
	// Name is the name of the vendor chunk.
	Name string
	// Always moves every vendor module that is not an entry root to the
	// vendor chunk, shared or not.
	Always bool
}

// Options configures an Allocator.
type Options struct {
	// MinChunks is the number of entries that must reach a module before
	// it moves to the commons chunk.
	MinChunks int
	// MaxInitialSize is the chunk size above which chunks are split. Zero
	// disables splitting.
	MaxInitialSize int64
	// CommonsName is the name of the commons chunk.
	CommonsName string
	// Vendor configures the vendor group. Nil disables it.
	Vendor *VendorOptions
	// DependOn maps an entry to the entries it depends on.
	DependOn map[string][]string
	// Strict turns SizeBudgetExceeded warnings into errors.
	Strict bool
}

// Allocation is the result of partitioning a graph.
type Allocation struct {
	// Chunks in emission order: entry chunks by entry name, then every
	// other chunk by name.
	Chunks []*Chunk
	// Owner maps a module path to the name of the chunk holding it.
	Owner map[string]string
	// EntryChunks maps an entry to the names of every chunk it loads,
	// its own included, in Chunks order.
	EntryChunks map[string][]string
	// DependOn maps an entry to the entries it depends on, transitively.
	DependOn map[string][]string
	// Warnings holds non-fatal problems such as SizeBudgetExceeded.
	Warnings []error
}

// Chunk returns the chunk with the given name, or nil.
func (a *Allocation) Chunk(name string) *Chunk {
	for _, c := range a.Chunks {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Allocator assigns modules to chunks.
type Allocator struct {
	opts Options
	log  logr.Logger
}

// NewAllocator creates a new Allocator.
func NewAllocator(opts Options, log logr.Logger) *Allocator {
	if opts.MinChunks < 2 {
		opts.MinChunks = 2
	}
	if opts.CommonsName == "" {
		opts.CommonsName = "commons"
	}
	return &Allocator{opts: opts, log: log}
}

// Allocate partitions g into chunks.
func (a *Allocator) Allocate(g *graph.ModuleGraph) (*Allocation, error) {
	entries := g.EntryNames()

	dependOn, err := a.dependOnClosure(entries)
	if err != nil {
		return nil, err
	}

	// Entries reaching each module.
	reach := make(map[string]sets.Set[string], g.Len())
	reachable := make(map[string][]string, len(entries))
	for _, entry := range entries {
		reachable[entry] = g.Reachable(g.Entries[entry])
		for _, p := range reachable[entry] {
			if reach[p] == nil {
				reach[p] = sets.New[string]()
			}
			reach[p].Insert(entry)
		}
	}
	// Modules an entry's dependencies provide are owned by them.
	for _, entry := range entries {
		for _, dep := range dependOn[entry] {
			for _, p := range reachable[dep] {
				reach[p].Delete(entry)
			}
		}
	}

	pinned := make(map[string]string)
	for _, entry := range entries {
		for _, root := range g.Entries[entry] {
			if _, ok := pinned[root]; !ok {
				pinned[root] = entry
			}
		}
	}

	chunks := make(map[string]*Chunk)
	owner := make(map[string]string, g.Len())
	place := func(name string, kind Kind, p string) {
		c, ok := chunks[name]
		if !ok {
			c = &Chunk{Name: name, Kind: kind}
			chunks[name] = c
		}
		c.Modules = append(c.Modules, p)
		c.Size += g.Modules[p].Size()
		owner[p] = name
	}
	for _, entry := range entries {
		chunks[entry] = &Chunk{Name: entry, Kind: KindEntry}
	}

	for _, p := range g.Order {
		if entry, ok := pinned[p]; ok {
			place(entry, KindEntry, p)
			continue
		}
		owners := reach[p]
		if owners.Len() == 0 {
			return nil, fmt.Errorf("module %s is not owned by any entry", g.Modules[p].ID)
		}
		vendor := a.isVendor(g.Modules[p].ID)
		switch {
		case vendor && a.opts.Vendor.Always:
			place(a.opts.Vendor.Name, KindVendor, p)
		case owners.Len() == 1:
			place(sets.List(owners)[0], KindEntry, p)
		case vendor:
			place(a.opts.Vendor.Name, KindVendor, p)
		case owners.Len() >= a.opts.MinChunks:
			place(a.opts.CommonsName, KindCommons, p)
		default:
			place(strings.Join(sets.List(owners), "~"), KindShared, p)
		}
	}

	alloc := &Allocation{Owner: owner, DependOn: dependOn}
	if a.opts.MaxInitialSize > 0 {
		if err := a.split(g, chunks, owner, pinned, alloc); err != nil {
			return nil, err
		}
	}

	alloc.Chunks = orderChunks(chunks)
	a.assignEntries(g, reachable, alloc)

	a.log.V(1).Info("Allocated chunks", "chunks", len(alloc.Chunks), "warnings", len(alloc.Warnings))
	return alloc, nil
}

func (a *Allocator) isVendor(id string) bool {
	v := a.opts.Vendor
	return v != nil && v.Test != "" && strings.Contains(id, v.Test)
}

// dependOnClosure resolves dependOn transitively. Cycles are rejected.
func (a *Allocator) dependOnClosure(entries []string) (map[string][]string, error) {
	d := dag.NewDirectedAcyclicGraph[string]()
	for i, entry := range entries {
		if err := d.AddVertex(entry, i); err != nil {
			return nil, err
		}
	}
	for _, entry := range entries {
		deps := a.opts.DependOn[entry]
		if len(deps) == 0 {
			continue
		}
		if err := d.AddDependencies(entry, deps); err != nil {
			return nil, fmt.Errorf("entry %q dependOn: %w", entry, err)
		}
	}

	closure := make(map[string][]string, len(entries))
	for _, entry := range entries {
		seen := sets.New[string]()
		stack := append([]string(nil), a.opts.DependOn[entry]...)
		for len(stack) > 0 {
			dep := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen.Has(dep) {
				continue
			}
			seen.Insert(dep)
			stack = append(stack, a.opts.DependOn[dep]...)
		}
		if seen.Len() > 0 {
			closure[entry] = sets.List(seen)
		}
	}
	return closure, nil
}

// split carves oversize chunks up until they fit or cannot be split. The
// vendor modules of a chunk are extracted first, then its largest package
// group, as long as more than one group remains.
func (a *Allocator) split(g *graph.ModuleGraph, chunks map[string]*Chunk, owner, pinned map[string]string, alloc *Allocation) error {
	queue := orderChunks(chunks)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		for c.Size > a.opts.MaxInitialSize {
			moved, name := a.vendorSplit(g, c, pinned)
			if len(moved) == 0 {
				moved, name = a.groupSplit(g, c, pinned)
			}
			if len(moved) == 0 {
				warning := &SizeBudgetExceeded{Chunk: c.Name, Size: c.Size, Limit: a.opts.MaxInitialSize}
				if a.opts.Strict {
					return warning
				}
				alloc.Warnings = append(alloc.Warnings, warning)
				break
			}

			name = uniqueName(chunks, name)
			split := &Chunk{Name: name, Kind: KindSplit, Origin: c.Name}
			movedSet := sets.New(moved...)
			kept := c.Modules[:0:0]
			for _, p := range c.Modules {
				if movedSet.Has(p) {
					split.Modules = append(split.Modules, p)
					split.Size += g.Modules[p].Size()
					owner[p] = name
					continue
				}
				kept = append(kept, p)
			}
			c.Modules = kept
			c.Size -= split.Size
			chunks[name] = split
			queue = append(queue, split)
			a.log.V(1).Info("Split oversize chunk", "chunk", c.Name, "into", name, "modules", len(split.Modules))
		}
	}
	return nil
}

// vendorSplit returns the movable vendor modules of c, unless c holds
// nothing else.
func (a *Allocator) vendorSplit(g *graph.ModuleGraph, c *Chunk, pinned map[string]string) ([]string, string) {
	if a.opts.Vendor == nil || c.Kind == KindVendor || c.Kind == KindSplit {
		return nil, ""
	}
	var moved []string
	for _, p := range c.Modules {
		if _, ok := pinned[p]; !ok && a.isVendor(g.Modules[p].ID) {
			moved = append(moved, p)
		}
	}
	if len(moved) == len(c.Modules) {
		return nil, ""
	}
	return moved, a.opts.Vendor.Name + "~" + c.Name
}

// groupSplit returns the movable modules of the largest package group of
// c, provided c spans more than one group.
func (a *Allocator) groupSplit(g *graph.ModuleGraph, c *Chunk, pinned map[string]string) ([]string, string) {
	sizes := make(map[string]int64)
	members := make(map[string][]string)
	for _, p := range c.Modules {
		group := packageGroup(g.Modules[p].ID, a.vendorTest())
		if _, ok := members[group]; !ok {
			members[group] = nil
		}
		if _, ok := pinned[p]; ok {
			continue
		}
		sizes[group] += g.Modules[p].Size()
		members[group] = append(members[group], p)
	}
	if len(members) < 2 {
		return nil, ""
	}

	var best string
	for group, size := range sizes {
		if len(members[group]) == 0 {
			continue
		}
		if best == "" || size > sizes[best] || (size == sizes[best] && group < best) {
			best = group
		}
	}
	if best == "" || len(members[best]) == len(c.Modules) {
		return nil, ""
	}
	return members[best], c.Name + "~" + sanitize(best)
}

func (a *Allocator) vendorTest() string {
	if a.opts.Vendor == nil || a.opts.Vendor.Test == "" {
		return "node_modules/"
	}
	return a.opts.Vendor.Test
}

// packageGroup returns the package a module belongs to: the package name
// for vendor modules and the directory for everything else.
func packageGroup(id, vendorTest string) string {
	if i := strings.LastIndex(id, vendorTest); i >= 0 {
		rest := strings.Split(id[i+len(vendorTest):], "/")
		if strings.HasPrefix(rest[0], "@") && len(rest) > 2 {
			return rest[0] + "/" + rest[1]
		}
		if len(rest) > 1 {
			return rest[0]
		}
	}
	return path.Dir(id)
}

func sanitize(name string) string {
	name = strings.TrimPrefix(name, "@")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}

func uniqueName(chunks map[string]*Chunk, name string) string {
	if _, ok := chunks[name]; !ok {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s~%d", name, i)
		if _, ok := chunks[candidate]; !ok {
			return candidate
		}
	}
}

// orderChunks drops empty chunks and returns entry chunks by name followed
// by all other chunks by name.
func orderChunks(chunks map[string]*Chunk) []*Chunk {
	ordered := make([]*Chunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Modules) > 0 {
			ordered = append(ordered, c)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		ei, ej := ordered[i].Kind == KindEntry, ordered[j].Kind == KindEntry
		if ei != ej {
			return ei
		}
		return ordered[i].Name < ordered[j].Name
	})
	return ordered
}

// assignEntries records which chunks every entry loads: the owners of
// every module it reaches plus everything its dependencies load.
func (a *Allocator) assignEntries(g *graph.ModuleGraph, reachable map[string][]string, alloc *Allocation) {
	position := make(map[string]int, len(alloc.Chunks))
	for i, c := range alloc.Chunks {
		position[c.Name] = i
	}

	loads := make(map[string]sets.Set[string], len(g.Entries))
	for _, entry := range g.EntryNames() {
		set := sets.New[string]()
		for _, p := range reachable[entry] {
			set.Insert(alloc.Owner[p])
		}
		for _, dep := range alloc.DependOn[entry] {
			for _, p := range reachable[dep] {
				set.Insert(alloc.Owner[p])
			}
		}
		loads[entry] = set
	}

	alloc.EntryChunks = make(map[string][]string, len(loads))
	byChunk := make(map[string]sets.Set[string])
	for entry, set := range loads {
		names := sets.List(set)
		sort.Slice(names, func(i, j int) bool { return position[names[i]] < position[names[j]] })
		alloc.EntryChunks[entry] = names
		for _, name := range names {
			if byChunk[name] == nil {
				byChunk[name] = sets.New[string]()
			}
			byChunk[name].Insert(entry)
		}
	}
	for _, c := range alloc.Chunks {
		c.Entries = sets.List(byChunk[c.Name])
	}
}
