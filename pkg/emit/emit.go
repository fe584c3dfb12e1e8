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

// Package emit renders chunks into content-hashed files and writes them,
// together with a manifest, to the output directory.
package emit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/go-logr/logr"

	"github.com/kubernetes-sigs/jsbundle/api/v1alpha1"
	"github.com/kubernetes-sigs/jsbundle/pkg/chunk"
	"github.com/kubernetes-sigs/jsbundle/pkg/graph"
	"github.com/kubernetes-sigs/jsbundle/pkg/graph/dag"
)

// Options configures an Emitter.
type Options struct {
	// Dir is the absolute output directory.
	Dir string
	// Filename is the template of entry chunk files.
	Filename string
	// ChunkFilename is the template of every other chunk file.
	ChunkFilename string
	// Manifest is the manifest file name.
	Manifest string
	// HashLength is the default length of substituted hashes.
	HashLength int
	// Clean removes stale files from Dir after the manifest is written.
	Clean bool
}

// OptionsFromSpec returns the emitter options of a defaulted spec whose
// root is root.
func OptionsFromSpec(spec *v1alpha1.BundleSpec, root string) Options {
	dir := spec.Output.Path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return Options{
		Dir:           dir,
		Filename:      spec.Output.Filename,
		ChunkFilename: spec.Output.ChunkFilename,
		Manifest:      spec.Output.Manifest,
		HashLength:    spec.Output.HashLength,
		Clean:         spec.Output.Clean,
	}
}

// File is a rendered chunk.
type File struct {
	// Path is relative to the output directory and slash separated.
	Path  string
	Chunk string
	Kind  chunk.Kind
	// Hash is the hex sha256 of Data.
	Hash string
	Data []byte
	// Modules holds the IDs of the chunk's modules in emission order.
	Modules []string
}

// Size returns the size of the file in bytes.
func (f *File) Size() int64 {
	return int64(len(f.Data))
}

// ManifestChunk describes one emitted chunk.
type ManifestChunk struct {
	Name    string     `json:"name"`
	Kind    chunk.Kind `json:"kind"`
	File    string     `json:"file"`
	Hash    string     `json:"hash"`
	Size    int64      `json:"size"`
	Modules []string   `json:"modules"`
}

// Manifest maps every entry to the files it loads, in load order.
type Manifest struct {
	// Hash is the build hash, derived from every chunk hash.
	Hash    string              `json:"hash"`
	Entries map[string][]string `json:"entries"`
	Chunks  []ManifestChunk     `json:"chunks"`
}

// EntryNames returns the entry names sorted.
func (m *Manifest) EntryNames() []string {
	names := make([]string, 0, len(m.Entries))
	for name := range m.Entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Output is a fully rendered build, not yet written.
type Output struct {
	Files    []*File
	Manifest *Manifest
}

// File returns the file of the named chunk, or nil.
func (o *Output) File(chunkName string) *File {
	for _, f := range o.Files {
		if f.Chunk == chunkName {
			return f
		}
	}
	return nil
}

// EntrySize returns the summed size of every file entry loads.
func (o *Output) EntrySize(entry string) int64 {
	var total int64
	for _, path := range o.Manifest.Entries[entry] {
		for _, f := range o.Files {
			if f.Path == path {
				total += f.Size()
			}
		}
	}
	return total
}

// Emitter renders and writes chunks.
type Emitter struct {
	opts Options
	log  logr.Logger
}

// New creates a new Emitter.
func New(opts Options, log logr.Logger) *Emitter {
	return &Emitter{opts: opts, log: log}
}

// Render produces every chunk file and the manifest in memory.
func (e *Emitter) Render(g *graph.ModuleGraph, alloc *chunk.Allocation) (*Output, error) {
	out := &Output{}
	build := sha256.New()
	for _, c := range alloc.Chunks {
		data, ids, err := renderChunk(g, c)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.Name, err)
		}
		sum := sha256.Sum256(data)
		hash := hex.EncodeToString(sum[:])
		build.Write([]byte(c.Name))
		build.Write(sum[:])
		out.Files = append(out.Files, &File{Chunk: c.Name, Kind: c.Kind, Hash: hash, Data: data, Modules: ids})
	}
	buildHash := hex.EncodeToString(build.Sum(nil))

	paths := make(map[string]string, len(out.Files))
	byChunk := make(map[string]*File, len(out.Files))
	for _, f := range out.Files {
		tmpl := e.opts.ChunkFilename
		if f.Kind == chunk.KindEntry {
			tmpl = e.opts.Filename
		}
		f.Path = filepath.ToSlash(filepath.Clean(expandTemplate(tmpl, f.Chunk, buildHash, f.Hash, e.opts.HashLength)))
		if other, ok := paths[f.Path]; ok {
			return nil, fmt.Errorf("chunks %s and %s both emit %s", other, f.Chunk, f.Path)
		}
		if f.Path == e.opts.Manifest {
			return nil, fmt.Errorf("chunk %s emits %s, which is the manifest", f.Chunk, f.Path)
		}
		paths[f.Path] = f.Chunk
		byChunk[f.Chunk] = f
	}

	manifest := &Manifest{Hash: buildHash, Entries: make(map[string][]string, len(g.Entries))}
	for _, entry := range g.EntryNames() {
		order, err := e.loadOrder(entry, alloc)
		if err != nil {
			return nil, err
		}
		files := make([]string, 0, len(order))
		for _, name := range order {
			files = append(files, byChunk[name].Path)
		}
		manifest.Entries[entry] = files
	}
	for _, f := range out.Files {
		manifest.Chunks = append(manifest.Chunks, ManifestChunk{
			Name:    f.Chunk,
			Kind:    f.Kind,
			File:    f.Path,
			Hash:    f.Hash,
			Size:    f.Size(),
			Modules: f.Modules,
		})
	}
	out.Manifest = manifest

	e.log.V(1).Info("Rendered chunks", "files", len(out.Files), "hash", buildHash)
	return out, nil
}

// loadOrder sorts the chunks an entry loads so that every entry chunk
// follows the chunks its own entry loads. Chunks that do not depend on each
// other keep allocation order.
func (e *Emitter) loadOrder(entry string, alloc *chunk.Allocation) ([]string, error) {
	loads := alloc.EntryChunks[entry]
	d := dag.NewDirectedAcyclicGraph[string]()
	for i, name := range loads {
		if err := d.AddVertex(name, i); err != nil {
			return nil, err
		}
	}

	owners := append([]string{entry}, alloc.DependOn[entry]...)
	for _, owner := range owners {
		if !slices.Contains(loads, owner) {
			continue
		}
		var deps []string
		for _, name := range alloc.EntryChunks[owner] {
			if name != owner && slices.Contains(loads, name) {
				deps = append(deps, name)
			}
		}
		if err := d.AddDependencies(owner, deps); err != nil {
			if dag.AsCycleError[string](err) == nil {
				return nil, err
			}
			// Entries loading each other's roots; keep allocation order
			// with the entry's own chunk last.
			e.log.Info("Chunk load order contains a cycle", "entry", entry, "error", err.Error())
			ordered := slices.DeleteFunc(slices.Clone(loads), func(name string) bool { return name == entry })
			if slices.Contains(loads, entry) {
				ordered = append(ordered, entry)
			}
			return ordered, nil
		}
	}
	return d.TopologicalSort()
}

// Emit renders the chunks and writes them to the output directory.
func (e *Emitter) Emit(ctx context.Context, g *graph.ModuleGraph, alloc *chunk.Allocation) (*Output, error) {
	out, err := e.Render(g, alloc)
	if err != nil {
		return nil, err
	}
	if err := e.Write(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalManifest returns the manifest as indented JSON.
func MarshalManifest(m *Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// UnmarshalManifest decodes a manifest written by MarshalManifest.
func UnmarshalManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
