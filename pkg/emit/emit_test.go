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

package emit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubernetes-sigs/jsbundle/pkg/chunk"
	"github.com/kubernetes-sigs/jsbundle/pkg/graph"
)

type mod struct {
	id   string
	src  string
	deps []string
}

func newGraph(entries map[string][]string, mods ...mod) *graph.ModuleGraph {
	g := &graph.ModuleGraph{
		Root:    "/p",
		Modules: map[string]*graph.Module{},
		Entries: map[string][]string{},
	}
	for i, m := range mods {
		path := "/p/" + m.id
		module := &graph.Module{Path: path, ID: m.id, Index: i, Source: []byte(m.src), Deps: map[string]string{}}
		for _, dep := range m.deps {
			module.Imports = append(module.Imports, "./"+dep)
			module.Deps["./"+dep] = "/p/" + dep
		}
		g.Modules[path] = module
		g.Order = append(g.Order, path)
	}
	for name, roots := range entries {
		for _, root := range roots {
			g.Entries[name] = append(g.Entries[name], "/p/"+root)
		}
	}
	return g
}

// sharedGraph is two entries importing one module.
func sharedGraph() *graph.ModuleGraph {
	return newGraph(map[string][]string{"a": {"a.js"}, "b": {"b.js"}},
		mod{id: "a.js", src: "require('./shared.js');\n", deps: []string{"shared.js"}},
		mod{id: "b.js", src: "require('./shared.js');", deps: []string{"shared.js"}},
		mod{id: "shared.js", src: "module.exports = 1;\n"},
	)
}

func allocate(t *testing.T, g *graph.ModuleGraph, opts chunk.Options) *chunk.Allocation {
	t.Helper()
	if opts.MinChunks == 0 {
		opts.MinChunks = 2
	}
	alloc, err := chunk.NewAllocator(opts, logr.Discard()).Allocate(g)
	require.NoError(t, err)
	return alloc
}

func testOptions(dir string) Options {
	return Options{
		Dir:           dir,
		Filename:      "[name].[contenthash].js",
		ChunkFilename: "[name].[contenthash:8].chunk.js",
		Manifest:      "manifest.json",
		HashLength:    20,
	}
}

func TestExpandTemplate(t *testing.T) {
	build := strings.Repeat("b", 64)
	content := strings.Repeat("c", 64)
	tests := []struct {
		tmpl string
		want string
	}{
		{tmpl: "[name].js", want: "app.js"},
		{tmpl: "[name].[contenthash].js", want: "app.cccccccccc.js"},
		{tmpl: "[name].[hash].js", want: "app.cccccccccc.js"},
		{tmpl: "[name].[fullhash].js", want: "app.bbbbbbbbbb.js"},
		{tmpl: "[name].[contenthash:4].js", want: "app.cccc.js"},
		{tmpl: "js/[name]-[fullhash:2]-[hash:3].js", want: "js/app-bb-ccc.js"},
		{tmpl: "[name].[contenthash:100].js", want: "app." + content + ".js"},
		{tmpl: "[name].[chunkhash].js", want: "app.[chunkhash].js"},
	}
	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			assert.Equal(t, tt.want, expandTemplate(tt.tmpl, "app", build, content, 10))
		})
	}
}

func TestOrderModules(t *testing.T) {
	g := newGraph(map[string][]string{"main": {"index.js"}},
		mod{id: "index.js", deps: []string{"a.js", "b.js"}},
		mod{id: "a.js", deps: []string{"c.js"}},
		mod{id: "b.js", deps: []string{"a.js"}},
		mod{id: "c.js", deps: []string{"a.js"}},
	)
	c := &chunk.Chunk{Name: "main", Kind: chunk.KindEntry, Modules: g.Order}

	var ids []string
	for _, p := range orderModules(g, c) {
		ids = append(ids, g.Modules[p].ID)
	}
	// c.js imports a.js back; the cycle is cut at that edge.
	assert.Equal(t, []string{"c.js", "a.js", "b.js", "index.js"}, ids)
}

func TestRenderChunk(t *testing.T) {
	g := sharedGraph()
	alloc := allocate(t, g, chunk.Options{})

	out, err := New(testOptions(t.TempDir()), logr.Discard()).Render(g, alloc)
	require.NoError(t, err)
	require.Len(t, out.Files, 3)

	a := string(out.File("a").Data)
	assert.True(t, strings.HasPrefix(a, prelude))
	assert.Contains(t, a, `__jsbundle__.define("a.js", {"./shared.js":"shared.js"}, function (module, exports, require) {`+"\nrequire('./shared.js');\n});\n")
	assert.True(t, strings.HasSuffix(a, "__jsbundle__.require(\"a.js\");\n"))
	assert.NotContains(t, a, "module.exports = 1;")

	b := string(out.File("b").Data)
	assert.Contains(t, b, "require('./shared.js');\n});\n", "a trailing newline is added")

	commons := string(out.File("commons").Data)
	assert.Contains(t, commons, `__jsbundle__.define("shared.js", {}, function`)
	assert.NotContains(t, commons, "__jsbundle__.require(")
}

func TestRender(t *testing.T) {
	g := sharedGraph()
	alloc := allocate(t, g, chunk.Options{})
	e := New(testOptions(t.TempDir()), logr.Discard())

	out, err := e.Render(g, alloc)
	require.NoError(t, err)

	commons := out.File("commons")
	a := out.File("a")
	assert.Equal(t, "commons."+commons.Hash[:8]+".chunk.js", commons.Path)
	assert.Equal(t, "a."+a.Hash[:20]+".js", a.Path)
	assert.Equal(t, []string{commons.Path, a.Path}, out.Manifest.Entries["a"])
	assert.Equal(t, []string{commons.Path, out.File("b").Path}, out.Manifest.Entries["b"])
	assert.Equal(t, a.Size()+commons.Size(), out.EntrySize("a"))
	require.Len(t, out.Manifest.Chunks, 3)
	assert.Equal(t, []string{"shared.js"}, out.Manifest.Chunks[2].Modules)

	again, err := e.Render(g, alloc)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	g.Modules["/p/shared.js"].Compiled = []byte("module.exports = 2;\n")
	changed, err := e.Render(g, alloc)
	require.NoError(t, err)
	assert.NotEqual(t, commons.Hash, changed.File("commons").Hash)
	assert.Equal(t, a.Hash, changed.File("a").Hash)
	assert.NotEqual(t, out.Manifest.Hash, changed.Manifest.Hash)
}

func TestRenderHashIsPerChunk(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.Filename = "[name].[hash].js"
	opts.ChunkFilename = "[name].[hash].js"
	e := New(opts, logr.Discard())

	g := sharedGraph()
	alloc := allocate(t, g, chunk.Options{})
	out, err := e.Render(g, alloc)
	require.NoError(t, err)

	g.Modules["/p/a.js"].Compiled = []byte("require('./shared.js'); console.log('a');\n")
	changed, err := e.Render(g, alloc)
	require.NoError(t, err)

	assert.Equal(t, out.File("commons").Data, changed.File("commons").Data)
	assert.Equal(t, out.File("commons").Path, changed.File("commons").Path)
	assert.Equal(t, out.File("b").Path, changed.File("b").Path)
	assert.NotEqual(t, out.File("a").Path, changed.File("a").Path)
	assert.NotEqual(t, out.Manifest.Hash, changed.Manifest.Hash)
}

func TestRenderDependOnOrder(t *testing.T) {
	g := newGraph(map[string][]string{"app": {"app.js"}, "shared": {"node_modules/react/index.js"}},
		mod{id: "app.js", deps: []string{"node_modules/react/index.js", "lib.js"}},
		mod{id: "node_modules/react/index.js"},
		mod{id: "lib.js"},
	)
	alloc := allocate(t, g, chunk.Options{DependOn: map[string][]string{"app": {"shared"}}})

	opts := testOptions(t.TempDir())
	opts.Filename = "[name].js"
	out, err := New(opts, logr.Discard()).Render(g, alloc)
	require.NoError(t, err)

	assert.Equal(t, []string{"shared.js", "app.js"}, out.Manifest.Entries["app"])
	assert.Equal(t, []string{"shared.js"}, out.Manifest.Entries["shared"])
}

func TestRenderFilenameCollision(t *testing.T) {
	g := newGraph(map[string][]string{"manifest": {"index.js"}}, mod{id: "index.js"})
	alloc := allocate(t, g, chunk.Options{})

	opts := testOptions(t.TempDir())
	opts.Filename = "[name].json"
	_, err := New(opts, logr.Discard()).Render(g, alloc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "which is the manifest")
}

func TestEmit(t *testing.T) {
	g := sharedGraph()
	alloc := allocate(t, g, chunk.Options{})
	dir := filepath.Join(t.TempDir(), "dist")

	out, err := New(testOptions(dir), logr.Discard()).Emit(context.Background(), g, alloc)
	require.NoError(t, err)

	for _, f := range out.Files {
		data, err := os.ReadFile(filepath.Join(dir, f.Path))
		require.NoError(t, err)
		assert.Equal(t, f.Data, data)
	}

	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	var manifest Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, *out.Manifest, manifest)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "three chunks plus the manifest and no temporary files")
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp-")
	}
}

func TestEmitClean(t *testing.T) {
	g := sharedGraph()
	alloc := allocate(t, g, chunk.Options{})
	dir := t.TempDir()

	stale := filepath.Join(dir, "old", "a.deadbeef.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	opts := testOptions(dir)
	_, err := New(opts, logr.Discard()).Emit(context.Background(), g, alloc)
	require.NoError(t, err)
	assert.FileExists(t, stale)

	opts.Clean = true
	out, err := New(opts, logr.Discard()).Emit(context.Background(), g, alloc)
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(dir, "manifest.json"))
	assert.FileExists(t, filepath.Join(dir, out.File("commons").Path))
}

func TestEmitCancelled(t *testing.T) {
	g := sharedGraph()
	alloc := allocate(t, g, chunk.Options{})
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(testOptions(dir), logr.Discard()).Emit(ctx, g, alloc)
	require.ErrorIs(t, err, context.Canceled)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// cancelAfter reports cancellation once Err has been called n times.
type cancelAfter struct {
	context.Context
	calls, n int
}

func (c *cancelAfter) Err() error {
	c.calls++
	if c.calls > c.n {
		return context.Canceled
	}
	return nil
}

func TestEmitCompletesOnceStarted(t *testing.T) {
	g := sharedGraph()
	alloc := allocate(t, g, chunk.Options{})
	dir := t.TempDir()

	ctx := &cancelAfter{Context: context.Background(), n: 1}
	out, err := New(testOptions(dir), logr.Discard()).Emit(ctx, g, alloc)
	require.NoError(t, err)
	for _, f := range out.Files {
		assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(f.Path)))
	}
	assert.FileExists(t, filepath.Join(dir, "manifest.json"))
}
