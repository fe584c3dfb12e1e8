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

package transform

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubernetes-sigs/jsbundle/pkg/graph"
)

func newGraph(sources map[string]string, order ...string) *graph.ModuleGraph {
	g := &graph.ModuleGraph{
		Root:    "/project",
		Modules: map[string]*graph.Module{},
		Entries: map[string][]string{"main": {"/project/" + order[0]}},
	}
	for i, id := range order {
		path := "/project/" + id
		g.Modules[path] = &graph.Module{Path: path, ID: id, Index: i, Source: []byte(sources[id])}
		g.Order = append(g.Order, path)
	}
	return g
}

func appendText(text string) Func {
	return func(_ string, src []byte) ([]byte, error) {
		return append(append([]byte(nil), src...), text...), nil
	}
}

func TestPipelineCompileOrder(t *testing.T) {
	p, err := NewPipeline(Options{})
	require.NoError(t, err)

	require.NoError(t, p.Register(Transform{Name: "a", Match: HasSuffix(".js"), Apply: appendText("+a")}))
	require.NoError(t, p.Register(Transform{Name: "skip", Match: HasSuffix(".css"), Apply: appendText("+skip")}))
	require.NoError(t, p.RegisterTransform(nil, appendText("+b")))
	assert.Equal(t, []string{"a", "skip", "transform-2"}, p.Names())

	out, err := p.Compile("src/x.js", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x+a+b", string(out))

	out, err = p.Compile("src/x.json", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x+b", string(out))
}

func TestPipelineRegisterValidation(t *testing.T) {
	p, err := NewPipeline(Options{})
	require.NoError(t, err)

	assert.Error(t, p.Register(Transform{Apply: appendText("")}))
	assert.Error(t, p.Register(Transform{Name: "nil"}))
}

func TestPipelineRun(t *testing.T) {
	p, err := NewPipeline(Options{Parallelism: 2, Log: logr.Discard()})
	require.NoError(t, err)
	require.NoError(t, p.Register(Transform{Name: "upper", Apply: func(_ string, src []byte) ([]byte, error) {
		return []byte(strings.ToUpper(string(src))), nil
	}}))

	g := newGraph(map[string]string{"a.js": "a", "b.js": "b", "c.js": "c"}, "a.js", "b.js", "c.js")
	stats, err := p.Run(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Modules)
	assert.Equal(t, int64(3), stats.Applied)
	assert.Equal(t, int64(0), stats.CacheHits)

	for _, path := range g.Order {
		m := g.Modules[path]
		assert.Equal(t, strings.ToUpper(string(m.Source)), string(m.Compiled))
	}

	// A rebuild of unchanged sources is served from the cache.
	g2 := newGraph(map[string]string{"a.js": "a", "b.js": "b", "c.js": "c"}, "a.js", "b.js", "c.js")
	stats, err = p.Run(context.Background(), g2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.CacheHits)
	assert.Equal(t, "A", string(g2.Modules["/project/a.js"].Compiled))
}

func TestPipelineRunFailureLeavesGraphUntouched(t *testing.T) {
	p, err := NewPipeline(Options{CacheSize: -1})
	require.NoError(t, err)
	boom := errors.New("boom")
	require.NoError(t, p.Register(Transform{Name: "fail-b", Apply: func(path string, src []byte) ([]byte, error) {
		if path == "b.js" {
			return nil, boom
		}
		return src, nil
	}}))

	g := newGraph(map[string]string{"a.js": "a", "b.js": "b"}, "a.js", "b.js")
	_, err = p.Run(context.Background(), g)
	require.Error(t, err)
	assert.True(t, IsTransformError(err))
	assert.ErrorIs(t, err, boom)

	var te *TransformError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "b.js", te.ModulePath)
	assert.Equal(t, "fail-b", te.Transform)

	for _, m := range g.Modules {
		assert.Nil(t, m.Compiled, "no module may be committed after a failure")
	}
}

func TestPipelineRunCancelled(t *testing.T) {
	p, err := NewPipeline(Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx, newGraph(map[string]string{"a.js": "a"}, "a.js"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredicates(t *testing.T) {
	js := HasSuffix(".js", ".MJS")
	assert.True(t, js("src/a.js"))
	assert.True(t, js("src/a.mjs"))
	assert.True(t, js("src/A.JS"))
	assert.False(t, js("src/a.json"))

	notLegacy := Exclude("legacy/", "")
	assert.True(t, notLegacy("src/a.js"))
	assert.False(t, notLegacy("src/legacy/a.js"))

	both := And(js, notLegacy, nil)
	assert.True(t, both("src/a.js"))
	assert.False(t, both("src/legacy/a.js"))
	assert.False(t, both("src/a.css"))

	when, err := When(`ext == ".js" && !path.startsWith("vendor/")`)
	require.NoError(t, err)
	assert.True(t, when("src/a.js"))
	assert.False(t, when("vendor/a.js"))
	assert.False(t, when("src/a.mjs"))

	_, err = When(`path`)
	assert.Error(t, err)
}
