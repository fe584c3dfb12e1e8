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

package view_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubernetes-sigs/jsbundle/cmd/jsbundle/internal/view"
)

func noColor(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = old })
}

func sampleBuild() view.BuildResult {
	return view.BuildResult{
		Config:  "bundle.yaml",
		Name:    "site",
		Dir:     "/srv/site/dist",
		Hash:    "0123456789abcdef0123",
		Modules: 3,
		Files: []view.BuildFile{
			{Chunk: "commons", Kind: "commons", Path: "commons.1a2b.js", Size: 2048, Modules: 1},
			{Chunk: "a", Kind: "entry", Path: "a.3c4d.js", Size: 512, Modules: 1},
		},
		Entries:  map[string][]string{"a": {"commons.1a2b.js", "a.3c4d.js"}},
		Applied:  9,
		Hits:     3,
		Warnings: []string{"asset a.3c4d.js is 512 bytes, above the recommended limit of 100 bytes"},
		Duration: 42 * time.Millisecond,
	}
}

func TestBuildHumanView(t *testing.T) {
	noColor(t)
	buf := &bytes.Buffer{}
	v := view.NewBuildView(view.NewHumanView(view.NewStream(buf), view.LogLevelSilent))

	v.Render(sampleBuild())

	out := buf.String()
	assert.Contains(t, out, "Chunk")
	assert.Contains(t, out, "commons.1a2b.js")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "a: [commons.1a2b.js a.3c4d.js]")
	assert.Contains(t, out, "Warning! asset a.3c4d.js")
	assert.Contains(t, out, "Built! 2 chunks from 3 modules into /srv/site/dist in 42ms (hash 0123456789ab)")
}

func TestBuildHumanViewDryRun(t *testing.T) {
	noColor(t)
	buf := &bytes.Buffer{}
	v := view.NewBuildView(view.NewHumanView(view.NewStream(buf), view.LogLevelSilent))

	r := sampleBuild()
	r.DryRun = true
	v.Render(r)

	assert.Contains(t, buf.String(), "Rendered! 2 chunks")
}

func TestBuildHumanViewError(t *testing.T) {
	noColor(t)
	buf := &bytes.Buffer{}
	v := view.NewBuildView(view.NewHumanView(view.NewStream(buf), view.LogLevelSilent))

	v.Render(view.BuildResult{Config: "bundle.yaml", Phase: "graph", Error: `cannot resolve "./missing"`})

	assert.Equal(t, "Error! bundle.yaml: graph phase failed: cannot resolve \"./missing\"\n", buf.String())
}

func TestBuildJSONView(t *testing.T) {
	buf := &bytes.Buffer{}
	v := view.NewBuildView(view.NewJSONView(view.NewStream(buf), view.LogLevelSilent))

	v.Render(sampleBuild())

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "build", out["type"])
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, float64(42), out["durationMs"])
	assert.Equal(t, float64(3), out["cacheHits"])
	assert.Len(t, out["files"], 2)
	assert.Len(t, out["warnings"], 1)
}

func TestBuildJSONViewError(t *testing.T) {
	buf := &bytes.Buffer{}
	v := view.NewBuildView(view.NewJSONView(view.NewStream(buf), view.LogLevelSilent))

	v.Render(view.BuildResult{Config: "bundle.yaml", Phase: "transform", Error: "boom"})

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "transform", out["phase"])
	assert.Equal(t, "boom", out["error"])
	assert.NotContains(t, out, "files")
}

func TestGraphViews(t *testing.T) {
	noColor(t)
	result := view.GraphResult{
		Config:    "bundle.yaml",
		TotalSize: 30,
		Modules: []view.GraphModule{
			{ID: "src/a.js", Chunk: "a", Size: 10, Imports: []string{"./shared"}},
			{ID: "src/shared.js", Chunk: "commons", Size: 20},
		},
		Edges:  []view.GraphEdge{{From: "src/a.js", To: "src/shared.js"}},
		Chunks: []view.GraphChunk{{Name: "commons", Kind: "commons", Size: 20, Entries: []string{"a", "b"}}},
	}

	buf := &bytes.Buffer{}
	view.NewGraphView(view.NewHumanView(view.NewStream(buf), view.LogLevelSilent)).Render(result)
	assert.Contains(t, buf.String(), "src/shared.js")
	assert.Contains(t, buf.String(), "[a b]")
	assert.Contains(t, buf.String(), "2 modules in 1 chunks, 30 B in total")

	buf.Reset()
	view.NewGraphView(view.NewJSONView(view.NewStream(buf), view.LogLevelSilent)).Render(result)
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "graph", out["type"])
	assert.Len(t, out["edges"], 1)
}

func TestPublishViews(t *testing.T) {
	noColor(t)
	result := view.PublishResult{
		Config:   "bundle.yaml",
		Bucket:   "assets",
		Keys:     []string{"site/a.js", "site/manifest.json"},
		Duration: time.Second,
	}

	buf := &bytes.Buffer{}
	view.NewPublishView(view.NewHumanView(view.NewStream(buf), view.LogLevelSilent)).Render(result)
	assert.Contains(t, buf.String(), "s3://assets/site/manifest.json")
	assert.Contains(t, buf.String(), "Published! 2 objects to assets in 1s")

	buf.Reset()
	view.NewPublishView(view.NewJSONView(view.NewStream(buf), view.LogLevelSilent)).Render(result)
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "assets", out["bucket"])
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", view.HumanSize(512))
	assert.Equal(t, "1.0 KiB", view.HumanSize(1024))
	assert.Equal(t, "100.0 KiB", view.HumanSize(100*1024))
	assert.Equal(t, "1.5 MiB", view.HumanSize(3*1024*1024/2))
}
