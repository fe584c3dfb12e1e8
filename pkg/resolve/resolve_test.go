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

package resolve

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubernetes-sigs/jsbundle/pkg/testutil/generator"
)

func newTestResolver(t *testing.T, files map[string]string, alias map[string]string) (*Resolver, string) {
	t.Helper()
	root := generator.WriteProject(t, files)
	r, err := New(Options{
		Root:       root,
		Extensions: []string{".js", ".json"},
		Alias:      alias,
	})
	require.NoError(t, err)
	return r, r.Root()
}

func TestResolve(t *testing.T) {
	files := map[string]string{
		"src/index.js":                        "",
		"src/util.js":                         "",
		"src/data.json":                       "{}",
		"src/lib/index.js":                    "",
		"src/components/Button.js":            "",
		"node_modules/react/package.json":     `{"main": "cjs/react.js"}`,
		"node_modules/react/cjs/react.js":     "",
		"node_modules/esm/package.json":       `{"main": "main.js", "module": "esm.js"}`,
		"node_modules/esm/main.js":            "",
		"node_modules/esm/esm.js":             "",
		"node_modules/plain/index.js":         "",
		"node_modules/scoped/pkg/sub/file.js": "",
		"src/node_modules/local/index.js":     "",
	}
	r, root := newTestResolver(t, files, map[string]string{
		"@":           "src",
		"@components": "src/components",
	})
	importer := filepath.Join(root, "src", "index.js")

	tests := []struct {
		name      string
		specifier string
		importer  string
		want      string
	}{
		{name: "relative with extension probing", specifier: "./util", importer: importer, want: "src/util.js"},
		{name: "relative exact", specifier: "./util.js", importer: importer, want: "src/util.js"},
		{name: "json extension", specifier: "./data", importer: importer, want: "src/data.json"},
		{name: "directory index", specifier: "./lib", importer: importer, want: "src/lib/index.js"},
		{name: "parent", specifier: "../util", importer: filepath.Join(root, "src", "lib", "index.js"), want: "src/util.js"},
		{name: "entry relative to root", specifier: "./src/index.js", want: "src/index.js"},
		{name: "root relative slash", specifier: "/src/util", importer: importer, want: "src/util.js"},
		{name: "package main", specifier: "react", importer: importer, want: "node_modules/react/cjs/react.js"},
		{name: "package module wins over main", specifier: "esm", importer: importer, want: "node_modules/esm/esm.js"},
		{name: "package index", specifier: "plain", importer: importer, want: "node_modules/plain/index.js"},
		{name: "package subpath", specifier: "scoped/pkg/sub/file", importer: importer, want: "node_modules/scoped/pkg/sub/file.js"},
		{name: "nearest node_modules", specifier: "local", importer: importer, want: "src/node_modules/local/index.js"},
		{name: "alias exact", specifier: "@", importer: importer, want: "src/index.js"},
		{name: "alias prefix", specifier: "@/util", importer: importer, want: "src/util.js"},
		{name: "longest alias wins", specifier: "@components/Button", importer: importer, want: "src/components/Button.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.specifier, tt.importer)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), got)
		})
	}
}

func TestResolveFailure(t *testing.T) {
	r, root := newTestResolver(t, map[string]string{"src/index.js": ""}, nil)
	importer := filepath.Join(root, "src", "index.js")

	for _, specifier := range []string{"./missing", "left-pad", "../../../../nowhere"} {
		t.Run(specifier, func(t *testing.T) {
			_, err := r.Resolve(specifier, importer)
			require.Error(t, err)

			var re *ResolutionError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, specifier, re.Specifier)
			assert.Equal(t, importer, re.Importer)
			assert.True(t, IsResolutionError(err))
		})
	}

	_, err := r.Resolve("./nope.js", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot resolve entry")
}

func TestResolveDoesNotEscapeToParentModules(t *testing.T) {
	outer := generator.WriteProject(t, map[string]string{
		"node_modules/outside/index.js": "",
		"project/src/index.js":          "",
	})
	r, err := New(Options{Root: filepath.Join(outer, "project"), Extensions: []string{".js"}})
	require.NoError(t, err)

	_, err = r.Resolve("outside", filepath.Join(r.Root(), "src", "index.js"))
	assert.True(t, IsResolutionError(err), "bare lookups stop at the project root")
}

func TestResolveConcurrent(t *testing.T) {
	r, root := newTestResolver(t, map[string]string{
		"src/index.js":              "",
		"node_modules/lib/index.js": "",
	}, nil)
	importer := filepath.Join(root, "src", "index.js")

	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Resolve("lib", importer)
			assert.NoError(t, err)
			results[i] = got
		}()
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, filepath.Join(root, "node_modules", "lib", "index.js"), got)
	}
}

func TestNew(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	root := generator.WriteProject(t, map[string]string{"file.js": ""})
	_, err = New(Options{Root: filepath.Join(root, "file.js")})
	assert.Error(t, err)

	_, err = New(Options{Root: filepath.Join(root, "missing")})
	assert.Error(t, err)
}
