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
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kubernetes-sigs/jsbundle/pkg/chunk"
	"github.com/kubernetes-sigs/jsbundle/pkg/graph"
)

// RuntimeGlobal is the global registry every chunk defines its modules in.
const RuntimeGlobal = "__jsbundle__"

// prelude installs the module registry once per page. Modules are
// registered with define and instantiated on first require; each factory
// gets a require bound to its own dependency map.
const prelude = `(function (g) {
  if (g.__jsbundle__) return;
  var modules = {};
  var cache = {};
  function load(id) {
    if (cache[id]) return cache[id].exports;
    var def = modules[id];
    if (!def) throw new Error("jsbundle: module " + id + " is not loaded");
    var module = { id: id, exports: {} };
    cache[id] = module;
    def.factory.call(module.exports, module, module.exports, bind(def.deps));
    return module.exports;
  }
  function bind(deps) {
    function require(spec) {
      if (!Object.prototype.hasOwnProperty.call(deps, spec)) {
        throw new Error("jsbundle: cannot find module " + spec);
      }
      return load(deps[spec]);
    }
    require.dynamic = function (spec) {
      return new Promise(function (resolve) { resolve(require(spec)); });
    };
    return require;
  }
  g.__jsbundle__ = {
    define: function (id, deps, factory) {
      if (!modules[id]) modules[id] = { deps: deps, factory: factory };
    },
    require: load
  };
})(typeof self !== "undefined" ? self : typeof globalThis !== "undefined" ? globalThis : this);
`

// orderModules returns the modules of c with dependencies first. Ties
// follow discovery order and import cycles are broken at the back edge.
func orderModules(g *graph.ModuleGraph, c *chunk.Chunk) []string {
	inChunk := make(map[string]bool, len(c.Modules))
	for _, p := range c.Modules {
		inChunk[p] = true
	}

	visited := make(map[string]bool, len(c.Modules))
	order := make([]string, 0, len(c.Modules))
	var visit func(p string)
	visit = func(p string) {
		if visited[p] {
			return
		}
		visited[p] = true
		for _, dep := range g.Dependencies(p) {
			if inChunk[dep] {
				visit(dep)
			}
		}
		order = append(order, p)
	}
	for _, p := range c.Modules {
		visit(p)
	}
	return order
}

// renderChunk returns the file contents of c.
func renderChunk(g *graph.ModuleGraph, c *chunk.Chunk) ([]byte, []string, error) {
	var b bytes.Buffer
	b.WriteString(prelude)

	order := orderModules(g, c)
	ids := make([]string, 0, len(order))
	for _, p := range order {
		m := g.Modules[p]
		deps := make(map[string]string, len(m.Deps))
		for spec, dep := range m.Deps {
			deps[spec] = g.Modules[dep].ID
		}
		depsJSON, err := json.Marshal(deps)
		if err != nil {
			return nil, nil, fmt.Errorf("module %s: %w", m.ID, err)
		}
		idJSON, _ := json.Marshal(m.ID)

		fmt.Fprintf(&b, "%s.define(%s, %s, function (module, exports, require) {\n", RuntimeGlobal, idJSON, depsJSON)
		code := m.Code()
		b.Write(code)
		if len(code) > 0 && code[len(code)-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteString("});\n")
		ids = append(ids, m.ID)
	}

	if c.Kind == chunk.KindEntry {
		for _, root := range g.Entries[c.Name] {
			idJSON, _ := json.Marshal(g.Modules[root].ID)
			fmt.Fprintf(&b, "%s.require(%s);\n", RuntimeGlobal, idJSON)
		}
	}
	return b.Bytes(), ids, nil
}
