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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanImports(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "default and named imports",
			src:  "import React from 'react';\nimport { render, hydrate } from \"react-dom\";\n",
			want: []string{"react", "react-dom"},
		},
		{
			name: "namespace and side effect imports",
			src:  "import * as utils from './utils'\nimport './polyfill.js'\n",
			want: []string{"./utils", "./polyfill.js"},
		},
		{
			name: "multi-line import clause",
			src:  "import {\n  a,\n  b,\n} from './ab';",
			want: []string{"./ab"},
		},
		{
			name: "re-exports",
			src:  "export * from './a';\nexport { b } from './b';\nexport const c = 1;",
			want: []string{"./a", "./b"},
		},
		{
			name: "require and dynamic import",
			src:  "const x = require('./x');\nconst lazy = () => import('./lazy');",
			want: []string{"./x", "./lazy"},
		},
		{
			name: "source order across forms",
			src:  "var b = require('./b');\nimport a from './a';",
			want: []string{"./b", "./a"},
		},
		{
			name: "duplicates listed once",
			src:  "import a from './a';\nconst again = require('./a');",
			want: []string{"./a"},
		},
		{
			name: "comments are ignored",
			src:  "// import a from './a';\n/* require('./b') */\nimport c from './c';",
			want: []string{"./c"},
		},
		{
			name: "comment markers inside strings",
			src:  "const url = 'http://example.com';\nimport d from './d';",
			want: []string{"./d"},
		},
		{
			name: "member require is not an import",
			src:  "module.require('./nope');\nfoo.import('./nope');",
			want: []string{},
		},
		{
			name: "dynamic specifiers are skipped",
			src:  "require(name);\nimport(`./pages/${page}`);",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScanImports([]byte(tt.src)))
		})
	}
}

func TestStripComments(t *testing.T) {
	src := "a // line\nb /* block\nstill */ c 'x // y' \"/* z */\""
	got := string(StripComments([]byte(src)))

	assert.Len(t, got, len(src))
	assert.NotContains(t, got, "line")
	assert.NotContains(t, got, "still")
	assert.Contains(t, got, "'x // y'")
	assert.Contains(t, got, `"/* z */"`)
	assert.Equal(t, 2, countNewlines(got))
}

func TestMissingProvides(t *testing.T) {
	provide := map[string]string{"React": "react", "$": "jquery"}

	tests := []struct {
		name string
		src  string
		want []string
	}{
		{name: "used without import", src: "const el = React.createElement('div');", want: []string{"React"}},
		{name: "imported", src: "import React from 'react';\nReact.render();"},
		{name: "imported with named", src: "import React, { useState } from 'react';\nReact.x;"},
		{name: "declared", src: "const React = window.React;\nReact.x;"},
		{name: "only in string", src: "console.log('React');"},
		{name: "only in comment", src: "// React\nfoo();"},
		{name: "property access", src: "foo.React = 1;"},
		{name: "longer identifier", src: "import ReactDOM from 'react-dom';\nReactDOM.render(React);", want: []string{"React"}},
		{name: "dollar identifier", src: "$('#app').hide();", want: []string{"$"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, missingProvides([]byte(tt.src), provide))
		})
	}
}

func countNewlines(s string) int {
	n := 0
	for _, c := range s {
		if c == '\n' {
			n++
		}
	}
	return n
}
