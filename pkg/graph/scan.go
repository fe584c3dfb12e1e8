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
	"regexp"
	"slices"
)

// StripComments returns src with every comment replaced by spaces. String
// and template literals are copied untouched and newlines are preserved, so
// offsets and line numbers in the result match the input.
func StripComments(src []byte) []byte {
	return strip(src, false)
}

// StripLiterals is StripComments that also blanks the contents of string
// and template literals, keeping their quotes.
func StripLiterals(src []byte) []byte {
	return strip(src, true)
}

func strip(src []byte, literals bool) []byte {
	out := make([]byte, len(src))
	copy(out, src)

	const (
		code = iota
		lineComment
		blockComment
		quoted
	)
	state := code
	var quote byte

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch state {
		case code:
			switch {
			case c == '/' && i+1 < len(src) && src[i+1] == '/':
				state = lineComment
				out[i], out[i+1] = ' ', ' '
				i++
			case c == '/' && i+1 < len(src) && src[i+1] == '*':
				state = blockComment
				out[i], out[i+1] = ' ', ' '
				i++
			case c == '\'' || c == '"' || c == '`':
				state = quoted
				quote = c
			}
		case lineComment:
			if c == '\n' {
				state = code
				continue
			}
			out[i] = ' '
		case blockComment:
			if c == '*' && i+1 < len(src) && src[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				state = code
				continue
			}
			if c != '\n' {
				out[i] = ' '
			}
		case quoted:
			switch {
			case c == '\\':
				if literals {
					out[i] = ' '
					if i+1 < len(src) && src[i+1] != '\n' {
						out[i+1] = ' '
					}
				}
				i++
			case c == quote:
				state = code
			case c == '\n' && quote != '`':
				// Unterminated literal; recover at the line end.
				state = code
			default:
				if literals && c != '\n' {
					out[i] = ' '
				}
			}
		}
	}
	return out
}

// ImportClausePattern matches the bindings of an import declaration:
// `x`, `* as ns`, `{ a, b as c }`, or a default binding followed by one of
// the latter two.
const ImportClausePattern = `(?:[\w$]+(?:\s*,\s*(?:\*\s*as\s+[\w$]+|\{[^}]*\}))?|\*\s*as\s+[\w$]+|\{[^}]*\})`

// ExportClausePattern matches the bindings of a re-export: `*`,
// `* as ns` or `{ a, b as c }`.
const ExportClausePattern = `(?:\*(?:\s*as\s+[\w$]+)?|\{[^}]*\})`

var importPatterns = []*regexp.Regexp{
	// import x from "y", import {a, b} from "y", import * as x from "y"
	regexp.MustCompile(`(?m)(?:^|[;\s}])import\s*(?:type\s+)?` + ImportClausePattern + `\s*from\s*["']([^"'\n]+)["']`),
	// import "y"
	regexp.MustCompile(`(?m)(?:^|[;\s}])import\s*["']([^"'\n]+)["']`),
	// export {a} from "y", export * from "y", export * as ns from "y"
	regexp.MustCompile(`(?m)(?:^|[;\s}])export\s*(?:type\s+)?` + ExportClausePattern + `\s*from\s*["']([^"'\n]+)["']`),
	// require("y")
	regexp.MustCompile(`(?:^|[^\w$.])require\s*\(\s*["']([^"'\n]+)["']\s*\)`),
	// import("y")
	regexp.MustCompile(`(?:^|[^\w$.])import\s*\(\s*["']([^"'\n]+)["']\s*\)`),
}

// ScanImports returns the import specifiers of a JavaScript module in source
// order, each listed once. Static imports, re-exports, require calls and
// dynamic imports with a literal specifier are recognised; comments are
// ignored.
func ScanImports(src []byte) []string {
	stripped := StripComments(src)

	type match struct {
		pos       int
		specifier string
	}
	var matches []match
	for _, re := range importPatterns {
		for _, loc := range re.FindAllSubmatchIndex(stripped, -1) {
			matches = append(matches, match{pos: loc[2], specifier: string(stripped[loc[2]:loc[3]])})
		}
	}
	slices.SortStableFunc(matches, func(a, b match) int { return a.pos - b.pos })

	seen := make(map[string]bool, len(matches))
	specifiers := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m.specifier] {
			continue
		}
		seen[m.specifier] = true
		specifiers = append(specifiers, m.specifier)
	}
	return specifiers
}
