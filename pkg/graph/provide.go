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
	"fmt"
	"regexp"
	"sort"
)

// missingProvides returns, sorted, the provided identifiers src uses
// without declaring or importing them.
func missingProvides(src []byte, provide map[string]string) []string {
	if len(provide) == 0 {
		return nil
	}
	code := StripLiterals(src)

	var missing []string
	for ident := range provide {
		q := regexp.QuoteMeta(ident)
		used := regexp.MustCompile(`(?:^|[^\w$.])` + q + `(?:[^\w$]|$)`)
		if !used.Match(code) {
			continue
		}
		declared := regexp.MustCompile(
			`(?:^|[^\w$.])(?:var|let|const|function|class)\s+` + q + `(?:[^\w$]|$)` +
				`|\bimport\b[^;'"]*?[^\w$.]` + q + `(?:[^\w$][^;'"]*?)?\s*from\s*["']`)
		if declared.Match(code) {
			continue
		}
		missing = append(missing, ident)
	}
	sort.Strings(missing)
	return missing
}

func provideStatement(ident, specifier string) string {
	return fmt.Sprintf("var %s = require(%q);\n", ident, specifier)
}
