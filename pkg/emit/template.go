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
	"regexp"
	"strconv"
)

var placeholderRegex = regexp.MustCompile(`\[(name|hash|contenthash|fullhash)(?::(\d+))?\]`)

// expandTemplate substitutes the placeholders of a filename template.
// [hash] and [contenthash] are the hash of the file itself and [fullhash]
// the build hash; all are cut to hashLength hex digits unless a length is
// given.
func expandTemplate(tmpl, name, buildHash, contentHash string, hashLength int) string {
	return placeholderRegex.ReplaceAllStringFunc(tmpl, func(token string) string {
		groups := placeholderRegex.FindStringSubmatch(token)
		length := hashLength
		if groups[2] != "" {
			if n, err := strconv.Atoi(groups[2]); err == nil {
				length = n
			}
		}
		switch groups[1] {
		case "name":
			return name
		case "fullhash":
			return truncate(buildHash, length)
		default:
			return truncate(contentHash, length)
		}
	})
}

func truncate(hash string, n int) string {
	if n <= 0 || n >= len(hash) {
		return hash
	}
	return hash[:n]
}
