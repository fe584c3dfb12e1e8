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
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"

	"github.com/kubernetes-sigs/jsbundle/pkg/graph"
)

var processEnvRegex = regexp.MustCompile(`(?:^|[^\w$.])(process\.env\.([A-Za-z_$][\w$]*))`)

// Define replaces process.env.NAME references with the JSON encoded value
// of NAME. References to unknown names become undefined unless safe is
// set, in which case they are left untouched. Occurrences inside strings
// and comments are never replaced.
func Define(values map[string]string, safe bool) Func {
	values = maps.Clone(values)
	return func(_ string, src []byte) ([]byte, error) {
		code := graph.StripLiterals(src)
		matches := processEnvRegex.FindAllSubmatchIndex(code, -1)
		if len(matches) == 0 {
			return src, nil
		}

		var buf bytes.Buffer
		buf.Grow(len(src))
		last := 0
		for _, loc := range matches {
			start, end := loc[2], loc[3]
			name := string(code[loc[4]:loc[5]])

			value, ok := values[name]
			var replacement []byte
			switch {
			case ok:
				encoded, err := json.Marshal(value)
				if err != nil {
					return nil, fmt.Errorf("encode %s: %w", name, err)
				}
				replacement = encoded
			case safe:
				continue
			default:
				replacement = []byte("undefined")
			}
			buf.Write(src[last:start])
			buf.Write(replacement)
			last = end
		}
		buf.Write(src[last:])
		return buf.Bytes(), nil
	}
}

// LoadEnv reads the dotenv files, relative to root, in order and merges
// vars over them. Missing files are skipped.
func LoadEnv(root string, files []string, vars map[string]string) (map[string]string, error) {
	var existing []string
	for _, f := range files {
		p := f
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		existing = append(existing, p)
	}

	values := map[string]string{}
	if len(existing) > 0 {
		read, err := godotenv.Read(existing...)
		if err != nil {
			return nil, fmt.Errorf("failed to read env files: %w", err)
		}
		values = read
	}
	maps.Copy(values, vars)
	return values, nil
}
