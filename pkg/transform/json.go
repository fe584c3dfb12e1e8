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
	"errors"
)

// JSON wraps a JSON document as a module exporting the decoded value.
func JSON() Func {
	return func(_ string, src []byte) ([]byte, error) {
		trimmed := bytes.TrimSpace(src)
		if !json.Valid(trimmed) {
			return nil, errors.New("invalid JSON")
		}
		var buf bytes.Buffer
		buf.Grow(len(trimmed) + 20)
		buf.WriteString("module.exports = ")
		buf.Write(trimmed)
		buf.WriteString(";\n")
		return buf.Bytes(), nil
	}
}
