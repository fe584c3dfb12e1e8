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
	"errors"
	"fmt"
)

// CyclicEntryError reports an entry module that imports itself, which
// leaves the entry without a base case to start from.
type CyclicEntryError struct {
	Entry  string
	Module string
}

func (e *CyclicEntryError) Error() string {
	return fmt.Sprintf("entry %q: module %s imports itself", e.Entry, e.Module)
}

// LoadError reports a module that could not be read.
type LoadError struct {
	Module string
	Err    error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Module, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// IsCyclicEntry reports whether err (or any error in its chain) is a
// CyclicEntryError.
func IsCyclicEntry(err error) bool {
	var ce *CyclicEntryError
	return errors.As(err, &ce)
}
