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

// Package graph discovers the modules reachable from a set of entries.
//
// A Builder runs a level-synchronous traversal:
//
//	Resolve entries -> Load level -> Resolve imports -> Next level
//
// Each step works on a well defined set of modules:
//
//   - Resolve entries:
//     Every entry specifier is resolved against the project root. Entries are
//     visited in name order, so discovery order does not depend on map
//     iteration.
//
//   - Load level:
//     The modules of the current level are read, scanned for import
//     specifiers and injected with provided identifiers in parallel on the
//     walker pool. Vendor modules never receive provided identifiers.
//
//   - Resolve imports:
//     Every specifier of a loaded module is resolved and the targets not yet
//     seen form the next level, in the importer's discovery order.
//
// The result is a ModuleGraph keyed by canonical path. Import cycles between
// modules are allowed; an entry root importing itself is a CyclicEntryError.
// Any resolution or read failure aborts the traversal.
package graph
