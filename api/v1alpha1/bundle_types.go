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

package v1alpha1

import (
	"encoding/json"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// GroupName is the API group of the bundle configuration.
	GroupName = "jsbundle.kro.run"
	// Version is the API version of the bundle configuration.
	Version = "v1alpha1"
	// KindBundle is the kind every configuration file must declare.
	KindBundle = "Bundle"
)

// APIVersion returns the apiVersion string expected in configuration files.
func APIVersion() string {
	return GroupName + "/" + Version
}

// Mode selects the defaults applied to a bundle.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
)

// HintLevel controls how performance budget violations are reported.
type HintLevel string

const (
	HintsOff     HintLevel = "off"
	HintsWarning HintLevel = "warning"
	HintsError   HintLevel = "error"
)

// Bundle is the declarative description of a single build.
type Bundle struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec BundleSpec `json:"spec"`
}

// BundleSpec defines what is built and how it is split and emitted.
type BundleSpec struct {
	// Mode is either "production" or "development". Production enables
	// minification and performance hints unless they are set explicitly.
	Mode Mode `json:"mode,omitempty"`

	// Root is the project root all relative paths are resolved against.
	// Relative roots are interpreted relative to the configuration file.
	Root string `json:"root,omitempty"`

	// Entries maps an entry name to the modules it starts from.
	Entries map[string]Entry `json:"entries"`

	// Output controls where and under which names chunks are written.
	Output Output `json:"output,omitempty"`

	// Resolve configures import specifier resolution.
	Resolve Resolve `json:"resolve,omitempty"`

	// Provide maps a free identifier to the module that should be
	// required when a module uses the identifier without importing it.
	// Example: {"React": "react"}
	Provide map[string]string `json:"provide,omitempty"`

	// Env configures replacement of process.env references.
	Env *Env `json:"env,omitempty"`

	// Optimization configures minification and chunk splitting.
	Optimization Optimization `json:"optimization,omitempty"`

	// Performance configures asset and entrypoint size hints.
	Performance Performance `json:"performance,omitempty"`

	// Transforms is the ordered list of source transforms. When empty the
	// built-in pipeline for the selected mode is used.
	Transforms []TransformRule `json:"transforms,omitempty"`

	// Parallelism bounds the number of modules loaded or transformed
	// concurrently. Zero means one worker per CPU.
	Parallelism int `json:"parallelism,omitempty"`

	// Timeout aborts the build at the next phase boundary once exceeded.
	Timeout *metav1.Duration `json:"timeout,omitempty"`
}

// Entry is a named starting point of the dependency graph.
//
// In configuration files an entry may be written as a single specifier,
// a list of specifiers, or an object with import and dependOn fields.
type Entry struct {
	// Import lists the specifiers of the entry's root modules.
	Import []string `json:"import"`

	// DependOn names entries whose modules are loaded before this one and
	// are therefore never duplicated into this entry's chunks.
	DependOn []string `json:"dependOn,omitempty"`
}

// UnmarshalJSON accepts the string, list and object forms of an entry.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		e.Import = []string{single}
		e.DependOn = nil
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		e.Import = list
		e.DependOn = nil
		return nil
	}

	var raw struct {
		Import   json.RawMessage `json:"import"`
		DependOn json.RawMessage `json:"dependOn"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("entry must be a string, a list of strings or an object: %w", err)
	}

	var out Entry
	if len(raw.Import) > 0 {
		if err := unmarshalStringOrList(raw.Import, &out.Import); err != nil {
			return fmt.Errorf("entry import: %w", err)
		}
	}
	if len(raw.DependOn) > 0 {
		if err := unmarshalStringOrList(raw.DependOn, &out.DependOn); err != nil {
			return fmt.Errorf("entry dependOn: %w", err)
		}
	}
	*e = out
	return nil
}

func unmarshalStringOrList(data []byte, out *[]string) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*out = []string{single}
		return nil
	}
	return json.Unmarshal(data, out)
}

// Output controls emitted file names and locations.
type Output struct {
	// Path is the output directory, relative to the root.
	Path string `json:"path,omitempty"`

	// Filename is the template used for entry chunks. Supported tokens are
	// [name], [hash] or its alias [contenthash] for the hash of the file,
	// [fullhash] for the build hash, and length-limited forms such as
	// [hash:8].
	Filename string `json:"filename,omitempty"`

	// ChunkFilename is the template used for every non-entry chunk.
	ChunkFilename string `json:"chunkFilename,omitempty"`

	// Manifest is the file name of the manifest written to Path.
	Manifest string `json:"manifest,omitempty"`

	// HashLength is the default number of hex digits substituted for
	// hash tokens.
	HashLength int `json:"hashLength,omitempty"`

	// Clean removes files from Path that the build did not emit, once the
	// new manifest has been written.
	Clean bool `json:"clean,omitempty"`
}

// Resolve configures how import specifiers map to files.
type Resolve struct {
	// Extensions are appended in order when a specifier names no file.
	Extensions []string `json:"extensions,omitempty"`

	// Alias maps a specifier prefix to a path relative to the root.
	Alias map[string]string `json:"alias,omitempty"`

	// Modules lists directory names searched for bare specifiers.
	Modules []string `json:"modules,omitempty"`
}

// Env configures the define transform.
type Env struct {
	// Files are dotenv files, relative to the root, loaded in order. Later
	// files override earlier ones and missing files are skipped.
	Files []string `json:"files,omitempty"`

	// Vars are inline definitions that take precedence over Files.
	Vars map[string]string `json:"vars,omitempty"`

	// Safe keeps unknown process.env references untouched instead of
	// replacing them with undefined.
	Safe bool `json:"safe,omitempty"`
}

// Optimization configures minification and chunk splitting.
type Optimization struct {
	// Minimize enables the minify transform. Defaults to true in
	// production mode.
	Minimize *bool `json:"minimize,omitempty"`

	// DropConsole removes single-line console.* statements while minifying.
	DropConsole bool `json:"dropConsole,omitempty"`

	// NodeEnv is substituted for process.env.NODE_ENV. Defaults to the mode.
	NodeEnv string `json:"nodeEnv,omitempty"`

	// SplitChunks configures chunk allocation.
	SplitChunks SplitChunks `json:"splitChunks,omitempty"`

	// Strict turns size budget warnings into build failures.
	Strict bool `json:"strict,omitempty"`
}

// SplitChunks configures how modules are partitioned into chunks.
type SplitChunks struct {
	// MinChunks is the number of distinct entries that must reach a module
	// before it moves to the commons chunk. Must be at least 2.
	MinChunks int `json:"minChunks,omitempty"`

	// MaxInitialSize is the size in bytes above which a chunk is split.
	// Zero disables splitting.
	MaxInitialSize int64 `json:"maxInitialSize,omitempty"`

	// CommonsName is the name of the commons chunk.
	CommonsName string `json:"commonsName,omitempty"`

	// Vendor configures the vendor group. Nil selects the default
	// node_modules group; set Disabled to turn vendor splitting off.
	Vendor *VendorGroup `json:"vendor,omitempty"`
}

// VendorGroup isolates third-party modules into their own chunks.
type VendorGroup struct {
	// Test is the path segment every vendor module path contains.
	Test string `json:"test,omitempty"`

	// Name is the name of the shared vendor chunk.
	Name string `json:"name,omitempty"`

	// Always moves every vendor module into the vendor chunk, not only
	// the shared ones.
	Always bool `json:"always,omitempty"`

	// Disabled turns vendor grouping off entirely.
	Disabled bool `json:"disabled,omitempty"`
}

// Performance configures size hints reported after allocation.
type Performance struct {
	// Hints is one of off, warning or error. Defaults to warning in
	// production and off in development.
	Hints HintLevel `json:"hints,omitempty"`

	// MaxAssetSize is the largest acceptable emitted file, in bytes.
	MaxAssetSize int64 `json:"maxAssetSize,omitempty"`

	// MaxEntrypointSize is the largest acceptable sum of all files an
	// entry loads, in bytes.
	MaxEntrypointSize int64 `json:"maxEntrypointSize,omitempty"`
}

// TransformRule binds a built-in transform to the modules it applies to.
type TransformRule struct {
	// Name selects the transform: json, lower-esm, define or minify.
	Name string `json:"name"`

	// Extensions restricts the rule to paths with one of these suffixes.
	// Empty means the transform's default extensions.
	Extensions []string `json:"extensions,omitempty"`

	// Exclude skips root-relative paths containing any of these strings.
	Exclude []string `json:"exclude,omitempty"`

	// When is an optional CEL expression over `path` and `ext` that must
	// evaluate to true for the rule to apply.
	// Example: !path.startsWith("src/legacy/")
	When string `json:"when,omitempty"`
}
