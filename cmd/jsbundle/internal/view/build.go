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

package view

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"
)

type BuildView interface {
	Render(result BuildResult)
}

// BuildResult is the outcome of building one configuration file.
type BuildResult struct {
	Config   string
	Name     string
	Dir      string
	Hash     string
	Modules  int
	Files    []BuildFile
	Entries  map[string][]string
	Applied  int64
	Hits     int64
	Warnings []string
	Duration time.Duration
	DryRun   bool
	// Error is set when the build failed. Phase names the failed phase if
	// known.
	Error string
	Phase string
}

type BuildFile struct {
	Chunk   string `json:"chunk"`
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Modules int    `json:"modules"`
}

func (r BuildResult) Failed() bool {
	return r.Error != ""
}

// Human view implementation.

type buildHumanView struct {
	*HumanView
}

func newBuildHumanView(hv *HumanView) *buildHumanView {
	return &buildHumanView{HumanView: hv}
}

func (v *buildHumanView) Render(result BuildResult) {
	if result.Failed() {
		msg := result.Error
		if result.Phase != "" {
			msg = fmt.Sprintf("%s phase failed: %s", result.Phase, result.Error)
		}
		v.Println(color.RGB(229, 50, 50).Sprintf("Error!"), result.Config+":", msg)
		return
	}

	tbl := table.New("Chunk", "Kind", "File", "Size", "Modules").WithWriter(v.Writer)
	tbl.WithHeaderFormatter(color.New(color.FgBlue, color.Underline).SprintfFunc())
	tbl.WithFirstColumnFormatter(color.New(color.FgYellow).SprintfFunc())
	for _, f := range result.Files {
		tbl.AddRow(f.Chunk, f.Kind, f.Path, HumanSize(f.Size), f.Modules)
	}
	tbl.Print()
	v.Println()

	for _, name := range sortedKeys(result.Entries) {
		v.Printf("  %s: %v\n", name, result.Entries[name])
	}
	for _, w := range result.Warnings {
		v.Println(color.RGB(229, 192, 50).Sprintf("Warning!"), w)
	}

	verb := "Built!"
	if result.DryRun {
		verb = "Rendered!"
	}
	v.Printf("%s %d chunks from %d modules into %s in %s (hash %s)\n",
		color.RGB(50, 108, 229).Sprintf(verb), len(result.Files), result.Modules, result.Dir,
		result.Duration.Round(time.Millisecond), shortHash(result.Hash))
}

// JSON view implementation.

type buildJSONView struct {
	*JSONView
}

func newBuildJSONView(jv *JSONView) *buildJSONView {
	return &buildJSONView{JSONView: jv}
}

type buildJSONResult struct {
	Type       string              `json:"type"`
	Status     string              `json:"status"`
	Timestamp  time.Time           `json:"timestamp"`
	Config     string              `json:"config"`
	Name       string              `json:"name,omitempty"`
	Dir        string              `json:"dir,omitempty"`
	Hash       string              `json:"hash,omitempty"`
	Modules    int                 `json:"modules"`
	Files      []BuildFile         `json:"files,omitempty"`
	Entries    map[string][]string `json:"entries,omitempty"`
	Transforms int64               `json:"transforms"`
	CacheHits  int64               `json:"cacheHits"`
	Warnings   []string            `json:"warnings,omitempty"`
	DurationMS int64               `json:"durationMs"`
	DryRun     bool                `json:"dryRun,omitempty"`
	Phase      string              `json:"phase,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func (v *buildJSONView) Render(result BuildResult) {
	out := buildJSONResult{
		Type:       "build",
		Status:     "success",
		Timestamp:  time.Now(),
		Config:     result.Config,
		Name:       result.Name,
		Dir:        result.Dir,
		Hash:       result.Hash,
		Modules:    result.Modules,
		Files:      result.Files,
		Entries:    result.Entries,
		Transforms: result.Applied,
		CacheHits:  result.Hits,
		Warnings:   result.Warnings,
		DurationMS: result.Duration.Milliseconds(),
		DryRun:     result.DryRun,
		Phase:      result.Phase,
		Error:      result.Error,
	}
	if result.Failed() {
		out.Status = "error"
	}

	v.PrintJSON(out)
}

func NewBuildView(v Viewer) BuildView {
	switch vt := v.(type) {
	case *HumanView:
		return newBuildHumanView(vt)
	case *JSONView:
		return newBuildJSONView(vt)
	default:
		panic("unknown view type")
	}
}
