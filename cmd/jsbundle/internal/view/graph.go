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
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"
)

type GraphView interface {
	Render(result GraphResult)
}

// GraphResult describes the module graph of one configuration and the
// chunk each module was allocated to.
type GraphResult struct {
	Config string
	// TotalSize is the summed size of every module.
	TotalSize int64
	Modules   []GraphModule
	Edges     []GraphEdge
	Chunks    []GraphChunk
}

type GraphModule struct {
	ID      string   `json:"id"`
	Chunk   string   `json:"chunk"`
	Size    int64    `json:"size"`
	Imports []string `json:"imports,omitempty"`
}

type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type GraphChunk struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Size    int64    `json:"size"`
	Entries []string `json:"entries"`
}

type graphHumanView struct {
	*HumanView
}

func (v *graphHumanView) Render(result GraphResult) {
	header := color.New(color.FgBlue, color.Underline).SprintfFunc()
	first := color.New(color.FgYellow).SprintfFunc()

	chunks := table.New("Chunk", "Kind", "Size", "Entries").WithWriter(v.Writer)
	chunks.WithHeaderFormatter(header).WithFirstColumnFormatter(first)
	for _, c := range result.Chunks {
		chunks.AddRow(c.Name, c.Kind, HumanSize(c.Size), c.Entries)
	}
	chunks.Print()
	v.Println()

	modules := table.New("Module", "Chunk", "Size", "Imports").WithWriter(v.Writer)
	modules.WithHeaderFormatter(header).WithFirstColumnFormatter(first)
	for _, m := range result.Modules {
		modules.AddRow(m.ID, m.Chunk, HumanSize(m.Size), len(m.Imports))
	}
	modules.Print()
	v.Println()
	v.Printf("%d modules in %d chunks, %s in total\n", len(result.Modules), len(result.Chunks), HumanSize(result.TotalSize))
}

type graphJSONView struct {
	*JSONView
}

type graphJSONResult struct {
	Type      string        `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Config    string        `json:"config"`
	TotalSize int64         `json:"totalSize"`
	Modules   []GraphModule `json:"modules"`
	Edges     []GraphEdge   `json:"edges"`
	Chunks    []GraphChunk  `json:"chunks"`
}

func (v *graphJSONView) Render(result GraphResult) {
	out := graphJSONResult{
		Type:      "graph",
		Timestamp: time.Now(),
		Config:    result.Config,
		TotalSize: result.TotalSize,
		Modules:   result.Modules,
		Edges:     result.Edges,
		Chunks:    result.Chunks,
	}
	v.PrintJSON(out)
}

func NewGraphView(v Viewer) GraphView {
	switch vt := v.(type) {
	case *HumanView:
		return &graphHumanView{HumanView: vt}
	case *JSONView:
		return &graphJSONView{JSONView: vt}
	default:
		panic("unknown view type")
	}
}
