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
)

type PublishView interface {
	Render(result PublishResult)
}

type PublishResult struct {
	Config   string
	Bucket   string
	Keys     []string
	Duration time.Duration
	Error    string
}

type publishHumanView struct {
	*HumanView
}

func (v *publishHumanView) Render(result PublishResult) {
	if result.Error != "" {
		v.Println(color.RGB(229, 50, 50).Sprintf("Error!"), result.Config+":", result.Error)
		return
	}
	for _, key := range result.Keys {
		v.Printf("  s3://%s/%s\n", result.Bucket, key)
	}
	v.Printf("%s %d objects to %s in %s\n", color.RGB(50, 108, 229).Sprintf("Published!"),
		len(result.Keys), result.Bucket, result.Duration.Round(time.Millisecond))
}

type publishJSONView struct {
	*JSONView
}

type publishJSONResult struct {
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Config     string    `json:"config"`
	Bucket     string    `json:"bucket"`
	Keys       []string  `json:"keys,omitempty"`
	DurationMS int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
}

func (v *publishJSONView) Render(result PublishResult) {
	out := publishJSONResult{
		Type:       "publish",
		Status:     "success",
		Timestamp:  time.Now(),
		Config:     result.Config,
		Bucket:     result.Bucket,
		Keys:       result.Keys,
		DurationMS: result.Duration.Milliseconds(),
		Error:      result.Error,
	}
	if result.Error != "" {
		out.Status = "error"
	}
	v.PrintJSON(out)
}

func NewPublishView(v Viewer) PublishView {
	switch vt := v.(type) {
	case *HumanView:
		return &publishHumanView{HumanView: vt}
	case *JSONView:
		return &publishJSONView{JSONView: vt}
	default:
		panic("unknown view type")
	}
}
