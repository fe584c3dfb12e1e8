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

var _ Viewer = (*HumanView)(nil)
var _ Viewer = (*JSONView)(nil)

// Viewer is implemented by every output format. Commands type-switch on
// the concrete view to pick their renderer.
type Viewer interface {
	Logger() Logger
}

func NewViewer(vt ViewType, s *Stream, level LogLevel) Viewer {
	switch vt {
	case ViewHuman:
		return NewHumanView(s, level)
	case ViewJSON:
		return NewJSONView(s, level)
	default:
		panic("unknown view type")
	}
}

// newLogger returns the logger of a view. Logs follow the output format so
// a JSON stream stays machine readable.
func newLogger(s *Stream, level LogLevel, vt ViewType) Logger {
	switch {
	case level == LogLevelSilent:
		return NewNopLogger()
	case vt == ViewJSON:
		return NewJSONLogger(s.Writer, level)
	default:
		return NewHumanLogger(s.Writer, level)
	}
}

type HumanView struct {
	*Stream
	logger Logger
}

func NewHumanView(s *Stream, level LogLevel) *HumanView {
	return &HumanView{Stream: s, logger: newLogger(s, level, ViewHuman)}
}

func (h *HumanView) Logger() Logger {
	return h.logger
}

type JSONView struct {
	*Stream
	logger Logger
}

func NewJSONView(s *Stream, level LogLevel) *JSONView {
	return &JSONView{Stream: s, logger: newLogger(s, level, ViewJSON)}
}

func (j *JSONView) Logger() Logger {
	return j.logger
}
