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

package bundler

import (
	"errors"
	"fmt"
)

// Phase names a stage of a build.
type Phase string

const (
	PhaseGraph     Phase = "graph"
	PhaseTransform Phase = "transform"
	PhaseAllocate  Phase = "allocate"
	PhaseEmit      Phase = "emit"
)

// ErrTimeout is reported when the build timeout expires. The timeout is
// checked between phases.
var ErrTimeout = errors.New("build timeout exceeded")

// PhaseError wraps the error that stopped a build with the phase it
// occurred in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string { return fmt.Sprintf("%s: %v", e.Phase, e.Err) }
func (e *PhaseError) Unwrap() error { return e.Err }

// FailedPhase returns the phase err occurred in, if err wraps a PhaseError.
func FailedPhase(err error) (Phase, bool) {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase, true
	}
	return "", false
}

// PerformanceBudgetExceeded reports an emitted file, or the files of an
// entry together, above the configured performance limit.
type PerformanceBudgetExceeded struct {
	// Name is the file path, or the entry name when Entrypoint is set.
	Name       string
	Entrypoint bool
	Size       int64
	Limit      int64
}

func (e *PerformanceBudgetExceeded) Error() string {
	what := "asset"
	if e.Entrypoint {
		what = "entrypoint"
	}
	return fmt.Sprintf("%s %s is %d bytes, above the recommended limit of %d bytes", what, e.Name, e.Size, e.Limit)
}

// IsPerformanceBudgetExceeded reports whether err (or any error in its
// chain) is a PerformanceBudgetExceeded.
func IsPerformanceBudgetExceeded(err error) bool {
	var pe *PerformanceBudgetExceeded
	return errors.As(err, &pe)
}
