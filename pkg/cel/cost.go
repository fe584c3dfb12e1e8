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

package cel

import (
	"errors"
	"strings"

	"github.com/google/cel-go/cel"
)

// ConditionCostLimit bounds the runtime cost of a single condition
// evaluation. Conditions only see module metadata, so any realistic one stays
// orders of magnitude below it.
const ConditionCostLimit = 100000

// ErrCostLimitExceeded is returned when an evaluation is aborted because it
// exceeded its cost limit.
var ErrCostLimitExceeded = errors.New("CEL cost limit exceeded")

// IsCostLimitExceeded reports whether err stems from an evaluation aborted
// by its cost limit.
func IsCostLimitExceeded(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCostLimitExceeded) || strings.Contains(err.Error(), "cost limit exceeded")
}

// WithCostLimit returns the program options enforcing limit.
func WithCostLimit(limit uint64) []cel.ProgramOption {
	return []cel.ProgramOption{
		cel.CostLimit(limit),
		cel.EvalOptions(cel.OptTrackCost),
	}
}
