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

package version

import (
	"fmt"
	"io"
	"runtime"

	"sigs.k8s.io/release-utils/version"
)

// Version is overridden at link time; when unset the module build info is
// used.
var Version string

// String returns the version of the running binary.
func String() string {
	if Version != "" {
		return Version
	}
	return version.GetVersionInfo().GitVersion
}

func Fprint(w io.Writer) {
	fmt.Fprintf(w, "jsbundle version %s\n", String())
	fmt.Fprintf(w, "%s/%s\n", runtime.GOOS, runtime.GOARCH)
}
