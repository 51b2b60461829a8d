// Copyright 2025 The Storeforge Authors
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

package helm

import (
	"errors"
	"fmt"
	"time"
)

// ErrReleaseNotFound indicates a status or uninstall target that helm
// has no record of.
var ErrReleaseNotFound = errors.New("release not found")

// ExecError is a helm invocation that exited non-zero for a reason
// other than a readiness timeout. Stderr carries helm's own message;
// chart values never appear in it.
type ExecError struct {
	Op      string
	Release string
	Stderr  string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("helm %s %s failed: %s", e.Op, e.Release, e.Stderr)
}

// TimeoutError is an install whose workloads did not become ready
// within the configured window. Callers treat it differently from
// other failures: the release may still converge on its own, so the
// error detail names the timeout rather than a chart fault.
type TimeoutError struct {
	Release string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("helm install %s timed out after %s", e.Release, e.Timeout)
}

// Release is one entry of a helm list.
type Release struct {
	Name       string `json:"name"`
	Namespace  string `json:"namespace"`
	Revision   string `json:"revision"`
	Updated    string `json:"updated"`
	Status     string `json:"status"`
	Chart      string `json:"chart"`
	AppVersion string `json:"app_version"`
}

// ReleaseStatus is the parsed output of helm status.
type ReleaseStatus struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Version   int    `json:"version"`
	Info      struct {
		Status       string `json:"status"`
		Description  string `json:"description"`
		LastDeployed string `json:"last_deployed"`
	} `json:"info"`
}
