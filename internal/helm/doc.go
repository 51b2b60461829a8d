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

// Package helm wraps the helm CLI for installing and removing store
// charts.
//
// The client shells out to the configured helm binary rather than
// linking the helm SDK: charts live on disk next to the daemon, and
// the CLI's --wait behavior gives us readiness blocking for free.
// Commands run under the caller's context, so provisioning timeouts
// cancel the subprocess.
//
// # Error Classification
//
// Install failures split into two types. A *TimeoutError means the
// chart deployed but its workloads missed the readiness window; the
// release may still converge and the caller decides what to tell the
// user. Every other non-zero exit is an *ExecError carrying helm's
// stderr. Two helm messages are absorbed as success: installing over
// an existing release name, and uninstalling a release helm has no
// record of. Both arise when an operation is re-driven after a crash.
//
// # Secrets
//
// Chart values include generated passwords. The logged command line
// masks any --set pair whose key looks sensitive; helm's own output
// never echoes values.
package helm
