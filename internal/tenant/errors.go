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

package tenant

import "errors"

// Sentinel errors shared across the registry, orchestrator, and API.
var (
	ErrNotFound        = errors.New("store not found")
	ErrAlreadyExists   = errors.New("store name already in use")
	ErrInvalidName     = errors.New("invalid store name")
	ErrInvalidKind     = errors.New("invalid store kind")
	ErrAlreadyDeleting = errors.New("store deletion already in progress")
	ErrCapacity        = errors.New("store capacity reached")

	// ErrSuperseded means a guarded state update found the record in a
	// different state than expected; the late writer must stand down.
	ErrSuperseded = errors.New("record state superseded")
)
