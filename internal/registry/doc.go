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

// Package registry persists tenant records in SQL and is the single
// source of truth for lifecycle state.
//
// Two drivers are supported through the same code path: sqlite3 for
// local development and tests, postgres for real deployments. The
// schema is managed by goose migrations embedded in the binary, so a
// fresh database is usable with no external tooling.
//
// Write discipline: every state transition is one atomic UPDATE that
// also refreshes updated_at and any fields tied to the new state.
// Transitions out of a transient state are guarded on the expected
// prior state; a writer that lost the race gets tenant.ErrSuperseded
// instead of silently clobbering a newer state. Deleted records are
// removed outright, which is what makes a deleted store's name
// available for reuse.
package registry
