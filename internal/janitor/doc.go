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

// Package janitor recovers stores orphaned by a crashed daemon.
//
// A record stuck in provisioning has lost its worker for good, so the
// sweep parks it in failed and the owner decides what happens next. A
// record stuck in deleting is safe to finish because every teardown
// step tolerates already-deleted resources; the sweep simply schedules
// the teardown again. The grace period keeps the sweep's hands off
// operations that are merely slow.
package janitor
