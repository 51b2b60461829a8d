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

// Package api exposes store intake and inspection over HTTP.
//
// Writes are asynchronous: create and delete validate, persist the
// state transition, schedule the lifecycle sequence and answer 202
// with the record. Clients poll the record until it settles. Reads
// serve straight from the registry, except the pod and usage routes
// which query the cluster live.
//
// Generated passwords never pass through this package; responses only
// carry the non-sensitive credential references the registry holds.
package api
