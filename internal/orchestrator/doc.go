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

// Package orchestrator runs the store lifecycle sequences.
//
// Provisioning walks namespace, quota, limit range, TLS secret, chart
// install, DNS and the ready mark in order; teardown walks uninstall,
// namespace delete, DNS and record removal. Both run as background
// tasks scheduled by the API layer, so intake stays fast and a slow
// helm install never holds an HTTP connection open.
//
// # Concurrency
//
// Each store has a lock entry that a sequence must acquire before it
// touches the cluster. A second sequence scheduled while one is in
// flight is dropped and logged, never queued; the caller learns the
// outcome from the store state, not from the scheduling call. Lock
// entries are created on first use and kept for the life of the
// process.
//
// # Failure Handling
//
// A failed step aborts the sequence and parks the store in the failed
// state with a human-readable detail. Nothing is rolled back and
// nothing is retried on its own; the failed namespace is left in
// place for inspection and a delete request is the supported cleanup
// path. Chart install timeouts are classified separately from other
// failures so capacity problems are distinguishable from bad charts.
//
// # Best-Effort Steps
//
// DNS registration, the TLS secret copy and mail notifications only
// ever log on failure. A store that serves traffic without a DNS
// record or a certificate is degraded, not broken.
package orchestrator
