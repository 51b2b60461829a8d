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

// Package kube manages the cluster-side resources that back a store:
// the namespace, its resource guardrails, and the ingress TLS secret.
//
// The package implements a Manager over a controller-runtime client
// that the orchestrator drives during provisioning and teardown:
//
//   - Namespace creation with identifying labels
//   - ResourceQuota and LimitRange guardrails for tenant isolation
//   - TLS secret creation for local HTTPS ingress
//   - Foreground cascading namespace deletion
//   - Read-only pod listing for the status API
//
// # Idempotency
//
// Every Ensure method uses create-or-update semantics, so a provision
// that is retried after a crash converges to the same cluster state
// instead of failing on conflicts. DeleteNamespace tolerates an absent
// namespace for the same reason: the recovery sweep may re-drive a
// teardown whose namespace already disappeared.
//
// # Isolation Guardrails
//
// Each store namespace gets a ResourceQuota (store-quota) capping pods,
// CPU, memory, PVC count, and storage, plus a LimitRange (store-limits)
// that injects request/limit defaults into chart containers that do not
// declare their own. Without the LimitRange, unannotated containers
// would be rejected by the quota rather than scheduled.
package kube
