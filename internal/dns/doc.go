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

// Package dns registers store hostnames with a local DNS service.
//
// Each store is reachable at {name}.{base domain}. In clusters where
// the base domain is a wildcard record nothing needs registering and
// the no-op registrar is used. In local setups a small DNS sidecar
// (dnsmasq with a REST shim, or similar) owns the records, and the
// HTTP registrar maintains them with retry on transient failures.
//
// Registrar calls are best-effort by contract: callers log failures
// and carry on, because a missing DNS record is recoverable by hand
// while a half-provisioned store is not.
package dns
