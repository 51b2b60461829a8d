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

// Package tenant defines the tenant record model shared by the registry,
// the orchestrator, and the intake API.
package tenant

import (
	"fmt"
	"regexp"
	"slices"
	"time"
)

// State is the lifecycle state of a tenant record.
type State string

// Lifecycle states. Provisioning and Deleting are transient; Ready and
// Failed are settled until the caller acts again.
const (
	StateProvisioning State = "provisioning"
	StateReady        State = "ready"
	StateFailed       State = "failed"
	StateDeleting     State = "deleting"
)

// States lists every valid lifecycle state.
var States = []State{StateProvisioning, StateReady, StateFailed, StateDeleting}

// IsValid reports whether s is a known lifecycle state.
func (s State) IsValid() bool {
	return slices.Contains(States, s)
}

// Transient reports whether s describes an operation still in flight.
// Records stuck in a transient state are what the recovery sweep repairs.
func (s State) Transient() bool {
	return s == StateProvisioning || s == StateDeleting
}

// Kind selects which stack chart gets installed for a tenant.
type Kind string

// Supported stack kinds.
const (
	KindWooCommerce Kind = "woocommerce"
	KindMedusa      Kind = "medusa"
)

// Kinds lists every installable stack kind.
var Kinds = []Kind{KindWooCommerce, KindMedusa}

// ParseKind validates a user-supplied kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !slices.Contains(Kinds, k) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Record represents one provisioned (or in-flight) storefront stack.
// It is the single source of truth for the tenant's lifecycle: the
// orchestrator is the only writer of State, ErrorDetail, the access
// URLs, and Credentials after intake.
type Record struct {
	ID          string            `json:"id" db:"id"`
	Name        string            `json:"name" db:"name"`
	Kind        Kind              `json:"kind" db:"kind"`
	State       State             `json:"state" db:"state"`
	Namespace   string            `json:"namespace" db:"namespace"`
	StoreURL    string            `json:"storeUrl,omitempty" db:"store_url"`
	AdminURL    string            `json:"adminUrl,omitempty" db:"admin_url"`
	ErrorDetail string            `json:"errorDetail,omitempty" db:"error_detail"`
	Credentials map[string]string `json:"credentials,omitempty" db:"-"` // JSON column, mapped by the registry
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time         `json:"updatedAt" db:"updated_at"`
}

// CreateRequest is the intake payload for provisioning a new store.
type CreateRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

const (
	minNameLength = 2
	maxNameLength = 50
)

// namePattern is the DNS-label-safe shape required of store names. The
// derived namespace and hostname both embed the name verbatim, so the
// name must be usable as a label in either system.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)

// ValidateName checks a user-chosen store name.
func ValidateName(name string) error {
	if len(name) < minNameLength || len(name) > maxNameLength {
		return fmt.Errorf("%w: must be %d-%d characters", ErrInvalidName, minNameLength, maxNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: must be lowercase alphanumeric with interior hyphens", ErrInvalidName)
	}
	return nil
}

// NamespaceFor derives the cluster namespace for a store name. The
// mapping is a pure function so that retries and recovery always land
// on the same namespace.
func NamespaceFor(prefix, name string) string {
	return prefix + name
}
