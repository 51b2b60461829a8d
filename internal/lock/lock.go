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

// Package lock provides per-store mutual exclusion for lifecycle
// operations.
//
// The table is process-local and strict: a second operation arriving
// while one is in flight is rejected immediately, never queued. Locks
// do not survive a restart; the recovery sweep repairs whatever the
// crash left behind.
package lock

import (
	"errors"
	"fmt"
	"sync"
)

// ErrHeld indicates a store already has a lifecycle operation in
// flight. Callers drop their operation and log it.
var ErrHeld = errors.New("store operation already in flight")

// HeldError reports which operation is holding a store's lock.
type HeldError struct {
	StoreID   string
	Operation string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("%s: store=%q operation=%q", ErrHeld, e.StoreID, e.Operation)
}

func (e *HeldError) Unwrap() error {
	return ErrHeld
}

type entry struct {
	held      bool
	operation string
}

// Table tracks one lock per store identifier. Entries are created on
// first use and never evicted, so every operation on a given store
// contends on the same entry for the life of the process. The table is
// bounded in practice by the platform's store cap.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewTable creates an empty lock table.
func NewTable() *Table {
	return &Table{
		entries: make(map[string]*entry),
	}
}

// TryAcquire claims the store's lock for the named operation without
// blocking. If another operation holds it, a *HeldError identifying
// that operation is returned.
func (t *Table) TryAcquire(storeID, operation string) (*Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[storeID]
	if !ok {
		e = &entry{}
		t.entries[storeID] = e
	}

	if e.held {
		return nil, &HeldError{StoreID: storeID, Operation: e.operation}
	}

	e.held = true
	e.operation = operation
	return &Handle{table: t, storeID: storeID}, nil
}

// Len reports how many stores have ever been locked. Exposed as a
// gauge so the no-eviction policy stays observable.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Handle represents a held lock. Release is safe to call more than
// once; only the first call frees the lock.
type Handle struct {
	once    sync.Once
	table   *Table
	storeID string
}

// Release frees the store's lock. The table entry itself remains.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.table.mu.Lock()
		defer h.table.mu.Unlock()

		e := h.table.entries[h.storeID]
		e.held = false
		e.operation = ""
	})
}
