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

package dns

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func fastRetries(r *HTTPRegistrar) *HTTPRegistrar {
	r.retry = RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
	return r
}

func TestHTTPRegistrar_Register(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewHTTPRegistrar(srv.URL, zap.NewNop())
	if err := r.Register(context.Background(), "alpha.local.store.dev"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("expected PUT, got %s", gotMethod)
	}
	if gotPath != "/records/alpha.local.store.dev" {
		t.Errorf("expected record path, got %s", gotPath)
	}
}

func TestHTTPRegistrar_RegisterRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := fastRetries(NewHTTPRegistrar(srv.URL, zap.NewNop()))
	if err := r.Register(context.Background(), "alpha.local.store.dev"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestHTTPRegistrar_RegisterFailsFastOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	r := fastRetries(NewHTTPRegistrar(srv.URL, zap.NewNop()))
	err := r.Register(context.Background(), "alpha.local.store.dev")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected client errors not to be retried, got %d attempts", got)
	}
}

func TestHTTPRegistrar_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := fastRetries(NewHTTPRegistrar(srv.URL, zap.NewNop()))
	err := r.Register(context.Background(), "alpha.local.store.dev")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "after 2 retries") {
		t.Errorf("expected retry exhaustion in error, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestHTTPRegistrar_DeregisterAbsorbsMissingRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewHTTPRegistrar(srv.URL, zap.NewNop())
	if err := r.Deregister(context.Background(), "ghost.local.store.dev"); err != nil {
		t.Errorf("Deregister() error = %v, want nil for missing record", err)
	}
}

func TestNewRegistrar(t *testing.T) {
	if _, ok := NewRegistrar("", zap.NewNop()).(NopRegistrar); !ok {
		t.Error("expected NopRegistrar when no endpoint is configured")
	}
	if _, ok := NewRegistrar("http://127.0.0.1:5353", zap.NewNop()).(*HTTPRegistrar); !ok {
		t.Error("expected HTTPRegistrar when an endpoint is configured")
	}
}

func TestNopRegistrar(t *testing.T) {
	var r Registrar = NopRegistrar{}
	if err := r.Register(context.Background(), "alpha.local.store.dev"); err != nil {
		t.Errorf("Register() error = %v", err)
	}
	if err := r.Deregister(context.Background(), "alpha.local.store.dev"); err != nil {
		t.Errorf("Deregister() error = %v", err)
	}
}
