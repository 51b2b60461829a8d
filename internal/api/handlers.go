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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storeforge/storeforge/internal/tenant"
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, &apiError{Code: status, Message: message})
}

// handleError converts lifecycle errors to HTTP errors.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		respondError(w, http.StatusNotFound, "store not found")
	case errors.Is(err, tenant.ErrAlreadyExists):
		respondError(w, http.StatusConflict, "store name already in use")
	case errors.Is(err, tenant.ErrAlreadyDeleting):
		respondError(w, http.StatusConflict, "store deletion already in progress")
	case errors.Is(err, tenant.ErrInvalidName), errors.Is(err, tenant.ErrInvalidKind):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tenant.ErrCapacity):
		respondError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "registry unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req tenant.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := tenant.ValidateName(req.Name); err != nil {
		s.handleError(w, err)
		return
	}
	kind, err := tenant.ParseKind(req.Kind)
	if err != nil {
		s.handleError(w, err)
		return
	}

	ctx := r.Context()
	if s.cfg.MaxStores > 0 {
		count, err := s.registry.Count(ctx)
		if err != nil {
			s.handleError(w, err)
			return
		}
		if count >= s.cfg.MaxStores {
			s.handleError(w, fmt.Errorf("%w: limit is %d stores", tenant.ErrCapacity, s.cfg.MaxStores))
			return
		}
	}

	rec := tenant.Record{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Kind:      kind,
		State:     tenant.StateProvisioning,
		Namespace: tenant.NamespaceFor(s.cfg.NamespacePrefix, req.Name),
	}
	if err := s.registry.Create(ctx, &rec); err != nil {
		if errors.Is(err, tenant.ErrAlreadyExists) {
			s.respondNameConflict(ctx, w, req.Name)
			return
		}
		s.handleError(w, err)
		return
	}

	s.scheduler.ScheduleProvision(rec)
	s.log.Info("store accepted",
		zap.String("store", rec.Name),
		zap.String("kind", string(rec.Kind)))
	respondJSON(w, http.StatusAccepted, rec)
}

// respondNameConflict distinguishes a name that is live from one whose
// teardown has not finished yet.
func (s *Server) respondNameConflict(ctx context.Context, w http.ResponseWriter, name string) {
	existing, err := s.registry.GetByName(ctx, name)
	if err == nil && existing.State == tenant.StateDeleting {
		respondError(w, http.StatusConflict, "store name is still being deleted, retry later")
		return
	}
	respondError(w, http.StatusConflict, "store name already in use")
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	records, err := s.registry.List(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := s.registry.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, err)
		return
	}

	if err := s.registry.MarkDeleting(ctx, rec.ID); err != nil {
		if errors.Is(err, tenant.ErrSuperseded) {
			s.handleError(w, tenant.ErrAlreadyDeleting)
			return
		}
		s.handleError(w, err)
		return
	}

	rec.State = tenant.StateDeleting
	s.scheduler.ScheduleTeardown(*rec)
	s.log.Info("store delete accepted", zap.String("store", rec.Name))
	respondJSON(w, http.StatusAccepted, rec)
}

func (s *Server) handleListPods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := s.registry.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, err)
		return
	}

	pods, err := s.kube.ListPods(ctx, rec.Namespace)
	if err != nil {
		s.handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pods)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := s.registry.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, err)
		return
	}

	summary, err := s.usage.Summarize(ctx, rec.Namespace)
	if err != nil {
		s.handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
