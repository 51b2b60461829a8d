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
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/storeforge/storeforge/internal/kube"
	"github.com/storeforge/storeforge/internal/registry"
	"github.com/storeforge/storeforge/internal/tenant"
	"github.com/storeforge/storeforge/internal/usage"
)

// Scheduler is the part of the orchestrator the API drives. Both calls
// return immediately; progress is observable through the record state.
type Scheduler interface {
	ScheduleProvision(rec tenant.Record)
	ScheduleTeardown(rec tenant.Record)
}

// Config carries the server's listen address and intake guardrails.
type Config struct {
	Addr            string
	NamespacePrefix string

	// MaxStores caps the total record count; zero disables the cap.
	MaxStores int

	// RateLimit is requests per minute per client address on the store
	// routes; zero disables limiting.
	RateLimit int
}

// Deps collects the server's collaborators.
type Deps struct {
	Registry  *registry.Registry
	Kube      *kube.Manager
	Usage     *usage.Estimator
	Scheduler Scheduler
}

// Server exposes the store lifecycle over HTTP.
type Server struct {
	cfg       Config
	registry  *registry.Registry
	kube      *kube.Manager
	usage     *usage.Estimator
	scheduler Scheduler
	limiter   *ipLimiter
	log       *zap.Logger
	server    *http.Server
}

// NewServer creates an API server.
func NewServer(cfg Config, deps Deps, log *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		registry:  deps.Registry,
		kube:      deps.Kube,
		usage:     deps.Usage,
		scheduler: deps.Scheduler,
		limiter:   newIPLimiter(cfg.RateLimit),
		log:       log,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.logRequests)

	// Probes and scrapes stay outside the rate limit.
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/stores", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(s.rateLimit)
		}
		r.Post("/", s.handleCreateStore)
		r.Get("/", s.handleListStores)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetStore)
			r.Delete("/", s.handleDeleteStore)
			r.Get("/pods", s.handleListPods)
			r.Get("/usage", s.handleUsage)
		})
	})

	return r
}

// Start serves requests until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("starting api server", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.log.Info("shutting down api server")
	return s.server.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}
