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

package janitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/storeforge/storeforge/internal/registry"
	"github.com/storeforge/storeforge/internal/tenant"
)

// Scheduler is the part of the orchestrator the janitor drives. The
// orchestrator's per-store locks make a rescheduled teardown safe even
// if the original one is somehow still running.
type Scheduler interface {
	ScheduleTeardown(rec tenant.Record)
}

// Janitor repairs records orphaned in a transient state, typically by
// a daemon crash mid-sequence. It sweeps once at startup and then on
// every tick.
type Janitor struct {
	registry  *registry.Registry
	scheduler Scheduler
	interval  time.Duration
	grace     time.Duration
	log       *zap.Logger
}

// New creates a janitor. Records untouched for longer than grace while
// in a transient state are considered orphaned.
func New(reg *registry.Registry, scheduler Scheduler, interval, grace time.Duration, log *zap.Logger) *Janitor {
	return &Janitor{
		registry:  reg,
		scheduler: scheduler,
		interval:  interval,
		grace:     grace,
		log:       log,
	}
}

// Start runs the recovery loop until the context is canceled. The
// first sweep happens immediately so a restarted daemon repairs crash
// leftovers before taking traffic.
func (j *Janitor) Start(ctx context.Context) error {
	if err := j.sweep(ctx); err != nil {
		j.log.Error("recovery sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := j.sweep(ctx); err != nil {
				// Keep ticking; the next pass may succeed.
				j.log.Error("recovery sweep failed", zap.Error(err))
			}
		}
	}
}

// sweep performs one recovery pass. Stale provisioning records are
// parked in failed; stale deleting records get their teardown run
// again, since deletion is idempotent end to end.
func (j *Janitor) sweep(ctx context.Context) error {
	sweepsTotal.Inc()

	counts, err := j.registry.CountByState(ctx)
	if err != nil {
		return fmt.Errorf("counting records: %w", err)
	}
	for _, state := range tenant.States {
		storesByState.WithLabelValues(string(state)).Set(float64(counts[state]))
	}

	// UTC like every registry write; sqlite compares timestamps textually.
	cutoff := time.Now().UTC().Add(-j.grace)
	stale, err := j.registry.ListStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("listing stale records: %w", err)
	}

	for _, rec := range stale {
		switch rec.State {
		case tenant.StateProvisioning:
			j.failInterrupted(ctx, rec)
		case tenant.StateDeleting:
			j.log.Info("rescheduling interrupted teardown",
				zap.String("store", rec.Name),
				zap.Time("stuckSince", rec.UpdatedAt))
			sweepRepairsTotal.WithLabelValues(actionReschedule).Inc()
			j.scheduler.ScheduleTeardown(*rec)
		}
	}
	return nil
}

func (j *Janitor) failInterrupted(ctx context.Context, rec *tenant.Record) {
	j.log.Info("failing interrupted provision",
		zap.String("store", rec.Name),
		zap.Time("stuckSince", rec.UpdatedAt))

	detail := fmt.Sprintf("provisioning interrupted, no progress since %s", rec.UpdatedAt.UTC().Format(time.RFC3339))
	err := j.registry.SetFailed(ctx, rec.ID, tenant.StateProvisioning, detail)
	switch {
	case err == nil:
		sweepRepairsTotal.WithLabelValues(actionMarkFailed).Inc()
	case errors.Is(err, tenant.ErrSuperseded), errors.Is(err, tenant.ErrNotFound):
		j.log.Warn("record moved on before repair",
			zap.String("store", rec.Name),
			zap.Error(err))
	default:
		j.log.Error("failed to repair record",
			zap.String("store", rec.Name),
			zap.Error(err))
	}
}
