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

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/storeforge/storeforge/internal/tenant"
)

func (o *Orchestrator) runTeardown(rec tenant.Record) {
	handle, err := o.locks.TryAcquire(rec.ID, opTeardown)
	if err != nil {
		lockConflictsTotal.WithLabelValues(opTeardown).Inc()
		o.log.Warn("dropping teardown, store operation already in flight",
			zap.String("store", rec.Name),
			zap.Error(err))
		return
	}
	defer handle.Release()

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ProvisionTimeout+stepHeadroom)
	defer cancel()

	start := time.Now()
	if err := o.teardown(ctx, rec); err != nil {
		o.failTeardown(rec, err)
		return
	}
	teardownDurationSeconds.Observe(time.Since(start).Seconds())
	teardownsTotal.WithLabelValues(resultRemoved).Inc()
}

func (o *Orchestrator) teardown(ctx context.Context, rec tenant.Record) error {
	o.log.Info("tearing down store",
		zap.String("store", rec.Name),
		zap.String("namespace", rec.Namespace))

	// Uninstall is advisory; the cascading namespace delete below is
	// what guarantees cleanup.
	if err := o.helm.Uninstall(ctx, rec.Name, rec.Namespace); err != nil {
		o.log.Warn("helm uninstall failed, namespace deletion will clean up",
			zap.String("store", rec.Name),
			zap.Error(err))
	}

	if err := o.kube.DeleteNamespace(ctx, rec.Namespace); err != nil {
		return err
	}

	host := o.hostFor(rec.Name)
	if err := o.dns.Deregister(ctx, host); err != nil {
		o.log.Warn("dns deregistration failed",
			zap.String("host", host),
			zap.Error(err))
	}

	if err := o.registry.Delete(ctx, rec.ID); err != nil && !errors.Is(err, tenant.ErrNotFound) {
		return err
	}

	o.log.Info("store deleted", zap.String("store", rec.Name))
	return nil
}

func (o *Orchestrator) failTeardown(rec tenant.Record, cause error) {
	teardownsTotal.WithLabelValues(resultFailed).Inc()

	o.log.Error("store teardown failed",
		zap.String("store", rec.Name),
		zap.Error(cause))

	ctx, cancel := context.WithTimeout(context.Background(), bookkeepTimeout)
	defer cancel()

	detail := fmt.Sprintf("delete failed: %v", cause)
	if err := o.registry.SetFailed(ctx, rec.ID, tenant.StateDeleting, detail); err != nil {
		switch {
		case errors.Is(err, tenant.ErrSuperseded):
			o.log.Warn("skipping failure mark, record state changed",
				zap.String("store", rec.Name))
		case errors.Is(err, tenant.ErrNotFound):
			o.log.Warn("skipping failure mark, record is gone",
				zap.String("store", rec.Name))
		default:
			o.log.Error("failed to record teardown failure",
				zap.String("store", rec.Name),
				zap.Error(err))
		}
	}

	if err := o.notifier.StoreFailed(ctx, rec, detail); err != nil {
		o.log.Warn("failure notification failed",
			zap.String("store", rec.Name),
			zap.Error(err))
	}
}
