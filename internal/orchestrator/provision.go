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
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/storeforge/storeforge/internal/helm"
	"github.com/storeforge/storeforge/internal/kube"
	"github.com/storeforge/storeforge/internal/tenant"
)

func (o *Orchestrator) runProvision(rec tenant.Record) {
	handle, err := o.locks.TryAcquire(rec.ID, opProvision)
	if err != nil {
		lockConflictsTotal.WithLabelValues(opProvision).Inc()
		o.log.Warn("dropping provision, store operation already in flight",
			zap.String("store", rec.Name),
			zap.Error(err))
		return
	}
	defer handle.Release()

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ProvisionTimeout+stepHeadroom)
	defer cancel()

	start := time.Now()
	if err := o.provision(ctx, rec); err != nil {
		o.failProvision(rec, err)
		return
	}
	provisionDurationSeconds.Observe(time.Since(start).Seconds())
	provisionsTotal.WithLabelValues(resultReady).Inc()
}

func (o *Orchestrator) provision(ctx context.Context, rec tenant.Record) error {
	o.log.Info("provisioning store",
		zap.String("store", rec.Name),
		zap.String("kind", string(rec.Kind)),
		zap.String("namespace", rec.Namespace))

	labels := kube.StoreLabels(rec.Name, string(rec.Kind))
	if err := o.kube.EnsureNamespace(ctx, rec.Namespace, labels); err != nil {
		return err
	}
	if err := o.kube.EnsureResourceQuota(ctx, rec.Namespace, labels); err != nil {
		return err
	}
	if err := o.kube.EnsureLimitRange(ctx, rec.Namespace, labels); err != nil {
		return err
	}
	tlsReady, err := o.ensureTLSSecret(ctx, rec.Namespace)
	if err != nil {
		return err
	}

	creds, err := newCredentials()
	if err != nil {
		return err
	}

	chart := filepath.Join(o.cfg.ChartDir, string(rec.Kind))
	if err := o.helm.Install(ctx, rec.Name, chart, rec.Namespace, o.chartValues(rec, creds), o.cfg.ProvisionTimeout); err != nil {
		return err
	}

	// DNS is best effort: wildcard records usually cover the host
	// already, and a broken registrar must not fail the store.
	host := o.hostFor(rec.Name)
	if err := o.dns.Register(ctx, host); err != nil {
		o.log.Warn("dns registration failed",
			zap.String("host", host),
			zap.Error(err))
	}

	storeURL := "https://" + host
	adminURL := storeURL + adminPath(rec.Kind)
	refs := creds.References(rec.Name)
	if tlsReady {
		refs["tls_secret"] = o.cfg.TLSSecretName
	}
	if err := o.registry.SetReady(ctx, rec.ID, storeURL, adminURL, refs); err != nil {
		if errors.Is(err, tenant.ErrSuperseded) || errors.Is(err, tenant.ErrNotFound) {
			o.log.Warn("store no longer provisioning, leaving record untouched",
				zap.String("store", rec.Name),
				zap.Error(err))
			return nil
		}
		return err
	}

	rec.StoreURL = storeURL
	rec.AdminURL = adminURL
	if err := o.notifier.StoreReady(ctx, rec, creds.Disclose()); err != nil {
		o.log.Warn("ready notification failed",
			zap.String("store", rec.Name),
			zap.Error(err))
	}

	o.log.Info("store provisioned",
		zap.String("store", rec.Name),
		zap.String("url", storeURL))
	return nil
}

// failProvision records the outcome on a fresh context; the task
// context is usually the thing that just expired.
func (o *Orchestrator) failProvision(rec tenant.Record, cause error) {
	result := resultFailed
	detail := cause.Error()
	var timeoutErr *helm.TimeoutError
	if errors.As(cause, &timeoutErr) {
		result = resultTimeout
		detail = fmt.Sprintf("provisioning timed out after %s", timeoutErr.Timeout)
	}
	provisionsTotal.WithLabelValues(result).Inc()

	o.log.Error("store provisioning failed",
		zap.String("store", rec.Name),
		zap.Error(cause))

	ctx, cancel := context.WithTimeout(context.Background(), bookkeepTimeout)
	defer cancel()

	if err := o.registry.SetFailed(ctx, rec.ID, tenant.StateProvisioning, detail); err != nil {
		switch {
		case errors.Is(err, tenant.ErrSuperseded):
			o.log.Warn("skipping failure mark, record state changed",
				zap.String("store", rec.Name))
		case errors.Is(err, tenant.ErrNotFound):
			o.log.Warn("skipping failure mark, record is gone",
				zap.String("store", rec.Name))
		default:
			o.log.Error("failed to record provisioning failure",
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

// ensureTLSSecret copies the configured certificate pair into the
// store namespace and reports whether the secret is in place. Missing
// or unreadable files downgrade the store to plain http with a warning
// instead of failing the provision.
func (o *Orchestrator) ensureTLSSecret(ctx context.Context, namespace string) (bool, error) {
	if o.cfg.TLSCertFile == "" || o.cfg.TLSKeyFile == "" {
		return false, nil
	}

	cert, err := os.ReadFile(o.cfg.TLSCertFile)
	if err != nil {
		o.log.Warn("tls certificate not readable, store will serve plain http",
			zap.String("path", o.cfg.TLSCertFile),
			zap.Error(err))
		return false, nil
	}
	key, err := os.ReadFile(o.cfg.TLSKeyFile)
	if err != nil {
		o.log.Warn("tls key not readable, store will serve plain http",
			zap.String("path", o.cfg.TLSKeyFile),
			zap.Error(err))
		return false, nil
	}

	if err := o.kube.EnsureTLSSecret(ctx, namespace, o.cfg.TLSSecretName, cert, key); err != nil {
		return false, err
	}
	return true, nil
}

// chartValues builds the value set shared by all store charts. Charts
// ignore keys outside their stack.
func (o *Orchestrator) chartValues(rec tenant.Record, creds credentials) map[string]string {
	host := o.hostFor(rec.Name)
	return map[string]string{
		"storeName":               rec.Name,
		"baseDomain":              o.cfg.BaseDomain,
		"ingress.className":       o.cfg.IngressClass,
		"ingress.host":            host,
		"wordpress.adminUser":     creds.AdminUser,
		"wordpress.adminPassword": creds.AdminPassword,
		"wordpress.adminEmail":    "admin@" + host,
		"mysql.rootPassword":      creds.DBPassword,
		"mysql.database":          "wordpress",
		"mysql.user":              "wordpress",
		"mysql.password":          creds.DBPassword,
	}
}

// adminPath maps a stack kind to its dashboard path.
func adminPath(kind tenant.Kind) string {
	if kind == tenant.KindMedusa {
		return "/app"
	}
	return "/wp-admin"
}
