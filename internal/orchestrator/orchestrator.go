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
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/storeforge/storeforge/internal/dns"
	"github.com/storeforge/storeforge/internal/kube"
	"github.com/storeforge/storeforge/internal/lock"
	"github.com/storeforge/storeforge/internal/notify"
	"github.com/storeforge/storeforge/internal/registry"
	"github.com/storeforge/storeforge/internal/tenant"
)

// HelmClient is the subset of the chart client the orchestrator drives.
type HelmClient interface {
	Install(ctx context.Context, release, chartPath, namespace string, values map[string]string, timeout time.Duration) error
	Uninstall(ctx context.Context, release, namespace string) error
}

// Config carries the provisioning parameters.
type Config struct {
	BaseDomain       string
	IngressClass     string
	ChartDir         string
	ProvisionTimeout time.Duration
	TLSCertFile      string
	TLSKeyFile       string
	TLSSecretName    string
}

// Params collects the orchestrator's collaborators.
type Params struct {
	Registry *registry.Registry
	Kube     *kube.Manager
	Helm     HelmClient
	DNS      dns.Registrar
	Notifier notify.Notifier
	Locks    *lock.Table
}

// Operation names recorded on lock holds and in metrics.
const (
	opProvision = "provision"
	opTeardown  = "teardown"
)

// stepHeadroom pads the task context beyond the helm timeout so helm's
// own --timeout fires first and reports the clearer error.
const stepHeadroom = time.Minute

// bookkeepTimeout bounds the registry writes that record an outcome
// after the task context is already spent.
const bookkeepTimeout = 30 * time.Second

// Orchestrator drives store lifecycle sequences as background tasks.
// Scheduling never blocks the caller; per-store locks guarantee at
// most one sequence per store, and a second request during one is
// dropped with a log line rather than queued.
type Orchestrator struct {
	cfg      Config
	registry *registry.Registry
	kube     *kube.Manager
	helm     HelmClient
	dns      dns.Registrar
	notifier notify.Notifier
	locks    *lock.Table
	log      *zap.Logger

	wg sync.WaitGroup
}

// New creates an orchestrator.
func New(cfg Config, p Params, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: p.Registry,
		kube:     p.Kube,
		helm:     p.Helm,
		dns:      p.DNS,
		notifier: p.Notifier,
		locks:    p.Locks,
		log:      log,
	}
}

// ScheduleProvision runs the provisioning sequence in the background.
// The record must already be persisted in the provisioning state.
func (o *Orchestrator) ScheduleProvision(rec tenant.Record) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runProvision(rec)
	}()
}

// ScheduleTeardown runs the teardown sequence in the background. The
// record must already be marked deleting.
func (o *Orchestrator) ScheduleTeardown(rec tenant.Record) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runTeardown(rec)
	}()
}

// Drain waits for in-flight lifecycle tasks to finish, or until ctx
// expires.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) hostFor(name string) string {
	return name + "." + o.cfg.BaseDomain
}
