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

// storeforged is the storefront provisioning daemon. It serves the
// intake API, runs lifecycle sequences against the cluster, and sweeps
// for records orphaned by a previous crash.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/storeforge/storeforge/internal/api"
	"github.com/storeforge/storeforge/internal/config"
	"github.com/storeforge/storeforge/internal/dns"
	"github.com/storeforge/storeforge/internal/helm"
	"github.com/storeforge/storeforge/internal/janitor"
	"github.com/storeforge/storeforge/internal/kube"
	"github.com/storeforge/storeforge/internal/lock"
	"github.com/storeforge/storeforge/internal/logging"
	"github.com/storeforge/storeforge/internal/notify"
	"github.com/storeforge/storeforge/internal/orchestrator"
	"github.com/storeforge/storeforge/internal/registry"
	"github.com/storeforge/storeforge/internal/usage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "storeforged:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Component: "storeforged"})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	reg, err := registry.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	defer func() { _ = reg.Close() }()

	kubeClient, err := buildKubeClient(cfg.Cluster)
	if err != nil {
		return fmt.Errorf("building cluster client: %w", err)
	}

	kubeManager := kube.NewManager(kubeClient, log)
	helmClient := helm.NewClient(cfg.Helm.Binary, log)
	registrar := dns.NewRegistrar(cfg.DNS.Endpoint, log)
	notifier := notify.New(notify.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		From:     cfg.SMTP.From,
		To:       cfg.SMTP.To,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	}, log)

	locks := lock.NewTable()
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "storeforge",
			Subsystem: "orchestrator",
			Name:      "lock_table_entries",
			Help:      "Stores tracked by the lifecycle lock table",
		},
		func() float64 { return float64(locks.Len()) },
	))

	orch := orchestrator.New(orchestrator.Config{
		BaseDomain:       cfg.Provision.BaseDomain,
		IngressClass:     cfg.Provision.IngressClass,
		ChartDir:         cfg.Helm.ChartDir,
		ProvisionTimeout: cfg.Provision.Timeout,
		TLSCertFile:      cfg.Cluster.TLSCertFile,
		TLSKeyFile:       cfg.Cluster.TLSKeyFile,
		TLSSecretName:    cfg.Cluster.TLSSecretName,
	}, orchestrator.Params{
		Registry: reg,
		Kube:     kubeManager,
		Helm:     helmClient,
		DNS:      registrar,
		Notifier: notifier,
		Locks:    locks,
	}, log)

	sweeper := janitor.New(reg, orch, cfg.Janitor.SweepInterval, cfg.Janitor.GracePeriod, log)

	server := api.NewServer(api.Config{
		Addr:            cfg.Server.Addr(),
		NamespacePrefix: cfg.Cluster.NamespacePrefix,
		MaxStores:       cfg.Provision.MaxStores,
		RateLimit:       cfg.Server.RateLimitPerMinute,
	}, api.Deps{
		Registry:  reg,
		Kube:      kubeManager,
		Usage:     usage.NewEstimator(kubeClient),
		Scheduler: orch,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)
	go func() {
		if err := sweeper.Start(ctx); err != nil {
			errChan <- fmt.Errorf("janitor: %w", err)
		}
	}()
	go func() {
		if err := server.Start(ctx); err != nil {
			errChan <- fmt.Errorf("api server: %w", err)
		}
	}()

	log.Info("storeforged started",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("baseDomain", cfg.Provision.BaseDomain),
		zap.String("driver", cfg.Database.Driver))

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errChan:
		log.Error("component failed", zap.Error(runErr))
		stop()
	}

	// Give in-flight lifecycle sequences a moment to finish; whatever
	// the drain abandons, the next start's recovery sweep repairs.
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := orch.Drain(drainCtx); err != nil {
		log.Warn("shutting down with lifecycle tasks still running", zap.Error(err))
	}

	log.Info("storeforged stopped")
	return runErr
}

func buildKubeClient(cfg config.ClusterConfig) (client.Client, error) {
	restCfg, err := buildRESTConfig(cfg)
	if err != nil {
		return nil, err
	}

	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		return nil, err
	}
	return client.New(restCfg, client.Options{Scheme: scheme})
}

func buildRESTConfig(cfg config.ClusterConfig) (*rest.Config, error) {
	if cfg.InCluster {
		return rest.InClusterConfig()
	}
	if cfg.Kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
	}
	// Fall back to the standard lookup chain: KUBECONFIG, then the
	// home directory, then in-cluster.
	return ctrlconfig.GetConfig()
}
