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
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"

	"github.com/storeforge/storeforge/internal/helm"
	"github.com/storeforge/storeforge/internal/kube"
	"github.com/storeforge/storeforge/internal/lock"
	"github.com/storeforge/storeforge/internal/registry"
	"github.com/storeforge/storeforge/internal/tenant"
)

// newLifecycleFixture mirrors newFixture for specs, with cleanup
// ordered so in-flight tasks drain before the registry closes.
func newLifecycleFixture() *fixture {
	dir, err := os.MkdirTemp("", "storeforge-orchestrator-*")
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = os.RemoveAll(dir) })

	reg, err := registry.New("sqlite3", filepath.Join(dir, "test.db"))
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = reg.Close() })

	kubeClient := newFakeKube()
	fh := &fakeHelm{}
	fd := &fakeRegistrar{}
	fn := &fakeNotifier{}
	log := zap.NewNop()

	orch := New(testConfig(), Params{
		Registry: reg,
		Kube:     kube.NewManager(kubeClient, log),
		Helm:     fh,
		DNS:      fd,
		Notifier: fn,
		Locks:    lock.NewTable(),
	}, log)

	DeferCleanup(func() {
		if fh.block != nil {
			select {
			case <-fh.block:
			default:
				close(fh.block)
			}
		}
		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Drain(drainCtx)
	})

	return &fixture{
		orch:     orch,
		registry: reg,
		kube:     kubeClient,
		helm:     fh,
		dns:      fd,
		notifier: fn,
	}
}

var _ = Describe("Store lifecycle", func() {
	const (
		timeout  = time.Second * 5
		interval = time.Millisecond * 20
	)

	var (
		ctx context.Context
		fx  *fixture
		rec tenant.Record
	)

	BeforeEach(func() {
		ctx = context.Background()
		fx = newLifecycleFixture()
		rec = tenant.Record{
			ID:        uuid.New().String(),
			Name:      "lifecycle",
			Kind:      tenant.KindWooCommerce,
			State:     tenant.StateProvisioning,
			Namespace: "store-lifecycle",
		}
		Expect(fx.registry.Create(ctx, &rec)).To(Succeed())
	})

	Context("when a store is scheduled for provisioning", func() {
		It("walks the record to ready with its access URLs", func() {
			fx.orch.ScheduleProvision(rec)

			Eventually(func(g Gomega) {
				got, err := fx.registry.Get(ctx, rec.ID)
				g.Expect(err).NotTo(HaveOccurred())
				g.Expect(got.State).To(Equal(tenant.StateReady))
				g.Expect(got.StoreURL).To(Equal("https://lifecycle.shops.example.com"))
				g.Expect(got.AdminURL).To(Equal("https://lifecycle.shops.example.com/wp-admin"))
			}, timeout, interval).Should(Succeed())

			By("leaving the namespace guardrails in place")
			quota := &corev1.ResourceQuota{}
			Expect(fx.kube.Get(ctx, types.NamespacedName{Namespace: rec.Namespace, Name: kube.QuotaName}, quota)).To(Succeed())
			limits := &corev1.LimitRange{}
			Expect(fx.kube.Get(ctx, types.NamespacedName{Namespace: rec.Namespace, Name: kube.LimitRangeName}, limits)).To(Succeed())
		})

		It("parks the record in failed when the chart install times out", func() {
			fx.helm.installErr = &helm.TimeoutError{Release: rec.Name, Timeout: time.Minute}
			fx.orch.ScheduleProvision(rec)

			Eventually(func(g Gomega) {
				got, err := fx.registry.Get(ctx, rec.ID)
				g.Expect(err).NotTo(HaveOccurred())
				g.Expect(got.State).To(Equal(tenant.StateFailed))
				g.Expect(got.ErrorDetail).To(ContainSubstring("timed out"))
			}, timeout, interval).Should(Succeed())
		})
	})

	Context("when a ready store is scheduled for teardown", func() {
		BeforeEach(func() {
			fx.orch.ScheduleProvision(rec)
			Eventually(func(g Gomega) {
				got, err := fx.registry.Get(ctx, rec.ID)
				g.Expect(err).NotTo(HaveOccurred())
				g.Expect(got.State).To(Equal(tenant.StateReady))
			}, timeout, interval).Should(Succeed())
			Expect(fx.registry.MarkDeleting(ctx, rec.ID)).To(Succeed())
		})

		It("removes the namespace and the record", func() {
			got, err := fx.registry.Get(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			fx.orch.ScheduleTeardown(*got)

			Eventually(func(g Gomega) {
				_, err := fx.registry.Get(ctx, rec.ID)
				g.Expect(err).To(MatchError(tenant.ErrNotFound))
			}, timeout, interval).Should(Succeed())

			ns := &corev1.Namespace{}
			err = fx.kube.Get(ctx, types.NamespacedName{Name: rec.Namespace}, ns)
			if err == nil {
				Expect(ns.DeletionTimestamp.IsZero()).To(BeFalse())
			} else {
				Expect(apierrors.IsNotFound(err)).To(BeTrue())
			}
		})
	})

	Context("when delete arrives while provisioning is still running", func() {
		It("never resurrects the record to ready", func() {
			fx.helm.block = make(chan struct{})
			fx.orch.ScheduleProvision(rec)
			Eventually(fx.helm.startedCount, timeout, interval).Should(Equal(1))

			By("marking the record deleting mid-install")
			Expect(fx.registry.MarkDeleting(ctx, rec.ID)).To(Succeed())
			close(fx.helm.block)

			Consistently(func(g Gomega) {
				got, err := fx.registry.Get(ctx, rec.ID)
				g.Expect(err).NotTo(HaveOccurred())
				g.Expect(got.State).To(Equal(tenant.StateDeleting))
			}, time.Millisecond*300, interval).Should(Succeed())
		})
	})
})
