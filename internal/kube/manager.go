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

package kube

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
)

// Label keys applied to every object the platform owns. The store and
// kind labels let operators select all resources of one store with a
// single label query.
const (
	LabelManagedBy = "app.kubernetes.io/managed-by"
	LabelStore     = "storeforge.io/store"
	LabelKind      = "storeforge.io/kind"

	managedByValue = "storeforge"
)

// Fixed names of the per-namespace guardrail objects.
const (
	QuotaName      = "store-quota"
	LimitRangeName = "store-limits"
)

// StoreLabels returns the labels identifying every object owned by the
// named store.
func StoreLabels(name, kind string) map[string]string {
	return map[string]string{
		LabelManagedBy: managedByValue,
		LabelStore:     name,
		LabelKind:      kind,
	}
}

// Pod is the read-only view of a workload pod exposed through the API.
type Pod struct {
	Name      string     `json:"name"`
	Phase     string     `json:"phase"`
	Ready     bool       `json:"ready"`
	Restarts  int32      `json:"restarts"`
	StartTime *time.Time `json:"startTime,omitempty"`
}

// Manager performs the cluster-side resource operations of the store
// lifecycle. Every Ensure method is idempotent so a crashed provision
// can be re-driven from the top.
type Manager struct {
	client client.Client
	log    *zap.Logger
}

// NewManager creates a new cluster resource manager.
func NewManager(c client.Client, log *zap.Logger) *Manager {
	return &Manager{
		client: c,
		log:    log,
	}
}

// EnsureNamespace creates or updates the store namespace and converges
// its labels. An existing namespace is not an error; labels are
// re-applied so recovery runs repair drift.
func (m *Manager) EnsureNamespace(ctx context.Context, name string, labels map[string]string) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
		},
	}

	op, err := controllerutil.CreateOrUpdate(ctx, m.client, ns, func() error {
		if ns.Labels == nil {
			ns.Labels = make(map[string]string)
		}
		ns.Labels[LabelManagedBy] = managedByValue
		for k, v := range labels {
			ns.Labels[k] = v
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to ensure namespace: %w", err)
	}

	m.log.Debug("namespace ensured",
		zap.String("namespace", name),
		zap.String("operation", string(op)))
	return nil
}

// EnsureResourceQuota creates or updates the hard resource quota that
// caps what a single store can consume.
func (m *Manager) EnsureResourceQuota(ctx context.Context, namespace string, labels map[string]string) error {
	quota := &corev1.ResourceQuota{
		ObjectMeta: metav1.ObjectMeta{
			Name:      QuotaName,
			Namespace: namespace,
		},
	}

	_, err := controllerutil.CreateOrUpdate(ctx, m.client, quota, func() error {
		quota.Spec.Hard = corev1.ResourceList{
			corev1.ResourcePods:                   resource.MustParse("20"),
			corev1.ResourceRequestsCPU:            resource.MustParse("2"),
			corev1.ResourceRequestsMemory:         resource.MustParse("4Gi"),
			corev1.ResourceLimitsCPU:              resource.MustParse("4"),
			corev1.ResourceLimitsMemory:           resource.MustParse("8Gi"),
			corev1.ResourcePersistentVolumeClaims: resource.MustParse("5"),
			corev1.ResourceRequestsStorage:        resource.MustParse("20Gi"),
		}

		if quota.Labels == nil {
			quota.Labels = make(map[string]string)
		}
		for k, v := range labels {
			quota.Labels[k] = v
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to ensure resource quota: %w", err)
	}

	return nil
}

// EnsureLimitRange creates or updates the per-container defaults so
// chart workloads without explicit requests still schedule under the
// namespace quota.
func (m *Manager) EnsureLimitRange(ctx context.Context, namespace string, labels map[string]string) error {
	lr := &corev1.LimitRange{
		ObjectMeta: metav1.ObjectMeta{
			Name:      LimitRangeName,
			Namespace: namespace,
		},
	}

	_, err := controllerutil.CreateOrUpdate(ctx, m.client, lr, func() error {
		lr.Spec.Limits = []corev1.LimitRangeItem{
			{
				Type: corev1.LimitTypeContainer,
				Default: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("500m"),
					corev1.ResourceMemory: resource.MustParse("512Mi"),
				},
				DefaultRequest: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("100m"),
					corev1.ResourceMemory: resource.MustParse("128Mi"),
				},
				Max: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("2"),
					corev1.ResourceMemory: resource.MustParse("4Gi"),
				},
			},
		}

		if lr.Labels == nil {
			lr.Labels = make(map[string]string)
		}
		for k, v := range labels {
			lr.Labels[k] = v
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to ensure limit range: %w", err)
	}

	return nil
}

// EnsureTLSSecret creates the kubernetes.io/tls secret the ingress
// terminates with. An existing secret is left untouched: certificates
// are rotated out of band, not by the provisioner.
func (m *Manager) EnsureTLSSecret(ctx context.Context, namespace, name string, certPEM, keyPEM []byte) error {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels: map[string]string{
				LabelManagedBy: managedByValue,
			},
		},
		Type: corev1.SecretTypeTLS,
		Data: map[string][]byte{
			corev1.TLSCertKey:       certPEM,
			corev1.TLSPrivateKeyKey: keyPEM,
		},
	}

	if err := m.client.Create(ctx, secret); err != nil {
		if apierrors.IsAlreadyExists(err) {
			m.log.Warn("tls secret already exists, leaving it in place",
				zap.String("namespace", namespace),
				zap.String("secret", name))
			return nil
		}
		return fmt.Errorf("failed to create tls secret: %w", err)
	}

	m.log.Info("created tls secret",
		zap.String("namespace", namespace),
		zap.String("secret", name))
	return nil
}

// DeleteNamespace removes the store namespace with foreground cascading
// so every namespaced object is gone before the namespace itself is.
// A namespace that is already absent counts as deleted.
func (m *Manager) DeleteNamespace(ctx context.Context, name string) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
		},
	}

	if err := m.client.Delete(ctx, ns, client.PropagationPolicy(metav1.DeletePropagationForeground)); err != nil {
		if apierrors.IsNotFound(err) {
			m.log.Warn("namespace not found during deletion", zap.String("namespace", name))
			return nil
		}
		return fmt.Errorf("failed to delete namespace: %w", err)
	}

	m.log.Info("deleted namespace", zap.String("namespace", name))
	return nil
}

// ListPods returns the workload pods of a store namespace. A missing
// namespace yields an empty listing rather than an error so the API can
// report on stores that are mid-teardown.
func (m *Manager) ListPods(ctx context.Context, namespace string) ([]Pod, error) {
	var list corev1.PodList
	if err := m.client.List(ctx, &list, client.InNamespace(namespace)); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	pods := make([]Pod, 0, len(list.Items))
	for i := range list.Items {
		item := &list.Items[i]
		p := Pod{
			Name:  item.Name,
			Phase: string(item.Status.Phase),
			Ready: len(item.Status.ContainerStatuses) > 0,
		}
		for _, cs := range item.Status.ContainerStatuses {
			if !cs.Ready {
				p.Ready = false
			}
			p.Restarts += cs.RestartCount
		}
		if st := item.Status.StartTime; st != nil {
			t := st.Time
			p.StartTime = &t
		}
		pods = append(pods, p)
	}

	return pods, nil
}
