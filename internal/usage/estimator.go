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

// Package usage reports what a store's workloads request against the
// namespace guardrails.
package usage

import (
	"context"
	"fmt"
	"math"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/storeforge/storeforge/internal/kube"
)

// Summary is the per-store resource picture served by the usage API:
// the sum of container requests next to the quota caps, with
// utilization as a 0..1 ratio. Quota fields stay zero when the
// namespace carries no quota.
type Summary struct {
	Namespace string `json:"namespace"`
	Pods      int    `json:"pods"`

	CPURequested   float64 `json:"cpuRequested"`
	CPUQuota       float64 `json:"cpuQuota"`
	CPUUtilization float64 `json:"cpuUtilization"`

	MemoryRequestedGiB float64 `json:"memoryRequestedGib"`
	MemoryQuotaGiB     float64 `json:"memoryQuotaGib"`
	MemoryUtilization  float64 `json:"memoryUtilization"`
}

// Estimator reads pods and quotas to build usage summaries.
type Estimator struct {
	client client.Client
}

// NewEstimator creates a usage estimator.
func NewEstimator(c client.Client) *Estimator {
	return &Estimator{client: c}
}

// Summarize sums container requests across the namespace's pods and
// relates them to the store quota.
func (e *Estimator) Summarize(ctx context.Context, namespace string) (*Summary, error) {
	var pods corev1.PodList
	if err := e.client.List(ctx, &pods, client.InNamespace(namespace)); err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	s := &Summary{
		Namespace: namespace,
		Pods:      len(pods.Items),
	}
	for i := range pods.Items {
		cpu, mem := podRequests(&pods.Items[i])
		s.CPURequested += cpu
		s.MemoryRequestedGiB += mem
	}

	var quota corev1.ResourceQuota
	err := e.client.Get(ctx, types.NamespacedName{Name: kube.QuotaName, Namespace: namespace}, &quota)
	switch {
	case apierrors.IsNotFound(err):
		// No quota to relate against; requested sums still stand.
	case err != nil:
		return nil, fmt.Errorf("failed to get resource quota: %w", err)
	default:
		if q, ok := quota.Spec.Hard[corev1.ResourceRequestsCPU]; ok {
			s.CPUQuota = quantityValue(q, corev1.ResourceCPU)
		}
		if q, ok := quota.Spec.Hard[corev1.ResourceRequestsMemory]; ok {
			s.MemoryQuotaGiB = quantityValue(q, corev1.ResourceMemory)
		}
	}

	if s.CPUQuota > 0 {
		s.CPUUtilization = round4(s.CPURequested / s.CPUQuota)
	}
	if s.MemoryQuotaGiB > 0 {
		s.MemoryUtilization = round4(s.MemoryRequestedGiB / s.MemoryQuotaGiB)
	}
	s.CPURequested = round4(s.CPURequested)
	s.MemoryRequestedGiB = round4(s.MemoryRequestedGiB)

	return s, nil
}

// podRequests sums resource requests across all containers of a pod.
func podRequests(pod *corev1.Pod) (cpu, memGiB float64) {
	for _, container := range pod.Spec.Containers {
		if container.Resources.Requests == nil {
			continue
		}
		if q, ok := container.Resources.Requests[corev1.ResourceCPU]; ok {
			cpu += quantityValue(q, corev1.ResourceCPU)
		}
		if q, ok := container.Resources.Requests[corev1.ResourceMemory]; ok {
			memGiB += quantityValue(q, corev1.ResourceMemory)
		}
	}
	return cpu, memGiB
}

// quantityValue converts a quantity to the reporting base unit: cores
// for CPU, GiB for memory.
func quantityValue(q resource.Quantity, resourceType corev1.ResourceName) float64 {
	switch resourceType {
	case corev1.ResourceCPU:
		return float64(q.MilliValue()) / 1000.0
	case corev1.ResourceMemory:
		return float64(q.Value()) / (1024 * 1024 * 1024)
	default:
		return 0
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
