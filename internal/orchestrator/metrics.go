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

import "github.com/prometheus/client_golang/prometheus"

// Result labels for finished lifecycle sequences.
const (
	resultReady   = "ready"
	resultTimeout = "timeout"
	resultFailed  = "failed"
	resultRemoved = "removed"
)

var (
	// provisionsTotal counts finished provisioning sequences by result.
	provisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storeforge",
			Subsystem: "orchestrator",
			Name:      "provisions_total",
			Help:      "Finished provisioning sequences by result",
		},
		[]string{"result"},
	)

	// teardownsTotal counts finished teardown sequences by result.
	teardownsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storeforge",
			Subsystem: "orchestrator",
			Name:      "teardowns_total",
			Help:      "Finished teardown sequences by result",
		},
		[]string{"result"},
	)

	// provisionDurationSeconds observes wall time of successful
	// provisioning sequences.
	provisionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "storeforge",
			Subsystem: "orchestrator",
			Name:      "provision_duration_seconds",
			Help:      "Wall time of successful provisioning sequences",
			Buckets:   prometheus.ExponentialBuckets(15, 2, 7),
		},
	)

	// teardownDurationSeconds observes wall time of successful teardown
	// sequences. Most of it is the foreground namespace delete.
	teardownDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "storeforge",
			Subsystem: "orchestrator",
			Name:      "teardown_duration_seconds",
			Help:      "Wall time of successful teardown sequences",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 7),
		},
	)

	// lockConflictsTotal counts operations dropped because the store
	// lock was already held.
	lockConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storeforge",
			Subsystem: "orchestrator",
			Name:      "lock_conflicts_total",
			Help:      "Operations dropped because the store lock was held",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		provisionsTotal,
		teardownsTotal,
		provisionDurationSeconds,
		teardownDurationSeconds,
		lockConflictsTotal,
	)
}
