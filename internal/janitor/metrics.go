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

import "github.com/prometheus/client_golang/prometheus"

// Repair actions taken on stale records.
const (
	actionMarkFailed = "mark_failed"
	actionReschedule = "reschedule_teardown"
)

var (
	// storesByState tracks registry records by lifecycle state,
	// refreshed on every sweep.
	storesByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "storeforge",
			Name:      "stores",
			Help:      "Store records by lifecycle state",
		},
		[]string{"state"},
	)

	// sweepsTotal counts recovery passes, successful or not.
	sweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storeforge",
			Subsystem: "janitor",
			Name:      "sweeps_total",
			Help:      "Recovery sweeps run since process start",
		},
	)

	// sweepRepairsTotal counts stale records repaired, by action taken.
	sweepRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storeforge",
			Subsystem: "janitor",
			Name:      "repairs_total",
			Help:      "Stale records repaired by the recovery sweep",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		storesByState,
		sweepsTotal,
		sweepRepairsTotal,
	)
}
