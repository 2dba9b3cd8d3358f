// Copyright 2025 Edulith Labs
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

package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type reconcilerMetrics struct {
	sweepsTotal      prometheus.Counter
	repairsTotal     prometheus.Counter
	pendingRecords   prometheus.Gauge
	transitionsTotal *prometheus.CounterVec
}

func (r *Reconciler) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	r.metrics = &reconcilerMetrics{
		sweepsTotal: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "sigil_reconciler_sweeps_total",
				Help: "total number of reconciliation sweeps performed",
			},
		),
		repairsTotal: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "sigil_reconciler_repairs_total",
				Help: "total number of inconsistent records repaired",
			},
		),
		pendingRecords: promautoFactory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sigil_reconciler_pending_records",
				Help: "number of pending records at the last sweep",
			},
		),
		transitionsTotal: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigil_reconciler_transitions_total",
				Help: "total number of record transitions by final status",
			},
			[]string{"status"},
		),
	}
}
