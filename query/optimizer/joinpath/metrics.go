// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package joinpath

import (
	metricsutil "github.com/ebay/joinpath/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type optimizerMetrics struct {
	actionsTotal            *prometheus.CounterVec
	rollbacksTotal          *prometheus.CounterVec
	optimizeDurationSeconds prometheus.Summary
}

var metrics optimizerMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = optimizerMetrics{
		actionsTotal: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: "joinpath",
			Subsystem: "optimizer",
			Name:      "actions_total",
			Help: `The number of rewrites made by the join-path optimizer.

The pass label is "fuse" for joins folded into join paths and "subpath" for
shared pairs replaced by a single join.
`,
		}, []string{"pass"}),
		rollbacksTotal: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: "joinpath",
			Subsystem: "optimizer",
			Name:      "rollbacks_total",
			Help: `The number of optimizer passes abandoned because the program grew past its
statement limit. The program is left as it was before the pass.
`,
		}, []string{"pass"}),
		optimizeDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace:  "joinpath",
			Subsystem:  "optimizer",
			Name:       "duration_seconds",
			Help:       `The time it took to optimize a program, in seconds.`,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
	}
}
