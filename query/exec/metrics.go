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

package exec

import (
	metricsutil "github.com/ebay/joinpath/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type execMetrics struct {
	joinsTotal              *prometheus.CounterVec
	postponementsTotal      prometheus.Counter
	pathFailuresTotal       prometheus.Counter
	joinPathDurationSeconds prometheus.Summary
}

var metrics execMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = execMetrics{
		joinsTotal: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: "joinpath",
			Subsystem: "exec",
			Name:      "joins_total",
			Help: `The number of pairwise joins attempted while evaluating join paths.

The outcome label is "ok" for joins that produced a result and "infeasible"
for joins the store refused, which lead to postponement.
`,
		}, []string{"outcome"}),
		postponementsTotal: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "joinpath",
			Subsystem: "exec",
			Name:      "postponements_total",
			Help:      `The number of times a failed pair was postponed in favor of other pairs.`,
		}),
		pathFailuresTotal: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "joinpath",
			Subsystem: "exec",
			Name:      "path_failures_total",
			Help:      `The number of join paths abandoned because every remaining operand was postponed.`,
		}),
		joinPathDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace:  "joinpath",
			Subsystem:  "exec",
			Name:       "duration_seconds",
			Help:       `The time it took to evaluate a join path, in seconds.`,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
	}
}
