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

// Package tracing links opentracing spans to prometheus metrics.
//
// UpdateMetric tags a span with a metric. When the span was started by a
// jaeger tracer configured with NewContribObserver, the span's duration is
// observed into that metric when it finishes. With other tracers, including
// the default no-op tracer, the tag is harmless.
package tracing

import (
	"regexp"
	"sync"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	jaeger "github.com/uber/jaeger-client-go"
)

// metricTag is the span tag under which UpdateMetric stores its metric.
const metricTag = "metric"

// UpdateMetric arranges for the span's duration, in seconds, to be observed
// into 'metric' once the span finishes.
func UpdateMetric(span opentracing.Span, metric prometheus.Observer) {
	span.SetTag(metricTag, stringableMetric{metric})
}

// stringableMetric wraps an Observer so that it prints as its fully-qualified
// metric name in tag dumps.
type stringableMetric struct {
	prometheus.Observer
}

var fqNameRE = regexp.MustCompile(`fqName: "([^"]*)"`)

func (m stringableMetric) String() string {
	described, ok := m.Observer.(prometheus.Metric)
	if !ok {
		return "metric"
	}
	match := fqNameRE.FindStringSubmatch(described.Desc().String())
	if match == nil {
		return "metric"
	}
	return match[1]
}

// NewContribObserver returns a jaeger.ContribObserver that observes span
// durations into the metrics set with UpdateMetric.
func NewContribObserver() jaeger.ContribObserver {
	return &contribObserver{}
}

type contribObserver struct{}

// OnStartSpan implements jaeger.ContribObserver.
func (*contribObserver) OnStartSpan(sp opentracing.Span, operationName string,
	options opentracing.StartSpanOptions) (jaeger.ContribSpanObserver, bool) {
	start := options.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	return &spanObserver{start: start}, true
}

// spanObserver is the jaeger.ContribSpanObserver for a single span.
type spanObserver struct {
	start time.Time
	lock  sync.Mutex
	// Protected by 'lock'.
	metric prometheus.Observer
}

func (*spanObserver) OnSetOperationName(operationName string) {}

func (o *spanObserver) OnSetTag(key string, value interface{}) {
	if key != metricTag {
		return
	}
	if m, ok := value.(stringableMetric); ok {
		o.lock.Lock()
		o.metric = m.Observer
		o.lock.Unlock()
	}
}

func (o *spanObserver) OnFinish(options opentracing.FinishOptions) {
	o.lock.Lock()
	metric := o.metric
	o.lock.Unlock()
	if metric == nil {
		return
	}
	finish := options.FinishTime
	if finish.IsZero() {
		finish = time.Now()
	}
	metric.Observe(finish.Sub(o.start).Seconds())
}
