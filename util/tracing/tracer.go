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

package tracing

import (
	"fmt"
	"strings"

	"github.com/ebay/joinpath/config"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
	jaeger "github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// A Tracer reports OpenTracing traces to a jaeger agent.
type Tracer struct {
	// If not nil, called by Close.
	close func()
}

// New constructs a tracer and sets it as the global opentracing tracer. Call
// this early on from main functions. The jaeger agent is located through the
// JAEGER_* environment variables. If err == nil, the returned tracer should be
// Closed to flush its buffer before program exit.
func New(serviceName string, tracingCfg *config.Tracing) (*Tracer, error) {
	if tracingCfg == nil {
		log.Debug("Skipping Jaeger setup: nil Tracing configuration")
		return &Tracer{}, nil
	}
	if tracingCfg.Type != "jaeger" {
		return nil, fmt.Errorf("unsupported tracing type %q", tracingCfg.Type)
	}
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("could not read Jaeger environment: %v", err)
	}
	cfg.ServiceName = serviceName
	if tracingCfg.ServiceName != "" {
		cfg.ServiceName = tracingCfg.ServiceName
	}
	if cfg.Sampler == nil || cfg.Sampler.Type == "" {
		cfg.Sampler = &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		}
	}
	logger := (*logrusAdapter)(log.WithFields(log.Fields{"component": "jaeger"}))
	tracer, closer, err := cfg.NewTracer(
		jaegercfg.Logger(logger),
		jaegercfg.ContribObserver(NewContribObserver()),
	)
	if err != nil {
		return nil, fmt.Errorf("could not initialize Jaeger tracer: %v", err)
	}
	opentracing.SetGlobalTracer(tracer)
	return &Tracer{
		close: func() {
			err := closer.Close()
			if err != nil {
				log.WithError(err).Warn("Error shutting down Jaeger tracer")
			}
		},
	}, nil
}

// Close stops the Tracer and flushes buffered spans. It is not thread-safe.
func (t *Tracer) Close() {
	if t.close != nil {
		t.close()
	}
	t.close = nil
}

type logrusAdapter log.Entry

func (_log *logrusAdapter) Error(msg string) {
	log := (*log.Entry)(_log)
	log.Error(strings.TrimSpace(msg))
}

func (_log *logrusAdapter) Infof(msg string, args ...interface{}) {
	log := (*log.Entry)(_log)
	log.Infof(strings.TrimSpace(msg), args...)
}
