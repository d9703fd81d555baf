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

// Package config defines the JSON configuration of the joinpath tools.
package config

import "math"

// Config is the top-level configuration.
type Config struct {
	// Tuning constants for the join cost model.
	CostModel CostModel `json:"costModel"`
	// Settings for the optimizer passes.
	Optimizer Optimizer `json:"optimizer"`
	// Settings for the in-memory store used to evaluate programs.
	Store Store `json:"store"`
	// If set, spans are reported to a tracing collector.
	Tracing *Tracing `json:"tracing,omitempty"`
}

// CostModel configures how the executor ranks candidate pairwise joins. The
// defaults were tuned empirically and are hardware-specific.
type CostModel struct {
	// Operands with at most this many pairs are assumed to fit in cache.
	SmallOperand uint64 `json:"smallOperand"`
	// Upper bound on a cross-product estimate.
	CardMax uint64 `json:"cardMax"`
	// Overrides the divisor of individual discount rules, keyed by rule name.
	// Rules that are not listed keep their default divisor.
	Discounts map[string]uint64 `json:"discounts,omitempty"`
}

// Optimizer configures the join-path optimizer.
type Optimizer struct {
	// If true, the passes log every rewritten instruction at Debug level.
	Trace bool `json:"trace"`
}

// Store configures the in-memory store and the programs evaluated against it.
type Store struct {
	// Joins producing more pairs than this fail as infeasible. 0 means no
	// limit.
	MaxJoinResult uint64 `json:"maxJoinResult"`
	// Maximum number of statements in a program, including those added by the
	// optimizer. 0 means no limit.
	MaxStatements int `json:"maxStatements"`
}

// Tracing configures distributed tracing.
type Tracing struct {
	// Only "jaeger" is supported. Its agent is located through the standard
	// JAEGER_* environment variables.
	Type string `json:"type"`
	// Defaults to "joinpath".
	ServiceName string `json:"serviceName,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		CostModel: CostModel{
			SmallOperand: 1024,
			CardMax:      math.MaxUint64,
		},
	}
}
