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

// Package joinpath rewrites chains of pairwise joins in a program into join
// paths, which the executor evaluates in the cheapest order it can find, and
// shares pairs of operands that several join paths have in common.
package joinpath

import (
	"context"
	"fmt"

	"github.com/ebay/joinpath/mal"
	"github.com/ebay/joinpath/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

// Options control Optimize.
type Options struct {
	// Where traces go. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger
	// If true, every rewritten instruction is logged at Debug level.
	Trace bool
}

// Optimize rewrites the block in place and returns the number of rewrites it
// made. Zero means the block was not changed.
//
// Optimize first folds single-use join chains into join paths. If that made
// any change, it then shares pairs of parameters that occur in several join
// paths. Each pass either completes or leaves the block as it found it: if a
// pass fails, Optimize returns the actions of the passes that completed along
// with an error wrapping the cause, usually mal.ErrAllocation. The block is
// valid either way.
//
// Blocks whose first result carries the "inline" property are left alone;
// they are optimized once inlined into their caller.
func Optimize(ctx context.Context, blk *mal.Block, opts Options) (int, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "optimize join paths")
	span.SetTag("function", blk.Name.String())
	tracing.UpdateMetric(span, metrics.optimizeDurationSeconds)
	defer span.Finish()

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("function", blk.Name)
	var trace logrus.FieldLogger
	if opts.Trace {
		trace = logger
	}

	if isInline(blk) {
		if trace != nil {
			trace.Debug("joinPath skipping inline function")
		}
		return 0, nil
	}

	actions, err := fusePaths(blk, trace)
	if err != nil {
		metrics.rollbacksTotal.WithLabelValues("fuse").Inc()
		logger.WithError(err).Warn("Join path fusion rolled back")
		return 0, fmt.Errorf("fusing join paths in %v: %w", blk.Name, err)
	}
	metrics.actionsTotal.WithLabelValues("fuse").Add(float64(actions))
	if actions == 0 {
		return 0, nil
	}

	shared, err := dedupSubpaths(blk, trace)
	if err != nil {
		metrics.rollbacksTotal.WithLabelValues("subpath").Inc()
		logger.WithError(err).Warn("Join subpath sharing rolled back")
		return actions, fmt.Errorf("sharing join subpaths in %v: %w", blk.Name, err)
	}
	metrics.actionsTotal.WithLabelValues("subpath").Add(float64(shared))
	if trace != nil {
		trace.Debugf("joinPath: %d statements glued, %d subpaths shared", actions, shared)
	}
	span.SetTag("actions", actions+shared)
	return actions + shared, nil
}

// isInline returns true if the block's first statement assigns a variable
// with the inline property.
func isInline(blk *mal.Block) bool {
	if blk.Len() == 0 || blk.Stmt(0).Retc() == 0 {
		return false
	}
	_, inline := blk.Prop(blk.Stmt(0).Result(), mal.PropInline)
	return inline
}
