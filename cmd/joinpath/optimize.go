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

package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/ebay/joinpath/mal"
	"github.com/ebay/joinpath/query/exec"
	"github.com/ebay/joinpath/query/optimizer/joinpath"
	"github.com/ebay/joinpath/util/graphviz"
	"github.com/ebay/joinpath/util/parallel"
	log "github.com/sirupsen/logrus"
)

// readProgram parses the program in the given file.
func readProgram(filename string) (*mal.Block, error) {
	input, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	blk, err := mal.Parse(string(input))
	if err != nil {
		return nil, fmt.Errorf("%v: %v", filename, err)
	}
	return blk, nil
}

// optimize runs the join-path optimizer over the block, honoring the
// configured statement limit.
func optimize(ctx context.Context, s *settings, blk *mal.Block) (int, error) {
	blk.SetLimit(s.cfg.Store.MaxStatements)
	return joinpath.Optimize(ctx, blk, joinpath.Options{
		Logger: log.StandardLogger(),
		Trace:  s.trace,
	})
}

// optimizeFiles optimizes the given programs concurrently, then writes them to
// 'out' in order. If dotFile is set, the single program is also drawn there.
func optimizeFiles(ctx context.Context, s *settings, filenames []string, dotFile string, out io.Writer) error {
	blocks := make([]*mal.Block, len(filenames))
	actions := make([]int, len(filenames))
	err := parallel.InvokeN(ctx, len(filenames), func(ctx context.Context, i int) error {
		blk, err := readProgram(filenames[i])
		if err != nil {
			return err
		}
		actions[i], err = optimize(ctx, s, blk)
		if err != nil {
			return fmt.Errorf("%v: %v", filenames[i], err)
		}
		blocks[i] = blk
		return nil
	})
	if err != nil {
		return err
	}
	for i, blk := range blocks {
		if len(blocks) > 1 {
			fmtr.Fprintf(out, "# %v: %d actions\n", filenames[i], actions[i])
		}
		fmt.Fprint(out, blk)
	}
	if dotFile != "" {
		err := graphviz.Create(dotFile, func(w io.Writer) {
			mal.WriteDot(w, blocks[0])
		}, graphviz.Options{})
		if err != nil {
			return fmt.Errorf("error drawing %v: %v", dotFile, err)
		}
	}
	return nil
}

// printCostRules lists the cost model's discount rules in priority order.
func printCostRules(s *settings, out io.Writer) {
	fmtr.Fprintf(out, "small operand: %d pairs\n", s.costModel.SmallOperand)
	fmtr.Fprintf(out, "cardinality cap: %d\n", s.costModel.CardMax)
	for _, name := range exec.CostRuleNames() {
		divisor, _ := s.costModel.Divisor(name)
		fmtr.Fprintf(out, "  %-22v /%d\n", name, divisor)
	}
}
