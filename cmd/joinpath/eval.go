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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ebay/joinpath/mal"
	"github.com/ebay/joinpath/query/exec"
	"github.com/ebay/joinpath/storage"
	"github.com/ebay/joinpath/storage/memstore"
	"github.com/ebay/joinpath/util/clocks"
	log "github.com/sirupsen/logrus"
)

type evalOptions struct {
	// If set, the program is optimized before it runs.
	optimize bool
	// If set, every pairwise join is printed with its cost.
	explain bool
}

// evalFile evaluates the program in 'programFile' against the BATs described
// in 'dataFile'.
func evalFile(ctx context.Context, s *settings, programFile, dataFile string,
	opts evalOptions, out io.Writer) error {

	blk, err := readProgram(programFile)
	if err != nil {
		return err
	}
	f, err := os.Open(dataFile)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := readData(f)
	if err != nil {
		return fmt.Errorf("%v: %v", dataFile, err)
	}
	return eval(ctx, s, blk, data, opts, out)
}

// readData decodes a JSON object mapping input names to lists of
// [head, tail] pairs.
func readData(r io.Reader) (map[string][][2]int64, error) {
	decoder := json.NewDecoder(r)
	var data map[string][][2]int64
	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding data: %v", err)
	}
	if data == nil {
		return nil, fmt.Errorf("data must be a JSON object")
	}
	return data, nil
}

func eval(ctx context.Context, s *settings, blk *mal.Block, data map[string][][2]int64,
	opts evalOptions, out io.Writer) error {

	if opts.optimize {
		actions, err := optimize(ctx, s, blk)
		if err != nil {
			return err
		}
		log.WithField("actions", actions).Debug("Optimized program")
	}
	store := memstore.New(memstore.Options{MaxJoinResult: s.cfg.Store.MaxJoinResult})
	names := make(map[storage.ID]string)
	inputs := make(exec.Env, len(blk.Inputs()))
	for _, v := range blk.Inputs() {
		name := blk.Var(v).Name
		pairs, ok := data[name]
		if !ok {
			return fmt.Errorf("no data for input %v", name)
		}
		t := blk.Type(v)
		if !t.IsBAT {
			return fmt.Errorf("input %v has non-BAT type %v", name, t)
		}
		inputs[v] = store.Put(memstore.NewBAT(t.Head, t.Tail, pairs...))
		names[inputs[v]] = name
	}

	execOpts := exec.Options{
		CostModel: s.costModel,
		Logger:    log.StandardLogger(),
		Trace:     s.trace,
	}
	var explained *explainEvents
	if opts.explain {
		explained = &explainEvents{clock: clocks.Wall}
		execOpts.Events = explained
	}
	res, err := exec.Run(ctx, store, blk, inputs, execOpts)
	if err != nil {
		return err
	}
	defer res.Release()

	for _, p := range blk.Stmts() {
		v := p.Result()
		bat, ok := store.Get(res.Env[v])
		if !ok {
			return fmt.Errorf("result of %v is missing", blk.Var(v).Name)
		}
		names[res.Env[v]] = blk.Var(v).Name
		fmtr.Fprintf(out, "%v:%v %d pairs\n", blk.Var(v).Name, blk.Type(v), bat.Len())
		for _, pair := range bat.Pairs() {
			fmtr.Fprintf(out, "  %v %v\n", pair[0], pair[1])
		}
	}
	if explained != nil {
		fmtr.Fprintf(out, "\n%d pairwise joins:\n", len(explained.events))
		for _, e := range explained.events {
			status := "ok"
			if e.Err != nil {
				status = e.Err.Error()
			}
			fmtr.Fprintf(out, "  %v join(%v, %v) at %d cost %d (%v): %v\n",
				e.Kind, displayName(names, e.Left), displayName(names, e.Right),
				e.Index, e.Cost, e.Rule, status)
		}
	}
	return nil
}

// displayName returns the variable name of a BAT when it is known. Join
// results that are never assigned to a variable print as their ID.
func displayName(names map[storage.ID]string, id storage.ID) string {
	if name, ok := names[id]; ok {
		return name
	}
	return id.String()
}

// explainEvents records the executor's pairwise joins.
type explainEvents struct {
	clock  clocks.Source
	events []exec.JoinCompletedEvent
}

func (e *explainEvents) Clock() clocks.Source {
	return e.clock
}

func (e *explainEvents) JoinCompleted(event exec.JoinCompletedEvent) {
	e.events = append(e.events, event)
}
