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
	"github.com/ebay/joinpath/mal"
	"github.com/sirupsen/logrus"
)

// fusePaths folds chains of joins into join paths. When a parameter of a join
// is the result of an earlier join of the same kind, and nothing else uses
// that result, the earlier join's parameters take its place. The earlier join
// stays in the block; it is dead code afterwards.
//
// A fusion whose parameters would not chain is dropped, and the join is kept
// as it was. If the block's statement limit is exceeded, the block is left
// unchanged and mal.ErrAllocation is returned. Otherwise, fusePaths returns
// the number of instructions it rewrote.
func fusePaths(blk *mal.Block, log logrus.FieldLogger) (int, error) {
	stmts := blk.Stmts()
	useCount := blk.UseCounts()
	// Index of the emitted statement that last assigned each variable.
	lastProducer := make(map[mal.VarID]int)
	arena := blk.Rewrite()
	actions := 0
	for _, p := range stmts {
		out := p
		if q := fuseOne(arena, p, lastProducer, useCount, log); q != nil {
			out = q
		}
		if err := arena.Emit(out); err != nil {
			if out != p {
				out.Free()
			}
			arena.Abort()
			return 0, err
		}
		if out != p {
			actions++
		}
		for _, v := range out.Results() {
			lastProducer[v] = arena.Len() - 1
		}
	}
	if actions == 0 {
		arena.Abort()
		return 0, nil
	}
	arena.Commit()
	return actions, nil
}

// fuseOne returns a copy of p with the parameters of its single-use join
// producers spliced in, or nil if p is not a pairwise join, nothing could be
// spliced, or the resulting parameters would not chain.
func fuseOne(arena *mal.Arena, p *mal.Instr, lastProducer map[mal.VarID]int,
	useCount []int, log logrus.FieldLogger) *mal.Instr {

	kind, path, ok := mal.JoinOf(p.Op)
	if !ok || path || p.Retc() != 1 {
		return nil
	}
	q := p.Copy()
	q.TruncateParams()
	for j := 0; j < p.NumParams(); j++ {
		arg := p.Param(j)
		if producer := compatibleProducer(arena, kind, arg, lastProducer, useCount); producer != nil {
			for k := 0; k < producer.NumParams(); k++ {
				q.PushArg(producer.Param(k))
			}
			continue
		}
		q.PushArg(arg)
	}
	if q.Argc() <= p.Argc() {
		q.Free()
		return nil
	}

	blk := arena.Block()
	types := make([]mal.Type, q.NumParams())
	for j := range types {
		types[j] = blk.Type(q.Param(j))
	}
	for j := 0; j+1 < len(types); j++ {
		if !kind.ChainsTo(types[j], types[j+1]) {
			if log != nil {
				log.WithFields(logrus.Fields{
					"left":  types[j],
					"right": types[j+1],
				}).Debugf("joinPath type mismatch, keeping %s", blk.InstrString(p))
			}
			q.Free()
			return nil
		}
	}
	arena.SetType(q.Result(), kind.ResultType(types))
	if q.NumParams() > 2 {
		q.Op = kind.PathOp()
	}
	if log != nil {
		log.Debugf("joinPath new instruction %s", blk.InstrString(q))
	}
	return q
}

// compatibleProducer returns the emitted statement that assigns v if it's a
// join or join path of the given kind and v is used exactly once.
func compatibleProducer(arena *mal.Arena, kind mal.JoinKind, v mal.VarID,
	lastProducer map[mal.VarID]int, useCount []int) *mal.Instr {

	idx, ok := lastProducer[v]
	if !ok || useCount[v] != 1 {
		return nil
	}
	r := arena.Stmt(idx)
	rkind, _, ok := mal.JoinOf(r.Op)
	if !ok || rkind != kind || r.Retc() != 1 {
		return nil
	}
	return r
}
