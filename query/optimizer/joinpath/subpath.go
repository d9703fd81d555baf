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

// dedupSubpaths factors out parameter pairs that would be replaced at least
// twice across the join paths. The first time such a pair is met, a pairwise
// join of it is emitted just before the path that needs it; every
// non-overlapping occurrence of the pair is then replaced by that join's
// result. A path left with two parameters becomes a pairwise join.
//
// If the block's statement limit is exceeded, the block is left unchanged and
// mal.ErrAllocation is returned. Otherwise, dedupSubpaths returns the number
// of pair occurrences it replaced.
func dedupSubpaths(blk *mal.Block, log logrus.FieldLogger) (int, error) {
	stmts := blk.Stmts()
	candidates := collectCandidates(stmts)
	candidates.plan(stmts)
	if !candidates.anyShared() {
		return 0, nil
	}
	arena := blk.Rewrite()
	actions := 0
	for _, p := range stmts {
		out, replaced, err := dedupOne(arena, p, candidates, log)
		if err == nil {
			err = arena.Emit(out)
		}
		if err != nil {
			if out != nil && out != p {
				out.Free()
			}
			arena.Abort()
			return 0, err
		}
		actions += replaced
	}
	if actions == 0 {
		arena.Abort()
		return 0, nil
	}
	arena.Commit()
	return actions, nil
}

// dedupOne replaces the shared pairs in p's parameters. It returns p itself if
// nothing was replaced, or a rewritten copy. Joins for pairs not seen before
// are emitted into the arena.
func dedupOne(arena *mal.Arena, p *mal.Instr, candidates *candidateSet,
	log logrus.FieldLogger) (*mal.Instr, int, error) {

	kind, path, ok := mal.JoinOf(p.Op)
	if !ok || !path {
		return p, 0, nil
	}
	blk := arena.Block()
	cur := p
	replaced := 0
	for j := 0; j+1 < cur.NumParams(); j++ {
		c := candidates.shared(candidateKey{kind: kind, left: cur.Param(j), right: cur.Param(j + 1)})
		if c == nil {
			continue
		}
		if !c.materialized {
			t := kind.ResultType([]mal.Type{blk.Type(c.left), blk.Type(c.right)})
			v := arena.NewVar("", t)
			join := mal.NewInstr(kind.PairOp(), []mal.VarID{v}, c.left, c.right)
			if err := arena.Emit(join); err != nil {
				join.Free()
				return cur, 0, err
			}
			c.materialized, c.result = true, v
			if log != nil {
				log.Debugf("joinPath shared subpath %s", blk.InstrString(join))
			}
		}
		if cur == p {
			cur = p.Copy()
		}
		at := cur.Retc() + j
		cur.DelArg(at + 1)
		cur.SetArg(at, c.result)
		replaced++
	}
	if cur == p {
		return p, 0, nil
	}
	if cur.NumParams() == 2 {
		cur.Op = kind.PairOp()
	}
	if log != nil {
		log.Debugf("joinPath rewritten %s", blk.InstrString(cur))
	}
	return cur, replaced, nil
}
