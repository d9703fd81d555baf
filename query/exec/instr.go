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

// Package exec evaluates join instructions of a program against a store.
package exec

import (
	"context"
	"fmt"

	"github.com/ebay/joinpath/mal"
	"github.com/ebay/joinpath/storage"
)

// Env binds program variables to BATs in a store.
type Env map[mal.VarID]storage.ID

// EvalInstr evaluates a single join or join-path instruction. Its parameters
// are resolved through 'env', and their types are checked to chain before any
// join runs. The caller owns the returned operand.
//
// If a parameter is unbound or cannot be resolved, EvalInstr returns an error
// wrapping storage.ErrNotFound; if adjacent parameters do not chain, an error
// wrapping mal.ErrTypeMismatch. Any handles acquired so far are released
// first.
func EvalInstr(ctx context.Context, store storage.Store, blk *mal.Block, p *mal.Instr,
	env Env, opts Options) (storage.Operand, error) {

	kind, _, ok := mal.JoinOf(p.Op)
	if !ok {
		return nil, fmt.Errorf("cannot evaluate %v: not a join", p.Op)
	}
	operands := make([]storage.Operand, 0, p.NumParams())
	releaseAll := func() {
		for _, op := range operands {
			store.Release(op)
		}
	}
	for i := 0; i < p.NumParams(); i++ {
		v := p.Param(i)
		id, bound := env[v]
		if !bound {
			releaseAll()
			return nil, fmt.Errorf("%v: %w: variable %v is not bound",
				p.Op, storage.ErrNotFound, blk.Var(v).Name)
		}
		op, err := store.Resolve(ctx, id)
		if err != nil {
			releaseAll()
			return nil, fmt.Errorf("%v: resolving %v: %w", p.Op, blk.Var(v).Name, err)
		}
		if i > 0 {
			prev := operands[i-1].Props().Type()
			if !kind.ChainsTo(prev, op.Props().Type()) {
				store.Release(op)
				releaseAll()
				return nil, fmt.Errorf("%v: %w: %v of type %v cannot follow %v of type %v",
					p.Op, mal.ErrTypeMismatch, blk.Var(v).Name, op.Props().Type(),
					blk.Var(p.Param(i-1)).Name, prev)
			}
		}
		operands = append(operands, op)
	}
	return EvaluateJoinPath(ctx, store, operands, kind, opts)
}

// Results holds the operands computed by Run.
type Results struct {
	store storage.Store
	// Env binds the block's inputs and every computed variable.
	Env  Env
	held []storage.Operand
}

// Release gives back the handles to every computed operand. The IDs in Env
// that Run added may no longer be resolved afterwards.
func (res *Results) Release() {
	for _, op := range res.held {
		res.store.Release(op)
	}
	res.held = nil
}

// Run evaluates every statement of the block in order. 'inputs' must bind
// the block's inputs. Every statement must be a join or a join path. The
// caller must Release the returned Results.
func Run(ctx context.Context, store storage.Store, blk *mal.Block, inputs Env, opts Options) (*Results, error) {
	res := &Results{
		store: store,
		Env:   make(Env, len(inputs)+blk.Len()),
	}
	for v, id := range inputs {
		res.Env[v] = id
	}
	for _, v := range blk.Inputs() {
		if _, ok := res.Env[v]; !ok {
			return nil, fmt.Errorf("%w: input %v is not bound", storage.ErrNotFound, blk.Var(v).Name)
		}
	}
	for _, p := range blk.Stmts() {
		if p.Retc() != 1 {
			res.Release()
			return nil, fmt.Errorf("cannot evaluate %v: expected 1 result, got %d", blk.InstrString(p), p.Retc())
		}
		op, err := EvalInstr(ctx, store, blk, p, res.Env, opts)
		if err != nil {
			res.Release()
			return nil, err
		}
		res.held = append(res.held, op)
		res.Env[p.Result()] = op.ID()
	}
	return res, nil
}
