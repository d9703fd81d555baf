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

package mal

import "fmt"

// An Arena builds a replacement statement list for a Block. Nothing the Arena
// does is visible through the Block's statement list until Commit; Abort
// restores the variable table and frees every instruction the rewrite
// created, leaving the Block exactly as it was before Rewrite was called.
//
// Statements carried over unchanged from the Block may be emitted as is.
// Statements that need changing must be copied first.
type Arena struct {
	blk   *Block
	stmts []*Instr
	// IDs of the statements in the Block when the rewrite started.
	oldIDs map[int64]struct{}
	// Size of the variable table when the rewrite started.
	nvars int
	// Original types of pre-existing variables changed through SetType.
	oldTypes map[VarID]Type
	done     bool
}

// Rewrite starts building a replacement statement list for the block. The
// caller must finish with exactly one of Commit or Abort.
func (b *Block) Rewrite() *Arena {
	a := &Arena{
		blk:      b,
		stmts:    make([]*Instr, 0, len(b.stmts)),
		oldIDs:   make(map[int64]struct{}, len(b.stmts)),
		nvars:    len(b.vars),
		oldTypes: make(map[VarID]Type),
	}
	for _, p := range b.stmts {
		a.oldIDs[p.ID] = struct{}{}
	}
	return a
}

// Block returns the block being rewritten.
func (a *Arena) Block() *Block {
	return a.blk
}

// Emit appends a statement to the replacement list. It returns ErrAllocation
// if the list would exceed the Block's statement limit; the statement is not
// added in that case and remains owned by the caller.
func (a *Arena) Emit(p *Instr) error {
	if a.done {
		panic("Emit called on a finished Arena")
	}
	if a.blk.limit > 0 && len(a.stmts) >= a.blk.limit {
		return ErrAllocation
	}
	a.blk.assignID(p)
	a.stmts = append(a.stmts, p)
	return nil
}

// Len returns the number of statements emitted so far.
func (a *Arena) Len() int {
	return len(a.stmts)
}

// Stmt returns the i-th emitted statement.
func (a *Arena) Stmt(i int) *Instr {
	return a.stmts[i]
}

// NewVar adds a variable to the Block's table. It is removed again on Abort.
func (a *Arena) NewVar(name string, t Type) VarID {
	return a.blk.NewVar(name, t)
}

// SetType changes a variable's type. The change is undone on Abort.
func (a *Arena) SetType(id VarID, t Type) {
	if int(id) < a.nvars {
		if _, seen := a.oldTypes[id]; !seen {
			a.oldTypes[id] = a.blk.vars[id].Type
		}
	}
	a.blk.vars[id].Type = t
}

// Commit swaps the replacement list into the Block. Statements of the old
// list that were not carried over are freed.
func (a *Arena) Commit() {
	a.finish()
	kept := make(map[int64]struct{}, len(a.stmts))
	for _, p := range a.stmts {
		kept[p.ID] = struct{}{}
	}
	for _, p := range a.blk.stmts {
		if _, ok := kept[p.ID]; !ok {
			p.Free()
		}
	}
	a.blk.stmts = a.stmts
	a.stmts = nil
}

// Abort discards the replacement list. Statements created during the rewrite
// are freed, variables added during the rewrite are removed and changed types
// are restored.
func (a *Arena) Abort() {
	a.finish()
	for _, p := range a.stmts {
		if _, old := a.oldIDs[p.ID]; !old {
			p.Free()
		}
	}
	a.stmts = nil
	a.blk.vars = a.blk.vars[:a.nvars]
	for id, t := range a.oldTypes {
		a.blk.vars[id].Type = t
	}
}

func (a *Arena) finish() {
	if a.done {
		panic(fmt.Sprintf("Arena for %v finished twice", a.blk.Name))
	}
	a.done = true
}
