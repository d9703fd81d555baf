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

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrAllocation is returned when a Block or Arena cannot grow its statement
// list past the Block's statement limit.
var ErrAllocation = errors.New("mal: statement limit exceeded")

// ErrTypeMismatch reports operands whose column types do not chain.
var ErrTypeMismatch = errors.New("mal: type mismatch")

// Block is a program: a function signature, a variable table and an ordered
// list of instructions. Every variable is assigned at most once, either as a
// block input or as the result of exactly one instruction.
type Block struct {
	// Name is the function this block implements, such as "user.main".
	Name   Op
	vars   []Variable
	inputs []VarID
	stmts  []*Instr
	// limit bounds the number of statements. Zero means unlimited.
	limit  int
	nextID int64
}

// NewBlock returns an empty block for function 'name'.
func NewBlock(name Op) *Block {
	return &Block{Name: name}
}

// SetLimit bounds the number of statements the block (and any rewrite of it)
// may hold. Zero means unlimited.
func (b *Block) SetLimit(limit int) {
	b.limit = limit
}

// Limit returns the statement limit set by SetLimit.
func (b *Block) Limit() int {
	return b.limit
}

// NewVar adds a variable to the table. An empty name is replaced by a
// generated "X_<id>" name.
func (b *Block) NewVar(name string, t Type) VarID {
	id := VarID(len(b.vars))
	if name == "" {
		name = fmt.Sprintf("X_%d", id)
	}
	b.vars = append(b.vars, Variable{Name: name, Type: t})
	return id
}

// NewConst adds a constant variable holding 'value'.
func (b *Block) NewConst(value string, t Type) VarID {
	id := VarID(len(b.vars))
	b.vars = append(b.vars, Variable{
		Name:  fmt.Sprintf("C_%d", id),
		Type:  t,
		Const: true,
		Value: value,
	})
	return id
}

// NumVars returns the size of the variable table.
func (b *Block) NumVars() int {
	return len(b.vars)
}

// Var returns the variable with the given id. The returned pointer is only
// valid until the next NewVar call.
func (b *Block) Var(id VarID) *Variable {
	return &b.vars[id]
}

// Type returns the type of variable 'id'.
func (b *Block) Type(id VarID) Type {
	return b.vars[id].Type
}

// SetType changes the type of variable 'id'.
func (b *Block) SetType(id VarID, t Type) {
	b.vars[id].Type = t
}

// Prop returns an annotation on variable 'id'.
func (b *Block) Prop(id VarID, key string) (string, bool) {
	v, ok := b.vars[id].Props[key]
	return v, ok
}

// SetProp annotates variable 'id'.
func (b *Block) SetProp(id VarID, key, value string) {
	if b.vars[id].Props == nil {
		b.vars[id].Props = make(map[string]string)
	}
	b.vars[id].Props[key] = value
}

// Lookup returns the variable named 'name'.
func (b *Block) Lookup(name string) (VarID, bool) {
	for i := range b.vars {
		if b.vars[i].Name == name {
			return VarID(i), true
		}
	}
	return -1, false
}

// AddInput declares 'id' as a block input.
func (b *Block) AddInput(id VarID) {
	b.inputs = append(b.inputs, id)
}

// Inputs returns a copy of the block inputs, in declaration order.
func (b *Block) Inputs() []VarID {
	return append([]VarID(nil), b.inputs...)
}

// IsInput returns true if 'id' is a block input.
func (b *Block) IsInput(id VarID) bool {
	for _, in := range b.inputs {
		if in == id {
			return true
		}
	}
	return false
}

// Append adds an instruction at the end of the block.
func (b *Block) Append(p *Instr) error {
	if b.limit > 0 && len(b.stmts) >= b.limit {
		return ErrAllocation
	}
	b.assignID(p)
	b.stmts = append(b.stmts, p)
	return nil
}

func (b *Block) assignID(p *Instr) {
	if p.ID == 0 {
		b.nextID++
		p.ID = b.nextID
	}
}

// Len returns the number of statements.
func (b *Block) Len() int {
	return len(b.stmts)
}

// Stmts returns the statement list. The caller must not modify the slice;
// rewrites go through an Arena.
func (b *Block) Stmts() []*Instr {
	return b.stmts
}

// Stmt returns the i-th statement.
func (b *Block) Stmt(i int) *Instr {
	return b.stmts[i]
}

// UseCounts returns, for every variable, the number of times it appears as a
// parameter of some statement.
func (b *Block) UseCounts() []int {
	counts := make([]int, len(b.vars))
	for _, p := range b.stmts {
		for i := p.retc; i < len(p.args); i++ {
			counts[p.args[i]]++
		}
	}
	return counts
}

// Validate checks that every parameter is a constant, a block input or the
// result of an earlier statement, and that no variable is assigned twice.
func (b *Block) Validate() error {
	defined := make([]bool, len(b.vars))
	for _, in := range b.inputs {
		if defined[in] {
			return fmt.Errorf("input %v declared twice", b.vars[in].Name)
		}
		defined[in] = true
	}
	for pc, p := range b.stmts {
		if p.freed {
			return fmt.Errorf("statement %d was freed", pc)
		}
		for i := p.retc; i < len(p.args); i++ {
			v := p.args[i]
			if !defined[v] && !b.vars[v].Const {
				return fmt.Errorf("statement %d (%v) uses %v before it is assigned",
					pc, p.Op, b.vars[v].Name)
			}
		}
		for i := 0; i < p.retc; i++ {
			v := p.args[i]
			if defined[v] {
				return fmt.Errorf("statement %d (%v) reassigns %v",
					pc, p.Op, b.vars[v].Name)
			}
			defined[v] = true
		}
	}
	return nil
}

// Clone returns a deep copy of the block. Statement IDs are preserved.
func (b *Block) Clone() *Block {
	c := &Block{
		Name:   b.Name,
		vars:   make([]Variable, len(b.vars)),
		inputs: append([]VarID(nil), b.inputs...),
		stmts:  make([]*Instr, len(b.stmts)),
		limit:  b.limit,
		nextID: b.nextID,
	}
	for i, v := range b.vars {
		c.vars[i] = v
		if v.Props != nil {
			c.vars[i].Props = make(map[string]string, len(v.Props))
			for k, val := range v.Props {
				c.vars[i].Props[k] = val
			}
		}
	}
	for i, p := range b.stmts {
		c.stmts[i] = p.Copy()
		c.stmts[i].ID = p.ID
	}
	return c
}

// InstrString returns statement 'p' in program syntax.
func (b *Block) InstrString(p *Instr) string {
	var w strings.Builder
	p.format(b, &w)
	return w.String()
}

// String returns the whole block in the syntax accepted by Parse.
func (b *Block) String() string {
	var w strings.Builder
	fmt.Fprintf(&w, "function %v(", b.Name)
	for i, in := range b.inputs {
		if i > 0 {
			w.WriteString(", ")
		}
		v := &b.vars[in]
		fmt.Fprintf(&w, "%s:%v%s", v.Name, v.Type, v.propString())
	}
	w.WriteString(");\n")
	for _, p := range b.stmts {
		w.WriteString("    ")
		p.format(b, &w)
		w.WriteByte('\n')
	}
	fmt.Fprintf(&w, "end %v;\n", b.Name)
	return w.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
