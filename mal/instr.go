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
	"fmt"
	"strings"
)

// Instr is a single instruction. Its argument list holds the result variables
// first (Retc of them), followed by the parameters. An Instr is owned by at
// most one Block; use Copy before changing an instruction that a committed
// Block still refers to.
type Instr struct {
	// ID is assigned when the instruction is first placed in a Block or
	// Arena, and is unique within that Block. Copies start with ID 0.
	ID    int64
	Op    Op
	args  []VarID
	retc  int
	freed bool
	// Props are annotations (such as value range hints) carried along
	// unchanged by the optimizer.
	Props map[string]string
}

// NewInstr returns a new instruction invoking op, assigning 'results' from
// 'params'.
func NewInstr(op Op, results []VarID, params ...VarID) *Instr {
	args := make([]VarID, 0, len(results)+len(params))
	args = append(args, results...)
	args = append(args, params...)
	return &Instr{Op: op, args: args, retc: len(results)}
}

// Retc returns the number of result variables.
func (p *Instr) Retc() int {
	return p.retc
}

// Argc returns the total number of arguments, results included.
func (p *Instr) Argc() int {
	return len(p.args)
}

// Arg returns the i-th argument. Indexes below Retc() are results.
func (p *Instr) Arg(i int) VarID {
	return p.args[i]
}

// SetArg replaces the i-th argument.
func (p *Instr) SetArg(i int, v VarID) {
	p.args[i] = v
}

// Result returns the first result variable.
func (p *Instr) Result() VarID {
	return p.args[0]
}

// Results returns a copy of the result variables.
func (p *Instr) Results() []VarID {
	return append([]VarID(nil), p.args[:p.retc]...)
}

// Params returns a copy of the parameters.
func (p *Instr) Params() []VarID {
	return append([]VarID(nil), p.args[p.retc:]...)
}

// NumParams returns Argc() - Retc().
func (p *Instr) NumParams() int {
	return len(p.args) - p.retc
}

// Param returns the i-th parameter.
func (p *Instr) Param(i int) VarID {
	return p.args[p.retc+i]
}

// PushArg appends a parameter.
func (p *Instr) PushArg(v VarID) {
	p.args = append(p.args, v)
}

// DelArg removes the i-th argument, shifting later arguments left.
func (p *Instr) DelArg(i int) {
	p.args = append(p.args[:i], p.args[i+1:]...)
}

// TruncateParams drops all parameters, keeping the results.
func (p *Instr) TruncateParams() {
	p.args = p.args[:p.retc]
}

// Copy returns a deep copy of the instruction with a zero ID.
func (p *Instr) Copy() *Instr {
	c := &Instr{
		Op:   p.Op,
		args: append(make([]VarID, 0, cap(p.args)), p.args...),
		retc: p.retc,
	}
	if len(p.Props) > 0 {
		c.Props = make(map[string]string, len(p.Props))
		for k, v := range p.Props {
			c.Props[k] = v
		}
	}
	return c
}

// Free releases the instruction's storage. It is safe to call Free more than
// once and on an instruction that was only partially built. A freed
// instruction must not be used again.
func (p *Instr) Free() {
	if p == nil {
		return
	}
	p.args = nil
	p.retc = 0
	p.Props = nil
	p.freed = true
}

// Freed returns true once Free has been called.
func (p *Instr) Freed() bool {
	return p.freed
}

// format writes the instruction in program syntax using the variable names
// from 'b'.
func (p *Instr) format(b *Block, w *strings.Builder) {
	if p.retc > 1 {
		w.WriteByte('(')
	}
	for i := 0; i < p.retc; i++ {
		if i > 0 {
			w.WriteString(", ")
		}
		v := b.Var(p.args[i])
		fmt.Fprintf(w, "%s:%v%s", v.Name, v.Type, v.propString())
	}
	if p.retc > 1 {
		w.WriteByte(')')
	}
	if p.retc > 0 {
		w.WriteString(" := ")
	}
	w.WriteString(p.Op.String())
	w.WriteByte('(')
	for i := p.retc; i < len(p.args); i++ {
		if i > p.retc {
			w.WriteString(", ")
		}
		v := b.Var(p.args[i])
		if v.Const {
			w.WriteString(v.Value)
		} else {
			w.WriteString(v.Name)
		}
	}
	w.WriteString(");")
}
