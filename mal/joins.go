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

// Op identifies the function an instruction invokes.
type Op struct {
	Module   string
	Function string
}

func (op Op) String() string {
	return op.Module + "." + op.Function
}

// The algebra module hosts the pairwise joins and their fused path variants.
const algebraModule = "algebra"

// Pairwise and path join opcodes.
var (
	OpJoin         = Op{algebraModule, "join"}
	OpLeftJoin     = Op{algebraModule, "leftjoin"}
	OpSemiJoin     = Op{algebraModule, "semijoin"}
	OpJoinPath     = Op{algebraModule, "joinPath"}
	OpLeftJoinPath = Op{algebraModule, "leftjoinPath"}
	OpSemiJoinPath = Op{algebraModule, "semijoinPath"}
)

// JoinKind is the flavor of a join or join path.
type JoinKind int8

// The supported JoinKinds. The zero value is not a valid kind.
const (
	// InnerJoin composes tail(left) with head(right).
	InnerJoin JoinKind = iota + 1
	// LeftJoin is an InnerJoin whose output order tracks the left input.
	LeftJoin
	// SemiJoin restricts the left input to heads also present in the right.
	SemiJoin
)

func (k JoinKind) String() string {
	switch k {
	case InnerJoin:
		return "inner"
	case LeftJoin:
		return "left"
	case SemiJoin:
		return "semi"
	}
	return fmt.Sprintf("JoinKind(%d)", int(k))
}

// PairOp returns the pairwise opcode for the kind.
func (k JoinKind) PairOp() Op {
	switch k {
	case InnerJoin:
		return OpJoin
	case LeftJoin:
		return OpLeftJoin
	case SemiJoin:
		return OpSemiJoin
	}
	panic(fmt.Sprintf("PairOp called on invalid join kind %v", k))
}

// PathOp returns the n-ary path opcode for the kind.
func (k JoinKind) PathOp() Op {
	switch k {
	case InnerJoin:
		return OpJoinPath
	case LeftJoin:
		return OpLeftJoinPath
	case SemiJoin:
		return OpSemiJoinPath
	}
	panic(fmt.Sprintf("PathOp called on invalid join kind %v", k))
}

// JoinOf classifies an opcode. It returns the join kind, whether the opcode is
// the n-ary path variant, and false if op is not a join at all.
func JoinOf(op Op) (kind JoinKind, path bool, ok bool) {
	switch op {
	case OpJoin:
		return InnerJoin, false, true
	case OpLeftJoin:
		return LeftJoin, false, true
	case OpSemiJoin:
		return SemiJoin, false, true
	case OpJoinPath:
		return InnerJoin, true, true
	case OpLeftJoinPath:
		return LeftJoin, true, true
	case OpSemiJoinPath:
		return SemiJoin, true, true
	}
	return 0, false, false
}

// ChainsTo returns true if an operand of type 'left' may precede an operand of
// type 'right' in a join path of this kind. Inner and left joins chain the
// left tail to the right head; semijoins restrict on heads, so they compare
// head against head.
func (k JoinKind) ChainsTo(left, right Type) bool {
	if !left.IsBAT || !right.IsBAT {
		return false
	}
	if k == SemiJoin {
		return Chains(left.Head, right.Head)
	}
	return Chains(left.Tail, right.Head)
}

// ResultType returns the type produced by joining the given chain of operand
// types with this kind.
func (k JoinKind) ResultType(operands []Type) Type {
	if len(operands) == 0 {
		return Type{}
	}
	first, last := operands[0], operands[len(operands)-1]
	if k == SemiJoin {
		return first
	}
	return BAT(first.Head, last.Tail)
}
