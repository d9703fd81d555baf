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
	"io"
	"strings"
)

// WriteDot writes the dataflow graph of the block in Graphviz dot syntax.
// Block inputs are drawn as ellipses, statements as boxes, and each edge is
// labeled with the variable flowing along it. Errors from 'w' are ignored.
func WriteDot(w io.Writer, b *Block) {
	fmt.Fprintf(w, "digraph %q {\n", b.Name.String())
	fmt.Fprintf(w, "\tnode [shape=box fontname=monospace];\n")
	producer := make(map[VarID]string)
	for _, in := range b.inputs {
		node := fmt.Sprintf("in%d", in)
		v := b.Var(in)
		fmt.Fprintf(w, "\t%s [shape=ellipse label=%q];\n", node, v.Name+":"+v.Type.String())
		producer[in] = node
	}
	for _, p := range b.stmts {
		node := fmt.Sprintf("s%d", p.ID)
		names := make([]string, p.Retc())
		for i := range names {
			names[i] = b.Var(p.Arg(i)).Name
		}
		fmt.Fprintf(w, "\t%s [label=%q];\n", node,
			strings.Join(names, ", ")+" := "+p.Op.String())
		for i := p.Retc(); i < p.Argc(); i++ {
			arg := p.Arg(i)
			if from, ok := producer[arg]; ok {
				fmt.Fprintf(w, "\t%s -> %s [label=%q];\n", from, node, b.Var(arg).Name)
			}
		}
		for i := 0; i < p.Retc(); i++ {
			producer[p.Arg(i)] = node
		}
	}
	fmt.Fprintf(w, "}\n")
}
