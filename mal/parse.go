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
	"strconv"

	p "github.com/vektah/goparsify"
)

// program is the root parser used by Parse. It produces a *programAST.
var program p.Parser

// varDecl is a variable as written in a signature or on the left of ':='.
type varDecl struct {
	name  string
	typ   *Type
	props map[string]string
}

// argTerm is one parameter of a statement: a variable name or a literal.
type argTerm struct {
	name    string
	isLit   bool
	literal string
	litType BaseType
}

type assignStmt struct {
	results []varDecl
	op      Op
	args    []argTerm
}

type programAST struct {
	name   Op
	params []varDecl
	stmts  []assignStmt
	end    Op
}

func init() {
	// If you need to debug what the parser is doing, build with -tags debug;
	// see parser_debug.go.
	ident := p.Chars("A-Za-z0-9_", 1)
	opName := p.Seq(ident, ".", ident).Map(func(n *p.Result) {
		n.Result = Op{Module: n.Child[0].Token, Function: n.Child[2].Token}
	})

	batType := p.Seq("bat", "[", ":", baseType(), ",", ":", baseType(), "]").Map(func(n *p.Result) {
		t := BAT(n.Child[3].Result.(BaseType), n.Child[6].Result.(BaseType))
		n.Result = &t
	})
	scalarType := baseType().Map(func(n *p.Result) {
		t := Scalar(n.Result.(BaseType))
		n.Result = &t
	})
	typ := p.Any(batType, scalarType)

	propValue := p.Chars("A-Za-z0-9_.\\-", 1)
	prop := p.Seq(ident, p.Maybe(p.Seq("=", propValue)))
	props := p.Seq("{", p.Some(prop, ","), "}").Map(func(n *p.Result) {
		m := make(map[string]string, len(n.Child[1].Child))
		for _, c := range n.Child[1].Child {
			val := ""
			if len(c.Child[1].Child) == 2 {
				val = c.Child[1].Child[1].Token
			}
			m[c.Child[0].Token] = val
		}
		n.Result = m
	})

	decl := p.Seq(ident, p.Maybe(p.Seq(":", typ)), p.Maybe(props)).Map(func(n *p.Result) {
		d := varDecl{name: n.Child[0].Token}
		// An unmatched Maybe may still leave partial children behind.
		if len(n.Child[1].Child) == 2 {
			if t, ok := n.Child[1].Child[1].Result.(*Type); ok {
				d.typ = t
			}
		}
		if m, ok := n.Child[2].Result.(map[string]string); ok {
			d.props = m
		}
		n.Result = d
	})
	declList := func(n *p.Result) {
		decls := make([]varDecl, len(n.Child))
		for i, c := range n.Child {
			decls[i] = c.Result.(varDecl)
		}
		n.Result = decls
	}

	strArg := p.StringLit(`"`).Map(func(n *p.Result) {
		n.Result = argTerm{isLit: true, literal: strconv.Quote(n.Token), litType: TypeStr}
	})
	numArg := p.NumberLit().Map(func(n *p.Result) {
		switch v := n.Result.(type) {
		case int64:
			n.Result = argTerm{isLit: true, literal: strconv.FormatInt(v, 10), litType: TypeInt}
		case float64:
			n.Result = argTerm{isLit: true, literal: strconv.FormatFloat(v, 'g', -1, 64), litType: TypeDbl}
		default:
			panic(fmt.Sprintf("unsupported number literal: '%s' %v", n.Token, v))
		}
	})
	varArg := ident.Map(func(n *p.Result) {
		n.Result = argTerm{name: n.Token}
	})
	arg := p.Any(strArg, numArg, varArg)

	results := p.Any(
		p.Seq("(", p.Many(decl, ","), ")").Map(func(n *p.Result) {
			declList(&n.Child[1])
			n.Result = n.Child[1].Result
		}),
		decl.Map(func(n *p.Result) {
			n.Result = []varDecl{n.Result.(varDecl)}
		}))
	assign := p.Seq(results, ":=", opName, "(", p.Some(arg, ","), ")", ";").Map(func(n *p.Result) {
		stmt := assignStmt{
			results: n.Child[0].Result.([]varDecl),
			op:      n.Child[2].Result.(Op),
			args:    make([]argTerm, len(n.Child[4].Child)),
		}
		for i, c := range n.Child[4].Child {
			stmt.args[i] = c.Result.(argTerm)
		}
		n.Result = stmt
	})

	params := p.Seq("(", p.Some(decl, ","), ")").Map(func(n *p.Result) {
		declList(&n.Child[1])
		n.Result = n.Child[1].Result
	})
	header := p.Seq("function", opName, params, ";")
	end := p.Seq("end", opName, ";")

	program = p.Seq(header, p.Some(assign), end).Map(func(n *p.Result) {
		ast := &programAST{
			name:   n.Child[0].Child[1].Result.(Op),
			params: n.Child[0].Child[2].Result.([]varDecl),
			stmts:  make([]assignStmt, len(n.Child[1].Child)),
			end:    n.Child[2].Child[1].Result.(Op),
		}
		for i, c := range n.Child[1].Child {
			ast.stmts[i] = c.Result.(assignStmt)
		}
		n.Result = ast
	})
}

// baseType parses the name of a BaseType, such as "oid".
func baseType() p.Parser {
	return p.NewParser("baseType", func(ps *p.State, node *p.Result) {
		ps.WS(ps)
		end := ps.Pos
		for end < len(ps.Input) && isIdentChar(ps.Input[end]) {
			end++
		}
		t, ok := ParseBaseType(ps.Input[ps.Pos:end])
		if !ok {
			ps.ErrorHere("base type")
			return
		}
		node.Token = ps.Input[ps.Pos:end]
		node.Result = t
		ps.Pos = end
	})
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// malWS is the whitespace parser for programs. Whitespace is ' ', \t, \r and
// \n; '#' starts a comment that runs to the end of the line.
func malWS(s *p.State) {
	for s.Pos < len(s.Input) {
		switch s.Input[s.Pos] {
		case ' ', '\t', '\r', '\n':
			s.Pos++
		case '#':
			for s.Pos < len(s.Input) && s.Input[s.Pos] != '\n' {
				s.Pos++
			}
		default:
			return
		}
	}
}

// Parse builds a Block from its textual form, the same form produced by
// Block.String:
//
//	function user.main(A:bat[:oid,:oid], B:bat[:oid,:str]);
//	    C := algebra.join(A, B);
//	end user.main;
//
// The result type of a join may be left out; it is derived from the operands.
// Other statements without a declared result type get type "any". Parse
// returns an error if the text is malformed or violates single assignment.
func Parse(input string) (*Block, error) {
	res, err := p.Run(program, input, malWS)
	if err != nil {
		return nil, fmt.Errorf("mal: parse error: %v", err)
	}
	return res.(*programAST).build()
}

func (ast *programAST) build() (*Block, error) {
	if ast.end != ast.name {
		return nil, fmt.Errorf("mal: function %v closed by 'end %v'", ast.name, ast.end)
	}
	b := NewBlock(ast.name)
	names := make(map[string]VarID)
	define := func(d varDecl, fallback Type) (VarID, error) {
		if _, exists := names[d.name]; exists {
			return 0, fmt.Errorf("mal: %v: variable %v assigned twice", ast.name, d.name)
		}
		t := fallback
		if d.typ != nil {
			t = *d.typ
		}
		id := b.NewVar(d.name, t)
		for k, v := range d.props {
			b.SetProp(id, k, v)
		}
		names[d.name] = id
		return id, nil
	}
	for _, d := range ast.params {
		id, err := define(d, Scalar(TypeAny))
		if err != nil {
			return nil, err
		}
		b.AddInput(id)
	}
	for _, stmt := range ast.stmts {
		params := make([]VarID, len(stmt.args))
		types := make([]Type, len(stmt.args))
		for i, a := range stmt.args {
			if a.isLit {
				params[i] = b.NewConst(a.literal, Scalar(a.litType))
			} else {
				id, ok := names[a.name]
				if !ok {
					return nil, fmt.Errorf("mal: %v: %v uses undefined variable %v",
						ast.name, stmt.op, a.name)
				}
				params[i] = id
			}
			types[i] = b.Type(params[i])
		}
		fallback := Scalar(TypeAny)
		if kind, _, ok := JoinOf(stmt.op); ok && allBATs(types) {
			fallback = kind.ResultType(types)
		}
		results := make([]VarID, len(stmt.results))
		for i, d := range stmt.results {
			id, err := define(d, fallback)
			if err != nil {
				return nil, err
			}
			results[i] = id
		}
		if err := b.Append(NewInstr(stmt.op, results, params...)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func allBATs(types []Type) bool {
	for _, t := range types {
		if !t.IsBAT {
			return false
		}
	}
	return len(types) > 0
}
