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

// Package mal defines the intermediate program that the join-path optimizer
// rewrites and the executor evaluates. A program is a Block: an ordered list of
// instructions over a single-assignment table of typed variables. Columnar
// variables are binary associations (BATs) with a head and a tail column type.
package mal

import (
	"fmt"
	"strings"
)

// BaseType is the type of a scalar value or of one column of a BAT.
type BaseType int8

// The supported base types.
const (
	TypeAny BaseType = iota
	TypeVoid
	TypeBit
	TypeInt
	TypeLng
	TypeDbl
	TypeOid
	TypeStr
)

var baseTypeNames = [...]string{
	TypeAny:  "any",
	TypeVoid: "void",
	TypeBit:  "bit",
	TypeInt:  "int",
	TypeLng:  "lng",
	TypeDbl:  "dbl",
	TypeOid:  "oid",
	TypeStr:  "str",
}

func (t BaseType) String() string {
	if int(t) < 0 || int(t) >= len(baseTypeNames) {
		return fmt.Sprintf("BaseType(%d)", int(t))
	}
	return baseTypeNames[t]
}

// ParseBaseType returns the BaseType with the given name. It returns false if
// no such type exists.
func ParseBaseType(name string) (BaseType, bool) {
	for i, n := range baseTypeNames {
		if n == name {
			return BaseType(i), true
		}
	}
	return TypeAny, false
}

// Chains returns true if a column of type 'from' may be joined against a column
// of type 'to'. A dense (void) column holds implicit oids, so void and oid
// columns chain in either direction.
func Chains(from, to BaseType) bool {
	switch {
	case from == to:
		return true
	case from == TypeOid && to == TypeVoid:
		return true
	case from == TypeVoid && to == TypeOid:
		return true
	}
	return false
}

// Type describes a variable. Scalars only use Tail; BATs use Head and Tail.
type Type struct {
	IsBAT bool
	Head  BaseType
	Tail  BaseType
}

// Scalar returns the Type of a scalar of base type t.
func Scalar(t BaseType) Type {
	return Type{Tail: t}
}

// BAT returns the Type of a binary association with the given column types.
func BAT(head, tail BaseType) Type {
	return Type{IsBAT: true, Head: head, Tail: tail}
}

// String returns the type in program syntax, such as "bat[:oid,:int]" or "lng".
func (t Type) String() string {
	if t.IsBAT {
		return fmt.Sprintf("bat[:%v,:%v]", t.Head, t.Tail)
	}
	return t.Tail.String()
}

// VarID identifies a variable within a Block.
type VarID int

// Variable is an entry in a Block's variable table.
type Variable struct {
	Name string
	Type Type
	// Set for constants introduced by literal arguments. Value holds the
	// literal in program syntax (strings keep their quotes).
	Const bool
	Value string
	// Annotations opaque to the optimizer, other than PropInline.
	Props map[string]string
}

// PropInline marks a function's first result when the function is going to be
// inlined at its call sites. Such blocks are left alone by the optimizer.
const PropInline = "inline"

func (v *Variable) propString() string {
	if len(v.Props) == 0 {
		return ""
	}
	keys := sortedKeys(v.Props)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		if val := v.Props[k]; val != "" {
			b.WriteByte('=')
			b.WriteString(val)
		}
	}
	b.WriteByte('}')
	return b.String()
}
