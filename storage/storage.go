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

// Package storage defines the contract between the join-path executor and the
// layer that holds columnar operands (BATs).
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ebay/joinpath/mal"
)

// ErrNotFound is returned by Store.Resolve when no BAT has the given ID.
var ErrNotFound = errors.New("storage: operand not found")

// ErrJoinInfeasible is returned by Store.Join when a pairwise join cannot be
// carried out, for example because its result would be too large. The
// executor treats it as a per-pair failure and tries other pairs first.
var ErrJoinInfeasible = errors.New("storage: join infeasible")

// ID identifies a BAT within a Store. The zero ID is never assigned.
type ID uint64

func (id ID) String() string {
	return fmt.Sprintf("bat#%d", uint64(id))
}

// Props are the physical properties of a BAT. The cost model ranks candidate
// joins using nothing but these.
type Props struct {
	// Number of (head, tail) pairs.
	Count uint64
	// Column base types.
	Head mal.BaseType
	Tail mal.BaseType
	// No value occurs twice in the column.
	HeadUnique bool
	TailUnique bool
	// The column holds consecutive ascending oids.
	HeadDense bool
	TailDense bool
	// The column is sorted ascending.
	HeadOrdered bool
	TailOrdered bool
}

// Type returns the BAT type described by the properties.
func (p Props) Type() mal.Type {
	return mal.BAT(p.Head, p.Tail)
}

// An Operand is a handle to a BAT. Every Operand returned by a Store holds one
// reference, which must be given back with exactly one call to Release.
type Operand interface {
	ID() ID
	Props() Props
}

// A Store resolves, joins and releases BATs.
type Store interface {
	// Resolve acquires a handle to the BAT with the given ID. It returns an
	// error wrapping ErrNotFound if there is none.
	Resolve(ctx context.Context, id ID) (Operand, error)
	// Join computes the pairwise join of left and right with the given kind
	// and returns a handle to the result. The inputs are not released.
	// sizeHint is an estimate of the result cardinality, 0 if unknown. On
	// error, the returned operand should be nil; callers release it if it is
	// not.
	Join(ctx context.Context, left, right Operand, kind mal.JoinKind, sizeHint uint64) (Operand, error)
	// Release gives back the reference held by the handle. The handle must not
	// be used afterwards.
	Release(op Operand)
}
