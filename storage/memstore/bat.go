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

package memstore

import (
	"sort"

	"github.com/ebay/joinpath/mal"
	"github.com/ebay/joinpath/storage"
)

// A BAT is a binary association table held in memory: Head[i] is associated
// with Tail[i]. Every base type is represented by int64 values; strings and
// doubles are expected to be dictionary encoded by the caller.
type BAT struct {
	HeadType mal.BaseType
	TailType mal.BaseType
	Head     []int64
	Tail     []int64
}

// NewBAT returns a BAT with the given column types and (head, tail) pairs.
func NewBAT(head, tail mal.BaseType, pairs ...[2]int64) *BAT {
	b := &BAT{
		HeadType: head,
		TailType: tail,
		Head:     make([]int64, len(pairs)),
		Tail:     make([]int64, len(pairs)),
	}
	for i, pair := range pairs {
		b.Head[i], b.Tail[i] = pair[0], pair[1]
	}
	return b
}

// Len returns the number of pairs in the BAT.
func (b *BAT) Len() int {
	return len(b.Head)
}

// Pairs returns the (head, tail) pairs of the BAT in storage order.
func (b *BAT) Pairs() [][2]int64 {
	pairs := make([][2]int64, len(b.Head))
	for i := range b.Head {
		pairs[i] = [2]int64{b.Head[i], b.Tail[i]}
	}
	return pairs
}

// SortedPairs returns the pairs of the BAT ordered by head, then tail. It's
// used to compare BATs whose storage order is not significant.
func (b *BAT) SortedPairs() [][2]int64 {
	pairs := b.Pairs()
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}

// props derives the physical properties of the BAT from its contents.
func (b *BAT) props() storage.Props {
	return storage.Props{
		Count:       uint64(len(b.Head)),
		Head:        b.HeadType,
		Tail:        b.TailType,
		HeadUnique:  unique(b.Head),
		TailUnique:  unique(b.Tail),
		HeadDense:   oidLike(b.HeadType) && dense(b.Head),
		TailDense:   oidLike(b.TailType) && dense(b.Tail),
		HeadOrdered: ordered(b.Head),
		TailOrdered: ordered(b.Tail),
	}
}

func oidLike(t mal.BaseType) bool {
	return t == mal.TypeOid || t == mal.TypeVoid
}

func unique(col []int64) bool {
	seen := make(map[int64]struct{}, len(col))
	for _, v := range col {
		if _, dup := seen[v]; dup {
			return false
		}
		seen[v] = struct{}{}
	}
	return true
}

func dense(col []int64) bool {
	for i := 1; i < len(col); i++ {
		if col[i] != col[i-1]+1 {
			return false
		}
	}
	return true
}

func ordered(col []int64) bool {
	for i := 1; i < len(col); i++ {
		if col[i] < col[i-1] {
			return false
		}
	}
	return true
}
