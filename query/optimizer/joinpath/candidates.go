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

package joinpath

import "github.com/ebay/joinpath/mal"

// candidateKey identifies an adjacent pair of join-path parameters.
type candidateKey struct {
	kind  mal.JoinKind
	left  mal.VarID
	right mal.VarID
}

// A candidate is a pair of parameters that may be joined once and shared.
type candidate struct {
	candidateKey
	// Number of occurrences among the scanned join paths.
	count int
	// Set by plan when replacing earlier pairs hides so many occurrences that
	// fewer than two would be replaced.
	dropped bool
	// Set once the pair has been materialized as its own join instruction,
	// whose result is 'result'.
	materialized bool
	result       mal.VarID
}

// candidateSet holds the candidates in the order they were first seen.
type candidateSet struct {
	byKey map[candidateKey]*candidate
	order []*candidate
}

// collectCandidates counts every adjacent parameter pair of every join-path
// instruction.
func collectCandidates(stmts []*mal.Instr) *candidateSet {
	set := &candidateSet{byKey: make(map[candidateKey]*candidate)}
	for _, p := range stmts {
		kind, path, ok := mal.JoinOf(p.Op)
		if !ok || !path {
			continue
		}
		for j := 0; j+1 < p.NumParams(); j++ {
			set.add(candidateKey{kind: kind, left: p.Param(j), right: p.Param(j + 1)})
		}
	}
	return set
}

func (set *candidateSet) add(key candidateKey) {
	c, ok := set.byKey[key]
	if !ok {
		c = &candidate{candidateKey: key}
		set.byKey[key] = c
		set.order = append(set.order, c)
	}
	c.count++
}

// plan drops the candidates that would be replaced fewer than two times.
// Paths are walked left to right; once a pair is replaced, its right parameter
// cannot start another pair, so an overlapping occurrence is hidden. Dropping
// a candidate can uncover occurrences of others, so the walk repeats until no
// more candidates are dropped.
func (set *candidateSet) plan(stmts []*mal.Instr) {
	replacements := make(map[*candidate]int, len(set.order))
	for {
		for c := range replacements {
			delete(replacements, c)
		}
		for _, p := range stmts {
			kind, path, ok := mal.JoinOf(p.Op)
			if !ok || !path {
				continue
			}
			for j := 0; j+1 < p.NumParams(); j++ {
				c := set.shared(candidateKey{kind: kind, left: p.Param(j), right: p.Param(j + 1)})
				if c != nil {
					replacements[c]++
					j++
				}
			}
		}
		changed := false
		for _, c := range set.order {
			if c.count > 1 && !c.dropped && replacements[c] < 2 {
				c.dropped = true
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// shared returns the candidate for the pair if it occurs more than once and
// was not dropped by plan, or nil otherwise.
func (set *candidateSet) shared(key candidateKey) *candidate {
	c := set.byKey[key]
	if c == nil || c.count < 2 || c.dropped {
		return nil
	}
	return c
}

// anyShared returns true if some pair is still shared.
func (set *candidateSet) anyShared() bool {
	for _, c := range set.order {
		if c.count > 1 && !c.dropped {
			return true
		}
	}
	return false
}
