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

package exec

import (
	"fmt"
	"math"
	"testing"

	"github.com/ebay/joinpath/config"
	"github.com/ebay/joinpath/mal"
	"github.com/ebay/joinpath/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Cost_example(t *testing.T) {
	m := DefaultCostModel()
	a := storage.Props{Count: 1000, TailUnique: true}
	b := storage.Props{Count: 10, HeadUnique: true}
	c := storage.Props{Count: 500}
	ab := m.Cost(a, b, mal.InnerJoin)
	bc := m.Cost(b, c, mal.InnerJoin)
	assert.Equal(t, uint64(10/3), ab)
	assert.Equal(t, uint64(5000/3), bc)
	assert.True(t, ab < bc)
}

func Test_Cost_baseEstimate(t *testing.T) {
	m := DefaultCostModel()
	tests := []struct {
		name string
		l, r storage.Props
		exp  uint64
	}{
		{
			name: "both unique",
			l:    storage.Props{Count: 5000, TailUnique: true},
			r:    storage.Props{Count: 7000, HeadUnique: true},
			exp:  5000,
		},
		{
			name: "left tail unique",
			l:    storage.Props{Count: 5000, TailUnique: true},
			r:    storage.Props{Count: 7000},
			exp:  7000,
		},
		{
			name: "right head unique",
			l:    storage.Props{Count: 5000},
			r:    storage.Props{Count: 7000, HeadUnique: true},
			exp:  5000,
		},
		{
			name: "cross product",
			l:    storage.Props{Count: 5000},
			r:    storage.Props{Count: 7000},
			exp:  35000000,
		},
		{
			name: "overflow",
			l:    storage.Props{Count: math.MaxUint64 / 2},
			r:    storage.Props{Count: 4},
			exp:  math.MaxUint64,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cost, rule := m.Explain(test.l, test.r, mal.InnerJoin)
			assert.Equal(t, "fallback", rule)
			assert.Equal(t, test.exp, cost)
		})
	}
}

func Test_Cost_rules(t *testing.T) {
	m := DefaultCostModel()
	big := uint64(5000)
	small := uint64(10)
	tests := []struct {
		name    string
		l, r    storage.Props
		expRule string
		// Defaults to expRule.
		expLeftRule string
	}{
		{
			name:    "dense dense",
			l:       storage.Props{Count: big, TailDense: true, TailOrdered: true},
			r:       storage.Props{Count: big, HeadDense: true, HeadOrdered: true},
			expRule: "denseFetch",
		},
		{
			name:    "ordered dense",
			l:       storage.Props{Count: big, TailOrdered: true},
			r:       storage.Props{Count: big, HeadDense: true},
			expRule: "orderedFetch",
		},
		{
			name:        "dense ordered",
			l:           storage.Props{Count: big, TailDense: true},
			r:           storage.Props{Count: small, HeadOrdered: true},
			expRule:     "reversedOrderedFetch",
			expLeftRule: "smallLookup",
		},
		{
			name:    "small dense right",
			l:       storage.Props{Count: big},
			r:       storage.Props{Count: small, HeadDense: true},
			expRule: "smallFetch",
		},
		{
			name:        "small dense left",
			l:           storage.Props{Count: small, TailDense: true},
			r:           storage.Props{Count: big},
			expRule:     "reversedSmallFetch",
			expLeftRule: "fallback",
		},
		{
			name:    "merge",
			l:       storage.Props{Count: big, TailOrdered: true},
			r:       storage.Props{Count: big, HeadOrdered: true},
			expRule: "merge",
		},
		{
			name:        "small ordered left",
			l:           storage.Props{Count: small, TailOrdered: true},
			r:           storage.Props{Count: big},
			expRule:     "reversedSmallLookup",
			expLeftRule: "fallback",
		},
		{
			name:    "small left sorts",
			l:       storage.Props{Count: small},
			r:       storage.Props{Count: big, HeadOrdered: true},
			expRule: "smallSortMerge",
		},
		{
			name:    "small right",
			l:       storage.Props{Count: big},
			r:       storage.Props{Count: small},
			expRule: "smallHash",
		},
		{
			name:        "small left",
			l:           storage.Props{Count: small},
			r:           storage.Props{Count: big},
			expRule:     "reversedSmallHash",
			expLeftRule: "fallback",
		},
		{
			name:    "large dense right",
			l:       storage.Props{Count: big},
			r:       storage.Props{Count: big, HeadDense: true},
			expRule: "fetch",
		},
		{
			name:        "large dense left",
			l:           storage.Props{Count: big, TailDense: true},
			r:           storage.Props{Count: big},
			expRule:     "reversedFetch",
			expLeftRule: "fallback",
		},
		{
			name:    "nothing applies",
			l:       storage.Props{Count: big},
			r:       storage.Props{Count: big},
			expRule: "fallback",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, rule := m.Explain(test.l, test.r, mal.InnerJoin)
			assert.Equal(t, test.expRule, rule, "inner")
			_, rule = m.Explain(test.l, test.r, mal.SemiJoin)
			assert.Equal(t, test.expRule, rule, "semi")
			expLeft := test.expLeftRule
			if expLeft == "" {
				expLeft = test.expRule
			}
			_, rule = m.Explain(test.l, test.r, mal.LeftJoin)
			assert.Equal(t, expLeft, rule, "left")
		})
	}
}

func Test_Cost_discountOrder(t *testing.T) {
	m := DefaultCostModel()
	base := storage.Props{Count: 5000}
	denseLeft := base
	denseLeft.TailDense = true
	denseRight := base
	denseRight.HeadDense = true
	assert.Equal(t, uint64(5000*5000/7), m.Cost(denseLeft, denseRight, mal.InnerJoin))
	assert.Equal(t, uint64(5000*5000/2), m.Cost(base, denseRight, mal.InnerJoin))
	assert.Equal(t, uint64(5000*5000), m.Cost(base, base, mal.InnerJoin))
}

// Holding the right operand and the flags fixed, growing the left operand must
// never make a join look cheaper.
func Test_Cost_monotonicInLeftCount(t *testing.T) {
	capped, err := NewCostModel(config.CostModel{SmallOperand: 1024, CardMax: 1000000})
	require.NoError(t, err)
	models := map[string]*CostModel{
		"default": DefaultCostModel(),
		"capped":  capped,
	}
	leftCounts := []uint64{0, 1, 2, 10, 500, 1023, 1024, 1025, 4096, 1000000, 1 << 40}
	rightCounts := []uint64{0, 1, 10, 1024, 5000}
	kinds := []mal.JoinKind{mal.InnerJoin, mal.LeftJoin, mal.SemiJoin}
	for name, m := range models {
		for flags := 0; flags < 1<<6; flags++ {
			for _, rc := range rightCounts {
				for _, kind := range kinds {
					l := storage.Props{
						TailUnique:  flags&1 != 0,
						TailDense:   flags&2 != 0,
						TailOrdered: flags&4 != 0,
					}
					r := storage.Props{
						Count:       rc,
						HeadUnique:  flags&8 != 0,
						HeadDense:   flags&16 != 0,
						HeadOrdered: flags&32 != 0,
					}
					prev := uint64(0)
					for _, lc := range leftCounts {
						l.Count = lc
						cost := m.Cost(l, r, kind)
						if !assert.True(t, cost >= prev,
							"%v: cost decreased from %d to %d at left count %d (flags %06b, right count %d, %v)",
							name, prev, cost, lc, flags, rc, kind) {
							return
						}
						prev = cost
					}
				}
			}
		}
	}
}

func Test_NewCostModel(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.CostModel
		expErr string
	}{
		{
			name: "default",
			cfg:  config.Default().CostModel,
		},
		{
			name: "override",
			cfg: config.CostModel{
				SmallOperand: 64,
				Discounts:    map[string]uint64{"denseFetch": 10, "fallback": 1},
			},
		},
		{
			name: "unknown rule",
			cfg: config.CostModel{
				Discounts: map[string]uint64{"nestedLoop": 2},
			},
			expErr: `unknown cost rule "nestedLoop"`,
		},
		{
			name: "zero divisor",
			cfg: config.CostModel{
				Discounts: map[string]uint64{"merge": 0},
			},
			expErr: "cost rule merge: divisor must be positive",
		},
		{
			name: "increasing divisor",
			cfg: config.CostModel{
				Discounts: map[string]uint64{"fallback": 9},
			},
			expErr: "cost rule fallback: divisor 9 exceeds divisor 2 of preceding rule reversedFetch",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m, err := NewCostModel(test.cfg)
			if test.expErr != "" {
				if assert.Error(t, err) {
					assert.Contains(t, err.Error(), test.expErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.cfg.SmallOperand, m.SmallOperand)
			assert.Equal(t, uint64(math.MaxUint64), m.CardMax)
		})
	}
}

func Test_NewCostModel_override(t *testing.T) {
	m, err := NewCostModel(config.CostModel{
		SmallOperand: 1024,
		Discounts:    map[string]uint64{"denseFetch": 10},
	})
	require.NoError(t, err)
	l := storage.Props{Count: 100, TailDense: true}
	r := storage.Props{Count: 100, HeadDense: true}
	assert.Equal(t, uint64(100*100/10), m.Cost(l, r, mal.InnerJoin))
}

func Test_CostRuleNames(t *testing.T) {
	names := CostRuleNames()
	assert.Len(t, names, 14)
	assert.Equal(t, "denseFetch", names[0])
	assert.Equal(t, "fallback", names[len(names)-1])
	seen := make(map[string]bool)
	for _, name := range names {
		assert.False(t, seen[name], fmt.Sprintf("duplicate rule %v", name))
		seen[name] = true
	}
}

func Test_CostModel_Divisor(t *testing.T) {
	m, err := NewCostModel(config.CostModel{
		SmallOperand: 10,
		Discounts:    map[string]uint64{"fallback": 2},
	})
	require.NoError(t, err)
	d, ok := m.Divisor("denseFetch")
	assert.True(t, ok)
	assert.Equal(t, uint64(7), d)
	d, ok = m.Divisor("fallback")
	assert.True(t, ok)
	assert.Equal(t, uint64(2), d)
	_, ok = m.Divisor("nope")
	assert.False(t, ok)
}
