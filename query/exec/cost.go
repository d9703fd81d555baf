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

	"github.com/ebay/joinpath/config"
	"github.com/ebay/joinpath/mal"
	"github.com/ebay/joinpath/storage"
	log "github.com/sirupsen/logrus"
)

// costRule is one entry of the discount chain. The first rule that applies to
// a pair of operands determines the divisor of its base estimate.
type costRule struct {
	name string
	// Set for rules that are only valid if the join may swap its inputs. They
	// are skipped for left joins, whose output must follow the left input.
	reversed bool
	applies  func(l, r *storage.Props, small uint64) bool
	divisor  uint64
}

// costRules is in priority order. Later rules assume earlier ones did not
// match, and the default divisors never increase along the chain.
var costRules = []costRule{
	{
		// Sequential access on both sides.
		name:    "denseFetch",
		divisor: 7,
		applies: func(l, r *storage.Props, small uint64) bool {
			return l.TailDense && r.HeadDense
		},
	},
	{
		name:    "orderedFetch",
		divisor: 6,
		applies: func(l, r *storage.Props, small uint64) bool {
			return l.TailOrdered && r.HeadDense
		},
	},
	{
		name:     "reversedOrderedFetch",
		reversed: true,
		divisor:  6,
		applies: func(l, r *storage.Props, small uint64) bool {
			return l.TailDense && r.HeadOrdered
		},
	},
	{
		// Random access into a right operand that fits in cache.
		name:    "smallFetch",
		divisor: 5,
		applies: func(l, r *storage.Props, small uint64) bool {
			return r.HeadDense && r.Count <= small
		},
	},
	{
		name:     "reversedSmallFetch",
		reversed: true,
		divisor:  5,
		applies: func(l, r *storage.Props, small uint64) bool {
			return l.TailDense && l.Count <= small
		},
	},
	{
		name:    "merge",
		divisor: 4,
		applies: func(l, r *storage.Props, small uint64) bool {
			return l.TailOrdered && r.HeadOrdered
		},
	},
	{
		// Binary search in a right operand that fits in cache.
		name:    "smallLookup",
		divisor: 3,
		applies: func(l, r *storage.Props, small uint64) bool {
			return r.HeadOrdered && r.Count <= small
		},
	},
	{
		name:     "reversedSmallLookup",
		reversed: true,
		divisor:  3,
		applies: func(l, r *storage.Props, small uint64) bool {
			return l.TailOrdered && l.Count <= small
		},
	},
	{
		// Sort-merge where the sort fits in cache.
		name:    "smallSortMerge",
		divisor: 3,
		applies: func(l, r *storage.Props, small uint64) bool {
			return (r.HeadOrdered && l.Count <= small) || (l.TailOrdered && r.Count <= small)
		},
	},
	{
		// Hash table over the right operand fits in cache.
		name:    "smallHash",
		divisor: 3,
		applies: func(l, r *storage.Props, small uint64) bool {
			return r.Count <= small
		},
	},
	{
		name:     "reversedSmallHash",
		reversed: true,
		divisor:  3,
		applies: func(l, r *storage.Props, small uint64) bool {
			return l.Count <= small
		},
	},
	{
		// Random access beyond the cache.
		name:    "fetch",
		divisor: 2,
		applies: func(l, r *storage.Props, small uint64) bool {
			return r.HeadDense
		},
	},
	{
		name:     "reversedFetch",
		reversed: true,
		divisor:  2,
		applies: func(l, r *storage.Props, small uint64) bool {
			return l.TailDense
		},
	},
	{
		// Hash or sort beyond the cache.
		name:    "fallback",
		divisor: 1,
		applies: func(l, r *storage.Props, small uint64) bool {
			return true
		},
	},
}

// CostRuleNames returns the names of the discount rules in priority order.
// These are the valid keys of config.CostModel.Discounts.
func CostRuleNames() []string {
	names := make([]string, len(costRules))
	for i, rule := range costRules {
		names[i] = rule.name
	}
	return names
}

// A CostModel ranks candidate pairwise joins. Its estimates are only
// meaningful relative to each other; they do not predict result sizes.
type CostModel struct {
	// Operands with at most this many pairs are assumed to fit in cache.
	SmallOperand uint64
	// Upper bound on a cross-product estimate.
	CardMax uint64
	// Divisor per rule, indexed like costRules.
	divisors []uint64
}

// DefaultCostModel returns the CostModel with the built-in tuning.
func DefaultCostModel() *CostModel {
	m, err := NewCostModel(config.Default().CostModel)
	if err != nil {
		log.Panicf("Default cost model is invalid: %v", err)
	}
	return m
}

// NewCostModel builds a CostModel from its configuration. It returns an error
// if a discount names an unknown rule, if a divisor is zero, or if the divisors
// increase along the rule chain; the latter would let a larger left operand
// rank cheaper than a smaller one.
func NewCostModel(cfg config.CostModel) (*CostModel, error) {
	m := &CostModel{
		SmallOperand: cfg.SmallOperand,
		CardMax:      cfg.CardMax,
		divisors:     make([]uint64, len(costRules)),
	}
	if m.CardMax == 0 {
		m.CardMax = math.MaxUint64
	}
	for i, rule := range costRules {
		m.divisors[i] = rule.divisor
	}
	for name, divisor := range cfg.Discounts {
		i := ruleIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("unknown cost rule %q (valid rules: %v)", name, CostRuleNames())
		}
		if divisor == 0 {
			return nil, fmt.Errorf("cost rule %v: divisor must be positive", name)
		}
		m.divisors[i] = divisor
	}
	for i := 1; i < len(costRules); i++ {
		if m.divisors[i] > m.divisors[i-1] {
			return nil, fmt.Errorf("cost rule %v: divisor %d exceeds divisor %d of preceding rule %v",
				costRules[i].name, m.divisors[i], m.divisors[i-1], costRules[i-1].name)
		}
	}
	return m, nil
}

func ruleIndex(name string) int {
	for i, rule := range costRules {
		if rule.name == name {
			return i
		}
	}
	return -1
}

// Divisor returns the divisor the model applies for the named rule. It returns
// false if no such rule exists.
func (m *CostModel) Divisor(rule string) (uint64, bool) {
	i := ruleIndex(rule)
	if i < 0 {
		return 0, false
	}
	return m.divisors[i], true
}

// Cost returns the estimated cost of joining l with r.
func (m *CostModel) Cost(l, r storage.Props, kind mal.JoinKind) uint64 {
	cost, _ := m.Explain(l, r, kind)
	return cost
}

// Explain is like Cost but also returns the name of the discount rule that
// applied.
func (m *CostModel) Explain(l, r storage.Props, kind mal.JoinKind) (uint64, string) {
	base := m.baseEstimate(&l, &r)
	for i := range costRules {
		rule := &costRules[i]
		if rule.reversed && kind == mal.LeftJoin {
			continue
		}
		if rule.applies(&l, &r, m.SmallOperand) {
			return base / m.divisors[i], rule.name
		}
	}
	log.Panicf("No cost rule applied to %+v and %+v", l, r)
	return 0, ""
}

// baseEstimate bounds the result size using the uniqueness of the join
// columns.
func (m *CostModel) baseEstimate(l, r *storage.Props) uint64 {
	switch {
	case l.TailUnique && r.HeadUnique:
		return min64(l.Count, r.Count)
	case l.TailUnique:
		return r.Count
	case r.HeadUnique:
		return l.Count
	}
	if l.Count != 0 && r.Count > m.CardMax/l.Count {
		return m.CardMax
	}
	return min64(l.Count*r.Count, m.CardMax)
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
