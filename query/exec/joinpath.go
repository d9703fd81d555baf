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
	"context"
	"errors"
	"fmt"

	"github.com/ebay/joinpath/mal"
	"github.com/ebay/joinpath/storage"
	"github.com/ebay/joinpath/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

// ErrJoinPathFailed is returned by EvaluateJoinPath when no pair of the
// remaining operands could be joined.
var ErrJoinPathFailed = errors.New("join path failed")

// Options control the evaluation of join paths.
type Options struct {
	// Ranks candidate pairs. Defaults to DefaultCostModel().
	CostModel *CostModel
	// Where traces go. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger
	// If true, every cost estimate and join attempt is logged at Debug level.
	Trace bool
	// Receives an event for each join attempt. May be nil.
	Events Events
}

func (opts *Options) costModel() *CostModel {
	if opts.CostModel == nil {
		return DefaultCostModel()
	}
	return opts.CostModel
}

func (opts *Options) logger() logrus.FieldLogger {
	if opts.Logger == nil {
		return logrus.StandardLogger()
	}
	return opts.Logger
}

func (opts *Options) events() Events {
	if opts.Events == nil {
		return ignoreEvents{}
	}
	return opts.Events
}

// EvaluateJoinPath joins a chain of operands down to a single result. It
// repeatedly joins the adjacent pair the cost model ranks cheapest, breaking
// ties by position. In a left join path, only the pair at position 0 runs as
// a left join; the other pairs run as inner joins.
//
// A pair that the store reports as infeasible is postponed: both its operands
// are marked, and a pair of two marked operands is not tried again until a
// join succeeds, which clears all marks. The evaluation fails with
// ErrJoinPathFailed once every remaining operand is marked. Other errors from
// the store end the evaluation immediately.
//
// EvaluateJoinPath takes ownership of the operands. On success, the caller
// owns the returned operand and every other handle has been released. On
// failure, every handle has been released.
func EvaluateJoinPath(ctx context.Context, store storage.Store, operands []storage.Operand,
	kind mal.JoinKind, opts Options) (storage.Operand, error) {

	span, ctx := opentracing.StartSpanFromContext(ctx, "evaluate join path")
	span.SetTag("kind", kind.String())
	span.SetTag("operands", len(operands))
	tracing.UpdateMetric(span, metrics.joinPathDurationSeconds)
	defer span.Finish()

	list := &operandList{
		store:     store,
		ops:       append([]storage.Operand(nil), operands...),
		postponed: make([]bool, len(operands)),
	}
	defer list.release()

	switch kind {
	case mal.InnerJoin, mal.LeftJoin, mal.SemiJoin:
	default:
		return nil, fmt.Errorf("cannot evaluate join path of kind %v", kind)
	}
	if len(operands) == 0 {
		return nil, errors.New("cannot evaluate join path without operands")
	}

	model := opts.costModel()
	events := opts.events()
	var log logrus.FieldLogger
	if opts.Trace {
		log = opts.logger().WithField("kind", kind)
	}

	for len(list.ops) > 1 {
		pick := list.cheapest(model, kind, log)
		left, right := list.ops[pick.index], list.ops[pick.index+1]
		pairKind := pairKindAt(kind, pick.index)
		event := JoinCompletedEvent{
			Kind:      pairKind,
			Index:     pick.index,
			Left:      left.ID(),
			Right:     right.ID(),
			Cost:      pick.cost,
			Rule:      pick.rule,
			StartedAt: events.Clock().Now(),
		}
		res, err := store.Join(ctx, left, right, pairKind, sizeHint(pairKind, left.Props(), right.Props()))
		event.EndedAt = events.Clock().Now()
		event.Err = err
		if err == nil {
			event.Result = res.ID()
		}
		events.JoinCompleted(event)

		if err != nil {
			if res != nil {
				store.Release(res)
			}
			if !errors.Is(err, storage.ErrJoinInfeasible) {
				return nil, err
			}
			metrics.joinsTotal.WithLabelValues("infeasible").Inc()
			if list.postpone(pick.index) {
				metrics.pathFailuresTotal.Inc()
				return nil, fmt.Errorf("%w: %d operands remain: %w", ErrJoinPathFailed, len(list.ops), err)
			}
			metrics.postponementsTotal.Inc()
			if log != nil {
				log.WithError(err).Debugf("joinPath postponed join(%v,%v)", left.ID(), right.ID())
			}
			continue
		}
		metrics.joinsTotal.WithLabelValues("ok").Inc()
		if log != nil {
			log.Debugf("joinPath %v := join(%v,%v) at %d (cnt=%d against cnt=%d) cost %d",
				res.ID(), left.ID(), right.ID(), pick.index,
				left.Props().Count, right.Props().Count, pick.cost)
		}
		list.replace(pick.index, res)
	}
	return list.take(), nil
}

// pairKindAt returns the kind of pairwise join used at the given position of a
// path of the given kind.
func pairKindAt(kind mal.JoinKind, index int) mal.JoinKind {
	if kind == mal.LeftJoin && index != 0 {
		return mal.InnerJoin
	}
	return kind
}

// sizeHint estimates the size of a pairwise join's result for the store.
func sizeHint(kind mal.JoinKind, l, r storage.Props) uint64 {
	switch kind {
	case mal.LeftJoin:
		return l.Count
	case mal.InnerJoin:
		return min64(l.Count, r.Count)
	}
	return 0
}

// operandList holds the operand handles of a join path under evaluation. It
// owns every handle in 'ops'.
type operandList struct {
	store storage.Store
	ops   []storage.Operand
	// postponed[i] is set if a join involving ops[i] failed since the last
	// successful join.
	postponed []bool
}

// pick is a pair chosen by operandList.cheapest.
type pick struct {
	index int
	cost  uint64
	rule  string
}

// cheapest returns the adjacent pair with the lowest cost, breaking ties by
// position. Pairs whose operands are both postponed are skipped. If 'log' is
// non-nil, every estimate is logged.
func (list *operandList) cheapest(model *CostModel, kind mal.JoinKind, log logrus.FieldLogger) pick {
	best := pick{index: -1}
	for i := 0; i+1 < len(list.ops); i++ {
		l, r := list.ops[i], list.ops[i+1]
		if list.postponed[i] && list.postponed[i+1] {
			if log != nil {
				log.Debugf("joinPath skip join(%v,%v) postponed", l.ID(), r.ID())
			}
			continue
		}
		cost, rule := model.Explain(l.Props(), r.Props(), pairKindAt(kind, i))
		if log != nil {
			log.Debugf("joinPath estimate join(%v,%v) %d cnt=%d %v",
				l.ID(), r.ID(), cost, l.Props().Count, rule)
		}
		if best.index < 0 || cost < best.cost {
			best = pick{index: i, cost: cost, rule: rule}
		}
	}
	if best.index < 0 {
		logrus.Panicf("No pair left to join among %d operands", len(list.ops))
	}
	return best
}

// postpone marks both operands of the pair at position i. It returns true if
// every operand is now marked.
func (list *operandList) postpone(i int) bool {
	list.postponed[i] = true
	list.postponed[i+1] = true
	for _, p := range list.postponed {
		if !p {
			return false
		}
	}
	return true
}

// replace releases the pair at position i, puts 'res' in its place and clears
// all postponement marks.
func (list *operandList) replace(i int, res storage.Operand) {
	list.store.Release(list.ops[i])
	list.store.Release(list.ops[i+1])
	list.ops[i] = res
	list.ops = append(list.ops[:i+1], list.ops[i+2:]...)
	list.postponed = list.postponed[:len(list.ops)]
	for j := range list.postponed {
		list.postponed[j] = false
	}
}

// take hands the last remaining operand over to the caller.
func (list *operandList) take() storage.Operand {
	if len(list.ops) != 1 {
		logrus.Panicf("operandList.take called with %d operands", len(list.ops))
	}
	op := list.ops[0]
	list.ops = nil
	return op
}

// release gives back every handle the list still owns.
func (list *operandList) release() {
	for _, op := range list.ops {
		list.store.Release(op)
	}
	list.ops = nil
}
