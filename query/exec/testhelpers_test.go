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
	"fmt"
	"sync"

	"github.com/ebay/joinpath/mal"
	"github.com/ebay/joinpath/storage"
	"github.com/ebay/joinpath/util/clocks"
)

// fakeOperand is the storage.Operand handed out by fakeStore.
type fakeOperand struct {
	id       storage.ID
	name     string
	props    storage.Props
	released bool
}

func (op *fakeOperand) ID() storage.ID {
	return op.id
}

func (op *fakeOperand) Props() storage.Props {
	return op.props
}

// fakeJoin records a call to fakeStore.Join.
type fakeJoin struct {
	left  string
	right string
	kind  mal.JoinKind
	hint  uint64
}

// fakeStore is a storage.Store whose operands carry made-up properties. Its
// join results are named "(left right)" and have the left operand's count.
// It counts acquires and releases so tests can check for leaks.
type fakeStore struct {
	nextID   storage.ID
	acquires int
	releases int
	joins    []fakeJoin
	// If set and returns true, the join fails as infeasible.
	infeasible func(left, right string) bool
	// If set, every join fails with this error.
	err error
	// If set, failing joins also return a result operand, which the caller
	// must release.
	partialResults bool
}

func (s *fakeStore) operand(name string, props storage.Props) *fakeOperand {
	s.nextID++
	s.acquires++
	if props.Head == mal.TypeAny {
		props.Head = mal.TypeOid
	}
	if props.Tail == mal.TypeAny {
		props.Tail = mal.TypeOid
	}
	return &fakeOperand{id: s.nextID, name: name, props: props}
}

func (s *fakeStore) Resolve(ctx context.Context, id storage.ID) (storage.Operand, error) {
	return nil, fmt.Errorf("%w: %v", storage.ErrNotFound, id)
}

func (s *fakeStore) Join(ctx context.Context, left, right storage.Operand, kind mal.JoinKind, sizeHint uint64) (storage.Operand, error) {
	l, r := left.(*fakeOperand), right.(*fakeOperand)
	if l.released || r.released {
		panic("join of released operand")
	}
	s.joins = append(s.joins, fakeJoin{left: l.name, right: r.name, kind: kind, hint: sizeHint})
	var err error
	if s.err != nil {
		err = s.err
	} else if s.infeasible != nil && s.infeasible(l.name, r.name) {
		err = fmt.Errorf("%w: %v with %v", storage.ErrJoinInfeasible, l.name, r.name)
	}
	if err != nil && !s.partialResults {
		return nil, err
	}
	return s.operand(fmt.Sprintf("(%v %v)", l.name, r.name), storage.Props{
		Count: l.props.Count,
		Head:  l.props.Head,
		Tail:  r.props.Tail,
	}), err
}

func (s *fakeStore) Release(op storage.Operand) {
	f := op.(*fakeOperand)
	if f.released {
		panic(fmt.Sprintf("double release of %v", f.name))
	}
	f.released = true
	s.releases++
}

func (s *fakeStore) outstanding() int {
	return s.acquires - s.releases
}

func (s *fakeStore) joinOrder() []string {
	order := make([]string, len(s.joins))
	for i, j := range s.joins {
		order[i] = j.left + "*" + j.right
	}
	return order
}

// captureEvents implements Events and captures the calls.
type captureEvents struct {
	lock   sync.Mutex
	clock  clocks.Source
	events []JoinCompletedEvent
}

func (c *captureEvents) JoinCompleted(event JoinCompletedEvent) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.events = append(c.events, event)
}

func (c *captureEvents) Clock() clocks.Source {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.clock
}

// ignoreEvents should impl the Events interface
var _ Events = ignoreEvents{}
