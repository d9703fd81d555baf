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

// Package memstore is an in-memory storage.Store. It holds BATs in a btree
// ordered by ID, hands out reference-counted handles and keeps count of every
// acquire and release so that tests can check for leaked operands.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ebay/joinpath/mal"
	"github.com/ebay/joinpath/storage"
	"github.com/google/btree"
	log "github.com/sirupsen/logrus"
)

// Options configure a Store.
type Options struct {
	// If nonzero, a join whose result would hold more than this many pairs
	// fails with storage.ErrJoinInfeasible.
	MaxJoinResult uint64
}

// Store is an in-memory storage.Store. It is safe for concurrent use.
type Store struct {
	options Options
	lock    sync.Mutex
	// Protected by 'lock'.
	locked struct {
		bats     *btree.BTree
		nextID   storage.ID
		acquires int
		releases int
	}
}

var _ storage.Store = (*Store)(nil)

// entry values are stored in the bats btree.
type entry struct {
	id    storage.ID
	bat   *BAT
	props storage.Props
	refs  int
	// Join results are transient: they are dropped along with their last
	// reference. BATs added with Put stay until the Store is discarded.
	transient bool
}

// Less orders entries by ID.
func (e *entry) Less(other btree.Item) bool {
	return e.id < other.(*entry).id
}

// handle is the storage.Operand returned by Store.
type handle struct {
	e *entry
	// Protected by the Store's lock.
	released bool
}

func (h *handle) ID() storage.ID {
	return h.e.id
}

func (h *handle) Props() storage.Props {
	return h.e.props
}

// New returns an empty Store.
func New(options Options) *Store {
	s := &Store{options: options}
	s.locked.bats = btree.New(16)
	return s
}

// Put adds a BAT to the store and returns its ID. Put does not acquire a
// reference; use Resolve for that.
func (s *Store) Put(bat *BAT) storage.ID {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.insertLocked(bat, false).id
}

func (s *Store) insertLocked(bat *BAT, transient bool) *entry {
	s.locked.nextID++
	e := &entry{
		id:        s.locked.nextID,
		bat:       bat,
		props:     bat.props(),
		transient: transient,
	}
	s.locked.bats.ReplaceOrInsert(e)
	return e
}

func (s *Store) lookupLocked(id storage.ID) *entry {
	item := s.locked.bats.Get(&entry{id: id})
	if item == nil {
		return nil
	}
	return item.(*entry)
}

// Get returns the BAT with the given ID, if it is still held by the store. It
// does not acquire a reference.
func (s *Store) Get(id storage.ID) (*BAT, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	e := s.lookupLocked(id)
	if e == nil {
		return nil, false
	}
	return e.bat, true
}

// Resolve implements storage.Store.
func (s *Store) Resolve(ctx context.Context, id storage.ID) (storage.Operand, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	e := s.lookupLocked(id)
	if e == nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrNotFound, id)
	}
	e.refs++
	s.locked.acquires++
	return &handle{e: e}, nil
}

// Join implements storage.Store. Inner and left joins compose the tail of
// 'left' with the head of 'right' and emit pairs in the order of 'left'. A
// semijoin keeps the pairs of 'left' whose head occurs among the heads of
// 'right'.
func (s *Store) Join(ctx context.Context, left, right storage.Operand, kind mal.JoinKind, sizeHint uint64) (storage.Operand, error) {
	l, r := s.live(left), s.live(right)
	if !kind.ChainsTo(l.props.Type(), r.props.Type()) {
		return nil, fmt.Errorf("%w: cannot %v join %v with %v",
			mal.ErrTypeMismatch, kind, l.props.Type(), r.props.Type())
	}
	var res *BAT
	var err error
	switch kind {
	case mal.InnerJoin, mal.LeftJoin:
		res, err = compose(l.bat, r.bat, sizeHint, s.options.MaxJoinResult)
	case mal.SemiJoin:
		res, err = restrict(l.bat, r.bat, s.options.MaxJoinResult)
	default:
		log.Panicf("memstore: unexpected join kind %v", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%v join of %v and %v: %w", kind, l.id, r.id, err)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	e := s.insertLocked(res, true)
	e.refs++
	s.locked.acquires++
	return &handle{e: e}, nil
}

// live returns the entry behind an operand handed out by this store. It
// panics on foreign or released handles.
func (s *Store) live(op storage.Operand) *entry {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.liveLocked(op)
}

func (s *Store) liveLocked(op storage.Operand) *entry {
	h, ok := op.(*handle)
	if !ok {
		log.Panicf("memstore: foreign operand %T", op)
	}
	if h.released {
		log.Panicf("memstore: use of released operand %v", h.e.id)
	}
	return h.e
}

// Release implements storage.Store. Releasing a handle twice panics.
func (s *Store) Release(op storage.Operand) {
	s.lock.Lock()
	defer s.lock.Unlock()
	e := s.liveLocked(op)
	op.(*handle).released = true
	e.refs--
	s.locked.releases++
	if e.refs == 0 && e.transient {
		s.locked.bats.Delete(e)
	}
}

// Acquires returns the number of handles handed out so far.
func (s *Store) Acquires() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.locked.acquires
}

// Releases returns the number of handles given back so far.
func (s *Store) Releases() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.locked.releases
}

// Outstanding returns the number of handles that are currently held.
func (s *Store) Outstanding() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.locked.acquires - s.locked.releases
}

// Len returns the number of BATs the store holds, including join results that
// are still referenced.
func (s *Store) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.locked.bats.Len()
}

// compose joins tail(l) with head(r). It fails with ErrJoinInfeasible once
// the result exceeds 'limit' pairs.
func compose(l, r *BAT, sizeHint, limit uint64) (*BAT, error) {
	index := make(map[int64][]int64, len(r.Head))
	for i, h := range r.Head {
		index[h] = append(index[h], r.Tail[i])
	}
	capacity := sizeHint
	if capacity > maxPrealloc {
		capacity = maxPrealloc
	}
	res := &BAT{
		HeadType: l.HeadType,
		TailType: r.TailType,
		Head:     make([]int64, 0, capacity),
		Tail:     make([]int64, 0, capacity),
	}
	for i, t := range l.Tail {
		for _, v := range index[t] {
			if limit > 0 && uint64(len(res.Head)) >= limit {
				return nil, fmt.Errorf("%w: result exceeds %d pairs", storage.ErrJoinInfeasible, limit)
			}
			res.Head = append(res.Head, l.Head[i])
			res.Tail = append(res.Tail, v)
		}
	}
	return res, nil
}

// maxPrealloc bounds the capacity reserved from a size hint.
const maxPrealloc = 1 << 16

// restrict keeps the pairs of l whose head is a head of r.
func restrict(l, r *BAT, limit uint64) (*BAT, error) {
	heads := make(map[int64]struct{}, len(r.Head))
	for _, h := range r.Head {
		heads[h] = struct{}{}
	}
	res := &BAT{HeadType: l.HeadType, TailType: l.TailType}
	for i, h := range l.Head {
		if _, ok := heads[h]; !ok {
			continue
		}
		if limit > 0 && uint64(len(res.Head)) >= limit {
			return nil, fmt.Errorf("%w: result exceeds %d pairs", storage.ErrJoinInfeasible, limit)
		}
		res.Head = append(res.Head, h)
		res.Tail = append(res.Tail, l.Tail[i])
	}
	return res, nil
}
