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
	"time"

	"github.com/ebay/joinpath/mal"
	"github.com/ebay/joinpath/storage"
	"github.com/ebay/joinpath/util/clocks"
)

// Events receives a notification for every pairwise join the executor
// attempts. It's used for profiling and in tests.
type Events interface {
	// Clock returns the time source used to stamp events.
	Clock() clocks.Source
	// JoinCompleted is called after each pairwise join attempt, whether it
	// succeeded or not.
	JoinCompleted(event JoinCompletedEvent)
}

// JoinCompletedEvent describes a pairwise join attempt.
type JoinCompletedEvent struct {
	// The flavor of pairwise join that ran.
	Kind mal.JoinKind
	// Position of the left input among the operands remaining at the time.
	Index int
	Left  storage.ID
	Right storage.ID
	// The cost model's estimate for the pair and the rule it applied.
	Cost uint64
	Rule string
	// The join result. Zero if the join failed.
	Result storage.ID
	// Set if the join failed.
	Err       error
	StartedAt time.Time
	EndedAt   time.Time
}

// ignoreEvents is an Events that discards all events.
type ignoreEvents struct{}

func (ignoreEvents) Clock() clocks.Source {
	return clocks.Wall
}

func (ignoreEvents) JoinCompleted(JoinCompletedEvent) {}
