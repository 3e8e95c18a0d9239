// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package aggfuncs

import (
	"unsafe"

	"github.com/ad-freiburg/qlever-sub009/expression"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
)

// PartialResult represents data structure to store the partial result for the
// aggregate functions. Here we use unsafe.Pointer to allow the partial result
// to be any type.
type PartialResult unsafe.Pointer

// Env is what an aggregate function needs besides its input values.
type Env struct {
	// LocalVocab resolves the local words of the input. GROUP_CONCAT adds its
	// results to it.
	LocalVocab *localvocab.LocalVocab
	Vocabulary expression.Vocabulary
}

// AggFunc is the interface to evaluate the aggregate functions.
type AggFunc interface {
	// AllocPartialResult allocates a specific data structure to store the
	// partial result, initializes it, and converts it to PartialResult to
	// return back. Aggregate operator implementation, no matter it's a hash
	// or stream, should hold this allocated PartialResult for the further
	// operations like: "ResetPartialResult", "UpdatePartialResult".
	AllocPartialResult() PartialResult

	// ResetPartialResult resets the partial result to the original state for a
	// specific aggregate function. It converts the input PartialResult to the
	// specific data structure which stores the partial result and then reset
	// every field to the proper original state.
	ResetPartialResult(pr PartialResult)

	// UpdatePartialResult updates the specific partial result for an aggregate
	// function using the values of one group, in scan order.
	UpdatePartialResult(env *Env, values []types.Id, pr PartialResult) error

	// FinalResult returns the value of the aggregate for the partial result.
	FinalResult(env *Env, pr PartialResult) (types.Id, error)
}

type baseAggFunc struct {
	// tracker is charged for the values buffered by GROUP_CONCAT, STDEV and
	// DISTINCT. It may be nil.
	tracker *memory.Tracker
}

func (e *baseAggFunc) consume(bytes int64) error {
	if e.tracker == nil {
		return nil
	}
	return e.tracker.TryConsume(bytes)
}

func (e *baseAggFunc) release(bytes int64) {
	if e.tracker != nil && bytes > 0 {
		e.tracker.Release(bytes)
	}
}
