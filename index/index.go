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

package index

import (
	"fmt"

	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
)

// Permutation is an order of the three positions of a triple.
type Permutation int

// The six permutations. The name lists the positions in key order, S for
// subject, P for predicate and O for object.
const (
	SPO Permutation = iota
	SOP
	PSO
	POS
	OSP
	OPS
)

// Positions of a triple.
const (
	Subject = iota
	Predicate
	Object
)

var permOrders = [...][3]int{
	SPO: {Subject, Predicate, Object},
	SOP: {Subject, Object, Predicate},
	PSO: {Predicate, Subject, Object},
	POS: {Predicate, Object, Subject},
	OSP: {Object, Subject, Predicate},
	OPS: {Object, Predicate, Subject},
}

var permNames = [...]string{SPO: "SPO", SOP: "SOP", PSO: "PSO", POS: "POS", OSP: "OSP", OPS: "OPS"}

// AllPermutations lists every Permutation.
var AllPermutations = []Permutation{SPO, SOP, PSO, POS, OSP, OPS}

// KeyOrder returns the triple positions in the key order of p.
func (p Permutation) KeyOrder() [3]int {
	return permOrders[p]
}

// PermutationStartingWith returns the permutation whose first two key
// columns are the positions first and second.
func PermutationStartingWith(first, second int) Permutation {
	for _, p := range AllPermutations {
		order := p.KeyOrder()
		if order[0] == first && order[1] == second {
			return p
		}
	}
	panic(fmt.Sprintf("invalid positions %d, %d", first, second))
}

func (p Permutation) String() string {
	if int(p) < len(permNames) {
		return permNames[p]
	}
	return fmt.Sprintf("Permutation(%d)", int(p))
}

// LimitOffset restricts the rows of a result. A negative Limit means no limit.
type LimitOffset struct {
	Limit  int64
	Offset int64
}

// NoLimit is the unconstrained LimitOffset.
var NoLimit = LimitOffset{Limit: -1}

// IsUnconstrained reports whether l keeps every row.
func (l LimitOffset) IsUnconstrained() bool {
	return l.Limit < 0 && l.Offset == 0
}

// ActualSize returns the number of rows kept from n rows.
func (l LimitOffset) ActualSize(n int64) int64 {
	n -= l.Offset
	if n < 0 {
		return 0
	}
	if l.Limit >= 0 && n > l.Limit {
		return l.Limit
	}
	return n
}

// Index is the metadata and scan interface of a triple index.
type Index interface {
	// NumTriples returns the number of triples.
	NumTriples() int64
	// NumDistinctCol0 returns the number of distinct values of the first key
	// column of perm.
	NumDistinctCol0(perm Permutation) int64
	// Cardinality returns the number of triples whose first key column of
	// perm is id.
	Cardinality(id types.Id, perm Permutation) int64
	// DistinctCol0IdsAndCounts returns a two column table of the distinct
	// values of the first key column of perm and their number of triples,
	// sorted by value.
	DistinctCol0IdsAndCounts(sctx *sessionctx.Context, perm Permutation, limit LimitOffset) (*idtable.IdTable, error)
	// DistinctCol1IdsAndCounts is DistinctCol0IdsAndCounts for the second key
	// column of the triples whose first key column is col0.
	DistinctCol1IdsAndCounts(sctx *sessionctx.Context, col0 types.Id, perm Permutation, limit LimitOffset) (*idtable.IdTable, error)
	// ScanSize returns the number of triples matching prefix in perm.
	ScanSize(perm Permutation, prefix []types.Id) int64
	// Scan returns the key columns after prefix of all triples that match
	// prefix in perm, sorted.
	Scan(sctx *sessionctx.Context, perm Permutation, prefix []types.Id) (*idtable.IdTable, error)
}
