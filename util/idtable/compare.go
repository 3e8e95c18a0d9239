// Copyright 2017 PingCAP, Inc.
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

package idtable

import (
	"sort"

	"github.com/ad-freiburg/qlever-sub009/types"
)

// CompareFunc is a function to compare the two values in Row.
type CompareFunc = func(l Row, lCol int, r Row, rCol int) int

// CompareID compares the values of two columns by the total order of Ids.
func CompareID(l Row, lCol int, r Row, rCol int) int {
	return l.At(lCol).Compare(r.At(rCol))
}

// CompareRows compares the columns lCols of l with the columns rCols of r
// lexicographically.
func CompareRows(l Row, lCols []int, r Row, rCols []int) int {
	for i := range lCols {
		if cmp := l.At(lCols[i]).Compare(r.At(rCols[i])); cmp != 0 {
			return cmp
		}
	}
	return 0
}

// Compatible reports whether the columns lCols of l and rCols of r can be
// joined: every pair is equal or one side is unbound.
func Compatible(l Row, lCols []int, r Row, rCols []int) bool {
	for i := range lCols {
		a, b := l.At(lCols[i]), r.At(rCols[i])
		if a != b && !a.IsUnbound() && !b.IsUnbound() {
			return false
		}
	}
	return true
}

// LowerBound searches the table sorted on colIdx for the first row whose
// value is not less than id.
func (t *IdTable) LowerBound(colIdx int, id types.Id) int {
	col := t.Column(colIdx)
	return sort.Search(len(col), func(i int) bool {
		return col[i].Compare(id) >= 0
	})
}

// UpperBound searches the table sorted on colIdx for the first row whose
// value is greater than id.
func (t *IdTable) UpperBound(colIdx int, id types.Id) int {
	col := t.Column(colIdx)
	return sort.Search(len(col), func(i int) bool {
		return col[i].Compare(id) > 0
	})
}
