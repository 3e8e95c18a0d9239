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
	"github.com/pingcap/errors"
)

// IsSortedOn reports whether the rows are in ascending order of cols.
func (t *IdTable) IsSortedOn(cols []int) bool {
	for i := 1; i < t.numRows; i++ {
		if CompareRows(t.GetRow(i-1), cols, t.GetRow(i), cols) > 0 {
			return false
		}
	}
	return true
}

// SortOn stably sorts the rows on cols. The permutation buffer is charged
// to the tracker of the table while sorting.
func (t *IdTable) SortOn(cols []int) error {
	if t.numRows < 2 || len(cols) == 0 || t.IsSortedOn(cols) {
		return nil
	}
	scratch := int64(t.numRows) * (idSize + 8)
	if t.tracker != nil {
		if err := t.tracker.TryConsume(scratch); err != nil {
			return errors.Trace(err)
		}
		defer t.tracker.Release(scratch)
	}

	perm := make([]int, t.numRows)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool {
		return CompareRows(t.GetRow(perm[i]), cols, t.GetRow(perm[j]), cols) < 0
	})
	t.Permute(perm)
	return nil
}

// Permute reorders the rows so that new row i is the old row perm[i].
func (t *IdTable) Permute(perm []int) {
	buf := make([]types.Id, t.numRows)
	for c := range t.cols {
		col := t.cols[c][:t.numRows]
		for i, p := range perm {
			buf[i] = col[p]
		}
		copy(col, buf)
	}
}
