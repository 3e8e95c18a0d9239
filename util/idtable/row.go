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

import "github.com/ad-freiburg/qlever-sub009/types"

// Row represents a row of data, can be used to access values.
type Row struct {
	t   *IdTable
	idx int
}

// Table returns the IdTable which the row belongs to.
func (r Row) Table() *IdTable {
	return r.t
}

// Idx returns the row index of the IdTable.
func (r Row) Idx() int {
	return r.idx
}

// Len returns the number of values in the row.
func (r Row) Len() int {
	return r.t.NumCols()
}

// At returns the value in column colIdx.
func (r Row) At(colIdx int) types.Id {
	return r.t.cols[colIdx][r.idx]
}

// IsEmpty returns true if the Row is empty.
func (r Row) IsEmpty() bool {
	return r == Row{}
}

// Copy returns the values of the row.
func (r Row) Copy() []types.Id {
	ids := make([]types.Id, r.Len())
	for i := range ids {
		ids[i] = r.At(i)
	}
	return ids
}

// HasUnbound reports whether any of cols holds an unbound value.
func (r Row) HasUnbound(cols []int) bool {
	for _, c := range cols {
		if r.At(c).IsUnbound() {
			return true
		}
	}
	return false
}
