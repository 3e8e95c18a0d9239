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

var (
	_ Iterator = (*Iterator4Table)(nil)
	_ Iterator = (*iterator4Slice)(nil)
)

// Iterator is used to iterate a number of rows.
//
// for row := it.Begin(); row != it.End(); row = it.Next() {
//     ...
// }
type Iterator interface {
	// Begin resets the cursor of the iterator and returns the first Row.
	Begin() Row

	// Next returns the next Row.
	Next() Row

	// End returns the invalid end Row.
	End() Row

	// Len returns the length.
	Len() int

	// Current returns the current Row.
	Current() Row

	// ReachEnd reaches the end of iterator.
	ReachEnd()
}

// NewIterator4Slice returns a Iterator for Row slice.
func NewIterator4Slice(rows []Row) Iterator {
	return &iterator4Slice{rows: rows}
}

type iterator4Slice struct {
	rows   []Row
	cursor int
}

// Begin implements the Iterator interface.
func (it *iterator4Slice) Begin() Row {
	if it.Len() == 0 {
		return it.End()
	}
	it.cursor = 1
	return it.rows[0]
}

// Next implements the Iterator interface.
func (it *iterator4Slice) Next() Row {
	if l := it.Len(); it.cursor >= l {
		it.cursor = l + 1
		return it.End()
	}
	row := it.rows[it.cursor]
	it.cursor++
	return row
}

// Current implements the Iterator interface.
func (it *iterator4Slice) Current() Row {
	if it.cursor == 0 || it.cursor > it.Len() {
		return it.End()
	}
	return it.rows[it.cursor-1]
}

// End implements the Iterator interface.
func (it *iterator4Slice) End() Row {
	return Row{}
}

// ReachEnd implements the Iterator interface.
func (it *iterator4Slice) ReachEnd() {
	it.cursor = it.Len() + 1
}

// Len implements the Iterator interface.
func (it *iterator4Slice) Len() int {
	return len(it.rows)
}

// NewIterator4Table returns a iterator over the rows [begin, end) of t.
func NewIterator4Table(t *IdTable, begin, end int) *Iterator4Table {
	return &Iterator4Table{t: t, begin: begin, end: end, cursor: begin}
}

// Iterator4Table is used to iterate a row range of an IdTable.
type Iterator4Table struct {
	t          *IdTable
	begin, end int
	cursor     int
}

// Begin implements the Iterator interface.
func (it *Iterator4Table) Begin() Row {
	if it.begin >= it.end {
		return it.End()
	}
	it.cursor = it.begin + 1
	return it.t.GetRow(it.begin)
}

// Next implements the Iterator interface.
func (it *Iterator4Table) Next() Row {
	if it.cursor >= it.end {
		it.cursor = it.end + 1
		return it.End()
	}
	row := it.t.GetRow(it.cursor)
	it.cursor++
	return row
}

// Current implements the Iterator interface.
func (it *Iterator4Table) Current() Row {
	if it.cursor == it.begin || it.cursor > it.end {
		return it.End()
	}
	return it.t.GetRow(it.cursor - 1)
}

// End implements the Iterator interface.
func (it *Iterator4Table) End() Row {
	return Row{}
}

// ReachEnd implements the Iterator interface.
func (it *Iterator4Table) ReachEnd() {
	it.cursor = it.end + 1
}

// Len implements the Iterator interface.
func (it *Iterator4Table) Len() int {
	return it.end - it.begin
}
