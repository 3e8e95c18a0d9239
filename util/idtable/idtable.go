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
	"bytes"
	"fmt"

	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/cznic/mathutil"
	"github.com/pingcap/errors"
)

const (
	idSize          = 8
	initialCapacity = 16
)

// IdTable stores rows of Ids column by column. Every column has the same
// number of rows. Growth of the backing arrays is charged to a memory
// Tracker; a growth that would exceed the budget fails and leaves the table
// unchanged.
type IdTable struct {
	cols     [][]types.Id
	numRows  int
	capacity int

	tracker *memory.Tracker
	charged int64
}

// New creates an empty IdTable with numCols columns. A nil tracker disables
// memory accounting.
func New(numCols int, tracker *memory.Tracker) *IdTable {
	return &IdTable{
		cols:    make([][]types.Id, numCols),
		tracker: tracker,
	}
}

// FromRows creates an IdTable holding the given rows.
func FromRows(numCols int, tracker *memory.Tracker, rows ...[]types.Id) (*IdTable, error) {
	t := New(numCols, tracker)
	if err := t.Reserve(len(rows)); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := t.AppendRow(row...); err != nil {
			t.Close()
			return nil, err
		}
	}
	return t, nil
}

// NumRows returns the number of rows.
func (t *IdTable) NumRows() int {
	return t.numRows
}

// NumCols returns the number of columns.
func (t *IdTable) NumCols() int {
	return len(t.cols)
}

// Empty reports whether the table has no rows.
func (t *IdTable) Empty() bool {
	return t.numRows == 0
}

// Tracker returns the memory tracker the table charges.
func (t *IdTable) Tracker() *memory.Tracker {
	return t.tracker
}

// At returns the Id in row r and column c.
func (t *IdTable) At(r, c int) types.Id {
	return t.cols[c][r]
}

// Set overwrites the Id in row r and column c.
func (t *IdTable) Set(r, c int, id types.Id) {
	t.cols[c][r] = id
}

// Column returns column c. The slice aliases the table storage.
func (t *IdTable) Column(c int) []types.Id {
	return t.cols[c][:t.numRows]
}

// GetRow returns the row with index i.
func (t *IdTable) GetRow(i int) Row {
	return Row{t: t, idx: i}
}

// Reserve makes room for at least n rows.
func (t *IdTable) Reserve(n int) error {
	if n <= t.capacity {
		return nil
	}
	return t.grow(n)
}

func (t *IdTable) grow(minCap int) error {
	newCap := mathutil.Max(mathutil.Max(2*t.capacity, initialCapacity), minCap)
	delta := int64(newCap-t.capacity) * int64(len(t.cols)) * idSize
	if t.tracker != nil && delta > 0 {
		if err := t.tracker.TryConsume(delta); err != nil {
			return errors.Trace(err)
		}
	}
	t.charged += delta
	for i := range t.cols {
		col := make([]types.Id, t.numRows, newCap)
		copy(col, t.cols[i][:t.numRows])
		t.cols[i] = col
	}
	t.capacity = newCap
	return nil
}

// AppendRow appends one row. len(ids) must equal NumCols.
func (t *IdTable) AppendRow(ids ...types.Id) error {
	if len(ids) != len(t.cols) {
		return ErrWidthMismatch.GenWithStackByArgs("row", len(ids), len(t.cols))
	}
	if t.numRows == t.capacity {
		if err := t.grow(t.numRows + 1); err != nil {
			return err
		}
	}
	for i, id := range ids {
		t.cols[i] = append(t.cols[i], id)
	}
	t.numRows++
	return nil
}

// AppendRowFrom appends the row src, which must have the same width.
func (t *IdTable) AppendRowFrom(src Row) error {
	if src.Len() != len(t.cols) {
		return ErrWidthMismatch.GenWithStackByArgs("row", src.Len(), len(t.cols))
	}
	if t.numRows == t.capacity {
		if err := t.grow(t.numRows + 1); err != nil {
			return err
		}
	}
	for i := range t.cols {
		t.cols[i] = append(t.cols[i], src.At(i))
	}
	t.numRows++
	return nil
}

// AppendEmptyRow appends a row of Undefined values.
func (t *IdTable) AppendEmptyRow() error {
	return t.Resize(t.numRows + 1)
}

// AppendTable appends all rows of other, which must have the same width.
func (t *IdTable) AppendTable(other *IdTable) error {
	if other.NumCols() != t.NumCols() {
		return ErrWidthMismatch.GenWithStackByArgs("table", other.NumCols(), t.NumCols())
	}
	if err := t.Reserve(t.numRows + other.numRows); err != nil {
		return err
	}
	for i := range t.cols {
		t.cols[i] = append(t.cols[i], other.Column(i)...)
	}
	t.numRows += other.numRows
	return nil
}

// Resize sets the number of rows to n. New rows are Undefined.
func (t *IdTable) Resize(n int) error {
	if err := t.Reserve(n); err != nil {
		return err
	}
	for i := range t.cols {
		col := t.cols[i][:n]
		for j := t.numRows; j < n; j++ {
			col[j] = types.Undef
		}
		t.cols[i] = col
	}
	t.numRows = n
	return nil
}

// Clear removes all rows but keeps the storage.
func (t *IdTable) Clear() {
	for i := range t.cols {
		t.cols[i] = t.cols[i][:0]
	}
	t.numRows = 0
}

// Clone returns a deep copy charged to the same tracker.
func (t *IdTable) Clone() (*IdTable, error) {
	c := New(len(t.cols), t.tracker)
	if err := c.AppendTable(t); err != nil {
		return nil, err
	}
	return c, nil
}

// SetColumnSubset keeps only the given columns, in the given order. A column
// may appear more than once.
func (t *IdTable) SetColumnSubset(cols []int) {
	newCols := make([][]types.Id, len(cols))
	for i, c := range cols {
		if i > 0 && containsInt(cols[:i], c) {
			dup := make([]types.Id, t.numRows, t.capacity)
			copy(dup, t.cols[c][:t.numRows])
			newCols[i] = dup
			continue
		}
		newCols[i] = t.cols[c]
	}
	newCharged := int64(t.capacity) * int64(len(cols)) * idSize
	if t.tracker != nil {
		t.tracker.Consume(newCharged - t.charged)
	}
	t.charged = newCharged
	t.cols = newCols
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Close releases the memory charged by the table. The table must not be used
// afterwards.
func (t *IdTable) Close() {
	if t.tracker != nil && t.charged > 0 {
		t.tracker.Release(t.charged)
	}
	t.charged = 0
	t.cols = make([][]types.Id, len(t.cols))
	t.numRows = 0
	t.capacity = 0
}

// Rows returns a copy of all rows, mostly useful in tests.
func (t *IdTable) Rows() [][]types.Id {
	rows := make([][]types.Id, t.numRows)
	for i := range rows {
		rows[i] = t.GetRow(i).Copy()
	}
	return rows
}

// Equal reports whether both tables hold the same rows in the same order.
func (t *IdTable) Equal(other *IdTable) bool {
	if t.NumCols() != other.NumCols() || t.numRows != other.numRows {
		return false
	}
	for c := range t.cols {
		l, r := t.Column(c), other.Column(c)
		for i := range l {
			if l[i] != r[i] {
				return false
			}
		}
	}
	return true
}

// String implements fmt.Stringer.
func (t *IdTable) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "IdTable(%d x %d)", t.numRows, len(t.cols))
	for i := 0; i < t.numRows; i++ {
		buf.WriteString("\n")
		for c := range t.cols {
			if c > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(t.cols[c][i].String())
		}
	}
	return buf.String()
}
