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

package executor

import (
	"fmt"

	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/pingcap/errors"
)

var (
	_ joiner = &innerJoiner{}
	_ joiner = &leftOuterJoiner{}
)

// joiner is used to generate join results. A typical instruction flow is:
//
//     for each right row r compatible with the left row l {
//         err := j.tryToMatch(l, r)
//     }
//     if l was never matched {
//         err := j.onMissMatch(l)
//     }
//
// NOTE: This interface is **not** thread-safe.
type joiner interface {
	// tryToMatch appends the join of the left row l and the right row r,
	// which must be compatible.
	tryToMatch(l, r int) error
	// onMissMatch operates on a left row without any compatible right row.
	onMissMatch(l int) error
	// result returns the table the rows are appended to.
	result() *idtable.IdTable
}

// joinRowWriter lays out joined rows: all left columns, then the right
// columns that are not join columns, in right order. With keepRight the
// right join columns stay in place. A join column holds the left value, or
// the right value if the left one is unbound.
type joinRowWriter struct {
	left, right *idtable.IdTable
	out         *idtable.IdTable
	joinCols    [][2]int
	// rightCols are the right columns written after the left ones.
	rightCols []int
	// rightJoin[i] is the left join column of rightCols[i], or -1.
	rightJoin []int
	row       []types.Id
}

func newJoinRowWriter(left, right *idtable.IdTable, joinCols [][2]int, keepRight bool, tracker *memory.Tracker) *joinRowWriter {
	w := &joinRowWriter{left: left, right: right, joinCols: joinCols}
	for c := 0; c < right.NumCols(); c++ {
		leftCol := -1
		for _, jc := range joinCols {
			if jc[1] == c {
				leftCol = jc[0]
				break
			}
		}
		if leftCol >= 0 && !keepRight {
			continue
		}
		w.rightCols = append(w.rightCols, c)
		w.rightJoin = append(w.rightJoin, leftCol)
	}
	w.row = make([]types.Id, left.NumCols()+len(w.rightCols))
	w.out = idtable.New(len(w.row), tracker)
	return w
}

func (w *joinRowWriter) writeLeft(l int) {
	for c := 0; c < w.left.NumCols(); c++ {
		w.row[c] = w.left.At(l, c)
	}
}

func (w *joinRowWriter) addRow(l, r int) error {
	w.writeLeft(l)
	for _, jc := range w.joinCols {
		if w.row[jc[0]].IsUnbound() {
			w.row[jc[0]] = w.right.At(r, jc[1])
		}
	}
	off := w.left.NumCols()
	for i, c := range w.rightCols {
		if w.rightJoin[i] >= 0 {
			w.row[off+i] = w.row[w.rightJoin[i]]
			continue
		}
		w.row[off+i] = w.right.At(r, c)
	}
	return errors.Trace(w.out.AppendRow(w.row...))
}

// addOptionalRow appends the left row l with the right columns set to NoMatch.
func (w *joinRowWriter) addOptionalRow(l int) error {
	w.writeLeft(l)
	off := w.left.NumCols()
	for i := range w.rightCols {
		if w.rightJoin[i] >= 0 {
			w.row[off+i] = w.row[w.rightJoin[i]]
			continue
		}
		w.row[off+i] = types.NoMatchID
	}
	return errors.Trace(w.out.AppendRow(w.row...))
}

type innerJoiner struct {
	*joinRowWriter
}

func (j *innerJoiner) tryToMatch(l, r int) error {
	return j.addRow(l, r)
}

func (j *innerJoiner) onMissMatch(l int) error {
	return nil
}

func (j *innerJoiner) result() *idtable.IdTable {
	return j.out
}

type leftOuterJoiner struct {
	*joinRowWriter
}

func (j *leftOuterJoiner) tryToMatch(l, r int) error {
	return j.addRow(l, r)
}

func (j *leftOuterJoiner) onMissMatch(l int) error {
	return j.addOptionalRow(l)
}

func (j *leftOuterJoiner) result() *idtable.IdTable {
	return j.out
}

// joinResultWidth returns the width of the join of tables of width
// leftWidth and rightWidth on numJoinCols columns.
func joinResultWidth(leftWidth, rightWidth, numJoinCols int, keepRight bool) int {
	if keepRight {
		return leftWidth + rightWidth
	}
	return leftWidth + rightWidth - numJoinCols
}

// checkJoinColumns validates the join columns of tables of the given widths.
func checkJoinColumns(leftWidth, rightWidth int, joinCols [][2]int) error {
	if len(joinCols) == 0 {
		return ErrContractViolation.GenWithStackByArgs("join without join columns")
	}
	for _, jc := range joinCols {
		if jc[0] < 0 || jc[0] >= leftWidth || jc[1] < 0 || jc[1] >= rightWidth {
			return ErrContractViolation.GenWithStackByArgs(
				fmt.Sprintf("join column %v out of range for widths %d and %d", jc, leftWidth, rightWidth))
		}
	}
	return nil
}

func splitJoinColumns(joinCols [][2]int) (lCols, rCols []int) {
	lCols = make([]int, len(joinCols))
	rCols = make([]int, len(joinCols))
	for i, jc := range joinCols {
		lCols[i], rCols[i] = jc[0], jc[1]
	}
	return lCols, rCols
}

// joinVariableColumns returns the variable columns of the join of left and
// right. Right rows are optional if optional is set.
func joinVariableColumns(left, right map[string]ColumnInfo, leftWidth, rightWidth int, joinCols [][2]int, keepRight, optional bool) map[string]ColumnInfo {
	cols := make(map[string]ColumnInfo, len(left)+len(right))
	for name, info := range left {
		cols[name] = info
	}
	rightToLeft := make(map[int]int, len(joinCols))
	for _, jc := range joinCols {
		rightToLeft[jc[1]] = jc[0]
	}
	byIndex := make(map[int]string, len(right))
	for name, info := range right {
		byIndex[info.Index] = name
	}
	off := leftWidth
	for c := 0; c < rightWidth; c++ {
		name, named := byIndex[c]
		leftCol, isJoin := rightToLeft[c]
		if isJoin {
			for lname, info := range cols {
				if info.Index == leftCol && !optional {
					info.MaybeUndefined = info.MaybeUndefined && right[name].MaybeUndefined
					cols[lname] = info
				}
			}
			if !keepRight {
				continue
			}
		}
		if named {
			if _, ok := cols[name]; !ok {
				cols[name] = ColumnInfo{Index: off, MaybeUndefined: right[name].MaybeUndefined || optional}
			}
		}
		off++
	}
	return cols
}

// JoinColumnsFor returns the join columns of the variables bound by both
// left and right, ordered by left column.
func JoinColumnsFor(left, right Operation) [][2]int {
	var joinCols [][2]int
	lcols, rcols := left.VariableColumns(), right.VariableColumns()
	for _, name := range variableNames(lcols) {
		if r, ok := rcols[name]; ok {
			joinCols = append(joinCols, [2]int{lcols[name].Index, r.Index})
		}
	}
	return joinCols
}
