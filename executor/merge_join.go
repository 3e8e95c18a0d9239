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

	"github.com/ad-freiburg/qlever-sub009/metrics"
	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/cznic/mathutil"
	"github.com/pingcap/errors"
)

// JoinOp joins the results of Left and Right on JoinColumns with a merge
// join, or a galloping join if one side is much smaller than the other.
// The result is sorted on the left join columns.
type JoinOp struct {
	baseOperation

	Left, Right Operation
	// JoinColumns are pairs of left and right column indexes.
	JoinColumns          [][2]int
	KeepRightJoinColumns bool

	columns map[string]ColumnInfo
}

// NewJoinOp creates a JoinOp.
func NewJoinOp(left, right Operation, joinCols [][2]int, keepRight bool) (*JoinOp, error) {
	if err := checkJoinColumns(left.ResultWidth(), right.ResultWidth(), joinCols); err != nil {
		return nil, err
	}
	return &JoinOp{
		baseOperation:        newBaseOperation("join", left, right),
		Left:                 left,
		Right:                right,
		JoinColumns:          joinCols,
		KeepRightJoinColumns: keepRight,
		columns: joinVariableColumns(left.VariableColumns(), right.VariableColumns(),
			left.ResultWidth(), right.ResultWidth(), joinCols, keepRight, false),
	}, nil
}

// ComputeResult implements the Operation ComputeResult interface.
func (e *JoinOp) ComputeResult(sctx *sessionctx.Context, requestLaziness bool) (*OperationResult, error) {
	if err := checkJoinColumns(e.Left.ResultWidth(), e.Right.ResultWidth(), e.JoinColumns); err != nil {
		return nil, err
	}
	tracker := e.newMemTracker(sctx)
	lRes, rRes, err := computeSortedChildren(sctx, e.Left, e.Right, e.JoinColumns, tracker)
	if err != nil {
		return nil, err
	}
	lt, rt := lRes.table, rRes.table
	defer lt.Close()
	defer rt.Close()

	lCols, _ := splitJoinColumns(e.JoinColumns)
	var t *idtable.IdTable
	if useGalloping(sctx, lt, rt, e.JoinColumns) {
		e.strategy = metrics.LblGalloping
		t, err = GallopingJoin(sctx, lt, rt, e.JoinColumns, e.KeepRightJoinColumns, tracker)
	} else {
		e.strategy = metrics.LblMerge
		t, err = MergeJoin(sctx, lt, rt, e.JoinColumns, e.KeepRightJoinColumns, tracker)
	}
	if err != nil {
		return nil, err
	}
	metrics.JoinCounter.WithLabelValues(e.strategy).Inc()
	return NewMaterializedResult(t, localvocab.Merge(lRes.LocalVocab(), rRes.LocalVocab()), lCols), nil
}

// ResultSortedOn implements the Operation ResultSortedOn interface.
func (e *JoinOp) ResultSortedOn() []int {
	lCols, _ := splitJoinColumns(e.JoinColumns)
	return lCols
}

// VariableColumns implements the Operation VariableColumns interface.
func (e *JoinOp) VariableColumns() map[string]ColumnInfo {
	return e.columns
}

// ResultWidth implements the Operation ResultWidth interface.
func (e *JoinOp) ResultWidth() int {
	return joinResultWidth(e.Left.ResultWidth(), e.Right.ResultWidth(), len(e.JoinColumns), e.KeepRightJoinColumns)
}

func (e *JoinOp) String() string {
	return fmt.Sprintf("JOIN(%s, %s on %v)", e.Left, e.Right, e.JoinColumns)
}

// computeSortedChildren materializes the results of left and right and sorts
// them on their join columns.
func computeSortedChildren(sctx *sessionctx.Context, left, right Operation, joinCols [][2]int, tracker *memory.Tracker) (*OperationResult, *OperationResult, error) {
	lCols, rCols := splitJoinColumns(joinCols)
	lRes, err := materializeChild(sctx, left, tracker)
	if err != nil {
		return nil, nil, err
	}
	rRes, err := materializeChild(sctx, right, tracker)
	if err != nil {
		lRes.table.Close()
		return nil, nil, err
	}
	if err = lRes.table.SortOn(lCols); err == nil {
		err = rRes.table.SortOn(rCols)
	}
	if err != nil {
		lRes.table.Close()
		rRes.table.Close()
		return nil, nil, errors.Trace(err)
	}
	return lRes, rRes, nil
}

func materializeChild(sctx *sessionctx.Context, child Operation, tracker *memory.Tracker) (*OperationResult, error) {
	res, err := ComputeResult(sctx, child, false)
	if err != nil {
		return nil, err
	}
	return res.Materialize(sctx, tracker)
}

// useGalloping reports whether the galloping join should join left and
// right: no join value is unbound and one side is more than GallopThreshold
// times larger than the other.
func useGalloping(sctx *sessionctx.Context, left, right *idtable.IdTable, joinCols [][2]int) bool {
	small := mathutil.Min(left.NumRows(), right.NumRows())
	large := mathutil.Max(left.NumRows(), right.NumRows())
	if small == 0 || large/small <= sctx.GetSessionVars().GallopThreshold {
		return false
	}
	lCols, rCols := splitJoinColumns(joinCols)
	return !hasUnboundIn(left, lCols) && !hasUnboundIn(right, rCols)
}

func checkSorted(t *idtable.IdTable, cols []int, side string) error {
	if !t.IsSortedOn(cols) {
		return ErrContractViolation.GenWithStackByArgs(fmt.Sprintf("%s input not sorted on join columns %v", side, cols))
	}
	return nil
}

// MergeJoin joins left and right, both sorted on their join columns, with
// the zipper algorithm. Unbound join values are compatible with every value.
// The result is sorted on the left join columns and charged to tracker.
func MergeJoin(sctx *sessionctx.Context, left, right *idtable.IdTable, joinCols [][2]int, keepRight bool, tracker *memory.Tracker) (*idtable.IdTable, error) {
	if err := checkJoinColumns(left.NumCols(), right.NumCols(), joinCols); err != nil {
		return nil, err
	}
	lCols, rCols := splitJoinColumns(joinCols)
	if err := checkSorted(left, lCols, "left"); err != nil {
		return nil, err
	}
	if err := checkSorted(right, rCols, "right"); err != nil {
		return nil, err
	}
	j := &innerJoiner{newJoinRowWriter(left, right, joinCols, keepRight, tracker)}
	outOfOrder, err := zipperJoinWithUndef(sctx, left, right, lCols, rCols, j)
	if err != nil {
		j.out.Close()
		return nil, err
	}
	if outOfOrder > 0 {
		if err = j.out.SortOn(lCols); err != nil {
			j.out.Close()
			return nil, errors.Trace(err)
		}
	}
	return j.out, nil
}

// GallopingJoin is MergeJoin for inputs without unbound join values. It
// gallops through the larger input, which is fast if one input is much
// smaller than the other.
func GallopingJoin(sctx *sessionctx.Context, left, right *idtable.IdTable, joinCols [][2]int, keepRight bool, tracker *memory.Tracker) (*idtable.IdTable, error) {
	if err := checkJoinColumns(left.NumCols(), right.NumCols(), joinCols); err != nil {
		return nil, err
	}
	lCols, rCols := splitJoinColumns(joinCols)
	if hasUnboundIn(left, lCols) || hasUnboundIn(right, rCols) {
		return nil, ErrContractViolation.GenWithStackByArgs("galloping join on unbound join values")
	}
	if err := checkSorted(left, lCols, "left"); err != nil {
		return nil, err
	}
	if err := checkSorted(right, rCols, "right"); err != nil {
		return nil, err
	}
	j := &innerJoiner{newJoinRowWriter(left, right, joinCols, keepRight, tracker)}
	if err := gallopingJoin(sctx, left, right, lCols, rCols, j); err != nil {
		j.out.Close()
		return nil, err
	}
	return j.out, nil
}
