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
	"github.com/pingcap/errors"
)

// OptionalJoinOp is the left outer join of SPARQL OPTIONAL: every row of
// Left is kept, left rows without a compatible right row get NoMatch in the
// right columns.
type OptionalJoinOp struct {
	baseOperation

	Left, Right Operation
	JoinColumns [][2]int

	columns map[string]ColumnInfo
}

// NewOptionalJoinOp creates an OptionalJoinOp.
func NewOptionalJoinOp(left, right Operation, joinCols [][2]int) (*OptionalJoinOp, error) {
	if err := checkJoinColumns(left.ResultWidth(), right.ResultWidth(), joinCols); err != nil {
		return nil, err
	}
	return &OptionalJoinOp{
		baseOperation: newBaseOperation("optionalJoin", left, right),
		Left:          left,
		Right:         right,
		JoinColumns:   joinCols,
		columns: joinVariableColumns(left.VariableColumns(), right.VariableColumns(),
			left.ResultWidth(), right.ResultWidth(), joinCols, false, true),
	}, nil
}

// ComputeResult implements the Operation ComputeResult interface.
func (e *OptionalJoinOp) ComputeResult(sctx *sessionctx.Context, requestLaziness bool) (*OperationResult, error) {
	if err := checkJoinColumns(e.Left.ResultWidth(), e.Right.ResultWidth(), e.JoinColumns); err != nil {
		return nil, err
	}
	tracker := e.newMemTracker(sctx)
	lRes, rRes, err := computeSortedChildren(sctx, e.Left, e.Right, e.JoinColumns, tracker)
	if err != nil {
		return nil, err
	}
	defer lRes.table.Close()
	defer rRes.table.Close()

	t, err := OptionalJoin(sctx, lRes.table, rRes.table, e.JoinColumns, tracker)
	if err != nil {
		return nil, err
	}
	e.strategy = metrics.LblOptional
	metrics.JoinCounter.WithLabelValues(metrics.LblOptional).Inc()
	return NewMaterializedResult(t, localvocab.Merge(lRes.LocalVocab(), rRes.LocalVocab()), e.ResultSortedOn()), nil
}

// ResultSortedOn implements the Operation ResultSortedOn interface.
func (e *OptionalJoinOp) ResultSortedOn() []int {
	lCols, _ := splitJoinColumns(e.JoinColumns)
	return lCols
}

// VariableColumns implements the Operation VariableColumns interface.
func (e *OptionalJoinOp) VariableColumns() map[string]ColumnInfo {
	return e.columns
}

// ResultWidth implements the Operation ResultWidth interface.
func (e *OptionalJoinOp) ResultWidth() int {
	return joinResultWidth(e.Left.ResultWidth(), e.Right.ResultWidth(), len(e.JoinColumns), false)
}

func (e *OptionalJoinOp) String() string {
	return fmt.Sprintf("OPTIONAL JOIN(%s, %s on %v)", e.Left, e.Right, e.JoinColumns)
}

// OptionalJoin computes the left outer join of left and right, both sorted
// on their join columns. Left rows without a compatible right row are
// emitted once with NoMatch in the right columns. The result is sorted on
// the left join columns.
func OptionalJoin(sctx *sessionctx.Context, left, right *idtable.IdTable, joinCols [][2]int, tracker *memory.Tracker) (*idtable.IdTable, error) {
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
	j := &leftOuterJoiner{newJoinRowWriter(left, right, joinCols, false, tracker)}
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
