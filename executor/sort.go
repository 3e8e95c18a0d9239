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

	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/pingcap/errors"
)

// SortOp stably sorts the result of its child on SortColumns.
type SortOp struct {
	baseOperation

	Child       Operation
	SortColumns []int
}

// NewSortOp creates a SortOp.
func NewSortOp(child Operation, sortColumns []int) *SortOp {
	return &SortOp{
		baseOperation: newBaseOperation("sort", child),
		Child:         child,
		SortColumns:   copyInts(sortColumns),
	}
}

// ComputeResult implements the Operation ComputeResult interface.
func (e *SortOp) ComputeResult(sctx *sessionctx.Context, requestLaziness bool) (*OperationResult, error) {
	for _, col := range e.SortColumns {
		if col < 0 || col >= e.Child.ResultWidth() {
			return nil, ErrContractViolation.GenWithStackByArgs(
				fmt.Sprintf("sort column %d out of range for width %d", col, e.Child.ResultWidth()))
		}
	}
	childResult, err := ComputeResult(sctx, e.Child, false)
	if err != nil {
		return nil, err
	}
	childResult, err = childResult.Materialize(sctx, e.newMemTracker(sctx))
	if err != nil {
		return nil, err
	}
	t := childResult.table
	if err = t.SortOn(e.SortColumns); err != nil {
		t.Close()
		return nil, errors.Trace(err)
	}
	return NewMaterializedResult(t, childResult.LocalVocab(), e.SortColumns), nil
}

// ResultSortedOn implements the Operation ResultSortedOn interface.
func (e *SortOp) ResultSortedOn() []int {
	return e.SortColumns
}

// VariableColumns implements the Operation VariableColumns interface.
func (e *SortOp) VariableColumns() map[string]ColumnInfo {
	return e.Child.VariableColumns()
}

// ResultWidth implements the Operation ResultWidth interface.
func (e *SortOp) ResultWidth() int {
	return e.Child.ResultWidth()
}

func (e *SortOp) String() string {
	return fmt.Sprintf("SORT(%v, %s)", e.SortColumns, e.Child)
}
