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
	"github.com/ad-freiburg/qlever-sub009/util/codec"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/ad-freiburg/qlever-sub009/util/mvmap"
	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
)

// HashJoinOp joins the results of Left and Right on JoinColumns with a hash
// join. The children need not be sorted and neither is the result.
type HashJoinOp struct {
	baseOperation

	Left, Right          Operation
	JoinColumns          [][2]int
	KeepRightJoinColumns bool

	columns map[string]ColumnInfo
}

// NewHashJoinOp creates a HashJoinOp.
func NewHashJoinOp(left, right Operation, joinCols [][2]int, keepRight bool) (*HashJoinOp, error) {
	if err := checkJoinColumns(left.ResultWidth(), right.ResultWidth(), joinCols); err != nil {
		return nil, err
	}
	return &HashJoinOp{
		baseOperation:        newBaseOperation("hashJoin", left, right),
		Left:                 left,
		Right:                right,
		JoinColumns:          joinCols,
		KeepRightJoinColumns: keepRight,
		columns: joinVariableColumns(left.VariableColumns(), right.VariableColumns(),
			left.ResultWidth(), right.ResultWidth(), joinCols, keepRight, false),
	}, nil
}

// ComputeResult implements the Operation ComputeResult interface.
func (e *HashJoinOp) ComputeResult(sctx *sessionctx.Context, requestLaziness bool) (*OperationResult, error) {
	if err := checkJoinColumns(e.Left.ResultWidth(), e.Right.ResultWidth(), e.JoinColumns); err != nil {
		return nil, err
	}
	tracker := e.newMemTracker(sctx)
	lRes, err := materializeChild(sctx, e.Left, tracker)
	if err != nil {
		return nil, err
	}
	defer lRes.table.Close()
	rRes, err := materializeChild(sctx, e.Right, tracker)
	if err != nil {
		return nil, err
	}
	defer rRes.table.Close()

	t, err := HashJoin(sctx, lRes.table, rRes.table, e.JoinColumns, e.KeepRightJoinColumns, tracker)
	if err != nil {
		return nil, err
	}
	e.strategy = metrics.LblHash
	metrics.JoinCounter.WithLabelValues(metrics.LblHash).Inc()
	return NewMaterializedResult(t, localvocab.Merge(lRes.LocalVocab(), rRes.LocalVocab()), nil), nil
}

// ResultSortedOn implements the Operation ResultSortedOn interface.
func (e *HashJoinOp) ResultSortedOn() []int {
	return nil
}

// VariableColumns implements the Operation VariableColumns interface.
func (e *HashJoinOp) VariableColumns() map[string]ColumnInfo {
	return e.columns
}

// ResultWidth implements the Operation ResultWidth interface.
func (e *HashJoinOp) ResultWidth() int {
	return joinResultWidth(e.Left.ResultWidth(), e.Right.ResultWidth(), len(e.JoinColumns), e.KeepRightJoinColumns)
}

func (e *HashJoinOp) String() string {
	return fmt.Sprintf("HASH JOIN(%s, %s on %v)", e.Left, e.Right, e.JoinColumns)
}

// hashJoinSide is one input of a hash join.
type hashJoinSide struct {
	t    *idtable.IdTable
	cols []int
}

// HashJoin joins left and right by building a hash table over the smaller
// input and probing it with the larger one. Rows with unbound join values
// are kept out of the hash table and checked for compatibility with every
// row of the other side. Every compatible pair is emitted once, in no
// particular order.
func HashJoin(sctx *sessionctx.Context, left, right *idtable.IdTable, joinCols [][2]int, keepRight bool, tracker *memory.Tracker) (*idtable.IdTable, error) {
	if err := checkJoinColumns(left.NumCols(), right.NumCols(), joinCols); err != nil {
		return nil, err
	}
	lCols, rCols := splitJoinColumns(joinCols)
	j := &innerJoiner{newJoinRowWriter(left, right, joinCols, keepRight, tracker)}
	build, probe := hashJoinSide{left, lCols}, hashJoinSide{right, rCols}
	buildIsLeft := left.NumRows() <= right.NumRows()
	if !buildIsLeft {
		build, probe = probe, build
	}
	emit := func(b, p int) error {
		if buildIsLeft {
			return j.tryToMatch(b, p)
		}
		return j.tryToMatch(p, b)
	}

	failpoint.Inject("hashJoinBuildError", func(val failpoint.Value) {
		if val.(bool) {
			failpoint.Return(nil, errors.New("mock hash join build error"))
		}
	})
	checker := sctx.NewChecker()
	hashTable := mvmap.NewMVMap()
	charged := hashTable.BytesUsed()
	defer func() {
		releaseMemory(tracker, charged)
	}()
	if err := consumeMemory(tracker, charged); err != nil {
		charged = 0
		j.out.Close()
		return nil, errors.Trace(err)
	}
	var (
		buildUndef []int
		keyBuf     []byte
		valBuf     []byte
	)
	for b := 0; b < build.t.NumRows(); b++ {
		if err := checker.Tick(); err != nil {
			j.out.Close()
			return nil, err
		}
		row := build.t.GetRow(b)
		if row.HasUnbound(build.cols) {
			buildUndef = append(buildUndef, b)
			continue
		}
		keyBuf = codec.EncodeRowKey(keyBuf[:0], row, build.cols)
		valBuf = codec.EncodeRowIdx(valBuf[:0], b)
		grown := hashTable.Put(keyBuf, valBuf)
		if err := consumeMemory(tracker, grown); err != nil {
			j.out.Close()
			return nil, errors.Trace(err)
		}
		charged += grown
	}

	var values [][]byte
	for p := 0; p < probe.t.NumRows(); p++ {
		if err := checker.Tick(); err != nil {
			j.out.Close()
			return nil, err
		}
		prow := probe.t.GetRow(p)
		if prow.HasUnbound(probe.cols) {
			for b := 0; b < build.t.NumRows(); b++ {
				if !idtable.Compatible(build.t.GetRow(b), build.cols, prow, probe.cols) {
					continue
				}
				if err := emit(b, p); err != nil {
					j.out.Close()
					return nil, err
				}
			}
			continue
		}
		keyBuf = codec.EncodeRowKey(keyBuf[:0], prow, probe.cols)
		values = hashTable.Get(keyBuf, values[:0])
		for _, v := range values {
			b, err := codec.DecodeRowIdx(v)
			if err != nil {
				j.out.Close()
				return nil, err
			}
			if err = emit(b, p); err != nil {
				j.out.Close()
				return nil, err
			}
		}
		for _, b := range buildUndef {
			if !idtable.Compatible(build.t.GetRow(b), build.cols, prow, probe.cols) {
				continue
			}
			if err := emit(b, p); err != nil {
				j.out.Close()
				return nil, err
			}
		}
	}
	return j.out, nil
}
