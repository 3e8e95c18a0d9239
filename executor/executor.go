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
	"sort"
	"strings"
	"time"

	"github.com/ad-freiburg/qlever-sub009/metrics"
	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/sessionctx/stmtctx"
	"github.com/ad-freiburg/qlever-sub009/util/logutil"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/ad-freiburg/qlever-sub009/util/stringutil"
	"github.com/ad-freiburg/qlever-sub009/util/tracing"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

var (
	_ Operation = &ValuesOp{}
	_ Operation = &SortOp{}
	_ Operation = &IndexScanOp{}
	_ Operation = &JoinOp{}
	_ Operation = &HashJoinOp{}
	_ Operation = &OptionalJoinOp{}
	_ Operation = &GroupByOp{}
)

// ColumnInfo describes the column a variable is bound to.
type ColumnInfo struct {
	Index int
	// MaybeUndefined is set if the column may contain unbound values.
	MaybeUndefined bool
}

// Operation is a node of a query execution tree.
type Operation interface {
	// ComputeResult computes the result of the operation. requestLaziness is
	// a hint, the operation may always return a materialized result.
	ComputeResult(sctx *sessionctx.Context, requestLaziness bool) (*OperationResult, error)
	// ResultSortedOn returns the columns the result is sorted on.
	ResultSortedOn() []int
	// VariableColumns maps the variables bound by the result to their columns.
	VariableColumns() map[string]ColumnInfo
	// ResultWidth returns the number of columns of the result.
	ResultWidth() int
	Children() []Operation
	String() string

	base() *baseOperation
}

type baseOperation struct {
	id       string
	children []Operation
	// strategy is the algorithm picked by the last ComputeResult call.
	strategy string
}

func newBaseOperation(id string, children ...Operation) baseOperation {
	return baseOperation{id: id, children: children}
}

// base returns the baseOperation of an operation, don't override this method!
func (e *baseOperation) base() *baseOperation {
	return e
}

// Children implements the Operation Children interface.
func (e *baseOperation) Children() []Operation {
	return e.children
}

// newMemTracker returns a tracker for the tables of one operation, attached
// to the query's root tracker.
func (e *baseOperation) newMemTracker(sctx *sessionctx.Context) *memory.Tracker {
	t := memory.NewTracker(stringutil.StringerStr(e.id), -1)
	t.AttachTo(sctx.MemTracker())
	return t
}

// ComputeResult computes the result of op, checking for cancellation and
// recording tracing, metrics and runtime statistics. Operations call it for
// their children, never op.ComputeResult directly.
func ComputeResult(sctx *sessionctx.Context, op Operation, requestLaziness bool) (*OperationResult, error) {
	if err := sctx.CheckCancellation(); err != nil {
		return nil, err
	}
	name := op.base().id
	goCtx := sctx.GoCtx()
	span, spanCtx := tracing.ChildSpanFromContext(goCtx, name+".ComputeResult")
	defer span.Finish()
	sctx.SetGoCtx(spanCtx)
	defer sctx.SetGoCtx(goCtx)

	depth := sctx.EnterOperator()
	start := time.Now()
	res, err := op.ComputeResult(sctx, requestLaziness)
	cost := time.Since(start)
	sctx.LeaveOperator()
	if err == nil && res.Width() != op.ResultWidth() {
		err = ErrContractViolation.GenWithStackByArgs(
			fmt.Sprintf("%s declared %d columns but returned %d", name, op.ResultWidth(), res.Width()))
	}
	metrics.OperatorDuration.WithLabelValues(name, metrics.ResultLabel(err)).Observe(cost.Seconds())
	if err != nil {
		if depth == 0 {
			logutil.Logger(goCtx).Warn("operation failed", zap.String("operator", op.String()), zap.Error(err))
		}
		return nil, err
	}

	rows := -1
	if res.IsFullyMaterialized() {
		rows = res.table.NumRows()
	}
	strategy := op.base().strategy
	sessVars := sctx.GetSessionVars()
	sessVars.StmtCtx.RecordRuntimeStat(stmtctx.RuntimeStat{Operator: name, Strategy: strategy, Rows: rows, Duration: cost})
	logutil.Logger(goCtx).Debug("operation finished",
		zap.String("operator", name),
		zap.String("strategy", strategy),
		zap.Int("rows", rows),
		zap.Duration("cost", cost))
	logutil.LogSlowOperator(name, cost, rows, sessVars.SlowThreshold)
	return res, nil
}

// consumeMemory charges bytes to tracker, which may be nil.
func consumeMemory(tracker *memory.Tracker, bytes int64) error {
	if tracker == nil || bytes == 0 {
		return nil
	}
	return errors.Trace(tracker.TryConsume(bytes))
}

func releaseMemory(tracker *memory.Tracker, bytes int64) {
	if tracker != nil && bytes != 0 {
		tracker.Release(bytes)
	}
}

func variableNames(cols map[string]ColumnInfo) []string {
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return cols[names[i]].Index < cols[names[j]].Index })
	return names
}

func formatVariables(cols map[string]ColumnInfo) string {
	return strings.Join(variableNames(cols), " ")
}

func copyInts(s []int) []int {
	if s == nil {
		return nil
	}
	return append([]int(nil), s...)
}
