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
	"github.com/ad-freiburg/qlever-sub009/expression"
	"github.com/ad-freiburg/qlever-sub009/index"
	"github.com/ad-freiburg/qlever-sub009/metrics"
	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/pingcap/errors"
)

type groupByShortcut func(sctx *sessionctx.Context, tracker *memory.Tracker) (*OperationResult, bool, error)

// computeWithShortcuts tries the strategies that answer the GROUP BY
// without aggregating every row, in order. ok is false if none applies.
func (e *GroupByOp) computeWithShortcuts(sctx *sessionctx.Context, tracker *memory.Tracker) (res *OperationResult, ok bool, err error) {
	shortcuts := []groupByShortcut{e.computeCountStar}
	if !sctx.GetSessionVars().GroupBy.DisableIndexScanOptimizations {
		shortcuts = append(shortcuts, e.computeSingleScanCount, e.computeFullScanCount)
	}
	shortcuts = append(shortcuts, e.computeObjectWithCount, e.computeJoinWithFullScan)
	for _, shortcut := range shortcuts {
		if res, ok, err = shortcut(sctx, tracker); err != nil || ok {
			return res, ok, err
		}
	}
	return nil, false, nil
}

// countAggregate returns the aggregate of alias if it is a COUNT.
func countAggregate(alias Alias) (*expression.AggregateFunc, bool) {
	agg, ok := alias.Expr.(*expression.AggregateFunc)
	if !ok || agg.Kind() != expression.AggCount {
		return nil, false
	}
	return agg, true
}

// countedVariable returns the variable counted by agg.
func countedVariable(agg *expression.AggregateFunc) (string, bool) {
	v, ok := agg.Arg().(*expression.Variable)
	if !ok {
		return "", false
	}
	return v.Name, true
}

// permutationStartingAt returns the permutation whose first key column is
// the triple position pos.
func permutationStartingAt(pos int) index.Permutation {
	switch pos {
	case index.Subject:
		return index.SPO
	case index.Predicate:
		return index.POS
	}
	return index.OSP
}

// isFullScan reports whether scan is a scan of every triple.
func isFullScan(scan *IndexScanOp) bool {
	return scan.NumVariables() == 3 && scan.AllGraphs && len(scan.AdditionalVariables) == 0 && scan.Limit.IsUnconstrained()
}

func singleValueResult(id types.Id, tracker *memory.Tracker) (*OperationResult, error) {
	t, err := idtable.FromRows(1, tracker, []types.Id{id})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewMaterializedResult(t, nil, nil), nil
}

// computeCountStar answers a single COUNT(*) without grouping variables
// with the number of rows of the child.
func (e *GroupByOp) computeCountStar(sctx *sessionctx.Context, tracker *memory.Tracker) (*OperationResult, bool, error) {
	if len(e.GroupByVariables) != 0 || len(e.Aliases) != 1 {
		return nil, false, nil
	}
	agg, ok := countAggregate(e.Aliases[0])
	if !ok || !agg.IsCountStar() || agg.Distinct() {
		return nil, false, nil
	}
	e.recordStrategy(sctx, metrics.LblCountStar)
	childRes, err := ComputeResult(sctx, e.Child, true)
	if err != nil {
		return nil, true, err
	}
	var n int64
	if childRes.IsFullyMaterialized() {
		n = int64(childRes.table.NumRows())
		childRes.table.Close()
	} else {
		chunks, err := childRes.IdTables()
		if err != nil {
			return nil, true, err
		}
		for {
			if err = sctx.CheckCancellation(); err != nil {
				return nil, true, err
			}
			chunk, err := chunks.Next()
			if err != nil {
				return nil, true, errors.Trace(err)
			}
			if chunk == nil {
				break
			}
			n += int64(chunk.Table.NumRows())
			chunk.Table.Close()
		}
	}
	res, err := singleValueResult(types.NewInt(n), tracker)
	return res, true, err
}

// computeSingleScanCount answers a single COUNT without grouping variables
// over an index scan from the index metadata.
func (e *GroupByOp) computeSingleScanCount(sctx *sessionctx.Context, tracker *memory.Tracker) (*OperationResult, bool, error) {
	if len(e.GroupByVariables) != 0 || len(e.Aliases) != 1 {
		return nil, false, nil
	}
	scan, ok := e.Child.(*IndexScanOp)
	if !ok || scan.NumVariables() < 2 || !scan.AllGraphs {
		return nil, false, nil
	}
	agg, ok := countAggregate(e.Aliases[0])
	if !ok {
		return nil, false, nil
	}
	name, ok := countedVariable(agg)
	if !ok {
		return nil, false, nil
	}
	if agg.Distinct() && !isFullScan(scan) {
		return nil, false, nil
	}

	var count int64
	pos, bound := scan.PositionOf(name)
	switch {
	case !bound:
		count = 0
	case scan.NumVariables() == 3 && agg.Distinct():
		count = scan.Index.NumDistinctCol0(permutationStartingAt(pos))
	case scan.NumVariables() == 3:
		count = scan.Limit.ActualSize(scan.Index.NumTriples())
	default:
		count = scan.Limit.ActualSize(scan.ExactSize())
	}
	e.recordStrategy(sctx, metrics.LblSingleScan)
	res, err := singleValueResult(types.NewInt(count), tracker)
	return res, true, err
}

// computeFullScanCount answers a GROUP BY of one variable over a scan of
// every triple from the distinct values of the permutation starting with
// that variable.
func (e *GroupByOp) computeFullScanCount(sctx *sessionctx.Context, tracker *memory.Tracker) (*OperationResult, bool, error) {
	if len(e.GroupByVariables) != 1 {
		return nil, false, nil
	}
	scan, ok := e.Child.(*IndexScanOp)
	if !ok || !isFullScan(scan) {
		return nil, false, nil
	}
	pos, ok := scan.PositionOf(e.GroupByVariables[0])
	if !ok {
		return nil, false, nil
	}
	for _, alias := range e.Aliases {
		agg, ok := countAggregate(alias)
		if !ok || agg.Distinct() {
			return nil, false, nil
		}
	}
	if len(e.Aliases) > 1 {
		return nil, true, ErrUnsupportedQueryShape.GenWithStackByArgs(
			"redundant aggregate, every COUNT in a GROUP BY over all triples has the same value, reformulate the query")
	}

	e.recordStrategy(sctx, metrics.LblFullScan)
	t, err := scan.Index.DistinctCol0IdsAndCounts(sctx, permutationStartingAt(pos), index.NoLimit)
	if err != nil {
		return nil, true, errors.Trace(err)
	}
	if len(e.Aliases) == 0 {
		t.SetColumnSubset([]int{0})
		return NewMaterializedResult(t, nil, e.ResultSortedOn()), true, nil
	}
	agg, _ := countAggregate(e.Aliases[0])
	if name, isVar := countedVariable(agg); isVar {
		if _, bound := scan.PositionOf(name); !bound {
			counts := t.Column(1)
			for i := range counts {
				counts[i] = types.NewInt(0)
			}
		}
	}
	return NewMaterializedResult(t, nil, e.ResultSortedOn()), true, nil
}

// computeObjectWithCount answers the COUNT per value of the second key
// column of a scan with a fixed first key column from the index metadata.
func (e *GroupByOp) computeObjectWithCount(sctx *sessionctx.Context, tracker *memory.Tracker) (*OperationResult, bool, error) {
	if len(e.GroupByVariables) != 1 || len(e.Aliases) != 1 {
		return nil, false, nil
	}
	scan, ok := e.Child.(*IndexScanOp)
	if !ok || scan.NumVariables() != 2 || !scan.AllGraphs || len(scan.AdditionalVariables) != 0 || !scan.Limit.IsUnconstrained() {
		return nil, false, nil
	}
	agg, ok := countAggregate(e.Aliases[0])
	if !ok || agg.Distinct() {
		return nil, false, nil
	}
	name, ok := countedVariable(agg)
	if !ok {
		return nil, false, nil
	}
	if _, ok = scan.PositionOf(name); !ok {
		return nil, false, nil
	}
	if scan.variables[0] != e.GroupByVariables[0] {
		return nil, true, ErrContractViolation.GenWithStackByArgs(
			"grouping variable " + e.GroupByVariables[0] + " is not the second key column of " + scan.String())
	}

	e.recordStrategy(sctx, metrics.LblObjectWithCount)
	t, err := scan.Index.DistinctCol1IdsAndCounts(sctx, scan.Prefix()[0], scan.Perm, index.NoLimit)
	if err != nil {
		return nil, true, errors.Trace(err)
	}
	return NewMaterializedResult(t, nil, e.ResultSortedOn()), true, nil
}

// computeJoinWithFullScan answers the COUNT per value of the join variable
// of a join with a scan of every triple: each row of the other side with
// key k joins Cardinality(k) triples.
func (e *GroupByOp) computeJoinWithFullScan(sctx *sessionctx.Context, tracker *memory.Tracker) (*OperationResult, bool, error) {
	if len(e.GroupByVariables) != 1 || len(e.Aliases) != 1 {
		return nil, false, nil
	}
	join, ok := e.Child.(*JoinOp)
	if !ok || len(join.JoinColumns) != 1 || join.KeepRightJoinColumns {
		return nil, false, nil
	}
	agg, ok := countAggregate(e.Aliases[0])
	if !ok || agg.Distinct() {
		return nil, false, nil
	}
	groupVar := e.GroupByVariables[0]
	sides := [2]Operation{join.Left, join.Right}
	for i, side := range sides {
		scan, ok := side.(*IndexScanOp)
		if !ok || !isFullScan(scan) {
			continue
		}
		if name, isVar := countedVariable(agg); isVar {
			if _, ok = scan.PositionOf(name); !ok {
				continue
			}
		}
		scanInfo, ok := scan.VariableColumns()[groupVar]
		if !ok || scanInfo.Index != join.JoinColumns[0][i] {
			continue
		}
		other := sides[1-i]
		otherInfo, ok := other.VariableColumns()[groupVar]
		if !ok || otherInfo.MaybeUndefined || otherInfo.Index != join.JoinColumns[0][1-i] {
			continue
		}
		pos, _ := scan.PositionOf(groupVar)
		res, err := e.joinWithFullScan(sctx, scan, permutationStartingAt(pos), other, otherInfo.Index, tracker)
		return res, true, err
	}
	return nil, false, nil
}

func (e *GroupByOp) joinWithFullScan(sctx *sessionctx.Context, scan *IndexScanOp, perm index.Permutation,
	other Operation, col int, tracker *memory.Tracker) (*OperationResult, error) {
	e.recordStrategy(sctx, metrics.LblJoinWithFullScan)
	otherRes, err := materializeChild(sctx, other, tracker)
	if err != nil {
		return nil, err
	}
	t := otherRes.table
	defer t.Close()
	if err = t.SortOn([]int{col}); err != nil {
		return nil, errors.Trace(err)
	}
	checker := sctx.NewChecker()
	out := idtable.New(2, tracker)
	for i := 0; i < t.NumRows(); {
		if err = checker.Tick(); err != nil {
			out.Close()
			return nil, err
		}
		key := t.At(i, col)
		end := i + 1
		for end < t.NumRows() && t.At(end, col) == key {
			end++
		}
		count := int64(end-i) * scan.Index.Cardinality(key, perm)
		if count > 0 {
			if err = out.AppendRow(key, types.NewInt(count)); err != nil {
				out.Close()
				return nil, errors.Trace(err)
			}
		}
		i = end
	}
	return NewMaterializedResult(out, otherRes.GetCopyOfLocalVocab(), e.ResultSortedOn()), nil
}
