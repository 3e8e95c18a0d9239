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
	"strings"

	"github.com/ad-freiburg/qlever-sub009/executor/aggfuncs"
	"github.com/ad-freiburg/qlever-sub009/expression"
	"github.com/ad-freiburg/qlever-sub009/metrics"
	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
	"github.com/ad-freiburg/qlever-sub009/util/logutil"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/ad-freiburg/qlever-sub009/util/set"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// GroupByOp groups the result of Child by GroupByVariables and computes
// Aliases per group. The result has one column per grouping variable
// followed by one column per alias, and is sorted on the grouping columns.
type GroupByOp struct {
	baseOperation

	GroupByVariables []string
	Aliases          []Alias
	Child            Operation
	// Vocabulary resolves VocabIndex values for GROUP_CONCAT, it may be nil.
	Vocabulary expression.Vocabulary

	columns map[string]ColumnInfo
}

// NewGroupByOp creates a GroupByOp. Grouping variables that child does not
// bind are dropped, they would group every row together anyway.
func NewGroupByOp(groupBy []string, aliases []Alias, child Operation) (*GroupByOp, error) {
	childCols := child.VariableColumns()
	e := &GroupByOp{
		baseOperation: newBaseOperation("groupBy", child),
		Aliases:       aliases,
		Child:         child,
		columns:       make(map[string]ColumnInfo, len(groupBy)+len(aliases)),
	}
	for _, v := range groupBy {
		info, ok := childCols[v]
		if !ok {
			continue
		}
		if _, dup := e.columns[v]; dup {
			continue
		}
		e.columns[v] = ColumnInfo{Index: len(e.GroupByVariables), MaybeUndefined: info.MaybeUndefined}
		e.GroupByVariables = append(e.GroupByVariables, v)
	}
	for i, alias := range aliases {
		if _, dup := e.columns[alias.Target]; dup {
			return nil, ErrContractViolation.GenWithStackByArgs(
				fmt.Sprintf("alias target %s is already bound", alias.Target))
		}
		e.columns[alias.Target] = ColumnInfo{Index: len(e.GroupByVariables) + i, MaybeUndefined: true}
	}
	return e, nil
}

// ComputeResult implements the Operation ComputeResult interface.
func (e *GroupByOp) ComputeResult(sctx *sessionctx.Context, requestLaziness bool) (*OperationResult, error) {
	groupCols, err := e.childGroupColumns()
	if err != nil {
		return nil, err
	}
	tracker := e.newMemTracker(sctx)
	res, ok, err := e.computeWithShortcuts(sctx, tracker)
	if err != nil || ok {
		return res, err
	}

	var childRes *OperationResult
	if e.useHashMap(sctx) {
		childRes, err = ComputeResult(sctx, e.Child.(*SortOp).Child, true)
		if err != nil {
			return nil, err
		}
		vetoed, err := hashMapVetoed(sctx, childRes, groupCols)
		if err != nil {
			closeMaterialized(childRes)
			return nil, err
		}
		if !vetoed {
			e.recordStrategy(sctx, metrics.LblHashMap)
			return e.computeWithHashMap(sctx, childRes, groupCols, tracker)
		}
		logutil.Logger(sctx.GoCtx()).Debug("hash map GROUP BY vetoed by sampling", zap.Int("rows", childRes.table.NumRows()))
		if err = childRes.table.SortOn(groupCols); err != nil {
			childRes.table.Close()
			return nil, errors.Trace(err)
		}
		childRes = NewMaterializedResult(childRes.table, childRes.LocalVocab(), groupCols)
	} else {
		childRes, err = ComputeResult(sctx, e.Child, e.lazyCompatible())
		if err != nil {
			return nil, err
		}
	}

	if !childRes.IsFullyMaterialized() {
		if e.lazyCompatible() && hasSortPrefix(childRes.SortedOn(), groupCols) {
			e.recordStrategy(sctx, metrics.LblStreamingLazy)
			return e.computeLazy(sctx, childRes, groupCols, requestLaziness, tracker)
		}
		if childRes, err = childRes.Materialize(sctx, tracker); err != nil {
			return nil, err
		}
	}
	e.recordStrategy(sctx, metrics.LblStreamingEager)
	t := childRes.table
	defer t.Close()
	if err = t.SortOn(groupCols); err != nil {
		return nil, errors.Trace(err)
	}
	vocab := childRes.GetCopyOfLocalVocab()
	out, err := e.doGroupBy(sctx, t, groupCols, vocab, tracker)
	if err != nil {
		return nil, err
	}
	return NewMaterializedResult(out, vocab, e.ResultSortedOn()), nil
}

func (e *GroupByOp) recordStrategy(sctx *sessionctx.Context, strategy string) {
	e.strategy = strategy
	metrics.GroupByStrategyCounter.WithLabelValues(strategy).Inc()
	logutil.Logger(sctx.GoCtx()).Debug("GROUP BY strategy", zap.String("strategy", strategy),
		zap.Strings("groupBy", e.GroupByVariables))
}

// childGroupColumns returns the child columns of the grouping variables.
func (e *GroupByOp) childGroupColumns() ([]int, error) {
	childCols := e.Child.VariableColumns()
	cols := make([]int, 0, len(e.GroupByVariables))
	for _, v := range e.GroupByVariables {
		info, ok := childCols[v]
		if !ok {
			return nil, ErrContractViolation.GenWithStackByArgs(fmt.Sprintf("variable %s is not groupable", v))
		}
		cols = append(cols, info.Index)
	}
	return cols, nil
}

// outputGroupColumns maps the grouping variables to their output columns.
func (e *GroupByOp) outputGroupColumns() map[string]int {
	cols := make(map[string]int, len(e.GroupByVariables))
	for i, v := range e.GroupByVariables {
		cols[v] = i
	}
	return cols
}

// previousColumns maps the alias targets to their output columns.
func (e *GroupByOp) previousColumns() map[string]int {
	cols := make(map[string]int, len(e.Aliases))
	for i, alias := range e.Aliases {
		cols[alias.Target] = len(e.GroupByVariables) + i
	}
	return cols
}

func (e *GroupByOp) childColumnIndexes() map[string]int {
	childCols := e.Child.VariableColumns()
	cols := make(map[string]int, len(childCols))
	for name, info := range childCols {
		cols[name] = info.Index
	}
	return cols
}

// lazyCompatible reports whether every alias can be computed with one
// accumulator per aggregate.
func (e *GroupByOp) lazyCompatible() bool {
	grouped := e.outputGroupColumns()
	previous := make(map[string]int, len(e.Aliases))
	for i, alias := range e.Aliases {
		if !isHashMapCompatible(alias, grouped, previous) {
			return false
		}
		previous[alias.Target] = len(grouped) + i
	}
	return true
}

// useHashMap reports whether the hash map aggregation is enabled and
// applicable: the child is a sort, which the hash map makes unnecessary, and
// every alias is supported.
func (e *GroupByOp) useHashMap(sctx *sessionctx.Context) bool {
	if !sctx.GetSessionVars().GroupBy.HashMapEnabled {
		return false
	}
	if _, ok := e.Child.(*SortOp); !ok {
		return false
	}
	return e.lazyCompatible()
}

// hasSortPrefix reports whether sortedOn starts with cols.
func hasSortPrefix(sortedOn, cols []int) bool {
	if len(sortedOn) < len(cols) {
		return false
	}
	for i, c := range cols {
		if sortedOn[i] != c {
			return false
		}
	}
	return true
}

// ResultSortedOn implements the Operation ResultSortedOn interface.
func (e *GroupByOp) ResultSortedOn() []int {
	cols := make([]int, len(e.GroupByVariables))
	for i := range cols {
		cols[i] = i
	}
	return cols
}

// VariableColumns implements the Operation VariableColumns interface.
func (e *GroupByOp) VariableColumns() map[string]ColumnInfo {
	return e.columns
}

// ResultWidth implements the Operation ResultWidth interface.
func (e *GroupByOp) ResultWidth() int {
	return len(e.GroupByVariables) + len(e.Aliases)
}

func (e *GroupByOp) String() string {
	aliases := make([]string, len(e.Aliases))
	for i, alias := range e.Aliases {
		aliases[i] = alias.String()
	}
	return fmt.Sprintf("GROUP BY(%s) %s %s", strings.Join(e.GroupByVariables, " "), strings.Join(aliases, " "), e.Child)
}

// groupBlock holds the key of the group currently being accumulated.
type groupBlock struct {
	key  *idtable.IdTable
	cols []int
}

func newGroupBlock(width int) *groupBlock {
	b := &groupBlock{key: idtable.New(width, nil), cols: make([]int, width)}
	for i := range b.cols {
		b.cols[i] = i
	}
	return b
}

func (b *groupBlock) empty() bool {
	return b.key.NumRows() == 0
}

// reset sets the key to the columns groupCols of row.
func (b *groupBlock) reset(row idtable.Row, groupCols []int) {
	if b.empty() {
		// The key table has no tracker, appending cannot fail.
		_ = b.key.AppendEmptyRow()
	}
	for i, c := range groupCols {
		b.key.Set(0, i, row.At(c))
	}
}

func (b *groupBlock) row() idtable.Row {
	return b.key.GetRow(0)
}

// searchBlockBoundaries scans the rows [begin, t.NumRows()) of t and calls
// onBlockChange(start, end) whenever the key groupCols differs from the
// block, which is then reset to the new key. It returns the start of the
// last block, which is still open.
func searchBlockBoundaries(t *idtable.IdTable, begin int, groupCols []int, block *groupBlock, checker *sessionctx.CancelChecker,
	onBlockChange func(start, end int) error) (int, error) {
	cmp := keyComparatorFor(len(groupCols))
	start := begin
	for i := begin; i < t.NumRows(); i++ {
		if err := checker.Tick(); err != nil {
			return 0, err
		}
		row := t.GetRow(i)
		if cmp(row, groupCols, block.row(), block.cols) == 0 {
			continue
		}
		if err := onBlockChange(start, i); err != nil {
			return 0, err
		}
		block.reset(row, groupCols)
		start = i
	}
	return start, nil
}

// blockAggregator computes the aliases of one group at a time from the
// rows of the group, supporting every aggregate including DISTINCT, STDEV
// and nested aggregates.
type blockAggregator struct {
	sctx      *sessionctx.Context
	aliases   []*aliasAggregates
	prs       [][]aggfuncs.PartialResult
	groupCols []int
	childCols map[string]int
	grouped   set.StringSet
	previous  map[string]int
	env       *aggfuncs.Env
	buf       []types.Id
}

func (e *GroupByOp) newBlockAggregator(sctx *sessionctx.Context, groupCols []int, vocab *localvocab.LocalVocab, tracker *memory.Tracker) (*blockAggregator, error) {
	aliases, err := aggregateAliases(e.Aliases, e.outputGroupColumns(), tracker)
	if err != nil {
		return nil, err
	}
	a := &blockAggregator{
		sctx:      sctx,
		aliases:   aliases,
		prs:       make([][]aggfuncs.PartialResult, len(aliases)),
		groupCols: groupCols,
		childCols: e.childColumnIndexes(),
		grouped:   set.NewStringSet(e.GroupByVariables...),
		previous:  e.previousColumns(),
		env:       &aggfuncs.Env{LocalVocab: vocab, Vocabulary: e.Vocabulary},
	}
	for i, alias := range aliases {
		for _, f := range alias.funcs {
			a.prs[i] = append(a.prs[i], f.AllocPartialResult())
		}
	}
	return a, nil
}

func (a *blockAggregator) close() {
	for i, alias := range a.aliases {
		for j, f := range alias.funcs {
			f.ResetPartialResult(a.prs[i][j])
		}
	}
}

// processBlock appends the row of the group [start, end) of t to out.
func (a *blockAggregator) processBlock(t, out *idtable.IdTable, start, end int) error {
	row := out.NumRows()
	if err := out.AppendEmptyRow(); err != nil {
		return errors.Trace(err)
	}
	if start < end {
		for i, c := range a.groupCols {
			out.Set(row, i, t.At(start, c))
		}
	}
	for i, alias := range a.aliases {
		overlay := make(expression.Overlay, len(alias.aggs))
		ctx := &expression.EvalContext{
			Table:                 t,
			Begin:                 start,
			End:                   end,
			VariableColumns:       a.childCols,
			LocalVocab:            a.env.LocalVocab,
			SessionCtx:            a.sctx,
			GroupedVariables:      a.grouped,
			IsPartOfGroupBy:       true,
			PreviousResults:       out,
			PreviousResultColumns: a.previous,
			ResultBegin:           row,
			ResultEnd:             row + 1,
			Overlay:               overlay,
			Vocabulary:            a.env.Vocabulary,
		}
		// Post order, so nested aggregates are in the overlay before the
		// aggregates containing them are computed.
		for j, agg := range alias.aggs {
			vals, err := aggregateArgument(ctx, agg, &a.buf)
			if err != nil {
				return err
			}
			f, pr := alias.funcs[j], a.prs[i][j]
			f.ResetPartialResult(pr)
			if err = f.UpdatePartialResult(a.env, vals, pr); err != nil {
				return errors.Trace(err)
			}
			final, err := f.FinalResult(a.env, pr)
			if err != nil {
				return errors.Trace(err)
			}
			overlay[agg] = expression.ConstResult(final)
		}
		res, err := expression.Evaluate(ctx, alias.Expr)
		if err != nil {
			return errors.Trace(err)
		}
		val := types.Undef
		switch {
		case res.IsConstant():
			val = res.Constant()
		case res.Len() == 1:
			val = res.At(0)
		case res.Len() > 1:
			return ErrContractViolation.GenWithStackByArgs(
				fmt.Sprintf("alias %s is not constant within a group", alias.Alias))
		}
		out.Set(row, alias.outCol, val)
	}
	return nil
}

// processEmptyImplicitGroup appends the single row of the implicit group of
// an empty input.
func (a *blockAggregator) processEmptyImplicitGroup(t, out *idtable.IdTable) error {
	return a.processBlock(t, out, 0, 0)
}

// doGroupBy groups t, sorted on groupCols, block by block.
func (e *GroupByOp) doGroupBy(sctx *sessionctx.Context, t *idtable.IdTable, groupCols []int, vocab *localvocab.LocalVocab, tracker *memory.Tracker) (*idtable.IdTable, error) {
	a, err := e.newBlockAggregator(sctx, groupCols, vocab, tracker)
	if err != nil {
		return nil, err
	}
	defer a.close()
	out := idtable.New(e.ResultWidth(), tracker)
	if t.Empty() {
		if len(groupCols) == 0 {
			if err = a.processEmptyImplicitGroup(t, out); err != nil {
				out.Close()
				return nil, err
			}
		}
		return out, nil
	}

	block := newGroupBlock(len(groupCols))
	block.reset(t.GetRow(0), groupCols)
	last, err := searchBlockBoundaries(t, 0, groupCols, block, sctx.NewChecker(), func(start, end int) error {
		return a.processBlock(t, out, start, end)
	})
	if err == nil {
		err = a.processBlock(t, out, last, t.NumRows())
	}
	if err != nil {
		out.Close()
		return nil, err
	}
	return out, nil
}
