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
	"github.com/ad-freiburg/qlever-sub009/executor/aggfuncs"
	"github.com/ad-freiburg/qlever-sub009/expression"
	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/pingcap/errors"
)

// lazyGroupBy aggregates a chunked input sorted on the grouping columns
// with one accumulator per aggregate. The group that is open at the end of
// a chunk is carried into the next one.
type lazyGroupBy struct {
	sctx      *sessionctx.Context
	groupCols []int
	childCols map[string]int
	aliases   []*aliasAggregates
	prs       [][]aggfuncs.PartialResult
	block     *groupBlock
	ev        *aliasEvaluator
	env       *aggfuncs.Env
	checker   *sessionctx.CancelChecker
	buf       []types.Id
}

func (e *GroupByOp) newLazyGroupBy(sctx *sessionctx.Context, groupCols []int, vocab *localvocab.LocalVocab, tracker *memory.Tracker) (*lazyGroupBy, error) {
	grouped := e.outputGroupColumns()
	aliases, err := aggregateAliases(e.Aliases, grouped, tracker)
	if err != nil {
		return nil, err
	}
	env := &aggfuncs.Env{LocalVocab: vocab, Vocabulary: e.Vocabulary}
	g := &lazyGroupBy{
		sctx:      sctx,
		groupCols: groupCols,
		childCols: e.childColumnIndexes(),
		aliases:   aliases,
		prs:       make([][]aggfuncs.PartialResult, len(aliases)),
		block:     newGroupBlock(len(groupCols)),
		env:       env,
		checker:   sctx.NewChecker(),
		ev: &aliasEvaluator{
			sctx:     sctx,
			aliases:  aliases,
			env:      env,
			grouped:  grouped,
			previous: e.previousColumns(),
		},
	}
	for i, alias := range aliases {
		for _, f := range alias.funcs {
			g.prs[i] = append(g.prs[i], f.AllocPartialResult())
		}
	}
	return g, nil
}

// feed updates the accumulators with the rows [start, end) of t.
func (g *lazyGroupBy) feed(t *idtable.IdTable, start, end int) error {
	if start >= end {
		return nil
	}
	ctx := &expression.EvalContext{
		Table:           t,
		Begin:           start,
		End:             end,
		VariableColumns: g.childCols,
		LocalVocab:      g.env.LocalVocab,
		SessionCtx:      g.sctx,
		Vocabulary:      g.env.Vocabulary,
	}
	for i, alias := range g.aliases {
		for j, agg := range alias.aggs {
			vals, err := aggregateArgument(ctx, agg, &g.buf)
			if err != nil {
				return err
			}
			if err = alias.funcs[j].UpdatePartialResult(g.env, vals, g.prs[i][j]); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return nil
}

func (g *lazyGroupBy) finalValue(aliasIdx, aggIdx int, rb, re int, dst []types.Id) error {
	v, err := g.aliases[aliasIdx].funcs[aggIdx].FinalResult(g.env, g.prs[aliasIdx][aggIdx])
	if err != nil {
		return errors.Trace(err)
	}
	for i := range dst {
		dst[i] = v
	}
	return nil
}

// commitRow appends the row of the accumulated group to out and resets the
// accumulators.
func (g *lazyGroupBy) commitRow(out *idtable.IdTable) error {
	row := out.NumRows()
	if err := out.AppendEmptyRow(); err != nil {
		return errors.Trace(err)
	}
	if !g.block.empty() {
		for i := range g.groupCols {
			out.Set(row, i, g.block.key.At(0, i))
		}
	}
	if err := g.ev.evaluateAliases(out, row, row+1, g.finalValue); err != nil {
		return err
	}
	g.reset()
	return nil
}

func (g *lazyGroupBy) reset() {
	for i, alias := range g.aliases {
		for j, f := range alias.funcs {
			f.ResetPartialResult(g.prs[i][j])
		}
	}
}

// processChunk aggregates the rows of t, appending the groups finished
// within t to out.
func (g *lazyGroupBy) processChunk(t, out *idtable.IdTable) error {
	if g.block.empty() {
		g.block.reset(t.GetRow(0), g.groupCols)
	}
	last, err := searchBlockBoundaries(t, 0, g.groupCols, g.block, g.checker, func(start, end int) error {
		if err := g.feed(t, start, end); err != nil {
			return err
		}
		return g.commitRow(out)
	})
	if err != nil {
		return err
	}
	return g.feed(t, last, t.NumRows())
}

// lazyGroupByIterator yields the groups of a lazy input chunk by chunk, or
// as a single table if single is set.
type lazyGroupByIterator struct {
	g       *lazyGroupBy
	chunks  ChunkIterator
	out     *idtable.IdTable
	vocab   *localvocab.LocalVocab
	width   int
	tracker *memory.Tracker
	single  bool
	sawRows bool
	done    bool
}

// Next implements the ChunkIterator Next interface.
func (it *lazyGroupByIterator) Next() (*IdTableVocabPair, error) {
	if it.done {
		return nil, nil
	}
	for {
		chunk, err := it.chunks.Next()
		if err != nil {
			return nil, it.fail(errors.Trace(err))
		}
		if chunk == nil {
			break
		}
		if chunk.Table.Empty() {
			continue
		}
		if err = it.g.sctx.CheckCancellation(); err != nil {
			return nil, it.fail(err)
		}
		it.vocab.MergeWith(chunk.LocalVocab)
		if err = it.g.processChunk(chunk.Table, it.out); err != nil {
			return nil, it.fail(err)
		}
		it.sawRows = true
		chunk.Table.Close()
		if !it.single && !it.out.Empty() {
			return it.yield(), nil
		}
	}

	it.done = true
	defer it.g.reset()
	if it.sawRows || len(it.g.groupCols) == 0 {
		if err := it.g.commitRow(it.out); err != nil {
			return nil, it.fail(err)
		}
	}
	if it.out.Empty() && !it.single {
		return nil, nil
	}
	return &IdTableVocabPair{Table: it.out, LocalVocab: it.vocab}, nil
}

// yield returns the finished groups and starts a new output chunk whose
// vocab still resolves every word seen so far.
func (it *lazyGroupByIterator) yield() *IdTableVocabPair {
	pair := &IdTableVocabPair{Table: it.out, LocalVocab: it.vocab}
	it.out = idtable.New(it.width, it.tracker)
	it.vocab = it.vocab.Clone()
	it.g.env.LocalVocab = it.vocab
	return pair
}

func (it *lazyGroupByIterator) fail(err error) error {
	it.done = true
	it.g.reset()
	it.out.Close()
	return err
}

// computeLazy groups the lazy result childRes, sorted on groupCols. The
// result is lazy if requestLaziness is set.
func (e *GroupByOp) computeLazy(sctx *sessionctx.Context, childRes *OperationResult, groupCols []int, requestLaziness bool, tracker *memory.Tracker) (*OperationResult, error) {
	chunks, err := childRes.IdTables()
	if err != nil {
		return nil, err
	}
	vocab := localvocab.New()
	g, err := e.newLazyGroupBy(sctx, groupCols, vocab, tracker)
	if err != nil {
		return nil, err
	}
	it := &lazyGroupByIterator{
		g:       g,
		chunks:  chunks,
		out:     idtable.New(e.ResultWidth(), tracker),
		vocab:   vocab,
		width:   e.ResultWidth(),
		tracker: tracker,
		single:  !requestLaziness,
	}
	if requestLaziness {
		return NewLazyResult(it, e.ResultWidth(), e.ResultSortedOn()), nil
	}
	pair, err := it.Next()
	if err != nil {
		return nil, err
	}
	return NewMaterializedResult(pair.Table, pair.LocalVocab, e.ResultSortedOn()), nil
}
