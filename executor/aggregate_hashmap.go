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
	"github.com/ad-freiburg/qlever-sub009/metrics"
	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/statistics"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/cznic/mathutil"
	"github.com/google/btree"
	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
)

const (
	groupBySampleSeed = 0x5eed
	btreeDegree       = 32
)

// hashMapAggregationData holds the groups of the hash map aggregation: a
// dense id per distinct key in order of first appearance, the key of every
// group and one accumulator per aggregate and group.
type hashMapAggregationData struct {
	keyMap    groupKeyMap
	keys      *idtable.IdTable
	aliases   []*aliasAggregates
	prs       [][][]aggfuncs.PartialResult
	groupIDs  []int
	groupCols []int
	keyBuf    []types.Id
}

func newHashMapAggregationData(groupCols []int, aliases []*aliasAggregates, tracker *memory.Tracker) (*hashMapAggregationData, error) {
	keyMap, err := newGroupKeyMap(len(groupCols), tracker)
	if err != nil {
		return nil, err
	}
	d := &hashMapAggregationData{
		keyMap:    keyMap,
		keys:      idtable.New(len(groupCols), tracker),
		aliases:   aliases,
		prs:       make([][][]aggfuncs.PartialResult, len(aliases)),
		groupCols: groupCols,
		keyBuf:    make([]types.Id, len(groupCols)),
	}
	for i, alias := range aliases {
		d.prs[i] = make([][]aggfuncs.PartialResult, len(alias.funcs))
	}
	return d, nil
}

func (d *hashMapAggregationData) numGroups() int {
	return d.keys.NumRows()
}

// addGroup appends the key of a new group and its accumulators.
func (d *hashMapAggregationData) addGroup(key []types.Id) error {
	if err := d.keys.AppendRow(key...); err != nil {
		return errors.Trace(err)
	}
	for i, alias := range d.aliases {
		for j, f := range alias.funcs {
			d.prs[i][j] = append(d.prs[i][j], f.AllocPartialResult())
		}
	}
	return nil
}

// getHashEntries finds or creates the groups of the rows [begin, end) of t
// and stores their ids in d.groupIDs.
func (d *hashMapAggregationData) getHashEntries(t *idtable.IdTable, begin, end int) error {
	d.groupIDs = d.groupIDs[:0]
	for i := begin; i < end; i++ {
		row := t.GetRow(i)
		gid, err := d.keyMap.getOrInsert(row, d.groupCols)
		if err != nil {
			return err
		}
		if gid == d.numGroups() {
			for c, col := range d.groupCols {
				d.keyBuf[c] = row.At(col)
			}
			if err = d.addGroup(d.keyBuf); err != nil {
				return err
			}
		}
		d.groupIDs = append(d.groupIDs, gid)
	}
	return nil
}

// sortedGroups returns the group ids in the order of their keys.
func (d *hashMapAggregationData) sortedGroups() []int {
	cmp := keyComparatorFor(len(d.groupCols))
	cols := make([]int, len(d.groupCols))
	for i := range cols {
		cols[i] = i
	}
	tree := btree.New(btreeDegree)
	for gid := 0; gid < d.numGroups(); gid++ {
		tree.ReplaceOrInsert(groupKeyItem{keys: d.keys, gid: gid, cols: cols, cmp: cmp})
	}
	order := make([]int, 0, d.numGroups())
	tree.Ascend(func(i btree.Item) bool {
		order = append(order, i.(groupKeyItem).gid)
		return true
	})
	return order
}

func (d *hashMapAggregationData) close() {
	for i, alias := range d.aliases {
		for j, f := range alias.funcs {
			for _, pr := range d.prs[i][j] {
				f.ResetPartialResult(pr)
			}
		}
	}
	d.keyMap.close()
	d.keys.Close()
}

// groupKeyItem orders group ids by their keys.
type groupKeyItem struct {
	keys *idtable.IdTable
	gid  int
	cols []int
	cmp  keyComparator
}

// Less implements the btree.Item Less interface.
func (it groupKeyItem) Less(than btree.Item) bool {
	o := than.(groupKeyItem)
	return it.cmp(it.keys.GetRow(it.gid), it.cols, o.keys.GetRow(o.gid), o.cols) < 0
}

// hashMapAggregator feeds blocks of input rows into the groups of a
// hashMapAggregationData.
type hashMapAggregator struct {
	sctx      *sessionctx.Context
	data      *hashMapAggregationData
	childCols map[string]int
	env       *aggfuncs.Env
	blockSize int
	buf       []types.Id
}

// processTable aggregates all rows of t, block by block.
func (a *hashMapAggregator) processTable(t *idtable.IdTable) error {
	for begin := 0; begin < t.NumRows(); begin += a.blockSize {
		if err := a.processBlock(t, begin, mathutil.Min(begin+a.blockSize, t.NumRows())); err != nil {
			return err
		}
	}
	return nil
}

func (a *hashMapAggregator) processBlock(t *idtable.IdTable, begin, end int) error {
	failpoint.Inject("hashMapAggBlockError", func(val failpoint.Value) {
		if val.(bool) {
			failpoint.Return(errors.New("mock hash map aggregation error"))
		}
	})
	if err := a.sctx.CheckCancellation(); err != nil {
		return err
	}
	if err := a.data.getHashEntries(t, begin, end); err != nil {
		return err
	}
	ctx := &expression.EvalContext{
		Table:           t,
		Begin:           begin,
		End:             end,
		VariableColumns: a.childCols,
		LocalVocab:      a.env.LocalVocab,
		SessionCtx:      a.sctx,
		Vocabulary:      a.env.Vocabulary,
	}
	groupIDs := a.data.groupIDs
	for i, alias := range a.data.aliases {
		for j, agg := range alias.aggs {
			vals, err := aggregateArgument(ctx, agg, &a.buf)
			if err != nil {
				return err
			}
			f, prs := alias.funcs[j], a.data.prs[i][j]
			// Consecutive rows of the same group are fed at once.
			for k := 0; k < len(vals); {
				next := k + 1
				for next < len(vals) && groupIDs[next] == groupIDs[k] {
					next++
				}
				if err = f.UpdatePartialResult(a.env, vals[k:next], prs[groupIDs[k]]); err != nil {
					return errors.Trace(err)
				}
				k = next
			}
		}
	}
	return nil
}

// hashMapVetoed estimates the number of groups from a sample of a
// materialized input and reports whether there are so many groups that
// sorting is expected to be faster than the hash map.
func hashMapVetoed(sctx *sessionctx.Context, childRes *OperationResult, groupCols []int) (bool, error) {
	vars := sctx.GetSessionVars().GroupBy
	if !vars.SampleEnabled || !childRes.IsFullyMaterialized() || len(groupCols) == 0 || childRes.table.Empty() {
		return false, nil
	}
	ratio, err := statistics.EstimateGroupRatio(childRes.table, groupCols, vars.SampleSize, groupBySampleSeed)
	if err != nil {
		return false, errors.Trace(err)
	}
	return ratio > vars.SampleRatioThreshold, nil
}

// computeWithHashMap groups the unsorted childRes with a hash map.
func (e *GroupByOp) computeWithHashMap(sctx *sessionctx.Context, childRes *OperationResult, groupCols []int, tracker *memory.Tracker) (*OperationResult, error) {
	grouped := e.outputGroupColumns()
	aliases, err := aggregateAliases(e.Aliases, grouped, tracker)
	if err != nil {
		closeMaterialized(childRes)
		return nil, err
	}
	data, err := newHashMapAggregationData(groupCols, aliases, tracker)
	if err != nil {
		closeMaterialized(childRes)
		return nil, err
	}
	defer data.close()

	vocab := localvocab.New()
	a := &hashMapAggregator{
		sctx:      sctx,
		data:      data,
		childCols: e.childColumnIndexes(),
		env:       &aggfuncs.Env{LocalVocab: vocab, Vocabulary: e.Vocabulary},
		blockSize: mathutil.Max(sctx.GetSessionVars().GroupBy.HashMapBlockSize, 1),
	}
	if childRes.IsFullyMaterialized() {
		vocab.MergeWith(childRes.LocalVocab())
		err = a.processTable(childRes.table)
		childRes.table.Close()
		if err != nil {
			return nil, err
		}
	} else {
		chunks, err := childRes.IdTables()
		if err != nil {
			return nil, err
		}
		for {
			chunk, err := chunks.Next()
			if err != nil {
				return nil, errors.Trace(err)
			}
			if chunk == nil {
				break
			}
			vocab.MergeWith(chunk.LocalVocab)
			err = a.processTable(chunk.Table)
			chunk.Table.Close()
			if err != nil {
				return nil, err
			}
		}
	}
	if data.numGroups() == 0 && len(groupCols) == 0 {
		if err = data.addGroup(nil); err != nil {
			return nil, err
		}
	}
	metrics.HashMapGroupsHistogram.Observe(float64(data.numGroups()))

	order := data.sortedGroups()
	out := idtable.New(e.ResultWidth(), tracker)
	if err = out.Resize(len(order)); err != nil {
		out.Close()
		return nil, errors.Trace(err)
	}
	for r, gid := range order {
		for c := range groupCols {
			out.Set(r, c, data.keys.At(gid, c))
		}
	}
	ev := &aliasEvaluator{sctx: sctx, aliases: aliases, env: a.env, grouped: grouped, previous: e.previousColumns()}
	finalValues := func(aliasIdx, aggIdx int, rb, re int, dst []types.Id) error {
		f, prs := aliases[aliasIdx].funcs[aggIdx], data.prs[aliasIdx][aggIdx]
		for i := range dst {
			v, err := f.FinalResult(a.env, prs[order[rb+i]])
			if err != nil {
				return errors.Trace(err)
			}
			dst[i] = v
		}
		return nil
	}
	for rb := 0; rb < len(order); rb += a.blockSize {
		if err = sctx.CheckCancellation(); err != nil {
			out.Close()
			return nil, err
		}
		if err = ev.evaluateAliases(out, rb, mathutil.Min(rb+a.blockSize, len(order)), finalValues); err != nil {
			out.Close()
			return nil, err
		}
	}
	return NewMaterializedResult(out, vocab, e.ResultSortedOn()), nil
}
