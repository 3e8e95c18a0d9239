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
	"github.com/ad-freiburg/qlever-sub009/metrics"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
	. "github.com/pingcap/check"
)

var _ = Suite(&testGroupBySuite{})

type testGroupBySuite struct{}

func aggOf(kind expression.AggKind, v string) *expression.AggregateFunc {
	return expression.NewAggregateFunc(kind, false, expression.NewVariable(v))
}

func chunkOf(c *C, width int, rows ...[]types.Id) *IdTableVocabPair {
	return &IdTableVocabPair{Table: newTable(c, width, rows...), LocalVocab: localvocab.New()}
}

func (s *testGroupBySuite) TestGroupBySpanningChunks(c *C) {
	withDispatchModes(func() {
		newChild := func() *ValuesOp {
			return NewLazyValuesOp([]*IdTableVocabPair{
				chunkOf(c, 2, ints(1, 0)),
				chunkOf(c, 2, ints(2, 1), ints(4, 1)),
				chunkOf(c, 2, ints(8, 2), ints(16, 2)),
			}, []string{"?x", "?g"}, []int{1})
		}
		aliases := []Alias{{Expr: aggOf(expression.AggSum, "?x"), Target: "?s"}}

		sctx := newTestContext()
		op, err := NewGroupByOp([]string{"?g"}, aliases, newChild())
		c.Assert(err, IsNil)
		res, err := ComputeResult(sctx, op, true)
		c.Assert(err, IsNil)
		c.Assert(res.IsFullyMaterialized(), IsFalse)
		c.Assert(op.strategy, Equals, metrics.LblStreamingLazy)
		chunks, err := res.IdTables()
		c.Assert(err, IsNil)
		var outputs [][][]types.Id
		for {
			chunk, err := chunks.Next()
			c.Assert(err, IsNil)
			if chunk == nil {
				break
			}
			outputs = append(outputs, chunk.Table.Rows())
			chunk.Table.Close()
		}
		c.Assert(outputs, DeepEquals, [][][]types.Id{
			{ints(0, 1)},
			{ints(1, 6)},
			{ints(2, 24)},
		})

		op, err = NewGroupByOp([]string{"?g"}, aliases, newChild())
		c.Assert(err, IsNil)
		c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(0, 1), ints(1, 6), ints(2, 24)})
	})
}

func (s *testGroupBySuite) TestEmptyImplicitGroup(c *C) {
	sctx := newTestContext()
	countStar := []Alias{{Expr: expression.NewCountStar(false), Target: "?c"}}
	op, err := NewGroupByOp(nil, countStar, newValues(c, []string{"?x"}))
	c.Assert(err, IsNil)
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(0)})
	c.Assert(op.strategy, Equals, metrics.LblCountStar)

	sum := []Alias{{Expr: aggOf(expression.AggSum, "?x"), Target: "?s"}}
	op, err = NewGroupByOp(nil, sum, newValues(c, []string{"?x"}))
	c.Assert(err, IsNil)
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(0)})
	c.Assert(op.strategy, Equals, metrics.LblStreamingEager)

	op, err = NewGroupByOp(nil, sum, NewLazyValuesOp([]*IdTableVocabPair{}, []string{"?x"}, nil))
	c.Assert(err, IsNil)
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(0)})
	c.Assert(op.strategy, Equals, metrics.LblStreamingLazy)

	sctx.GetSessionVars().GroupBy.HashMapEnabled = true
	op, err = NewGroupByOp(nil, sum, NewSortOp(newValues(c, []string{"?x"}), nil))
	c.Assert(err, IsNil)
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(0)})
	c.Assert(op.strategy, Equals, metrics.LblHashMap)
}

func (s *testGroupBySuite) TestEmptyInputWithGroups(c *C) {
	sctx := newTestContext()
	sum := []Alias{{Expr: aggOf(expression.AggSum, "?x"), Target: "?s"}}
	op, err := NewGroupByOp([]string{"?g"}, sum, newValues(c, []string{"?g", "?x"}))
	c.Assert(err, IsNil)
	c.Assert(computeRows(c, sctx, op), HasLen, 0)

	op, err = NewGroupByOp([]string{"?g"}, sum, NewLazyValuesOp([]*IdTableVocabPair{}, []string{"?g", "?x"}, []int{0}))
	c.Assert(err, IsNil)
	c.Assert(computeRows(c, sctx, op), HasLen, 0)

	op, err = NewGroupByOp([]string{"?g"}, sum, NewLazyValuesOp(nil, []string{"?g", "?x"}, []int{0}))
	c.Assert(err, IsNil)
	c.Assert(computeRows(c, sctx, op), HasLen, 0)
	c.Assert(op.strategy, Equals, metrics.LblStreamingLazy)
}

// groupByInput has the groups 1, 2 and 3 of ?g, group 3 holds an unbound ?x.
var groupByInput = [][]types.Id{
	ints(3, 7),
	ints(1, 20),
	ints(2, 5),
	{i(3), u},
	ints(1, 10),
}

func groupByAliases() []Alias {
	return []Alias{
		{Expr: aggOf(expression.AggCount, "?x"), Target: "?c"},
		{Expr: aggOf(expression.AggSum, "?x"), Target: "?s"},
		{Expr: aggOf(expression.AggMin, "?x"), Target: "?min"},
		{Expr: aggOf(expression.AggMax, "?x"), Target: "?max"},
		{Expr: expression.NewFunctionInternal(expression.Plus, aggOf(expression.AggCount, "?x"), expression.NewVariable("?g")), Target: "?y"},
		{Expr: expression.NewFunctionInternal(expression.Plus, expression.NewVariable("?c"), expression.NewConstant(i(1))), Target: "?d"},
	}
}

var groupByExpected = [][]types.Id{
	ints(1, 2, 30, 10, 20, 3, 3),
	ints(2, 1, 5, 5, 5, 3, 2),
	{i(3), i(1), u, u, i(7), i(4), i(2)},
}

func (s *testGroupBySuite) TestStrategiesAgree(c *C) {
	withDispatchModes(func() {
		sctx := newTestContext()
		vars := []string{"?g", "?x"}

		op, err := NewGroupByOp([]string{"?g"}, groupByAliases(), newValues(c, vars, groupByInput...))
		c.Assert(err, IsNil)
		c.Assert(computeRows(c, sctx, op), DeepEquals, groupByExpected)
		c.Assert(op.strategy, Equals, metrics.LblStreamingEager)

		lazy := NewLazyValuesOp([]*IdTableVocabPair{
			chunkOf(c, 2, ints(1, 10)),
			chunkOf(c, 2, ints(1, 20), ints(2, 5)),
			chunkOf(c, 2),
			chunkOf(c, 2, []types.Id{i(3), u}, ints(3, 7)),
		}, vars, []int{0})
		op, err = NewGroupByOp([]string{"?g"}, groupByAliases(), lazy)
		c.Assert(err, IsNil)
		c.Assert(computeRows(c, sctx, op), DeepEquals, groupByExpected)
		c.Assert(op.strategy, Equals, metrics.LblStreamingLazy)

		sctx.GetSessionVars().GroupBy.HashMapEnabled = true
		sctx.GetSessionVars().GroupBy.HashMapBlockSize = 2
		op, err = NewGroupByOp([]string{"?g"}, groupByAliases(), NewSortOp(newValues(c, vars, groupByInput...), []int{0}))
		c.Assert(err, IsNil)
		c.Assert(computeRows(c, sctx, op), DeepEquals, groupByExpected)
		c.Assert(op.strategy, Equals, metrics.LblHashMap)
	})
}

func (s *testGroupBySuite) TestHashMapVetoedBySampling(c *C) {
	sctx := newTestContext()
	gb := &sctx.GetSessionVars().GroupBy
	gb.HashMapEnabled = true
	gb.SampleEnabled = true
	gb.SampleSize = 100
	gb.SampleRatioThreshold = 0.01
	op, err := NewGroupByOp([]string{"?g"}, groupByAliases(),
		NewSortOp(newValues(c, []string{"?g", "?x"}, groupByInput...), []int{0}))
	c.Assert(err, IsNil)
	c.Assert(computeRows(c, sctx, op), DeepEquals, groupByExpected)
	c.Assert(op.strategy, Equals, metrics.LblStreamingEager)
}

func (s *testGroupBySuite) TestDistinctFallsBackToBlocks(c *C) {
	withDispatchModes(func() {
		sctx := newTestContext()
		sctx.GetSessionVars().GroupBy.HashMapEnabled = true
		aliases := []Alias{
			{Expr: expression.NewAggregateFunc(expression.AggCount, true, expression.NewVariable("?x")), Target: "?c"},
		}
		child := NewLazyValuesOp([]*IdTableVocabPair{
			chunkOf(c, 2, ints(1, 10), ints(1, 10)),
			chunkOf(c, 2, ints(1, 20), ints(2, 5)),
		}, []string{"?g", "?x"}, []int{0})
		op, err := NewGroupByOp([]string{"?g"}, aliases, NewSortOp(child, []int{0}))
		c.Assert(err, IsNil)
		c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(1, 2), ints(2, 1)})
		c.Assert(op.strategy, Equals, metrics.LblStreamingEager)
	})
}

func (s *testGroupBySuite) TestMultipleGroupColumns(c *C) {
	withDispatchModes(func() {
		sctx := newTestContext()
		child := newValues(c, []string{"?a", "?b", "?x"},
			ints(1, 2, 1), ints(1, 1, 2), ints(1, 2, 3), ints(0, 2, 4), ints(1, 1, 5))
		aliases := []Alias{{Expr: aggOf(expression.AggSum, "?x"), Target: "?s"}}
		op, err := NewGroupByOp([]string{"?a", "?b"}, aliases, child)
		c.Assert(err, IsNil)
		expected := [][]types.Id{ints(0, 2, 4), ints(1, 1, 7), ints(1, 2, 4)}
		c.Assert(computeRows(c, sctx, op), DeepEquals, expected)

		sctx.GetSessionVars().GroupBy.HashMapEnabled = true
		op, err = NewGroupByOp([]string{"?a", "?b"}, aliases, NewSortOp(child, []int{0, 1}))
		c.Assert(err, IsNil)
		c.Assert(computeRows(c, sctx, op), DeepEquals, expected)
		c.Assert(op.strategy, Equals, metrics.LblHashMap)
	})
}

func (s *testGroupBySuite) TestVariableColumns(c *C) {
	child := newValues(c, []string{"?g", "?x"}, ints(1, 1))
	op, err := NewGroupByOp([]string{"?g", "?unbound", "?g"}, groupByAliases()[:2], child)
	c.Assert(err, IsNil)
	c.Assert(op.GroupByVariables, DeepEquals, []string{"?g"})
	c.Assert(op.ResultWidth(), Equals, 3)
	c.Assert(op.VariableColumns()["?g"], Equals, ColumnInfo{Index: 0})
	c.Assert(op.VariableColumns()["?s"], Equals, ColumnInfo{Index: 2, MaybeUndefined: true})
	c.Assert(op.ResultSortedOn(), DeepEquals, []int{0})
}

func (s *testGroupBySuite) TestContractViolations(c *C) {
	sctx := newTestContext()
	child := newValues(c, []string{"?g", "?x"}, groupByInput...)
	dup := []Alias{
		{Expr: aggOf(expression.AggSum, "?x"), Target: "?s"},
		{Expr: aggOf(expression.AggMin, "?x"), Target: "?s"},
	}
	_, err := NewGroupByOp([]string{"?g"}, dup, child)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
	_, err = NewGroupByOp([]string{"?g"}, []Alias{{Expr: aggOf(expression.AggSum, "?x"), Target: "?g"}}, child)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)

	// ?x is neither grouped nor aggregated and has two values in group 1.
	op, err := NewGroupByOp([]string{"?g"}, []Alias{{Expr: expression.NewVariable("?x"), Target: "?z"}}, child)
	c.Assert(err, IsNil)
	_, err = ComputeResult(sctx, op, false)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
}

func (s *testGroupBySuite) TestCancellation(c *C) {
	sctx := newTestContext()
	op, err := NewGroupByOp([]string{"?g"}, groupByAliases(), newValues(c, []string{"?g", "?x"}, groupByInput...))
	c.Assert(err, IsNil)
	sctx.Cancel()
	_, err = ComputeResult(sctx, op, false)
	c.Assert(err, NotNil)
}

func (s *testGroupBySuite) TestHashMapReleasesMemoryOnFailure(c *C) {
	withDispatchModes(func() {
		var rows [][]types.Id
		for k := int64(0); k < 200; k++ {
			rows = append(rows, ints(k%50, k))
		}
		aliases := []Alias{
			{Expr: aggOf(expression.AggCount, "?x"), Target: "?c"},
			{Expr: aggOf(expression.AggSum, "?x"), Target: "?s"},
		}
		failed := 0
		for limit := int64(256); limit <= 16384; limit += 256 {
			sctx := newTestContext()
			gb := &sctx.GetSessionVars().GroupBy
			gb.HashMapEnabled = true
			gb.SampleEnabled = false
			sctx.MemTracker().SetBytesLimit(limit)
			child := NewSortOp(newValues(c, []string{"?g", "?x"}, rows...), []int{0})
			op, err := NewGroupByOp([]string{"?g"}, aliases, child)
			c.Assert(err, IsNil)
			res, err := ComputeResult(sctx, op, false)
			if err != nil {
				failed++
			} else {
				c.Assert(op.strategy, Equals, metrics.LblHashMap)
				t, err := res.IdTable()
				c.Assert(err, IsNil)
				c.Assert(t.NumRows(), Equals, 50)
				t.Close()
			}
			c.Assert(sctx.MemTracker().BytesConsumed(), Equals, int64(0), Commentf("limit %d", limit))
		}
		c.Assert(failed > 0, IsTrue)
	})
}
