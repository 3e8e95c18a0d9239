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
	"github.com/ad-freiburg/qlever-sub009/types"
	. "github.com/pingcap/check"
)

var _ = Suite(&testGroupByShortcutSuite{})

type testGroupByShortcutSuite struct {
	idx *index.MemIndex
}

func vid(v uint64) types.Id {
	return types.NewVocabIndex(v)
}

func (s *testGroupByShortcutSuite) SetUpSuite(c *C) {
	s.idx = index.NewMemIndex([]index.Triple{
		{vid(1), vid(10), vid(100)},
		{vid(1), vid(10), vid(101)},
		{vid(1), vid(11), vid(100)},
		{vid(2), vid(10), vid(100)},
		{vid(3), vid(12), vid(102)},
	})
}

func (s *testGroupByShortcutSuite) fullScan(c *C) *IndexScanOp {
	scan, err := NewIndexScanOp(s.idx, index.SPO,
		[3]Term{Var("?s"), Var("?p"), Var("?o")}, nil, index.NoLimit)
	c.Assert(err, IsNil)
	return scan
}

// predicateScan scans ?s <10> ?o in POS, its columns are ?o and ?s.
func (s *testGroupByShortcutSuite) predicateScan(c *C, limit index.LimitOffset) *IndexScanOp {
	scan, err := NewIndexScanOp(s.idx, index.POS,
		[3]Term{Var("?s"), Fixed(vid(10)), Var("?o")}, nil, limit)
	c.Assert(err, IsNil)
	return scan
}

func countOf(v string, distinct bool) []Alias {
	return []Alias{{Expr: expression.NewAggregateFunc(expression.AggCount, distinct, expression.NewVariable(v)), Target: "?count"}}
}

func (s *testGroupByShortcutSuite) groupBy(c *C, groupBy []string, aliases []Alias, child Operation) *GroupByOp {
	op, err := NewGroupByOp(groupBy, aliases, child)
	c.Assert(err, IsNil)
	return op
}

func (s *testGroupByShortcutSuite) TestCountStar(c *C) {
	sctx := newTestContext()
	countStar := []Alias{{Expr: expression.NewCountStar(false), Target: "?count"}}
	op := s.groupBy(c, nil, countStar, s.fullScan(c))
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(5)})
	c.Assert(op.strategy, Equals, metrics.LblCountStar)

	sctx.GetSessionVars().GroupBy.DisableIndexScanOptimizations = true
	op = s.groupBy(c, nil, countStar, s.predicateScan(c, index.NoLimit))
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(3)})
	c.Assert(op.strategy, Equals, metrics.LblCountStar)

	lazy := NewLazyValuesOp([]*IdTableVocabPair{
		chunkOf(c, 1, ints(1), ints(2)),
		chunkOf(c, 1, ints(3)),
	}, []string{"?x"}, nil)
	op = s.groupBy(c, nil, countStar, lazy)
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(3)})
}

func (s *testGroupByShortcutSuite) TestSingleScan(c *C) {
	sctx := newTestContext()
	cases := []struct {
		aliases  []Alias
		child    Operation
		expected int64
	}{
		{countOf("?s", false), s.fullScan(c), 5},
		{countOf("?s", true), s.fullScan(c), 3},
		{countOf("?p", true), s.fullScan(c), 3},
		{countOf("?o", true), s.fullScan(c), 3},
		{countOf("?unbound", false), s.fullScan(c), 0},
		{countOf("?s", false), s.predicateScan(c, index.NoLimit), 3},
		{countOf("?s", false), s.predicateScan(c, index.LimitOffset{Limit: 2}), 2},
		{countOf("?o", false), s.predicateScan(c, index.LimitOffset{Limit: -1, Offset: 1}), 2},
	}
	for _, ca := range cases {
		op := s.groupBy(c, nil, ca.aliases, ca.child)
		c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(ca.expected)}, Commentf("%s", op))
		c.Assert(op.strategy, Equals, metrics.LblSingleScan)
	}

	// The same counts without the index metadata.
	sctx.GetSessionVars().GroupBy.DisableIndexScanOptimizations = true
	for _, ca := range cases {
		op := s.groupBy(c, nil, ca.aliases, ca.child)
		c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(ca.expected)}, Commentf("%s", op))
		c.Assert(op.strategy, Equals, metrics.LblStreamingEager)
	}
}

func (s *testGroupByShortcutSuite) TestFullScan(c *C) {
	sctx := newTestContext()
	op := s.groupBy(c, []string{"?p"}, countOf("?o", false), s.fullScan(c))
	expected := [][]types.Id{
		{vid(10), i(3)},
		{vid(11), i(1)},
		{vid(12), i(1)},
	}
	c.Assert(computeRows(c, sctx, op), DeepEquals, expected)
	c.Assert(op.strategy, Equals, metrics.LblFullScan)

	op = s.groupBy(c, []string{"?s"}, nil, s.fullScan(c))
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{{vid(1)}, {vid(2)}, {vid(3)}})
	c.Assert(op.strategy, Equals, metrics.LblFullScan)

	op = s.groupBy(c, []string{"?o"}, countOf("?unbound", false), s.fullScan(c))
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{
		{vid(100), i(0)},
		{vid(101), i(0)},
		{vid(102), i(0)},
	})

	redundant := append(countOf("?o", false), Alias{
		Expr:   expression.NewAggregateFunc(expression.AggCount, false, expression.NewVariable("?s")),
		Target: "?count2",
	})
	op = s.groupBy(c, []string{"?p"}, redundant, s.fullScan(c))
	_, err := ComputeResult(sctx, op, false)
	c.Assert(ErrUnsupportedQueryShape.Equal(err), IsTrue)

	sctx.GetSessionVars().GroupBy.DisableIndexScanOptimizations = true
	op = s.groupBy(c, []string{"?p"}, countOf("?o", false), s.fullScan(c))
	c.Assert(computeRows(c, sctx, op), DeepEquals, expected)
	c.Assert(op.strategy, Equals, metrics.LblStreamingEager)
}

func (s *testGroupByShortcutSuite) TestObjectWithCount(c *C) {
	sctx := newTestContext()
	op := s.groupBy(c, []string{"?o"}, countOf("?s", false), s.predicateScan(c, index.NoLimit))
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{
		{vid(100), i(2)},
		{vid(101), i(1)},
	})
	c.Assert(op.strategy, Equals, metrics.LblObjectWithCount)

	op = s.groupBy(c, []string{"?s"}, countOf("?o", false), s.predicateScan(c, index.NoLimit))
	_, err := ComputeResult(sctx, op, false)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
}

func (s *testGroupByShortcutSuite) TestJoinWithFullScan(c *C) {
	withDispatchModes(func() {
		sctx := newTestContext()
		newLeft := func() *ValuesOp {
			return newValues(c, []string{"?s"}, []types.Id{vid(1)}, []types.Id{vid(2)}, []types.Id{vid(1)}, []types.Id{vid(9)})
		}
		expected := [][]types.Id{
			{vid(1), i(6)},
			{vid(2), i(1)},
		}

		join, err := NewJoinOp(newLeft(), s.fullScan(c), [][2]int{{0, 0}}, false)
		c.Assert(err, IsNil)
		op := s.groupBy(c, []string{"?s"}, countOf("?o", false), join)
		c.Assert(computeRows(c, sctx, op), DeepEquals, expected)
		c.Assert(op.strategy, Equals, metrics.LblJoinWithFullScan)

		join, err = NewJoinOp(s.fullScan(c), newLeft(), [][2]int{{0, 0}}, false)
		c.Assert(err, IsNil)
		op = s.groupBy(c, []string{"?s"}, countOf("?o", false), join)
		c.Assert(computeRows(c, sctx, op), DeepEquals, expected)
		c.Assert(op.strategy, Equals, metrics.LblJoinWithFullScan)

		// A hash join child is grouped row by row.
		hash, err := NewHashJoinOp(newLeft(), s.fullScan(c), [][2]int{{0, 0}}, false)
		c.Assert(err, IsNil)
		op = s.groupBy(c, []string{"?s"}, countOf("?o", false), hash)
		c.Assert(computeRows(c, sctx, op), DeepEquals, expected)
		c.Assert(op.strategy, Equals, metrics.LblStreamingEager)
	})
}

func (s *testGroupByShortcutSuite) TestIndexScan(c *C) {
	sctx := newTestContext()
	scan := s.predicateScan(c, index.NoLimit)
	c.Assert(scan.NumVariables(), Equals, 2)
	c.Assert(scan.Prefix(), DeepEquals, []types.Id{vid(10)})
	c.Assert(scan.VariableColumns()["?o"], Equals, ColumnInfo{Index: 0})
	c.Assert(scan.VariableColumns()["?s"], Equals, ColumnInfo{Index: 1})
	c.Assert(computeRows(c, sctx, scan), DeepEquals, [][]types.Id{
		{vid(100), vid(1)},
		{vid(100), vid(2)},
		{vid(101), vid(1)},
	})

	scan, err := NewIndexScanOp(s.idx, index.POS, [3]Term{Var("?s"), Fixed(vid(10)), Var("?o")}, []string{"?g"},
		index.LimitOffset{Limit: 1, Offset: 1})
	c.Assert(err, IsNil)
	c.Assert(scan.VariableColumns()["?g"], Equals, ColumnInfo{Index: 2, MaybeUndefined: true})
	c.Assert(computeRows(c, sctx, scan), DeepEquals, [][]types.Id{{vid(100), vid(2), u}})

	// A fixed term after a variable in key order.
	_, err = NewIndexScanOp(s.idx, index.SPO, [3]Term{Var("?s"), Fixed(vid(10)), Var("?o")}, nil, index.NoLimit)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
	_, err = NewIndexScanOp(s.idx, index.SPO, [3]Term{Var("?s"), Var("?s"), Var("?o")}, nil, index.NoLimit)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
}
