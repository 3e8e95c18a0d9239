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
	"github.com/ad-freiburg/qlever-sub009/metrics"
	"github.com/ad-freiburg/qlever-sub009/types"
	. "github.com/pingcap/check"
)

var _ = Suite(&testJoinSuite{})

type testJoinSuite struct{}

func (s *testJoinSuite) exampleInputs(c *C) (*ValuesOp, *ValuesOp) {
	left := newValues(c, []string{"?a", "?b"},
		ints(1, 1), ints(1, 3), ints(2, 1), ints(2, 2), ints(4, 1))
	right := newValues(c, []string{"?a", "?c"},
		ints(1, 3), ints(1, 8), ints(3, 1), ints(4, 2))
	return left, right
}

var exampleJoinResult = [][]types.Id{
	ints(1, 1, 3),
	ints(1, 1, 8),
	ints(1, 3, 3),
	ints(1, 3, 8),
	ints(4, 1, 2),
}

func (s *testJoinSuite) TestJoinExample(c *C) {
	withDispatchModes(func() {
		sctx := newTestContext()
		left, right := s.exampleInputs(c)
		op, err := NewJoinOp(left, right, JoinColumnsFor(left, right), false)
		c.Assert(err, IsNil)
		c.Assert(op.ResultWidth(), Equals, 3)
		c.Assert(computeRows(c, sctx, op), DeepEquals, exampleJoinResult)
		c.Assert(op.strategy, Equals, metrics.LblMerge)
		c.Assert(op.ResultSortedOn(), DeepEquals, []int{0})

		cols := op.VariableColumns()
		c.Assert(cols["?a"], Equals, ColumnInfo{Index: 0})
		c.Assert(cols["?b"], Equals, ColumnInfo{Index: 1})
		c.Assert(cols["?c"], Equals, ColumnInfo{Index: 2})

		hash, err := NewHashJoinOp(left, right, [][2]int{{0, 0}}, false)
		c.Assert(err, IsNil)
		c.Assert(sortRows(computeRows(c, sctx, hash)), DeepEquals, exampleJoinResult)
		c.Assert(sctx.MemTracker().BytesConsumed(), Equals, int64(0))
	})
}

func (s *testJoinSuite) TestKeepRightJoinColumns(c *C) {
	sctx := newTestContext()
	left, right := s.exampleInputs(c)
	op, err := NewJoinOp(left, right, [][2]int{{0, 0}}, true)
	c.Assert(err, IsNil)
	c.Assert(op.ResultWidth(), Equals, 4)
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{
		ints(1, 1, 1, 3),
		ints(1, 1, 1, 8),
		ints(1, 3, 1, 3),
		ints(1, 3, 1, 8),
		ints(4, 1, 4, 2),
	})
}

func (s *testJoinSuite) TestUnsortedInput(c *C) {
	sctx := newTestContext()
	left := newValues(c, []string{"?a", "?b"}, ints(4, 1), ints(1, 3), ints(2, 2), ints(1, 1), ints(2, 1))
	right := newValues(c, []string{"?a", "?c"}, ints(4, 2), ints(1, 8), ints(3, 1), ints(1, 3))
	op, err := NewJoinOp(left, right, [][2]int{{0, 0}}, false)
	c.Assert(err, IsNil)
	c.Assert(sortRows(computeRows(c, sctx, op)), DeepEquals, exampleJoinResult)

	// MergeJoin itself requires sorted inputs.
	lt, rt := newTable(c, 2, ints(2, 1), ints(1, 1)), newTable(c, 2, ints(1, 1))
	_, err = MergeJoin(sctx, lt, rt, [][2]int{{0, 0}}, false, nil)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
}

func (s *testJoinSuite) TestJoinWithUndef(c *C) {
	withDispatchModes(func() {
		sctx := newTestContext()
		left := newValues(c, []string{"?a", "?b"}, []types.Id{u, i(5)}, ints(1, 6))
		right := newValues(c, []string{"?a", "?c"}, ints(1, 7), ints(2, 8))
		op, err := NewJoinOp(left, right, [][2]int{{0, 0}}, false)
		c.Assert(err, IsNil)
		c.Assert(op.VariableColumns()["?a"].MaybeUndefined, IsFalse)

		expected := [][]types.Id{ints(1, 5, 7), ints(1, 6, 7), ints(2, 5, 8)}
		rows := computeRows(c, sctx, op)
		c.Assert(sortRows(rows), DeepEquals, expected)
		c.Assert(op.strategy, Equals, metrics.LblMerge)

		hash, err := NewHashJoinOp(left, right, [][2]int{{0, 0}}, false)
		c.Assert(err, IsNil)
		c.Assert(sortRows(computeRows(c, sctx, hash)), DeepEquals, expected)

		// Undefined on the right side.
		hash, err = NewHashJoinOp(right, left, [][2]int{{0, 0}}, false)
		c.Assert(err, IsNil)
		c.Assert(sortRows(computeRows(c, sctx, hash)), DeepEquals,
			[][]types.Id{ints(1, 7, 5), ints(1, 7, 6), ints(2, 8, 5)})
		op, err = NewJoinOp(right, left, [][2]int{{0, 0}}, false)
		c.Assert(err, IsNil)
		c.Assert(sortRows(computeRows(c, sctx, op)), DeepEquals,
			[][]types.Id{ints(1, 7, 5), ints(1, 7, 6), ints(2, 8, 5)})
	})
}

func (s *testJoinSuite) TestMultiColumnUndef(c *C) {
	withDispatchModes(func() {
		sctx := newTestContext()
		left := newValues(c, []string{"?a", "?b", "?x"}, []types.Id{i(1), u, i(10)}, ints(2, 2, 11))
		right := newValues(c, []string{"?a", "?b", "?y"}, ints(1, 2, 20), ints(2, 3, 30), ints(2, 2, 40))
		joinCols := [][2]int{{0, 0}, {1, 1}}
		expected := [][]types.Id{ints(1, 2, 10, 20), ints(2, 2, 11, 40)}

		op, err := NewJoinOp(left, right, joinCols, false)
		c.Assert(err, IsNil)
		c.Assert(sortRows(computeRows(c, sctx, op)), DeepEquals, expected)

		hash, err := NewHashJoinOp(left, right, joinCols, false)
		c.Assert(err, IsNil)
		c.Assert(sortRows(computeRows(c, sctx, hash)), DeepEquals, expected)
	})
}

func (s *testJoinSuite) TestGalloping(c *C) {
	withDispatchModes(func() {
		sctx := newTestContext()
		sctx.GetSessionVars().GallopThreshold = 4

		small := newValues(c, []string{"?k", "?s"}, ints(3, 0), ints(7, 1), ints(7, 2), ints(200, 3))
		var rows [][]types.Id
		for k := int64(0); k < 100; k++ {
			rows = append(rows, ints(k/2, k))
		}
		large := newValues(c, []string{"?k", "?l"}, rows...)
		expected := [][]types.Id{
			ints(3, 0, 6), ints(3, 0, 7),
			ints(7, 1, 14), ints(7, 1, 15),
			ints(7, 2, 14), ints(7, 2, 15),
		}

		op, err := NewJoinOp(small, large, [][2]int{{0, 0}}, false)
		c.Assert(err, IsNil)
		c.Assert(computeRows(c, sctx, op), DeepEquals, expected)
		c.Assert(op.strategy, Equals, metrics.LblGalloping)

		// The larger side on the left keeps the left-major order.
		op, err = NewJoinOp(large, small, [][2]int{{0, 0}}, false)
		c.Assert(err, IsNil)
		c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{
			ints(3, 6, 0), ints(3, 7, 0),
			ints(7, 14, 1), ints(7, 14, 2),
			ints(7, 15, 1), ints(7, 15, 2),
		})
		c.Assert(op.strategy, Equals, metrics.LblGalloping)

		sctx.GetSessionVars().GallopThreshold = 1000
		op, err = NewJoinOp(small, large, [][2]int{{0, 0}}, false)
		c.Assert(err, IsNil)
		c.Assert(computeRows(c, sctx, op), DeepEquals, expected)
		c.Assert(op.strategy, Equals, metrics.LblMerge)
	})
}

func (s *testJoinSuite) TestGallopingRejectsUndef(c *C) {
	sctx := newTestContext()
	lt := newTable(c, 1, []types.Id{u}, ints(1))
	rt := newTable(c, 1, ints(1))
	_, err := GallopingJoin(sctx, lt, rt, [][2]int{{0, 0}}, false, nil)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
}

func (s *testJoinSuite) TestInvalidJoinColumns(c *C) {
	left, right := s.exampleInputs(c)
	_, err := NewJoinOp(left, right, nil, false)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
	_, err = NewJoinOp(left, right, [][2]int{{0, 2}}, false)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
	_, err = NewHashJoinOp(left, right, [][2]int{{5, 0}}, false)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
	_, err = NewOptionalJoinOp(left, right, nil)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
}

func (s *testJoinSuite) TestEmptyInput(c *C) {
	sctx := newTestContext()
	left := newValues(c, []string{"?a", "?b"})
	_, right := s.exampleInputs(c)
	op, err := NewJoinOp(left, right, [][2]int{{0, 0}}, false)
	c.Assert(err, IsNil)
	c.Assert(computeRows(c, sctx, op), HasLen, 0)
	hash, err := NewHashJoinOp(left, right, [][2]int{{0, 0}}, false)
	c.Assert(err, IsNil)
	c.Assert(computeRows(c, sctx, hash), HasLen, 0)
}

func (s *testJoinSuite) TestCancellation(c *C) {
	sctx := newTestContext()
	left, right := s.exampleInputs(c)
	op, err := NewJoinOp(left, right, [][2]int{{0, 0}}, false)
	c.Assert(err, IsNil)
	sctx.Cancel()
	_, err = ComputeResult(sctx, op, false)
	c.Assert(err, NotNil)
}
