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

var _ = Suite(&testOptionalJoinSuite{})

type testOptionalJoinSuite struct{}

func (s *testOptionalJoinSuite) TestOptionalJoin(c *C) {
	withDispatchModes(func() {
		sctx := newTestContext()
		left := newValues(c, []string{"?a", "?b"}, ints(1, 10), ints(2, 20), ints(3, 30))
		right := newValues(c, []string{"?a", "?c"}, ints(1, 100), ints(3, 300), ints(3, 301))
		op, err := NewOptionalJoinOp(left, right, [][2]int{{0, 0}})
		c.Assert(err, IsNil)
		c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{
			ints(1, 10, 100),
			{i(2), i(20), nm},
			ints(3, 30, 300),
			ints(3, 30, 301),
		})
		c.Assert(op.strategy, Equals, metrics.LblOptional)

		cols := op.VariableColumns()
		c.Assert(cols["?a"], Equals, ColumnInfo{Index: 0})
		c.Assert(cols["?c"], Equals, ColumnInfo{Index: 2, MaybeUndefined: true})
	})
}

func (s *testOptionalJoinSuite) TestEmptyRight(c *C) {
	sctx := newTestContext()
	left := newValues(c, []string{"?a", "?b"}, ints(1, 10), ints(2, 20))
	right := newValues(c, []string{"?a", "?c", "?d"})
	op, err := NewOptionalJoinOp(left, right, [][2]int{{0, 0}})
	c.Assert(err, IsNil)
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{
		{i(1), i(10), nm, nm},
		{i(2), i(20), nm, nm},
	})
}

func (s *testOptionalJoinSuite) TestUndefLeft(c *C) {
	withDispatchModes(func() {
		sctx := newTestContext()
		left := newValues(c, []string{"?a", "?b"}, []types.Id{u, i(5)}, ints(4, 40))
		right := newValues(c, []string{"?a", "?c"}, ints(1, 7))
		op, err := NewOptionalJoinOp(left, right, [][2]int{{0, 0}})
		c.Assert(err, IsNil)
		c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{
			ints(1, 5, 7),
			{i(4), i(40), nm},
		})
	})
}

func (s *testOptionalJoinSuite) TestUndefRight(c *C) {
	withDispatchModes(func() {
		sctx := newTestContext()
		left := newValues(c, []string{"?a", "?b"}, ints(4, 40), ints(5, 50))
		right := newValues(c, []string{"?a", "?c"}, []types.Id{u, i(9)}, ints(5, 8))
		op, err := NewOptionalJoinOp(left, right, [][2]int{{0, 0}})
		c.Assert(err, IsNil)
		c.Assert(sortRows(computeRows(c, sctx, op)), DeepEquals, [][]types.Id{
			ints(4, 40, 9),
			ints(5, 50, 8),
			ints(5, 50, 9),
		})
	})
}

func (s *testOptionalJoinSuite) TestUnsortedInputRejected(c *C) {
	sctx := newTestContext()
	lt := newTable(c, 2, ints(3, 1), ints(1, 1))
	rt := newTable(c, 2, ints(1, 1))
	_, err := OptionalJoin(sctx, lt, rt, [][2]int{{0, 0}}, nil)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
}
