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

package expression

import (
	"testing"

	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
	"github.com/ad-freiburg/qlever-sub009/util/set"
	. "github.com/pingcap/check"
	"github.com/pingcap/parser/terror"
)

func TestT(t *testing.T) {
	TestingT(t)
}

var _ = Suite(&testExpressionSuite{})

type testExpressionSuite struct{}

func ints(vals ...int64) []types.Id {
	ids := make([]types.Id, len(vals))
	for i, v := range vals {
		ids[i] = types.NewInt(v)
	}
	return ids
}

func (s *testExpressionSuite) newTable(c *C) *idtable.IdTable {
	t, err := idtable.FromRows(2, nil,
		ints(1, 10),
		ints(1, 20),
		ints(2, 30),
	)
	c.Assert(err, IsNil)
	return t
}

func (s *testExpressionSuite) TestVariable(c *C) {
	t := s.newTable(c)
	ctx := &EvalContext{
		Table:           t,
		Begin:           0,
		End:             2,
		VariableColumns: map[string]int{"?g": 0, "?x": 1},
	}
	res, err := Evaluate(ctx, NewVariable("?x"))
	c.Assert(err, IsNil)
	c.Assert(res.IsConstant(), IsFalse)
	c.Assert(res.Vector(), DeepEquals, ints(10, 20))

	res, err = Evaluate(ctx, NewVariable("?unknown"))
	c.Assert(err, IsNil)
	c.Assert(res.Constant(), Equals, types.Undef)

	ctx.GroupedVariables = set.NewStringSet("?g")
	ctx.IsPartOfGroupBy = true
	res, err = Evaluate(ctx, NewVariable("?g"))
	c.Assert(err, IsNil)
	c.Assert(res.IsConstant(), IsTrue)
	c.Assert(res.Constant(), Equals, types.NewInt(1))

	prev, err := idtable.FromRows(2, nil, ints(1, 5), ints(2, 7))
	c.Assert(err, IsNil)
	ctx.PreviousResults = prev
	ctx.PreviousResultColumns = map[string]int{"?alias": 1}
	ctx.ResultBegin, ctx.ResultEnd = 1, 2
	res, err = Evaluate(ctx, NewVariable("?alias"))
	c.Assert(err, IsNil)
	c.Assert(res.Constant(), Equals, types.NewInt(7))
}

func (s *testExpressionSuite) TestArithmetic(c *C) {
	eval := func(name string, l, r types.Id) types.Id {
		sf := NewFunctionInternal(name, NewConstant(l), NewConstant(r))
		res, err := Evaluate(&EvalContext{}, sf)
		c.Assert(err, IsNil)
		c.Assert(res.IsConstant(), IsTrue)
		return res.Constant()
	}
	c.Assert(eval(Plus, types.NewInt(2), types.NewInt(3)), Equals, types.NewInt(5))
	c.Assert(eval(Minus, types.NewInt(2), types.NewInt(3)), Equals, types.NewInt(-1))
	c.Assert(eval(Mul, types.NewInt(2), types.NewDouble(1.5)), Equals, types.NewDouble(3))
	c.Assert(eval(Div, types.NewInt(3), types.NewInt(2)), Equals, types.NewDouble(1.5))
	c.Assert(eval(Div, types.NewInt(3), types.NewInt(0)), Equals, types.Undef)
	c.Assert(eval(Plus, types.Undef, types.NewInt(1)), Equals, types.Undef)
	c.Assert(eval(Plus, types.NewVocabIndex(1), types.NewInt(1)), Equals, types.Undef)
	c.Assert(eval(LT, types.NewInt(1), types.NewDouble(1.5)), Equals, types.NewBool(true))
	c.Assert(eval(EQ, types.NewInt(1), types.NewDouble(1)), Equals, types.NewBool(true))
	c.Assert(eval(GE, types.Undef, types.NewInt(1)), Equals, types.Undef)

	_, err := NewFunction("unknown")
	c.Assert(err, NotNil)
	_, err = NewFunction(Plus, NewConstant(types.Undef))
	c.Assert(err, NotNil)
}

func (s *testExpressionSuite) TestVectorFunction(c *C) {
	t := s.newTable(c)
	ctx := &EvalContext{Table: t, Begin: 1, End: 3, VariableColumns: map[string]int{"?x": 1}}
	sf := NewFunctionInternal(Plus, NewVariable("?x"), NewConstant(types.NewInt(1)))
	res, err := Evaluate(ctx, sf)
	c.Assert(err, IsNil)
	c.Assert(res.Vector(), DeepEquals, ints(21, 31))
	c.Assert(sf.String(), Equals, "+(?x, 1)")

	co := NewFunctionInternal(Coalesce, NewVariable("?missing"), NewVariable("?x"))
	res, err = Evaluate(ctx, co)
	c.Assert(err, IsNil)
	c.Assert(res.Vector(), DeepEquals, ints(20, 30))
}

func (s *testExpressionSuite) TestOverlay(c *C) {
	sum := NewAggregateFunc(AggSum, false, NewVariable("?x"))
	cnt := NewCountStar(false)
	avg := NewFunctionInternal(Div, sum, cnt)

	ctx := &EvalContext{}
	_, err := Evaluate(ctx, avg)
	c.Assert(terror.ErrorEqual(err, ErrAggregateOutsideGroup), IsTrue)

	ctx.Overlay = Overlay{
		sum: ConstResult(types.NewInt(9)),
		cnt: ConstResult(types.NewInt(2)),
	}
	res, err := Evaluate(ctx, avg)
	c.Assert(err, IsNil)
	c.Assert(res.Constant(), Equals, types.NewDouble(4.5))
	// The tree is unchanged.
	c.Assert(avg.Args[0], Equals, Expression(sum))
	c.Assert(avg.String(), Equals, "/(SUM(?x), COUNT(*))")

	ctx.Overlay = Overlay{
		sum: VectorResult(ints(4, 6)),
		cnt: VectorResult(ints(2, 3)),
	}
	ctx.Begin, ctx.End = 0, 2
	res, err = Evaluate(ctx, avg)
	c.Assert(err, IsNil)
	c.Assert(res.Vector(), DeepEquals, []types.Id{types.NewDouble(2), types.NewDouble(2)})
}

func (s *testExpressionSuite) TestCollect(c *C) {
	inner := NewAggregateFunc(AggMax, false, NewVariable("?y"))
	outer := NewAggregateFunc(AggSum, false, inner)
	e := NewFunctionInternal(Plus, outer, NewVariable("?g"))

	c.Assert(CollectAggregates(e), DeepEquals, []*AggregateFunc{inner, outer})
	c.Assert(ContainsAggregate(e), IsTrue)
	c.Assert(ContainsAggregate(NewVariable("?g")), IsFalse)
	c.Assert(HasNestedAggregate(e), IsTrue)
	c.Assert(HasNestedAggregate(inner), IsFalse)

	vars := CollectVariables(e)
	c.Assert(vars, HasLen, 1)
	c.Assert(vars[0].Name, Equals, "?g")

	gc := NewGroupConcat(true, NewVariable("?s"), ",")
	c.Assert(gc.String(), Equals, `GROUP_CONCAT(DISTINCT ?s; SEPARATOR=",")`)
	c.Assert(NewCountStar(false).IsCountStar(), IsTrue)
	c.Assert(gc.IsCountStar(), IsFalse)
}

type mockVocab map[uint64]string

func (m mockVocab) Word(idx uint64) (string, bool) {
	w, ok := m[idx]
	return w, ok
}

func (s *testExpressionSuite) TestStringValue(c *C) {
	lv := localvocab.New()
	id, err := lv.GetIndexAndAddIfNotContained("local")
	c.Assert(err, IsNil)
	vocab := mockVocab{3: "global"}

	cases := []struct {
		id types.Id
		s  string
		ok bool
	}{
		{types.NewInt(-4), "-4", true},
		{types.NewDouble(0.5), "0.5", true},
		{types.NewBool(false), "false", true},
		{types.NewVocabIndex(3), "global", true},
		{types.NewVocabIndex(4), "", false},
		{id, "local", true},
		{types.Undef, "", false},
		{types.NoMatchID, "", false},
	}
	for _, ca := range cases {
		str, ok := StringValue(ca.id, lv, vocab)
		c.Assert(ok, Equals, ca.ok, Commentf("%v", ca.id))
		c.Assert(str, Equals, ca.s, Commentf("%v", ca.id))
	}
}
