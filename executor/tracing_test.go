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
	"context"

	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/sessionctx/variable"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/tracing"
	"github.com/opentracing/basictracer-go"
	"github.com/opentracing/opentracing-go"
	. "github.com/pingcap/check"
)

var _ = Suite(&testTracingSuite{})

type testTracingSuite struct{}

func (s *testTracingSuite) TestOperatorSpans(c *C) {
	var spans []basictracer.RawSpan
	root := tracing.NewRecordedTrace("query", func(sp basictracer.RawSpan) {
		spans = append(spans, sp)
	})
	goCtx := opentracing.ContextWithSpan(context.Background(), root)
	sctx := sessionctx.NewContext(goCtx, variable.NewSessionVars())

	left := newSortedValues(c, []string{"?x", "?y"}, []int{0}, ints(1, 10), ints(2, 20))
	right := newSortedValues(c, []string{"?x", "?z"}, []int{0}, ints(2, 200))
	op, err := NewJoinOp(left, right, [][2]int{{0, 0}}, false)
	c.Assert(err, IsNil)
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(2, 20, 200)})
	root.Finish()

	c.Assert(spans, HasLen, 4)
	ops := make([]string, 0, len(spans))
	for _, sp := range spans {
		ops = append(ops, sp.Operation)
	}
	c.Assert(ops, DeepEquals, []string{"values.ComputeResult", "values.ComputeResult", "join.ComputeResult", "query"})
	// Children hang below the operator that computed them.
	joinSpan := spans[2]
	c.Assert(spans[0].ParentSpanID, Equals, joinSpan.Context.SpanID)
	c.Assert(spans[1].ParentSpanID, Equals, joinSpan.Context.SpanID)
	c.Assert(joinSpan.ParentSpanID, Equals, spans[3].Context.SpanID)
	// The Go context is restored after the operator finished.
	c.Assert(sctx.GoCtx(), Equals, goCtx)
}

func (s *testTracingSuite) TestNoSpanWithoutTrace(c *C) {
	sctx := newTestContext()
	op := newValues(c, []string{"?x"}, ints(1))
	c.Assert(computeRows(c, sctx, op), HasLen, 1)
	c.Assert(opentracing.SpanFromContext(sctx.GoCtx()), IsNil)
}
