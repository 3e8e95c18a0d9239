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

	"github.com/ad-freiburg/qlever-sub009/executor/aggfuncs"
	"github.com/ad-freiburg/qlever-sub009/expression"
	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/pingcap/errors"
)

// Alias binds the value of Expr to the variable Target.
type Alias struct {
	Expr   expression.Expression
	Target string
}

func (a Alias) String() string {
	return fmt.Sprintf("(%s AS %s)", a.Expr, a.Target)
}

// aliasAggregates is an alias with the aggregates of its expression in post
// order and one AggFunc per aggregate.
type aliasAggregates struct {
	Alias
	outCol int
	aggs   []*expression.AggregateFunc
	funcs  []aggfuncs.AggFunc
	// groupedVariables are the occurrences of GROUP BY variables outside of
	// aggregates.
	groupedVariables []*expression.Variable
	// groupCol is the output column of the expression if it is a GROUP BY
	// variable, and -1 otherwise.
	groupCol int
}

// rootAggregate returns the expression if it is an aggregate.
func (a *aliasAggregates) rootAggregate() (*expression.AggregateFunc, bool) {
	agg, ok := a.Expr.(*expression.AggregateFunc)
	return agg, ok
}

// aggregateAliases analyses aliases. groupCols maps the GROUP BY variables
// to their output columns.
func aggregateAliases(aliases []Alias, groupCols map[string]int, tracker *memory.Tracker) ([]*aliasAggregates, error) {
	infos := make([]*aliasAggregates, 0, len(aliases))
	for i, alias := range aliases {
		info := &aliasAggregates{
			Alias:    alias,
			outCol:   len(groupCols) + i,
			aggs:     expression.CollectAggregates(alias.Expr),
			groupCol: -1,
		}
		for _, agg := range info.aggs {
			f, err := aggfuncs.Build(agg, tracker)
			if err != nil {
				return nil, errors.Trace(err)
			}
			info.funcs = append(info.funcs, f)
		}
		for _, v := range expression.CollectVariables(alias.Expr) {
			if _, ok := groupCols[v.Name]; ok {
				info.groupedVariables = append(info.groupedVariables, v)
			}
		}
		if v, ok := alias.Expr.(*expression.Variable); ok {
			if col, grouped := groupCols[v.Name]; grouped {
				info.groupCol = col
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// isHashMapCompatible reports whether the alias can be computed from one
// accumulator per aggregate and group: its aggregates are plain COUNT, SUM,
// AVG, MIN, MAX, SAMPLE or GROUP_CONCAT, none nested in another, and every
// variable outside of an aggregate is grouped or an earlier alias.
func isHashMapCompatible(alias Alias, grouped map[string]int, previous map[string]int) bool {
	for _, agg := range expression.CollectAggregates(alias.Expr) {
		if agg.Distinct() {
			return false
		}
		switch agg.Kind() {
		case expression.AggCount, expression.AggSum, expression.AggAvg, expression.AggMin,
			expression.AggMax, expression.AggSample, expression.AggGroupConcat:
		default:
			return false
		}
	}
	if expression.HasNestedAggregate(alias.Expr) {
		return false
	}
	for _, v := range expression.CollectVariables(alias.Expr) {
		_, isGrouped := grouped[v.Name]
		_, isPrevious := previous[v.Name]
		if !isGrouped && !isPrevious {
			return false
		}
	}
	return true
}

// aggregateArgument evaluates the argument of agg over the rows of ctx. The
// argument of COUNT(*) is true for every row. Constants are expanded into
// *buf, vector results are returned without copying.
func aggregateArgument(ctx *expression.EvalContext, agg *expression.AggregateFunc, buf *[]types.Id) ([]types.Id, error) {
	n := ctx.Size()
	if agg.IsCountStar() {
		*buf = fillIds(*buf, types.NewBool(true), n)
		return *buf, nil
	}
	res, err := expression.Evaluate(ctx, agg.Arg())
	if err != nil {
		return nil, errors.Trace(err)
	}
	if res.IsConstant() {
		*buf = fillIds(*buf, res.Constant(), n)
		return *buf, nil
	}
	if res.Len() != n {
		return nil, ErrContractViolation.GenWithStackByArgs(
			fmt.Sprintf("argument of %s has %d values for %d rows", agg, res.Len(), n))
	}
	return res.Vector(), nil
}

func fillIds(buf []types.Id, id types.Id, n int) []types.Id {
	buf = buf[:0]
	for i := 0; i < n; i++ {
		buf = append(buf, id)
	}
	return buf
}

// aggregateValueFunc writes the final values of the aggregate aggIdx of the
// alias aliasIdx for the output rows [rb, re) to dst.
type aggregateValueFunc func(aliasIdx, aggIdx int, rb, re int, dst []types.Id) error

// aliasEvaluator computes alias values of finished groups. The GROUP BY
// columns of the output rows must already be written.
type aliasEvaluator struct {
	sctx       *sessionctx.Context
	aliases    []*aliasAggregates
	numGrouped int
	env        *aggfuncs.Env
	// grouped maps GROUP BY variables to output columns.
	grouped map[string]int
	// previous maps alias targets to output columns.
	previous map[string]int
}

// evaluateAliases writes the aliases of the output rows [rb, re) of out,
// taking aggregate values from aggValue:
//  - an alias that is a GROUP BY variable copies the group value,
//  - an alias that is an aggregate copies the aggregate value,
//  - any other alias is evaluated with the aggregates and the GROUP BY
//    variables substituted by their values.
func (ev *aliasEvaluator) evaluateAliases(out *idtable.IdTable, rb, re int, aggValue aggregateValueFunc) error {
	n := re - rb
	if n <= 0 {
		return nil
	}
	for ai, alias := range ev.aliases {
		dst := out.Column(alias.outCol)[rb:re]
		if alias.groupCol >= 0 {
			copy(dst, out.Column(alias.groupCol)[rb:re])
			continue
		}
		if _, ok := alias.rootAggregate(); ok {
			if err := aggValue(ai, len(alias.aggs)-1, rb, re, dst); err != nil {
				return err
			}
			continue
		}

		overlay := make(expression.Overlay, len(alias.aggs)+len(alias.groupedVariables))
		for gi := range alias.aggs {
			vals := make([]types.Id, n)
			if err := aggValue(ai, gi, rb, re, vals); err != nil {
				return err
			}
			overlay[alias.aggs[gi]] = vectorOrConstant(vals)
		}
		for _, v := range alias.groupedVariables {
			overlay[v] = vectorOrConstant(out.Column(ev.grouped[v.Name])[rb:re])
		}
		ctx := &expression.EvalContext{
			Table:                 out,
			Begin:                 rb,
			End:                   re,
			LocalVocab:            ev.env.LocalVocab,
			SessionCtx:            ev.sctx,
			PreviousResults:       out,
			PreviousResultColumns: ev.previous,
			ResultBegin:           rb,
			ResultEnd:             re,
			Overlay:               overlay,
			Vocabulary:            ev.env.Vocabulary,
		}
		res, err := expression.Evaluate(ctx, alias.Expr)
		if err != nil {
			return errors.Trace(err)
		}
		if err = writeResult(res, alias, dst); err != nil {
			return err
		}
	}
	return nil
}

// writeResult writes res to dst, res must be a constant or have one value
// per element of dst.
func writeResult(res expression.EvalResult, alias *aliasAggregates, dst []types.Id) error {
	if res.IsConstant() {
		for i := range dst {
			dst[i] = res.Constant()
		}
		return nil
	}
	if res.Len() != len(dst) {
		return ErrContractViolation.GenWithStackByArgs(
			fmt.Sprintf("alias %s has %d values for %d groups", alias.Alias, res.Len(), len(dst)))
	}
	copy(dst, res.Vector())
	return nil
}

func vectorOrConstant(vals []types.Id) expression.EvalResult {
	if len(vals) == 1 {
		return expression.ConstResult(vals[0])
	}
	return expression.VectorResult(vals)
}
