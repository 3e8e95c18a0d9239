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
	"fmt"

	"github.com/ad-freiburg/qlever-sub009/types"
)

// Expression is a node of a SPARQL expression tree.
type Expression interface {
	fmt.Stringer

	// Eval evaluates the expression over the rows [ctx.Begin, ctx.End) of
	// ctx.Table. Callers go through Evaluate so that overlay entries win.
	Eval(ctx *EvalContext) (EvalResult, error)

	// Children returns the direct sub expressions.
	Children() []Expression
}

// EvalResult is the value of an expression over a range of rows: either one
// constant for the whole range or one Id per row.
type EvalResult struct {
	constant types.Id
	vector   []types.Id
	isVector bool
}

// ConstResult creates a constant EvalResult.
func ConstResult(id types.Id) EvalResult {
	return EvalResult{constant: id}
}

// VectorResult creates an EvalResult with one value per row.
func VectorResult(ids []types.Id) EvalResult {
	return EvalResult{vector: ids, isVector: true}
}

// IsConstant reports whether r holds a single value for all rows.
func (r EvalResult) IsConstant() bool {
	return !r.isVector
}

// Constant returns the value of a constant EvalResult.
func (r EvalResult) Constant() types.Id {
	return r.constant
}

// Vector returns the values of a vector EvalResult.
func (r EvalResult) Vector() []types.Id {
	return r.vector
}

// At returns the value for the i-th row of the evaluated range.
func (r EvalResult) At(i int) types.Id {
	if r.isVector {
		return r.vector[i]
	}
	return r.constant
}

// Len returns the number of values of a vector EvalResult and -1 for a constant.
func (r EvalResult) Len() int {
	if r.isVector {
		return len(r.vector)
	}
	return -1
}

// Evaluate evaluates e in ctx. Nodes with an entry in ctx.Overlay are
// replaced by that entry without being evaluated.
func Evaluate(ctx *EvalContext, e Expression) (EvalResult, error) {
	if ctx.Overlay != nil {
		if res, ok := ctx.Overlay[e]; ok {
			return res, nil
		}
	}
	return e.Eval(ctx)
}

// Walk calls fn for every node of the tree rooted at e in post order. When fn
// returns false the walk stops.
func Walk(e Expression, fn func(Expression) bool) bool {
	for _, child := range e.Children() {
		if !Walk(child, fn) {
			return false
		}
	}
	return fn(e)
}
