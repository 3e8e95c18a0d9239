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
	"github.com/ad-freiburg/qlever-sub009/types"
)

// Variable is a reference to a SPARQL variable, for example ?x.
type Variable struct {
	Name string
}

// NewVariable creates a Variable.
func NewVariable(name string) *Variable {
	return &Variable{Name: name}
}

// Eval implements Expression interface.
//
// A variable bound by an earlier alias evaluates to that alias' results, a
// grouped variable inside a group to the value of the group, any other
// variable to its column. Unknown variables are unbound.
func (v *Variable) Eval(ctx *EvalContext) (EvalResult, error) {
	if col, ok := ctx.PreviousResultColumns[v.Name]; ok && ctx.PreviousResults != nil {
		if ctx.ResultEnd-ctx.ResultBegin == 1 {
			return ConstResult(ctx.PreviousResults.At(ctx.ResultBegin, col)), nil
		}
		return VectorResult(ctx.PreviousResults.Column(col)[ctx.ResultBegin:ctx.ResultEnd]), nil
	}
	col, ok := ctx.VariableColumns[v.Name]
	if !ok {
		return ConstResult(types.Undef), nil
	}
	if ctx.IsPartOfGroupBy && ctx.IsGrouped(v.Name) {
		if ctx.Size() == 0 {
			return ConstResult(types.Undef), nil
		}
		return ConstResult(ctx.Table.At(ctx.Begin, col)), nil
	}
	return VectorResult(ctx.Table.Column(col)[ctx.Begin:ctx.End]), nil
}

// Children implements Expression interface.
func (v *Variable) Children() []Expression {
	return nil
}

func (v *Variable) String() string {
	return v.Name
}
