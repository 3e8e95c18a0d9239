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
	"strings"

	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/pingcap/errors"
)

// Names of the scalar functions.
const (
	Plus     = "+"
	Minus    = "-"
	Mul      = "*"
	Div      = "/"
	UnaryNeg = "neg"
	EQ       = "="
	NE       = "!="
	LT       = "<"
	LE       = "<="
	GT       = ">"
	GE       = ">="
	Coalesce = "coalesce"
)

type builtinFunc func(args []types.Id) types.Id

var funcs = map[string]struct {
	arity int
	fn    builtinFunc
}{
	Plus:     {2, arithmeticFunc(opPlus)},
	Minus:    {2, arithmeticFunc(opMinus)},
	Mul:      {2, arithmeticFunc(opMul)},
	Div:      {2, arithmeticFunc(opDiv)},
	UnaryNeg: {1, negate},
	EQ:       {2, compareFunc(func(c int) bool { return c == 0 })},
	NE:       {2, compareFunc(func(c int) bool { return c != 0 })},
	LT:       {2, compareFunc(func(c int) bool { return c < 0 })},
	LE:       {2, compareFunc(func(c int) bool { return c <= 0 })},
	GT:       {2, compareFunc(func(c int) bool { return c > 0 })},
	GE:       {2, compareFunc(func(c int) bool { return c >= 0 })},
	Coalesce: {-1, coalesce},
}

// ScalarFunction is a function applied row by row to its arguments.
type ScalarFunction struct {
	FuncName string
	Args     []Expression

	fn builtinFunc
}

// NewFunction creates a ScalarFunction. It fails for unknown names and wrong
// numbers of arguments.
func NewFunction(funcName string, args ...Expression) (*ScalarFunction, error) {
	f, ok := funcs[funcName]
	if !ok {
		return nil, errors.Errorf("function %s is not supported", funcName)
	}
	if f.arity >= 0 && len(args) != f.arity {
		return nil, errors.Errorf("function %s expects %d arguments, got %d", funcName, f.arity, len(args))
	}
	return &ScalarFunction{FuncName: funcName, Args: args, fn: f.fn}, nil
}

// NewFunctionInternal is NewFunction for arguments known to be valid.
func NewFunctionInternal(funcName string, args ...Expression) *ScalarFunction {
	sf, err := NewFunction(funcName, args...)
	if err != nil {
		panic(err)
	}
	return sf
}

// Eval implements Expression interface.
func (sf *ScalarFunction) Eval(ctx *EvalContext) (EvalResult, error) {
	args := make([]EvalResult, len(sf.Args))
	allConst := true
	for i, arg := range sf.Args {
		res, err := Evaluate(ctx, arg)
		if err != nil {
			return EvalResult{}, errors.Trace(err)
		}
		args[i] = res
		allConst = allConst && res.IsConstant()
	}
	buf := make([]types.Id, len(args))
	if allConst {
		for i, arg := range args {
			buf[i] = arg.Constant()
		}
		return ConstResult(sf.fn(buf)), nil
	}
	n := ctx.Size()
	out := make([]types.Id, n)
	for row := 0; row < n; row++ {
		for i, arg := range args {
			buf[i] = arg.At(row)
		}
		out[row] = sf.fn(buf)
	}
	return VectorResult(out), nil
}

// Children implements Expression interface.
func (sf *ScalarFunction) Children() []Expression {
	return sf.Args
}

func (sf *ScalarFunction) String() string {
	var b strings.Builder
	b.WriteString(sf.FuncName)
	b.WriteByte('(')
	for i, arg := range sf.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(arg.String())
	}
	b.WriteByte(')')
	return b.String()
}
