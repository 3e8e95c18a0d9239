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

type arithmeticOp int

const (
	opPlus arithmeticOp = iota
	opMinus
	opMul
	opDiv
)

// arithmeticFunc returns the row function of op. Int operands stay Int
// except for division; overflowing Int results wrap. Unbound, non numeric
// operands and division by zero give Undefined.
func arithmeticFunc(op arithmeticOp) builtinFunc {
	return func(args []types.Id) types.Id {
		l, r := args[0], args[1]
		if !l.IsNumeric() || !r.IsNumeric() {
			return types.Undef
		}
		if op != opDiv && l.Datatype() == types.KindInt && r.Datatype() == types.KindInt {
			a, b := l.Int(), r.Int()
			switch op {
			case opPlus:
				return types.NewInt(a + b)
			case opMinus:
				return types.NewInt(a - b)
			default:
				return types.NewInt(a * b)
			}
		}
		a, _ := l.ToFloat()
		b, _ := r.ToFloat()
		switch op {
		case opPlus:
			return types.NewDouble(a + b)
		case opMinus:
			return types.NewDouble(a - b)
		case opMul:
			return types.NewDouble(a * b)
		}
		if b == 0 {
			return types.Undef
		}
		return types.NewDouble(a / b)
	}
}

func negate(args []types.Id) types.Id {
	switch args[0].Datatype() {
	case types.KindInt:
		return types.NewInt(-args[0].Int())
	case types.KindDouble:
		return types.NewDouble(-args[0].Double())
	}
	return types.Undef
}
