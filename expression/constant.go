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

// Constant is a literal value.
type Constant struct {
	Value types.Id
}

// NewConstant creates a Constant.
func NewConstant(id types.Id) *Constant {
	return &Constant{Value: id}
}

// Eval implements Expression interface.
func (c *Constant) Eval(ctx *EvalContext) (EvalResult, error) {
	return ConstResult(c.Value), nil
}

// Children implements Expression interface.
func (c *Constant) Children() []Expression {
	return nil
}

func (c *Constant) String() string {
	return c.Value.String()
}
