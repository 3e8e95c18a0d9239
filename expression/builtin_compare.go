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
	"math"

	"github.com/ad-freiburg/qlever-sub009/types"
)

// compareFunc returns the row function of a comparison. Comparing with an
// unbound value or NaN gives Undefined.
func compareFunc(pred func(int) bool) builtinFunc {
	return func(args []types.Id) types.Id {
		l, r := args[0], args[1]
		if l.IsUnbound() || r.IsUnbound() || isNaN(l) || isNaN(r) {
			return types.Undef
		}
		var c int
		if l.IsNumeric() && r.IsNumeric() {
			lf, _ := l.ToFloat()
			rf, _ := r.ToFloat()
			switch {
			case lf < rf:
				c = -1
			case lf > rf:
				c = 1
			}
		} else {
			c = l.Compare(r)
		}
		return types.NewBool(pred(c))
	}
}

func isNaN(id types.Id) bool {
	return id.Datatype() == types.KindDouble && math.IsNaN(id.Double())
}

func coalesce(args []types.Id) types.Id {
	for _, arg := range args {
		if !arg.IsUnbound() {
			return arg
		}
	}
	return types.Undef
}
