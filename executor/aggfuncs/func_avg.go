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

package aggfuncs

import (
	"github.com/ad-freiburg/qlever-sub009/types"
)

type avg struct {
	sum
}

func (e *avg) FinalResult(env *Env, pr PartialResult) (types.Id, error) {
	p := (*partialResult4Sum)(pr)
	switch {
	case p.count == 0:
		return types.NewInt(0), nil
	case p.undefined, p.notNumeric:
		return types.Undef, nil
	}
	return types.NewDouble(p.asFloat() / float64(p.count)), nil
}
