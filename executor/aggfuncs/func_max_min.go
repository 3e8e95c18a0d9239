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

type partialResult4MaxMin struct {
	val    types.Id
	isNull bool
}

// maxMin follows the total order of Ids. MIN returns Undefined as soon as one
// input is unbound, MAX ignores unbound inputs.
type maxMin struct {
	baseAggFunc
	isMax bool
}

func (e *maxMin) AllocPartialResult() PartialResult {
	p := new(partialResult4MaxMin)
	p.isNull = true
	return PartialResult(p)
}

func (e *maxMin) ResetPartialResult(pr PartialResult) {
	p := (*partialResult4MaxMin)(pr)
	p.val = types.Undef
	p.isNull = true
}

func (e *maxMin) UpdatePartialResult(env *Env, values []types.Id, pr PartialResult) error {
	p := (*partialResult4MaxMin)(pr)
	for _, v := range values {
		if v.IsUnbound() {
			if !e.isMax {
				p.val, p.isNull = types.Undef, false
			}
			continue
		}
		if p.isNull {
			p.val, p.isNull = v, false
			continue
		}
		cmp := v.Compare(p.val)
		if e.isMax && cmp > 0 || !e.isMax && cmp < 0 {
			p.val = v
		}
	}
	return nil
}

func (e *maxMin) FinalResult(env *Env, pr PartialResult) (types.Id, error) {
	p := (*partialResult4MaxMin)(pr)
	if p.isNull {
		return types.Undef, nil
	}
	return p.val, nil
}
