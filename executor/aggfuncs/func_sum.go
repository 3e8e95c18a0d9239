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

// partialResult4Sum keeps an Int sum as long as all inputs are Int and
// switches to Double on the first Double input.
type partialResult4Sum struct {
	intSum   int64
	dblSum   float64
	isDouble bool
	count    int64
	// undefined is set by an unbound input, notNumeric by a non numeric one.
	undefined  bool
	notNumeric bool
}

func (p *partialResult4Sum) add(v types.Id) {
	p.count++
	switch v.Datatype() {
	case types.KindInt:
		if p.isDouble {
			p.dblSum += float64(v.Int())
		} else {
			p.intSum += v.Int()
		}
	case types.KindDouble:
		if !p.isDouble {
			p.dblSum = float64(p.intSum)
			p.isDouble = true
		}
		p.dblSum += v.Double()
	case types.KindUndefined, types.KindNoMatch:
		p.undefined = true
	default:
		p.notNumeric = true
	}
}

func (p *partialResult4Sum) asFloat() float64 {
	if p.isDouble {
		return p.dblSum
	}
	return float64(p.intSum)
}

type sum struct {
	baseAggFunc
}

func (e *sum) AllocPartialResult() PartialResult {
	return PartialResult(new(partialResult4Sum))
}

func (e *sum) ResetPartialResult(pr PartialResult) {
	p := (*partialResult4Sum)(pr)
	*p = partialResult4Sum{}
}

func (e *sum) UpdatePartialResult(env *Env, values []types.Id, pr PartialResult) error {
	p := (*partialResult4Sum)(pr)
	for _, v := range values {
		p.add(v)
	}
	return nil
}

func (e *sum) FinalResult(env *Env, pr PartialResult) (types.Id, error) {
	p := (*partialResult4Sum)(pr)
	switch {
	case p.undefined, p.notNumeric:
		return types.Undef, nil
	case p.isDouble:
		return types.NewDouble(p.dblSum), nil
	}
	return types.NewInt(p.intSum), nil
}
