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
	"math"

	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/pingcap/errors"
)

const float64Size = 8

type partialResult4Stdev struct {
	vals       []float64
	charged    int64
	undefined  bool
	notNumeric bool
}

// stdev is the sample standard deviation. It buffers the values of the group
// and computes mean and deviation in two passes.
type stdev struct {
	baseAggFunc
}

func (e *stdev) AllocPartialResult() PartialResult {
	return PartialResult(new(partialResult4Stdev))
}

func (e *stdev) ResetPartialResult(pr PartialResult) {
	p := (*partialResult4Stdev)(pr)
	e.release(p.charged)
	*p = partialResult4Stdev{}
}

func (e *stdev) UpdatePartialResult(env *Env, values []types.Id, pr PartialResult) error {
	p := (*partialResult4Stdev)(pr)
	for _, v := range values {
		if v.IsUnbound() {
			p.undefined = true
			continue
		}
		f, ok := v.ToFloat()
		if !ok {
			p.notNumeric = true
			continue
		}
		p.vals = append(p.vals, f)
	}
	if grown := int64(cap(p.vals))*float64Size - p.charged; grown > 0 {
		if err := e.consume(grown); err != nil {
			return errors.Trace(err)
		}
		p.charged += grown
	}
	return nil
}

func (e *stdev) FinalResult(env *Env, pr PartialResult) (types.Id, error) {
	p := (*partialResult4Stdev)(pr)
	switch {
	case p.undefined:
		return types.Undef, nil
	case p.notNumeric:
		return types.NewDouble(math.NaN()), nil
	case len(p.vals) <= 1:
		return types.NewDouble(0), nil
	}
	var mean float64
	for _, v := range p.vals {
		mean += v
	}
	mean /= float64(len(p.vals))
	var sqDev float64
	for _, v := range p.vals {
		sqDev += (v - mean) * (v - mean)
	}
	return types.NewDouble(math.Sqrt(sqDev / float64(len(p.vals)-1))), nil
}
