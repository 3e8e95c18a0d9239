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

type partialResult4Sample struct {
	val         types.Id
	gotFirstRow bool
}

// sample returns the first value of the group, also if it is unbound.
type sample struct {
	baseAggFunc
}

func (e *sample) AllocPartialResult() PartialResult {
	return PartialResult(new(partialResult4Sample))
}

func (e *sample) ResetPartialResult(pr PartialResult) {
	p := (*partialResult4Sample)(pr)
	p.val, p.gotFirstRow = types.Undef, false
}

func (e *sample) UpdatePartialResult(env *Env, values []types.Id, pr PartialResult) error {
	p := (*partialResult4Sample)(pr)
	if p.gotFirstRow || len(values) == 0 {
		return nil
	}
	p.val, p.gotFirstRow = values[0], true
	return nil
}

func (e *sample) FinalResult(env *Env, pr PartialResult) (types.Id, error) {
	p := (*partialResult4Sample)(pr)
	return p.val, nil
}
