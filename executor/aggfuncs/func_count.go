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

type count struct {
	baseAggFunc
}

type partialResult4Count = int64

func (e *count) AllocPartialResult() PartialResult {
	return PartialResult(new(partialResult4Count))
}

func (e *count) ResetPartialResult(pr PartialResult) {
	p := (*partialResult4Count)(pr)
	*p = 0
}

func (e *count) UpdatePartialResult(env *Env, values []types.Id, pr PartialResult) error {
	p := (*partialResult4Count)(pr)
	for _, v := range values {
		if v.IsUnbound() {
			continue
		}
		*p++
	}
	return nil
}

func (e *count) FinalResult(env *Env, pr PartialResult) (types.Id, error) {
	p := (*partialResult4Count)(pr)
	return types.NewInt(*p), nil
}
