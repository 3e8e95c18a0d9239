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
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/pingcap/errors"
)

type partialResult4Distinct struct {
	inner   PartialResult
	seen    *roaring64.Bitmap
	charged int64
	buf     []types.Id
}

// distinct feeds only the first occurrence of every Id of a group into the
// wrapped aggregate.
type distinct struct {
	baseAggFunc

	inner AggFunc
}

func (e *distinct) AllocPartialResult() PartialResult {
	return PartialResult(&partialResult4Distinct{
		inner: e.inner.AllocPartialResult(),
		seen:  roaring64.New(),
	})
}

func (e *distinct) ResetPartialResult(pr PartialResult) {
	p := (*partialResult4Distinct)(pr)
	e.inner.ResetPartialResult(p.inner)
	e.release(p.charged)
	p.charged = 0
	p.seen.Clear()
}

func (e *distinct) UpdatePartialResult(env *Env, values []types.Id, pr PartialResult) error {
	p := (*partialResult4Distinct)(pr)
	p.buf = p.buf[:0]
	for _, v := range values {
		if p.seen.CheckedAdd(uint64(v)) {
			p.buf = append(p.buf, v)
		}
	}
	if len(p.buf) == 0 {
		return nil
	}
	if grown := int64(p.seen.GetSizeInBytes()) - p.charged; grown > 0 {
		if err := e.consume(grown); err != nil {
			return errors.Trace(err)
		}
		p.charged += grown
	}
	return e.inner.UpdatePartialResult(env, p.buf, p.inner)
}

func (e *distinct) FinalResult(env *Env, pr PartialResult) (types.Id, error) {
	p := (*partialResult4Distinct)(pr)
	return e.inner.FinalResult(env, p.inner)
}
