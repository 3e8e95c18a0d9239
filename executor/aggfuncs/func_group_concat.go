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
	"bytes"

	"github.com/ad-freiburg/qlever-sub009/expression"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/pingcap/errors"
)

type partialResult4GroupConcat struct {
	buffer  *bytes.Buffer
	charged int64
}

// groupConcat joins the lexical forms of the bound values of a group. The
// result is a word of the LocalVocab of the Env.
type groupConcat struct {
	baseAggFunc

	sep string
}

func (e *groupConcat) AllocPartialResult() PartialResult {
	return PartialResult(new(partialResult4GroupConcat))
}

func (e *groupConcat) ResetPartialResult(pr PartialResult) {
	p := (*partialResult4GroupConcat)(pr)
	e.release(p.charged)
	p.buffer = nil
	p.charged = 0
}

func (e *groupConcat) UpdatePartialResult(env *Env, values []types.Id, pr PartialResult) error {
	p := (*partialResult4GroupConcat)(pr)
	before := 0
	if p.buffer != nil {
		before = p.buffer.Len()
	}
	for _, v := range values {
		if v.Datatype() == types.KindVocabIndex && env.Vocabulary == nil {
			return ErrVocabularyMissing.GenWithStackByArgs(v)
		}
		s, ok := expression.StringValue(v, env.LocalVocab, env.Vocabulary)
		if !ok {
			continue
		}
		if p.buffer == nil {
			p.buffer = &bytes.Buffer{}
		} else {
			p.buffer.WriteString(e.sep)
		}
		p.buffer.WriteString(s)
	}
	if p.buffer == nil {
		return nil
	}
	grown := int64(p.buffer.Len() - before)
	if err := e.consume(grown); err != nil {
		return errors.Trace(err)
	}
	p.charged += grown
	return nil
}

func (e *groupConcat) FinalResult(env *Env, pr PartialResult) (types.Id, error) {
	p := (*partialResult4GroupConcat)(pr)
	var s string
	if p.buffer != nil {
		s = p.buffer.String()
	}
	id, err := env.LocalVocab.GetIndexAndAddIfNotContained(s)
	return id, errors.Trace(err)
}
