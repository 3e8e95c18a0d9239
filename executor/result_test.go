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

package executor

import (
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
	. "github.com/pingcap/check"
)

var _ = Suite(&testResultSuite{})

type testResultSuite struct{}

func (s *testResultSuite) TestLazyResultSinglePass(c *C) {
	vocab := localvocab.New()
	word, err := vocab.GetIndexAndAddIfNotContained("<w>")
	c.Assert(err, IsNil)
	res := NewLazyResult(NewChunkIterator(
		&IdTableVocabPair{Table: newTable(c, 2, ints(1, 2)), LocalVocab: vocab},
		&IdTableVocabPair{Table: newTable(c, 2, []types.Id{word, i(3)}), LocalVocab: localvocab.New()},
	), 2, []int{0})
	c.Assert(res.IsFullyMaterialized(), IsFalse)
	c.Assert(res.Width(), Equals, 2)
	_, err = res.IdTable()
	c.Assert(ErrContractViolation.Equal(err), IsTrue)

	sctx := newTestContext()
	mat, err := res.Materialize(sctx, nil)
	c.Assert(err, IsNil)
	t, err := mat.IdTable()
	c.Assert(err, IsNil)
	c.Assert(t.Rows(), DeepEquals, [][]types.Id{ints(1, 2), {word, i(3)}})
	w, err := mat.LocalVocab().Word(word)
	c.Assert(err, IsNil)
	c.Assert(w, Equals, "<w>")

	_, err = res.IdTables()
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
	_, err = mat.IdTables()
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
}

func (s *testResultSuite) TestValuesLaziness(c *C) {
	sctx := newTestContext()
	op := NewLazyValuesOp([]*IdTableVocabPair{
		chunkOf(c, 1, ints(1)),
		chunkOf(c, 1, ints(2), ints(3)),
	}, []string{"?x"}, nil)
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(1), ints(2), ints(3)})

	res, err := ComputeResult(sctx, op, true)
	c.Assert(err, IsNil)
	chunks, err := res.IdTables()
	c.Assert(err, IsNil)
	n := 0
	for {
		chunk, err := chunks.Next()
		c.Assert(err, IsNil)
		if chunk == nil {
			break
		}
		n++
		chunk.Table.Close()
	}
	c.Assert(n, Equals, 2)

	// Without chunks the result is still lazy and yields nothing.
	empty := NewLazyValuesOp(nil, []string{"?x"}, nil)
	c.Assert(computeRows(c, sctx, empty), HasLen, 0)
	res, err = ComputeResult(sctx, empty, true)
	c.Assert(err, IsNil)
	c.Assert(res.IsFullyMaterialized(), IsFalse)
	chunks, err = res.IdTables()
	c.Assert(err, IsNil)
	chunk, err := chunks.Next()
	c.Assert(err, IsNil)
	c.Assert(chunk, IsNil)

	bad := NewLazyValuesOp([]*IdTableVocabPair{chunkOf(c, 2, ints(1, 2))}, []string{"?x"}, nil)
	res, err = ComputeResult(sctx, bad, true)
	c.Assert(err, IsNil)
	chunks, err = res.IdTables()
	c.Assert(err, IsNil)
	_, err = chunks.Next()
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
}

func (s *testResultSuite) TestSort(c *C) {
	sctx := newTestContext()
	child := newValues(c, []string{"?a", "?b"}, ints(2, 1), ints(1, 2), ints(2, 0), ints(1, 1))
	op := NewSortOp(child, []int{0})
	c.Assert(computeRows(c, sctx, op), DeepEquals, [][]types.Id{ints(1, 2), ints(1, 1), ints(2, 1), ints(2, 0)})
	c.Assert(op.ResultSortedOn(), DeepEquals, []int{0})

	_, err := ComputeResult(sctx, NewSortOp(child, []int{2}), false)
	c.Assert(ErrContractViolation.Equal(err), IsTrue)
}

func (s *testResultSuite) TestMemoryBudget(c *C) {
	sctx := newTestContext()
	sctx.MemTracker().SetBytesLimit(64)
	var rows [][]types.Id
	for k := int64(0); k < 100; k++ {
		rows = append(rows, ints(k, k))
	}
	child := NewValuesOp(newTable(c, 2, rows...), nil, []string{"?a", "?b"}, nil)
	_, err := ComputeResult(sctx, child, false)
	c.Assert(err, NotNil)
}
