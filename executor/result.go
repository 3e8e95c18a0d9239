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
	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/pingcap/errors"
)

// IdTableVocabPair is one chunk of a lazy OperationResult.
type IdTableVocabPair struct {
	Table      *idtable.IdTable
	LocalVocab *localvocab.LocalVocab
}

// ChunkIterator yields the chunks of a lazy OperationResult. Next returns (nil, nil)
// after the last chunk.
type ChunkIterator interface {
	Next() (*IdTableVocabPair, error)
}

// ChunkIteratorFunc adapts a function to the ChunkIterator interface.
type ChunkIteratorFunc func() (*IdTableVocabPair, error)

// Next implements ChunkIterator interface.
func (f ChunkIteratorFunc) Next() (*IdTableVocabPair, error) {
	return f()
}

type sliceChunkIterator struct {
	chunks []*IdTableVocabPair
	pos    int
}

func (it *sliceChunkIterator) Next() (*IdTableVocabPair, error) {
	if it.pos >= len(it.chunks) {
		return nil, nil
	}
	it.pos++
	return it.chunks[it.pos-1], nil
}

// NewChunkIterator returns a ChunkIterator over chunks.
func NewChunkIterator(chunks ...*IdTableVocabPair) ChunkIterator {
	return &sliceChunkIterator{chunks: chunks}
}

// OperationResult is the output of an Operation: either one materialized table with
// its LocalVocab, or a single pass sequence of chunks.
type OperationResult struct {
	table    *idtable.IdTable
	vocab    *localvocab.LocalVocab
	chunks   ChunkIterator
	width    int
	sortedOn []int
	consumed bool
}

// NewMaterializedResult creates a materialized OperationResult. A nil vocab is
// replaced by an empty one.
func NewMaterializedResult(t *idtable.IdTable, vocab *localvocab.LocalVocab, sortedOn []int) *OperationResult {
	if vocab == nil {
		vocab = localvocab.New()
	}
	return &OperationResult{table: t, vocab: vocab, width: t.NumCols(), sortedOn: sortedOn}
}

// NewLazyResult creates a lazy OperationResult of width columns.
func NewLazyResult(chunks ChunkIterator, width int, sortedOn []int) *OperationResult {
	return &OperationResult{chunks: chunks, width: width, sortedOn: sortedOn}
}

// IsFullyMaterialized reports whether r holds a single table.
func (r *OperationResult) IsFullyMaterialized() bool {
	return r.chunks == nil
}

// Width returns the number of columns.
func (r *OperationResult) Width() int {
	return r.width
}

// closeMaterialized releases the table of r if r is materialized.
func closeMaterialized(r *OperationResult) {
	if r.IsFullyMaterialized() && r.table != nil {
		r.table.Close()
	}
}

// IdTable returns the table of a materialized OperationResult.
func (r *OperationResult) IdTable() (*idtable.IdTable, error) {
	if !r.IsFullyMaterialized() {
		return nil, ErrContractViolation.GenWithStackByArgs("IdTable called on a lazy result")
	}
	return r.table, nil
}

// LocalVocab returns the LocalVocab of a materialized OperationResult, nil for a lazy
// one.
func (r *OperationResult) LocalVocab() *localvocab.LocalVocab {
	return r.vocab
}

// GetCopyOfLocalVocab returns a clone of the LocalVocab of a materialized
// OperationResult that may be extended by the caller.
func (r *OperationResult) GetCopyOfLocalVocab() *localvocab.LocalVocab {
	if r.vocab == nil {
		return localvocab.New()
	}
	return r.vocab.Clone()
}

// SortedOn returns the columns the result is sorted on.
func (r *OperationResult) SortedOn() []int {
	return r.sortedOn
}

// IdTables returns the chunks of a lazy OperationResult. It may be called only once.
func (r *OperationResult) IdTables() (ChunkIterator, error) {
	if r.IsFullyMaterialized() {
		return nil, ErrContractViolation.GenWithStackByArgs("IdTables called on a materialized result")
	}
	if r.consumed {
		return nil, ErrContractViolation.GenWithStackByArgs("IdTables called twice on a lazy result")
	}
	r.consumed = true
	return r.chunks, nil
}

// Materialize returns r if it is materialized and otherwise a materialized
// OperationResult holding all chunks of r, charged to tracker.
func (r *OperationResult) Materialize(sctx *sessionctx.Context, tracker *memory.Tracker) (*OperationResult, error) {
	if r.IsFullyMaterialized() {
		return r, nil
	}
	chunks, err := r.IdTables()
	if err != nil {
		return nil, err
	}
	t := idtable.New(r.width, tracker)
	vocab := localvocab.New()
	for {
		if err := sctx.CheckCancellation(); err != nil {
			t.Close()
			return nil, err
		}
		chunk, err := chunks.Next()
		if err != nil {
			t.Close()
			return nil, errors.Trace(err)
		}
		if chunk == nil {
			break
		}
		if err := t.AppendTable(chunk.Table); err != nil {
			t.Close()
			return nil, errors.Trace(err)
		}
		vocab.MergeWith(chunk.LocalVocab)
	}
	return NewMaterializedResult(t, vocab, r.sortedOn), nil
}
