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
	"fmt"

	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/pingcap/errors"
)

// ValuesOp returns a fixed table, either at once or as a sequence of chunks.
type ValuesOp struct {
	baseOperation

	table     *idtable.IdTable
	vocab     *localvocab.LocalVocab
	chunks    []*IdTableVocabPair
	lazy      bool
	width     int
	variables map[string]ColumnInfo
	sortedOn  []int
}

// NewValuesOp creates a ValuesOp returning t. variables names the columns
// of t in order.
func NewValuesOp(t *idtable.IdTable, vocab *localvocab.LocalVocab, variables []string, sortedOn []int) *ValuesOp {
	e := &ValuesOp{
		baseOperation: newBaseOperation("values"),
		table:         t,
		vocab:         vocab,
		width:         t.NumCols(),
		sortedOn:      copyInts(sortedOn),
	}
	e.variables = valuesColumns(variables, []*idtable.IdTable{t})
	return e
}

// NewLazyValuesOp creates a ValuesOp that returns chunks as a lazy result if
// laziness is requested and their concatenation otherwise.
func NewLazyValuesOp(chunks []*IdTableVocabPair, variables []string, sortedOn []int) *ValuesOp {
	e := &ValuesOp{
		baseOperation: newBaseOperation("values"),
		chunks:        chunks,
		lazy:          true,
		width:         len(variables),
		sortedOn:      copyInts(sortedOn),
	}
	tables := make([]*idtable.IdTable, 0, len(chunks))
	for _, c := range chunks {
		tables = append(tables, c.Table)
	}
	e.variables = valuesColumns(variables, tables)
	return e
}

func valuesColumns(variables []string, tables []*idtable.IdTable) map[string]ColumnInfo {
	cols := make(map[string]ColumnInfo, len(variables))
	for i, v := range variables {
		info := ColumnInfo{Index: i}
		for _, t := range tables {
			if i < t.NumCols() && hasUnbound(t.Column(i)) {
				info.MaybeUndefined = true
				break
			}
		}
		cols[v] = info
	}
	return cols
}

// ComputeResult implements the Operation ComputeResult interface.
func (e *ValuesOp) ComputeResult(sctx *sessionctx.Context, requestLaziness bool) (*OperationResult, error) {
	tracker := e.newMemTracker(sctx)
	if !e.lazy {
		t, err := copyTable(e.table, tracker)
		if err != nil {
			return nil, err
		}
		var vocab *localvocab.LocalVocab
		if e.vocab != nil {
			vocab = e.vocab.Clone()
		}
		return NewMaterializedResult(t, vocab, e.sortedOn), nil
	}

	if !requestLaziness {
		return NewLazyResult(NewChunkIterator(e.chunks...), e.width, e.sortedOn).Materialize(sctx, tracker)
	}
	pos := 0
	next := func() (*IdTableVocabPair, error) {
		for pos < len(e.chunks) {
			chunk := e.chunks[pos]
			pos++
			if chunk.Table.NumCols() != e.width {
				return nil, ErrContractViolation.GenWithStackByArgs(
					fmt.Sprintf("chunk of width %d in values of width %d", chunk.Table.NumCols(), e.width))
			}
			t, err := copyTable(chunk.Table, tracker)
			if err != nil {
				return nil, err
			}
			vocab := localvocab.New()
			vocab.MergeWith(chunk.LocalVocab)
			return &IdTableVocabPair{Table: t, LocalVocab: vocab}, nil
		}
		return nil, nil
	}
	return NewLazyResult(ChunkIteratorFunc(next), e.width, e.sortedOn), nil
}

// ResultSortedOn implements the Operation ResultSortedOn interface.
func (e *ValuesOp) ResultSortedOn() []int {
	return e.sortedOn
}

// VariableColumns implements the Operation VariableColumns interface.
func (e *ValuesOp) VariableColumns() map[string]ColumnInfo {
	return e.variables
}

// ResultWidth implements the Operation ResultWidth interface.
func (e *ValuesOp) ResultWidth() int {
	return e.width
}

func (e *ValuesOp) String() string {
	return fmt.Sprintf("VALUES(%s)", formatVariables(e.variables))
}

// copyTable returns a copy of t charged to tracker.
func copyTable(t *idtable.IdTable, tracker *memory.Tracker) (*idtable.IdTable, error) {
	c := idtable.New(t.NumCols(), tracker)
	if err := c.AppendTable(t); err != nil {
		return nil, errors.Trace(err)
	}
	return c, nil
}
