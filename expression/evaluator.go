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

package expression

import (
	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
	"github.com/ad-freiburg/qlever-sub009/util/set"
)

// Vocabulary resolves VocabIndex payloads to their words.
type Vocabulary interface {
	Word(idx uint64) (string, bool)
}

// Overlay substitutes precomputed results for nodes of an expression tree.
// Nodes are keyed by identity, the tree itself is never modified.
type Overlay map[Expression]EvalResult

// EvalContext is everything an expression needs to be evaluated over a range
// of rows.
type EvalContext struct {
	Table      *idtable.IdTable
	Begin, End int

	// VariableColumns maps variable names to columns of Table.
	VariableColumns map[string]int
	LocalVocab      *localvocab.LocalVocab
	SessionCtx      *sessionctx.Context

	// GroupedVariables are the GROUP BY variables. When IsPartOfGroupBy is
	// set, they evaluate to the value of the current group.
	GroupedVariables set.StringSet
	IsPartOfGroupBy  bool

	// PreviousResults holds the aliases computed so far for the current
	// groups, in rows [ResultBegin, ResultEnd). PreviousResultColumns maps
	// alias targets to its columns.
	PreviousResults       *idtable.IdTable
	PreviousResultColumns map[string]int
	ResultBegin           int
	ResultEnd             int

	Overlay    Overlay
	Vocabulary Vocabulary
}

// Size returns the number of rows evaluated.
func (ctx *EvalContext) Size() int {
	return ctx.End - ctx.Begin
}

// IsGrouped reports whether name is a GROUP BY variable.
func (ctx *EvalContext) IsGrouped(name string) bool {
	return ctx.GroupedVariables.Exist(name)
}
