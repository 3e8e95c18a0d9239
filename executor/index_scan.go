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
	"strings"

	"github.com/ad-freiburg/qlever-sub009/index"
	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/pingcap/errors"
)

// Term is one position of a triple pattern, a variable if Variable is not
// empty and the fixed Id otherwise.
type Term struct {
	Variable string
	Id       types.Id
}

// IsVariable reports whether t is a variable.
func (t Term) IsVariable() bool {
	return t.Variable != ""
}

func (t Term) String() string {
	if t.IsVariable() {
		return t.Variable
	}
	return t.Id.String()
}

// Var returns a variable Term.
func Var(name string) Term {
	return Term{Variable: name}
}

// Fixed returns a fixed Term.
func Fixed(id types.Id) Term {
	return Term{Id: id}
}

// IndexScanOp scans the triples matching a pattern in one permutation of an
// index. The result has one column per variable of the pattern, in the key
// order of the permutation, followed by the additional variables.
type IndexScanOp struct {
	baseOperation

	Index index.Index
	Perm  index.Permutation
	// Terms is indexed by triple position.
	Terms [3]Term
	// AllGraphs is set if the scan is not restricted to a named graph.
	AllGraphs bool
	// AdditionalVariables are bound to extra columns that the index does not
	// fill, they are always unbound.
	AdditionalVariables []string
	Limit               index.LimitOffset

	prefix    []types.Id
	variables []string
	columns   map[string]ColumnInfo
}

// NewIndexScanOp creates an IndexScanOp. The fixed terms must come first in
// the key order of perm.
func NewIndexScanOp(idx index.Index, perm index.Permutation, terms [3]Term, additional []string, limit index.LimitOffset) (*IndexScanOp, error) {
	e := &IndexScanOp{
		baseOperation:       newBaseOperation("indexScan"),
		Index:               idx,
		Perm:                perm,
		Terms:               terms,
		AllGraphs:           true,
		AdditionalVariables: additional,
		Limit:               limit,
		columns:             make(map[string]ColumnInfo),
	}
	for _, pos := range perm.KeyOrder() {
		term := terms[pos]
		if !term.IsVariable() {
			if len(e.variables) > 0 {
				return nil, ErrContractViolation.GenWithStackByArgs(
					fmt.Sprintf("fixed term %s after a variable in permutation %s", term, perm))
			}
			e.prefix = append(e.prefix, term.Id)
			continue
		}
		if err := e.addVariable(term.Variable, false); err != nil {
			return nil, err
		}
		e.variables = append(e.variables, term.Variable)
	}
	for _, v := range additional {
		if err := e.addVariable(v, true); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *IndexScanOp) addVariable(name string, maybeUndefined bool) error {
	if _, ok := e.columns[name]; ok {
		return ErrContractViolation.GenWithStackByArgs(fmt.Sprintf("variable %s bound twice by index scan", name))
	}
	e.columns[name] = ColumnInfo{Index: len(e.columns), MaybeUndefined: maybeUndefined}
	return nil
}

// NumVariables returns the number of variables of the triple pattern.
func (e *IndexScanOp) NumVariables() int {
	return len(e.variables)
}

// Prefix returns the fixed Ids of the pattern in key order.
func (e *IndexScanOp) Prefix() []types.Id {
	return e.prefix
}

// PositionOf returns the triple position of the variable name.
func (e *IndexScanOp) PositionOf(name string) (int, bool) {
	for pos, t := range e.Terms {
		if t.Variable == name {
			return pos, true
		}
	}
	return 0, false
}

// ExactSize returns the number of triples matching the pattern, ignoring
// the limit.
func (e *IndexScanOp) ExactSize() int64 {
	return e.Index.ScanSize(e.Perm, e.prefix)
}

// ComputeResult implements the Operation ComputeResult interface.
func (e *IndexScanOp) ComputeResult(sctx *sessionctx.Context, requestLaziness bool) (*OperationResult, error) {
	scanned, err := e.Index.Scan(sctx, e.Perm, e.prefix)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer scanned.Close()

	n := int64(scanned.NumRows())
	begin := e.Limit.Offset
	if begin > n {
		begin = n
	}
	end := begin + e.Limit.ActualSize(n)
	t := idtable.New(e.ResultWidth(), e.newMemTracker(sctx))
	if err = t.Resize(int(end - begin)); err != nil {
		return nil, errors.Trace(err)
	}
	for c := 0; c < scanned.NumCols(); c++ {
		copy(t.Column(c), scanned.Column(c)[begin:end])
	}
	return NewMaterializedResult(t, nil, e.ResultSortedOn()), nil
}

// ResultSortedOn implements the Operation ResultSortedOn interface.
func (e *IndexScanOp) ResultSortedOn() []int {
	sortedOn := make([]int, len(e.variables))
	for i := range sortedOn {
		sortedOn[i] = i
	}
	return sortedOn
}

// VariableColumns implements the Operation VariableColumns interface.
func (e *IndexScanOp) VariableColumns() map[string]ColumnInfo {
	return e.columns
}

// ResultWidth implements the Operation ResultWidth interface.
func (e *IndexScanOp) ResultWidth() int {
	return len(e.columns)
}

func (e *IndexScanOp) String() string {
	parts := make([]string, 3)
	for i, t := range e.Terms {
		parts[i] = t.String()
	}
	return fmt.Sprintf("SCAN %s (%s)", e.Perm, strings.Join(parts, " "))
}
