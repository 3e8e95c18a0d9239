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
	"fmt"
	"strings"

	"github.com/pingcap/parser/terror"
)

// AggKind is the kind of an aggregate function.
type AggKind int

// Aggregate kinds.
const (
	AggCount AggKind = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggSample
	AggGroupConcat
	AggStdev
)

var aggKindNames = [...]string{
	AggCount:       "COUNT",
	AggSum:         "SUM",
	AggAvg:         "AVG",
	AggMin:         "MIN",
	AggMax:         "MAX",
	AggSample:      "SAMPLE",
	AggGroupConcat: "GROUP_CONCAT",
	AggStdev:       "STDEV",
}

func (k AggKind) String() string {
	if int(k) < len(aggKindNames) {
		return aggKindNames[k]
	}
	return fmt.Sprintf("AggKind(%d)", int(k))
}

// DefaultSeparator is the GROUP_CONCAT separator when none is given.
const DefaultSeparator = " "

const codeAggregateOutsideGroup terror.ErrCode = 8210

// ErrAggregateOutsideGroup is returned when an aggregate is evaluated without
// a precomputed value for the current group.
var ErrAggregateOutsideGroup = terror.ClassExpression.New(codeAggregateOutsideGroup, "aggregate %s evaluated outside of a group")

// AggregateFunc is an aggregate over the rows of a group. Its value is
// computed by the GROUP BY operator and provided through the Overlay of the
// EvalContext.
type AggregateFunc struct {
	kind      AggKind
	distinct  bool
	arg       Expression
	separator string
}

// NewAggregateFunc creates an aggregate of kind over arg.
func NewAggregateFunc(kind AggKind, distinct bool, arg Expression) *AggregateFunc {
	return &AggregateFunc{kind: kind, distinct: distinct, arg: arg, separator: DefaultSeparator}
}

// NewGroupConcat creates a GROUP_CONCAT aggregate with the given separator.
func NewGroupConcat(distinct bool, arg Expression, separator string) *AggregateFunc {
	return &AggregateFunc{kind: AggGroupConcat, distinct: distinct, arg: arg, separator: separator}
}

// NewCountStar creates COUNT(*), optionally COUNT(DISTINCT *).
func NewCountStar(distinct bool) *AggregateFunc {
	return &AggregateFunc{kind: AggCount, distinct: distinct}
}

// Kind returns the kind of the aggregate.
func (a *AggregateFunc) Kind() AggKind {
	return a.kind
}

// Distinct reports whether duplicates are ignored.
func (a *AggregateFunc) Distinct() bool {
	return a.distinct
}

// Arg returns the aggregated expression, nil for COUNT(*).
func (a *AggregateFunc) Arg() Expression {
	return a.arg
}

// Separator returns the GROUP_CONCAT separator.
func (a *AggregateFunc) Separator() string {
	return a.separator
}

// IsCountStar reports whether a is COUNT(*).
func (a *AggregateFunc) IsCountStar() bool {
	return a.kind == AggCount && a.arg == nil
}

// Eval implements Expression interface.
func (a *AggregateFunc) Eval(ctx *EvalContext) (EvalResult, error) {
	return EvalResult{}, ErrAggregateOutsideGroup.GenWithStackByArgs(a.String())
}

// Children implements Expression interface.
func (a *AggregateFunc) Children() []Expression {
	if a.arg == nil {
		return nil
	}
	return []Expression{a.arg}
}

func (a *AggregateFunc) String() string {
	var b strings.Builder
	b.WriteString(a.kind.String())
	b.WriteByte('(')
	if a.distinct {
		b.WriteString("DISTINCT ")
	}
	if a.arg == nil {
		b.WriteByte('*')
	} else {
		b.WriteString(a.arg.String())
	}
	if a.kind == AggGroupConcat && a.separator != DefaultSeparator {
		fmt.Fprintf(&b, "; SEPARATOR=%q", a.separator)
	}
	b.WriteByte(')')
	return b.String()
}
