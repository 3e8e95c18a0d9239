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
	"github.com/ad-freiburg/qlever-sub009/expression"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/pingcap/errors"
)

// Build is used to build a specific AggFunc implementation according to the
// aggregate expression. Values buffered by the function are charged to
// tracker.
func Build(agg *expression.AggregateFunc, tracker *memory.Tracker) (AggFunc, error) {
	base := baseAggFunc{tracker: tracker}
	var f AggFunc
	switch agg.Kind() {
	case expression.AggCount:
		f = &count{base}
	case expression.AggSum:
		f = &sum{base}
	case expression.AggAvg:
		f = &avg{sum{base}}
	case expression.AggMin:
		f = &maxMin{baseAggFunc: base, isMax: false}
	case expression.AggMax:
		f = &maxMin{baseAggFunc: base, isMax: true}
	case expression.AggSample:
		f = &sample{base}
	case expression.AggGroupConcat:
		f = &groupConcat{baseAggFunc: base, sep: agg.Separator()}
	case expression.AggStdev:
		f = &stdev{base}
	default:
		return nil, errors.Errorf("unknown aggregate %v", agg.Kind())
	}
	if agg.Distinct() {
		f = &distinct{baseAggFunc: base, inner: f}
	}
	return f, nil
}
