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
	"strconv"

	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
)

// CollectAggregates returns the aggregates of the tree in post order, so
// that an aggregate nested in another comes first.
func CollectAggregates(e Expression) []*AggregateFunc {
	var aggs []*AggregateFunc
	Walk(e, func(node Expression) bool {
		if agg, ok := node.(*AggregateFunc); ok {
			aggs = append(aggs, agg)
		}
		return true
	})
	return aggs
}

// ContainsAggregate reports whether the tree contains an aggregate.
func ContainsAggregate(e Expression) bool {
	found := false
	Walk(e, func(node Expression) bool {
		_, found = node.(*AggregateFunc)
		return !found
	})
	return found
}

// HasNestedAggregate reports whether an aggregate of the tree has another
// aggregate in its argument.
func HasNestedAggregate(e Expression) bool {
	for _, agg := range CollectAggregates(e) {
		if agg.arg != nil && ContainsAggregate(agg.arg) {
			return true
		}
	}
	return false
}

// CollectVariables returns the variable occurrences of the tree that are not
// inside an aggregate.
func CollectVariables(e Expression) []*Variable {
	var vars []*Variable
	var collect func(Expression)
	collect = func(node Expression) {
		switch x := node.(type) {
		case *Variable:
			vars = append(vars, x)
		case *AggregateFunc:
		default:
			for _, child := range node.Children() {
				collect(child)
			}
		}
	}
	collect(e)
	return vars
}

// StringValue returns the lexical form of id. Words are resolved through lv
// and vocab. ok is false for unbound values and for words that cannot be
// resolved.
func StringValue(id types.Id, lv *localvocab.LocalVocab, vocab Vocabulary) (s string, ok bool) {
	switch id.Datatype() {
	case types.KindUndefined, types.KindNoMatch:
		return "", false
	case types.KindInt:
		return strconv.FormatInt(id.Int(), 10), true
	case types.KindDouble:
		return strconv.FormatFloat(id.Double(), 'g', -1, 64), true
	case types.KindBool:
		return strconv.FormatBool(id.Bool()), true
	case types.KindVocabIndex:
		if vocab == nil {
			return "", false
		}
		return vocab.Word(id.VocabIndex())
	case types.KindLocalVocabIndex:
		if lv == nil {
			return "", false
		}
		w, err := lv.Word(id)
		return w, err == nil
	}
	return id.String(), true
}
