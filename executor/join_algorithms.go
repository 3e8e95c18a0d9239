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
	"sort"

	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
)

func hasUnbound(col []types.Id) bool {
	for _, id := range col {
		if id.IsUnbound() {
			return true
		}
	}
	return false
}

// hasUnboundIn reports whether any of the columns cols of t holds an
// unbound value.
func hasUnboundIn(t *idtable.IdTable, cols []int) bool {
	for _, c := range cols {
		if hasUnbound(t.Column(c)) {
			return true
		}
	}
	return false
}

// rowList is either the row range [begin, end) or an explicit list of rows.
type rowList struct {
	begin, end int
	list       []int
	explicit   bool
}

func (l rowList) len() int {
	if l.explicit {
		return len(l.list)
	}
	return l.end - l.begin
}

func (l rowList) at(i int) int {
	if l.explicit {
		return l.list[i]
	}
	return l.begin + i
}

type undefKind int

const (
	// undefNone: no join column is unbound.
	undefNone undefKind = iota
	// undefPrefix: single join column, the unbound values sort first.
	undefPrefix
	// undefArbitrary: unbound values may be anywhere.
	undefArbitrary
)

// undefFinder partitions the rows of a table sorted on the join columns into
// the rows with and without an unbound join value.
type undefFinder struct {
	kind  undefKind
	undef rowList
	bound rowList
}

func newUndefFinder(t *idtable.IdTable, cols []int) *undefFinder {
	n := t.NumRows()
	if len(cols) == 1 {
		col := t.Column(cols[0])
		k := gallopColumn(col, func(id types.Id) bool { return !id.IsUnbound() })
		if k == 0 {
			return &undefFinder{kind: undefNone, bound: rowList{begin: 0, end: n}}
		}
		return &undefFinder{
			kind:  undefPrefix,
			undef: rowList{begin: 0, end: k},
			bound: rowList{begin: k, end: n},
		}
	}
	var undef, bound []int
	for i := 0; i < n; i++ {
		if t.GetRow(i).HasUnbound(cols) {
			if undef == nil {
				bound = make([]int, i, n)
				for j := range bound {
					bound[j] = j
				}
			}
			undef = append(undef, i)
			continue
		}
		if undef != nil {
			bound = append(bound, i)
		}
	}
	if undef == nil {
		return &undefFinder{kind: undefNone, bound: rowList{begin: 0, end: n}}
	}
	return &undefFinder{
		kind:  undefArbitrary,
		undef: rowList{list: undef, explicit: true},
		bound: rowList{list: bound, explicit: true},
	}
}

// gallopColumn returns the first index of col for which pred holds. pred
// must be false for a prefix of col and true for the rest.
func gallopColumn(col []types.Id, pred func(types.Id) bool) int {
	lo, hi, step := 0, 0, 1
	for hi < len(col) && !pred(col[hi]) {
		lo = hi + 1
		hi += step
		step *= 2
	}
	if hi > len(col) {
		hi = len(col)
	}
	return lo + sort.Search(hi-lo, func(i int) bool { return pred(col[lo+i]) })
}

// gallop returns the first row in [lo, t.NumRows()) of t, sorted on cols,
// whose key is not less than the key tCols of target.
func gallop(t *idtable.IdTable, cols []int, lo int, target idtable.Row, tCols []int, cmp keyComparator) int {
	n := t.NumRows()
	hi, step := lo, 1
	for hi < n && cmp(t.GetRow(hi), cols, target, tCols) < 0 {
		lo = hi + 1
		hi += step
		step *= 2
	}
	if hi > n {
		hi = n
	}
	return lo + sort.Search(hi-lo, func(i int) bool {
		return cmp(t.GetRow(lo+i), cols, target, tCols) >= 0
	})
}

// runEnd returns the end of the run of rows of t equal to row start on cols.
func runEnd(t *idtable.IdTable, cols []int, start int, cmp keyComparator) int {
	first := t.GetRow(start)
	end := start + 1
	for end < t.NumRows() && cmp(t.GetRow(end), cols, first, cols) == 0 {
		end++
	}
	return end
}

func listRunEnd(t *idtable.IdTable, rows rowList, cols []int, start int, cmp keyComparator) int {
	first := t.GetRow(rows.at(start))
	end := start + 1
	for end < rows.len() && cmp(t.GetRow(rows.at(end)), cols, first, cols) == 0 {
		end++
	}
	return end
}

// zipperJoinWithUndef joins left and right, both sorted on their join
// columns, calling j.tryToMatch for every compatible pair of rows and
// j.onMissMatch exactly once for every left row without a partner. A join
// column holding an unbound value is compatible with every value.
//
// Pairs of rows with bound keys and left rows with bound keys are visited in
// the order of the left input. Left rows with an unbound key are visited
// last; outOfOrder counts the rows they produced, the caller must re-sort the
// result if it is not 0.
func zipperJoinWithUndef(sctx *sessionctx.Context, left, right *idtable.IdTable, lCols, rCols []int, j joiner) (outOfOrder int, err error) {
	cmp := keyComparatorFor(len(lCols))
	checker := sctx.NewChecker()
	leftRows := newUndefFinder(left, lCols)
	rightRows := newUndefFinder(right, rCols)
	covered := roaring.New()

	match := func(l, r int) error {
		covered.Add(uint32(l))
		return j.tryToMatch(l, r)
	}
	// matchRightUndef pairs the bound left row l with the compatible right
	// rows holding an unbound key.
	matchRightUndef := func(l int) error {
		if rightRows.kind == undefNone {
			return nil
		}
		lrow := left.GetRow(l)
		for i := 0; i < rightRows.undef.len(); i++ {
			r := rightRows.undef.at(i)
			if rightRows.kind == undefArbitrary && !idtable.Compatible(lrow, lCols, right.GetRow(r), rCols) {
				continue
			}
			if err := match(l, r); err != nil {
				return err
			}
		}
		return nil
	}
	finishLeftRow := func(l int) error {
		if err := matchRightUndef(l); err != nil {
			return err
		}
		if !covered.Contains(uint32(l)) {
			return j.onMissMatch(l)
		}
		return nil
	}

	lb, rb := leftRows.bound, rightRows.bound
	i, k := 0, 0
	for i < lb.len() && k < rb.len() {
		failpoint.Inject("mergeJoinLoopError", func(val failpoint.Value) {
			if val.(bool) {
				failpoint.Return(0, errors.New("mock merge join error"))
			}
		})
		if err = checker.Tick(); err != nil {
			return 0, err
		}
		l, r := lb.at(i), rb.at(k)
		c := cmp(left.GetRow(l), lCols, right.GetRow(r), rCols)
		if c < 0 {
			if err = finishLeftRow(l); err != nil {
				return 0, err
			}
			i++
			continue
		}
		if c > 0 {
			k++
			continue
		}
		iEnd := listRunEnd(left, lb, lCols, i, cmp)
		kEnd := listRunEnd(right, rb, rCols, k, cmp)
		for ; i < iEnd; i++ {
			l = lb.at(i)
			for kk := k; kk < kEnd; kk++ {
				if err = match(l, rb.at(kk)); err != nil {
					return 0, err
				}
			}
			if err = finishLeftRow(l); err != nil {
				return 0, err
			}
		}
		k = kEnd
	}
	for ; i < lb.len(); i++ {
		if err = checker.Tick(); err != nil {
			return 0, err
		}
		if err = finishLeftRow(lb.at(i)); err != nil {
			return 0, err
		}
	}

	before := j.result().NumRows()
	for i = 0; i < leftRows.undef.len(); i++ {
		l := leftRows.undef.at(i)
		lrow := left.GetRow(l)
		for r := 0; r < right.NumRows(); r++ {
			if err = checker.Tick(); err != nil {
				return 0, err
			}
			// A single unbound join column is compatible with every row.
			if leftRows.kind == undefArbitrary && !idtable.Compatible(lrow, lCols, right.GetRow(r), rCols) {
				continue
			}
			if err = match(l, r); err != nil {
				return 0, err
			}
		}
		if !covered.Contains(uint32(l)) {
			if err = j.onMissMatch(l); err != nil {
				return 0, err
			}
		}
	}
	return j.result().NumRows() - before, nil
}

// gallopingJoin joins left and right, both sorted on their join columns and
// free of unbound join values, by galloping through the larger side. The
// result has the same order as the merge join.
func gallopingJoin(sctx *sessionctx.Context, left, right *idtable.IdTable, lCols, rCols []int, j joiner) error {
	cmp := keyComparatorFor(len(lCols))
	checker := sctx.NewChecker()
	smallIsLeft := left.NumRows() <= right.NumRows()
	small, large := left, right
	sCols, lgCols := lCols, rCols
	if !smallIsLeft {
		small, large = right, left
		sCols, lgCols = rCols, lCols
	}
	pos := 0
	for s := 0; s < small.NumRows() && pos < large.NumRows(); {
		if err := checker.Tick(); err != nil {
			return err
		}
		sEnd := runEnd(small, sCols, s, cmp)
		target := small.GetRow(s)
		pos = gallop(large, lgCols, pos, target, sCols, cmp)
		if pos == large.NumRows() {
			break
		}
		if cmp(large.GetRow(pos), lgCols, target, sCols) != 0 {
			s = sEnd
			continue
		}
		lgEnd := runEnd(large, lgCols, pos, cmp)
		lBegin, lEnd, rBegin, rEnd := s, sEnd, pos, lgEnd
		if !smallIsLeft {
			lBegin, lEnd, rBegin, rEnd = pos, lgEnd, s, sEnd
		}
		for l := lBegin; l < lEnd; l++ {
			for r := rBegin; r < rEnd; r++ {
				if err := j.tryToMatch(l, r); err != nil {
					return err
				}
			}
		}
		s, pos = sEnd, lgEnd
	}
	return nil
}
