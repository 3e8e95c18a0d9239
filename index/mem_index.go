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

package index

import (
	"sort"

	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/cznic/sortutil"
	"github.com/pingcap/errors"
)

// Triple is a subject, predicate, object triple.
type Triple [3]types.Id

// keySlice holds triples permuted into the key order of one permutation.
type keySlice []Triple

func (s keySlice) Len() int      { return len(s) }
func (s keySlice) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s keySlice) Less(i, j int) bool {
	for c := 0; c < 3; c++ {
		if cmp := s[i][c].Compare(s[j][c]); cmp != 0 {
			return cmp < 0
		}
	}
	return false
}

// MemIndex is an Index over an in-memory set of triples. Duplicate triples
// are stored once.
type MemIndex struct {
	perms [len(permOrders)]keySlice
}

// NewMemIndex builds the six permutations of triples.
func NewMemIndex(triples []Triple) *MemIndex {
	idx := &MemIndex{}
	for _, p := range AllPermutations {
		order := p.KeyOrder()
		keys := make(keySlice, len(triples))
		for i, t := range triples {
			keys[i] = Triple{t[order[0]], t[order[1]], t[order[2]]}
		}
		sort.Sort(keys)
		n := sortutil.Dedupe(keys)
		idx.perms[p] = keys[:n]
	}
	return idx
}

// NumTriples implements Index interface.
func (idx *MemIndex) NumTriples() int64 {
	return int64(len(idx.perms[SPO]))
}

// NumDistinctCol0 implements Index interface.
func (idx *MemIndex) NumDistinctCol0(perm Permutation) int64 {
	keys := idx.perms[perm]
	var n int64
	for i := range keys {
		if i == 0 || keys[i][0] != keys[i-1][0] {
			n++
		}
	}
	return n
}

// prefixRange returns the range of keys of perm starting with prefix.
func (idx *MemIndex) prefixRange(perm Permutation, prefix []types.Id) (int, int) {
	keys := idx.perms[perm]
	cmpPrefix := func(k Triple) int {
		for c, id := range prefix {
			if cmp := k[c].Compare(id); cmp != 0 {
				return cmp
			}
		}
		return 0
	}
	begin := sort.Search(len(keys), func(i int) bool { return cmpPrefix(keys[i]) >= 0 })
	end := sort.Search(len(keys), func(i int) bool { return cmpPrefix(keys[i]) > 0 })
	return begin, end
}

// Cardinality implements Index interface.
func (idx *MemIndex) Cardinality(id types.Id, perm Permutation) int64 {
	begin, end := idx.prefixRange(perm, []types.Id{id})
	return int64(end - begin)
}

// ScanSize implements Index interface.
func (idx *MemIndex) ScanSize(perm Permutation, prefix []types.Id) int64 {
	begin, end := idx.prefixRange(perm, prefix)
	return int64(end - begin)
}

// Scan implements Index interface.
func (idx *MemIndex) Scan(sctx *sessionctx.Context, perm Permutation, prefix []types.Id) (*idtable.IdTable, error) {
	if len(prefix) > 3 {
		return nil, errors.Errorf("scan prefix of length %d", len(prefix))
	}
	begin, end := idx.prefixRange(perm, prefix)
	width := 3 - len(prefix)
	t := idtable.New(width, sctx.MemTracker())
	if err := t.Reserve(end - begin); err != nil {
		return nil, errors.Trace(err)
	}
	checker := sctx.NewChecker()
	for _, key := range idx.perms[perm][begin:end] {
		if err := checker.Tick(); err != nil {
			t.Close()
			return nil, err
		}
		if err := t.AppendRow(key[len(prefix):]...); err != nil {
			t.Close()
			return nil, errors.Trace(err)
		}
	}
	return t, nil
}

// DistinctCol0IdsAndCounts implements Index interface.
func (idx *MemIndex) DistinctCol0IdsAndCounts(sctx *sessionctx.Context, perm Permutation, limit LimitOffset) (*idtable.IdTable, error) {
	return distinctIdsAndCounts(sctx, idx.perms[perm], 0, limit)
}

// DistinctCol1IdsAndCounts implements Index interface.
func (idx *MemIndex) DistinctCol1IdsAndCounts(sctx *sessionctx.Context, col0 types.Id, perm Permutation, limit LimitOffset) (*idtable.IdTable, error) {
	begin, end := idx.prefixRange(perm, []types.Id{col0})
	return distinctIdsAndCounts(sctx, idx.perms[perm][begin:end], 1, limit)
}

// distinctIdsAndCounts counts the runs of equal values in column col of the
// sorted keys.
func distinctIdsAndCounts(sctx *sessionctx.Context, keys keySlice, col int, limit LimitOffset) (*idtable.IdTable, error) {
	t := idtable.New(2, sctx.MemTracker())
	checker := sctx.NewChecker()
	var skipped int64
	for i := 0; i < len(keys); {
		if limit.Limit >= 0 && int64(t.NumRows()) >= limit.Limit {
			break
		}
		if err := checker.Tick(); err != nil {
			t.Close()
			return nil, err
		}
		j := i + 1
		for j < len(keys) && keys[j][col] == keys[i][col] {
			j++
		}
		if skipped < limit.Offset {
			skipped++
		} else if err := t.AppendRow(keys[i][col], types.NewInt(int64(j-i))); err != nil {
			t.Close()
			return nil, errors.Trace(err)
		}
		i = j
	}
	return t, nil
}
