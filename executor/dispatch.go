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
	"github.com/ad-freiburg/qlever-sub009/util/codec"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/ad-freiburg/qlever-sub009/util/mvmap"
	"github.com/pingcap/errors"
)

// ForceGenericDispatch makes the join and GROUP BY engines use the width
// independent implementations for every key width. Tests set it to check
// that both paths agree.
var ForceGenericDispatch = false

// maxSpecializedWidth is the largest key width with a specialized
// implementation.
const maxSpecializedWidth = 3

// keyComparator compares the key columns lCols of l with rCols of r.
type keyComparator func(l idtable.Row, lCols []int, r idtable.Row, rCols []int) int

var keyComparators = [maxSpecializedWidth + 1]keyComparator{
	func(l idtable.Row, lCols []int, r idtable.Row, rCols []int) int { return 0 },
	compareKey1,
	compareKey2,
	compareKey3,
}

func compareKey1(l idtable.Row, lCols []int, r idtable.Row, rCols []int) int {
	return l.At(lCols[0]).Compare(r.At(rCols[0]))
}

func compareKey2(l idtable.Row, lCols []int, r idtable.Row, rCols []int) int {
	if cmp := l.At(lCols[0]).Compare(r.At(rCols[0])); cmp != 0 {
		return cmp
	}
	return l.At(lCols[1]).Compare(r.At(rCols[1]))
}

func compareKey3(l idtable.Row, lCols []int, r idtable.Row, rCols []int) int {
	if cmp := l.At(lCols[0]).Compare(r.At(rCols[0])); cmp != 0 {
		return cmp
	}
	if cmp := l.At(lCols[1]).Compare(r.At(rCols[1])); cmp != 0 {
		return cmp
	}
	return l.At(lCols[2]).Compare(r.At(rCols[2]))
}

// keyComparatorFor returns the comparator for keys of width columns.
func keyComparatorFor(width int) keyComparator {
	if ForceGenericDispatch || width > maxSpecializedWidth {
		return idtable.CompareRows
	}
	return keyComparators[width]
}

// groupKeyMap assigns dense group ids, in order of first appearance, to the
// keys of rows.
type groupKeyMap interface {
	// getOrInsert returns the group id of the key cols of row.
	getOrInsert(row idtable.Row, cols []int) (int, error)
	len() int
	close()
}

// fixedKeyEntrySize estimates the bytes used by one entry of a Go map with
// a key of width Ids.
func fixedKeyEntrySize(width int) int64 {
	return int64(width)*8 + 16
}

type keyMapBase struct {
	tracker *memory.Tracker
	charged int64
}

func (m *keyMapBase) consume(bytes int64) error {
	if m.tracker != nil {
		if err := m.tracker.TryConsume(bytes); err != nil {
			return errors.Trace(err)
		}
	}
	m.charged += bytes
	return nil
}

func (m *keyMapBase) close() {
	if m.tracker != nil {
		m.tracker.Release(m.charged)
	}
	m.charged = 0
}

type keyMap0 struct {
	keyMapBase
	n int
}

func (m *keyMap0) getOrInsert(row idtable.Row, cols []int) (int, error) {
	m.n = 1
	return 0, nil
}

func (m *keyMap0) len() int { return m.n }

type keyMap1 struct {
	keyMapBase
	m map[types.Id]int
}

func (m *keyMap1) getOrInsert(row idtable.Row, cols []int) (int, error) {
	key := row.At(cols[0])
	if id, ok := m.m[key]; ok {
		return id, nil
	}
	if err := m.consume(fixedKeyEntrySize(1)); err != nil {
		return 0, err
	}
	id := len(m.m)
	m.m[key] = id
	return id, nil
}

func (m *keyMap1) len() int { return len(m.m) }

type keyMap2 struct {
	keyMapBase
	m map[[2]types.Id]int
}

func (m *keyMap2) getOrInsert(row idtable.Row, cols []int) (int, error) {
	key := [2]types.Id{row.At(cols[0]), row.At(cols[1])}
	if id, ok := m.m[key]; ok {
		return id, nil
	}
	if err := m.consume(fixedKeyEntrySize(2)); err != nil {
		return 0, err
	}
	id := len(m.m)
	m.m[key] = id
	return id, nil
}

func (m *keyMap2) len() int { return len(m.m) }

type keyMap3 struct {
	keyMapBase
	m map[[3]types.Id]int
}

func (m *keyMap3) getOrInsert(row idtable.Row, cols []int) (int, error) {
	key := [3]types.Id{row.At(cols[0]), row.At(cols[1]), row.At(cols[2])}
	if id, ok := m.m[key]; ok {
		return id, nil
	}
	if err := m.consume(fixedKeyEntrySize(3)); err != nil {
		return 0, err
	}
	id := len(m.m)
	m.m[key] = id
	return id, nil
}

func (m *keyMap3) len() int { return len(m.m) }

// genericKeyMap stores encoded keys of any width in an MVMap.
type genericKeyMap struct {
	keyMapBase
	m      *mvmap.MVMap
	n      int
	keyBuf []byte
	valBuf []byte
}

func (m *genericKeyMap) getOrInsert(row idtable.Row, cols []int) (int, error) {
	m.keyBuf = codec.EncodeRowKey(m.keyBuf[:0], row, cols)
	if val, ok := m.m.GetLast(m.keyBuf); ok {
		id, err := codec.DecodeRowIdx(val)
		return id, errors.Trace(err)
	}
	id := m.n
	m.valBuf = codec.EncodeRowIdx(m.valBuf[:0], id)
	if err := m.consume(m.m.Put(m.keyBuf, m.valBuf)); err != nil {
		return 0, err
	}
	m.n++
	return id, nil
}

func (m *genericKeyMap) len() int { return m.n }

func newGenericKeyMap(tracker *memory.Tracker) (*genericKeyMap, error) {
	m := &genericKeyMap{keyMapBase: keyMapBase{tracker: tracker}, m: mvmap.NewMVMap()}
	if err := m.consume(m.m.BytesUsed()); err != nil {
		return nil, err
	}
	return m, nil
}

// newGroupKeyMap returns the group key map for keys of width columns.
func newGroupKeyMap(width int, tracker *memory.Tracker) (groupKeyMap, error) {
	if ForceGenericDispatch || width > maxSpecializedWidth {
		return newGenericKeyMap(tracker)
	}
	base := keyMapBase{tracker: tracker}
	switch width {
	case 0:
		return &keyMap0{keyMapBase: base}, nil
	case 1:
		return &keyMap1{keyMapBase: base, m: make(map[types.Id]int)}, nil
	case 2:
		return &keyMap2{keyMapBase: base, m: make(map[[2]types.Id]int)}, nil
	}
	return &keyMap3{keyMapBase: base, m: make(map[[3]types.Id]int)}, nil
}
