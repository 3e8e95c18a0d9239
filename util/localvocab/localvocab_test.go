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

package localvocab

import (
	"testing"

	"github.com/ad-freiburg/qlever-sub009/types"
	. "github.com/pingcap/check"
)

func TestT(t *testing.T) {
	TestingT(t)
}

var _ = Suite(&testLocalVocabSuite{})

type testLocalVocabSuite struct{}

func mustAdd(c *C, lv *LocalVocab, word string) types.Id {
	id, err := lv.GetIndexAndAddIfNotContained(word)
	c.Assert(err, IsNil)
	return id
}

func mustWord(c *C, lv *LocalVocab, id types.Id) string {
	w, err := lv.Word(id)
	c.Assert(err, IsNil)
	return w
}

func (s *testLocalVocabSuite) TestAddAndLookup(c *C) {
	lv := New()
	c.Assert(lv.Empty(), IsTrue)
	c.Assert(lv.NumSets(), Equals, 0)
	a := mustAdd(c, lv, "a")
	b := mustAdd(c, lv, "b")
	c.Assert(a.Datatype(), Equals, types.KindLocalVocabIndex)
	c.Assert(a == b, IsFalse)
	c.Assert(mustAdd(c, lv, "a"), Equals, a)
	c.Assert(lv.Size(), Equals, 2)
	c.Assert(mustWord(c, lv, b), Equals, "b")

	id, ok := lv.GetIndexOrNone("b")
	c.Assert(ok, IsTrue)
	c.Assert(id, Equals, b)
	_, ok = lv.GetIndexOrNone("zzz")
	c.Assert(ok, IsFalse)

	_, err := lv.Word(types.NewInt(1))
	c.Assert(err, NotNil)
	_, err = lv.Word(types.NewLocalVocabIndex(types.MaxLocalVocabSetID, 0))
	c.Assert(err, NotNil)
}

func (s *testLocalVocabSuite) TestMergeSharesSets(c *C) {
	l1, l2 := New(), New()
	x := mustAdd(c, l1, "x")
	y := mustAdd(c, l2, "y")
	mustAdd(c, l2, "x")

	m := Merge(l1, l2)
	c.Assert(m.NumSets(), Equals, 2)
	// no deduplication across sets
	c.Assert(m.Size(), Equals, 3)
	c.Assert(mustWord(c, m, x), Equals, "x")
	c.Assert(mustWord(c, m, y), Equals, "y")
	c.Assert(l1.IsShared(), IsTrue)
	c.Assert(l2.IsShared(), IsTrue)

	// merging the same sets again is a no-op
	m.MergeWith(l1, l2, m, nil)
	c.Assert(m.NumSets(), Equals, 2)
}

func (s *testLocalVocabSuite) TestCloneOnWrite(c *C) {
	lv := New()
	a := mustAdd(c, lv, "a")
	clone := lv.Clone()
	c.Assert(lv.IsShared(), IsTrue)
	c.Assert(mustWord(c, clone, a), Equals, "a")

	// an existing word needs no write
	c.Assert(mustAdd(c, lv, "a"), Equals, a)
	c.Assert(lv.NumSets(), Equals, 1)

	b := mustAdd(c, lv, "b")
	c.Assert(lv.IsShared(), IsFalse)
	c.Assert(lv.NumSets(), Equals, 2)
	setA, _ := a.LocalVocabIndex()
	setB, _ := b.LocalVocabIndex()
	c.Assert(setA == setB, IsFalse)
	// the clone does not see words added later
	_, err := clone.Word(b)
	c.Assert(err, NotNil)
	c.Assert(clone.Size(), Equals, 1)

	cb := mustAdd(c, clone, "b")
	c.Assert(cb == b, IsFalse)
	c.Assert(mustWord(c, clone, cb), Equals, "b")
	c.Assert(mustWord(c, lv, a), Equals, "a")
}

func (s *testLocalVocabSuite) TestLifetimeExtender(c *C) {
	lv := New()
	mustAdd(c, lv, "a")
	e := lv.LifetimeExtender()
	c.Assert(e.NumSets(), Equals, 1)
	c.Assert(lv.IsShared(), IsTrue)
	mustAdd(c, lv, "b")
	c.Assert(lv.NumSets(), Equals, 2)
}
