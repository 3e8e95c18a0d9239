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
	"math"

	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/stringutil"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
)

var lastSetID atomic.Uint32

// wordSet is an append-only list of distinct words. Once it has been handed
// to another LocalVocab it is never written again.
type wordSet struct {
	id    uint32
	words []string
	index map[string]uint32
}

func newWordSet() (*wordSet, error) {
	id := lastSetID.Inc()
	if id > types.MaxLocalVocabSetID {
		return nil, errors.Errorf("local vocab word set ids exhausted")
	}
	return &wordSet{id: id, index: make(map[string]uint32)}, nil
}

func (s *wordSet) size() int {
	if s == nil {
		return 0
	}
	return len(s.words)
}

// LocalVocab holds the strings created while executing a query, for example
// by GROUP_CONCAT. It is an arena of word sets: one primary set that receives
// new words and any number of read-only sets shared with other LocalVocabs.
//
// Ids handed out by a LocalVocab stay valid as long as any LocalVocab
// referencing their word set is alive. Merging and cloning never copy words.
//
// A LocalVocab is not safe for concurrent use.
type LocalVocab struct {
	primary *wordSet
	// primaryShared is set once the primary set is reachable from another
	// LocalVocab. The next write then starts a new primary set.
	primaryShared bool
	others        []*wordSet
	byID          map[uint32]*wordSet
}

// New creates an empty LocalVocab.
func New() *LocalVocab {
	return &LocalVocab{byID: make(map[uint32]*wordSet)}
}

// GetIndexAndAddIfNotContained returns the Id of word, adding it to the
// primary set if it is not already there.
func (lv *LocalVocab) GetIndexAndAddIfNotContained(word string) (types.Id, error) {
	if lv.primary != nil {
		if off, ok := lv.primary.index[word]; ok {
			return types.NewLocalVocabIndex(lv.primary.id, off), nil
		}
	}
	if lv.primary == nil || lv.primaryShared {
		if err := lv.startNewPrimary(); err != nil {
			return types.Undef, err
		}
	}
	if uint64(len(lv.primary.words)) >= math.MaxUint32 {
		return types.Undef, errors.Errorf("local vocab word set %d is full", lv.primary.id)
	}
	off := uint32(len(lv.primary.words))
	word = stringutil.Copy(word)
	lv.primary.words = append(lv.primary.words, word)
	lv.primary.index[word] = off
	return types.NewLocalVocabIndex(lv.primary.id, off), nil
}

// startNewPrimary freezes the current primary set into the read-only sets
// and installs an empty one.
func (lv *LocalVocab) startNewPrimary() error {
	s, err := newWordSet()
	if err != nil {
		return err
	}
	if lv.primary != nil {
		lv.others = append(lv.others, lv.primary)
	}
	lv.primary = s
	lv.primaryShared = false
	lv.byID[s.id] = s
	return nil
}

// GetIndexOrNone returns the Id of word if the primary set contains it.
func (lv *LocalVocab) GetIndexOrNone(word string) (types.Id, bool) {
	if lv.primary == nil {
		return types.Undef, false
	}
	off, ok := lv.primary.index[word]
	if !ok {
		return types.Undef, false
	}
	return types.NewLocalVocabIndex(lv.primary.id, off), true
}

// Word returns the word id stands for. id must be a LocalVocabIndex whose
// word set is reachable from lv.
func (lv *LocalVocab) Word(id types.Id) (string, error) {
	if id.Datatype() != types.KindLocalVocabIndex {
		return "", errors.Errorf("%v is not a local vocab index", id)
	}
	setID, off := id.LocalVocabIndex()
	s, ok := lv.byID[setID]
	if !ok || int(off) >= len(s.words) {
		return "", errors.Errorf("%v is not contained in the local vocab", id)
	}
	return s.words[off], nil
}

// Size returns the number of words over all word sets.
func (lv *LocalVocab) Size() int {
	n := lv.primary.size()
	for _, s := range lv.others {
		n += s.size()
	}
	return n
}

// Empty reports whether the vocab holds no words.
func (lv *LocalVocab) Empty() bool {
	return lv.Size() == 0
}

// NumSets returns the number of word sets, the primary set included.
func (lv *LocalVocab) NumSets() int {
	if lv.primary == nil {
		return len(lv.others)
	}
	return len(lv.others) + 1
}

// IsShared reports whether the primary set is referenced by another vocab.
func (lv *LocalVocab) IsShared() bool {
	return lv.primaryShared
}

func (lv *LocalVocab) addSet(s *wordSet) {
	if s == nil || s.size() == 0 {
		return
	}
	if _, ok := lv.byID[s.id]; ok {
		return
	}
	lv.others = append(lv.others, s)
	lv.byID[s.id] = s
}

// MergeWith makes all words of others resolvable from lv. The word sets are
// shared, not copied, and words are not deduplicated across sets.
func (lv *LocalVocab) MergeWith(others ...*LocalVocab) {
	for _, o := range others {
		if o == nil || o == lv {
			continue
		}
		if o.primary != nil {
			o.primaryShared = true
			lv.addSet(o.primary)
		}
		for _, s := range o.others {
			lv.addSet(s)
		}
	}
}

// Clone returns a vocab that resolves all words of lv and writes to a fresh
// primary set.
func (lv *LocalVocab) Clone() *LocalVocab {
	c := New()
	c.MergeWith(lv)
	return c
}

// Merge creates a new vocab that resolves the words of all vocabs.
func Merge(vocabs ...*LocalVocab) *LocalVocab {
	lv := New()
	lv.MergeWith(vocabs...)
	return lv
}

// LifetimeExtender keeps word sets alive independent of any LocalVocab.
type LifetimeExtender struct {
	sets []*wordSet
}

// NumSets returns the number of word sets kept alive.
func (e *LifetimeExtender) NumSets() int {
	return len(e.sets)
}

// LifetimeExtender returns a value holding references to all word sets of lv.
// The primary set becomes shared.
func (lv *LocalVocab) LifetimeExtender() *LifetimeExtender {
	e := &LifetimeExtender{sets: make([]*wordSet, 0, lv.NumSets())}
	e.sets = append(e.sets, lv.others...)
	if lv.primary != nil {
		lv.primaryShared = true
		e.sets = append(e.sets, lv.primary)
	}
	return e
}
