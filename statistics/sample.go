// Copyright 2017 PingCAP, Inc.
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

package statistics

import (
	"math/rand"
	"sort"
)

// ReservoirSampler draws a uniform sample of row indexes from a stream of
// rows of unknown length.
type ReservoirSampler struct {
	MaxSampleSize int
	Samples       []int
	seenValues    int
	rng           *rand.Rand
}

// NewReservoirSampler creates a sampler keeping at most maxSampleSize rows.
func NewReservoirSampler(maxSampleSize int, seed int64) *ReservoirSampler {
	return &ReservoirSampler{
		MaxSampleSize: maxSampleSize,
		Samples:       make([]int, 0, maxSampleSize),
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Collect offers the row with index rowIdx to the sample.
func (s *ReservoirSampler) Collect(rowIdx int) {
	s.seenValues++
	if len(s.Samples) < s.MaxSampleSize {
		s.Samples = append(s.Samples, rowIdx)
		return
	}
	if j := s.rng.Intn(s.seenValues); j < s.MaxSampleSize {
		s.Samples[j] = rowIdx
	}
}

// SeenValues returns the number of rows offered so far.
func (s *ReservoirSampler) SeenValues() int {
	return s.seenValues
}

// SampleRows returns min(k, numRows) distinct row indexes of [0, numRows)
// in ascending order.
func SampleRows(numRows, k int, seed int64) []int {
	s := NewReservoirSampler(k, seed)
	for i := 0; i < numRows; i++ {
		s.Collect(i)
	}
	sort.Ints(s.Samples)
	return s.Samples
}
