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

package statistics

import (
	"hash"

	"github.com/ad-freiburg/qlever-sub009/util/codec"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/pingcap/errors"
	"github.com/spaolacci/murmur3"
)

// Chao1Estimator estimates the number of distinct values of a population from
// a sample: D + f1^2 / (2 f2), where D is the number of distinct values in the
// sample, f1 the number of values seen once and f2 the number of values seen
// twice. If f2 is 0 the bias corrected form D + f1 (f1 - 1) / 2 is used.
type Chao1Estimator struct {
	counts   map[uint64]int
	hashFunc hash.Hash64
	buf      []byte
}

// NewChao1Estimator creates an empty estimator.
func NewChao1Estimator() *Chao1Estimator {
	return &Chao1Estimator{
		counts:   make(map[uint64]int),
		hashFunc: murmur3.New64(),
	}
}

// InsertKey records one observation of key.
func (e *Chao1Estimator) InsertKey(key []byte) error {
	e.hashFunc.Reset()
	if _, err := e.hashFunc.Write(key); err != nil {
		return errors.Trace(err)
	}
	e.counts[e.hashFunc.Sum64()]++
	return nil
}

// InsertRow records the values of cols of row as one observation.
func (e *Chao1Estimator) InsertRow(row idtable.Row, cols []int) error {
	e.buf = codec.EncodeRowKey(e.buf[:0], row, cols)
	return e.InsertKey(e.buf)
}

// Distinct returns the number of distinct keys observed.
func (e *Chao1Estimator) Distinct() int {
	return len(e.counts)
}

// Estimate returns the Chao1 estimate of the number of distinct keys.
func (e *Chao1Estimator) Estimate() float64 {
	var f1, f2 float64
	for _, cnt := range e.counts {
		switch cnt {
		case 1:
			f1++
		case 2:
			f2++
		}
	}
	d := float64(len(e.counts))
	if f2 > 0 {
		return d + f1*f1/(2*f2)
	}
	return d + f1*(f1-1)/2
}

// EstimateGroupRatio samples sampleSize rows of t and returns the estimated
// ratio of distinct keys over cols to the number of rows of t, capped at 1.
func EstimateGroupRatio(t *idtable.IdTable, cols []int, sampleSize int, seed int64) (float64, error) {
	numRows := t.NumRows()
	if numRows == 0 {
		return 0, nil
	}
	e := NewChao1Estimator()
	for _, idx := range SampleRows(numRows, sampleSize, seed) {
		if err := e.InsertRow(t.GetRow(idx), cols); err != nil {
			return 0, err
		}
	}
	ratio := e.Estimate() / float64(numRows)
	if ratio > 1 {
		ratio = 1
	}
	return ratio, nil
}
