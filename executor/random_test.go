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
	"math/rand"
	"sort"

	"github.com/ad-freiburg/qlever-sub009/expression"
	"github.com/ad-freiburg/qlever-sub009/metrics"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/cznic/mathutil"
	. "github.com/pingcap/check"
)

var _ = Suite(&testRandomSuite{})

// testRandomSuite compares the join and GROUP BY strategies with a nested
// loop reference on seeded random inputs.
type testRandomSuite struct{}

const randomRounds = 60

func randomRows(r *rand.Rand, n, width, domain int, undefPercent int) [][]types.Id {
	rows := make([][]types.Id, n)
	for k := range rows {
		row := make([]types.Id, width)
		for c := range row {
			if r.Intn(100) < undefPercent {
				row[c] = u
			} else {
				row[c] = i(int64(r.Intn(domain)))
			}
		}
		rows[k] = row
	}
	return rows
}

// nestedLoopJoin joins every compatible pair of left and right rows. The
// result has the left columns followed by the non join columns of right.
// Left rows without a partner are padded with NoMatch if optional is set.
func nestedLoopJoin(left, right [][]types.Id, rightWidth int, joinCols [][2]int, optional bool) [][]types.Id {
	isJoinCol := make(map[int]bool, len(joinCols))
	for _, jc := range joinCols {
		isJoinCol[jc[1]] = true
	}
	var out [][]types.Id
	for _, l := range left {
		matched := false
		for _, r := range right {
			row := append([]types.Id(nil), l...)
			compatible := true
			for _, jc := range joinCols {
				lv, rv := l[jc[0]], r[jc[1]]
				switch {
				case rv.IsUnbound():
				case lv.IsUnbound():
					row[jc[0]] = rv
				case lv != rv:
					compatible = false
				}
			}
			if !compatible {
				continue
			}
			matched = true
			for c, v := range r {
				if !isJoinCol[c] {
					row = append(row, v)
				}
			}
			out = append(out, row)
		}
		if optional && !matched {
			row := append([]types.Id(nil), l...)
			for c := 0; c < rightWidth; c++ {
				if !isJoinCol[c] {
					row = append(row, nm)
				}
			}
			out = append(out, row)
		}
	}
	if out == nil {
		out = [][]types.Id{}
	}
	return sortRows(out)
}

func rowsSortedOn(rows [][]types.Id, cols []int) bool {
	for k := 1; k < len(rows); k++ {
		for _, col := range cols {
			cmp := rows[k-1][col].Compare(rows[k][col])
			if cmp < 0 {
				break
			}
			if cmp > 0 {
				return false
			}
		}
	}
	return true
}

// randomJoinInput returns the variables and rows of a random join. The join
// variables come first on the left and last, in reverse order, on the right.
func randomJoinInput(r *rand.Rand, undefPercent int) (lVars, rVars []string, left, right [][]types.Id, joinCols [][2]int) {
	numJoin := 1 + r.Intn(2)
	lExtra, rExtra := r.Intn(2)+1, r.Intn(2)+1
	for k := 0; k < numJoin; k++ {
		lVars = append(lVars, "?k"+string(rune('0'+k)))
	}
	for k := 0; k < lExtra; k++ {
		lVars = append(lVars, "?l"+string(rune('0'+k)))
	}
	for k := 0; k < rExtra; k++ {
		rVars = append(rVars, "?r"+string(rune('0'+k)))
	}
	for k := numJoin - 1; k >= 0; k-- {
		rVars = append(rVars, lVars[k])
	}
	for k := 0; k < numJoin; k++ {
		joinCols = append(joinCols, [2]int{k, rExtra + numJoin - 1 - k})
	}
	left = randomRows(r, r.Intn(25), len(lVars), 5, undefPercent)
	right = randomRows(r, r.Intn(25), len(rVars), 5, undefPercent)
	return
}

func (s *testRandomSuite) TestJoinsMatchNestedLoop(c *C) {
	withDispatchModes(func() {
		r := rand.New(rand.NewSource(20240601))
		for round := 0; round < randomRounds; round++ {
			lVars, rVars, left, right, joinCols := randomJoinInput(r, 15)
			comment := Commentf("round %d left %v right %v join %v", round, left, right, joinCols)
			lCols, _ := splitJoinColumns(joinCols)
			sctx := newTestContext()

			expected := nestedLoopJoin(left, right, len(rVars), joinCols, false)
			merge, err := NewJoinOp(newValues(c, lVars, left...), newValues(c, rVars, right...), joinCols, false)
			c.Assert(err, IsNil)
			rows := computeRows(c, sctx, merge)
			c.Assert(rowsSortedOn(rows, lCols), IsTrue, comment)
			c.Assert(sortRows(rows), DeepEquals, expected, comment)

			hash, err := NewHashJoinOp(newValues(c, lVars, left...), newValues(c, rVars, right...), joinCols, false)
			c.Assert(err, IsNil)
			c.Assert(sortRows(computeRows(c, sctx, hash)), DeepEquals, expected, comment)

			expected = nestedLoopJoin(left, right, len(rVars), joinCols, true)
			optional, err := NewOptionalJoinOp(newValues(c, lVars, left...), newValues(c, rVars, right...), joinCols)
			c.Assert(err, IsNil)
			rows = computeRows(c, sctx, optional)
			c.Assert(rowsSortedOn(rows, lCols), IsTrue, comment)
			c.Assert(sortRows(rows), DeepEquals, expected, comment)
		}
	})
}

func (s *testRandomSuite) TestGallopingMatchesMerge(c *C) {
	withDispatchModes(func() {
		r := rand.New(rand.NewSource(7))
		for round := 0; round < randomRounds; round++ {
			lVars, rVars, left, right, joinCols := randomJoinInput(r, 0)
			// Make one side much larger than the other.
			big := randomRows(r, 40+r.Intn(40), len(rVars), 8, 0)
			if round%2 == 0 {
				right = big
			} else {
				big = randomRows(r, 40+r.Intn(40), len(lVars), 8, 0)
				left = big
			}
			comment := Commentf("round %d", round)
			lCols, rCols := splitJoinColumns(joinCols)
			sctx := newTestContext()

			lt, rt := newTable(c, len(lVars), left...), newTable(c, len(rVars), right...)
			c.Assert(lt.SortOn(lCols), IsNil)
			c.Assert(rt.SortOn(rCols), IsNil)
			merged, err := MergeJoin(sctx, lt, rt, joinCols, false, nil)
			c.Assert(err, IsNil)
			galloped, err := GallopingJoin(sctx, lt, rt, joinCols, false, nil)
			c.Assert(err, IsNil)
			c.Assert(galloped.IsSortedOn(lCols), IsTrue, comment)
			c.Assert(sortRows(galloped.Rows()), DeepEquals, sortRows(merged.Rows()), comment)
			c.Assert(sortRows(merged.Rows()), DeepEquals, nestedLoopJoin(left, right, len(rVars), joinCols, false), comment)

			sctx.GetSessionVars().GallopThreshold = 1
			op, err := NewJoinOp(newValues(c, lVars, left...), newValues(c, rVars, right...), joinCols, false)
			c.Assert(err, IsNil)
			rows := computeRows(c, sctx, op)
			if small := mathutil.Min(len(left), len(right)); small > 0 && mathutil.Max(len(left), len(right))/small > 1 {
				c.Assert(op.strategy, Equals, metrics.LblGalloping, comment)
			}
			c.Assert(sortRows(rows), DeepEquals, sortRows(merged.Rows()), comment)
		}
	})
}

type randomGroup struct {
	g        types.Id
	count    int64
	sum      int64
	min, max types.Id
	undef    bool
}

// nestedLoopGroupBy computes COUNT, SUM, MIN, MAX and AVG of ?x per ?g.
func nestedLoopGroupBy(rows [][]types.Id) [][]types.Id {
	groups := make(map[types.Id]*randomGroup)
	var keys []types.Id
	for _, row := range rows {
		g, x := row[0], row[1]
		grp, ok := groups[g]
		if !ok {
			grp = &randomGroup{g: g, min: u, max: u}
			groups[g] = grp
			keys = append(keys, g)
		}
		if x.IsUnbound() {
			grp.undef = true
			continue
		}
		grp.count++
		grp.sum += x.Int()
		if grp.min.IsUnbound() || x.Compare(grp.min) < 0 {
			grp.min = x
		}
		if grp.max.IsUnbound() || x.Compare(grp.max) > 0 {
			grp.max = x
		}
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].Compare(keys[b]) < 0 })
	out := make([][]types.Id, 0, len(keys))
	for _, g := range keys {
		grp := groups[g]
		sum, lo, avg := i(grp.sum), grp.min, types.NewDouble(float64(grp.sum)/float64(grp.count))
		if grp.undef {
			sum, lo, avg = u, u, u
		}
		out = append(out, []types.Id{g, i(grp.count), sum, lo, grp.max, avg})
	}
	return out
}

func randomGroupByAliases() []Alias {
	return []Alias{
		{Expr: aggOf(expression.AggCount, "?x"), Target: "?c"},
		{Expr: aggOf(expression.AggSum, "?x"), Target: "?s"},
		{Expr: aggOf(expression.AggMin, "?x"), Target: "?min"},
		{Expr: aggOf(expression.AggMax, "?x"), Target: "?max"},
		{Expr: aggOf(expression.AggAvg, "?x"), Target: "?avg"},
	}
}

func (s *testRandomSuite) TestGroupByStrategiesMatchNestedLoop(c *C) {
	withDispatchModes(func() {
		r := rand.New(rand.NewSource(42))
		vars := []string{"?g", "?x"}
		for round := 0; round < randomRounds; round++ {
			rows := randomRows(r, 1+r.Intn(40), 2, 6, 0)
			for _, row := range rows {
				if r.Intn(100) < 10 {
					row[1] = u
				}
			}
			expected := nestedLoopGroupBy(rows)
			comment := Commentf("round %d rows %v", round, rows)
			sctx := newTestContext()

			op, err := NewGroupByOp([]string{"?g"}, randomGroupByAliases(), newValues(c, vars, rows...))
			c.Assert(err, IsNil)
			c.Assert(computeRows(c, sctx, op), DeepEquals, expected, comment)
			c.Assert(op.strategy, Equals, metrics.LblStreamingEager)

			// Random chunk boundaries split groups and leave empty chunks.
			sorted := sortRows(append([][]types.Id(nil), rows...))
			var chunks []*IdTableVocabPair
			for pos := 0; pos < len(sorted); {
				end := mathutil.Min(pos+r.Intn(4), len(sorted))
				chunks = append(chunks, chunkOf(c, 2, sorted[pos:end]...))
				pos = end
			}
			op, err = NewGroupByOp([]string{"?g"}, randomGroupByAliases(), NewLazyValuesOp(chunks, vars, []int{0}))
			c.Assert(err, IsNil)
			c.Assert(computeRows(c, sctx, op), DeepEquals, expected, comment)
			c.Assert(op.strategy, Equals, metrics.LblStreamingLazy)

			gb := &sctx.GetSessionVars().GroupBy
			gb.HashMapEnabled = true
			gb.SampleEnabled = false
			gb.HashMapBlockSize = 1 + r.Intn(5)
			op, err = NewGroupByOp([]string{"?g"}, randomGroupByAliases(), NewSortOp(newValues(c, vars, rows...), []int{0}))
			c.Assert(err, IsNil)
			c.Assert(computeRows(c, sctx, op), DeepEquals, expected, comment)
			c.Assert(op.strategy, Equals, metrics.LblHashMap)
		}
	})
}
