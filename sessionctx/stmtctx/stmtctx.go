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

package stmtctx

import (
	"sync"
	"time"

	"github.com/ad-freiburg/qlever-sub009/util/memory"
)

// RuntimeStat records how an operator ran.
type RuntimeStat struct {
	Operator string
	// Strategy is the algorithm the operator picked, e.g. "galloping" or "hashMap".
	Strategy string
	Rows     int
	Duration time.Duration
}

// StatementContext contains variables for a query.
type StatementContext struct {
	// mu struct holds variables that change during execution.
	mu struct {
		sync.Mutex
		warnings     []error
		runtimeStats []RuntimeStat
	}

	// MemTracker is the root memory tracker of the query.
	MemTracker *memory.Tracker
}

// AppendWarning appends a warning.
func (sc *StatementContext) AppendWarning(warn error) {
	sc.mu.Lock()
	sc.mu.warnings = append(sc.mu.warnings, warn)
	sc.mu.Unlock()
}

// GetWarnings gets warnings.
func (sc *StatementContext) GetWarnings() []error {
	sc.mu.Lock()
	warns := make([]error, len(sc.mu.warnings))
	copy(warns, sc.mu.warnings)
	sc.mu.Unlock()
	return warns
}

// RecordRuntimeStat appends the runtime statistics of one operator run.
func (sc *StatementContext) RecordRuntimeStat(stat RuntimeStat) {
	sc.mu.Lock()
	sc.mu.runtimeStats = append(sc.mu.runtimeStats, stat)
	sc.mu.Unlock()
}

// RuntimeStats returns the recorded operator statistics in execution order.
func (sc *StatementContext) RuntimeStats() []RuntimeStat {
	sc.mu.Lock()
	stats := make([]RuntimeStat, len(sc.mu.runtimeStats))
	copy(stats, sc.mu.runtimeStats)
	sc.mu.Unlock()
	return stats
}

// LastStrategy returns the strategy of the most recent run of operator, or
// "" if it never ran.
func (sc *StatementContext) LastStrategy(operator string) string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for i := len(sc.mu.runtimeStats) - 1; i >= 0; i-- {
		if sc.mu.runtimeStats[i].Operator == operator {
			return sc.mu.runtimeStats[i].Strategy
		}
	}
	return ""
}
