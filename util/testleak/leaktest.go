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

package testleak

import (
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/pingcap/check"
)

// ignoredStacks are substrings of goroutine stacks owned by the test
// framework or the runtime.
var ignoredStacks = []string{
	"testing.RunTests",
	"testing.(*T).Run",
	"testing.Main(",
	"check.(*resultTracker).start",
	"check.(*suiteRunner).runFunc",
	"check.(*suiteRunner).parallelRun",
	"runtime.goexit",
	"created by runtime.gc",
	"interestingGoroutines",
	"signal.SetupSignalHandler",
	"os/signal.signal_recv",
	"lumberjack.(*Logger).millRun",
}

func interestingGoroutines() (gs []string) {
	buf := make([]byte, 2<<20)
	buf = buf[:runtime.Stack(buf, true)]
	for _, g := range strings.Split(string(buf), "\n\n") {
		sl := strings.SplitN(g, "\n", 2)
		if len(sl) != 2 {
			continue
		}
		stack := strings.TrimSpace(sl[1])
		if stack == "" || ignored(stack) {
			continue
		}
		gs = append(gs, stack)
	}
	sort.Strings(gs)
	return
}

func ignored(stack string) bool {
	for _, s := range ignoredStacks {
		if strings.Contains(stack, s) {
			return true
		}
	}
	return false
}

const (
	defaultCheckCnt = 50
	checkInterval   = 50 * time.Millisecond
)

func checkLeakAfterTest(errorFunc func(cnt int, g string)) func() {
	before := map[string]bool{}
	for _, g := range interestingGoroutines() {
		before[g] = true
	}

	return func() {
		var leaked []string
		for i := 0; i < defaultCheckCnt; i++ {
			leaked = leaked[:0]
			for _, g := range interestingGoroutines() {
				if !before[g] {
					leaked = append(leaked, g)
				}
			}
			// Goroutines might still be shutting down.
			if len(leaked) != 0 {
				time.Sleep(checkInterval)
				continue
			}
			return
		}
		for _, g := range leaked {
			errorFunc(defaultCheckCnt, g)
		}
	}
}

// AfterTest snapshots the current goroutines and returns a function that
// reports every goroutine started since then which is still running.
// Usage: defer testleak.AfterTest(c)()
func AfterTest(c *check.C) func() {
	errorFunc := func(cnt int, g string) {
		c.Errorf("Test %s check-count %d appears to have leaked: %v", c.TestName(), cnt, g)
	}
	return checkLeakAfterTest(errorFunc)
}

// AfterTestT is AfterTest for plain testing.T tests.
func AfterTestT(t *testing.T) func() {
	errorFunc := func(cnt int, g string) {
		t.Errorf("Test %s check-count %d appears to have leaked: %v", t.Name(), cnt, g)
	}
	return checkLeakAfterTest(errorFunc)
}
