// Copyright 2015 PingCAP, Inc.
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

package sessionctx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ad-freiburg/qlever-sub009/sessionctx/variable"
	"github.com/ad-freiburg/qlever-sub009/util/testleak"
	. "github.com/pingcap/check"
	"github.com/pingcap/parser/terror"
)

func TestT(t *testing.T) {
	TestingT(t)
}

var _ = Suite(&testContextSuite{})

type testContextSuite struct{}

func (s *testContextSuite) TestCancel(c *C) {
	sctx := NewDefaultContext()
	c.Assert(sctx.CheckCancellation(), IsNil)
	sctx.Cancel()
	err := sctx.CheckCancellation()
	c.Assert(terror.ErrorEqual(err, ErrQueryInterrupted), IsTrue)
	c.Assert(strings.Contains(err.Error(), "canceled"), IsTrue)
}

func (s *testContextSuite) TestCancelFromAnotherGoroutine(c *C) {
	defer testleak.AfterTest(c)()
	sctx := NewDefaultContext()
	checker := sctx.NewChecker()
	done := make(chan struct{})
	go func() {
		sctx.Cancel()
		close(done)
	}()
	<-done
	c.Assert(terror.ErrorEqual(sctx.CheckCancellation(), ErrQueryInterrupted), IsTrue)
	// The checker only looks at the flag every CancellationCheckInterval rows.
	var err error
	for n := 0; n <= sctx.GetSessionVars().CancellationCheckInterval && err == nil; n++ {
		err = checker.Tick()
	}
	c.Assert(terror.ErrorEqual(err, ErrQueryInterrupted), IsTrue)
}

func (s *testContextSuite) TestDeadline(c *C) {
	sctx := NewDefaultContext()
	_, ok := sctx.Deadline()
	c.Assert(ok, IsFalse)
	sctx.SetDeadline(time.Now().Add(-time.Second))
	err := sctx.CheckCancellation()
	c.Assert(terror.ErrorEqual(err, ErrQueryInterrupted), IsTrue)
	c.Assert(strings.Contains(err.Error(), "deadline"), IsTrue)
	sctx.SetDeadline(time.Time{})
	c.Assert(sctx.CheckCancellation(), IsNil)
}

func (s *testContextSuite) TestGoContext(c *C) {
	goCtx, cancel := context.WithCancel(context.Background())
	sctx := NewContext(goCtx, variable.NewSessionVars())
	c.Assert(sctx.GoCtx(), Equals, goCtx)
	c.Assert(sctx.CheckCancellation(), IsNil)
	cancel()
	c.Assert(terror.ErrorEqual(sctx.CheckCancellation(), ErrQueryInterrupted), IsTrue)
}

func (s *testContextSuite) TestChecker(c *C) {
	vars := variable.NewSessionVars()
	vars.CancellationCheckInterval = 4
	sctx := NewContext(context.Background(), vars)
	ck := sctx.NewChecker()
	sctx.Cancel()
	for i := 0; i < 3; i++ {
		c.Assert(ck.Tick(), IsNil)
	}
	c.Assert(terror.ErrorEqual(ck.Tick(), ErrQueryInterrupted), IsTrue)
	c.Assert(terror.ErrorEqual(ck.TickN(10), ErrQueryInterrupted), IsTrue)
}

func (s *testContextSuite) TestMemTracker(c *C) {
	vars := variable.NewSessionVars()
	vars.MemQuotaQuery = 128
	sctx := NewContext(context.Background(), vars)
	c.Assert(sctx.MemTracker().BytesLimit(), Equals, int64(128))
	c.Assert(sctx.MemTracker().TryConsume(100), IsNil)
	c.Assert(sctx.MemTracker().TryConsume(100), NotNil)
}
