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
	"time"

	"github.com/ad-freiburg/qlever-sub009/config"
	"github.com/ad-freiburg/qlever-sub009/sessionctx/stmtctx"
	"github.com/ad-freiburg/qlever-sub009/sessionctx/variable"
	"github.com/ad-freiburg/qlever-sub009/util/memory"
	"github.com/ad-freiburg/qlever-sub009/util/stringutil"
	"github.com/pingcap/parser/mysql"
	"github.com/pingcap/parser/terror"
	"go.uber.org/atomic"
)

// ErrQueryInterrupted is returned when a cancellation check finds the query
// canceled or past its deadline.
var ErrQueryInterrupted = terror.ClassExecutor.New(mysql.ErrQueryInterrupted, "Query execution was interrupted: %s")

// Context carries everything an operator needs besides its inputs: the Go
// context, the cancellation state, the memory budget and the runtime
// parameters of one query.
//
// Cancel may be called from any goroutine. All other methods belong to the
// goroutine executing the query.
type Context struct {
	goCtx    context.Context
	vars     *variable.SessionVars
	killed   atomic.Bool
	deadline time.Time
	depth    int
}

// NewContext creates a Context for one query. The query memory tracker is
// created with vars.MemQuotaQuery as its quota.
func NewContext(ctx context.Context, vars *variable.SessionVars) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if vars.StmtCtx == nil {
		vars.StmtCtx = new(stmtctx.StatementContext)
	}
	if vars.StmtCtx.MemTracker == nil {
		vars.StmtCtx.MemTracker = memory.NewTracker(stringutil.StringerStr("query"), vars.MemQuotaQuery)
		switch vars.OOMAction {
		case config.OOMActionCancel:
			vars.StmtCtx.MemTracker.SetActionOnExceed(&memory.PanicOnExceed{})
		default:
			vars.StmtCtx.MemTracker.SetActionOnExceed(&memory.LogOnExceed{})
		}
	}
	sctx := &Context{goCtx: ctx, vars: vars}
	if vars.QueryTimeout > 0 {
		sctx.deadline = time.Now().Add(vars.QueryTimeout)
	}
	return sctx
}

// NewDefaultContext creates a Context from the global config.
func NewDefaultContext() *Context {
	return NewContext(context.Background(), variable.NewSessionVars())
}

// GoCtx returns the Go context of the query.
func (c *Context) GoCtx() context.Context {
	return c.goCtx
}

// SetGoCtx replaces the Go context, for example to carry a tracing span.
func (c *Context) SetGoCtx(ctx context.Context) {
	c.goCtx = ctx
}

// EnterOperator records that an operator starts computing its result and
// returns how many operators are computing around it, 0 for the root.
func (c *Context) EnterOperator() int {
	c.depth++
	return c.depth - 1
}

// LeaveOperator undoes EnterOperator.
func (c *Context) LeaveOperator() {
	c.depth--
}

// GetSessionVars returns the runtime parameters of the query.
func (c *Context) GetSessionVars() *variable.SessionVars {
	return c.vars
}

// MemTracker returns the root memory tracker of the query.
func (c *Context) MemTracker() *memory.Tracker {
	return c.vars.StmtCtx.MemTracker
}

// Cancel marks the query as canceled. The next cancellation check fails.
func (c *Context) Cancel() {
	c.killed.Store(true)
}

// SetDeadline sets a point in time after which cancellation checks fail.
// A zero time removes the deadline.
func (c *Context) SetDeadline(t time.Time) {
	c.deadline = t
}

// Deadline returns the deadline of the query, ok is false if there is none.
func (c *Context) Deadline() (deadline time.Time, ok bool) {
	return c.deadline, !c.deadline.IsZero()
}

// CheckCancellation returns ErrQueryInterrupted if the query was canceled or
// its deadline has passed.
func (c *Context) CheckCancellation() error {
	if c.killed.Load() {
		return ErrQueryInterrupted.GenWithStackByArgs("canceled")
	}
	if !c.deadline.IsZero() && !time.Now().Before(c.deadline) {
		return ErrQueryInterrupted.GenWithStackByArgs("deadline exceeded")
	}
	switch c.goCtx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return ErrQueryInterrupted.GenWithStackByArgs("deadline exceeded")
	default:
		return ErrQueryInterrupted.GenWithStackByArgs("canceled")
	}
}

// NewChecker returns a CancelChecker that looks at the cancellation state once every
// CancellationCheckInterval ticks.
func (c *Context) NewChecker() *CancelChecker {
	interval := c.vars.CancellationCheckInterval
	if interval <= 0 {
		interval = 1
	}
	return &CancelChecker{sctx: c, interval: interval}
}

// CancelChecker amortizes cancellation checks over many cheap units of work.
type CancelChecker struct {
	sctx     *Context
	interval int
	count    int
}

// Tick counts one unit of work and checks for cancellation when the interval
// is reached.
func (ck *CancelChecker) Tick() error {
	ck.count++
	if ck.count < ck.interval {
		return nil
	}
	ck.count = 0
	return ck.sctx.CheckCancellation()
}

// TickN counts n units of work at once.
func (ck *CancelChecker) TickN(n int) error {
	ck.count += n
	if ck.count < ck.interval {
		return nil
	}
	ck.count = 0
	return ck.sctx.CheckCancellation()
}
