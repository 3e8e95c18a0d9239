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

package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ad-freiburg/qlever-sub009/config"
	"github.com/ad-freiburg/qlever-sub009/executor"
	"github.com/ad-freiburg/qlever-sub009/expression"
	"github.com/ad-freiburg/qlever-sub009/index"
	"github.com/ad-freiburg/qlever-sub009/sessionctx"
	"github.com/ad-freiburg/qlever-sub009/sessionctx/variable"
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/ad-freiburg/qlever-sub009/util/localvocab"
	"github.com/ad-freiburg/qlever-sub009/util/logutil"
	"github.com/ad-freiburg/qlever-sub009/util/signal"
	"github.com/ad-freiburg/qlever-sub009/util/tracing"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/opentracing/basictracer-go"
	"github.com/opentracing/opentracing-go"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/pingcap/parser/terror"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "config file path")
	logLevel   = flag.String("L", "", "log level, overrides the config file")
	numRows    = flag.Int("rows", 100000, "number of rows of each generated input")
	numGroups  = flag.Int("groups", 1000, "number of distinct join and group keys")
	seed       = flag.Int64("seed", 1, "seed of the data generator")
	traceSpans = flag.Bool("trace", false, "print the operator spans of every job")
	params     = flag.String("param", "", "runtime parameters as name=value pairs separated by ','")
	runJobs    = flag.String("run", strings.Join([]string{
		"join",
		"gallop-join",
		"hash-join",
		"optional-join",
		"group-by",
		"group-by-hash",
		"scan-count",
	}, "|"), "jobs to run, a job may carry its row count as name:rows")
)

var (
	okColor   = color.New(color.FgGreen).SprintFunc()
	failColor = color.New(color.FgRed, color.Bold).SprintFunc()
	spanColor = color.New(color.FgCyan).SprintFunc()
)

func main() {
	flag.Parse()
	cfg := loadConfig()
	setupLog(cfg)

	b := &benchExec{cfg: cfg, rng: rand.New(rand.NewSource(*seed))}
	signal.SetupSignalHandler(b.interrupt)
	failed := 0
	for _, v := range strings.Split(*runJobs, "|") {
		if b.stopped.Load() {
			break
		}
		work := strings.ToLower(strings.TrimSpace(v))
		if work == "" {
			continue
		}
		name, rows := mustParseWork(work)
		if err := b.run(name, rows); err != nil {
			failed++
			fmt.Printf("%-14s %s %v\n", name, failColor("FAIL"), err)
			log.Error("job failed", zap.String("job", name), zap.Error(err))
		}
	}
	if err := log.Sync(); err != nil {
		fmt.Fprintln(os.Stderr, "sync log err:", err)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg := config.NewConfig()
	if *configPath != "" {
		terror.MustNil(cfg.Load(*configPath))
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Valid(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config", err)
		os.Exit(1)
	}
	config.StoreGlobalConfig(cfg)
	return cfg
}

func setupLog(cfg *config.Config) {
	err := logutil.InitZapLogger(cfg.Log.ToLogConfig())
	terror.MustNil(err)
}

func mustParseWork(work string) (name string, rows int) {
	strs := strings.Split(work, ":")
	if len(strs) == 1 {
		return strs[0], *numRows
	}
	rows, err := strconv.Atoi(strs[1])
	if err != nil || rows < 0 {
		log.Fatal("invalid row count", zap.String("work", work))
	}
	return strs[0], rows
}

type benchExec struct {
	cfg     *config.Config
	rng     *rand.Rand
	stopped atomic.Bool

	mu      sync.Mutex
	running *sessionctx.Context
}

// interrupt cancels the running job and skips the remaining ones.
func (b *benchExec) interrupt(force bool) {
	if force {
		os.Exit(1)
	}
	b.stopped.Store(true)
	b.mu.Lock()
	if b.running != nil {
		b.running.Cancel()
	}
	b.mu.Unlock()
}

func (b *benchExec) setRunning(sctx *sessionctx.Context) {
	b.mu.Lock()
	b.running = sctx
	b.mu.Unlock()
}

func (b *benchExec) newContext(ctx context.Context) (*sessionctx.Context, error) {
	vars := variable.NewSessionVarsFromConfig(b.cfg)
	if *params != "" {
		for _, kv := range strings.Split(*params, ",") {
			pair := strings.SplitN(kv, "=", 2)
			if len(pair) != 2 {
				return nil, errors.Errorf("invalid runtime parameter %q", kv)
			}
			if err := vars.SetRuntimeParameter(strings.TrimSpace(pair[0]), strings.TrimSpace(pair[1])); err != nil {
				return nil, err
			}
		}
	}
	return sessionctx.NewContext(ctx, vars), nil
}

func (b *benchExec) run(name string, rows int) error {
	runID := uuid.New().String()
	ctx := context.Background()
	var spans []basictracer.RawSpan
	if *traceSpans || b.cfg.OpenTracing.Enable {
		root := tracing.NewRecordedTrace("benchexec."+name, func(sp basictracer.RawSpan) {
			spans = append(spans, sp)
		})
		root.SetTag("run", runID)
		ctx = opentracing.ContextWithSpan(ctx, root)
		defer func() {
			root.Finish()
			printSpans(spans)
		}()
	}
	ctx = logutil.WithKeyValue(ctx, "job", name)
	ctx = logutil.WithKeyValue(ctx, "run", runID)

	sctx, err := b.newContext(ctx)
	if err != nil {
		return err
	}
	b.setRunning(sctx)
	defer b.setRunning(nil)
	op, err := b.buildJob(sctx, name, rows)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := executor.ComputeResult(sctx, op, false)
	if err != nil {
		return err
	}
	t, err := res.IdTable()
	if err != nil {
		return err
	}
	n := t.NumRows()
	t.Close()
	cost := time.Since(start)

	strategy := ""
	for _, stat := range sctx.GetSessionVars().StmtCtx.RuntimeStats() {
		if stat.Strategy != "" {
			strategy = stat.Strategy
		}
	}
	fmt.Printf("%-14s %s rows=%-8d strategy=%-22s %v\n", name, okColor("ok"), n, strategy, cost)
	logutil.Logger(ctx).Info("job done", zap.Int("rows", n), zap.String("strategy", strategy), zap.Duration("cost", cost))
	return nil
}

func (b *benchExec) buildJob(sctx *sessionctx.Context, name string, rows int) (executor.Operation, error) {
	switch name {
	case "join":
		return executor.NewJoinOp(b.values(rows, "?k", "?a"), b.values(rows/4, "?k", "?b"), [][2]int{{0, 0}}, false)
	case "gallop-join":
		small := rows/(2*sctx.GetSessionVars().GallopThreshold+1) + 1
		return executor.NewJoinOp(b.values(rows, "?k", "?a"), b.values(small, "?k", "?b"), [][2]int{{0, 0}}, false)
	case "hash-join":
		return executor.NewHashJoinOp(b.values(rows, "?k", "?a"), b.values(rows/4, "?k", "?b"), [][2]int{{0, 0}}, false)
	case "optional-join":
		return executor.NewOptionalJoinOp(b.values(rows, "?k", "?a"), b.values(rows/4, "?k", "?b"), [][2]int{{0, 0}})
	case "group-by", "group-by-hash":
		if name == "group-by-hash" {
			if err := sctx.GetSessionVars().SetRuntimeParameter(variable.GroupByHashMapEnabled, "true"); err != nil {
				return nil, err
			}
		}
		child := executor.NewSortOp(b.values(rows, "?k", "?a"), []int{0})
		return executor.NewGroupByOp([]string{"?k"}, []executor.Alias{
			{Expr: expression.NewAggregateFunc(expression.AggSum, false, expression.NewVariable("?a")), Target: "?sum"},
			{Expr: expression.NewAggregateFunc(expression.AggAvg, false, expression.NewVariable("?a")), Target: "?avg"},
			{Expr: expression.NewCountStar(false), Target: "?count"},
		}, child)
	case "scan-count":
		scan, err := executor.NewIndexScanOp(b.memIndex(rows), index.POS,
			[3]executor.Term{executor.Var("?s"), executor.Var("?p"), executor.Var("?o")}, nil, index.NoLimit)
		if err != nil {
			return nil, err
		}
		return executor.NewGroupByOp([]string{"?p"}, []executor.Alias{
			{Expr: expression.NewCountStar(false), Target: "?count"},
		}, scan)
	}
	return nil, errors.Errorf("unknown job %q", name)
}

// values generates rows of (key, value) with keys in [0, groups).
func (b *benchExec) values(rows int, keyVar, valVar string) executor.Operation {
	t := idtable.New(2, nil)
	terror.MustNil(t.Reserve(rows))
	for r := 0; r < rows; r++ {
		k := b.rng.Intn(*numGroups)
		terror.MustNil(t.AppendRow(types.NewInt(int64(k)), types.NewInt(b.rng.Int63n(1000))))
	}
	return executor.NewValuesOp(t, localvocab.New(), []string{keyVar, valVar}, nil)
}

func (b *benchExec) memIndex(rows int) *index.MemIndex {
	triples := make([]index.Triple, 0, rows)
	numPredicates := *numGroups/100 + 1
	for r := 0; r < rows; r++ {
		triples = append(triples, index.Triple{
			types.NewVocabIndex(uint64(b.rng.Intn(rows + 1))),
			types.NewVocabIndex(uint64(b.rng.Intn(numPredicates))),
			types.NewVocabIndex(uint64(b.rng.Intn(*numGroups))),
		})
	}
	return index.NewMemIndex(triples)
}

func printSpans(spans []basictracer.RawSpan) {
	for _, sp := range spans {
		fmt.Printf("  %s %-40s %v\n", spanColor("span"), sp.Operation, sp.Duration)
	}
}
