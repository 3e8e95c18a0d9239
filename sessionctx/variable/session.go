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

package variable

import (
	"strconv"
	"strings"
	"time"

	"github.com/ad-freiburg/qlever-sub009/config"
	"github.com/ad-freiburg/qlever-sub009/sessionctx/stmtctx"
	"github.com/pingcap/errors"
	"github.com/pingcap/parser/terror"
)

// Names of the runtime parameters that can be changed with SetRuntimeParameter.
const (
	GroupByHashMapEnabled                = "group-by-hash-map-enabled"
	GroupByDisableIndexScanOptimizations = "group-by-disable-index-scan-optimizations"
	GroupByHashMapBlockSize              = "group-by-hash-map-block-size"
	GroupBySampleEnabled                 = "group-by-sample-enabled"
	GroupBySampleSize                    = "group-by-sample-size"
	GroupBySampleRatioThreshold          = "group-by-sample-ratio-threshold"
	CancellationCheckInterval            = "cancellation-check-interval"
	GallopThreshold                      = "gallop-threshold"
	MemQuotaQueryName                    = "mem-quota-query"
)

const codeUnknownRuntimeParameter terror.ErrCode = 1193

// ErrUnknownRuntimeParameter is returned by SetRuntimeParameter for an unknown name.
var ErrUnknownRuntimeParameter = terror.ClassVariable.New(codeUnknownRuntimeParameter, "Unknown runtime parameter '%s'")

// MemQuota defines memory quota values.
type MemQuota struct {
	// MemQuotaQuery defines the memory quota for a query.
	MemQuotaQuery int64
	// OOMAction is the action when the soft quota is exceeded.
	OOMAction string
}

// GroupByVars are the runtime parameters of the GROUP BY operator.
type GroupByVars struct {
	// HashMapEnabled allows the hash map aggregation.
	HashMapEnabled bool
	// DisableIndexScanOptimizations turns off the index metadata shortcuts.
	DisableIndexScanOptimizations bool
	// HashMapBlockSize is the number of rows processed per block by the hash map aggregation.
	HashMapBlockSize int
	// SampleEnabled turns on the distinct count estimation that may veto the hash map.
	SampleEnabled bool
	// SampleSize is the number of rows sampled for the estimation.
	SampleSize int
	// SampleRatioThreshold is the estimated groups/rows ratio above which the
	// hash map is not used.
	SampleRatioThreshold float64
}

// SessionVars holds the runtime parameters of one query.
type SessionVars struct {
	MemQuota
	GroupBy GroupByVars

	// CancellationCheckInterval is the number of units of work between two
	// cancellation checks.
	CancellationCheckInterval int
	// GallopThreshold is the input size ratio above which a join gallops.
	GallopThreshold int
	// QueryTimeout is the duration after which the query is interrupted, 0 means none.
	QueryTimeout time.Duration
	// SlowThreshold is the slow operator log threshold in milliseconds.
	SlowThreshold uint64
	// EnableTracing opens opentracing spans for operators.
	EnableTracing bool

	// StmtCtx holds variables for current executing query.
	StmtCtx *stmtctx.StatementContext
}

// NewSessionVars creates a SessionVars from the global config.
func NewSessionVars() *SessionVars {
	return NewSessionVarsFromConfig(config.GetGlobalConfig())
}

// NewSessionVarsFromConfig creates a SessionVars from cfg.
func NewSessionVarsFromConfig(cfg *config.Config) *SessionVars {
	return &SessionVars{
		MemQuota: MemQuota{
			MemQuotaQuery: cfg.MemQuotaQuery,
			OOMAction:     cfg.OOMAction,
		},
		GroupBy: GroupByVars{
			HashMapEnabled:                cfg.GroupBy.HashMapEnabled,
			DisableIndexScanOptimizations: cfg.GroupBy.DisableIndexScanOptimizations,
			HashMapBlockSize:              int(cfg.GroupBy.HashMapBlockSize),
			SampleEnabled:                 cfg.GroupBy.SampleEnabled,
			SampleSize:                    int(cfg.GroupBy.SampleSize),
			SampleRatioThreshold:          cfg.GroupBy.SampleRatioThreshold,
		},
		CancellationCheckInterval: int(cfg.Performance.CancellationCheckInterval),
		GallopThreshold:           int(cfg.Performance.GallopThreshold),
		QueryTimeout:              time.Duration(cfg.Performance.QueryTimeout) * time.Second,
		SlowThreshold:             cfg.Log.SlowThreshold,
		EnableTracing:             cfg.OpenTracing.Enable,
		StmtCtx:                   new(stmtctx.StatementContext),
	}
}

// SetRuntimeParameter sets a runtime parameter by name.
func (s *SessionVars) SetRuntimeParameter(name, val string) error {
	var err error
	switch strings.ToLower(name) {
	case GroupByHashMapEnabled:
		s.GroupBy.HashMapEnabled, err = parseBool(val)
	case GroupByDisableIndexScanOptimizations:
		s.GroupBy.DisableIndexScanOptimizations, err = parseBool(val)
	case GroupBySampleEnabled:
		s.GroupBy.SampleEnabled, err = parseBool(val)
	case GroupByHashMapBlockSize:
		s.GroupBy.HashMapBlockSize, err = parsePositiveInt(val)
	case GroupBySampleSize:
		s.GroupBy.SampleSize, err = parsePositiveInt(val)
	case GroupBySampleRatioThreshold:
		s.GroupBy.SampleRatioThreshold, err = strconv.ParseFloat(val, 64)
	case CancellationCheckInterval:
		s.CancellationCheckInterval, err = parsePositiveInt(val)
	case GallopThreshold:
		s.GallopThreshold, err = parsePositiveInt(val)
	case MemQuotaQueryName:
		s.MemQuotaQuery, err = strconv.ParseInt(val, 10, 64)
	default:
		return ErrUnknownRuntimeParameter.GenWithStackByArgs(name)
	}
	return errors.Trace(err)
}

func parseBool(val string) (bool, error) {
	switch strings.ToLower(val) {
	case "1", "on", "true":
		return true, nil
	case "0", "off", "false":
		return false, nil
	}
	return false, errors.Errorf("invalid boolean value '%s'", val)
}

func parsePositiveInt(val string) (int, error) {
	v, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, errors.Errorf("value should be greater than 0, got %d", v)
	}
	return v, nil
}
