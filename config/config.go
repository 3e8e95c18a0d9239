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

package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ad-freiburg/qlever-sub009/util/logutil"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
)

// Config number limitations
const (
	MaxLogFileSize = 4096 // MB
	// DefGroupByHashMapBlockSize is the number of rows aggregated per block
	// by the hash map GROUP BY.
	DefGroupByHashMapBlockSize = 262144
)

// Valid OOMAction values.
const (
	OOMActionCancel = "cancel"
	OOMActionLog    = "log"
)

// Config contains configuration options.
type Config struct {
	OOMAction     string `toml:"oom-action" json:"oom-action"`
	MemQuotaQuery int64  `toml:"mem-quota-query" json:"mem-quota-query"`

	Log         Log         `toml:"log" json:"log"`
	Performance Performance `toml:"performance" json:"performance"`
	GroupBy     GroupBy     `toml:"group-by" json:"group-by"`
	OpenTracing OpenTracing `toml:"opentracing" json:"opentracing"`
}

// Log is the log section of config.
type Log struct {
	// Log level.
	Level string `toml:"level" json:"level"`
	// Log format. one of json, text, or console.
	Format string `toml:"format" json:"format"`
	// Disable automatic timestamps in output.
	DisableTimestamp bool `toml:"disable-timestamp" json:"disable-timestamp"`
	// File log config.
	File logutil.FileLogConfig `toml:"file" json:"file"`

	SlowOperatorFile string `toml:"slow-operator-file" json:"slow-operator-file"`
	// SlowThreshold is in milliseconds.
	SlowThreshold uint64 `toml:"slow-threshold" json:"slow-threshold"`
}

// Performance is the performance section of the config.
type Performance struct {
	// CancellationCheckInterval is the number of rows processed between two
	// cancellation checks.
	CancellationCheckInterval uint `toml:"cancellation-check-interval" json:"cancellation-check-interval"`
	// GallopThreshold is the size ratio of the join inputs above which the
	// galloping join replaces the plain merge join.
	GallopThreshold uint `toml:"gallop-threshold" json:"gallop-threshold"`
	// QueryTimeout in seconds, 0 means no deadline.
	QueryTimeout uint `toml:"query-timeout" json:"query-timeout"`
}

// GroupBy holds the runtime parameters of the GROUP BY operator.
type GroupBy struct {
	HashMapEnabled                bool    `toml:"hash-map-enabled" json:"hash-map-enabled"`
	DisableIndexScanOptimizations bool    `toml:"disable-index-scan-optimizations" json:"disable-index-scan-optimizations"`
	HashMapBlockSize              uint    `toml:"hash-map-block-size" json:"hash-map-block-size"`
	SampleEnabled                 bool    `toml:"sample-enabled" json:"sample-enabled"`
	SampleSize                    uint    `toml:"sample-size" json:"sample-size"`
	SampleRatioThreshold          float64 `toml:"sample-ratio-threshold" json:"sample-ratio-threshold"`
}

// OpenTracing is the opentracing section of the config.
type OpenTracing struct {
	Enable bool `toml:"enable" json:"enable"`
}

// The ErrConfigValidationFailed error is used so that external callers can do a type assertion
// to defer handling of this specific error when someone does not want strict type checking.
// This is needed only because logging hasn't been set up at the time we parse the config file.
type ErrConfigValidationFailed struct {
	err string
}

func (e *ErrConfigValidationFailed) Error() string {
	return e.err
}

var defaultConf = Config{
	OOMAction:     OOMActionCancel,
	MemQuotaQuery: 32 << 30,
	Log: Log{
		Level:            "info",
		Format:           "text",
		File:             logutil.NewFileLogConfig(true, logutil.DefaultLogMaxSize),
		SlowOperatorFile: "",
		SlowThreshold:    logutil.DefaultSlowThreshold,
	},
	Performance: Performance{
		CancellationCheckInterval: 1024,
		GallopThreshold:           1000,
	},
	GroupBy: GroupBy{
		HashMapEnabled:       false,
		HashMapBlockSize:     DefGroupByHashMapBlockSize,
		SampleEnabled:        false,
		SampleSize:           1000,
		SampleRatioThreshold: 0.5,
	},
}

var globalConf = atomic.Value{}

// NewConfig creates a new config instance with default value.
func NewConfig() *Config {
	conf := defaultConf
	return &conf
}

// GetGlobalConfig returns the global configuration.
// Other parts of the system can read the global configuration use this function.
func GetGlobalConfig() *Config {
	return globalConf.Load().(*Config)
}

// StoreGlobalConfig stores a new config to the globalConf. It mostly uses in the test to avoid some data races.
func StoreGlobalConfig(config *Config) {
	globalConf.Store(config)
}

// Load loads config options from a toml file.
func (c *Config) Load(confFile string) error {
	metaData, err := toml.DecodeFile(confFile, c)
	if err != nil {
		return errors.Trace(err)
	}
	return checkUndecoded(confFile, metaData)
}

// LoadString loads config options from toml text.
func (c *Config) LoadString(data string) error {
	metaData, err := toml.Decode(data, c)
	if err != nil {
		return errors.Trace(err)
	}
	return checkUndecoded("<string>", metaData)
}

// If any items in the toml source are not mapped into the Config struct, issue
// an error and stop the program from starting.
func checkUndecoded(source string, metaData toml.MetaData) error {
	undecoded := metaData.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	undecodedItems := make([]string, 0, len(undecoded))
	for _, item := range undecoded {
		undecodedItems = append(undecodedItems, item.String())
	}
	return &ErrConfigValidationFailed{fmt.Sprintf("config file %s contained unknown configuration options: %s", source, strings.Join(undecodedItems, ", "))}
}

// Valid checks if this config is valid.
func (c *Config) Valid() error {
	if c.Log.File.MaxSize > MaxLogFileSize {
		return fmt.Errorf("invalid max log file size=%v which is larger than max=%v", c.Log.File.MaxSize, MaxLogFileSize)
	}
	c.OOMAction = strings.ToLower(c.OOMAction)
	if c.OOMAction != OOMActionLog && c.OOMAction != OOMActionCancel {
		return fmt.Errorf("unsupported OOMAction %v, only [%v, %v] are supported", c.OOMAction, OOMActionLog, OOMActionCancel)
	}
	if c.Performance.CancellationCheckInterval == 0 {
		return fmt.Errorf("cancellation-check-interval should be greater than 0")
	}
	if c.Performance.GallopThreshold < 1 {
		return fmt.Errorf("gallop-threshold should be greater than 0")
	}
	if c.GroupBy.HashMapBlockSize == 0 {
		return fmt.Errorf("group-by.hash-map-block-size should be greater than 0")
	}
	if c.GroupBy.SampleEnabled {
		if c.GroupBy.SampleSize == 0 {
			return fmt.Errorf("group-by.sample-size should be greater than 0")
		}
		if c.GroupBy.SampleRatioThreshold <= 0 || c.GroupBy.SampleRatioThreshold > 1 {
			return fmt.Errorf("group-by.sample-ratio-threshold should be in (0, 1]")
		}
	}
	return nil
}

// ToLogConfig converts *Log to *logutil.LogConfig.
func (l *Log) ToLogConfig() *logutil.LogConfig {
	return logutil.NewLogConfig(l.Level, l.Format, l.SlowOperatorFile, l.File, l.DisableTimestamp)
}

func init() {
	globalConf.Store(&defaultConf)
}
