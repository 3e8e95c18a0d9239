// Copyright 2018 PingCAP, Inc.
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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label constants.
const (
	LblMerge     = "merge"
	LblGalloping = "galloping"
	LblHash      = "hash"
	LblOptional  = "optional"

	LblCountStar        = "count_star"
	LblSingleScan       = "single_scan"
	LblFullScan         = "full_scan"
	LblObjectWithCount  = "object_with_count"
	LblJoinWithFullScan = "join_with_full_scan"
	LblHashMap          = "hash_map"
	LblStreamingLazy    = "streaming_lazy"
	LblStreamingEager   = "streaming_eager"

	LblOK    = "ok"
	LblError = "error"
)

var (
	// JoinCounter counts join executions per algorithm.
	JoinCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sparql",
			Subsystem: "executor",
			Name:      "join_total",
			Help:      "Counter of join executions by algorithm.",
		}, []string{"algorithm"})

	// GroupByStrategyCounter counts GROUP BY executions per strategy.
	GroupByStrategyCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sparql",
			Subsystem: "executor",
			Name:      "groupby_strategy_total",
			Help:      "Counter of GROUP BY executions by strategy.",
		}, []string{"strategy"})

	// HashMapGroupsHistogram observes the number of groups built by the hash map GROUP BY.
	HashMapGroupsHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sparql",
			Subsystem: "executor",
			Name:      "groupby_hashmap_groups",
			Help:      "Bucketed histogram of the number of groups of hash map GROUP BY.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 14),
		})

	// OperatorDuration observes the time spent in ComputeResult per operator.
	OperatorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sparql",
			Subsystem: "executor",
			Name:      "operator_duration_seconds",
			Help:      "Bucketed histogram of operator execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 20),
		}, []string{"operator", "result"})
)

func init() {
	prometheus.MustRegister(JoinCounter)
	prometheus.MustRegister(GroupByStrategyCounter)
	prometheus.MustRegister(HashMapGroupsHistogram)
	prometheus.MustRegister(OperatorDuration)
}

// ResultLabel returns the result label of an operator run.
func ResultLabel(err error) string {
	if err != nil {
		return LblError
	}
	return LblOK
}
