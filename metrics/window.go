// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label constants.
const (
	LblType     = "type"
	LblStrategy = "strategy"
	LblResult   = "result"

	LblPartition = "partition"
	LblPeerGroup = "peer_group"

	LblLinear      = "linear"
	LblExponential = "exponential"
	LblCandidate   = "candidate"

	LblOK    = "ok"
	LblError = "error"
)

// Window engine metrics.
var (
	WindowRowsReturnedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tidb",
			Subsystem: "window",
			Name:      "rows_returned_total",
			Help:      "Counter of rows emitted by window lanes.",
		})

	WindowSegmentSearchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tidb",
			Subsystem: "window",
			Name:      "segment_search_total",
			Help:      "Counter of partition and peer group boundary searches by strategy.",
		}, []string{LblType, LblStrategy})

	WindowSegmentSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tidb",
			Subsystem: "window",
			Name:      "segment_rows",
			Help:      "Bucketed histogram of resolved partition and peer group sizes.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12), // 1 ~ 4M
		}, []string{LblType})

	WindowLaneCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tidb",
			Subsystem: "window",
			Name:      "lanes_total",
			Help:      "Counter of window lanes by their final result.",
		}, []string{LblResult})

	WindowBufferedChunksGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tidb",
			Subsystem: "window",
			Name:      "buffered_output_chunks",
			Help:      "Number of result chunks waiting in window output buffers.",
		})
)

// RegisterMetrics registers the metrics which are ONLY used in the window engine.
func RegisterMetrics() {
	prometheus.MustRegister(WindowRowsReturnedCounter)
	prometheus.MustRegister(WindowSegmentSearchCounter)
	prometheus.MustRegister(WindowSegmentSize)
	prometheus.MustRegister(WindowLaneCounter)
	prometheus.MustRegister(WindowBufferedChunksGauge)
}
