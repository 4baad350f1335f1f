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

package execdetails

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const (
	// TpBasicRuntimeStats is the tp for BasicRuntimeStats.
	TpBasicRuntimeStats int = iota
	// TpWindowRuntimeStats is the tp for WindowRuntimeStats.
	TpWindowRuntimeStats
)

// RuntimeStats is used to express the executor runtime information.
type RuntimeStats interface {
	String() string
	Merge(RuntimeStats)
	Clone() RuntimeStats
	Tp() int
}

// BasicRuntimeStats is the basic runtime stats.
type BasicRuntimeStats struct {
	// operator call times.
	loop atomic.Int32
	// operator consume time.
	consume atomic.Int64
	// operator return row count.
	rows atomic.Int64
}

// Record records executor's execution.
func (e *BasicRuntimeStats) Record(d time.Duration, rowNum int) {
	e.loop.Inc()
	e.consume.Add(int64(d))
	e.rows.Add(int64(rowNum))
}

// GetActRows return total rows of BasicRuntimeStats.
func (e *BasicRuntimeStats) GetActRows() int64 {
	return e.rows.Load()
}

// GetTime get the int64 total time.
func (e *BasicRuntimeStats) GetTime() int64 {
	return e.consume.Load()
}

// Clone implements the RuntimeStats interface.
func (e *BasicRuntimeStats) Clone() RuntimeStats {
	ret := &BasicRuntimeStats{}
	ret.loop.Store(e.loop.Load())
	ret.consume.Store(e.consume.Load())
	ret.rows.Store(e.rows.Load())
	return ret
}

// Merge implements the RuntimeStats interface.
func (e *BasicRuntimeStats) Merge(rs RuntimeStats) {
	tmp, ok := rs.(*BasicRuntimeStats)
	if !ok {
		return
	}
	e.loop.Add(tmp.loop.Load())
	e.consume.Add(tmp.consume.Load())
	e.rows.Add(tmp.rows.Load())
}

// Tp implements the RuntimeStats interface.
func (*BasicRuntimeStats) Tp() int {
	return TpBasicRuntimeStats
}

// String implements the RuntimeStats interface.
func (e *BasicRuntimeStats) String() string {
	return fmt.Sprintf("time:%v, loops:%d", FormatDuration(time.Duration(e.consume.Load())), e.loop.Load())
}

// WindowRuntimeStats is the counter set of one window lane. The engine only
// writes to it, readers take a snapshot through String or Clone.
type WindowRuntimeStats struct {
	rowsReturned        atomic.Int64
	partitions          atomic.Int64
	peerGroups          atomic.Int64
	computeTime         atomic.Int64
	partitionSearchTime atomic.Int64
	peerGroupSearchTime atomic.Int64
	columnResizeTime    atomic.Int64
}

// AddRowsReturned records rows emitted downstream.
func (e *WindowRuntimeStats) AddRowsReturned(rows int64) {
	e.rowsReturned.Add(rows)
}

// AddPartition records one resolved partition.
func (e *WindowRuntimeStats) AddPartition() {
	e.partitions.Inc()
}

// AddPeerGroup records one resolved peer group.
func (e *WindowRuntimeStats) AddPeerGroup() {
	e.peerGroups.Inc()
}

// RecordCompute records time spent evaluating window functions.
func (e *WindowRuntimeStats) RecordCompute(d time.Duration) {
	e.computeTime.Add(int64(d))
}

// RecordPartitionSearch records time spent looking for partition ends.
func (e *WindowRuntimeStats) RecordPartitionSearch(d time.Duration) {
	e.partitionSearchTime.Add(int64(d))
}

// RecordPeerGroupSearch records time spent looking for peer group ends.
func (e *WindowRuntimeStats) RecordPeerGroupSearch(d time.Duration) {
	e.peerGroupSearchTime.Add(int64(d))
}

// RecordColumnResize records time spent appending into buffered columns.
func (e *WindowRuntimeStats) RecordColumnResize(d time.Duration) {
	e.columnResizeTime.Add(int64(d))
}

// RowsReturned returns the rows emitted downstream.
func (e *WindowRuntimeStats) RowsReturned() int64 {
	return e.rowsReturned.Load()
}

// Partitions returns the number of resolved partitions.
func (e *WindowRuntimeStats) Partitions() int64 {
	return e.partitions.Load()
}

// PeerGroups returns the number of resolved peer groups.
func (e *WindowRuntimeStats) PeerGroups() int64 {
	return e.peerGroups.Load()
}

// Clone implements the RuntimeStats interface.
func (e *WindowRuntimeStats) Clone() RuntimeStats {
	ret := &WindowRuntimeStats{}
	ret.Merge(e)
	return ret
}

// Merge implements the RuntimeStats interface.
func (e *WindowRuntimeStats) Merge(rs RuntimeStats) {
	tmp, ok := rs.(*WindowRuntimeStats)
	if !ok {
		return
	}
	e.rowsReturned.Add(tmp.rowsReturned.Load())
	e.partitions.Add(tmp.partitions.Load())
	e.peerGroups.Add(tmp.peerGroups.Load())
	e.computeTime.Add(tmp.computeTime.Load())
	e.partitionSearchTime.Add(tmp.partitionSearchTime.Load())
	e.peerGroupSearchTime.Add(tmp.peerGroupSearchTime.Load())
	e.columnResizeTime.Add(tmp.columnResizeTime.Load())
}

// Tp implements the RuntimeStats interface.
func (*WindowRuntimeStats) Tp() int {
	return TpWindowRuntimeStats
}

// String implements the RuntimeStats interface.
func (e *WindowRuntimeStats) String() string {
	return fmt.Sprintf("rows:%d, partitions:%d, peer_groups:%d, compute:%v, partition_search:%v, peer_group_search:%v, column_resize:%v",
		e.rowsReturned.Load(), e.partitions.Load(), e.peerGroups.Load(),
		FormatDuration(time.Duration(e.computeTime.Load())),
		FormatDuration(time.Duration(e.partitionSearchTime.Load())),
		FormatDuration(time.Duration(e.peerGroupSearchTime.Load())),
		FormatDuration(time.Duration(e.columnResizeTime.Load())))
}

// RootRuntimeStats is the executor runtime stats that combine with multiple runtime stats.
type RootRuntimeStats struct {
	basics   []*BasicRuntimeStats
	groupRss [][]RuntimeStats
}

// GetActRows return total rows of RootRuntimeStats.
func (e *RootRuntimeStats) GetActRows() int64 {
	num := int64(0)
	for _, basic := range e.basics {
		num += basic.GetActRows()
	}
	return num
}

// MergeStats merges stats in the RootRuntimeStats and return the stats suitable for display directly.
func (e *RootRuntimeStats) MergeStats() (basic *BasicRuntimeStats, groups []RuntimeStats) {
	if len(e.basics) > 0 {
		basic = e.basics[0].Clone().(*BasicRuntimeStats)
		for _, other := range e.basics[1:] {
			basic.Merge(other)
		}
	}
	groups = make([]RuntimeStats, 0, len(e.groupRss))
	for _, rss := range e.groupRss {
		if len(rss) == 0 {
			continue
		}
		rs := rss[0].Clone()
		for _, other := range rss[1:] {
			rs.Merge(other)
		}
		groups = append(groups, rs)
	}
	return basic, groups
}

// String implements the RuntimeStats interface.
func (e *RootRuntimeStats) String() string {
	basic, groups := e.MergeStats()
	strs := make([]string, 0, len(groups)+1)
	if basic != nil {
		strs = append(strs, basic.String())
	}
	for _, group := range groups {
		if str := group.String(); str != "" {
			strs = append(strs, str)
		}
	}
	return strings.Join(strs, ", ")
}

// RuntimeStatsColl collects executors's execution info.
type RuntimeStatsColl struct {
	mu        sync.Mutex
	rootStats map[int]*RootRuntimeStats
}

// NewRuntimeStatsColl creates new executor collector.
func NewRuntimeStatsColl() *RuntimeStatsColl {
	return &RuntimeStatsColl{rootStats: make(map[int]*RootRuntimeStats)}
}

// RegisterStats register execStat for a executor.
func (e *RuntimeStatsColl) RegisterStats(planID int, info RuntimeStats) {
	e.mu.Lock()
	defer e.mu.Unlock()
	stats, ok := e.rootStats[planID]
	if !ok {
		stats = &RootRuntimeStats{}
		e.rootStats[planID] = stats
	}
	if basic, ok := info.(*BasicRuntimeStats); ok {
		stats.basics = append(stats.basics, basic)
		return
	}
	tp := info.Tp()
	for i, rss := range stats.groupRss {
		if len(rss) > 0 && rss[0].Tp() == tp {
			stats.groupRss[i] = append(stats.groupRss[i], info)
			return
		}
	}
	stats.groupRss = append(stats.groupRss, []RuntimeStats{info})
}

// GetRootStats gets execStat for a executor.
func (e *RuntimeStatsColl) GetRootStats(planID int) *RootRuntimeStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	runtimeStats, exists := e.rootStats[planID]
	if !exists {
		runtimeStats = &RootRuntimeStats{}
		e.rootStats[planID] = runtimeStats
	}
	return runtimeStats
}

// ExistsRootStats checks if the planID exists in the rootStats collection.
func (e *RuntimeStatsColl) ExistsRootStats(planID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, exists := e.rootStats[planID]
	return exists
}

// PlanIDs returns the registered plan ids in ascending order.
func (e *RuntimeStatsColl) PlanIDs() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int, 0, len(e.rootStats))
	for id := range e.rootStats {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// FormatDuration uses to format duration, this function will prune precision before format duration.
// Pruning precision is for human readability. The prune rule is:
//  1. if the duration was less than 1us, return the original string.
//  2. readable value >=10, keep 1 decimal, otherwise, keep 2 decimal. such as:
//     9.412345ms  -> 9.41ms
//     10.412345ms -> 10.4ms
//     5.999s      -> 6s
//     100.45µs    -> 100.5µs
func FormatDuration(d time.Duration) string {
	if d <= time.Microsecond {
		return d.String()
	}
	unit := getUnit(d)
	if unit == time.Nanosecond {
		return d.String()
	}
	integer := (d / unit) * unit
	decimal := float64(d%unit) / float64(unit)
	if d < 10*unit {
		decimal = math.Round(decimal*100) / 100
	} else {
		decimal = math.Round(decimal*10) / 10
	}
	d = integer + time.Duration(decimal*float64(unit))
	return d.String()
}

func getUnit(d time.Duration) time.Duration {
	if d >= time.Second {
		return time.Second
	} else if d >= time.Millisecond {
		return time.Millisecond
	} else if d >= time.Microsecond {
		return time.Microsecond
	}
	return time.Nanosecond
}
