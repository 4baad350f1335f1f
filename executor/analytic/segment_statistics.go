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

package analytic

import (
	"github.com/emirpasic/gods/queues/arrayqueue"
	"github.com/pingcap/analytic/metrics"
	"github.com/pingcap/analytic/util/chunk"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// minSegmentCount is the number of resolved segments required before the
	// statistics are trusted.
	minSegmentCount = 16
	// averageSizeThreshold is the average segment size under which segments
	// are considered high cardinality.
	averageSizeThreshold = 8
)

// SegmentStatistics keeps running statistics of resolved partitions or peer
// groups. It picks the boundary search strategy: many small segments are
// found faster by one linear scan than by repeated galloping.
type SegmentStatistics struct {
	count          int64
	cumulativeSize int64
	averageSize    int64
}

// Update records a resolved segment of size rows.
func (s *SegmentStatistics) Update(size int64) {
	s.count++
	s.cumulativeSize += size
	s.averageSize = s.cumulativeSize / s.count
}

// Reset clears the statistics.
func (s *SegmentStatistics) Reset() {
	*s = SegmentStatistics{}
}

// IsHighCardinality reports whether enough segments have been observed and
// they are small on average.
func (s *SegmentStatistics) IsHighCardinality() bool {
	return s.count >= minSegmentCount && s.averageSize < averageSizeThreshold
}

// Count returns the number of recorded segments.
func (s *SegmentStatistics) Count() int64 { return s.count }

// AverageSize returns the integer average segment size.
func (s *SegmentStatistics) AverageSize() int64 { return s.averageSize }

// segmentEnd is the end of a partition or peer group. When found is false
// pos is the number of rows scanned so far and the real end lies at or after
// it.
type segmentEnd struct {
	found bool
	pos   int64
}

// boundarySearch finds the ends of consecutive segments whose rows hold equal
// values in a set of key columns. All positions are global row positions;
// row 0 of the key columns is the row at position base.
//
// Every boundary in (segStart, scanPos) is either queued in candidates or
// the search resolved it already.
type boundarySearch struct {
	stats      SegmentStatistics
	candidates *arrayqueue.Queue
	scanPos    int64
	segStart   int64
	end        segmentEnd
	searched   bool

	linearCounter      prometheus.Counter
	exponentialCounter prometheus.Counter
	candidateCounter   prometheus.Counter
	sizeObserver       prometheus.Observer
}

func newBoundarySearch(tp string) *boundarySearch {
	return &boundarySearch{
		candidates:         arrayqueue.New(),
		linearCounter:      metrics.WindowSegmentSearchCounter.WithLabelValues(tp, metrics.LblLinear),
		exponentialCounter: metrics.WindowSegmentSearchCounter.WithLabelValues(tp, metrics.LblExponential),
		candidateCounter:   metrics.WindowSegmentSearchCounter.WithLabelValues(tp, metrics.LblCandidate),
		sizeObserver:       metrics.WindowSegmentSize.WithLabelValues(tp),
	}
}

func (b *boundarySearch) reset() {
	b.stats.Reset()
	b.candidates.Clear()
	b.scanPos, b.segStart = 0, 0
	b.end = segmentEnd{}
	b.searched = false
}

// find returns the end of the segment starting at segStart, searching the
// rows before limit. limitIsEnd tells that no row follows limit in the
// current scope, so limit itself is the end when no boundary is met. Calling
// it again for a resolved segment returns the same end.
func (b *boundarySearch) find(cols []*chunk.Column, base, segStart, limit int64, limitIsEnd bool) segmentEnd {
	if b.searched && b.segStart == segStart && b.end.found {
		return b.end
	}
	b.segStart, b.searched = segStart, true
	if segStart >= limit {
		b.end = segmentEnd{found: limitIsEnd, pos: limit}
		return b.end
	}
	if pos, ok := b.popCandidate(segStart, limit); ok {
		b.candidateCounter.Inc()
		return b.resolve(pos)
	}
	if len(cols) > 0 {
		start := max(b.scanPos, segStart+1)
		if b.stats.IsHighCardinality() {
			if start < limit {
				b.linearCounter.Inc()
				b.findCandidateEnds(cols, base, start, limit)
				b.scanPos = limit
				if pos, ok := b.popCandidate(segStart, limit); ok {
					return b.resolve(pos)
				}
			}
		} else if start < limit {
			b.exponentialCounter.Inc()
			pos := findFirstNotEqual(cols, base, segStart, start, limit)
			if pos < limit {
				b.scanPos = pos + 1
				return b.resolve(pos)
			}
		}
	}
	b.scanPos = max(b.scanPos, limit)
	if limitIsEnd {
		return b.resolve(limit)
	}
	b.end = segmentEnd{pos: limit}
	return b.end
}

func (b *boundarySearch) resolve(pos int64) segmentEnd {
	size := pos - b.segStart
	b.stats.Update(size)
	b.sizeObserver.Observe(float64(size))
	b.end = segmentEnd{found: true, pos: pos}
	return b.end
}

// popCandidate drops the candidates at or before segStart and pops the next
// one if it is not after limit.
func (b *boundarySearch) popCandidate(segStart, limit int64) (int64, bool) {
	for {
		v, ok := b.candidates.Peek()
		if !ok {
			return 0, false
		}
		pos := v.(int64)
		if pos <= segStart {
			b.candidates.Dequeue()
			continue
		}
		if pos > limit {
			return 0, false
		}
		b.candidates.Dequeue()
		return pos, true
	}
}

// findCandidateEnds queues every position i in [start, end) whose row
// differs from row i-1.
func (b *boundarySearch) findCandidateEnds(cols []*chunk.Column, base, start, end int64) {
	for i := start; i < end; i++ {
		if !rowsEqual(cols, base, i-1, i) {
			b.candidates.Enqueue(i)
		}
	}
}

// findFirstNotEqual returns the first position in [start, end) whose row
// differs from row target, or end. Rows equal to target are contiguous from
// target on, so the search gallops forward and then bisects.
func findFirstNotEqual(cols []*chunk.Column, base, target, start, end int64) int64 {
	lo, hi, step := start, start, int64(1)
	for hi < end && rowsEqual(cols, base, target, hi) {
		lo = hi + 1
		hi += step
		step <<= 1
	}
	hi = min(hi, end)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if rowsEqual(cols, base, target, mid) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func rowsEqual(cols []*chunk.Column, base, i, j int64) bool {
	ri, rj := int(i-base), int(j-base)
	for _, col := range cols {
		if !col.EqualAt(ri, col, rj) {
			return false
		}
	}
	return true
}
