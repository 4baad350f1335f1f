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
	"time"
)

// FindPartitionEnd searches the end of the partition that follows the
// current one, or of the current one while its end is not known yet. The
// result is kept in foundPartitionEnd.
func (a *Analytor) FindPartitionEnd() {
	if a.partitionEndFound && a.currentRowPosition < a.partitionEnd {
		return
	}
	start := time.Now()
	segStart := a.partitionStart
	if a.partitionEndFound {
		segStart = a.partitionEnd
	}
	a.foundPartitionEnd = a.partitionSearch.find(a.partitionColumns, a.removedFromBufferRows, segStart, a.inputRows, a.inputEOS)
	a.stats.RecordPartitionSearch(time.Since(start))
}

// IsNewPartition returns whether the current partition is finished and the
// search met rows of the next one.
func (a *Analytor) IsNewPartition() bool {
	return a.currentRowPosition >= a.partitionEnd && a.partitionEndFound && a.foundPartitionEnd.pos > a.partitionEnd
}

func (a *Analytor) resetStateForNextPartition() {
	a.partitionStart = a.partitionEnd
	a.partitionEnd = a.foundPartitionEnd.pos
	a.partitionEndFound = a.foundPartitionEnd.found
	a.currentRowPosition = a.partitionStart
	a.resetStateForCurPartition()
	a.stats.AddPartition()
}

func (a *Analytor) resetStateForCurPartition() {
	a.peerGroupStart = a.partitionStart
	a.peerGroupEnd = a.partitionStart
	a.ResetWindowState()
}

// advancePartition moves to the next partition when the current one is
// done, or extends the current one while its end is unknown. It returns
// whether the current row can be processed.
func (a *Analytor) advancePartition() bool {
	a.FindPartitionEnd()
	if a.IsNewPartition() {
		if a.needPartitionEnd && !a.foundPartitionEnd.found {
			return false
		}
		a.resetStateForNextPartition()
	} else if !a.partitionEndFound {
		a.partitionEnd = a.foundPartitionEnd.pos
		a.partitionEndFound = a.foundPartitionEnd.found
	}
	return a.currentRowPosition < a.partitionEnd
}

// FindPeerGroupEnd moves to the peer group of the current row. It returns
// false when the end of that peer group is not buffered yet. Without ORDER
// BY the whole partition is one peer group.
func (a *Analytor) FindPeerGroupEnd() bool {
	if a.currentRowPosition < a.peerGroupEnd {
		return true
	}
	start := time.Now()
	end := a.peerGroupSearch.find(a.orderColumns, a.removedFromBufferRows, a.peerGroupEnd, a.partitionEnd, a.partitionEndFound)
	a.stats.RecordPeerGroupSearch(time.Since(start))
	if !end.found {
		return false
	}
	a.peerGroupStart, a.peerGroupEnd = a.peerGroupEnd, end.pos
	a.stats.AddPeerGroup()
	return true
}
