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
	"slices"

	"github.com/pingcap/analytic/metrics"
	"github.com/pingcap/analytic/util/chunk"
	"github.com/pingcap/errors"
)

// OutputResultChunk returns the current output chunk: the columns of the
// input chunk followed by one result column per function, truncated to the
// limit. It moves the output cursor to the next buffered chunk and drops the
// buffered values no longer needed.
func (a *Analytor) OutputResultChunk() (*chunk.Chunk, error) {
	if !a.IsCurrentChunkFinishedEval() {
		return nil, ErrLifecycle.GenWithStackByArgs(a.lane, "output a chunk that is not evaluated")
	}
	chk := a.inputChunks[a.outputChunkIndex]
	cols := slices.Concat(chk.Columns(), a.resultColumns)
	out, err := chunk.NewChunkFromColumns(cols)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if a.plan.Limit >= 0 {
		if remain := a.plan.Limit - a.numRowsReturned; int64(out.NumRows()) > remain {
			out.TruncateTo(int(max(remain, 0)))
		}
	}
	rows := int64(out.NumRows())
	a.numRowsReturned += rows
	a.stats.AddRowsReturned(rows)
	metrics.WindowRowsReturnedCounter.Add(float64(rows))

	a.outputChunkIndex++
	a.windowResultPosition = 0
	a.resultColumns = a.newResultColumns()
	a.RemoveUnusedBufferValues()
	return out, nil
}

// RemoveUnusedBufferValues drops the emitted input chunks, and the buffered
// column values of rows before the current partition once there are enough
// of them.
func (a *Analytor) RemoveUnusedBufferValues() {
	for _, chk := range a.inputChunks[:a.outputChunkIndex] {
		a.memTracker.Release(chk.MemoryUsage())
	}
	clear(a.inputChunks[:a.outputChunkIndex])
	a.inputChunks = a.inputChunks[a.outputChunkIndex:]
	a.inputChunkFirstRowPositions = a.inputChunkFirstRowPositions[a.outputChunkIndex:]
	a.outputChunkIndex = 0

	removable := a.partitionStart - a.removedFromBufferRows
	if removable <= 0 || removable < a.trimThreshold {
		return
	}
	n := int(removable)
	for _, col := range a.partitionColumns {
		col.RemoveFirstN(n)
	}
	for _, col := range a.orderColumns {
		col.RemoveFirstN(n)
	}
	for _, cols := range a.argColumns {
		for _, col := range cols {
			col.RemoveFirstN(n)
		}
	}
	a.removedFromBufferRows = a.partitionStart
	for i := range a.funcInputs {
		a.funcInputs[i].Base = a.removedFromBufferRows
	}
	a.trackBufferedColumns()
}
