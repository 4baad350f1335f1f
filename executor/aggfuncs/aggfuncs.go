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

package aggfuncs

import (
	"unsafe"

	"github.com/pingcap/analytic/types"
	"github.com/pingcap/analytic/util/chunk"
)

// All the AggFunc implementations are listed here for navigation.
var (
	// All the AggFunc implementations for "COUNT" are listed here.
	_ SlidingWindowAggFunc = (*count)(nil)

	// All the AggFunc implementations for "SUM" are listed here.
	_ SlidingWindowAggFunc = (*sum4Int)(nil)
	_ SlidingWindowAggFunc = (*sum4Real)(nil)

	// All the AggFunc implementations for "AVG" are listed here.
	_ SlidingWindowAggFunc = (*avg4Number)(nil)

	// All the AggFunc implementations for "MAX"/"MIN" are listed here.
	_ AggFunc = (*maxMin)(nil)

	// All the AggFunc implementations for "FIRST_VALUE"/"LAST_VALUE" are listed here.
	_ SlidingWindowAggFunc = (*firstValue)(nil)
	_ SlidingWindowAggFunc = (*lastValue)(nil)

	// All the AggFunc implementations for ranking functions are listed here.
	_ AggFunc = (*rowNumber)(nil)
	_ AggFunc = (*rank)(nil)
	_ AggFunc = (*denseRank)(nil)
	_ AggFunc = (*percentRank)(nil)
	_ AggFunc = (*cumeDist)(nil)
	_ AggFunc = (*ntile)(nil)

	// All the AggFunc implementations for "LEAD"/"LAG" are listed here.
	_ AggFunc = (*leadLag)(nil)
)

// PartialResult points to the state of one window function inside the packed
// state row of a window lane. Every state is a pointer-free struct.
type PartialResult unsafe.Pointer

// FuncClass classifies window functions by how they consume frames.
type FuncClass int

const (
	// ClassAggregate functions accumulate the rows of the frame.
	ClassAggregate FuncClass = iota
	// ClassRanking functions derive their value from peer group and
	// partition positions.
	ClassRanking
	// ClassOffset functions read exactly one row at a signed offset.
	ClassOffset
)

// String implements fmt.Stringer interface.
func (c FuncClass) String() string {
	switch c {
	case ClassRanking:
		return "ranking"
	case ClassOffset:
		return "offset"
	}
	return "aggregate"
}

// FuncContext binds a window function to one lane.
type FuncContext struct {
	RetType  *types.FieldType
	ArgTypes []*types.FieldType
	// Default is returned by offset functions when the target row is outside
	// the partition.
	Default types.Datum
}

// Input gives access to the buffered argument columns of a function. Row 0
// of every column is the row at global position Base.
type Input struct {
	Args []*chunk.Column
	Base int64
}

// Row converts a global row position to the index inside Args.
func (in *Input) Row(pos int64) int {
	return int(pos - in.Base)
}

// Window describes the positions a window function is updated with. All the
// positions are global row positions of the lane and every range is half
// open.
type Window struct {
	PartitionStart int64
	PartitionEnd   int64
	PeerGroupStart int64
	PeerGroupEnd   int64
	// CurrentRow is the row ranking functions evaluate. Offset functions
	// read the row at their offset from it, which may lie outside the
	// partition.
	CurrentRow int64
	// FrameStart and FrameEnd delimit the rows to accumulate for aggregate
	// functions.
	FrameStart int64
	FrameEnd   int64
}

// AggFunc is the interface to evaluate window functions over a packed state.
type AggFunc interface {
	// Class returns how the function consumes frames.
	Class() FuncClass

	// StateSize and StateAlign describe the memory layout of the partial
	// result so that the states of all functions can share one allocation.
	StateSize() uintptr
	StateAlign() uintptr

	// Create initializes the partial result placed at pr.
	Create(fctx *FuncContext, pr PartialResult)

	// Destroy releases everything Create acquired. pr must not be used
	// afterwards.
	Destroy(fctx *FuncContext, pr PartialResult)

	// Reset resets the partial result to the original state.
	Reset(fctx *FuncContext, pr PartialResult)

	// UpdateBatch updates the partial result with the window w.
	UpdateBatch(fctx *FuncContext, in *Input, pr PartialResult, w *Window) error

	// AppendFinalResult2Column appends the final result count times to dst.
	AppendFinalResult2Column(fctx *FuncContext, in *Input, pr PartialResult, dst *chunk.Column, count int) error
}

// SlidingWindowAggFunc is the interface for aggregate functions that can
// remove rows from the partial result, so a sliding frame is maintained
// incrementally instead of being recomputed.
type SlidingWindowAggFunc interface {
	AggFunc

	// RetractBatch removes the rows [start, end) from the partial result.
	RetractBatch(fctx *FuncContext, in *Input, pr PartialResult, start, end int64) error
}

// PartitionMaterializer is implemented by functions that need the end of the
// partition before any row of it can be evaluated.
type PartitionMaterializer interface {
	NeedPartitionMaterializing() bool
}

// OffsetFunc is implemented by functions of ClassOffset.
type OffsetFunc interface {
	// Offset returns the signed distance from the current row to the target row.
	Offset() int64
}

type baseAggFunc struct {
	retTp *types.FieldType
}

func (*baseAggFunc) Class() FuncClass {
	return ClassAggregate
}

func (*baseAggFunc) Destroy(*FuncContext, PartialResult) {}

// appendRowRepeated appends row of src to dst count times.
func appendRowRepeated(dst, src *chunk.Column, row, count int) {
	for range count {
		dst.AppendColumn(src, row, row+1)
	}
}

func appendNullRepeated(dst *chunk.Column, count int) {
	for range count {
		dst.AppendNull()
	}
}
