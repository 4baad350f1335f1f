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
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/pingcap/analytic/executor/aggfuncs"
	"github.com/pingcap/analytic/expression/aggregation"
	"github.com/pingcap/analytic/parser/ast"
	"github.com/pingcap/analytic/planner/core"
)

// processMode is how a lane walks the rows of a partition.
type processMode int

const (
	// modeUnbounded updates the functions once with the whole partition.
	modeUnbounded processMode = iota
	// modeUnboundedPrecedingRange updates the functions once per peer group.
	modeUnboundedPrecedingRange
	// modeUnboundedPrecedingRows updates the functions once per row with
	// the row itself.
	modeUnboundedPrecedingRows
	// modeRanking evaluates windows of ranking functions only row by row.
	modeRanking
	// modeSliding evaluates every other window row by row.
	modeSliding
)

// String implements fmt.Stringer interface.
func (m processMode) String() string {
	switch m {
	case modeUnbounded:
		return "unbounded"
	case modeUnboundedPrecedingRange:
		return "unbounded_preceding_range"
	case modeUnboundedPrecedingRows:
		return "unbounded_preceding_rows"
	case modeRanking:
		return "ranking"
	case modeSliding:
		return "sliding"
	}
	return fmt.Sprintf("processMode(%d)", int(m))
}

func (a *Analytor) deriveFrame() error {
	frame := a.plan.Frame
	if frame != nil && !slices.ContainsFunc(a.plan.WindowFuncDescs, func(desc *aggregation.WindowFuncDesc) bool {
		return aggregation.NeedFrame(desc.Name)
	}) {
		return ErrInvalidFrame.GenWithStackByArgs(fmt.Sprintf("%s does not take a frame", a.funcNames[0]))
	}
	for _, f := range a.funcs {
		if m, ok := f.(aggfuncs.PartitionMaterializer); ok && m.NeedPartitionMaterializing() {
			a.needPartitionEnd = true
		}
	}
	if a.hasAggregate {
		if frame == nil {
			if len(a.plan.OrderBy) == 0 {
				frame = &core.WindowFrame{Type: ast.Rows, Start: core.UnboundedPreceding(), End: core.UnboundedFollowing()}
			} else {
				frame = &core.WindowFrame{Type: ast.Ranges, Start: core.UnboundedPreceding(), End: core.CurrentRow()}
			}
		}
		if err := validateFrame(frame); err != nil {
			return err
		}
		a.frame = frame
	}

	// Ranking and offset functions need every row, so a window holding them
	// is processed row by row whatever the frame of its aggregates.
	switch {
	case a.hasOffset || (a.hasRanking && a.hasAggregate):
		a.mode = modeSliding
	case a.hasRanking:
		a.mode = modeRanking
	case isUnboundedPreceding(frame.Start) && isUnboundedFollowing(frame.End):
		a.mode = modeUnbounded
		a.needPartitionEnd = true
	case isUnboundedPreceding(frame.Start) && frame.End.Type == ast.CurrentRow:
		if frame.Type == ast.Ranges {
			a.mode = modeUnboundedPrecedingRange
		} else {
			a.mode = modeUnboundedPrecedingRows
		}
	default:
		a.mode = modeSliding
	}
	return nil
}

func isUnboundedPreceding(b *core.FrameBound) bool {
	return b.UnBounded && b.Type == ast.Preceding
}

func isUnboundedFollowing(b *core.FrameBound) bool {
	return b.UnBounded && b.Type == ast.Following
}

// boundRank orders frame bounds by the row they refer to.
func boundRank(b *core.FrameBound) int64 {
	switch {
	case isUnboundedPreceding(b):
		return math.MinInt64
	case isUnboundedFollowing(b):
		return math.MaxInt64
	}
	return b.Offset()
}

func validateFrame(frame *core.WindowFrame) error {
	if frame.Start == nil || frame.End == nil {
		return ErrInvalidFrame.GenWithStackByArgs("frame has no start or end")
	}
	if isUnboundedFollowing(frame.Start) {
		return ErrInvalidFrame.GenWithStackByArgs("frame start cannot be UNBOUNDED FOLLOWING")
	}
	if isUnboundedPreceding(frame.End) {
		return ErrInvalidFrame.GenWithStackByArgs("frame end cannot be UNBOUNDED PRECEDING")
	}
	if frame.Type == ast.Ranges {
		for _, b := range []*core.FrameBound{frame.Start, frame.End} {
			if !b.UnBounded && b.Type != ast.CurrentRow {
				return ErrUnsupportedFrame.GenWithStackByArgs(frame)
			}
		}
	}
	if boundRank(frame.Start) > boundRank(frame.End) {
		return ErrInvalidFrame.GenWithStackByArgs(fmt.Sprintf("frame start is after frame end in %s", frame))
	}
	return nil
}

// GetSlidingFrameRange returns the frame of the aggregate functions for the
// current row, clipped to the partition. While the end of the partition is
// not known the end of the frame is only clipped from below.
func (a *Analytor) GetSlidingFrameRange() (start, end int64) {
	cur := a.currentRowPosition
	switch {
	case a.frame.Type == ast.Ranges:
		start, end = a.peerGroupStart, a.peerGroupEnd
		if a.frame.Start.UnBounded {
			start = a.partitionStart
		}
		if a.frame.End.UnBounded {
			end = a.partitionEnd
		}
	default:
		start, end = cur+a.frame.Start.Offset(), cur+a.frame.End.Offset()+1
		if a.frame.Start.UnBounded {
			start = a.partitionStart
		}
		if a.frame.End.UnBounded {
			end = a.partitionEnd
		}
	}
	start = max(start, a.partitionStart)
	end = max(end, start)
	if a.partitionEndFound {
		start, end = min(start, a.partitionEnd), min(end, a.partitionEnd)
	}
	return start, end
}

// frameAvailable returns whether every row of a frame ending at end is known
// to be in the current partition.
func (a *Analytor) frameAvailable(end int64) bool {
	switch {
	case a.partitionEndFound:
		return true
	case a.frame.End.UnBounded:
		return false
	case a.frame.Type == ast.Ranges:
		return true
	}
	return end <= a.partitionEnd
}

// offsetTargetAvailable returns whether the target rows of the offset
// functions are buffered or known to be outside the partition.
func (a *Analytor) offsetTargetAvailable() bool {
	return a.partitionEndFound || a.currentRowPosition+a.maxLeadOffset < a.partitionEnd
}

func (a *Analytor) window(pgStart, pgEnd, frameStart, frameEnd int64) aggfuncs.Window {
	return aggfuncs.Window{
		PartitionStart: a.partitionStart,
		PartitionEnd:   a.partitionEnd,
		PeerGroupStart: pgStart,
		PeerGroupEnd:   pgEnd,
		CurrentRow:     a.currentRowPosition,
		FrameStart:     frameStart,
		FrameEnd:       frameEnd,
	}
}

// UpdateWindowBatch updates the state of every function for the current row,
// whose peer group is [pgStart, pgEnd) and whose frame, already clipped to
// the partition, is [frameStart, frameEnd). It dispatches by function class:
// aggregate functions accumulate the frame, incrementally when it only moved
// forward since the last update, while ranking and offset functions read the
// positions of the current row.
func (a *Analytor) UpdateWindowBatch(pgStart, pgEnd, frameStart, frameEnd int64) error {
	w := a.window(pgStart, pgEnd, frameStart, frameEnd)
	for i, f := range a.funcs {
		var err error
		if f.Class() == aggfuncs.ClassAggregate {
			err = a.updateAggregate(i, f, &w)
		} else {
			err = f.UpdateBatch(a.funcCtxs[i], &a.funcInputs[i], a.states.State(i), &w)
		}
		if err != nil {
			return err
		}
	}
	a.frameInitialized = true
	a.lastFrameStart, a.lastFrameEnd = frameStart, frameEnd
	return nil
}

func (a *Analytor) updateAggregate(i int, f aggfuncs.AggFunc, w *aggfuncs.Window) error {
	fctx, in, pr := a.funcCtxs[i], &a.funcInputs[i], a.states.State(i)
	start, end := w.FrameStart, w.FrameEnd
	lastStart, lastEnd := a.lastFrameStart, a.lastFrameEnd
	if a.frameInitialized && start >= lastStart && end >= lastEnd && start <= lastEnd {
		sf, retractable := f.(aggfuncs.SlidingWindowAggFunc)
		if start == lastStart || retractable {
			if end > lastEnd {
				delta := *w
				delta.FrameStart, delta.FrameEnd = lastEnd, end
				if err := f.UpdateBatch(fctx, in, pr, &delta); err != nil {
					return err
				}
			}
			if start > lastStart {
				return sf.RetractBatch(fctx, in, pr, lastStart, start)
			}
			return nil
		}
	}
	f.Reset(fctx, pr)
	if start == end {
		return nil
	}
	return f.UpdateBatch(fctx, in, pr, w)
}

// ResetWindowState resets the states of all functions for a new partition.
func (a *Analytor) ResetWindowState() {
	for i, f := range a.funcs {
		f.Reset(a.funcCtxs[i], a.states.State(i))
	}
	a.frameInitialized = false
	a.partitionUpdated = false
}

// GetWindowFunctionResult appends the current results of all functions for
// the rows [start, end) of the current output chunk.
func (a *Analytor) GetWindowFunctionResult(start, end int) error {
	for i, f := range a.funcs {
		if err := f.AppendFinalResult2Column(a.funcCtxs[i], &a.funcInputs[i], a.states.State(i), a.resultColumns[i], end-start); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analytor) advance(n int64) {
	a.currentRowPosition += n
	a.windowResultPosition += int(n)
}

func (a *Analytor) emit(n int64) error {
	if err := a.GetWindowFunctionResult(a.windowResultPosition, a.windowResultPosition+int(n)); err != nil {
		return err
	}
	a.advance(n)
	return nil
}

func (a *Analytor) currentChunkEnd() int64 {
	return a.inputChunkFirstRowPositions[a.outputChunkIndex] + int64(a.inputChunks[a.outputChunkIndex].NumRows())
}

// IsCurrentChunkFinishedEval returns whether every row of the current output
// chunk has its results.
func (a *Analytor) IsCurrentChunkFinishedEval() bool {
	return a.outputChunkIndex < len(a.inputChunks) && a.currentRowPosition >= a.currentChunkEnd()
}

// Evaluate computes the results of the current output chunk. It returns
// false when more input is needed, it never waits.
func (a *Analytor) Evaluate() (bool, error) {
	if !a.opened || a.closed {
		return false, ErrLifecycle.GenWithStackByArgs(a.lane, "evaluate a lane that is not open")
	}
	if a.outputChunkIndex >= len(a.inputChunks) {
		return false, nil
	}
	start := time.Now()
	defer func() {
		a.stats.RecordCompute(time.Since(start))
	}()
	for !a.IsCurrentChunkFinishedEval() {
		if !a.advancePartition() {
			return false, nil
		}
		blocked, err := a.processByMode()
		if err != nil || blocked {
			return false, err
		}
	}
	return true, nil
}

// processByMode evaluates at least one row of the current partition unless
// it returns blocked.
func (a *Analytor) processByMode() (blocked bool, err error) {
	chunkEnd := a.currentChunkEnd()
	cur := a.currentRowPosition
	switch a.mode {
	case modeUnbounded:
		if !a.partitionUpdated {
			if err = a.UpdateWindowBatch(a.partitionStart, a.partitionEnd, a.partitionStart, a.partitionEnd); err != nil {
				return false, err
			}
			a.partitionUpdated = true
		}
		return false, a.emit(min(a.partitionEnd, chunkEnd) - cur)
	case modeUnboundedPrecedingRange:
		if cur >= a.peerGroupEnd {
			if !a.FindPeerGroupEnd() {
				return true, nil
			}
			if err = a.UpdateWindowBatch(a.peerGroupStart, a.peerGroupEnd, a.partitionStart, a.peerGroupEnd); err != nil {
				return false, err
			}
		}
		return false, a.emit(min(a.peerGroupEnd, chunkEnd) - cur)
	case modeUnboundedPrecedingRows:
		if err = a.UpdateWindowBatch(a.peerGroupStart, a.peerGroupEnd, a.partitionStart, cur+1); err != nil {
			return false, err
		}
		return false, a.emit(1)
	case modeRanking:
		if !a.FindPeerGroupEnd() {
			return true, nil
		}
		if err = a.UpdateWindowBatch(a.peerGroupStart, a.peerGroupEnd, cur, cur+1); err != nil {
			return false, err
		}
		return false, a.emit(1)
	}

	if (a.hasRanking || a.frame != nil && a.frame.Type == ast.Ranges) && !a.FindPeerGroupEnd() {
		return true, nil
	}
	frameStart, frameEnd := cur, cur+1
	if a.frame != nil {
		frameStart, frameEnd = a.GetSlidingFrameRange()
		if !a.frameAvailable(frameEnd) {
			return true, nil
		}
	}
	if a.hasOffset && !a.offsetTargetAvailable() {
		return true, nil
	}
	if err = a.UpdateWindowBatch(a.peerGroupStart, a.peerGroupEnd, frameStart, frameEnd); err != nil {
		return false, err
	}
	return false, a.emit(1)
}
