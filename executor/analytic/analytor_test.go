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
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/pingcap/analytic/executor/aggfuncs"
	"github.com/pingcap/analytic/expression"
	"github.com/pingcap/analytic/expression/aggregation"
	"github.com/pingcap/analytic/parser/ast"
	"github.com/pingcap/analytic/planner/core"
	"github.com/pingcap/analytic/types"
	"github.com/pingcap/analytic/util/chunk"
	"github.com/stretchr/testify/require"
)

func sequentialRows(vals ...any) []testRow {
	rows := make([]testRow, 0, len(vals))
	for i, v := range vals {
		if iv, ok := v.(int); ok {
			v = int64(iv)
		}
		rows = append(rows, testRow{p: 0, o: int64(i), v: v})
	}
	return rows
}

func TestSlidingSumScenario(t *testing.T) {
	plan := newPlan(
		[]*aggregation.WindowFuncDesc{desc(ast.AggFuncSum, intTp, colV)},
		nil, []expression.Expression{colO},
		rowsFrame(core.RowsOffset(-1), core.RowsOffset(1)))
	rows := sequentialRows(1, 2, 3, 4, 5)
	expect := []any{3, 6, 9, 12, 9}

	single := runWindow(t, plan, makeChunks(rows, 5), runOptions{})
	require.Len(t, single, 1)
	requireInts(t, expect, resultColumn(single, 3))

	// The same rows split in three batches give the same results.
	split := runWindow(t, plan, makeChunks(rows, 2, 2, 1), runOptions{})
	require.Len(t, split, 3)
	requireInts(t, expect, resultColumn(split, 3))
	require.Equal(t, resultColumn(single, 2), resultColumn(split, 2))
}

func TestLeadLag(t *testing.T) {
	rows := []testRow{
		{p: 1, o: 1, v: int64(10)},
		{p: 1, o: 2, v: int64(20)},
		{p: 1, o: 3, v: int64(30)},
		{p: 2, o: 1, v: int64(40)},
		{p: 2, o: 2, v: int64(50)},
	}
	tests := []struct {
		desc   *aggregation.WindowFuncDesc
		expect []any
	}{
		{desc(ast.WindowFuncLead, intTp, colV), []any{20, 30, nil, 50, nil}},
		{desc(ast.WindowFuncLead, intTp, colV, intConst(2)), []any{30, nil, nil, nil, nil}},
		{desc(ast.WindowFuncLead, intTp, colV, intConst(2), intConst(0)), []any{30, 0, 0, 0, 0}},
		{desc(ast.WindowFuncLag, intTp, colV), []any{nil, 10, 20, nil, 40}},
		{desc(ast.WindowFuncLag, intTp, colV, intConst(1), intConst(-1)), []any{-1, 10, 20, -1, 40}},
	}
	for _, tt := range tests {
		plan := newPlan([]*aggregation.WindowFuncDesc{tt.desc}, []expression.Expression{colP}, []expression.Expression{colO}, nil)
		for _, sizes := range [][]int{{5}, {1}, {2, 3}} {
			outs := runWindow(t, plan, makeChunks(rows, sizes...), runOptions{})
			requireInts(t, tt.expect, resultColumn(outs, 3), tt.desc.String(), sizes)
		}
	}
}

func TestRankingFunctions(t *testing.T) {
	// The order key of the first row of partition 2 equals the last one of
	// partition 1, peer groups must not cross the partition boundary.
	rows := []testRow{
		{p: 1, o: 1}, {p: 1, o: 1}, {p: 1, o: 2}, {p: 1, o: 3}, {p: 1, o: 3},
		{p: 2, o: 3}, {p: 2, o: 4},
		{p: 3, o: 5},
	}
	intResults := []struct {
		desc   *aggregation.WindowFuncDesc
		expect []any
	}{
		{desc(ast.WindowFuncRowNumber, intTp), []any{1, 2, 3, 4, 5, 1, 2, 1}},
		{desc(ast.WindowFuncRank, intTp), []any{1, 1, 3, 4, 4, 1, 2, 1}},
		{desc(ast.WindowFuncDenseRank, intTp), []any{1, 1, 2, 3, 3, 1, 2, 1}},
		{desc(ast.WindowFuncNtile, intTp, intConst(2)), []any{1, 1, 1, 2, 2, 1, 2, 1}},
	}
	realResults := []struct {
		desc   *aggregation.WindowFuncDesc
		expect []float64
	}{
		{desc(ast.WindowFuncPercentRank, realTp), []float64{0, 0, 0.5, 0.75, 0.75, 0, 1, 0}},
		{desc(ast.WindowFuncCumeDist, realTp), []float64{0.4, 0.4, 0.6, 1, 1, 0.5, 1, 1}},
	}
	partitionBy, orderBy := []expression.Expression{colP}, []expression.Expression{colO}
	for _, sizes := range [][]int{{8}, {1}, {3, 2}} {
		for _, tt := range intResults {
			plan := newPlan([]*aggregation.WindowFuncDesc{tt.desc}, partitionBy, orderBy, nil)
			outs := runWindow(t, plan, makeChunks(rows, sizes...), runOptions{})
			requireInts(t, tt.expect, resultColumn(outs, 3), tt.desc.String(), sizes)
		}
		for _, tt := range realResults {
			plan := newPlan([]*aggregation.WindowFuncDesc{tt.desc}, partitionBy, orderBy, nil)
			got := resultColumn(runWindow(t, plan, makeChunks(rows, sizes...), runOptions{}), 3)
			require.Len(t, got, len(tt.expect))
			for i, e := range tt.expect {
				require.InDelta(t, e, got[i].GetFloat64(), 1e-9, "%s row %d", tt.desc, i)
			}
		}
	}
}

func TestMixedFunctionClasses(t *testing.T) {
	descs := []*aggregation.WindowFuncDesc{
		desc(ast.WindowFuncRank, intTp),
		desc(ast.AggFuncSum, intTp, colV),
		desc(ast.WindowFuncRowNumber, intTp),
		desc(ast.WindowFuncLead, intTp, colV, intConst(2)),
		desc(ast.WindowFuncLag, intTp, colV),
		desc(ast.AggFuncCount, intTp, colV),
	}
	frames := []*core.WindowFrame{
		nil,
		rowsFrame(core.UnboundedPreceding(), core.CurrentRow()),
		rowsFrame(core.RowsOffset(-1), core.RowsOffset(1)),
		rowsFrame(core.UnboundedPreceding(), core.UnboundedFollowing()),
		rangeFrame(core.CurrentRow(), core.UnboundedFollowing()),
	}
	rng := rand.New(rand.NewPCG(3, 4))
	rows := randomRows(rng, 120, 12)
	for _, frame := range frames {
		plan := newPlan(descs, []expression.Expression{colP}, []expression.Expression{colO}, frame)
		outs := runWindow(t, plan, randomChunks(rng, rows), runOptions{trimThreshold: int64(1 + rng.IntN(8))})
		expect := make([][]any, len(descs))
		for i := range rows {
			ps, pe, gs, _ := naiveBounds(rows, i, true)
			s, e := naiveFrame(rows, i, frame, true)
			var lead, lag any
			if i+2 < pe {
				lead = rows[i+2].v
			}
			if i-1 >= ps {
				lag = rows[i-1].v
			}
			expect[0] = append(expect[0], gs-ps+1)
			expect[1] = append(expect[1], naiveAggregate(ast.AggFuncSum, rows, s, e))
			expect[2] = append(expect[2], i-ps+1)
			expect[3] = append(expect[3], lead)
			expect[4] = append(expect[4], lag)
			expect[5] = append(expect[5], naiveAggregate(ast.AggFuncCount, rows, s, e))
		}
		for k, d := range descs {
			requireInts(t, expect[k], resultColumn(outs, 3+k), fmt.Sprintf("%s over %v", d, frame))
		}
	}
}

func TestIncrementalEqualsNaive(t *testing.T) {
	frames := []*core.WindowFrame{
		nil,
		rowsFrame(core.RowsOffset(-2), core.RowsOffset(1)),
		rowsFrame(core.RowsOffset(-3), core.RowsOffset(-1)),
		rowsFrame(core.RowsOffset(1), core.RowsOffset(3)),
		rowsFrame(core.UnboundedPreceding(), core.CurrentRow()),
		rowsFrame(core.UnboundedPreceding(), core.RowsOffset(2)),
		rowsFrame(core.CurrentRow(), core.UnboundedFollowing()),
		rowsFrame(core.UnboundedPreceding(), core.UnboundedFollowing()),
		rangeFrame(core.UnboundedPreceding(), core.CurrentRow()),
		rangeFrame(core.CurrentRow(), core.CurrentRow()),
		rangeFrame(core.CurrentRow(), core.UnboundedFollowing()),
	}
	names := []string{
		ast.AggFuncSum, ast.AggFuncCount, ast.AggFuncMax, ast.AggFuncMin,
		ast.WindowFuncFirstValue, ast.WindowFuncLastValue,
	}
	descs := make([]*aggregation.WindowFuncDesc, 0, len(names))
	for _, name := range names {
		descs = append(descs, desc(name, intTp, colV))
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for _, maxPartition := range []int{3, 40} {
		rows := randomRows(rng, 150, maxPartition)
		for _, frame := range frames {
			for _, hasOrder := range []bool{true, false} {
				var orderBy []expression.Expression
				if hasOrder {
					orderBy = []expression.Expression{colO}
				}
				plan := newPlan(descs, []expression.Expression{colP}, orderBy, frame)
				outs := runWindow(t, plan, randomChunks(rng, rows), runOptions{trimThreshold: int64(1 + rng.IntN(8))})
				require.Equal(t, len(rows), numRows(outs))
				for k, name := range names {
					expect := make([]any, len(rows))
					for i := range rows {
						s, e := naiveFrame(rows, i, frame, hasOrder)
						expect[i] = naiveAggregate(name, rows, s, e)
					}
					requireInts(t, expect, resultColumn(outs, 3+k), fmt.Sprintf("%s over %v order %v", name, frame, hasOrder))
				}
			}
		}
	}
}

func TestOutputRowCountWithLimit(t *testing.T) {
	rows := sequentialRows(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	for _, limit := range []int64{-1, 0, 3, 4, 10, 20} {
		plan := newPlan([]*aggregation.WindowFuncDesc{desc(ast.WindowFuncRowNumber, intTp)}, nil, []expression.Expression{colO}, nil)
		plan.Limit = limit
		outs := runWindow(t, plan, makeChunks(rows, 2), runOptions{})
		expect := int64(len(rows))
		if limit >= 0 {
			expect = min(limit, expect)
		}
		require.Equal(t, expect, int64(numRows(outs)), "limit %d", limit)
		got := resultColumn(outs, 3)
		for i := range got {
			require.Equal(t, int64(i+1), got[i].GetInt64())
		}
	}
}

func openLane(t *testing.T, plan *core.PhysicalWindow) *Analytor {
	a, err := NewAnalytorFactory(1, plan).Create(0)
	require.NoError(t, err)
	require.NoError(t, a.Prepare(context.Background()))
	require.NoError(t, a.Open(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, a.Close())
	})
	return a
}

func TestFindPartitionEndIsIdempotent(t *testing.T) {
	plan := newPlan([]*aggregation.WindowFuncDesc{desc(ast.AggFuncSum, intTp, colV)}, []expression.Expression{colP}, nil, nil)
	a := openLane(t, plan)
	rows := []testRow{{p: 1, v: int64(1)}, {p: 1, v: int64(2)}, {p: 2, v: int64(3)}, {p: 2, v: int64(4)}}
	require.NoError(t, a.AddChunk(makeChunks(rows, 4)[0]))

	a.FindPartitionEnd()
	first := a.foundPartitionEnd
	searches := a.partitionSearch.stats.Count()
	a.FindPartitionEnd()
	require.Equal(t, first, a.foundPartitionEnd)
	require.Equal(t, searches, a.partitionSearch.stats.Count())
	require.Equal(t, segmentEnd{found: true, pos: 2}, first)

	// The second partition is open until the input ends.
	require.True(t, a.advancePartition())
	a.currentRowPosition = a.partitionEnd
	a.FindPartitionEnd()
	require.Equal(t, segmentEnd{found: false, pos: 4}, a.foundPartitionEnd)
	a.FindPartitionEnd()
	require.Equal(t, segmentEnd{found: false, pos: 4}, a.foundPartitionEnd)
	a.SetInputEOS()
	a.FindPartitionEnd()
	require.Equal(t, segmentEnd{found: true, pos: 4}, a.foundPartitionEnd)
	a.FindPartitionEnd()
	require.Equal(t, segmentEnd{found: true, pos: 4}, a.foundPartitionEnd)
}

// walkRows moves the lane over every buffered row without producing results
// and calls check at every row.
func walkRows(t *testing.T, a *Analytor, check func()) {
	for a.currentRowPosition < a.inputRows {
		require.True(t, a.advancePartition())
		require.True(t, a.FindPeerGroupEnd())
		check()
		a.advance(1)
	}
}

func TestPeerGroupWithinPartition(t *testing.T) {
	rows := []testRow{
		{p: 1, o: 7}, {p: 1, o: 7}, {p: 2, o: 7}, {p: 2, o: 7}, {p: 2, o: 8}, {p: 3, o: 8},
	}
	plan := newPlan([]*aggregation.WindowFuncDesc{desc(ast.WindowFuncRank, intTp)},
		[]expression.Expression{colP}, []expression.Expression{colO}, nil)
	a := openLane(t, plan)
	for _, chk := range makeChunks(rows, 4, 2) {
		require.NoError(t, a.AddChunk(chk))
	}
	a.SetInputEOS()
	var groups [][2]int64
	walkRows(t, a, func() {
		require.LessOrEqual(t, a.partitionStart, a.peerGroupStart)
		require.Less(t, a.peerGroupStart, a.peerGroupEnd)
		require.LessOrEqual(t, a.peerGroupEnd, a.partitionEnd)
		require.True(t, a.peerGroupStart <= a.currentRowPosition && a.currentRowPosition < a.peerGroupEnd)
		groups = append(groups, [2]int64{a.peerGroupStart, a.peerGroupEnd})
	})
	require.Equal(t, [][2]int64{{0, 2}, {0, 2}, {2, 4}, {2, 4}, {4, 5}, {5, 6}}, groups)
	require.Equal(t, int64(3), a.stats.Partitions())
	require.Equal(t, int64(4), a.stats.PeerGroups())
}

func TestRangePeersShareFrame(t *testing.T) {
	rows := []testRow{
		{p: 1, o: 1, v: int64(1)}, {p: 1, o: 1, v: int64(2)}, {p: 1, o: 2, v: int64(3)},
		{p: 1, o: 3, v: int64(4)}, {p: 1, o: 3, v: int64(5)}, {p: 1, o: 3, v: int64(6)},
	}
	for _, frame := range []*core.WindowFrame{
		rangeFrame(core.CurrentRow(), core.CurrentRow()),
		rangeFrame(core.UnboundedPreceding(), core.CurrentRow()),
		rangeFrame(core.CurrentRow(), core.UnboundedFollowing()),
	} {
		plan := newPlan([]*aggregation.WindowFuncDesc{desc(ast.AggFuncSum, intTp, colV)},
			[]expression.Expression{colP}, []expression.Expression{colO}, frame)
		a := openLane(t, plan)
		require.NoError(t, a.AddChunk(makeChunks(rows, 6)[0]))
		a.SetInputEOS()
		frames := make(map[int64][2]int64)
		walkRows(t, a, func() {
			start, end := a.GetSlidingFrameRange()
			o := rows[a.currentRowPosition].o
			if prev, ok := frames[o]; ok {
				require.Equal(t, prev, [2]int64{start, end}, "frame %s", frame)
			}
			frames[o] = [2]int64{start, end}
		})
		require.Len(t, frames, 3)

		outs := runWindow(t, plan, makeChunks(rows, 1), runOptions{})
		got := resultColumn(outs, 3)
		for i := 1; i < len(rows); i++ {
			if rows[i].o == rows[i-1].o {
				require.Equal(t, got[i-1], got[i], "frame %s row %d", frame, i)
			}
		}
	}
}

func TestTrimBufferedColumns(t *testing.T) {
	rows := make([]testRow, 0, 40)
	for i := range 40 {
		rows = append(rows, testRow{p: int64(i / 4), o: int64(i), v: int64(i)})
	}
	plan := newPlan([]*aggregation.WindowFuncDesc{desc(ast.AggFuncSum, intTp, colV)},
		[]expression.Expression{colP}, []expression.Expression{colO}, rowsFrame(core.RowsOffset(-1), core.CurrentRow()))
	a := openLane(t, plan)
	a.trimThreshold = 4
	var got []types.Datum
	var peak int64
	for _, chk := range makeChunks(rows, 3) {
		require.NoError(t, a.AddChunk(chk))
		peak = max(peak, a.bufferedColumnsMemory)
		for {
			ok, err := a.Evaluate()
			require.NoError(t, err)
			if !ok {
				break
			}
			out, err := a.OutputResultChunk()
			require.NoError(t, err)
			got = append(got, resultColumn([]*chunk.Chunk{out}, 3)...)
		}
		require.LessOrEqual(t, a.removedFromBufferRows, a.partitionStart)
		require.Equal(t, a.inputRows-a.removedFromBufferRows, int64(a.partitionColumns[0].Len()))

		buffered := columnsMemoryUsage(a.partitionColumns) + columnsMemoryUsage(a.orderColumns) + columnsMemoryUsage(a.argColumns[0])
		require.Equal(t, buffered, a.bufferedColumnsMemory)
		for _, c := range a.inputChunks {
			buffered += c.MemoryUsage()
		}
		require.Equal(t, buffered, a.MemTracker().BytesConsumed())
	}
	require.Less(t, a.bufferedColumnsMemory, peak)
	a.SetInputEOS()
	ok, err := a.Evaluate()
	require.NoError(t, err)
	require.False(t, ok)
	require.Positive(t, a.removedFromBufferRows)
	require.Len(t, got, len(rows))
	for i, d := range got {
		expect := int64(i)
		if i%4 != 0 {
			expect += int64(i - 1)
		}
		require.Equal(t, expect, d.GetInt64(), "row %d", i)
	}
}

func TestEvaluateNeedsPartitionEnd(t *testing.T) {
	// An unbounded frame cannot emit a row before the end of its partition.
	plan := newPlan([]*aggregation.WindowFuncDesc{desc(ast.AggFuncSum, intTp, colV)}, []expression.Expression{colP}, nil, nil)
	a := openLane(t, plan)
	chunks := makeChunks([]testRow{{p: 1, v: int64(1)}, {p: 1, v: int64(2)}, {p: 1, v: int64(3)}}, 2)
	require.NoError(t, a.AddChunk(chunks[0]))
	ok, err := a.Evaluate()
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, a.AddChunk(chunks[1]))
	ok, err = a.Evaluate()
	require.NoError(t, err)
	require.False(t, ok)

	a.SetInputEOS()
	ok, err = a.Evaluate()
	require.NoError(t, err)
	require.True(t, ok)
	out, err := a.OutputResultChunk()
	require.NoError(t, err)
	requireInts(t, []any{6, 6}, resultColumn([]*chunk.Chunk{out}, 3))
	ok, err = a.Evaluate()
	require.NoError(t, err)
	require.True(t, ok)
	out, err = a.OutputResultChunk()
	require.NoError(t, err)
	requireInts(t, []any{6}, resultColumn([]*chunk.Chunk{out}, 3))
	require.Equal(t, int64(3), a.NumRowsReturned())
}

func TestStreamingBeforePartitionEnd(t *testing.T) {
	// A running sum is emitted as soon as each chunk arrives.
	plan := newPlan([]*aggregation.WindowFuncDesc{desc(ast.AggFuncSum, intTp, colV)},
		nil, []expression.Expression{colO}, rowsFrame(core.UnboundedPreceding(), core.CurrentRow()))
	a := openLane(t, plan)
	for i, chk := range makeChunks(sequentialRows(1, 2, 3, 4), 2) {
		require.NoError(t, a.AddChunk(chk))
		ok, err := a.Evaluate()
		require.NoError(t, err)
		require.True(t, ok)
		out, err := a.OutputResultChunk()
		require.NoError(t, err)
		expect := [][]any{{1, 3}, {6, 10}}[i]
		requireInts(t, expect, resultColumn([]*chunk.Chunk{out}, 3))
	}
	require.True(t, a.hasAggregate)
	require.False(t, a.hasRanking || a.hasOffset)
	require.Equal(t, modeUnboundedPrecedingRows, a.mode)
}

func TestProcessModes(t *testing.T) {
	sum := []*aggregation.WindowFuncDesc{desc(ast.AggFuncSum, intTp, colV)}
	orderBy := []expression.Expression{colO}
	tests := []struct {
		descs   []*aggregation.WindowFuncDesc
		orderBy []expression.Expression
		frame   *core.WindowFrame
		mode    processMode
		needEnd bool
	}{
		{sum, nil, nil, modeUnbounded, true},
		{sum, orderBy, nil, modeUnboundedPrecedingRange, false},
		{sum, orderBy, rowsFrame(core.UnboundedPreceding(), core.CurrentRow()), modeUnboundedPrecedingRows, false},
		{sum, orderBy, rowsFrame(core.UnboundedPreceding(), core.UnboundedFollowing()), modeUnbounded, true},
		{sum, orderBy, rowsFrame(core.RowsOffset(-1), core.RowsOffset(1)), modeSliding, false},
		{[]*aggregation.WindowFuncDesc{desc(ast.WindowFuncRank, intTp)}, orderBy, nil, modeRanking, false},
		{[]*aggregation.WindowFuncDesc{desc(ast.WindowFuncCumeDist, realTp)}, orderBy, nil, modeRanking, true},
		{[]*aggregation.WindowFuncDesc{desc(ast.WindowFuncLead, intTp, colV)}, orderBy, nil, modeSliding, false},
		{[]*aggregation.WindowFuncDesc{desc(ast.WindowFuncRank, intTp), sum[0]}, orderBy, nil, modeSliding, false},
		{[]*aggregation.WindowFuncDesc{desc(ast.WindowFuncCumeDist, realTp), sum[0]}, orderBy, nil, modeSliding, true},
		{[]*aggregation.WindowFuncDesc{sum[0], desc(ast.WindowFuncLag, intTp, colV)}, nil, nil, modeSliding, false},
	}
	for _, tt := range tests {
		a := openLane(t, newPlan(tt.descs, nil, tt.orderBy, tt.frame))
		require.Equal(t, tt.mode, a.mode, "%v %v", tt.descs[0], tt.frame)
		require.Equal(t, tt.needEnd, a.needPartitionEnd, "%v %v", tt.descs[0], tt.frame)
	}
}

func TestPrepareErrors(t *testing.T) {
	orderBy := []expression.Expression{colO}
	sum := desc(ast.AggFuncSum, intTp, colV)
	tests := []struct {
		plan *core.PhysicalWindow
		err  interface{ Equal(error) bool }
	}{
		{newPlan([]*aggregation.WindowFuncDesc{
			desc(ast.WindowFuncLead, intTp, colV), desc(ast.WindowFuncRank, intTp),
		}, nil, orderBy, rowsFrame(core.RowsOffset(-1), core.CurrentRow())), ErrInvalidFrame},
		{newPlan([]*aggregation.WindowFuncDesc{sum}, nil, orderBy, rangeFrame(core.RowsOffset(-5), core.CurrentRow())), ErrUnsupportedFrame},
		{newPlan([]*aggregation.WindowFuncDesc{sum}, nil, orderBy, rowsFrame(core.RowsOffset(2), core.RowsOffset(1))), ErrInvalidFrame},
		{newPlan([]*aggregation.WindowFuncDesc{sum}, nil, orderBy, rowsFrame(core.UnboundedFollowing(), core.UnboundedFollowing())), ErrInvalidFrame},
		{newPlan([]*aggregation.WindowFuncDesc{sum}, nil, orderBy, rowsFrame(core.CurrentRow(), core.UnboundedPreceding())), ErrInvalidFrame},
		{newPlan([]*aggregation.WindowFuncDesc{desc(ast.WindowFuncRank, intTp)}, nil, orderBy, rowsFrame(core.CurrentRow(), core.CurrentRow())), ErrInvalidFrame},
		{newPlan([]*aggregation.WindowFuncDesc{desc("median", intTp, colV)}, nil, orderBy, nil), aggfuncs.ErrUnsupportedWindowFunc},
		{newPlan(nil, nil, orderBy, nil), ErrSchemaMismatch},
	}
	for _, tt := range tests {
		a, err := NewAnalytorFactory(1, tt.plan).Create(0)
		require.NoError(t, err)
		err = a.Prepare(context.Background())
		require.Error(t, err)
		require.True(t, tt.err.Equal(err), "%v", err)
		require.NoError(t, a.Close())
	}

	plan := newPlan([]*aggregation.WindowFuncDesc{sum}, nil, orderBy, nil)
	plan.Schema = plan.Schema[:len(plan.Schema)-1]
	a, err := NewAnalytorFactory(1, plan).Create(0)
	require.NoError(t, err)
	require.True(t, ErrSchemaMismatch.Equal(a.Prepare(context.Background())))
}

func TestAddChunkErrors(t *testing.T) {
	plan := newPlan([]*aggregation.WindowFuncDesc{desc(ast.AggFuncSum, intTp, colV)}, nil, []expression.Expression{colO}, nil)
	a, err := NewAnalytorFactory(1, plan).Create(0)
	require.NoError(t, err)
	chk := makeChunks(sequentialRows(1, 2), 2)[0]
	require.True(t, ErrLifecycle.Equal(a.AddChunk(chk)))
	require.True(t, ErrLifecycle.Equal(a.Open(context.Background())))

	require.NoError(t, a.Prepare(context.Background()))
	require.NoError(t, a.Open(context.Background()))
	require.NoError(t, a.AddChunk(chunk.NewChunkWithCapacity(childSchema, 1)))
	require.Zero(t, a.inputRows)

	narrow := chunk.NewChunkWithCapacity(childSchema[:2], 1)
	narrow.AppendRow(types.MakeDatums(1, 2)...)
	require.True(t, ErrSchemaMismatch.Equal(a.AddChunk(narrow)))

	wrongType := chunk.NewChunkWithCapacity([]*types.FieldType{intTp, realTp, intTp}, 1)
	wrongType.AppendRow(types.MakeDatums(1, 2.5, 3)...)
	require.Error(t, a.AddChunk(wrongType))
	require.Zero(t, a.inputRows)
	require.Zero(t, a.orderColumns[0].Len())

	_, err = a.OutputResultChunk()
	require.True(t, ErrLifecycle.Equal(err))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	_, err = a.Evaluate()
	require.True(t, ErrLifecycle.Equal(err))
}

func TestEvaluateError(t *testing.T) {
	plan := newPlan([]*aggregation.WindowFuncDesc{desc(ast.AggFuncSum, intTp, colV)}, nil, nil, nil)
	a := openLane(t, plan)
	rows := []testRow{{v: int64(1) << 62}, {v: int64(1) << 62}}
	require.NoError(t, a.AddChunk(makeChunks(rows, 2)[0]))
	a.SetInputEOS()
	_, err := a.Evaluate()
	require.True(t, aggfuncs.ErrOverflow.Equal(err))
}

func TestCloseIsIdempotent(t *testing.T) {
	plan := newPlan([]*aggregation.WindowFuncDesc{desc(ast.AggFuncSum, intTp, colV)}, nil, []expression.Expression{colO}, nil)
	f := NewAnalytorFactory(3, plan)

	// Never prepared.
	a, err := f.Create(0)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.True(t, ErrLifecycle.Equal(a.Prepare(context.Background())))

	// Prepared but not opened.
	a, err = f.Create(1)
	require.NoError(t, err)
	require.NoError(t, a.Prepare(context.Background()))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	// Closed with buffered chunks.
	a, err = f.Create(2)
	require.NoError(t, err)
	require.NoError(t, a.Prepare(context.Background()))
	require.NoError(t, a.Open(context.Background()))
	require.NoError(t, a.AddChunk(makeChunks(sequentialRows(1, 2, 3), 3)[0]))
	require.Positive(t, f.MemTracker().BytesConsumed())
	a.OfferChunkToBuffer(makeChunks(sequentialRows(1), 1)[0])
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.Zero(t, f.MemTracker().BytesConsumed())
	require.True(t, a.IsChunkBufferEmpty())
	require.Nil(t, a.states)
}
