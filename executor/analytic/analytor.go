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
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/pingcap/analytic/config"
	"github.com/pingcap/analytic/executor/aggfuncs"
	"github.com/pingcap/analytic/expression"
	"github.com/pingcap/analytic/metrics"
	"github.com/pingcap/analytic/planner/core"
	"github.com/pingcap/analytic/util/chunk"
	"github.com/pingcap/analytic/util/execdetails"
	"github.com/pingcap/analytic/util/logutil"
	"github.com/pingcap/analytic/util/memory"
	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Analytor evaluates the window functions of one PhysicalWindow for one
// lane. Input chunks are sorted by the partition and order keys and all rows
// of a partition arrive on the same lane.
//
// An Analytor is driven by a single goroutine, except the output buffer and
// the sink-complete flag which are shared with the consumer.
type Analytor struct {
	plan          *core.PhysicalWindow
	lane          int
	pool          *chunk.Pool
	statsColl     *execdetails.RuntimeStatsColl
	parentTracker *memory.Tracker
	memTracker    *memory.Tracker
	stats         *execdetails.WindowRuntimeStats
	logger        *zap.Logger

	prepared bool
	opened   bool
	closed   bool

	funcs     []aggfuncs.AggFunc
	funcNames []string
	funcArgs  [][]expression.Expression
	funcCtxs  []*aggfuncs.FuncContext
	// The classes of the functions of the window.
	hasAggregate bool
	hasRanking   bool
	hasOffset    bool
	// maxLeadOffset is the largest positive offset of the offset functions.
	maxLeadOffset int64
	// frame is the frame of the aggregate functions, nil without them.
	frame *core.WindowFrame
	mode  processMode
	// needPartitionEnd is set when no row of a partition can be evaluated
	// before the end of the partition is known.
	needPartitionEnd bool

	offsets  []uintptr
	rowSize  uintptr
	rowAlign uintptr
	states   *ManagedFunctionStates

	maxChunkSize  int
	trimThreshold int64

	// inputChunks are the chunks not emitted yet, the chunk at
	// outputChunkIndex is the one being evaluated.
	inputChunks                 []*chunk.Chunk
	inputChunkFirstRowPositions []int64
	outputChunkIndex            int

	// The evaluated partition, order and argument columns of every buffered
	// row at or after removedFromBufferRows.
	partitionColumns      []*chunk.Column
	orderColumns          []*chunk.Column
	argColumns            [][]*chunk.Column
	funcInputs            []aggfuncs.Input
	removedFromBufferRows int64
	bufferedColumnsMemory int64
	inputRows             int64
	inputEOS              bool

	currentRowPosition   int64
	windowResultPosition int
	resultColumns        []*chunk.Column
	numRowsReturned      int64

	partitionStart    int64
	partitionEnd      int64
	partitionEndFound bool
	foundPartitionEnd segmentEnd
	peerGroupStart    int64
	peerGroupEnd      int64
	partitionSearch   *boundarySearch
	peerGroupSearch   *boundarySearch

	frameInitialized bool
	lastFrameStart   int64
	lastFrameEnd     int64
	partitionUpdated bool

	bufferMu     sync.Mutex
	buffer       *linkedlistqueue.Queue
	sinkComplete atomic.Bool
}

var _ functionStateLayout = (*Analytor)(nil)

func newAnalytor(plan *core.PhysicalWindow, lane int, pool *chunk.Pool, statsColl *execdetails.RuntimeStatsColl, parent *memory.Tracker) *Analytor {
	return &Analytor{
		plan:          plan,
		lane:          lane,
		pool:          pool,
		statsColl:     statsColl,
		parentTracker: parent,
		buffer:        linkedlistqueue.New(),
		logger:        logutil.BgLogger(),
	}
}

// Lane returns the lane index of the Analytor.
func (a *Analytor) Lane() int { return a.lane }

// PlanID returns the id of the window plan the lane evaluates.
func (a *Analytor) PlanID() int { return a.plan.ID }

// Stats returns the runtime counters of the lane. It is nil before Prepare.
func (a *Analytor) Stats() *execdetails.WindowRuntimeStats { return a.stats }

// MemTracker returns the memory tracker of the lane. It is nil before Prepare.
func (a *Analytor) MemTracker() *memory.Tracker { return a.memTracker }

func (a *Analytor) stateFuncs() []aggfuncs.AggFunc { return a.funcs }
func (a *Analytor) stateOffsets() []uintptr      { return a.offsets }
func (a *Analytor) stateRowSize() uintptr        { return a.rowSize }

// Prepare builds the window functions, validates the window and allocates
// the buffers of the lane. Calling it again is a no-op.
func (a *Analytor) Prepare(ctx context.Context) error {
	if a.prepared {
		return nil
	}
	if a.closed {
		return ErrLifecycle.GenWithStackByArgs(a.lane, "prepare after close")
	}
	failpoint.Inject("analytorPrepareError", func() {
		failpoint.Return(errors.New("mock analytor prepare error"))
	})
	a.logger = logutil.Logger(logutil.WithLane(ctx, a.plan.ID, a.lane))

	if err := a.buildFunctions(); err != nil {
		return err
	}
	if err := a.checkSchema(); err != nil {
		return err
	}
	if err := a.deriveFrame(); err != nil {
		return err
	}
	var err error
	a.offsets, a.rowSize, a.rowAlign, err = computeStateLayout(a.funcs, a.funcNames)
	if err != nil {
		return err
	}

	cfg := config.GetGlobalConfig()
	a.maxChunkSize = cfg.Performance.MaxChunkSize
	a.trimThreshold = int64(a.maxChunkSize)

	a.partitionColumns = a.getColumns(a.plan.PartitionBy)
	a.orderColumns = a.getColumns(a.plan.OrderBy)
	a.argColumns = make([][]*chunk.Column, len(a.funcs))
	a.funcInputs = make([]aggfuncs.Input, len(a.funcs))
	for i, args := range a.funcArgs {
		a.argColumns[i] = a.getColumns(args)
		a.funcInputs[i] = aggfuncs.Input{Args: a.argColumns[i]}
	}

	a.memTracker = memory.NewTracker(a.plan.ID, -1)
	if a.parentTracker != nil {
		a.memTracker.AttachTo(a.parentTracker)
	}
	a.stats = &execdetails.WindowRuntimeStats{}
	if a.statsColl != nil {
		a.statsColl.RegisterStats(a.plan.ID, a.stats)
	}
	a.partitionSearch = newBoundarySearch(metrics.LblPartition)
	a.peerGroupSearch = newBoundarySearch(metrics.LblPeerGroup)
	a.partitionEndFound = true
	a.foundPartitionEnd = segmentEnd{found: true}

	a.prepared = true
	a.logger.Debug("window lane prepared",
		zap.String("window", a.plan.ExplainInfo()),
		zap.Stringer("mode", a.mode),
		zap.Uintptr("stateRowSize", a.rowSize),
		zap.Uintptr("stateRowAlign", a.rowAlign))
	return nil
}

// Open binds the functions to the lane and creates their states.
func (a *Analytor) Open(context.Context) error {
	if !a.prepared || a.closed {
		return ErrLifecycle.GenWithStackByArgs(a.lane, "open before prepare or after close")
	}
	if a.opened {
		return nil
	}
	a.funcCtxs = make([]*aggfuncs.FuncContext, 0, len(a.funcs))
	for _, desc := range a.plan.WindowFuncDescs {
		fctx, err := aggfuncs.NewFuncContext(desc)
		if err != nil {
			return err
		}
		a.funcCtxs = append(a.funcCtxs, fctx)
	}
	a.states = newManagedFunctionStates(a.funcCtxs, a)
	a.resultColumns = a.newResultColumns()
	a.opened = true
	return nil
}

// Close releases everything the lane holds. It never fails and calling it
// again is a no-op.
func (a *Analytor) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if a.states != nil {
		a.states.Release()
		a.states = nil
	}
	a.putColumns(a.partitionColumns)
	a.putColumns(a.orderColumns)
	for _, cols := range a.argColumns {
		a.putColumns(cols)
	}
	a.partitionColumns, a.orderColumns, a.argColumns, a.funcInputs = nil, nil, nil, nil
	a.inputChunks, a.inputChunkFirstRowPositions, a.resultColumns = nil, nil, nil

	a.bufferMu.Lock()
	metrics.WindowBufferedChunksGauge.Sub(float64(a.buffer.Size()))
	a.buffer.Clear()
	a.bufferMu.Unlock()

	if a.memTracker != nil {
		a.memTracker.Release(a.memTracker.BytesConsumed())
		a.memTracker.Detach()
	}
	if a.stats != nil {
		a.logger.Debug("window lane closed", zap.Stringer("stats", a.stats))
	}
	return nil
}

func (a *Analytor) buildFunctions() error {
	descs := a.plan.WindowFuncDescs
	if len(descs) == 0 {
		return ErrSchemaMismatch.GenWithStackByArgs("window has no function")
	}
	a.funcs = make([]aggfuncs.AggFunc, 0, len(descs))
	a.funcNames = make([]string, 0, len(descs))
	a.funcArgs = make([][]expression.Expression, 0, len(descs))
	for _, desc := range descs {
		f, err := aggfuncs.Build(desc)
		if err != nil {
			return err
		}
		a.funcs = append(a.funcs, f)
		a.funcNames = append(a.funcNames, desc.Name)
		a.funcArgs = append(a.funcArgs, aggfuncs.InputArgs(desc))
	}
	for _, f := range a.funcs {
		switch f.Class() {
		case aggfuncs.ClassAggregate:
			a.hasAggregate = true
		case aggfuncs.ClassRanking:
			a.hasRanking = true
		case aggfuncs.ClassOffset:
			a.hasOffset = true
			a.maxLeadOffset = max(a.maxLeadOffset, f.(aggfuncs.OffsetFunc).Offset())
		}
	}
	return nil
}

func (a *Analytor) checkSchema() error {
	child, schema := a.plan.ChildSchema, a.plan.Schema
	if len(schema) != len(child)+len(a.funcs) {
		return ErrSchemaMismatch.GenWithStackByArgs(
			fmt.Sprintf("output has %d columns, want %d input columns and %d functions", len(schema), len(child), len(a.funcs)))
	}
	for i, ft := range child {
		if !ft.Equal(schema[i]) {
			return ErrSchemaMismatch.GenWithStackByArgs(fmt.Sprintf("output column %d is %s, input column is %s", i, schema[i], ft))
		}
	}
	for i, desc := range a.plan.WindowFuncDescs {
		if out := schema[len(child)+i]; out.EvalType() != desc.RetTp.EvalType() {
			return ErrSchemaMismatch.GenWithStackByArgs(fmt.Sprintf("output column of %s is %s, function returns %s", desc, out, desc.RetTp))
		}
	}
	return nil
}

func (a *Analytor) getColumns(exprs []expression.Expression) []*chunk.Column {
	cols := make([]*chunk.Column, 0, len(exprs))
	for _, expr := range exprs {
		cols = append(cols, a.pool.GetColumn(expr.GetType()))
	}
	return cols
}

func (a *Analytor) putColumns(cols []*chunk.Column) {
	for _, col := range cols {
		a.pool.PutColumn(col)
	}
}

func (a *Analytor) newResultColumns() []*chunk.Column {
	cols := make([]*chunk.Column, 0, len(a.plan.WindowFuncDescs))
	for _, desc := range a.plan.WindowFuncDescs {
		cols = append(cols, chunk.NewColumn(desc.RetTp, a.maxChunkSize))
	}
	return cols
}

// AddChunk evaluates the partition, order and argument expressions over chk
// and buffers the results. Empty chunks are ignored. chk must not be
// modified afterwards.
func (a *Analytor) AddChunk(chk *chunk.Chunk) error {
	if !a.opened || a.closed {
		return ErrLifecycle.GenWithStackByArgs(a.lane, "add chunk to a lane that is not open")
	}
	if chk == nil || chk.NumRows() == 0 {
		return nil
	}
	failpoint.Inject("analytorAddChunkError", func() {
		failpoint.Return(errors.New("mock analytor add chunk error"))
	})
	if chk.NumCols() != len(a.plan.ChildSchema) {
		return ErrSchemaMismatch.GenWithStackByArgs(
			fmt.Sprintf("input chunk has %d columns, want %d", chk.NumCols(), len(a.plan.ChildSchema)))
	}

	start := time.Now()
	// Evaluate everything first so that a failure leaves the buffers intact.
	partCols, err := evalColumns(a.plan.PartitionBy, chk)
	if err != nil {
		return err
	}
	orderCols, err := evalColumns(a.plan.OrderBy, chk)
	if err != nil {
		return err
	}
	argCols := make([][]*chunk.Column, len(a.funcArgs))
	for i, args := range a.funcArgs {
		if argCols[i], err = evalColumns(args, chk); err != nil {
			return err
		}
	}
	appendColumns(a.partitionColumns, partCols)
	appendColumns(a.orderColumns, orderCols)
	for i := range argCols {
		appendColumns(a.argColumns[i], argCols[i])
	}
	a.stats.RecordColumnResize(time.Since(start))

	a.inputChunks = append(a.inputChunks, chk)
	a.inputChunkFirstRowPositions = append(a.inputChunkFirstRowPositions, a.inputRows)
	a.inputRows += int64(chk.NumRows())
	a.memTracker.Consume(chk.MemoryUsage())
	a.trackBufferedColumns()
	return nil
}

// trackBufferedColumns brings the tracked memory of the buffered partition,
// order and argument columns up to date.
func (a *Analytor) trackBufferedColumns() {
	usage := columnsMemoryUsage(a.partitionColumns) + columnsMemoryUsage(a.orderColumns)
	for _, cols := range a.argColumns {
		usage += columnsMemoryUsage(cols)
	}
	a.memTracker.Consume(usage - a.bufferedColumnsMemory)
	a.bufferedColumnsMemory = usage
}

func columnsMemoryUsage(cols []*chunk.Column) (sum int64) {
	for _, col := range cols {
		sum += col.MemoryUsage()
	}
	return sum
}

func evalColumns(exprs []expression.Expression, chk *chunk.Chunk) ([]*chunk.Column, error) {
	cols := make([]*chunk.Column, 0, len(exprs))
	for _, expr := range exprs {
		col, err := expr.VecEval(chk)
		if err != nil {
			return nil, errors.Annotatef(err, "evaluate %s", expr)
		}
		if col.EvalType() != expr.GetType().EvalType() || col.Len() != chk.NumRows() {
			return nil, ErrSchemaMismatch.GenWithStackByArgs(
				fmt.Sprintf("%s evaluates to %d %s rows, want %d %s rows", expr, col.Len(), col.EvalType(), chk.NumRows(), expr.GetType().EvalType()))
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func appendColumns(dst, src []*chunk.Column) {
	for i, col := range src {
		dst[i].AppendColumn(col, 0, col.Len())
	}
}

// SetInputEOS marks that no more chunks will be added.
func (a *Analytor) SetInputEOS() {
	a.inputEOS = true
}

// IsInputEOS returns whether the input is exhausted.
func (a *Analytor) IsInputEOS() bool {
	return a.inputEOS
}

// NumRowsReturned returns the number of rows emitted so far.
func (a *Analytor) NumRowsReturned() int64 {
	return a.numRowsReturned
}

// ReachedLimit returns whether the lane emitted as many rows as the limit.
func (a *Analytor) ReachedLimit() bool {
	return a.plan.Limit >= 0 && a.numRowsReturned >= a.plan.Limit
}

// OfferChunkToBuffer appends an output chunk to the output buffer.
func (a *Analytor) OfferChunkToBuffer(chk *chunk.Chunk) {
	a.bufferMu.Lock()
	defer a.bufferMu.Unlock()
	a.buffer.Enqueue(chk)
	metrics.WindowBufferedChunksGauge.Inc()
}

// PollChunkBuffer removes the oldest chunk of the output buffer, it returns
// nil if the buffer is empty.
func (a *Analytor) PollChunkBuffer() *chunk.Chunk {
	a.bufferMu.Lock()
	defer a.bufferMu.Unlock()
	v, ok := a.buffer.Dequeue()
	if !ok {
		return nil
	}
	metrics.WindowBufferedChunksGauge.Dec()
	return v.(*chunk.Chunk)
}

// IsChunkBufferEmpty returns whether the output buffer is empty.
func (a *Analytor) IsChunkBufferEmpty() bool {
	a.bufferMu.Lock()
	defer a.bufferMu.Unlock()
	return a.buffer.Empty()
}

// ChunkBufferSize returns the number of chunks in the output buffer.
func (a *Analytor) ChunkBufferSize() int {
	a.bufferMu.Lock()
	defer a.bufferMu.Unlock()
	return a.buffer.Size()
}

// HasOutput returns whether an output chunk is ready to be polled.
func (a *Analytor) HasOutput() bool {
	return !a.IsChunkBufferEmpty()
}

// SinkComplete marks that the producer side of the lane is done.
func (a *Analytor) SinkComplete() {
	a.sinkComplete.Store(true)
}

// IsSinkComplete returns whether the producer side of the lane is done.
func (a *Analytor) IsSinkComplete() bool {
	return a.sinkComplete.Load()
}
