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

package operator

import (
	"context"

	"github.com/pingcap/analytic/executor/analytic"
	"github.com/pingcap/analytic/util/chunk"
	"github.com/pingcap/analytic/util/logutil"
	"github.com/pingcap/analytic/util/tracing"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// Lifecycle is implemented by every operator of a pipeline.
type Lifecycle interface {
	// Prepare allocates what the operator needs before any data flows.
	Prepare(ctx context.Context) error
	// Open makes the operator ready to process data.
	Open(ctx context.Context) error
	// Close releases the resources of the operator. It can be called more
	// than once.
	Close() error
}

var (
	_ Lifecycle = (*AnalyticSinkOperator)(nil)
	_ Lifecycle = (*AnalyticSourceOperator)(nil)
)

// AnalyticSinkOperator feeds the sorted input of one lane to its Analytor
// and moves every finished result chunk to the output buffer of the lane.
// It never waits: when the buffer is full it just stops asking for input.
type AnalyticSinkOperator struct {
	analytor *analytic.Analytor
	finished bool
}

// NewAnalyticSinkOperator creates the sink of the lane a.
func NewAnalyticSinkOperator(a *analytic.Analytor) *AnalyticSinkOperator {
	return &AnalyticSinkOperator{analytor: a}
}

// Prepare implements the Lifecycle interface.
func (o *AnalyticSinkOperator) Prepare(ctx context.Context) error {
	return o.analytor.Prepare(ctx)
}

// Open implements the Lifecycle interface.
func (o *AnalyticSinkOperator) Open(ctx context.Context) error {
	return o.analytor.Open(ctx)
}

// Close implements the Lifecycle interface.
func (o *AnalyticSinkOperator) Close() error {
	return o.analytor.Close()
}

// NeedInput returns whether the sink accepts another chunk.
func (o *AnalyticSinkOperator) NeedInput() bool {
	return !o.IsFinished() && o.analytor.ChunkBufferSize() < analytic.BufferChunkNumber
}

// Push buffers chk and emits every result chunk that can be computed.
func (o *AnalyticSinkOperator) Push(ctx context.Context, chk *chunk.Chunk) error {
	if o.finished {
		return errors.New("push to a finished analytic sink")
	}
	span, ctx := tracing.ChildSpanFromContext(ctx, "analyticSink.Push")
	defer span.Finish()
	if err := o.analytor.AddChunk(chk); err != nil {
		return err
	}
	return o.drain(ctx)
}

// SetFinishing tells the sink that the input is exhausted, so every
// remaining row can be emitted.
func (o *AnalyticSinkOperator) SetFinishing(ctx context.Context) error {
	if o.finished {
		return nil
	}
	span, ctx := tracing.ChildSpanFromContext(ctx, "analyticSink.SetFinishing")
	defer span.Finish()
	o.analytor.SetInputEOS()
	if err := o.drain(ctx); err != nil {
		return err
	}
	o.finish(ctx)
	return nil
}

// IsFinished returns whether the sink takes no more input.
func (o *AnalyticSinkOperator) IsFinished() bool {
	return o.finished
}

func (o *AnalyticSinkOperator) drain(ctx context.Context) error {
	for !o.analytor.ReachedLimit() {
		ok, err := o.analytor.Evaluate()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		out, err := o.analytor.OutputResultChunk()
		if err != nil {
			return err
		}
		if out.NumRows() > 0 {
			o.analytor.OfferChunkToBuffer(out)
		}
	}
	logutil.Event(ctx, "limit reached")
	o.finish(ctx)
	return nil
}

func (o *AnalyticSinkOperator) finish(ctx context.Context) {
	if o.finished {
		return
	}
	o.finished = true
	o.analytor.SinkComplete()
	logutil.Logger(ctx).Debug("analytic sink finished",
		zap.Int("lane", o.analytor.Lane()),
		zap.Int64("rowsReturned", o.analytor.NumRowsReturned()))
}

// AnalyticSourceOperator hands the result chunks of one lane downstream.
type AnalyticSourceOperator struct {
	analytor *analytic.Analytor
}

// NewAnalyticSourceOperator creates the source of the lane a.
func NewAnalyticSourceOperator(a *analytic.Analytor) *AnalyticSourceOperator {
	return &AnalyticSourceOperator{analytor: a}
}

// Prepare implements the Lifecycle interface.
func (*AnalyticSourceOperator) Prepare(context.Context) error {
	return nil
}

// Open implements the Lifecycle interface.
func (*AnalyticSourceOperator) Open(context.Context) error {
	return nil
}

// Close implements the Lifecycle interface.
func (o *AnalyticSourceOperator) Close() error {
	return o.analytor.Close()
}

// HasOutput returns whether Pull would return a chunk.
func (o *AnalyticSourceOperator) HasOutput() bool {
	return o.analytor.HasOutput()
}

// Pull returns the oldest result chunk, or nil if none is ready.
func (o *AnalyticSourceOperator) Pull(ctx context.Context) *chunk.Chunk {
	span, _ := tracing.ChildSpanFromContext(ctx, "analyticSource.Pull")
	defer span.Finish()
	return o.analytor.PollChunkBuffer()
}

// IsFinished returns whether the sink completed and every result chunk was
// pulled.
func (o *AnalyticSourceOperator) IsFinished() bool {
	// The sink is checked first: once it is complete nothing is offered anymore.
	return o.analytor.IsSinkComplete() && o.analytor.IsChunkBufferEmpty()
}
