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
	"github.com/pingcap/analytic/metrics"
	"github.com/pingcap/analytic/util/chunk"
	"github.com/pingcap/analytic/util/logutil"
	"github.com/pingcap/analytic/util/tracing"
	"github.com/pingcap/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ChunkReader returns the sorted input of one lane. Next returns nil once
// the input is exhausted.
type ChunkReader interface {
	Next(ctx context.Context) (*chunk.Chunk, error)
}

// ChunkWriter consumes the result chunks of one lane.
type ChunkWriter func(ctx context.Context, chk *chunk.Chunk) error

// SliceReader reads chunks from a slice.
type SliceReader struct {
	chunks []*chunk.Chunk
}

// NewSliceReader creates a reader returning chunks in order.
func NewSliceReader(chunks []*chunk.Chunk) *SliceReader {
	return &SliceReader{chunks: chunks}
}

// Next implements the ChunkReader interface.
func (r *SliceReader) Next(context.Context) (*chunk.Chunk, error) {
	if len(r.chunks) == 0 {
		return nil, nil
	}
	chk := r.chunks[0]
	r.chunks = r.chunks[1:]
	return chk, nil
}

// notify wakes up the goroutine waiting on ch without blocking.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func wait(ctx context.Context, ch chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunLane runs the lane a: one goroutine pushes the input of reader to the
// sink while another pulls the results from the source and hands them to
// writer. The operators are closed before RunLane returns.
func RunLane(ctx context.Context, a *analytic.Analytor, reader ChunkReader, writer ChunkWriter) (err error) {
	span, ctx := tracing.ChildSpanFromContext(ctx, "analytic.RunLane")
	defer span.Finish()
	ctx = logutil.WithLane(ctx, a.PlanID(), a.Lane())
	sink, source := NewAnalyticSinkOperator(a), NewAnalyticSourceOperator(a)
	ops := []Lifecycle{sink, source}
	defer func() {
		for _, op := range ops {
			err = multierr.Append(err, op.Close())
		}
		if err != nil {
			metrics.WindowLaneCounter.WithLabelValues(metrics.LblError).Inc()
			logutil.Logger(ctx).Warn("window lane failed", zap.Error(err))
			return
		}
		metrics.WindowLaneCounter.WithLabelValues(metrics.LblOK).Inc()
	}()
	for _, op := range ops {
		if err = op.Prepare(ctx); err != nil {
			return err
		}
	}
	for _, op := range ops {
		if err = op.Open(ctx); err != nil {
			return err
		}
	}

	// outputReady is signaled when the sink offered results or completed,
	// spaceReady when the source drained the output buffer.
	outputReady, spaceReady := make(chan struct{}, 1), make(chan struct{}, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer notify(outputReady)
		for !sink.IsFinished() {
			if !sink.NeedInput() {
				if err := wait(gctx, spaceReady); err != nil {
					return err
				}
				continue
			}
			chk, err := reader.Next(gctx)
			if err != nil {
				return errors.Trace(err)
			}
			if chk == nil {
				return sink.SetFinishing(gctx)
			}
			if err = sink.Push(gctx, chk); err != nil {
				return err
			}
			notify(outputReady)
		}
		return nil
	})
	g.Go(func() error {
		for {
			if source.HasOutput() {
				chk := source.Pull(gctx)
				notify(spaceReady)
				if err := writer(gctx, chk); err != nil {
					return err
				}
				continue
			}
			if source.IsFinished() {
				return nil
			}
			if err := wait(gctx, outputReady); err != nil {
				return err
			}
		}
	})
	return g.Wait()
}

// Run runs every lane of f, lane i reading from readers[i].
func Run(ctx context.Context, f *analytic.AnalytorFactory, readers []ChunkReader, writer func(ctx context.Context, lane int, chk *chunk.Chunk) error) error {
	if len(readers) != f.DOP() {
		return errors.Errorf("%d readers for %d window lanes", len(readers), f.DOP())
	}
	lanes := make([]*analytic.Analytor, len(readers))
	for i := range lanes {
		a, err := f.Create(i)
		if err != nil {
			return err
		}
		lanes[i] = a
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range lanes {
		g.Go(func() error {
			return RunLane(gctx, a, readers[i], func(ctx context.Context, chk *chunk.Chunk) error {
				return writer(ctx, i, chk)
			})
		})
	}
	return g.Wait()
}
