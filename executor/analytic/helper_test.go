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
	"math/rand/v2"
	"testing"

	"github.com/pingcap/analytic/expression"
	"github.com/pingcap/analytic/expression/aggregation"
	"github.com/pingcap/analytic/parser/ast"
	"github.com/pingcap/analytic/planner/core"
	"github.com/pingcap/analytic/types"
	"github.com/pingcap/analytic/util/chunk"
	"github.com/stretchr/testify/require"
)

var (
	intTp       = types.NewFieldType(types.ETInt)
	realTp      = types.NewFieldType(types.ETReal)
	childSchema = []*types.FieldType{intTp, intTp, intTp}

	colP = &expression.Column{RetType: intTp, Index: 0, OrigName: "p"}
	colO = &expression.Column{RetType: intTp, Index: 1, OrigName: "o"}
	colV = &expression.Column{RetType: intTp, Index: 2, OrigName: "v"}
)

// testRow is one input row: partition key, order key and a nullable value.
type testRow struct {
	p, o int64
	v    any
}

func desc(name string, retTp *types.FieldType, args ...expression.Expression) *aggregation.WindowFuncDesc {
	return aggregation.NewWindowFuncDesc(name, args, retTp)
}

func intConst(v int64) expression.Expression {
	return expression.NewConstant(types.NewIntDatum(v))
}

func newPlan(descs []*aggregation.WindowFuncDesc, partitionBy, orderBy []expression.Expression, frame *core.WindowFrame) *core.PhysicalWindow {
	p := core.NewPhysicalWindow(childSchema, descs)
	p.ID = 1
	p.PartitionBy = partitionBy
	p.OrderBy = orderBy
	p.Frame = frame
	return p
}

func rowsFrame(start, end *core.FrameBound) *core.WindowFrame {
	return &core.WindowFrame{Type: ast.Rows, Start: start, End: end}
}

func rangeFrame(start, end *core.FrameBound) *core.WindowFrame {
	return &core.WindowFrame{Type: ast.Ranges, Start: start, End: end}
}

// makeChunks splits rows into chunks of the given sizes, the last size is
// repeated for the remaining rows.
func makeChunks(rows []testRow, sizes ...int) []*chunk.Chunk {
	var chunks []*chunk.Chunk
	for i, k := 0, 0; i < len(rows); k++ {
		size := sizes[min(k, len(sizes)-1)]
		end := min(i+size, len(rows))
		chk := chunk.NewChunkWithCapacity(childSchema, end-i)
		for _, r := range rows[i:end] {
			chk.AppendRow(types.MakeDatums(r.p, r.o, r.v)...)
		}
		chunks = append(chunks, chk)
		i = end
	}
	return chunks
}

func randomChunks(rng *rand.Rand, rows []testRow) []*chunk.Chunk {
	var sizes []int
	for n := 0; n < len(rows); {
		size := 1 + rng.IntN(7)
		sizes = append(sizes, size)
		n += size
	}
	return makeChunks(rows, sizes...)
}

// randomRows generates rows sorted by (p, o) with partitions of at most
// maxPartition rows.
func randomRows(rng *rand.Rand, n, maxPartition int) []testRow {
	rows := make([]testRow, 0, n)
	for p := int64(0); len(rows) < n; p++ {
		size := 1 + rng.IntN(maxPartition)
		o := int64(0)
		for range min(size, n-len(rows)) {
			o += int64(rng.IntN(2))
			var v any
			if rng.IntN(10) > 0 {
				v = int64(rng.IntN(100) - 50)
			}
			rows = append(rows, testRow{p: p, o: o, v: v})
		}
	}
	return rows
}

type runOptions struct {
	trimThreshold int64
}

// runWindow feeds chunks to a single lane, evaluating after every chunk,
// and returns every output chunk.
func runWindow(t *testing.T, plan *core.PhysicalWindow, chunks []*chunk.Chunk, opts runOptions) []*chunk.Chunk {
	f := NewAnalytorFactory(1, plan)
	a, err := f.Create(0)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, a.Prepare(ctx))
	require.NoError(t, a.Open(ctx))
	if opts.trimThreshold > 0 {
		a.trimThreshold = opts.trimThreshold
	}

	var outs []*chunk.Chunk
	drain := func() {
		for !a.ReachedLimit() {
			ok, err := a.Evaluate()
			require.NoError(t, err)
			if !ok {
				return
			}
			out, err := a.OutputResultChunk()
			require.NoError(t, err)
			outs = append(outs, out)
		}
	}
	for _, chk := range chunks {
		require.NoError(t, a.AddChunk(chk))
		drain()
	}
	a.SetInputEOS()
	drain()
	require.NoError(t, a.Close())
	require.Zero(t, f.MemTracker().BytesConsumed())
	return outs
}

// resultColumn concatenates column idx of every output chunk.
func resultColumn(outs []*chunk.Chunk, idx int) []types.Datum {
	var res []types.Datum
	for _, out := range outs {
		col := out.Column(idx)
		for i := range col.Len() {
			res = append(res, col.GetDatum(i))
		}
	}
	return res
}

func numRows(outs []*chunk.Chunk) int {
	n := 0
	for _, out := range outs {
		n += out.NumRows()
	}
	return n
}

// requireInts checks datums against expected values, nil means NULL.
func requireInts(t *testing.T, expect []any, got []types.Datum, msgAndArgs ...any) {
	require.Len(t, got, len(expect), msgAndArgs...)
	for i, e := range expect {
		if e == nil {
			require.True(t, got[i].IsNull(), "row %d: want NULL, got %v %v", i, got[i], msgAndArgs)
			continue
		}
		require.False(t, got[i].IsNull(), "row %d: want %v, got NULL %v", i, e, msgAndArgs)
		require.Equal(t, toInt64(e), got[i].GetInt64(), "row %d %v", i, msgAndArgs)
	}
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int64:
		return x
	}
	panic("not an integer")
}

// naiveBounds returns the partition and peer group of row i.
func naiveBounds(rows []testRow, i int, hasOrder bool) (ps, pe, gs, ge int) {
	ps, pe = i, i+1
	for ps > 0 && rows[ps-1].p == rows[i].p {
		ps--
	}
	for pe < len(rows) && rows[pe].p == rows[i].p {
		pe++
	}
	if !hasOrder {
		return ps, pe, ps, pe
	}
	gs, ge = i, i+1
	for gs > ps && rows[gs-1].o == rows[i].o {
		gs--
	}
	for ge < pe && rows[ge].o == rows[i].o {
		ge++
	}
	return ps, pe, gs, ge
}

// naiveFrame recomputes the frame of row i from scratch.
func naiveFrame(rows []testRow, i int, frame *core.WindowFrame, hasOrder bool) (int, int) {
	ps, pe, gs, ge := naiveBounds(rows, i, hasOrder)
	if frame == nil {
		if !hasOrder {
			return ps, pe
		}
		return ps, ge
	}
	var s, e int
	if frame.Type == ast.Ranges {
		s, e = gs, ge
		if frame.Start.UnBounded {
			s = ps
		}
		if frame.End.UnBounded {
			e = pe
		}
		return s, e
	}
	if frame.Start.UnBounded {
		s = ps
	} else {
		s = i + int(frame.Start.Offset())
	}
	if frame.End.UnBounded {
		e = pe
	} else {
		e = i + int(frame.End.Offset()) + 1
	}
	s = min(max(s, ps), pe)
	e = max(min(max(e, ps), pe), s)
	return s, e
}

// naiveAggregate evaluates an aggregate over rows[s:e].
func naiveAggregate(name string, rows []testRow, s, e int) any {
	var (
		res     any
		notNull int64
	)
	for _, r := range rows[s:e] {
		if r.v == nil {
			continue
		}
		v := r.v.(int64)
		notNull++
		switch {
		case res == nil:
			res = v
		case name == ast.AggFuncSum:
			res = res.(int64) + v
		case name == ast.AggFuncMax:
			res = max(res.(int64), v)
		case name == ast.AggFuncMin:
			res = min(res.(int64), v)
		}
	}
	switch name {
	case ast.AggFuncCount:
		return notNull
	case ast.WindowFuncFirstValue:
		if s == e {
			return nil
		}
		return rows[s].v
	case ast.WindowFuncLastValue:
		if s == e {
			return nil
		}
		return rows[e-1].v
	}
	return res
}
