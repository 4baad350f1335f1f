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
	"math"
	"testing"
	"unsafe"

	"github.com/pingcap/analytic/expression"
	"github.com/pingcap/analytic/expression/aggregation"
	"github.com/pingcap/analytic/parser/ast"
	"github.com/pingcap/analytic/types"
	"github.com/pingcap/analytic/util/chunk"
	"github.com/stretchr/testify/require"
)

var (
	intTp  = types.NewFieldType(types.ETInt)
	realTp = types.NewFieldType(types.ETReal)
	strTp  = types.NewFieldType(types.ETString)
)

func intArg() expression.Expression {
	return &expression.Column{RetType: intTp, Index: 0, OrigName: "a"}
}

func newPartialResult(f AggFunc) PartialResult {
	buf := make([]uint64, max(1, (f.StateSize()+7)/8))
	return PartialResult(unsafe.Pointer(&buf[0]))
}

func buildFunc(t *testing.T, name string, args []expression.Expression, retTp *types.FieldType) (AggFunc, *FuncContext) {
	desc := aggregation.NewWindowFuncDesc(name, args, retTp)
	f, err := Build(desc)
	require.NoError(t, err)
	fctx, err := NewFuncContext(desc)
	require.NoError(t, err)
	return f, fctx
}

// intColumn builds an int column, a nil element is NULL.
func intColumn(vals ...any) *chunk.Column {
	col := chunk.NewColumn(intTp, len(vals))
	for _, v := range vals {
		d := types.NewDatum(v)
		col.AppendDatum(&d)
	}
	return col
}

func finalDatum(t *testing.T, f AggFunc, fctx *FuncContext, in *Input, pr PartialResult) *types.Datum {
	dst := chunk.NewColumn(fctx.RetType, 1)
	require.NoError(t, f.AppendFinalResult2Column(fctx, in, pr, dst, 1))
	require.Equal(t, 1, dst.Len())
	d := dst.GetDatum(0)
	return &d
}

func TestSlidingEqualsRecompute(t *testing.T) {
	vals := []any{5, nil, 3, -2, 8, 8, nil, nil, 1, 0, 7, -9, 4, 4, 2, nil, 6, 3, -1, 10}
	in := &Input{Args: []*chunk.Column{intColumn(vals...)}, Base: 0}
	n := int64(len(vals))

	funcs := []struct {
		name  string
		retTp *types.FieldType
	}{
		{ast.AggFuncSum, intTp},
		{ast.AggFuncCount, intTp},
		{ast.AggFuncAvg, realTp},
		{ast.WindowFuncFirstValue, intTp},
		{ast.WindowFuncLastValue, intTp},
	}
	for _, fn := range funcs {
		f, fctx := buildFunc(t, fn.name, []expression.Expression{intArg()}, fn.retTp)
		sf, ok := f.(SlidingWindowAggFunc)
		require.True(t, ok, fn.name)

		incr := newPartialResult(f)
		naive := newPartialResult(f)
		f.Create(fctx, incr)
		f.Create(fctx, naive)
		var lastStart, lastEnd int64
		for cur := range n {
			// ROWS BETWEEN 2 PRECEDING AND 1 FOLLOWING
			start, end := max(0, cur-2), min(n, cur+2)
			require.NoError(t, f.UpdateBatch(fctx, in, incr, &Window{FrameStart: lastEnd, FrameEnd: end}))
			require.NoError(t, sf.RetractBatch(fctx, in, incr, lastStart, start))
			lastStart, lastEnd = start, end

			f.Reset(fctx, naive)
			require.NoError(t, f.UpdateBatch(fctx, in, naive, &Window{FrameStart: start, FrameEnd: end}))
			require.Equal(t, finalDatum(t, f, fctx, in, naive), finalDatum(t, f, fctx, in, incr), "%s at row %d", fn.name, cur)
		}
		f.Destroy(fctx, incr)
		f.Destroy(fctx, naive)
	}
}

func TestSumAndAvg(t *testing.T) {
	in := &Input{Args: []*chunk.Column{intColumn(1, 2, nil, 4)}, Base: 10}
	f, fctx := buildFunc(t, ast.AggFuncSum, []expression.Expression{intArg()}, intTp)
	pr := newPartialResult(f)
	f.Create(fctx, pr)
	require.True(t, finalDatum(t, f, fctx, in, pr).IsNull())
	require.NoError(t, f.UpdateBatch(fctx, in, pr, &Window{FrameStart: 10, FrameEnd: 14}))
	require.Equal(t, int64(7), finalDatum(t, f, fctx, in, pr).GetInt64())

	f, fctx = buildFunc(t, ast.AggFuncAvg, []expression.Expression{intArg()}, realTp)
	pr = newPartialResult(f)
	f.Create(fctx, pr)
	require.NoError(t, f.UpdateBatch(fctx, in, pr, &Window{FrameStart: 10, FrameEnd: 14}))
	require.InDelta(t, 7.0/3, finalDatum(t, f, fctx, in, pr).GetFloat64(), 1e-9)

	f, fctx = buildFunc(t, ast.AggFuncCount, nil, intTp)
	pr = newPartialResult(f)
	f.Create(fctx, pr)
	require.NoError(t, f.UpdateBatch(fctx, in, pr, &Window{FrameStart: 10, FrameEnd: 14}))
	require.Equal(t, int64(4), finalDatum(t, f, fctx, in, pr).GetInt64())
}

func TestSumOverflow(t *testing.T) {
	in := &Input{Args: []*chunk.Column{intColumn(int64(math.MaxInt64), 1)}}
	f, fctx := buildFunc(t, ast.AggFuncSum, []expression.Expression{intArg()}, intTp)
	pr := newPartialResult(f)
	f.Create(fctx, pr)
	err := f.UpdateBatch(fctx, in, pr, &Window{FrameStart: 0, FrameEnd: 2})
	require.Error(t, err)
	require.True(t, ErrOverflow.Equal(err))
}

func TestMaxMin(t *testing.T) {
	col := chunk.NewColumn(strTp, 4)
	col.AppendString("pear")
	col.AppendNull()
	col.AppendString("apple")
	col.AppendString("zoo")
	in := &Input{Args: []*chunk.Column{col}}
	arg := &expression.Column{RetType: strTp, Index: 0}

	f, fctx := buildFunc(t, ast.AggFuncMax, []expression.Expression{arg}, strTp)
	_, retractable := f.(SlidingWindowAggFunc)
	require.False(t, retractable)
	pr := newPartialResult(f)
	f.Create(fctx, pr)
	require.True(t, finalDatum(t, f, fctx, in, pr).IsNull())
	require.NoError(t, f.UpdateBatch(fctx, in, pr, &Window{FrameStart: 0, FrameEnd: 3}))
	require.Equal(t, "pear", finalDatum(t, f, fctx, in, pr).GetString())
	require.NoError(t, f.UpdateBatch(fctx, in, pr, &Window{FrameStart: 3, FrameEnd: 4}))
	require.Equal(t, "zoo", finalDatum(t, f, fctx, in, pr).GetString())

	f, fctx = buildFunc(t, ast.AggFuncMin, []expression.Expression{arg}, strTp)
	pr = newPartialResult(f)
	f.Create(fctx, pr)
	require.NoError(t, f.UpdateBatch(fctx, in, pr, &Window{FrameStart: 0, FrameEnd: 4}))
	require.Equal(t, "apple", finalDatum(t, f, fctx, in, pr).GetString())
}

func TestRankingFunctions(t *testing.T) {
	// One partition [0, 6) with peer groups [0, 2) [2, 3) [3, 6).
	peerGroups := [][2]int64{{0, 2}, {0, 2}, {2, 3}, {3, 6}, {3, 6}, {3, 6}}
	tests := []struct {
		name   string
		args   []expression.Expression
		retTp  *types.FieldType
		expect []any
	}{
		{ast.WindowFuncRowNumber, nil, intTp, []any{1, 2, 3, 4, 5, 6}},
		{ast.WindowFuncRank, nil, intTp, []any{1, 1, 3, 4, 4, 4}},
		{ast.WindowFuncDenseRank, nil, intTp, []any{1, 1, 2, 3, 3, 3}},
		{ast.WindowFuncPercentRank, nil, realTp, []any{0.0, 0.0, 0.4, 0.6, 0.6, 0.6}},
		{ast.WindowFuncCumeDist, nil, realTp, []any{2.0 / 6, 2.0 / 6, 0.5, 1.0, 1.0, 1.0}},
		{ast.WindowFuncNtile, []expression.Expression{expression.NewConstant(types.NewIntDatum(4))}, intTp, []any{1, 1, 2, 2, 3, 4}},
	}
	for _, tt := range tests {
		f, fctx := buildFunc(t, tt.name, tt.args, tt.retTp)
		require.Equal(t, ClassRanking, f.Class())
		pr := newPartialResult(f)
		f.Create(fctx, pr)
		dst := chunk.NewColumn(tt.retTp, 6)
		for cur, pg := range peerGroups {
			w := &Window{
				PartitionStart: 0, PartitionEnd: 6,
				PeerGroupStart: pg[0], PeerGroupEnd: pg[1],
				CurrentRow: int64(cur),
			}
			require.NoError(t, f.UpdateBatch(fctx, nil, pr, w))
			require.NoError(t, f.AppendFinalResult2Column(fctx, nil, pr, dst, 1))
		}
		for i, e := range tt.expect {
			d := dst.GetDatum(i)
			if tt.retTp.EvalType() == types.ETReal {
				require.InDelta(t, e.(float64), d.GetFloat64(), 1e-9, "%s row %d", tt.name, i)
				continue
			}
			require.Equal(t, int64(e.(int)), d.GetInt64(), "%s row %d", tt.name, i)
		}
		_, materializing := f.(PartitionMaterializer)
		switch tt.name {
		case ast.WindowFuncPercentRank, ast.WindowFuncCumeDist, ast.WindowFuncNtile:
			require.True(t, materializing, tt.name)
		default:
			require.False(t, materializing, tt.name)
		}
	}
}

func TestNtileBucket(t *testing.T) {
	// 7 rows into 3 buckets: 3, 2, 2.
	expect := []int64{1, 1, 1, 2, 2, 3, 3}
	for r, e := range expect {
		require.Equal(t, e, ntileBucket(int64(r), 7, 3))
	}
	// More buckets than rows.
	for r := range int64(3) {
		require.Equal(t, r+1, ntileBucket(r, 3, 5))
	}
}

func TestLeadLag(t *testing.T) {
	in := &Input{Args: []*chunk.Column{intColumn(10, 20, 30)}, Base: 0}
	args := []expression.Expression{
		intArg(),
		expression.NewConstant(types.NewIntDatum(2)),
		expression.NewConstant(types.NewStringDatum("-1")),
	}
	f, fctx := buildFunc(t, ast.WindowFuncLead, args, intTp)
	require.Equal(t, ClassOffset, f.Class())
	require.Equal(t, int64(2), f.(OffsetFunc).Offset())
	require.Equal(t, int64(-1), fctx.Default.GetInt64())

	pr := newPartialResult(f)
	f.Create(fctx, pr)
	dst := chunk.NewColumn(intTp, 3)
	for cur := range int64(3) {
		w := &Window{PartitionStart: 0, PartitionEnd: 3, CurrentRow: cur}
		require.NoError(t, f.UpdateBatch(fctx, in, pr, w))
		require.NoError(t, f.AppendFinalResult2Column(fctx, in, pr, dst, 1))
	}
	require.Equal(t, int64(30), dst.GetInt64(0))
	require.Equal(t, int64(-1), dst.GetInt64(1))
	require.Equal(t, int64(-1), dst.GetInt64(2))

	f, fctx = buildFunc(t, ast.WindowFuncLag, args[:1], intTp)
	require.Equal(t, int64(-1), f.(OffsetFunc).Offset())
	pr = newPartialResult(f)
	f.Create(fctx, pr)
	dst = chunk.NewColumn(intTp, 3)
	for cur := range int64(3) {
		w := &Window{PartitionStart: 0, PartitionEnd: 3, CurrentRow: cur}
		require.NoError(t, f.UpdateBatch(fctx, in, pr, w))
		require.NoError(t, f.AppendFinalResult2Column(fctx, in, pr, dst, 1))
	}
	require.True(t, dst.IsNull(0))
	require.Equal(t, int64(10), dst.GetInt64(1))
	require.Equal(t, int64(20), dst.GetInt64(2))
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(aggregation.NewWindowFuncDesc("median", nil, intTp))
	require.True(t, ErrUnsupportedWindowFunc.Equal(err))

	_, err = Build(aggregation.NewWindowFuncDesc(ast.AggFuncSum, nil, intTp))
	require.True(t, ErrInvalidArgs.Equal(err))

	_, err = Build(aggregation.NewWindowFuncDesc(ast.AggFuncSum, []expression.Expression{intArg()}, realTp))
	require.True(t, ErrInvalidArgs.Equal(err))

	_, err = Build(aggregation.NewWindowFuncDesc(ast.WindowFuncNtile, []expression.Expression{intArg()}, intTp))
	require.True(t, ErrInvalidArgs.Equal(err))

	_, err = Build(aggregation.NewWindowFuncDesc(ast.WindowFuncNtile,
		[]expression.Expression{expression.NewConstant(types.NewIntDatum(0))}, intTp))
	require.True(t, ErrInvalidArgs.Equal(err))

	_, err = Build(aggregation.NewWindowFuncDesc(ast.WindowFuncLag,
		[]expression.Expression{intArg(), expression.NewConstant(types.NewIntDatum(-1))}, intTp))
	require.True(t, ErrInvalidArgs.Equal(err))
}

func TestInputArgs(t *testing.T) {
	lead := aggregation.NewWindowFuncDesc(ast.WindowFuncLead,
		[]expression.Expression{intArg(), expression.NewConstant(types.NewIntDatum(1))}, intTp)
	require.Len(t, InputArgs(lead), 1)
	nt := aggregation.NewWindowFuncDesc(ast.WindowFuncNtile,
		[]expression.Expression{expression.NewConstant(types.NewIntDatum(2))}, intTp)
	require.Empty(t, InputArgs(nt))
}
