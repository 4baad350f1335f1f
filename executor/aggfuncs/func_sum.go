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
	"fmt"
	"math"
	"unsafe"

	"github.com/pingcap/analytic/util/chunk"
)

type partialResult4SumInt struct {
	val             int64
	notNullRowCount int64
}

type partialResult4SumReal struct {
	val             float64
	notNullRowCount int64
}

const (
	// DefPartialResult4SumIntSize is the size of partialResult4SumInt
	DefPartialResult4SumIntSize = unsafe.Sizeof(partialResult4SumInt{})
	// DefPartialResult4SumRealSize is the size of partialResult4SumReal
	DefPartialResult4SumRealSize = unsafe.Sizeof(partialResult4SumReal{})
)

type sum4Int struct {
	baseAggFunc
}

func (*sum4Int) StateSize() uintptr  { return DefPartialResult4SumIntSize }
func (*sum4Int) StateAlign() uintptr { return unsafe.Alignof(partialResult4SumInt{}) }

func (e *sum4Int) Create(fctx *FuncContext, pr PartialResult) {
	e.Reset(fctx, pr)
}

func (*sum4Int) Reset(_ *FuncContext, pr PartialResult) {
	*(*partialResult4SumInt)(pr) = partialResult4SumInt{}
}

func (*sum4Int) UpdateBatch(_ *FuncContext, in *Input, pr PartialResult, w *Window) (err error) {
	p := (*partialResult4SumInt)(pr)
	col := in.Args[0]
	for i := in.Row(w.FrameStart); i < in.Row(w.FrameEnd); i++ {
		if col.IsNull(i) {
			continue
		}
		if p.val, err = addInt64(p.val, col.GetInt64(i)); err != nil {
			return err
		}
		p.notNullRowCount++
	}
	return nil
}

func (*sum4Int) RetractBatch(_ *FuncContext, in *Input, pr PartialResult, start, end int64) (err error) {
	p := (*partialResult4SumInt)(pr)
	col := in.Args[0]
	for i := in.Row(start); i < in.Row(end); i++ {
		if col.IsNull(i) {
			continue
		}
		if p.val, err = subInt64(p.val, col.GetInt64(i)); err != nil {
			return err
		}
		p.notNullRowCount--
	}
	return nil
}

func (*sum4Int) AppendFinalResult2Column(_ *FuncContext, _ *Input, pr PartialResult, dst *chunk.Column, count int) error {
	p := (*partialResult4SumInt)(pr)
	for range count {
		if p.notNullRowCount == 0 {
			dst.AppendNull()
			continue
		}
		dst.AppendInt64(p.val)
	}
	return nil
}

type sum4Real struct {
	baseAggFunc
}

func (*sum4Real) StateSize() uintptr  { return DefPartialResult4SumRealSize }
func (*sum4Real) StateAlign() uintptr { return unsafe.Alignof(partialResult4SumReal{}) }

func (e *sum4Real) Create(fctx *FuncContext, pr PartialResult) {
	e.Reset(fctx, pr)
}

func (*sum4Real) Reset(_ *FuncContext, pr PartialResult) {
	*(*partialResult4SumReal)(pr) = partialResult4SumReal{}
}

func (*sum4Real) UpdateBatch(_ *FuncContext, in *Input, pr PartialResult, w *Window) error {
	p := (*partialResult4SumReal)(pr)
	col := in.Args[0]
	for i := in.Row(w.FrameStart); i < in.Row(w.FrameEnd); i++ {
		if col.IsNull(i) {
			continue
		}
		p.val += col.GetFloat64(i)
		p.notNullRowCount++
	}
	return nil
}

func (*sum4Real) RetractBatch(_ *FuncContext, in *Input, pr PartialResult, start, end int64) error {
	p := (*partialResult4SumReal)(pr)
	col := in.Args[0]
	for i := in.Row(start); i < in.Row(end); i++ {
		if col.IsNull(i) {
			continue
		}
		p.val -= col.GetFloat64(i)
		p.notNullRowCount--
	}
	return nil
}

func (*sum4Real) AppendFinalResult2Column(_ *FuncContext, _ *Input, pr PartialResult, dst *chunk.Column, count int) error {
	p := (*partialResult4SumReal)(pr)
	for range count {
		if p.notNullRowCount == 0 {
			dst.AppendNull()
			continue
		}
		dst.AppendFloat64(p.val)
	}
	return nil
}

func addInt64(a, b int64) (int64, error) {
	if (a > 0 && b > math.MaxInt64-a) || (a < 0 && b < math.MinInt64-a) {
		return 0, ErrOverflow.GenWithStackByArgs("BIGINT", fmt.Sprintf("(%d + %d)", a, b))
	}
	return a + b, nil
}

func subInt64(a, b int64) (int64, error) {
	if (b > 0 && a < math.MinInt64+b) || (b < 0 && a > math.MaxInt64+b) {
		return 0, ErrOverflow.GenWithStackByArgs("BIGINT", fmt.Sprintf("(%d - %d)", a, b))
	}
	return a - b, nil
}
