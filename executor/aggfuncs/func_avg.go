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

type partialResult4AvgNumber struct {
	sum   float64
	count int64
}

// DefPartialResult4AvgNumberSize is the size of partialResult4AvgNumber
const DefPartialResult4AvgNumberSize = unsafe.Sizeof(partialResult4AvgNumber{})

// avg4Number computes AVG over INT or REAL input, the result is REAL.
type avg4Number struct {
	baseAggFunc
	argTp types.EvalType
}

func (*avg4Number) StateSize() uintptr  { return DefPartialResult4AvgNumberSize }
func (*avg4Number) StateAlign() uintptr { return unsafe.Alignof(partialResult4AvgNumber{}) }

func (e *avg4Number) Create(fctx *FuncContext, pr PartialResult) {
	e.Reset(fctx, pr)
}

func (*avg4Number) Reset(_ *FuncContext, pr PartialResult) {
	*(*partialResult4AvgNumber)(pr) = partialResult4AvgNumber{}
}

func (e *avg4Number) value(col *chunk.Column, i int) float64 {
	if e.argTp == types.ETInt {
		return float64(col.GetInt64(i))
	}
	return col.GetFloat64(i)
}

func (e *avg4Number) UpdateBatch(_ *FuncContext, in *Input, pr PartialResult, w *Window) error {
	p := (*partialResult4AvgNumber)(pr)
	col := in.Args[0]
	for i := in.Row(w.FrameStart); i < in.Row(w.FrameEnd); i++ {
		if col.IsNull(i) {
			continue
		}
		p.sum += e.value(col, i)
		p.count++
	}
	return nil
}

func (e *avg4Number) RetractBatch(_ *FuncContext, in *Input, pr PartialResult, start, end int64) error {
	p := (*partialResult4AvgNumber)(pr)
	col := in.Args[0]
	for i := in.Row(start); i < in.Row(end); i++ {
		if col.IsNull(i) {
			continue
		}
		p.sum -= e.value(col, i)
		p.count--
	}
	return nil
}

func (*avg4Number) AppendFinalResult2Column(_ *FuncContext, _ *Input, pr PartialResult, dst *chunk.Column, n int) error {
	p := (*partialResult4AvgNumber)(pr)
	for range n {
		if p.count == 0 {
			dst.AppendNull()
			continue
		}
		dst.AppendFloat64(p.sum / float64(p.count))
	}
	return nil
}
