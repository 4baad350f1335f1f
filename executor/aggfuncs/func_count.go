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

	"github.com/pingcap/analytic/util/chunk"
)

type partialResult4Count = int64

// DefPartialResult4CountSize is the size of partialResult4Count
const DefPartialResult4CountSize = unsafe.Sizeof(partialResult4Count(0))

// count implements COUNT(*) when it has no argument and COUNT(expr) otherwise.
type count struct {
	baseAggFunc
	countStar bool
}

func (*count) StateSize() uintptr  { return DefPartialResult4CountSize }
func (*count) StateAlign() uintptr { return unsafe.Alignof(partialResult4Count(0)) }

func (e *count) Create(fctx *FuncContext, pr PartialResult) {
	e.Reset(fctx, pr)
}

func (*count) Reset(_ *FuncContext, pr PartialResult) {
	*(*partialResult4Count)(pr) = 0
}

func (e *count) countRows(in *Input, start, end int64) int64 {
	if e.countStar {
		return end - start
	}
	col := in.Args[0]
	var n int64
	for i := in.Row(start); i < in.Row(end); i++ {
		if !col.IsNull(i) {
			n++
		}
	}
	return n
}

func (e *count) UpdateBatch(_ *FuncContext, in *Input, pr PartialResult, w *Window) error {
	p := (*partialResult4Count)(pr)
	*p += e.countRows(in, w.FrameStart, w.FrameEnd)
	return nil
}

func (e *count) RetractBatch(_ *FuncContext, in *Input, pr PartialResult, start, end int64) error {
	p := (*partialResult4Count)(pr)
	*p -= e.countRows(in, start, end)
	return nil
}

func (*count) AppendFinalResult2Column(_ *FuncContext, _ *Input, pr PartialResult, dst *chunk.Column, n int) error {
	p := (*partialResult4Count)(pr)
	for range n {
		dst.AppendInt64(*p)
	}
	return nil
}
