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

// partialResult4Value tracks the contiguous range of rows in the frame.
type partialResult4Value struct {
	start int64
	end   int64
}

// DefPartialResult4ValueSize is the size of partialResult4Value
const DefPartialResult4ValueSize = unsafe.Sizeof(partialResult4Value{})

type baseValue struct {
	baseAggFunc
}

func (*baseValue) StateSize() uintptr  { return DefPartialResult4ValueSize }
func (*baseValue) StateAlign() uintptr { return unsafe.Alignof(partialResult4Value{}) }

func (*baseValue) Create(_ *FuncContext, pr PartialResult) {
	*(*partialResult4Value)(pr) = partialResult4Value{}
}

func (*baseValue) Reset(_ *FuncContext, pr PartialResult) {
	*(*partialResult4Value)(pr) = partialResult4Value{}
}

func (*baseValue) UpdateBatch(_ *FuncContext, _ *Input, pr PartialResult, w *Window) error {
	p := (*partialResult4Value)(pr)
	if w.FrameStart >= w.FrameEnd {
		return nil
	}
	if p.start == p.end {
		p.start = w.FrameStart
	}
	p.end = w.FrameEnd
	return nil
}

func (*baseValue) RetractBatch(_ *FuncContext, _ *Input, pr PartialResult, _, end int64) error {
	p := (*partialResult4Value)(pr)
	p.start = min(max(p.start, end), p.end)
	return nil
}

type firstValue struct {
	baseValue
}

func (*firstValue) AppendFinalResult2Column(_ *FuncContext, in *Input, pr PartialResult, dst *chunk.Column, n int) error {
	p := (*partialResult4Value)(pr)
	if p.start == p.end {
		appendNullRepeated(dst, n)
		return nil
	}
	appendRowRepeated(dst, in.Args[0], in.Row(p.start), n)
	return nil
}

type lastValue struct {
	baseValue
}

func (*lastValue) AppendFinalResult2Column(_ *FuncContext, in *Input, pr PartialResult, dst *chunk.Column, n int) error {
	p := (*partialResult4Value)(pr)
	if p.start == p.end {
		appendNullRepeated(dst, n)
		return nil
	}
	appendRowRepeated(dst, in.Args[0], in.Row(p.end-1), n)
	return nil
}
