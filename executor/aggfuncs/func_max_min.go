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

// partialResult4MaxMin keeps the position of the current extreme row instead
// of its value, so the state stays fixed size for every input type.
type partialResult4MaxMin struct {
	pos    int64
	isNull bool
}

// DefPartialResult4MaxMinSize is the size of partialResult4MaxMin
const DefPartialResult4MaxMinSize = unsafe.Sizeof(partialResult4MaxMin{})

// maxMin implements MAX and MIN for every evaluation type. Removing a row may
// require a rescan of the frame, so it does not implement RetractBatch and a
// moving frame start makes the window recompute it.
type maxMin struct {
	baseAggFunc
	isMax bool
}

func (*maxMin) StateSize() uintptr  { return DefPartialResult4MaxMinSize }
func (*maxMin) StateAlign() uintptr { return unsafe.Alignof(partialResult4MaxMin{}) }

func (e *maxMin) Create(fctx *FuncContext, pr PartialResult) {
	e.Reset(fctx, pr)
}

func (*maxMin) Reset(_ *FuncContext, pr PartialResult) {
	*(*partialResult4MaxMin)(pr) = partialResult4MaxMin{isNull: true}
}

func (e *maxMin) UpdateBatch(_ *FuncContext, in *Input, pr PartialResult, w *Window) error {
	p := (*partialResult4MaxMin)(pr)
	col := in.Args[0]
	for pos := w.FrameStart; pos < w.FrameEnd; pos++ {
		i := in.Row(pos)
		if col.IsNull(i) {
			continue
		}
		if p.isNull {
			p.pos, p.isNull = pos, false
			continue
		}
		cmp := col.CompareAt(i, col, in.Row(p.pos))
		if (e.isMax && cmp > 0) || (!e.isMax && cmp < 0) {
			p.pos = pos
		}
	}
	return nil
}

func (*maxMin) AppendFinalResult2Column(_ *FuncContext, in *Input, pr PartialResult, dst *chunk.Column, n int) error {
	p := (*partialResult4MaxMin)(pr)
	if p.isNull {
		appendNullRepeated(dst, n)
		return nil
	}
	appendRowRepeated(dst, in.Args[0], in.Row(p.pos), n)
	return nil
}
