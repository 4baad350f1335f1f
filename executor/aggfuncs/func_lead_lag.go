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

type partialResult4LeadLag struct {
	target     int64
	useDefault bool
}

// DefPartialResult4LeadLagSize is the size of partialResult4LeadLag
const DefPartialResult4LeadLagSize = unsafe.Sizeof(partialResult4LeadLag{})

// leadLag implements LEAD (positive offset) and LAG (negative offset).
type leadLag struct {
	baseAggFunc
	offset int64
}

func (*leadLag) Class() FuncClass { return ClassOffset }

func (e *leadLag) Offset() int64 { return e.offset }

func (*leadLag) StateSize() uintptr  { return DefPartialResult4LeadLagSize }
func (*leadLag) StateAlign() uintptr { return unsafe.Alignof(partialResult4LeadLag{}) }

func (e *leadLag) Create(fctx *FuncContext, pr PartialResult) {
	e.Reset(fctx, pr)
}

func (*leadLag) Reset(_ *FuncContext, pr PartialResult) {
	*(*partialResult4LeadLag)(pr) = partialResult4LeadLag{useDefault: true}
}

func (e *leadLag) UpdateBatch(_ *FuncContext, _ *Input, pr PartialResult, w *Window) error {
	p := (*partialResult4LeadLag)(pr)
	p.target = w.CurrentRow + e.offset
	p.useDefault = p.target < w.PartitionStart || p.target >= w.PartitionEnd
	return nil
}

func (*leadLag) AppendFinalResult2Column(fctx *FuncContext, in *Input, pr PartialResult, dst *chunk.Column, n int) error {
	p := (*partialResult4LeadLag)(pr)
	if p.useDefault {
		dst.AppendRepeatedDatum(&fctx.Default, n)
		return nil
	}
	appendRowRepeated(dst, in.Args[0], in.Row(p.target), n)
	return nil
}
