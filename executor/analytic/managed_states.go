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
	"unsafe"

	"github.com/pingcap/analytic/executor/aggfuncs"
)

// maxStateAlign is the alignment guaranteed by the state row allocation.
const maxStateAlign = unsafe.Alignof(uint64(0))

// functionStateLayout exposes the packed state layout of a lane. Only the
// state arena uses it.
type functionStateLayout interface {
	stateFuncs() []aggfuncs.AggFunc
	stateOffsets() []uintptr
	stateRowSize() uintptr
}

// ManagedFunctionStates owns the state row of a lane. Creating it creates
// every function state; Release destroys them in declaration order.
type ManagedFunctionStates struct {
	ctxs   []*aggfuncs.FuncContext
	layout functionStateLayout
	data   []uint64
}

func newManagedFunctionStates(ctxs []*aggfuncs.FuncContext, layout functionStateLayout) *ManagedFunctionStates {
	words := max(1, (layout.stateRowSize()+maxStateAlign-1)/maxStateAlign)
	m := &ManagedFunctionStates{
		ctxs:   ctxs,
		layout: layout,
		data:   make([]uint64, words),
	}
	for i, f := range layout.stateFuncs() {
		f.Create(ctxs[i], m.State(i))
	}
	return m
}

// State returns the partial result of function i.
func (m *ManagedFunctionStates) State(i int) aggfuncs.PartialResult {
	return aggfuncs.PartialResult(unsafe.Add(unsafe.Pointer(&m.data[0]), m.layout.stateOffsets()[i]))
}

// Data returns the state row, or nil after Release.
func (m *ManagedFunctionStates) Data() []uint64 {
	return m.data
}

// Release destroys every function state. It is a no-op when called again.
func (m *ManagedFunctionStates) Release() {
	if m.data == nil {
		return
	}
	for i, f := range m.layout.stateFuncs() {
		f.Destroy(m.ctxs[i], m.State(i))
	}
	m.data = nil
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

// computeStateLayout places the state of every function at an offset aligned
// for it and rounds the row size up to the largest alignment.
func computeStateLayout(funcs []aggfuncs.AggFunc, names []string) (offsets []uintptr, rowSize, rowAlign uintptr, err error) {
	offsets = make([]uintptr, len(funcs))
	rowAlign = 1
	for i, f := range funcs {
		align := max(f.StateAlign(), 1)
		if align > maxStateAlign {
			return nil, 0, 0, ErrStateAlignment.GenWithStackByArgs(align, names[i], maxStateAlign)
		}
		rowSize = alignUp(rowSize, align)
		offsets[i] = rowSize
		rowSize += f.StateSize()
		rowAlign = max(rowAlign, align)
	}
	return offsets, alignUp(rowSize, rowAlign), rowAlign, nil
}
