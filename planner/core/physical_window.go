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

package core

import (
	"fmt"
	"strings"

	"github.com/pingcap/analytic/expression"
	"github.com/pingcap/analytic/expression/aggregation"
	"github.com/pingcap/analytic/parser/ast"
	"github.com/pingcap/analytic/types"
)

// FrameBound is the boundary of a frame.
type FrameBound struct {
	Type      ast.BoundType
	UnBounded bool
	Num       uint64
}

// Offset returns the signed row offset of the bound relative to the current
// row. It is only meaningful for bounded ROWS frames.
func (fb *FrameBound) Offset() int64 {
	switch fb.Type {
	case ast.Preceding:
		return -int64(fb.Num)
	case ast.Following:
		return int64(fb.Num)
	}
	return 0
}

// String implements fmt.Stringer interface.
func (fb *FrameBound) String() string {
	switch {
	case fb.Type == ast.CurrentRow:
		return "current row"
	case fb.UnBounded:
		return "unbounded " + strings.ToLower(fb.Type.String())
	}
	return fmt.Sprintf("%d %s", fb.Num, strings.ToLower(fb.Type.String()))
}

// WindowFrame represents a window function frame.
type WindowFrame struct {
	Type  ast.FrameType
	Start *FrameBound
	End   *FrameBound
}

// String implements fmt.Stringer interface.
func (wf *WindowFrame) String() string {
	return fmt.Sprintf("%s between %s and %s", strings.ToLower(wf.Type.String()), wf.Start, wf.End)
}

// UnboundedPreceding returns the bound `UNBOUNDED PRECEDING`.
func UnboundedPreceding() *FrameBound {
	return &FrameBound{Type: ast.Preceding, UnBounded: true}
}

// UnboundedFollowing returns the bound `UNBOUNDED FOLLOWING`.
func UnboundedFollowing() *FrameBound {
	return &FrameBound{Type: ast.Following, UnBounded: true}
}

// CurrentRow returns the bound `CURRENT ROW`.
func CurrentRow() *FrameBound {
	return &FrameBound{Type: ast.CurrentRow}
}

// RowsOffset returns the ROWS bound for a signed offset from the current row.
func RowsOffset(offset int64) *FrameBound {
	switch {
	case offset < 0:
		return &FrameBound{Type: ast.Preceding, Num: uint64(-offset)}
	case offset > 0:
		return &FrameBound{Type: ast.Following, Num: uint64(offset)}
	}
	return CurrentRow()
}

// PhysicalWindow is the physical operator of window function.
type PhysicalWindow struct {
	ID int

	WindowFuncDescs []*aggregation.WindowFuncDesc
	PartitionBy     []expression.Expression
	OrderBy         []expression.Expression
	// Frame is nil when the window has no frame clause.
	Frame *WindowFrame

	// ChildSchema is the output types of the child; it prefixes Schema.
	ChildSchema []*types.FieldType
	// Schema is ChildSchema followed by one type per window function.
	Schema []*types.FieldType

	// Limit is the max number of rows to output, a negative value means no limit.
	Limit int64
}

// NewPhysicalWindow creates a PhysicalWindow whose schema is derived from
// the child schema and the functions.
func NewPhysicalWindow(childSchema []*types.FieldType, descs []*aggregation.WindowFuncDesc) *PhysicalWindow {
	schema := make([]*types.FieldType, 0, len(childSchema)+len(descs))
	schema = append(schema, childSchema...)
	for _, desc := range descs {
		schema = append(schema, desc.RetTp)
	}
	return &PhysicalWindow{
		WindowFuncDescs: descs,
		ChildSchema:     childSchema,
		Schema:          schema,
		Limit:           -1,
	}
}

// ExplainInfo implements Plan interface.
func (p *PhysicalWindow) ExplainInfo() string {
	var buf strings.Builder
	for i, desc := range p.WindowFuncDescs {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(desc.String())
	}
	buf.WriteString(" over(")
	isFirst := true
	if len(p.PartitionBy) > 0 {
		buf.WriteString("partition by ")
		buf.WriteString(expression.ExplainExpressionList(p.PartitionBy))
		isFirst = false
	}
	if len(p.OrderBy) > 0 {
		if !isFirst {
			buf.WriteString(" ")
		}
		buf.WriteString("order by ")
		buf.WriteString(expression.ExplainExpressionList(p.OrderBy))
		isFirst = false
	}
	if p.Frame != nil {
		if !isFirst {
			buf.WriteString(" ")
		}
		buf.WriteString(p.Frame.String())
	}
	buf.WriteString(")")
	return buf.String()
}
