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

package expression

import (
	"fmt"
	"strings"

	"github.com/pingcap/analytic/types"
	"github.com/pingcap/analytic/util/chunk"
	"github.com/pingcap/errors"
)

// Expression represents all scalar expression in SQL.
type Expression interface {
	fmt.Stringer

	// VecEval evaluates this expression over every row of the input chunk.
	// The returned column has input.NumRows() rows and may be shared with
	// the input, so callers must not modify it.
	VecEval(input *chunk.Chunk) (*chunk.Column, error)

	// GetType gets the type that the expression returns.
	GetType() *types.FieldType
}

// Column represents a column.
type Column struct {
	RetType *types.FieldType
	// Index is used for execution, to tell the column's position in the given row.
	Index    int
	OrigName string
}

// VecEval implements the Expression interface.
func (col *Column) VecEval(input *chunk.Chunk) (*chunk.Column, error) {
	if col.Index < 0 || col.Index >= input.NumCols() {
		return nil, errors.Errorf("column index %d out of range [0, %d)", col.Index, input.NumCols())
	}
	c := input.Column(col.Index)
	if c.EvalType() != col.RetType.EvalType() {
		return nil, errors.Errorf("column %s expects %s, got %s", col, col.RetType.EvalType(), c.EvalType())
	}
	return c, nil
}

// GetType implements the Expression interface.
func (col *Column) GetType() *types.FieldType {
	return col.RetType
}

// String implements fmt.Stringer interface.
func (col *Column) String() string {
	if col.OrigName != "" {
		return col.OrigName
	}
	return fmt.Sprintf("Column#%d", col.Index)
}

// Constant stands for a constant value.
type Constant struct {
	Value   types.Datum
	RetType *types.FieldType
}

// NewConstant creates a Constant whose type is derived from the value kind.
func NewConstant(value types.Datum) *Constant {
	var tp types.EvalType
	switch value.Kind() {
	case types.KindFloat64:
		tp = types.ETReal
	case types.KindString:
		tp = types.ETString
	default:
		tp = types.ETInt
	}
	return &Constant{Value: value, RetType: types.NewFieldType(tp)}
}

// VecEval implements the Expression interface.
func (c *Constant) VecEval(input *chunk.Chunk) (*chunk.Column, error) {
	n := input.NumRows()
	col := chunk.NewColumn(c.RetType, n)
	col.AppendRepeatedDatum(&c.Value, n)
	return col, nil
}

// GetType implements the Expression interface.
func (c *Constant) GetType() *types.FieldType {
	return c.RetType
}

// String implements fmt.Stringer interface.
func (c *Constant) String() string {
	return c.Value.String()
}

// ExplainExpressionList generates explain information for a list of expressions.
func ExplainExpressionList(exprs []Expression) string {
	parts := make([]string, 0, len(exprs))
	for _, expr := range exprs {
		parts = append(parts, expr.String())
	}
	return strings.Join(parts, ", ")
}
