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

package types

import "fmt"

// EvalType indicates the physical representation of a column value.
type EvalType byte

const (
	// ETInt represents type INT in evaluation.
	ETInt EvalType = iota
	// ETReal represents type REAL in evaluation.
	ETReal
	// ETString represents type STRING in evaluation.
	ETString
)

// IsFixedLen returns whether the values of this type have a fixed width.
func (et EvalType) IsFixedLen() bool {
	return et != ETString
}

// String implements fmt.Stringer interface.
func (et EvalType) String() string {
	switch et {
	case ETInt:
		return "Int"
	case ETReal:
		return "Real"
	case ETString:
		return "String"
	}
	return fmt.Sprintf("EvalType(%d)", byte(et))
}

// FieldType describes the type of a column.
type FieldType struct {
	evalType EvalType
	notNull  bool
}

// NewFieldType returns a nullable FieldType of the given evaluation type.
func NewFieldType(et EvalType) *FieldType {
	return &FieldType{evalType: et}
}

// NewFieldTypeBuilder returns a FieldTypeBuilder.
func NewFieldTypeBuilder() *FieldTypeBuilder {
	return &FieldTypeBuilder{}
}

// FieldTypeBuilder is used to build a FieldType.
type FieldTypeBuilder struct {
	ft FieldType
}

// SetType sets the evaluation type.
func (b *FieldTypeBuilder) SetType(et EvalType) *FieldTypeBuilder {
	b.ft.evalType = et
	return b
}

// SetNotNull marks the column as NOT NULL.
func (b *FieldTypeBuilder) SetNotNull(notNull bool) *FieldTypeBuilder {
	b.ft.notNull = notNull
	return b
}

// Build returns a copy of the FieldType being built.
func (b *FieldTypeBuilder) Build() FieldType {
	return b.ft
}

// BuildP returns a pointer to a copy of the FieldType being built.
func (b *FieldTypeBuilder) BuildP() *FieldType {
	ft := b.ft
	return &ft
}

// EvalType returns the evaluation type of the field.
func (ft *FieldType) EvalType() EvalType {
	return ft.evalType
}

// NotNull returns whether the field rejects NULL.
func (ft *FieldType) NotNull() bool {
	return ft.notNull
}

// Equal returns whether two field types describe the same values.
func (ft *FieldType) Equal(other *FieldType) bool {
	return ft.evalType == other.evalType && ft.notNull == other.notNull
}

// Clone returns a copy of itself.
func (ft *FieldType) Clone() *FieldType {
	ret := *ft
	return &ret
}

// String implements fmt.Stringer interface.
func (ft *FieldType) String() string {
	if ft.notNull {
		return ft.evalType.String() + " NOT NULL"
	}
	return ft.evalType.String()
}
