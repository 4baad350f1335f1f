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

package chunk

import (
	"cmp"
	"unsafe"

	"github.com/pingcap/analytic/types"
)

// Column stores one column of data in Apache Arrow like layout: a typed value
// vector plus a null bitmap where bit 1 means not null. Null slots keep a zero
// value in the vector so that row indexes stay aligned.
type Column struct {
	tp         types.EvalType
	length     int
	nullBitmap []byte

	i64s []int64
	f64s []float64
	strs []string
}

// NewColumn creates a new column with the specific type and capacity.
func NewColumn(ft *types.FieldType, capacity int) *Column {
	return newColumn(ft.EvalType(), capacity)
}

func newColumn(tp types.EvalType, capacity int) *Column {
	c := &Column{
		tp:         tp,
		nullBitmap: make([]byte, 0, (capacity+7)>>3),
	}
	switch tp {
	case types.ETInt:
		c.i64s = make([]int64, 0, capacity)
	case types.ETReal:
		c.f64s = make([]float64, 0, capacity)
	case types.ETString:
		c.strs = make([]string, 0, capacity)
	}
	return c
}

// EvalType returns the evaluation type of the column.
func (c *Column) EvalType() types.EvalType {
	return c.tp
}

// Len returns the number of rows in the Column.
func (c *Column) Len() int {
	return c.length
}

// Reset resets this Column so it can be reused.
func (c *Column) Reset() {
	c.length = 0
	c.nullBitmap = c.nullBitmap[:0]
	c.i64s = c.i64s[:0]
	c.f64s = c.f64s[:0]
	clear(c.strs)
	c.strs = c.strs[:0]
}

// IsNull returns if this row is null.
func (c *Column) IsNull(rowIdx int) bool {
	nullByte := c.nullBitmap[rowIdx/8]
	return nullByte&(1<<(uint(rowIdx)&7)) == 0
}

func (c *Column) appendNullBitmap(notNull bool) {
	idx := c.length >> 3
	if idx >= len(c.nullBitmap) {
		c.nullBitmap = append(c.nullBitmap, 0)
	}
	if notNull {
		pos := uint(c.length) & 7
		c.nullBitmap[idx] |= byte(1 << pos)
	}
}

// AppendNull appends a null value into this Column.
func (c *Column) AppendNull() {
	c.appendNullBitmap(false)
	switch c.tp {
	case types.ETInt:
		c.i64s = append(c.i64s, 0)
	case types.ETReal:
		c.f64s = append(c.f64s, 0)
	case types.ETString:
		c.strs = append(c.strs, "")
	}
	c.length++
}

// AppendInt64 appends an int64 value into this Column.
func (c *Column) AppendInt64(i int64) {
	c.appendNullBitmap(true)
	c.i64s = append(c.i64s, i)
	c.length++
}

// AppendFloat64 appends a float64 value into this Column.
func (c *Column) AppendFloat64(f float64) {
	c.appendNullBitmap(true)
	c.f64s = append(c.f64s, f)
	c.length++
}

// AppendString appends a string value into this Column.
func (c *Column) AppendString(s string) {
	c.appendNullBitmap(true)
	c.strs = append(c.strs, s)
	c.length++
}

// AppendDatum appends a datum, converting numeric kinds to the column type.
func (c *Column) AppendDatum(d *types.Datum) {
	if d.IsNull() {
		c.AppendNull()
		return
	}
	switch c.tp {
	case types.ETInt:
		if d.Kind() == types.KindFloat64 {
			c.AppendInt64(int64(d.GetFloat64()))
			return
		}
		c.AppendInt64(d.GetInt64())
	case types.ETReal:
		if d.Kind() == types.KindInt64 {
			c.AppendFloat64(float64(d.GetInt64()))
			return
		}
		c.AppendFloat64(d.GetFloat64())
	case types.ETString:
		c.AppendString(d.String())
	}
}

// AppendRepeatedDatum appends the same datum n times.
func (c *Column) AppendRepeatedDatum(d *types.Datum, n int) {
	for range n {
		c.AppendDatum(d)
	}
}

// GetInt64 returns the int64 in the specific row.
func (c *Column) GetInt64(rowID int) int64 {
	return c.i64s[rowID]
}

// GetFloat64 returns the float64 in the specific row.
func (c *Column) GetFloat64(rowID int) float64 {
	return c.f64s[rowID]
}

// GetString returns the string in the specific row.
func (c *Column) GetString(rowID int) string {
	return c.strs[rowID]
}

// Int64s returns an int64 slice stored in this Column.
func (c *Column) Int64s() []int64 {
	return c.i64s
}

// Float64s returns a float64 slice stored in this Column.
func (c *Column) Float64s() []float64 {
	return c.f64s
}

// GetDatum returns the value in the specific row as a Datum.
func (c *Column) GetDatum(rowID int) types.Datum {
	if c.IsNull(rowID) {
		return types.Datum{}
	}
	switch c.tp {
	case types.ETInt:
		return types.NewIntDatum(c.i64s[rowID])
	case types.ETReal:
		return types.NewFloat64Datum(c.f64s[rowID])
	default:
		return types.NewStringDatum(c.strs[rowID])
	}
}

// AppendColumn appends rows [begin, end) of src. Both columns must have the
// same evaluation type.
func (c *Column) AppendColumn(src *Column, begin, end int) {
	for i := begin; i < end; i++ {
		notNull := !src.IsNull(i)
		c.appendNullBitmap(notNull)
		c.length++
	}
	switch c.tp {
	case types.ETInt:
		c.i64s = append(c.i64s, src.i64s[begin:end]...)
	case types.ETReal:
		c.f64s = append(c.f64s, src.f64s[begin:end]...)
	case types.ETString:
		c.strs = append(c.strs, src.strs[begin:end]...)
	}
}

// CopyRange returns a new column holding rows [begin, end).
func (c *Column) CopyRange(begin, end int) *Column {
	dst := newColumn(c.tp, end-begin)
	dst.AppendColumn(c, begin, end)
	return dst
}

// CopyConstruct copies this Column to dst.
// If dst is nil, it creates a new Column and returns it.
func (c *Column) CopyConstruct(dst *Column) *Column {
	if dst == nil {
		return c.CopyRange(0, c.length)
	}
	dst.Reset()
	dst.tp = c.tp
	dst.AppendColumn(c, 0, c.length)
	return dst
}

// RemoveFirstN drops the first n rows and shifts the remaining rows to the
// front. The backing arrays shrink once the remaining rows fill less than a
// quarter of them.
func (c *Column) RemoveFirstN(n int) {
	if n <= 0 {
		return
	}
	if n >= c.length {
		c.Reset()
		return
	}
	remain := c.length - n
	shrink := remain*4 <= cap(c.nullBitmap)*8
	bitmapCap := cap(c.nullBitmap)
	if shrink {
		bitmapCap = (remain*2 + 7) >> 3
	}
	bitmap := make([]byte, (remain+7)>>3, bitmapCap)
	for i := range remain {
		if !c.IsNull(i + n) {
			bitmap[i>>3] |= byte(1 << (uint(i) & 7))
		}
	}
	c.nullBitmap = bitmap
	switch c.tp {
	case types.ETInt:
		c.i64s = removeFront(c.i64s, n, shrink)
	case types.ETReal:
		c.f64s = removeFront(c.f64s, n, shrink)
	case types.ETString:
		c.strs = removeFront(c.strs, n, shrink)
	}
	c.length = remain
}

// removeFront drops the first n elements of s. With shrink the rest moves to
// a new array of twice its length.
func removeFront[T any](s []T, n int, shrink bool) []T {
	if shrink {
		dst := make([]T, len(s)-n, 2*(len(s)-n))
		copy(dst, s[n:])
		return dst
	}
	copied := copy(s, s[n:])
	clear(s[copied:])
	return s[:copied]
}

// EqualAt returns whether row i of this column equals row j of other.
// Two NULLs are equal.
func (c *Column) EqualAt(i int, other *Column, j int) bool {
	return c.CompareAt(i, other, j) == 0
}

// CompareAt compares row i of this column with row j of other. NULL is
// smaller than every non-NULL value.
func (c *Column) CompareAt(i int, other *Column, j int) int {
	lNull, rNull := c.IsNull(i), other.IsNull(j)
	switch {
	case lNull && rNull:
		return 0
	case lNull:
		return -1
	case rNull:
		return 1
	}
	switch c.tp {
	case types.ETInt:
		return cmp.Compare(c.i64s[i], other.i64s[j])
	case types.ETReal:
		return cmp.Compare(c.f64s[i], other.f64s[j])
	default:
		return cmp.Compare(c.strs[i], other.strs[j])
	}
}

const sizeString = int64(unsafe.Sizeof(""))

// MemoryUsage returns the memory usage of this column.
func (c *Column) MemoryUsage() (sum int64) {
	sum = int64(unsafe.Sizeof(*c)) + int64(cap(c.nullBitmap))
	switch c.tp {
	case types.ETInt:
		sum += int64(cap(c.i64s)) * 8
	case types.ETReal:
		sum += int64(cap(c.f64s)) * 8
	case types.ETString:
		sum += int64(cap(c.strs)) * sizeString
		for _, s := range c.strs {
			sum += int64(len(s))
		}
	}
	return sum
}
