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
	"github.com/pingcap/analytic/types"
	"github.com/pingcap/errors"
)

// Chunk stores multiple rows of data in columns. All columns hold the same
// number of rows.
type Chunk struct {
	columns  []*Column
	capacity int
}

// NewChunkWithCapacity creates a new chunk with field types and capacity.
func NewChunkWithCapacity(fields []*types.FieldType, capacity int) *Chunk {
	chk := &Chunk{
		columns:  make([]*Column, 0, len(fields)),
		capacity: capacity,
	}
	for _, f := range fields {
		chk.columns = append(chk.columns, NewColumn(f, capacity))
	}
	return chk
}

// NewChunkFromColumns creates a chunk that references the given columns.
func NewChunkFromColumns(cols []*Column) (*Chunk, error) {
	chk := &Chunk{columns: cols}
	if len(cols) == 0 {
		return chk, nil
	}
	rows := cols[0].Len()
	for i, col := range cols {
		if col.Len() != rows {
			return nil, errors.Errorf("column %d has %d rows, expect %d", i, col.Len(), rows)
		}
	}
	chk.capacity = rows
	return chk, nil
}

// NumCols returns the number of columns in the chunk.
func (c *Chunk) NumCols() int {
	return len(c.columns)
}

// NumRows returns the number of rows in the chunk.
func (c *Chunk) NumRows() int {
	if c.NumCols() == 0 {
		return 0
	}
	return c.columns[0].Len()
}

// Capacity returns the capacity of the Chunk.
func (c *Chunk) Capacity() int {
	return c.capacity
}

// IsFull returns if this chunk is considered full.
func (c *Chunk) IsFull() bool {
	return c.NumRows() >= c.capacity
}

// Column returns the specific column.
func (c *Chunk) Column(colIdx int) *Column {
	return c.columns[colIdx]
}

// Columns returns the columns of the chunk.
func (c *Chunk) Columns() []*Column {
	return c.columns
}

// Reset resets the chunk, so the memory it allocated can be reused.
func (c *Chunk) Reset() {
	for _, col := range c.columns {
		col.Reset()
	}
}

// TruncateTo keeps the first numRows rows. Truncated columns are replaced by
// copies, so columns shared with other chunks are left untouched.
func (c *Chunk) TruncateTo(numRows int) {
	if numRows >= c.NumRows() {
		return
	}
	for i, col := range c.columns {
		c.columns[i] = col.CopyRange(0, numRows)
	}
}

// AppendNull appends a null value to the chunk.
func (c *Chunk) AppendNull(colIdx int) {
	c.columns[colIdx].AppendNull()
}

// AppendInt64 appends a int64 value to the chunk.
func (c *Chunk) AppendInt64(colIdx int, i int64) {
	c.columns[colIdx].AppendInt64(i)
}

// AppendFloat64 appends a float64 value to the chunk.
func (c *Chunk) AppendFloat64(colIdx int, f float64) {
	c.columns[colIdx].AppendFloat64(f)
}

// AppendString appends a string value to the chunk.
func (c *Chunk) AppendString(colIdx int, str string) {
	c.columns[colIdx].AppendString(str)
}

// AppendDatum appends a datum into the chunk.
func (c *Chunk) AppendDatum(colIdx int, d *types.Datum) {
	c.columns[colIdx].AppendDatum(d)
}

// AppendRow appends a row of datums, one per column.
func (c *Chunk) AppendRow(datums ...types.Datum) {
	for i := range datums {
		c.columns[i].AppendDatum(&datums[i])
	}
}

// GetRow gets the Row in the chunk with the row index.
func (c *Chunk) GetRow(idx int) Row {
	return Row{c: c, idx: idx}
}

// MemoryUsage returns the total memory usage of a Chunk in bytes.
func (c *Chunk) MemoryUsage() (sum int64) {
	for _, col := range c.columns {
		sum += col.MemoryUsage()
	}
	return sum
}
