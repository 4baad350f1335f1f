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
	"strings"

	"github.com/pingcap/analytic/types"
)

// Row represents a row of data, can be used to access values.
type Row struct {
	c   *Chunk
	idx int
}

// Chunk returns the Chunk which the row belongs to.
func (r Row) Chunk() *Chunk {
	return r.c
}

// Idx returns the row index of Chunk.
func (r Row) Idx() int {
	return r.idx
}

// Len returns the number of values in the row.
func (r Row) Len() int {
	return r.c.NumCols()
}

// IsNull returns if the datum in the chunk.Row is null.
func (r Row) IsNull(colIdx int) bool {
	return r.c.columns[colIdx].IsNull(r.idx)
}

// GetInt64 returns the int64 value with the colIdx.
func (r Row) GetInt64(colIdx int) int64 {
	return r.c.columns[colIdx].GetInt64(r.idx)
}

// GetFloat64 returns the float64 value with the colIdx.
func (r Row) GetFloat64(colIdx int) float64 {
	return r.c.columns[colIdx].GetFloat64(r.idx)
}

// GetString returns the string value with the colIdx.
func (r Row) GetString(colIdx int) string {
	return r.c.columns[colIdx].GetString(r.idx)
}

// GetDatum implements the chunk.Row interface.
func (r Row) GetDatum(colIdx int) types.Datum {
	return r.c.columns[colIdx].GetDatum(r.idx)
}

// GetDatumRow converts chunk.Row to types.DatumRow.
func (r Row) GetDatumRow() []types.Datum {
	datumRow := make([]types.Datum, 0, r.c.NumCols())
	for colIdx := range r.c.NumCols() {
		datumRow = append(datumRow, r.GetDatum(colIdx))
	}
	return datumRow
}

// ToString returns a string representation of the row.
func (r Row) ToString() string {
	var buf strings.Builder
	for i, d := range r.GetDatumRow() {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(d.String())
	}
	return buf.String()
}
