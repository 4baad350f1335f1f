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

package main

import (
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/pingcap/analytic/expression"
	"github.com/pingcap/analytic/expression/aggregation"
	"github.com/pingcap/analytic/parser/ast"
	"github.com/pingcap/analytic/planner/core"
	"github.com/pingcap/analytic/types"
	"github.com/pingcap/analytic/util/chunk"
	"github.com/pingcap/errors"
)

var (
	intTp  = types.NewFieldType(types.ETInt)
	realTp = types.NewFieldType(types.ETReal)

	// benchSchema is (p, o, v): partition key, order key and a nullable value.
	benchSchema = []*types.FieldType{intTp, intTp, intTp}

	colP = &expression.Column{RetType: intTp, Index: 0, OrigName: "p"}
	colO = &expression.Column{RetType: intTp, Index: 1, OrigName: "o"}
	colV = &expression.Column{RetType: intTp, Index: 2, OrigName: "v"}
)

// parseFrame parses a frame written as "unit,start,end". unit is rows or
// range, a bound is unbounded, current, or a signed row offset where
// negative offsets precede the current row. "none" means no frame.
func parseFrame(s string) (*core.WindowFrame, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "none" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, errors.Errorf("frame %q should be unit,start,end", s)
	}
	frame := &core.WindowFrame{}
	switch strings.TrimSpace(parts[0]) {
	case "rows":
		frame.Type = ast.Rows
	case "range":
		frame.Type = ast.Ranges
	default:
		return nil, errors.Errorf("unknown frame unit %q", parts[0])
	}
	var err error
	if frame.Start, err = parseBound(parts[1], true); err != nil {
		return nil, err
	}
	if frame.End, err = parseBound(parts[2], false); err != nil {
		return nil, err
	}
	return frame, nil
}

func parseBound(s string, isStart bool) (*core.FrameBound, error) {
	switch s = strings.TrimSpace(s); s {
	case "unbounded":
		if isStart {
			return core.UnboundedPreceding(), nil
		}
		return core.UnboundedFollowing(), nil
	case "current":
		return core.CurrentRow(), nil
	}
	offset, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid frame bound %q", s)
	}
	return core.RowsOffset(offset), nil
}

// buildFuncDesc builds the window function name over the value column.
func buildFuncDesc(name string) (*aggregation.WindowFuncDesc, error) {
	name = strings.ToLower(name)
	switch name {
	case ast.AggFuncSum, ast.AggFuncCount, ast.AggFuncMax, ast.AggFuncMin,
		ast.WindowFuncFirstValue, ast.WindowFuncLastValue:
		return aggregation.NewWindowFuncDesc(name, []expression.Expression{colV}, intTp), nil
	case ast.AggFuncAvg:
		return aggregation.NewWindowFuncDesc(name, []expression.Expression{colV}, realTp), nil
	case ast.WindowFuncRowNumber, ast.WindowFuncRank, ast.WindowFuncDenseRank:
		return aggregation.NewWindowFuncDesc(name, nil, intTp), nil
	case ast.WindowFuncPercentRank, ast.WindowFuncCumeDist:
		return aggregation.NewWindowFuncDesc(name, nil, realTp), nil
	case ast.WindowFuncNtile:
		args := []expression.Expression{expression.NewConstant(types.NewIntDatum(4))}
		return aggregation.NewWindowFuncDesc(name, args, intTp), nil
	case ast.WindowFuncLead, ast.WindowFuncLag:
		args := []expression.Expression{
			colV,
			expression.NewConstant(types.NewIntDatum(1)),
			expression.NewConstant(types.NewIntDatum(0)),
		}
		return aggregation.NewWindowFuncDesc(name, args, intTp), nil
	}
	return nil, errors.Errorf("unknown window function %q", name)
}

type planOptions struct {
	funcs   []string
	frame   string
	limit   int64
	noOrder bool
}

func buildPlan(opts planOptions) (*core.PhysicalWindow, error) {
	descs := make([]*aggregation.WindowFuncDesc, 0, len(opts.funcs))
	for _, name := range opts.funcs {
		desc, err := buildFuncDesc(name)
		if err != nil {
			return nil, err
		}
		descs = append(descs, desc)
	}
	frame, err := parseFrame(opts.frame)
	if err != nil {
		return nil, err
	}
	p := core.NewPhysicalWindow(benchSchema, descs)
	p.ID = 1
	p.PartitionBy = []expression.Expression{colP}
	if !opts.noOrder {
		p.OrderBy = []expression.Expression{colO}
	}
	p.Frame = frame
	p.Limit = opts.limit
	return p, nil
}

// generateLane returns rows sorted by (p, o) in chunks of chunkSize. The
// partitions hold partitionRows rows on average.
func generateLane(rng *rand.Rand, rows, partitionRows, chunkSize int) []*chunk.Chunk {
	var (
		chunks []*chunk.Chunk
		chk    *chunk.Chunk
		p, o   int64
		left   = 1 + rng.IntN(2*partitionRows)
	)
	for i := range rows {
		if i%chunkSize == 0 {
			chk = chunk.NewChunkWithCapacity(benchSchema, min(chunkSize, rows-i))
			chunks = append(chunks, chk)
		}
		if left == 0 {
			p++
			o = 0
			left = 1 + rng.IntN(2*partitionRows)
		}
		left--
		o += int64(rng.IntN(2))
		chk.AppendInt64(0, p)
		chk.AppendInt64(1, o)
		if rng.IntN(20) == 0 {
			chk.AppendNull(2)
		} else {
			chk.AppendInt64(2, int64(rng.IntN(1000)))
		}
	}
	return chunks
}
