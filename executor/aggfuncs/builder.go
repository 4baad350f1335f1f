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
	"fmt"

	"github.com/pingcap/analytic/expression"
	"github.com/pingcap/analytic/expression/aggregation"
	"github.com/pingcap/analytic/parser/ast"
	"github.com/pingcap/analytic/types"
	"github.com/pingcap/errors"
)

// Build is used to build a window function according to the desc.
func Build(desc *aggregation.WindowFuncDesc) (AggFunc, error) {
	base := baseAggFunc{retTp: desc.RetTp}
	switch desc.Name {
	case ast.AggFuncCount:
		return buildCount(desc, base)
	case ast.AggFuncSum:
		return buildSum(desc, base)
	case ast.AggFuncAvg:
		return buildAvg(desc, base)
	case ast.AggFuncMax, ast.AggFuncMin:
		return buildMaxMin(desc, base, desc.Name == ast.AggFuncMax)
	case ast.WindowFuncFirstValue, ast.WindowFuncLastValue:
		return buildValue(desc, base)
	case ast.WindowFuncRowNumber, ast.WindowFuncRank, ast.WindowFuncDenseRank:
		return buildRanking(desc, base, types.ETInt)
	case ast.WindowFuncPercentRank, ast.WindowFuncCumeDist:
		return buildRanking(desc, base, types.ETReal)
	case ast.WindowFuncNtile:
		return buildNtile(desc, base)
	case ast.WindowFuncLead, ast.WindowFuncLag:
		return buildLeadLag(desc, base)
	}
	return nil, ErrUnsupportedWindowFunc.GenWithStackByArgs(desc.Name)
}

// InputArgs returns the arguments that must be buffered for the function.
// Constant parameters such as the NTILE bucket count or the LEAD/LAG offset
// are bound when the function is built.
func InputArgs(desc *aggregation.WindowFuncDesc) []expression.Expression {
	switch desc.Name {
	case ast.WindowFuncLead, ast.WindowFuncLag:
		return desc.Args[:1]
	case ast.WindowFuncNtile:
		return nil
	}
	return desc.Args
}

// NewFuncContext creates the context binding desc to one lane.
func NewFuncContext(desc *aggregation.WindowFuncDesc) (*FuncContext, error) {
	args := InputArgs(desc)
	fctx := &FuncContext{
		RetType:  desc.RetTp,
		ArgTypes: make([]*types.FieldType, 0, len(args)),
	}
	for _, arg := range args {
		fctx.ArgTypes = append(fctx.ArgTypes, arg.GetType())
	}
	if (desc.Name == ast.WindowFuncLead || desc.Name == ast.WindowFuncLag) && len(desc.Args) == 3 {
		c := desc.Args[2].(*expression.Constant)
		d, err := c.Value.ConvertTo(desc.RetTp)
		if err != nil {
			return nil, errors.Annotatef(err, "default value of %s", desc)
		}
		fctx.Default = d
	}
	return fctx, nil
}

func invalidArgs(desc *aggregation.WindowFuncDesc, format string, args ...any) error {
	return ErrInvalidArgs.GenWithStackByArgs(desc.Name, fmt.Sprintf(format, args...))
}

func checkArgCount(desc *aggregation.WindowFuncDesc, lo, hi int) error {
	if n := len(desc.Args); n < lo || n > hi {
		if lo == hi {
			return invalidArgs(desc, "expect %d arguments, got %d", lo, n)
		}
		return invalidArgs(desc, "expect %d to %d arguments, got %d", lo, hi, n)
	}
	return nil
}

func checkRetType(desc *aggregation.WindowFuncDesc, tp types.EvalType) error {
	if desc.RetTp == nil || desc.RetTp.EvalType() != tp {
		return invalidArgs(desc, "return type should be %s", tp)
	}
	return nil
}

// constInt returns the value of a non-NULL integer constant argument.
func constInt(desc *aggregation.WindowFuncDesc, idx int) (int64, error) {
	c, ok := desc.Args[idx].(*expression.Constant)
	if !ok || c.Value.Kind() != types.KindInt64 {
		return 0, invalidArgs(desc, "argument %d should be an integer constant", idx+1)
	}
	return c.Value.GetInt64(), nil
}

func buildCount(desc *aggregation.WindowFuncDesc, base baseAggFunc) (AggFunc, error) {
	if err := checkArgCount(desc, 0, 1); err != nil {
		return nil, err
	}
	if err := checkRetType(desc, types.ETInt); err != nil {
		return nil, err
	}
	return &count{baseAggFunc: base, countStar: len(desc.Args) == 0}, nil
}

func buildSum(desc *aggregation.WindowFuncDesc, base baseAggFunc) (AggFunc, error) {
	if err := checkArgCount(desc, 1, 1); err != nil {
		return nil, err
	}
	argTp := desc.Args[0].GetType().EvalType()
	if err := checkRetType(desc, argTp); err != nil {
		return nil, err
	}
	switch argTp {
	case types.ETInt:
		return &sum4Int{base}, nil
	case types.ETReal:
		return &sum4Real{base}, nil
	}
	return nil, invalidArgs(desc, "cannot sum %s", argTp)
}

func buildAvg(desc *aggregation.WindowFuncDesc, base baseAggFunc) (AggFunc, error) {
	if err := checkArgCount(desc, 1, 1); err != nil {
		return nil, err
	}
	if err := checkRetType(desc, types.ETReal); err != nil {
		return nil, err
	}
	argTp := desc.Args[0].GetType().EvalType()
	if argTp == types.ETString {
		return nil, invalidArgs(desc, "cannot average %s", argTp)
	}
	return &avg4Number{baseAggFunc: base, argTp: argTp}, nil
}

func buildMaxMin(desc *aggregation.WindowFuncDesc, base baseAggFunc, isMax bool) (AggFunc, error) {
	if err := checkArgCount(desc, 1, 1); err != nil {
		return nil, err
	}
	if err := checkRetType(desc, desc.Args[0].GetType().EvalType()); err != nil {
		return nil, err
	}
	return &maxMin{baseAggFunc: base, isMax: isMax}, nil
}

func buildValue(desc *aggregation.WindowFuncDesc, base baseAggFunc) (AggFunc, error) {
	if err := checkArgCount(desc, 1, 1); err != nil {
		return nil, err
	}
	if err := checkRetType(desc, desc.Args[0].GetType().EvalType()); err != nil {
		return nil, err
	}
	if desc.Name == ast.WindowFuncFirstValue {
		return &firstValue{baseValue{base}}, nil
	}
	return &lastValue{baseValue{base}}, nil
}

func buildRanking(desc *aggregation.WindowFuncDesc, base baseAggFunc, retTp types.EvalType) (AggFunc, error) {
	if err := checkArgCount(desc, 0, 0); err != nil {
		return nil, err
	}
	if err := checkRetType(desc, retTp); err != nil {
		return nil, err
	}
	r := baseRanking{base}
	switch desc.Name {
	case ast.WindowFuncRowNumber:
		return &rowNumber{r}, nil
	case ast.WindowFuncRank:
		return &rank{r}, nil
	case ast.WindowFuncDenseRank:
		return &denseRank{r}, nil
	case ast.WindowFuncPercentRank:
		return &percentRank{baseRatio{r}}, nil
	}
	return &cumeDist{baseRatio{r}}, nil
}

func buildNtile(desc *aggregation.WindowFuncDesc, base baseAggFunc) (AggFunc, error) {
	if err := checkArgCount(desc, 1, 1); err != nil {
		return nil, err
	}
	if err := checkRetType(desc, types.ETInt); err != nil {
		return nil, err
	}
	n, err := constInt(desc, 0)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, invalidArgs(desc, "bucket count should be positive, got %d", n)
	}
	return &ntile{baseRanking: baseRanking{base}, n: n}, nil
}

// buildLeadLag builds LEAD(expr [, offset [, default]]) and LAG with the
// same arguments. The offset defaults to 1.
func buildLeadLag(desc *aggregation.WindowFuncDesc, base baseAggFunc) (AggFunc, error) {
	if err := checkArgCount(desc, 1, 3); err != nil {
		return nil, err
	}
	if err := checkRetType(desc, desc.Args[0].GetType().EvalType()); err != nil {
		return nil, err
	}
	offset := int64(1)
	if len(desc.Args) >= 2 {
		var err error
		if offset, err = constInt(desc, 1); err != nil {
			return nil, err
		}
		if offset < 0 {
			return nil, invalidArgs(desc, "offset should not be negative, got %d", offset)
		}
	}
	if len(desc.Args) == 3 {
		if _, ok := desc.Args[2].(*expression.Constant); !ok {
			return nil, invalidArgs(desc, "default value should be a constant")
		}
	}
	if desc.Name == ast.WindowFuncLag {
		offset = -offset
	}
	return &leadLag{baseAggFunc: base, offset: offset}, nil
}
