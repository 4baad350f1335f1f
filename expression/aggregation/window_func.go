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

package aggregation

import (
	"fmt"
	"strings"

	"github.com/pingcap/analytic/expression"
	"github.com/pingcap/analytic/parser/ast"
	"github.com/pingcap/analytic/types"
)

// WindowFuncDesc describes a window function signature, only used in planner.
type WindowFuncDesc struct {
	// Name represents the function name.
	Name string
	// Args represents the arguments of the function.
	Args []expression.Expression
	// RetTp represents the return type of the function.
	RetTp *types.FieldType
}

// NewWindowFuncDesc creates a window function signature descriptor.
func NewWindowFuncDesc(name string, args []expression.Expression, retTp *types.FieldType) *WindowFuncDesc {
	return &WindowFuncDesc{Name: strings.ToLower(name), Args: args, RetTp: retTp}
}

// noFrameWindowFuncs is the functions that operate on the entire partition,
// they should not have frame specifications.
var noFrameWindowFuncs = map[string]struct{}{
	ast.WindowFuncCumeDist:    {},
	ast.WindowFuncDenseRank:   {},
	ast.WindowFuncLag:         {},
	ast.WindowFuncLead:        {},
	ast.WindowFuncNtile:       {},
	ast.WindowFuncPercentRank: {},
	ast.WindowFuncRank:        {},
	ast.WindowFuncRowNumber:   {},
}

// NeedFrame checks if the function need frame specification.
func NeedFrame(name string) bool {
	_, ok := noFrameWindowFuncs[strings.ToLower(name)]
	return !ok
}

// String implements fmt.Stringer interface.
func (desc *WindowFuncDesc) String() string {
	return fmt.Sprintf("%s(%s)", desc.Name, expression.ExplainExpressionList(desc.Args))
}
