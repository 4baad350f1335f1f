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
	"github.com/pingcap/errors"
)

// Error instances.
var (
	// ErrOverflow is returned when an integer aggregation leaves the BIGINT range.
	ErrOverflow = errors.Normalize("%s value is out of range in '%s'",
		errors.RFCCodeText("Analytic:DataOutOfRange"))
	// ErrUnsupportedWindowFunc is returned for unknown function names.
	ErrUnsupportedWindowFunc = errors.Normalize("unsupported window function '%s'",
		errors.RFCCodeText("Analytic:UnsupportedWindowFunc"))
	// ErrInvalidArgs is returned when the arguments or the return type of a
	// function do not match its signature.
	ErrInvalidArgs = errors.Normalize("invalid arguments for window function '%s': %s",
		errors.RFCCodeText("Analytic:InvalidArgs"))
)
