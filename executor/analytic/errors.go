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

package analytic

import (
	"github.com/pingcap/errors"
)

// Error instances.
var (
	ErrUnsupportedFrame = errors.Normalize("unsupported window frame: %s",
		errors.RFCCodeText("Analytic:UnsupportedFrame"))
	ErrInvalidFrame = errors.Normalize("invalid window frame: %s",
		errors.RFCCodeText("Analytic:InvalidFrame"))
	ErrSchemaMismatch = errors.Normalize("window schema mismatch: %s",
		errors.RFCCodeText("Analytic:SchemaMismatch"))
	ErrStateAlignment = errors.Normalize("state alignment %d of window function '%s' exceeds %d",
		errors.RFCCodeText("Analytic:StateAlignment"))
	ErrLaneOutOfRange = errors.Normalize("window lane %d out of range [0, %d)",
		errors.RFCCodeText("Analytic:LaneOutOfRange"))
	ErrLifecycle = errors.Normalize("window lane %d: %s",
		errors.RFCCodeText("Analytic:Lifecycle"))
)
