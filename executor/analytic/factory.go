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
	"sync"

	"github.com/pingcap/analytic/config"
	"github.com/pingcap/analytic/planner/core"
	"github.com/pingcap/analytic/util/chunk"
	"github.com/pingcap/analytic/util/execdetails"
	"github.com/pingcap/analytic/util/memory"
)

// AnalytorFactory creates the Analytor of every lane of one window. Lanes
// share the plan, the column pool, the runtime stats and the parent memory
// tracker, nothing else.
type AnalytorFactory struct {
	dop        int
	plan       *core.PhysicalWindow
	pool       *chunk.Pool
	statsColl  *execdetails.RuntimeStatsColl
	memTracker *memory.Tracker
	onExceed   memory.ActionOnExceed

	mu        sync.Mutex
	analytors []*Analytor
}

// FactoryOption configures an AnalytorFactory.
type FactoryOption func(*AnalytorFactory)

// WithRuntimeStatsColl registers the runtime stats of every lane in coll.
func WithRuntimeStatsColl(coll *execdetails.RuntimeStatsColl) FactoryOption {
	return func(f *AnalytorFactory) {
		f.statsColl = coll
	}
}

// WithMemTracker attaches the tracker of every lane to t.
func WithMemTracker(t *memory.Tracker) FactoryOption {
	return func(f *AnalytorFactory) {
		f.memTracker = t
	}
}

// WithActionOnExceed sets the action the factory tracker takes once the lanes
// together exceed its quota. The default action logs a warning.
func WithActionOnExceed(action memory.ActionOnExceed) FactoryOption {
	return func(f *AnalytorFactory) {
		f.onExceed = action
	}
}

// WithColumnPool makes the lanes take their buffer columns from pool.
func WithColumnPool(pool *chunk.Pool) FactoryOption {
	return func(f *AnalytorFactory) {
		f.pool = pool
	}
}

// NewAnalytorFactory creates a factory for dop lanes of plan.
func NewAnalytorFactory(dop int, plan *core.PhysicalWindow, opts ...FactoryOption) *AnalytorFactory {
	f := &AnalytorFactory{
		dop:       dop,
		plan:      plan,
		analytors: make([]*Analytor, max(dop, 0)),
	}
	for _, opt := range opts {
		opt(f)
	}
	cfg := config.GetGlobalConfig()
	if f.pool == nil {
		f.pool = chunk.NewPool(cfg.Performance.MaxChunkSize)
	}
	if f.memTracker == nil {
		f.memTracker = memory.NewTracker(plan.ID, cfg.Performance.MemQuotaWindow)
	}
	if f.onExceed == nil {
		f.onExceed = &memory.LogOnExceed{}
	}
	f.memTracker.SetActionOnExceed(f.onExceed)
	return f
}

// DOP returns the number of lanes.
func (f *AnalytorFactory) DOP() int {
	return f.dop
}

// MemTracker returns the tracker all lanes are attached to.
func (f *AnalytorFactory) MemTracker() *memory.Tracker {
	return f.memTracker
}

// Create returns the Analytor of lane i, creating it on the first call.
func (f *AnalytorFactory) Create(i int) (*Analytor, error) {
	if i < 0 || i >= f.dop {
		return nil, ErrLaneOutOfRange.GenWithStackByArgs(i, f.dop)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.analytors[i] == nil {
		f.analytors[i] = newAnalytor(f.plan, i, f.pool, f.statsColl, f.memTracker)
	}
	return f.analytors[i], nil
}
