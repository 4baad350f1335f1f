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
	"math/rand/v2"
	"sync"

	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/pingcap/analytic/types"
)

// Pool is the Column pool shared by concurrent workers. Columns are recycled
// per evaluation type.
type Pool struct {
	intColPool    *colPool
	realColPool   *colPool
	stringColPool *colPool
}

// NewPool creates a new Pool.
func NewPool(initCap int) *Pool {
	numShards := 8
	return &Pool{
		intColPool:    newColPool(numShards, types.ETInt, initCap),
		realColPool:   newColPool(numShards, types.ETReal, initCap),
		stringColPool: newColPool(numShards, types.ETString, initCap),
	}
}

// GetColumn gets an empty Column of the field type.
func (p *Pool) GetColumn(ft *types.FieldType) *Column {
	return p.poolOf(ft.EvalType()).get()
}

// PutColumn resets the Column and gives it back to the pool.
func (p *Pool) PutColumn(col *Column) {
	if col == nil {
		return
	}
	col.Reset()
	p.poolOf(col.EvalType()).put(col)
}

func (p *Pool) poolOf(tp types.EvalType) *colPool {
	switch tp {
	case types.ETInt:
		return p.intColPool
	case types.ETReal:
		return p.realColPool
	default:
		return p.stringColPool
	}
}

type colPool struct {
	shards  []colPoolShard
	tp      types.EvalType
	initCap int
}

func newColPool(numShards int, tp types.EvalType, initCap int) *colPool {
	cp := &colPool{
		shards:  make([]colPoolShard, numShards),
		tp:      tp,
		initCap: initCap,
	}
	for i := range cp.shards {
		cp.shards[i].cols = arraystack.New()
	}
	return cp
}

func (cp *colPool) put(col *Column) {
	ordinal := rand.IntN(len(cp.shards))
	cp.shards[ordinal].put(col)
}

func (cp *colPool) get() *Column {
	ordinal := rand.IntN(len(cp.shards))
	if col := cp.shards[ordinal].get(); col != nil {
		return col
	}
	return newColumn(cp.tp, cp.initCap)
}

type colPoolShard struct {
	sync.Mutex
	cols *arraystack.Stack
}

func (ps *colPoolShard) put(col *Column) {
	ps.Lock()
	defer ps.Unlock()

	ps.cols.Push(col)
}

func (ps *colPoolShard) get() *Column {
	ps.Lock()
	defer ps.Unlock()

	if v, ok := ps.cols.Pop(); ok {
		return v.(*Column)
	}
	return nil
}
