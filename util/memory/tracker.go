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

package memory

import (
	"fmt"
	"slices"
	"sync"

	"github.com/docker/go-units"
	"go.uber.org/atomic"
)

// Tracker is used to track the memory usage during query execution.
// It contains an optional limit and can be arranged into a tree structure
// such that the consumption tracked by a Tracker is also tracked by
// its ancestors. The main idea comes from Apache Impala:
//
// https://github.com/cloudera/Impala/blob/cdh5-trunk/be/src/runtime/mem-tracker.h
//
// By default, memory consumption is tracked via calling "Consume()", either to
// the tracker itself or to one of its descendants. A typical caller is a
// window lane: every buffered chunk is consumed on arrival and released on
// eviction.
type Tracker struct {
	mu struct {
		sync.Mutex
		children []*Tracker
	}
	actionMu struct {
		sync.Mutex
		actionOnExceed ActionOnExceed
	}
	parMu struct {
		sync.Mutex
		parent *Tracker
	}

	label         int
	bytesConsumed atomic.Int64
	bytesLimit    atomic.Int64 // bytesLimit <= 0 means no limit.
	maxConsumed   atomic.Int64
}

// NewTracker creates a memory tracker.
//  1. "label" is the label used in the usage string.
//  2. "bytesLimit <= 0" means no limit.
func NewTracker(label int, bytesLimit int64) *Tracker {
	t := &Tracker{label: label}
	t.bytesLimit.Store(bytesLimit)
	t.actionMu.actionOnExceed = &LogOnExceed{}
	return t
}

// Label gets the label of a Tracker.
func (t *Tracker) Label() int {
	return t.label
}

// GetBytesLimit gets the bytes limit for this tracker.
func (t *Tracker) GetBytesLimit() int64 {
	return t.bytesLimit.Load()
}

// CheckExceed checks whether the consumed bytes exceed the limit.
func (t *Tracker) CheckExceed() bool {
	limit := t.bytesLimit.Load()
	return limit > 0 && t.bytesConsumed.Load() >= limit
}

// SetActionOnExceed sets the action when memory usage exceeds bytesLimit.
func (t *Tracker) SetActionOnExceed(a ActionOnExceed) {
	t.actionMu.Lock()
	t.actionMu.actionOnExceed = a
	t.actionMu.Unlock()
}

// AttachTo attaches this memory tracker as a child to another Tracker. If it
// already has a parent, this function will remove it from the old parent.
// Its consumed memory usage is used to update all its ancestors.
func (t *Tracker) AttachTo(parent *Tracker) {
	if old := t.getParent(); old != nil {
		old.remove(t)
	}
	parent.mu.Lock()
	parent.mu.children = append(parent.mu.children, t)
	parent.mu.Unlock()

	t.setParent(parent)
	parent.Consume(t.BytesConsumed())
}

// Detach de-attach the tracker child from its parent, then set its parent
// property as nil.
func (t *Tracker) Detach() {
	if parent := t.getParent(); parent != nil {
		parent.remove(t)
	}
}

func (t *Tracker) remove(oldChild *Tracker) {
	t.mu.Lock()
	idx := slices.Index(t.mu.children, oldChild)
	if idx >= 0 {
		t.mu.children = slices.Delete(t.mu.children, idx, idx+1)
	}
	t.mu.Unlock()
	if idx >= 0 {
		oldChild.setParent(nil)
		t.Consume(-oldChild.BytesConsumed())
	}
}

// Consume is used to consume a memory usage. "bytes" can be a negative value,
// which means this is a memory release operation. When memory usage of a
// tracker exceeds its bytesLimit, the tracker calls its action.
func (t *Tracker) Consume(bytes int64) {
	if bytes == 0 {
		return
	}
	var rootExceed *Tracker
	for tracker := t; tracker != nil; tracker = tracker.getParent() {
		consumed := tracker.bytesConsumed.Add(bytes)
		if limit := tracker.bytesLimit.Load(); limit > 0 && consumed >= limit {
			rootExceed = tracker
		}
		for {
			maxNow := tracker.maxConsumed.Load()
			if consumed <= maxNow || tracker.maxConsumed.CompareAndSwap(maxNow, consumed) {
				break
			}
		}
	}
	if bytes > 0 && rootExceed != nil {
		rootExceed.actionMu.Lock()
		defer rootExceed.actionMu.Unlock()
		if rootExceed.actionMu.actionOnExceed != nil {
			rootExceed.actionMu.actionOnExceed.Action(rootExceed)
		}
	}
}

// Release is used to release memory tracked, it is Consume(-bytes).
func (t *Tracker) Release(bytes int64) {
	t.Consume(-bytes)
}

// BytesConsumed returns the consumed memory usage value in bytes.
func (t *Tracker) BytesConsumed() int64 {
	return t.bytesConsumed.Load()
}

// MaxConsumed returns max number of bytes consumed during execution.
func (t *Tracker) MaxConsumed() int64 {
	return t.maxConsumed.Load()
}

// String returns the string representation of this Tracker tree.
func (t *Tracker) String() string {
	return fmt.Sprintf("label %d: consumed %s, max %s, limit %s",
		t.label, FormatBytes(t.BytesConsumed()), FormatBytes(t.MaxConsumed()), FormatBytes(t.GetBytesLimit()))
}

func (t *Tracker) getParent() *Tracker {
	t.parMu.Lock()
	defer t.parMu.Unlock()
	return t.parMu.parent
}

func (t *Tracker) setParent(parent *Tracker) {
	t.parMu.Lock()
	defer t.parMu.Unlock()
	t.parMu.parent = parent
}

// FormatBytes uses to format bytes, this function will prune precision before format bytes.
func FormatBytes(numBytes int64) string {
	if numBytes <= 0 {
		return fmt.Sprintf("%d Bytes", numBytes)
	}
	return units.BytesSize(float64(numBytes))
}
