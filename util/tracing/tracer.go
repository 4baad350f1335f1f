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

package tracing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opentracing/basictracer-go"
	"github.com/opentracing/opentracing-go"
)

// A CallbackRecorder immediately invokes itself on received trace spans.
type CallbackRecorder func(sp basictracer.RawSpan)

// RecordSpan implements basictracer.SpanRecorder.
func (cr CallbackRecorder) RecordSpan(sp basictracer.RawSpan) {
	cr(sp)
}

// NewRecordedTrace returns a root span of a tracer which passes every
// finished span to callback.
func NewRecordedTrace(opName string, callback func(sp basictracer.RawSpan)) opentracing.Span {
	tr := basictracer.New(CallbackRecorder(callback))
	return tr.StartSpan(opName)
}

// ChildSpanFromContext returns a non-nil span and a context carrying it. If a
// span can be got from ctx, the returned span is a child of it. Otherwise
// the returned span is a noop span and ctx is returned unchanged.
func ChildSpanFromContext(ctx context.Context, opName string) (opentracing.Span, context.Context) {
	if sp := opentracing.SpanFromContext(ctx); sp != nil && sp.Tracer() != nil {
		if _, ok := sp.Tracer().(opentracing.NoopTracer); !ok {
			child := sp.Tracer().StartSpan(opName, opentracing.ChildOf(sp.Context()))
			return child, opentracing.ContextWithSpan(ctx, child)
		}
	}
	return opentracing.NoopTracer{}.StartSpan(opName), ctx
}

// SpanSummary aggregates the finished spans of one operation.
type SpanSummary struct {
	Operation string
	Count     int
	Total     time.Duration
	Max       time.Duration
}

// Collector aggregates finished spans by operation name.
type Collector struct {
	mu    sync.Mutex
	spans map[string]*SpanSummary
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{spans: make(map[string]*SpanSummary)}
}

// Record adds a finished span. It can be used as the callback of
// NewRecordedTrace.
func (c *Collector) Record(sp basictracer.RawSpan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.spans[sp.Operation]
	if !ok {
		s = &SpanSummary{Operation: sp.Operation}
		c.spans[sp.Operation] = s
	}
	s.Count++
	s.Total += sp.Duration
	s.Max = max(s.Max, sp.Duration)
}

// Summaries returns the aggregated spans ordered by operation name.
func (c *Collector) Summaries() []SpanSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]SpanSummary, 0, len(c.spans))
	for _, s := range c.spans {
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Operation < res[j].Operation })
	return res
}
