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
	"unsafe"

	"github.com/pingcap/analytic/util/chunk"
)

type baseRanking struct {
	baseAggFunc
}

func (*baseRanking) Class() FuncClass {
	return ClassRanking
}

type partialResult4Rank struct {
	val int64
}

// DefPartialResult4RankSize is the size of partialResult4Rank
const DefPartialResult4RankSize = unsafe.Sizeof(partialResult4Rank{})

func (*baseRanking) StateSize() uintptr  { return DefPartialResult4RankSize }
func (*baseRanking) StateAlign() uintptr { return unsafe.Alignof(partialResult4Rank{}) }

func (*baseRanking) Create(_ *FuncContext, pr PartialResult) {
	*(*partialResult4Rank)(pr) = partialResult4Rank{}
}

func (*baseRanking) Reset(_ *FuncContext, pr PartialResult) {
	*(*partialResult4Rank)(pr) = partialResult4Rank{}
}

func (*baseRanking) AppendFinalResult2Column(_ *FuncContext, _ *Input, pr PartialResult, dst *chunk.Column, n int) error {
	p := (*partialResult4Rank)(pr)
	for range n {
		dst.AppendInt64(p.val)
	}
	return nil
}

type rowNumber struct {
	baseRanking
}

func (*rowNumber) UpdateBatch(_ *FuncContext, _ *Input, pr PartialResult, w *Window) error {
	p := (*partialResult4Rank)(pr)
	p.val = w.CurrentRow - w.PartitionStart + 1
	return nil
}

type rank struct {
	baseRanking
}

func (*rank) UpdateBatch(_ *FuncContext, _ *Input, pr PartialResult, w *Window) error {
	p := (*partialResult4Rank)(pr)
	p.val = w.PeerGroupStart - w.PartitionStart + 1
	return nil
}

type partialResult4DenseRank struct {
	lastPeerGroupStart int64
	rank               int64
}

// DefPartialResult4DenseRankSize is the size of partialResult4DenseRank
const DefPartialResult4DenseRankSize = unsafe.Sizeof(partialResult4DenseRank{})

type denseRank struct {
	baseRanking
}

func (*denseRank) StateSize() uintptr  { return DefPartialResult4DenseRankSize }
func (*denseRank) StateAlign() uintptr { return unsafe.Alignof(partialResult4DenseRank{}) }

func (e *denseRank) Create(fctx *FuncContext, pr PartialResult) {
	e.Reset(fctx, pr)
}

func (*denseRank) Reset(_ *FuncContext, pr PartialResult) {
	*(*partialResult4DenseRank)(pr) = partialResult4DenseRank{lastPeerGroupStart: -1}
}

func (*denseRank) UpdateBatch(_ *FuncContext, _ *Input, pr PartialResult, w *Window) error {
	p := (*partialResult4DenseRank)(pr)
	if w.PeerGroupStart != p.lastPeerGroupStart {
		p.lastPeerGroupStart = w.PeerGroupStart
		p.rank++
	}
	return nil
}

func (*denseRank) AppendFinalResult2Column(_ *FuncContext, _ *Input, pr PartialResult, dst *chunk.Column, n int) error {
	p := (*partialResult4DenseRank)(pr)
	for range n {
		dst.AppendInt64(p.rank)
	}
	return nil
}

// partialResult4Ratio holds the numerator and denominator of PERCENT_RANK
// and CUME_DIST.
type partialResult4Ratio struct {
	num   int64
	denom int64
}

// DefPartialResult4RatioSize is the size of partialResult4Ratio
const DefPartialResult4RatioSize = unsafe.Sizeof(partialResult4Ratio{})

type baseRatio struct {
	baseRanking
}

func (*baseRatio) StateSize() uintptr  { return DefPartialResult4RatioSize }
func (*baseRatio) StateAlign() uintptr { return unsafe.Alignof(partialResult4Ratio{}) }

func (*baseRatio) Create(_ *FuncContext, pr PartialResult) {
	*(*partialResult4Ratio)(pr) = partialResult4Ratio{}
}

func (*baseRatio) Reset(_ *FuncContext, pr PartialResult) {
	*(*partialResult4Ratio)(pr) = partialResult4Ratio{}
}

func (*baseRatio) NeedPartitionMaterializing() bool {
	return true
}

func (*baseRatio) AppendFinalResult2Column(_ *FuncContext, _ *Input, pr PartialResult, dst *chunk.Column, n int) error {
	p := (*partialResult4Ratio)(pr)
	v := 0.0
	if p.denom > 0 {
		v = float64(p.num) / float64(p.denom)
	}
	for range n {
		dst.AppendFloat64(v)
	}
	return nil
}

type percentRank struct {
	baseRatio
}

func (*percentRank) UpdateBatch(_ *FuncContext, _ *Input, pr PartialResult, w *Window) error {
	p := (*partialResult4Ratio)(pr)
	p.num = w.PeerGroupStart - w.PartitionStart
	p.denom = w.PartitionEnd - w.PartitionStart - 1
	return nil
}

type cumeDist struct {
	baseRatio
}

func (*cumeDist) UpdateBatch(_ *FuncContext, _ *Input, pr PartialResult, w *Window) error {
	p := (*partialResult4Ratio)(pr)
	p.num = w.PeerGroupEnd - w.PartitionStart
	p.denom = w.PartitionEnd - w.PartitionStart
	return nil
}
