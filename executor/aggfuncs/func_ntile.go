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

// ntile divides the partition into n buckets, the first size%n buckets get
// one extra row.
type ntile struct {
	baseRanking
	n int64
}

func (*ntile) NeedPartitionMaterializing() bool {
	return true
}

func (e *ntile) UpdateBatch(_ *FuncContext, _ *Input, pr PartialResult, w *Window) error {
	p := (*partialResult4Rank)(pr)
	p.val = ntileBucket(w.CurrentRow-w.PartitionStart, w.PartitionEnd-w.PartitionStart, e.n)
	return nil
}

// ntileBucket returns the 1-based bucket of the row at offset r of a
// partition of the given size.
func ntileBucket(r, size, n int64) int64 {
	quotient, remainder := size/n, size%n
	if r < remainder*(quotient+1) {
		return r/(quotient+1) + 1
	}
	return remainder + (r-remainder*(quotient+1))/quotient + 1
}
