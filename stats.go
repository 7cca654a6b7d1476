// Copyright 2024 The Malloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

import "github.com/cznic/mathutil"

// histBuckets bounds Stats.SizeHistogram: a coarse log2 bucketing of
// block word-counts, wide enough that no realistic allocation overflows
// it (bucket 31 alone covers word counts up to 2^31).
const histBuckets = 32

// Stats is a point-in-time snapshot of an Allocator's bookkeeping
// counters, generalizing the teacher's (cznic/memory) allocs/bytes/mmaps
// fields on Allocator from "OS mmap count" to "heap extension count".
type Stats struct {
	Allocs        int // live (un-freed) allocations
	HeapBytes     int // current heap span, in bytes
	PeakHeapBytes int // largest heap span ever reserved
	Extensions    int // number of heap-growth events (heapExtend calls)

	// SizeHistogram counts Allocate/Reallocate requests whose rounded
	// block size (in words) falls in log2 bucket i, i.e. bucket
	// mathutil.BitLen(words). It's a lifetime counter, not a live count:
	// it is never decremented by Free.
	SizeHistogram [histBuckets]int
}

// Stats returns a snapshot of a's bookkeeping counters.
func (a *Allocator) Stats() Stats {
	return Stats{
		Allocs:        a.allocs,
		HeapBytes:     a.heapSpanBytes(),
		PeakHeapBytes: a.peakBytes,
		Extensions:    a.extensions,
		SizeHistogram: a.hist,
	}
}

// bucketIndex maps a block word-count to its log2 histogram bucket,
// clamped to the histogram's width.
func bucketIndex(words int) int {
	b := mathutil.BitLen(words)
	if b >= histBuckets {
		b = histBuckets - 1
	}
	return b
}
