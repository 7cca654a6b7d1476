// Copyright 2024 The Malloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

// makeBlock imprints a header/footer pair describing a block of the given
// size (in words, including overhead) and allocation state, based at p.
//
// Precondition: words is even and >= 2, and [header(p), p+words*8-4) lies
// within memory already reserved from the provider. Neither condition is
// checked here; callers (placement, coalescing, heap extension) are
// responsible for a consistent layout.
func makeBlock(p uintptr, words int, allocated bool) {
	tag := uint32(words)
	if allocated {
		tag |= allocBit
	}
	writeTag(header(p), tag)
	writeTag(footer(p), tag)
}

// toggleBlock flips the allocation bit on both the header and footer tags
// of the block based at p, preserving its size. Used only by Free.
//
// An earlier revision of this allocator toggled the header but copied the
// pre-toggle bit into the footer, breaking invariant I1 (header == footer).
// Both tags must reflect the new state; that is what this does.
func toggleBlock(p uintptr) {
	h := readTag(header(p))
	flipped := h ^ allocBit
	writeTag(header(p), flipped)
	writeTag(footer(p), flipped)
}
