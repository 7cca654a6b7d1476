// Copyright 2024 The Malloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

// findFit performs the spec.md §4.4 first-fit search: starting at the
// first real block, walk base <- nextBase(base) until either a free
// block of at least words size is found, or the epilogue (size 0) is
// reached. Returns (0, false) in the latter case.
func (a *Allocator) findFit(words int) (uintptr, bool) {
	p := a.heapStart
	for {
		s := sizeWords(p)
		if s == 0 {
			return 0, false
		}
		if s >= words && !isAllocated(p) {
			return p, true
		}
		p = nextBase(p)
	}
}

// placeBlock carves an allocated block of the given size out of the free
// block at base, whose current size is s. When s equals words the whole
// block is placed (alloc bit flip only); when s is strictly larger, the
// residual is written as a new free block immediately following,
// per spec.md §4.4 ("Split leaves a residual free block; the split
// threshold is exactly 2 words").
func placeBlock(base uintptr, s, words int) {
	if s == words {
		toggleBlock(base)
		return
	}
	makeBlock(base, words, true)
	makeBlock(base+uintptr(words)*wordSize, s-words, false)
}

// allocateWords places a block of the given word size, extending the
// heap (heap.go's heapExtend) when first-fit finds no room. It returns
// the base address of the newly allocated block.
func (a *Allocator) allocateWords(words int) (uintptr, error) {
	if base, ok := a.findFit(words); ok {
		placeBlock(base, sizeWords(base), words)
		return base, nil
	}

	base, err := a.heapExtend(words)
	if err != nil {
		return 0, err
	}
	a.extensions++
	// heapExtend always hands back a free block of exactly `words` size
	// (it either grows a tail free block to exactly that size, or writes
	// a brand-new block of that size), so this never splits - it's the
	// same placeBlock call for symmetry with the first-fit path.
	placeBlock(base, sizeWords(base), words)
	return base, nil
}

// freeBase toggles p's allocation bit to free and immediately coalesces
// it with any free neighbors, per spec.md §4.4's prev/next alloc-bit
// table. The prologue and epilogue both read as "allocated" (spec.md
// §3.4), so this naturally stops coalescing at either end of the heap
// without any special-casing here.
func (a *Allocator) freeBase(p uintptr) {
	toggleBlock(p)

	s := sizeWords(p)
	next := p + uintptr(s)*wordSize
	prevAllocated := isPrevAllocated(p)
	nextAllocated := isAllocated(next)

	switch {
	case prevAllocated && nextAllocated:
		return
	case prevAllocated && !nextAllocated:
		makeBlock(p, s+sizeWords(next), false)
	case !prevAllocated && nextAllocated:
		prev := prevBase(p)
		makeBlock(prev, sizeWords(prev)+s, false)
	default: // !prevAllocated && !nextAllocated
		prev := prevBase(p)
		pw := sizeWords(prev)
		nw := sizeWords(next)
		makeBlock(prev, pw+s+nw, false)
	}
}

// reallocateBase implements spec.md §4.4's Reallocate size-change rules
// for a block already known to be allocated at p, for a target size of
// `words` words (already computed via roundupWords). It returns the base
// address of the resulting block - p itself unless the grow path had to
// move the data to a freshly allocated block.
func (a *Allocator) reallocateBase(p uintptr, words int) (uintptr, error) {
	oldWords := sizeWords(p)

	switch {
	case words == oldWords:
		return p, nil

	case words < oldWords:
		tailWords := oldWords - words
		// Fold a free right neighbor into the new tail so the shrink
		// never leaves two adjacent free blocks (I3).
		if next := nextBase(p); !isAllocated(next) {
			tailWords += sizeWords(next)
		}
		makeBlock(p, words, true)
		makeBlock(p+uintptr(words)*wordSize, tailWords, false)
		return p, nil

	default: // words > oldWords
		next := nextBase(p)
		if !isAllocated(next) {
			nw := sizeWords(next)
			if combined := oldWords + nw; combined >= words {
				makeBlock(p, words, true)
				if combined > words {
					makeBlock(p+uintptr(words)*wordSize, combined-words, false)
				}
				return p, nil
			}
		}

		newBase, err := a.allocateWords(words)
		if err != nil {
			return 0, err
		}
		copyPayload(newBase, p, oldWords)
		a.freeBase(p)
		return newBase, nil
	}
}
