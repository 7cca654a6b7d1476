// Copyright 2024 The Malloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

import "github.com/rs/zerolog"

// initialBlockWords is the size, in words, of the single free block the
// heap starts with. 6 words (48 bytes: 4-byte header, 40-byte payload,
// 4-byte footer) is even, >= 2, and large enough to exercise the first
// few allocations in tests without an immediate extension.
//
// spec.md's own prose ("acquire 8 words... 6-word initial block... 4-word
// payload") does not reconcile exactly with its formal tag-size rule
// (size includes header+footer, so a 6-word block has a 40-byte, not
// 32-byte, payload) -- see DESIGN.md "Prologue/epilogue byte layout" for
// the derivation this repo settled on.
const initialBlockWords = 6

// heapInit lays out the prologue, the initial free block, and the
// epilogue, per spec.md §4.3. firstBase sits one dword (16 bytes, the
// minimum that keeps it 16-byte aligned per I2) past whatever the
// provider hands back: 8 bytes of pure alignment slack, the prologue tag
// (4 bytes, at firstBase-8), and the initial block's own header tag (4
// bytes, at firstBase-4). blockBytes already counts that header as part
// of the block's footprint, so the total reservation is just
// firstBaseOffset+blockBytes - the span from base0 through the epilogue
// tag's trailing edge - with no further per-tag additions; it comes out
// to 8 words (64 bytes), matching spec.md's literal "Acquire 8 words".
func (a *Allocator) heapInit() error {
	const firstBaseOffset = dwordSize
	blockBytes := initialBlockWords * wordSize
	total := firstBaseOffset + blockBytes

	base0, err := a.provider.Extend(total)
	if err != nil {
		return ErrInit
	}
	if !alignedTo16(base0) {
		return ErrInit
	}

	firstBase := base0 + uintptr(firstBaseOffset)
	prologueAddr := firstBase - dwordSize/2 // firstBase-8
	writeTag(prologueAddr, allocBit)        // size 0, allocated
	makeBlock(firstBase, initialBlockWords, false)

	epilogueBase := nextBase(firstBase)
	writeTag(header(epilogueBase), allocBit) // size 0, allocated

	a.heapStart = firstBase
	a.epilogueBase = epilogueBase
	return nil
}

// heapExtend grows the heap so that a free block of at least wordsNeeded
// words exists at the tail, returning its base address. It implements the
// spec.md §4.3 left-coalesce optimization: when the block immediately
// preceding the old epilogue is already free, only the shortfall is
// requested from the provider and the new bytes are appended to that
// block instead of creating a fresh one.
func (a *Allocator) heapExtend(wordsNeeded int) (base uintptr, err error) {
	if Logger.GetLevel() <= zerolog.DebugLevel {
		defer func() {
			Logger.Debug().Int("wordsNeeded", wordsNeeded).Str("base", hex(base)).AnErr("err", err).Msg("malloc: heap extend")
		}()
	}
	epi := a.epilogueBase
	tailFree := !isPrevAllocated(epi)

	newBase := epi
	have := 0
	if tailFree {
		newBase = prevBase(epi)
		have = prevSizeWords(epi)
	}

	need := wordsNeeded - have
	if need <= 0 {
		// A tail free block already covers the request; nothing to
		// extend. Placement is responsible for not calling heapExtend
		// in that case, but handle it defensively.
		return newBase, nil
	}

	growBytes := need * wordSize
	if _, err := a.provider.Extend(growBytes); err != nil {
		return 0, ErrOutOfMemory
	}

	makeBlock(newBase, wordsNeeded, false)
	newEpi := nextBase(newBase)
	writeTag(header(newEpi), allocBit)
	a.epilogueBase = newEpi
	return newBase, nil
}
