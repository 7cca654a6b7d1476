// Copyright 2024 The Malloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

import "unsafe"

// Units. A word is 8 bytes; every block size is a word count. A tag is the
// 4-byte boundary-tag value written at a block's header and footer.
const (
	wordSize  = 8
	dwordSize = 2 * wordSize
	tagSize   = 4
	allocBit  = uint32(1)
)

// roundupWords returns the minimum even word count that holds n payload
// bytes plus the 1-word header+footer overhead, per spec §4.4:
// ceil((n+8)/16)*2.
func roundupWords(n uint32) int {
	bytes := uint64(n) + wordSize
	words := (bytes + dwordSize - 1) / dwordSize * 2
	return int(words)
}

// This file holds the package's tag arithmetic and is the only place that
// reads or writes boundary tags through raw addresses. Every function here
// takes and returns plain uintptr addresses into the heap region owned by
// the allocator. It is not the only unchecked code: heap.go and
// placement.go also compute block addresses with uintptr arithmetic, and
// malloc.go converts heap addresses to slices and unsafe.Pointers and
// copies payload bytes through them.

func tagAt(addr uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(addr)) //nolint:govet
}

func readTag(addr uintptr) uint32  { return *tagAt(addr) }
func writeTag(addr uintptr, v uint32) { *tagAt(addr) = v }

// header returns the address of p's header tag: p-4.
func header(p uintptr) uintptr { return p - tagSize }

// sizeWords returns the block size at base p, in words, including header
// and footer overhead. Defined for any real block base or the epilogue's
// virtual base (size 0 there).
func sizeWords(p uintptr) int { return int(readTag(header(p)) &^ allocBit) }

// footer returns the address of p's footer tag: the last tagSize bytes of
// the block, at p + size(p)*8 - 8. (header(nextBase(p)) = p + size(p)*8 - 4
// is a different, adjacent tag - the footer must land one word earlier or
// it aliases the following block's header.) Not meaningful for the
// epilogue (size 0).
func footer(p uintptr) uintptr { return p + uintptr(sizeWords(p))*wordSize - wordSize }

// nextBase returns the base address of the block (or epilogue) following p.
func nextBase(p uintptr) uintptr { return p + uintptr(sizeWords(p))*wordSize }

// prevFooter returns the address of the tag belonging to whatever precedes
// p: the previous real block's footer, or the prologue tag when p is the
// first real block.
func prevFooter(p uintptr) uintptr { return p - dwordSize/2 }

// prevSizeWords reads the size encoded in the predecessor's boundary tag.
func prevSizeWords(p uintptr) int { return int(readTag(prevFooter(p)) &^ allocBit) }

// prevBase returns the base address of the block preceding p. Only
// meaningful when the predecessor is a real block (not the prologue); the
// prologue's size field is 0, which would make this a no-op subtraction,
// so callers must check isPrevAllocated/prologue position before relying on
// this for traversal.
func prevBase(p uintptr) uintptr { return p - uintptr(prevSizeWords(p))*wordSize }

// isAllocated reports the allocation bit stored in p's header tag.
func isAllocated(p uintptr) bool { return readTag(header(p))&allocBit != 0 }

// isPrevAllocated reports the allocation bit of whatever immediately
// precedes p (prologue, or a real block's footer).
func isPrevAllocated(p uintptr) bool { return readTag(prevFooter(p))&allocBit != 0 }

// alignedTo16 reports whether addr is a legal block base per invariant I2.
func alignedTo16(addr uintptr) bool { return addr%dwordSize == 0 }
