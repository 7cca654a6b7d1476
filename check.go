// Copyright 2024 The Malloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

import (
	"fmt"
	"io"
)

// Check walks the heap end-to-end and verifies, in order, the
// invariants of spec.md §3.5/§4.5: prologue correctness (I4), 16-byte
// base alignment and minimum even size of every block (I2),
// header/footer equality of every block (I1), absence of two adjacent
// free blocks (I3), and epilogue correctness plus a traversal/size-sum
// check (I4, I5). It returns nil when the heap is consistent, or a
// *CorruptionError describing the first violation found.
//
// Check is cheap enough for debug assertions or test teardown but is
// never called from Allocate/Free/Reallocate's hot path (spec.md §4.5).
func (a *Allocator) Check() *CorruptionError {
	if !a.initialized {
		return &CorruptionError{Invariant: "I4", Detail: "allocator not initialized"}
	}

	prologueAddr := a.heapStart - dwordSize/2
	if tag := readTag(prologueAddr); tag != allocBit {
		return &CorruptionError{
			Invariant: "I4", Address: prologueAddr, Want: allocBit, Got: tag,
			Detail: "prologue tag is not size-0/allocated",
		}
	}

	prevFree := false
	p := a.heapStart
	sum := 0
	for {
		s := sizeWords(p)
		if s == 0 {
			break // reached the epilogue
		}

		if !alignedTo16(p) {
			return &CorruptionError{Invariant: "I2", Address: p, Detail: "base not 16-byte aligned"}
		}
		if s%2 != 0 || s < 2 {
			return &CorruptionError{Invariant: "I2", Address: p, Detail: fmt.Sprintf("size %d words is odd or below the 2-word minimum", s)}
		}

		h := readTag(header(p))
		f := readTag(footer(p))
		if h != f {
			return &CorruptionError{Invariant: "I1", Address: p, Want: h, Got: f, Detail: "header/footer mismatch"}
		}

		free := h&allocBit == 0
		if free && prevFree {
			return &CorruptionError{Invariant: "I3", Address: p, Detail: "two adjacent free blocks"}
		}
		prevFree = free

		sum += s * wordSize
		p = nextBase(p)
	}

	if tag := readTag(header(p)); tag != allocBit {
		return &CorruptionError{Invariant: "I4", Address: p, Want: allocBit, Got: tag, Detail: "epilogue tag is not size-0/allocated"}
	}
	if p != a.epilogueBase {
		return &CorruptionError{Invariant: "I5", Address: p, Detail: fmt.Sprintf("traversal reached %s, tracked epilogue is %s", hex(p), hex(a.epilogueBase))}
	}
	if want := int(p - a.heapStart); sum != want {
		return &CorruptionError{Invariant: "I5", Address: p, Detail: fmt.Sprintf("block sizes sum to %d bytes, heap span is %d", sum, want)}
	}

	return nil
}

// Dump writes one line per block (address, size, allocation state) plus
// a trailing epilogue line, in heap order. It's the diagnostic printing
// spec.md §6 treats as an external collaborator ("the consistency
// checker's output format... is stable enough to diff in tests") -
// implemented as a thin formatter over the same traversal Check
// performs, not a second traversal concern.
func (a *Allocator) Dump(w io.Writer) error {
	if !a.initialized {
		return ErrNotInitialized
	}

	p := a.heapStart
	for {
		s := sizeWords(p)
		if s == 0 {
			_, err := fmt.Fprintf(w, "%s epilogue\n", hex(p))
			return err
		}

		state := "free"
		if isAllocated(p) {
			state = "allocated"
		}
		if _, err := fmt.Fprintf(w, "%s size=%d words (%d bytes) %s\n", hex(p), s, s*wordSize, state); err != nil {
			return err
		}
		p = nextBase(p)
	}
}
