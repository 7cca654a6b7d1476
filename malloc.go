// Copyright 2024 The Malloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package malloc implements a single-threaded, boundary-tag, implicit
// free-list heap allocator over one contiguous, monotonically growing
// region of raw memory supplied by a Provider.
//
// The allocator exposes a malloc/free/realloc-shaped API: a caller
// requests a byte count and receives a []byte (or, via the Unsafe*
// variants, an unsafe.Pointer) addressing the payload; the same address
// is later returned to Free or Reallocate for reuse. Every block -
// allocated or free - carries a boundary tag at each end encoding its
// size and allocation state (see tags.go); placement is first-fit with
// immediate coalescing on free (see placement.go).
//
// An Allocator's zero value is not ready to use; construct one with New
// and call Init before the first Allocate. Package-level Init/Allocate/
// Free/Reallocate delegate to a single process-wide Allocator for callers
// that don't need more than one heap.
package malloc

import (
	"reflect"
	"unsafe"

	"github.com/rs/zerolog"
)

// Options configures an Allocator built by New. The zero Options value
// uses the default mmap-backed Provider with a 1 GiB address-space
// reservation (see defaultReservation in provider.go).
type Options struct {
	// MaxHeap bounds the total bytes the default Provider may reserve
	// before Extend starts failing with ErrOutOfMemory. Ignored when
	// Provider is set. Zero means defaultReservation.
	MaxHeap int

	// Provider overrides the memory provider backing the heap. Tests
	// inject a fake Provider here to exercise ErrInit/ErrOutOfMemory
	// paths without mapping real OS memory.
	Provider Provider
}

// Allocator manages one heap: a single contiguous region of raw memory
// bracketed by prologue/epilogue sentinels (heap.go) and subdivided into
// header/footer-tagged blocks (tags.go, block.go). It is not safe for
// concurrent use (spec.md §1 Non-goals, §5): the caller must serialize
// all operations on a given Allocator.
type Allocator struct {
	provider     Provider
	heapStart    uintptr // first real block's base address
	epilogueBase uintptr // current epilogue tag's base (virtual, size 0)
	initialized  bool

	allocs     int // live (un-freed) allocations
	extensions int // number of heapExtend calls
	peakBytes  int // largest heapSpanBytes() ever observed
	hist       [histBuckets]int
}

// New returns an Allocator ready for Init. It does not touch the memory
// provider; Init does that.
func New(opts Options) *Allocator {
	p := opts.Provider
	if p == nil {
		p = NewMmapProvider(opts.MaxHeap)
	}
	return &Allocator{provider: p}
}

// Init resets the underlying Provider and lays out the initial heap:
// prologue, one free block, epilogue (spec.md §4.3). It returns ErrInit
// if the provider refuses the initial reservation; a's state is left
// uninitialized in that case and Init may be retried.
func (a *Allocator) Init() (err error) {
	if Logger.GetLevel() <= zerolog.DebugLevel {
		defer func() { Logger.Debug().AnErr("err", err).Msg("malloc: init") }()
	}
	if err := a.provider.Init(); err != nil {
		return ErrInit
	}
	if err := a.heapInit(); err != nil {
		return err
	}
	a.initialized = true
	return nil
}

// Close releases any OS resources held by a's Provider (if it supports
// that) and resets a to its zero value. It's not necessary to Close an
// Allocator when exiting a process, mirroring the teacher's own
// zero-value-is-ready-to-use stance.
func (a *Allocator) Close() error {
	type closer interface{ Close() error }
	var err error
	if c, ok := a.provider.(closer); ok {
		err = c.Close()
	}
	*a = Allocator{}
	return err
}

// Allocate returns a byte slice of exactly n bytes backed by a freshly
// placed heap block, or nil if n is zero or the heap could not grow to
// satisfy the request (ErrOutOfMemory). The returned memory is not
// zeroed.
func (a *Allocator) Allocate(n uint32) (r []byte, err error) {
	if Logger.GetLevel() <= zerolog.DebugLevel {
		defer func() {
			Logger.Debug().Uint32("n", n).Int("len", len(r)).AnErr("err", err).Msg("malloc: allocate")
		}()
	}
	if !a.initialized {
		return nil, ErrNotInitialized
	}
	if n == 0 {
		return nil, nil
	}

	words := roundupWords(n)
	base, err := a.allocateWords(words)
	if err != nil {
		return nil, err
	}
	a.allocs++
	a.hist[bucketIndex(words)]++
	a.touchPeak()
	return addrToBytes(base, int(n)), nil
}

// Free returns b's backing block to the free list, coalescing with any
// free neighbors. Per spec.md §7 (InvalidFreeError), Free is a silent
// no-op when b is empty, points outside the heap, or is already free -
// it never panics or returns a non-nil error for those cases.
func (a *Allocator) Free(b []byte) (err error) {
	if Logger.GetLevel() <= zerolog.DebugLevel {
		var p uintptr
		if len(b) != 0 {
			p = sliceBase(b)
		}
		defer func() { Logger.Debug().Str("p", hex(p)).AnErr("err", err).Msg("malloc: free") }()
	}
	if !a.initialized {
		return nil
	}
	p := sliceBase(b)
	if !a.validAllocated(p) {
		if p != 0 {
			Logger.Warn().Str("p", hex(p)).Msg("malloc: free of invalid or already-free address ignored")
		}
		return nil
	}

	a.freeBase(p)
	a.allocs--
	return nil
}

// Reallocate resizes the block addressed by b to n bytes, following
// spec.md §4.4: a nil/empty b behaves as Allocate(n); n == 0 behaves as
// Free(b); a size equal to the current block is a no-op; a shrink splits
// off a free tail in place, merged with a free right neighbor; a grow absorbs a following free neighbor in
// place when possible, or else allocates fresh, copies, and frees the
// old block. Reallocate never moves data it didn't have to.
func (a *Allocator) Reallocate(b []byte, n uint32) (r []byte, err error) {
	if Logger.GetLevel() <= zerolog.DebugLevel {
		defer func() {
			Logger.Debug().Uint32("n", n).Int("len", len(r)).AnErr("err", err).Msg("malloc: reallocate")
		}()
	}
	if !a.initialized {
		return nil, ErrNotInitialized
	}

	p := sliceBase(b)
	if p == 0 {
		return a.Allocate(n)
	}
	if n == 0 {
		return nil, a.Free(b)
	}
	if !a.validAllocated(p) {
		return nil, nil
	}

	words := roundupWords(n)
	newBase, err := a.reallocateBase(p, words)
	if err != nil {
		return nil, err
	}
	a.hist[bucketIndex(words)]++
	a.touchPeak()
	return addrToBytes(newBase, int(n)), nil
}

// UnsafeAllocate is like Allocate except it returns an unsafe.Pointer,
// matching the teacher's (cznic/memory) dual safe/Unsafe* API split and
// spec.md §6's own address-typed phrasing ("address of payload, or
// null").
func (a *Allocator) UnsafeAllocate(n uint32) (unsafe.Pointer, error) {
	if !a.initialized {
		return nil, ErrNotInitialized
	}
	if n == 0 {
		return nil, nil
	}
	words := roundupWords(n)
	base, err := a.allocateWords(words)
	if err != nil {
		return nil, err
	}
	a.allocs++
	a.hist[bucketIndex(words)]++
	a.touchPeak()
	return unsafe.Pointer(base), nil
}

// UnsafeFree is like Free except its argument is an unsafe.Pointer
// acquired from UnsafeAllocate or UnsafeReallocate.
func (a *Allocator) UnsafeFree(p unsafe.Pointer) error {
	if !a.initialized || p == nil {
		return nil
	}
	addr := uintptr(p)
	if !a.validAllocated(addr) {
		return nil
	}
	a.freeBase(addr)
	a.allocs--
	return nil
}

// UnsafeReallocate is like Reallocate except its first argument and
// result are unsafe.Pointer.
func (a *Allocator) UnsafeReallocate(p unsafe.Pointer, n uint32) (unsafe.Pointer, error) {
	if !a.initialized {
		return nil, ErrNotInitialized
	}
	if p == nil {
		return a.UnsafeAllocate(n)
	}
	if n == 0 {
		return nil, a.UnsafeFree(p)
	}
	addr := uintptr(p)
	if !a.validAllocated(addr) {
		return nil, nil
	}

	words := roundupWords(n)
	newBase, err := a.reallocateBase(addr, words)
	if err != nil {
		return nil, err
	}
	a.hist[bucketIndex(words)]++
	a.touchPeak()
	return unsafe.Pointer(newBase), nil
}

// validAllocated reports whether p is a non-null, in-range, 16-byte
// aligned address that currently refers to an allocated real block.
// Every disqualifying condition here is exactly the InvalidFreeError
// taxonomy of spec.md §7: Free/Reallocate treat all of them as a silent
// no-op rather than a crash.
func (a *Allocator) validAllocated(p uintptr) bool {
	if p == 0 || !a.initialized {
		return false
	}
	if p < a.heapStart || p >= a.epilogueBase {
		return false
	}
	if !alignedTo16(p) {
		return false
	}
	return isAllocated(p)
}

// touchPeak records a's current heap span as the new peak if it's the
// largest seen so far; used by Stats.PeakHeapBytes.
func (a *Allocator) touchPeak() {
	if span := a.heapSpanBytes(); span > a.peakBytes {
		a.peakBytes = span
	}
}

// heapSpanBytes is the byte distance from the prologue tag through (and
// including) the epilogue tag - the total metadata+payload footprint of
// the heap, excluding the 8 bytes of leading alignment slack reserved by
// heapInit.
func (a *Allocator) heapSpanBytes() int {
	if !a.initialized {
		return 0
	}
	return int(a.epilogueBase-a.heapStart) + tagSize + tagSize // prologue tag + epilogue tag
}

// addrToBytes builds a []byte of length and capacity n backed by the
// heap memory at p, following the teacher's reflect.SliceHeader
// construction (memory.go, mmap_windows.go) rather than a copy.
func addrToBytes(p uintptr, n int) []byte {
	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = p
	sh.Len = n
	sh.Cap = n
	return b
}

// sliceBase recovers the heap address backing b, following the teacher's
// cap-extension trick (memory.go's Free: "b = b[:cap(b)]") so that a
// caller who resliced the returned []byte down (but didn't reallocate
// it) can still Free/Reallocate the original block. Returns 0 for a
// nil/zero-capacity slice.
func sliceBase(b []byte) uintptr {
	if cap(b) == 0 {
		return 0
	}
	b = b[:cap(b)]
	return uintptr(unsafe.Pointer(&b[0]))
}

// copyPayload copies the srcWords-block's payload bytes (size*8-8) from
// src to dst. Used only by reallocateBase's move path, where dst is
// known to have at least that much capacity.
func copyPayload(dst, src uintptr, srcWords int) {
	n := srcWords*wordSize - 2*tagSize
	if n <= 0 {
		return
	}
	copy(addrToBytes(dst, n), addrToBytes(src, n))
}

// std is the package-level convenience Allocator backing the Init/
// Allocate/Free/Reallocate functions below, matching spec.md §9's note
// that "the single-instance convenience wrapper is a separate concern"
// layered over the instance-based core.
var std = New(Options{})

// Init initializes the package-level convenience Allocator. See
// (*Allocator).Init.
func Init() error { return std.Init() }

// Allocate requests n bytes from the package-level convenience
// Allocator. See (*Allocator).Allocate.
func Allocate(n uint32) ([]byte, error) { return std.Allocate(n) }

// Free returns b to the package-level convenience Allocator. See
// (*Allocator).Free.
func Free(b []byte) error { return std.Free(b) }

// Reallocate resizes b via the package-level convenience Allocator. See
// (*Allocator).Reallocate.
func Reallocate(b []byte, n uint32) ([]byte, error) { return std.Reallocate(b, n) }
