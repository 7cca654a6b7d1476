// Copyright 2024 The Malloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

import "unsafe"

// Provider is the external memory-provider contract (spec.md §5): a
// lower-level collaborator the allocator core treats as out of scope. It
// models a single contiguous, monotonically growing region of raw memory.
//
// Implementations must hand back a contiguous region: Extend always appends
// immediately after whatever was returned by the previous call (or by
// Init, for the very first call). The allocator never calls Extend
// concurrently and never retries a failed call.
type Provider interface {
	// Init resets the provider and reserves room for at least the first
	// allocation. It must be called before the first Extend; each
	// (*Allocator).Init attempt calls it again.
	Init() error

	// Extend grows the region by bytes and returns the base address of
	// the newly appended span. It fails with ErrOutOfMemory-shaped errors
	// when the provider cannot satisfy the request; the region is left
	// unchanged on failure.
	Extend(bytes int) (uintptr, error)

	// HighAddress reports the address one past the last byte currently
	// reserved.
	HighAddress() uintptr
}

// defaultReservation is the virtual address space reserved up front by
// mmapProvider. Reservation is cheap (anonymous pages are not committed by
// the OS until touched); this just bounds how far the heap may grow before
// Extend starts failing with ErrOutOfMemory.
const defaultReservation = 1 << 30 // 1 GiB

// mmapProvider is the default Provider: one up-front anonymous mmap (via
// the OS primitives in mmap_unix.go/mmap_windows.go, adapted from the
// teacher's own page-acquisition code) treated as a fixed arena, with a
// monotonically advancing high-water mark. Because the backing memory is
// never reallocated or moved, every address handed out by Extend stays
// valid for the provider's lifetime, which is the property the boundary-tag
// allocator built on top of it depends on.
type mmapProvider struct {
	capacity int
	region   []byte
	base     uintptr
	used     int
}

// NewMmapProvider returns a Provider backed by a single anonymous OS
// mapping of the given capacity in bytes. A capacity of 0 uses
// defaultReservation.
func NewMmapProvider(capacity int) Provider {
	if capacity <= 0 {
		capacity = defaultReservation
	}
	return &mmapProvider{capacity: capacity}
}

func (p *mmapProvider) Init() error {
	b, err := mmap(p.capacity)
	if err != nil {
		return err
	}
	p.region = b
	p.base = uintptr(unsafe.Pointer(&b[0]))
	p.used = 0
	return nil
}

func (p *mmapProvider) Extend(bytes int) (uintptr, error) {
	if bytes < 0 || p.used+bytes > p.capacity {
		return 0, ErrOutOfMemory
	}
	base := p.base + uintptr(p.used)
	p.used += bytes
	return base, nil
}

func (p *mmapProvider) HighAddress() uintptr { return p.base + uintptr(p.used) }

// Close releases the OS mapping backing p. Not part of the Provider
// interface: callers that want the memory back early can type-assert for
// it, mirroring the teacher's own Allocator.Close for its mmap'd pages.
func (p *mmapProvider) Close() error {
	if p.region == nil {
		return nil
	}
	err := unmap(unsafe.Pointer(&p.region[0]), len(p.region))
	p.region = nil
	p.base, p.used = 0, 0
	return err
}
