// Copyright 2024 The Malloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

import (
	"errors"
	"unsafe"
)

// fakeProvider is a Provider backed by a plain Go byte slice instead of a
// real OS mapping, so tests can exercise ErrInit/ErrOutOfMemory paths
// (by capping capacity or flipping failNext) without depending on the
// host's actual address space. Go's allocator doesn't move live heap
// objects, so the backing array's address is stable for the life of the
// fakeProvider, the same contiguity guarantee Provider requires of a
// real implementation.
type fakeProvider struct {
	buf       []byte
	off       int // offset of the first 16-byte-aligned byte in buf
	used      int
	failInit  bool
	failNext  bool // fail the very next Extend call, then reset
	failAfter int  // fail once used would exceed this many bytes; 0 = unlimited
}

func newFakeProvider(capacity int) *fakeProvider {
	buf := make([]byte, capacity+dwordSize)
	start := uintptr(unsafe.Pointer(&buf[0]))
	off := 0
	if r := start % dwordSize; r != 0 {
		off = int(uintptr(dwordSize) - r)
	}
	return &fakeProvider{buf: buf, off: off}
}

func (p *fakeProvider) Init() error {
	if p.failInit {
		return errors.New("fakeProvider: init refused")
	}
	p.used = 0
	return nil
}

func (p *fakeProvider) Extend(bytes int) (uintptr, error) {
	if p.failNext {
		p.failNext = false
		return 0, errors.New("fakeProvider: extend refused (forced)")
	}
	if p.failAfter != 0 && p.used+bytes > p.failAfter {
		return 0, errors.New("fakeProvider: extend refused (quota)")
	}
	if p.off+p.used+bytes > len(p.buf) {
		return 0, errors.New("fakeProvider: extend refused (capacity)")
	}

	base := uintptr(unsafe.Pointer(&p.buf[p.off+p.used]))
	p.used += bytes
	return base, nil
}

func (p *fakeProvider) HighAddress() uintptr {
	return uintptr(unsafe.Pointer(&p.buf[p.off])) + uintptr(p.used)
}

// newTestAllocator returns an initialized Allocator backed by a
// fakeProvider with plenty of headroom for small unit tests.
func newTestAllocator(t interface{ Fatal(...interface{}) }) *Allocator {
	a := New(Options{Provider: newFakeProvider(1 << 20)})
	if err := a.Init(); err != nil {
		t.Fatal(err)
	}
	return a
}
