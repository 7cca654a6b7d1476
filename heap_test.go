// Copyright 2024 The Malloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

import "testing"

func TestHeapInitLayout(t *testing.T) {
	a := New(Options{Provider: newFakeProvider(1 << 16)})
	if err := a.Init(); err != nil {
		t.Fatal(err)
	}

	if !alignedTo16(a.heapStart) {
		t.Fatalf("heapStart %#x not 16-byte aligned", a.heapStart)
	}
	if got := sizeWords(a.heapStart); got != initialBlockWords {
		t.Fatalf("initial block size = %d words, want %d", got, initialBlockWords)
	}
	if isAllocated(a.heapStart) {
		t.Fatal("initial block must start out free")
	}
	if got := sizeWords(a.epilogueBase); got != 0 {
		t.Fatalf("epilogue size = %d, want 0", got)
	}
	if !isAllocated(a.epilogueBase) {
		t.Fatal("epilogue must read as allocated")
	}
	prologueAddr := a.heapStart - dwordSize/2
	if readTag(prologueAddr) != allocBit {
		t.Fatal("prologue tag is not size-0/allocated")
	}

	if err := a.Check(); err != nil {
		t.Fatalf("Check() = %v, want nil", err)
	}
}

func TestHeapInitProviderFailure(t *testing.T) {
	a := New(Options{Provider: &fakeProvider{failInit: true}})
	if err := a.Init(); err != ErrInit {
		t.Fatalf("Init() = %v, want ErrInit", err)
	}
}

func TestHeapExtendLeftCoalesce(t *testing.T) {
	// Scenario 4 of spec.md §8: the initial block starts out free, and a
	// request far larger than it must grow the heap by only the
	// shortfall, producing one allocated block that starts at the
	// initial block's base.
	a := newTestAllocator(t)

	if isAllocated(a.heapStart) {
		t.Fatal("initial block must start out free")
	}
	initialFree := sizeWords(a.heapStart)
	wordsNeeded := roundupWords(100000)
	fp := a.provider.(*fakeProvider)
	usedBefore := fp.used

	p, err := a.Allocate(100000)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fp.used-usedBefore, (wordsNeeded-initialFree)*wordSize; got != want {
		t.Fatalf("extension requested %d bytes, want only the shortfall %d", got, want)
	}
	base := sliceBase(p)
	if base != a.heapStart {
		t.Fatalf("left-coalesced allocation base = %#x, want heapStart %#x", base, a.heapStart)
	}
	if got := sizeWords(base); got != wordsNeeded {
		t.Fatalf("allocated block size = %d words, want %d", got, wordsNeeded)
	}
	if initialFree >= wordsNeeded {
		t.Fatalf("test setup invalid: initial free block (%d words) already covers request (%d words)", initialFree, wordsNeeded)
	}
	if err := a.Check(); err != nil {
		t.Fatalf("Check() after left-coalesced extension = %v", err)
	}
}

func TestHeapExtendDistinctRegions(t *testing.T) {
	// Scenario 3: two allocations large enough that the second must
	// trigger its own extension; both must succeed with non-overlapping
	// payloads.
	a := newTestAllocator(t)

	x, err := a.Allocate(4072)
	if err != nil {
		t.Fatal(err)
	}
	y, err := a.Allocate(4072)
	if err != nil {
		t.Fatal(err)
	}
	if a.extensions < 2 {
		t.Fatalf("extensions = %d, want at least 2", a.extensions)
	}
	xb, yb := sliceBase(x), sliceBase(y)
	if xb == yb {
		t.Fatal("second allocation reused the first's address")
	}
	xEnd := xb + uintptr(len(x))
	if xEnd > yb && yb+uintptr(len(y)) > xb {
		t.Fatalf("payloads overlap: x=[%#x,%#x) y=[%#x,%#x)", xb, xEnd, yb, yb+uintptr(len(y)))
	}
	if err := a.Check(); err != nil {
		t.Fatalf("Check() = %v", err)
	}
}

func TestHeapExtendOutOfMemory(t *testing.T) {
	p := newFakeProvider(256)
	a := New(Options{Provider: p})
	if err := a.Init(); err != nil {
		t.Fatal(err)
	}

	if _, err := a.Allocate(1 << 20); err != ErrOutOfMemory {
		t.Fatalf("Allocate() err = %v, want ErrOutOfMemory", err)
	}
	// Failed extension must leave the allocator's tracked state usable.
	if err := a.Check(); err != nil {
		t.Fatalf("Check() after failed extension = %v", err)
	}
}
