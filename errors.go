// Copyright 2024 The Malloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

import "errors"

// ErrInit is returned by Init/New when the underlying memory provider
// refuses the initial reservation.
var ErrInit = errors.New("malloc: provider refused initial reservation")

// ErrOutOfMemory is returned when the memory provider refuses a heap
// extension requested during Allocate or Reallocate. The allocator's
// internal state is left unchanged when this error is returned.
var ErrOutOfMemory = errors.New("malloc: provider refused heap extension")

// ErrNotInitialized is returned by operations performed on an Allocator
// whose Init has not (yet) succeeded.
var ErrNotInitialized = errors.New("malloc: allocator not initialized")

// CorruptionError describes a single invariant violation found by Check.
// It is never returned by Allocate/Free/Reallocate themselves; it is only
// ever produced by (*Allocator).Check.
type CorruptionError struct {
	Invariant string // which of I1-I5 was violated
	Address   uintptr
	Want      uint32
	Got       uint32
	Detail    string
}

func (e *CorruptionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "malloc: corruption: " + e.Invariant + " at " + hex(e.Address) + ": " + e.Detail
}

func hex(p uintptr) string {
	const digits = "0123456789abcdef"
	if p == 0 {
		return "0x0"
	}
	buf := make([]byte, 0, 18)
	buf = append(buf, '0', 'x')
	started := false
	for shift := 60; shift >= 0; shift -= 4 {
		d := (p >> uint(shift)) & 0xf
		if d != 0 {
			started = true
		}
		if started {
			buf = append(buf, digits[d])
		}
	}
	return string(buf)
}
