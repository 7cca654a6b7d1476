// Copyright 2024 The Malloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package malloc

import "os"

// osPageSize/osPageMask are shared between mmap_unix.go and
// mmap_windows.go, both adapted from the teacher's per-OS mmap
// implementations (cznic/memory's mmap_unix.go / mmap_windows.go).
var (
	osPageSize = os.Getpagesize()
	osPageMask = osPageSize - 1
)

// mmap reserves size bytes of zeroed, anonymous, read-write memory rounded
// up to the OS page size and returns it as a byte slice whose backing
// array never moves for the lifetime of the mapping.
func mmap(size int) ([]byte, error) {
	if r := size % osPageSize; r != 0 {
		size += osPageSize - r
	}
	return mmap0(size)
}
