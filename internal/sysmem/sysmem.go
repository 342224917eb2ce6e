// Package sysmem is the sole platform surface used by the rest of this
// module. It acquires and releases anonymous, read/write,
// process-private page runs from the host OS and reports the host page
// size. Every other package reaches the operating system only through
// here, which is what lets the page allocator and arena stay portable.
package sysmem

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	pageSizeOnce sync.Once
	pageSizeVal  int
)

// PageSize returns the host page size in bytes. It is queried from the
// kernel once and memoized.
func PageSize() int {
	pageSizeOnce.Do(func() {
		pageSizeVal = unix.Getpagesize()
	})
	return pageSizeVal
}

// Map returns the base address of a freshly mapped, anonymous,
// read/write, process-private run of n pages. The returned address is
// page-aligned.
func Map(n int) (uintptr, error) {
	if n < 1 {
		return 0, fmt.Errorf("sysmem: Map: n must be >= 1, got %d", n)
	}
	size := n * PageSize()
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, fmt.Errorf("sysmem: mmap %d pages: %w", n, err)
	}
	return uintptr(unsafe.Pointer(&b[0])), nil
}

// Unmap releases a run of n pages inside memory returned by Map. base
// need not be the start of an original Map call: any page-aligned
// sub-run of a mapping can be released on its own.
func Unmap(base uintptr, n int) error {
	size := n * PageSize()
	if _, _, errno := unix.Syscall(unix.SYS_MUNMAP, base, uintptr(size), 0); errno != 0 {
		return fmt.Errorf("sysmem: munmap %d pages at %#x: %w", n, base, errno)
	}
	return nil
}
