// Package arena implements a bump-pointer allocation arena layered on
// top of the page allocator. An Arena grows as a singly-linked chain of
// page runs; everything allocated from it lives inside those runs, and
// a single Free releases the entire chain at once. There is no
// per-allocation free.
//
// The Arena handle itself is not heap-allocated: Create/CreateExt carve
// it out of the start of the arena's first page run, the same
// self-hosting trick the page allocator uses for its own bookkeeping.
//
// An Arena is not internally synchronized. A single Arena is meant to
// be owned and used by one goroutine (or externally serialized by the
// caller) at a time; concurrent Alloc/Free calls against the same
// Arena are a caller-imposed data race, not something this package
// guards against.
package arena

import (
	"unsafe"

	"github.com/carterww/callocators/internal/clog"
	"github.com/carterww/callocators/page"
)

// Default sizing: an arena starts with one page and grows one page at
// a time unless told otherwise.
const (
	DefaultInitialBytes = 0 // normalized to one page
	DefaultGrowthBytes  = 0 // normalized to one page
)

var wordSize = unsafe.Sizeof(uintptr(0))

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

func pagesFor(bytes, ps int) int {
	if bytes <= 0 {
		return 1
	}
	return (bytes + ps - 1) / ps
}

// pageHeader is the bookkeeping embedded at the front of every growth
// run after the first: a forward link and the end of that run's usable
// range. The first run's header is the Arena struct itself.
type pageHeader struct {
	next *pageHeader
	end  uintptr
}

// Arena is a bump allocator over a chain of page runs. Alloc returns
// nil, leaving the arena unchanged, when the page allocator returns an
// error for a growth run; the page allocator itself terminates the
// process when the platform cannot map memory.
// Not safe for concurrent use: see the package doc comment.
type Arena struct {
	growthBytes int

	cur uintptr
	end uintptr

	firstGrowth *pageHeader
	lastGrowth  *pageHeader
}

var fatalf = func(format string, args ...interface{}) {
	clog.L().Fatal().Msgf(format, args...)
}

// Create returns a new arena with the default initial size and growth
// increment (one page each).
func Create() *Arena {
	return CreateExt(DefaultInitialBytes, DefaultGrowthBytes)
}

// CreateExt returns a new arena whose first run holds at least
// initialBytes and whose subsequent growth runs hold at least
// growthBytes each. Non-positive values normalize to one page.
func CreateExt(initialBytes, growthBytes int) *Arena {
	ps := page.PageSize()
	n := pagesFor(initialBytes, ps)

	base, err := page.Alloc(n)
	if err != nil {
		fatalf("arena: map initial %d page run: %v", n, err)
		return nil
	}

	a := (*Arena)(unsafe.Pointer(base))
	a.growthBytes = growthBytes
	a.firstGrowth = nil
	a.lastGrowth = nil
	a.end = base + uintptr(n)*uintptr(ps)
	a.cur = alignUp(base+unsafe.Sizeof(Arena{}), wordSize)
	return a
}

// Alloc returns k bytes of zero-valued, word-aligned memory from a.
// The memory remains valid until a's next Free. k <= 0 returns nil.
func (a *Arena) Alloc(k int) unsafe.Pointer {
	if k <= 0 {
		return nil
	}

	need := alignUp(uintptr(k), wordSize)
	if a.cur+need > a.end {
		if !a.grow(need) {
			return nil
		}
	}
	p := a.cur
	a.cur += need

	b := unsafe.Slice((*byte)(unsafe.Pointer(p)), need)
	for i := range b {
		b[i] = 0
	}
	return unsafe.Pointer(p)
}

// grow maps a new page run large enough for at least need bytes plus
// its own pageHeader, links it onto the chain, and makes it current.
// It reports false, without touching a, if the page allocator fails.
func (a *Arena) grow(need uintptr) bool {
	ps := page.PageSize()
	want := a.growthBytes
	minBytes := int(need) + int(unsafe.Sizeof(pageHeader{}))
	if want < minBytes {
		want = minBytes
	}
	n := pagesFor(want, ps)

	base, err := page.Alloc(n)
	if err != nil {
		return false
	}

	h := (*pageHeader)(unsafe.Pointer(base))
	h.next = nil
	h.end = base + uintptr(n)*uintptr(ps)

	if a.lastGrowth != nil {
		a.lastGrowth.next = h
	} else {
		a.firstGrowth = h
	}
	a.lastGrowth = h

	a.cur = alignUp(base+unsafe.Sizeof(pageHeader{}), wordSize)
	a.end = h.end
	return true
}

// Free releases every page run backing a, including the run holding a
// itself. a must not be used afterward.
func (a *Arena) Free() {
	h := a.firstGrowth

	for h != nil {
		next := h.next
		page.Free(uintptr(unsafe.Pointer(h)))
		h = next
	}
	page.Free(uintptr(unsafe.Pointer(a)))
}
