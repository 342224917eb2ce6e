package page

import "github.com/carterww/callocators/internal/sysmem"

// findFreeRun does a first-fit scan of the free-run cache for a record
// with at least n pages.
//
//   - No such record: map n fresh pages from the platform.
//   - Exact match: detach and hand back its address as-is.
//   - Oversized: split. The tail is either written into *extra (when
//     the caller is itself in the middle of building a new metadata
//     page and has nowhere yet to record it) or committed directly
//     into an existing empty slot and pushed onto the free list.
func (a *Allocator) findFreeRun(n int, extra *slot) (uintptr, error) {
	for s := a.freeHead; s != nil; s = s.next {
		if int(s.pageNum) < n {
			continue
		}

		full := int(s.pageNum)
		base := s.addr
		a.freeRemove(s)
		a.freeCachePages -= full

		if full == n {
			return base, nil
		}

		tailAddr := base + uintptr(n)*uintptr(PageSize())
		tailPages := full - n

		if extra != nil {
			extra.addr = tailAddr
			extra.pageNum = uint32(tailPages)
			extra.prev, extra.next = nil, nil
			return base, nil
		}

		ns := a.findEmptySlot()
		if ns == nil {
			a.fatalf("page: no free metadata slot to record split tail: invariant violation")
			return base, nil
		}
		ns.addr = tailAddr
		ns.pageNum = uint32(tailPages)
		ns.prev, ns.next = nil, nil
		a.freePushBack(ns)
		a.freeCachePages += tailPages

		owner := a.containerOf(ns)
		owner.num++
		owner.setSecondChance(false)
		return base, nil
	}

	return sysmem.Map(n)
}
