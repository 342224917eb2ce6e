package page

import "unsafe"

// findEmptySlot scans existing metadata pages in list order for the
// first slot with addr == emptyAddr. It never maps a new metadata page
// itself — callers that need one on failure do so explicitly.
func (a *Allocator) findEmptySlot() *slot {
	for m := a.metaHead; m != nil; m = m.next {
		cap := m.capVal()
		for i := 0; i < cap; i++ {
			s := m.slotAt(i)
			if s.addr == emptyAddr {
				return s
			}
		}
	}
	return nil
}

// claimSlot marks s reserved-but-not-yet-populated and updates its
// owning metadata page's live count and second-chance bit. The final
// addr/pageNum/list-append is left to the caller, which fills it in
// once it knows the real allocation.
func (a *Allocator) claimSlot(s *slot) {
	owner := a.containerOf(s)
	s.addr = reservingAddr
	owner.num++
	owner.setSecondChance(false)
}

// reserveSlot finds a free slot anywhere in the metadata-page list, or
// maps a new metadata page and uses one of its slots if none exists.
func (a *Allocator) reserveSlot() (*slot, error) {
	if s := a.findEmptySlot(); s != nil {
		a.claimSlot(s)
		return s, nil
	}

	// No free slot anywhere: a new metadata page is needed. Its own
	// storage is obtained the same way any 1-page run is, which means
	// it can itself come out of the free-run cache as a split tail —
	// the chicken-and-egg the `extra` out-parameter exists to solve.
	var extra slot
	extra.addr = emptyAddr
	base, err := a.findFreeRun(1, &extra)
	if err != nil {
		return nil, err
	}

	m := a.initMetaPage(base)
	a.metaPushBack(m)

	firstUsable := 0
	if extra.addr != emptyAddr {
		dst := m.slotAt(0)
		dst.addr = extra.addr
		dst.pageNum = extra.pageNum
		dst.prev, dst.next = nil, nil
		a.freePushBack(dst)
		a.freeCachePages += int(extra.pageNum)
		m.num++
		firstUsable = 1
	}

	s := m.slotAt(firstUsable)
	a.claimSlot(s)
	return s, nil
}

// initMetaPage lays out a freshly mapped page as a metadata page: zero
// live count, second-chance bit clear, every slot empty.
func (a *Allocator) initMetaPage(base uintptr) *metaPageHeader {
	m := (*metaPageHeader)(unsafe.Pointer(base))
	n := metaPageCapacity()
	m.setCap(n)
	m.num = 0
	m.setSecondChance(false)
	m.extent = uintptr(PageSize())
	m.prev, m.next = nil, nil
	for i := 0; i < n; i++ {
		s := m.slotAt(i)
		s.addr = emptyAddr
		s.pageNum = 0
		s.prev, s.next = nil, nil
	}
	return m
}
