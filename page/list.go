package page

// The used list and free-run cache both thread slot records; a slot
// can only ever be on one of them, never both, an invariant these
// helpers don't need to enforce since callers only ever push a slot
// onto one list at a time.

func (a *Allocator) slotPushBack(head, tail **slot, s *slot) {
	s.prev = *tail
	s.next = nil
	if *tail != nil {
		(*tail).next = s
	} else {
		*head = s
	}
	*tail = s
}

func (a *Allocator) slotRemove(head, tail **slot, s *slot) {
	if s.prev != nil {
		s.prev.next = s.next
	} else {
		*head = s.next
	}
	if s.next != nil {
		s.next.prev = s.prev
	} else {
		*tail = s.prev
	}
	s.prev, s.next = nil, nil
}

func (a *Allocator) usedPushBack(s *slot) { a.slotPushBack(&a.usedHead, &a.usedTail, s) }
func (a *Allocator) usedRemove(s *slot)   { a.slotRemove(&a.usedHead, &a.usedTail, s) }
func (a *Allocator) freePushBack(s *slot) { a.slotPushBack(&a.freeHead, &a.freeTail, s) }
func (a *Allocator) freeRemove(s *slot)   { a.slotRemove(&a.freeHead, &a.freeTail, s) }

func (a *Allocator) metaPushBack(m *metaPageHeader) {
	m.prev = a.metaTail
	m.next = nil
	if a.metaTail != nil {
		a.metaTail.next = m
	} else {
		a.metaHead = m
	}
	a.metaTail = m
}

func (a *Allocator) metaRemove(m *metaPageHeader) {
	if m.prev != nil {
		m.prev.next = m.next
	} else {
		a.metaHead = m.next
	}
	if m.next != nil {
		m.next.prev = m.prev
	} else {
		a.metaTail = m.prev
	}
	m.prev, m.next = nil, nil
}
