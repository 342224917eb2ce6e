package page

// reclaim runs the second-chance metadata-page reclamation policy: scan
// non-static metadata pages in list order, clear the second-chance bit
// of any with live slots, give an empty page with a clear bit one more
// pass by setting the bit, and evict the first one found already
// marked. At most one page is reclaimed per call. Free invokes reclaim
// on every call that unmaps a run, whether or not that run's metadata
// page became empty.
func (a *Allocator) reclaim() *metaPageHeader {
	for m := a.metaHead; m != nil; {
		next := m.next
		if m == a.staticMeta || m.num > 0 {
			m.setSecondChance(false)
			m = next
			continue
		}
		if !m.secondChance() {
			m.setSecondChance(true)
			m = next
			continue
		}
		a.metaRemove(m)
		return m
	}
	return nil
}
