package arena

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"github.com/carterww/callocators/page"
)

func TestCreateDefaults(t *testing.T) {
	a := Create()
	require.NotNil(t, a)
	require.Zero(t, uintptr(unsafe.Pointer(a))%uintptr(wordSize))
	a.Free()
}

func TestAllocLinearity(t *testing.T) {
	a := Create()
	defer a.Free()

	p1 := a.Alloc(16)
	p2 := a.Alloc(16)
	require.NotNil(t, p1)
	require.NotNil(t, p2)
	require.Greater(t, uintptr(p2), uintptr(p1))
	require.Zero(t, uintptr(p1)%wordSize)
	require.Zero(t, uintptr(p2)%wordSize)
}

func TestAllocZeroed(t *testing.T) {
	a := Create()
	defer a.Free()

	p := a.Alloc(64)
	b := unsafe.Slice((*byte)(p), 64)
	for _, v := range b {
		require.Zero(t, v)
	}
	for i := range b {
		b[i] = 0xFF
	}
}

func TestAllocNonPositiveReturnsNil(t *testing.T) {
	a := Create()
	defer a.Free()
	require.Nil(t, a.Alloc(0))
	require.Nil(t, a.Alloc(-5))
}

func TestChainGrowsUnderPressure(t *testing.T) {
	ps := page.PageSize()
	a := CreateExt(ps, ps)
	defer a.Free()

	// First run is consumed almost entirely by the Arena header itself
	// plus this request, forcing at least one growth run to appear.
	_ = a.Alloc(ps)
	require.NotNil(t, a.firstGrowth)
}

func TestMultipleArenasIndependent(t *testing.T) {
	a1 := Create()
	a2 := Create()
	defer a1.Free()
	defer a2.Free()

	p1 := a1.Alloc(8)
	p2 := a2.Alloc(8)
	require.NotEqual(t, p1, p2)
}

// An Arena is not internally synchronized: concurrent Alloc calls
// against one shared Arena are a caller-imposed data race, not
// something this package guards against (see the package doc comment).
// This test documents that by construction — one Arena per goroutine —
// rather than racing a single Arena, since doing the latter here would
// make -race fail on exactly the behavior the package documents as a
// caller error.
func TestConcurrentUseRequiresOneArenaPerGoroutine(t *testing.T) {
	const goroutines = 8
	var wg sync.WaitGroup
	ptrs := make([]unsafe.Pointer, goroutines)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			a := Create()
			defer a.Free()
			ptrs[idx] = a.Alloc(32)
		}(g)
	}
	wg.Wait()

	for _, p := range ptrs {
		require.NotNil(t, p)
	}
}
