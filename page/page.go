// Package page implements the page allocator: it hands out contiguous
// runs of OS pages, keeps a bounded cache of recently freed runs to
// avoid constant round-trips to the kernel, and tracks every
// outstanding allocation in metadata stored on dedicated metadata pages
// that the allocator bootstraps and manages itself.
//
// All exported operations are serialized by a single mutex per
// Allocator. Alloc/Free never suspend except for that mutex and the
// underlying platform mapping calls; there are no cooperative yield
// points.
package page

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/carterww/callocators/internal/clog"
	"github.com/carterww/callocators/internal/sysmem"
)

// Default tunable values.
const (
	DefaultFreeCap         = 16
	DefaultStaticSlotCount = 32
)

// ErrInvalidCount is returned by Alloc when n < 1. No side effects
// occur before this check.
var ErrInvalidCount = errors.New("page: n must be >= 1")

// ErrAlreadyInitialized is returned by SetConfig once the package-level
// default allocator has already been constructed.
var ErrAlreadyInitialized = errors.New("page: config set after default allocator was already initialized")

// ErrInvalidConfig is returned by SetConfig for a non-positive tunable.
var ErrInvalidConfig = errors.New("page: invalid configuration")

// Config holds the allocator's tunables. The zero value is not valid;
// use DefaultConfig or New's own zero-value normalization.
type Config struct {
	// FreeCapPages bounds the total pages cached across the free-run
	// list. Default: 16.
	FreeCapPages int
	// StaticSlotCount sizes the one static metadata page that breaks
	// the self-bootstrap cycle. Default: 32.
	StaticSlotCount int
}

// DefaultConfig returns the default tunables: FreeCapPages = 16,
// StaticSlotCount = 32.
func DefaultConfig() Config {
	return Config{FreeCapPages: DefaultFreeCap, StaticSlotCount: DefaultStaticSlotCount}
}

// Allocator is one page allocator instance: its own metadata-page list,
// used list, free-run cache, and mutex. The package-level Alloc/Free/
// SetConfig operate on a single lazily-initialized default instance;
// New constructs an independent instance, useful for tests and for
// processes that want isolated allocator domains rather than sharing
// the one package-level default.
type Allocator struct {
	mu  sync.Mutex
	cfg Config

	metaHead, metaTail *metaPageHeader
	usedHead, usedTail *slot
	freeHead, freeTail *slot
	freeCachePages     int

	staticBuf  []byte
	staticMeta *metaPageHeader
}

// New constructs an allocator with cfg, normalizing non-positive fields
// to their defaults.
func New(cfg Config) *Allocator {
	if cfg.FreeCapPages <= 0 {
		cfg.FreeCapPages = DefaultFreeCap
	}
	if cfg.StaticSlotCount <= 0 {
		cfg.StaticSlotCount = DefaultStaticSlotCount
	}
	return &Allocator{cfg: cfg}
}

// fatalf reports an unrecoverable condition (platform map/unmap
// failure, or a container-lookup invariant violation) and terminates
// the process. It is a package variable so tests can observe these
// paths without killing the test binary.
var fatalf = func(format string, args ...interface{}) {
	clog.L().Fatal().Msgf(format, args...)
}

func (a *Allocator) fatalf(format string, args ...interface{}) {
	fatalf(format, args...)
}

// ensureStaticPage lazily threads the static metadata page onto the
// metadata-page list the first time this allocator is used: it gives
// the very first allocation somewhere to record its slot before any
// mapped metadata page exists, breaking the otherwise circular
// dependency of needing a mapped page to record the first mapped page.
func (a *Allocator) ensureStaticPage() {
	if a.staticMeta != nil {
		return
	}
	n := a.cfg.StaticSlotCount
	size := int(metaHeaderSize) + n*int(slotSize)
	a.staticBuf = make([]byte, size)

	base := uintptr(unsafe.Pointer(&a.staticBuf[0]))
	m := (*metaPageHeader)(unsafe.Pointer(base))
	m.setCap(n)
	m.num = 0
	m.setSecondChance(false)
	m.extent = uintptr(size)
	m.prev, m.next = nil, nil
	for i := 0; i < n; i++ {
		s := m.slotAt(i)
		s.addr = emptyAddr
		s.pageNum = 0
		s.prev, s.next = nil, nil
	}

	a.staticMeta = m
	a.metaPushBack(m)
}

// Alloc returns the base of a freshly reserved, page-aligned run of n
// contiguous pages. n must be >= 1.
func (a *Allocator) Alloc(n int) (uintptr, error) {
	if n < 1 {
		return 0, ErrInvalidCount
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.ensureStaticPage()

	s, err := a.reserveSlot()
	if err != nil {
		a.fatalf("page: reserve metadata slot: %v", err)
		return 0, err
	}

	base, err := a.findFreeRun(n, nil)
	if err != nil {
		a.fatalf("page: allocate %d page run: %v", n, err)
		return 0, err
	}

	s.addr = base
	s.pageNum = uint32(n)
	s.prev, s.next = nil, nil
	a.usedPushBack(s)
	return base, nil
}

// Free retires the run based at p. p is rounded down to page
// alignment. An unknown or already-freed p is a silent no-op.
func (a *Allocator) Free(p uintptr) {
	p = p &^ uintptr(PageSize()-1)

	a.mu.Lock()
	a.ensureStaticPage()

	s := a.findUsed(p)
	if s == nil {
		a.mu.Unlock()
		return
	}
	a.usedRemove(s)

	// Admission to the cache is checked against the counter's value
	// *before* this free, so a single free can carry the cache slightly
	// past FreeCapPages; only the next free, seeing the already-over-
	// budget counter, is refused and really unmapped.
	if a.freeCachePages <= a.cfg.FreeCapPages {
		s.prev, s.next = nil, nil
		a.freePushBack(s)
		a.freeCachePages += int(s.pageNum)
		a.mu.Unlock()
		return
	}

	base := s.addr
	n := int(s.pageNum)
	owner := a.containerOf(s)
	s.addr = emptyAddr
	s.pageNum = 0
	s.prev, s.next = nil, nil
	owner.num--

	victim := a.reclaim()
	a.mu.Unlock()

	if err := sysmem.Unmap(base, n); err != nil {
		a.fatalf("page: unmap %d pages at %#x: %v", n, base, err)
	}
	if victim != nil {
		if err := sysmem.Unmap(uintptr(unsafe.Pointer(victim)), 1); err != nil {
			a.fatalf("page: unmap reclaimed metadata page: %v", err)
		}
	}
}

func (a *Allocator) findUsed(p uintptr) *slot {
	for s := a.usedHead; s != nil; s = s.next {
		if s.addr == p {
			return s
		}
	}
	return nil
}

// containerOf finds the metadata page owning s by scanning the
// metadata-page list for the one whose address range contains s.
// Failing to find one is a fatal invariant violation: every live slot
// must belong to exactly one metadata page.
func (a *Allocator) containerOf(s *slot) *metaPageHeader {
	addr := uintptr(unsafe.Pointer(s))
	for m := a.metaHead; m != nil; m = m.next {
		base := uintptr(unsafe.Pointer(m))
		if addr >= base && addr < base+m.extent {
			return m
		}
	}
	a.fatalf("page: container lookup failed for slot at %#x: invariant violation", addr)
	return nil
}

// PageSize is the host page size.
func PageSize() int { return sysmem.PageSize() }

var (
	defaultOnce        sync.Once
	defaultAlloc       *Allocator
	configMu           sync.Mutex
	defaultCfg         = DefaultConfig()
	defaultInitialized bool
)

// SetConfig tunes the package-level default allocator. It must be
// called before the first Alloc/Free on the default allocator;
// afterward it reports ErrAlreadyInitialized rather than silently
// ignoring the request.
func SetConfig(c Config) error {
	configMu.Lock()
	defer configMu.Unlock()
	if defaultInitialized {
		return ErrAlreadyInitialized
	}
	if c.FreeCapPages <= 0 || c.StaticSlotCount <= 0 {
		return ErrInvalidConfig
	}
	defaultCfg = c
	return nil
}

func defaultAllocator() *Allocator {
	defaultOnce.Do(func() {
		configMu.Lock()
		cfg := defaultCfg
		defaultInitialized = true
		configMu.Unlock()
		defaultAlloc = New(cfg)
	})
	return defaultAlloc
}

// Alloc allocates from the package-level default allocator.
func Alloc(n int) (uintptr, error) { return defaultAllocator().Alloc(n) }

// Free frees on the package-level default allocator.
func Free(p uintptr) { defaultAllocator().Free(p) }

// Size returns the host page size.
func Size() int { return PageSize() }
