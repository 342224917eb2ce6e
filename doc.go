// Package callocators is the top-level entry point for this module's
// two allocators: page, a raw OS-page allocator, and arena, a
// bump-pointer arena built on top of it. Most callers only need the
// subpackages directly; this package re-exports the page allocator's
// tunable configuration for callers that want a single import.
package callocators

import "github.com/carterww/callocators/page"

// Config is the page allocator's tunable configuration.
type Config = page.Config

// DefaultConfig returns the default tunables: FreeCapPages = 16,
// StaticSlotCount = 32.
func DefaultConfig() Config { return page.DefaultConfig() }

// SetConfig tunes the package-level default page allocator. It must be
// called before that allocator's first use.
func SetConfig(c Config) error { return page.SetConfig(c) }
