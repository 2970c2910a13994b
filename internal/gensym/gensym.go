// Package gensym generates hygienic identifiers for the lowering pass's macro
// expansion (spec.md §6's "minimal gensym-hygiene pass", supplemented from
// original_source/'s macro hygiene handling — see SPEC_FULL.md §6).
package gensym

import (
	"fmt"
	"sync/atomic"
)

var counter uint64

// Counter is an injectable, resettable generator for tests that need
// deterministic identifier sequences (the package-level generator is process-
// global and monotonic, matching spec.md §5's append-only determinism story).
type Counter struct {
	n uint64
}

func NewCounter() *Counter { return &Counter{} }

func (c *Counter) Next(base string) string {
	c.n++
	return fmt.Sprintf("##%s#%d", base, c.n)
}

// Next returns a fresh hygienic name derived from base using the shared
// process-global counter.
func Next(base string) string {
	n := atomic.AddUint64(&counter, 1)
	return fmt.Sprintf("##%s#%d", base, n)
}

// Reset is exposed only for tests: production code never rewinds the counter,
// since generated names must never collide across a single compilation.
func Reset() { atomic.StoreUint64(&counter, 0) }
