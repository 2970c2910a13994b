// Package config holds the exactly-three process-wide mutable globals spec.md
// §5 permits (the cancellation flag, the big-float precision, and the
// big-float rounding mode), plus the PoisonGuard type that internal/base uses
// to hold its lazily-initialized Base program. Grounded on the teacher's atomic.Int32 channel-id
// counter (internal/vm/vm.go) and its sync.RWMutex + recover() "poison"
// pattern (internal/vm/module_loader.go), generalized here to a single
// process-wide guard rather than one per module instance.
package config

import (
	"math/big"
	"sync"
	"sync/atomic"
)

// Cancelled is polled by the VM's dispatch loop between instructions so a host
// embedding the interpreter can request a cooperative stop (spec.md §5:
// "single-threaded, cooperative, no coroutines").
var cancelled atomic.Bool

func RequestCancel()     { cancelled.Store(true) }
func IsCancelled() bool  { return cancelled.Load() }
func ResetCancel()       { cancelled.Store(false) }

// BigFloat precision/rounding are global rather than per-value because
// spec.md §3.3 treats BigFloat precision as an ambient interpreter setting,
// matching Julia's own `setprecision!`/`setrounding!` semantics.
var (
	bigFloatPrecision atomic.Uint64
	bigFloatRounding  atomic.Uint32 // big.RoundingMode, stored as uint32
)

func init() {
	bigFloatPrecision.Store(256)
	bigFloatRounding.Store(uint32(big.ToNearestEven))
}

func BigFloatPrecision() uint { return uint(bigFloatPrecision.Load()) }
func SetBigFloatPrecision(p uint) { bigFloatPrecision.Store(uint64(p)) }

func BigFloatRounding() big.RoundingMode { return big.RoundingMode(bigFloatRounding.Load()) }
func SetBigFloatRounding(r big.RoundingMode) { bigFloatRounding.Store(uint32(r)) }

// PoisonGuard wraps a value behind a sync.RWMutex that remembers whether a
// previous holder panicked mid-mutation, so later callers get a clear error
// instead of silently reading torn state — the teacher's recover()-in-
// module_loader.go pattern made reusable for any guarded resource (here: the
// lazily compiled Base program, spec.md §6.3).
type PoisonGuard[T any] struct {
	mu      sync.RWMutex
	value   T
	poisoned bool
	initFn  func() (T, error)
	built   bool
}

func NewPoisonGuard[T any](initFn func() (T, error)) *PoisonGuard[T] {
	return &PoisonGuard[T]{initFn: initFn}
}

// Get lazily builds the guarded value on first access, recovering a panic in
// initFn into the poisoned state rather than leaving the mutex held forever.
func (g *PoisonGuard[T]) Get() (result T, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.poisoned {
		var zero T
		return zero, ErrPoisoned
	}
	if g.built {
		return g.value, nil
	}
	defer func() {
		if r := recover(); r != nil {
			g.poisoned = true
			var zero T
			result = zero
			err = ErrPoisoned
		}
	}()
	v, initErr := g.initFn()
	if initErr != nil {
		g.poisoned = true
		var zero T
		return zero, initErr
	}
	g.value = v
	g.built = true
	return g.value, nil
}

var ErrPoisoned = poisonedError{}

type poisonedError struct{}

func (poisonedError) Error() string { return "config: guarded resource poisoned by a prior panic" }
