package lowering

import "vela/internal/gensym"

// hygiene scopes gensym'd names to a single Lowerer instance rather than the
// process-global counter, so two independent compilations never need to
// coordinate to avoid name collisions in their desugared output (spec.md's
// glossary: "gensym... used to avoid capture in macro expansion"; this
// Lowerer's match desugaring is the one place that needs a fresh name).
type hygiene struct {
	counter *gensym.Counter
}

func newHygiene() *hygiene { return &hygiene{counter: gensym.NewCounter()} }

func (h *hygiene) next(base string) string { return h.counter.Next(base) }
