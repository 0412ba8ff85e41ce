// Package optimizer implements the ask/tell Optimizer family behind one
// uniform contract: grid, random, and Bayesian search over a
// paramspace.Space (spec §4.4).
package optimizer

import "github.com/rororowyourboat/psuu/internal/paramspace"

// Handle is the opaque token Propose returns alongside a proposal; it is
// passed back to Observe so observations can arrive out of order.
type Handle int64

// Optimizer is the uniform ask/tell contract every search strategy
// implements.
type Optimizer interface {
	// Propose returns the next vector to evaluate and its handle. ok is
	// false once the optimizer's budget is exhausted (the `done` sentinel).
	Propose() (vec paramspace.Vector, handle Handle, ok bool)

	// Observe feeds back the scalar objective for a previously proposed
	// handle, or records a failure if failed is true. Calls may arrive out
	// of proposal order.
	Observe(handle Handle, objectiveValue float64, failed bool)

	// Best returns the best vector and objective observed so far. ok is
	// false if no ok observation has been recorded yet.
	Best() (vec paramspace.Vector, objectiveValue float64, ok bool)
}
