package dispatch

import (
	"context"

	"github.com/rororowyourboat/psuu/internal/paramspace"
	"github.com/rororowyourboat/psuu/internal/simresult"
)

// Dispatcher is the single contract both backends implement: evaluate one
// parameter vector and produce a SimulationResult. ctx carries the
// per-call deadline and cancellation signal; attempt is 1 on the first try
// and increases on Controller-driven retries, used for Jitter.
type Dispatcher interface {
	Run(ctx context.Context, vec paramspace.Vector, attempt int) (*simresult.Result, error)
}
