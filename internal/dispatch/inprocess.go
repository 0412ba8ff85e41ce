package dispatch

import (
	"context"
	"fmt"

	"github.com/rororowyourboat/psuu/internal/paramspace"
	"github.com/rororowyourboat/psuu/internal/simresult"
)

// Model is the capability set the in-process backend consumes (spec §6):
// the user-supplied simulation, invoked directly in the engine's address
// space.
//
// Model has no KPIDefinitions method. A model that wants full control over
// one of its own KPIs can just compute and return it directly on
// Run's *simresult.Result (its KPIs map), which the Controller's
// kpi.Aggregator already lets win over any column/custom reducer
// registered under the same name on collision. That merge rule fully
// subsumes a separate per-model reducer registry, so Model stays the same
// shape across both the in-process and subprocess backends.
type Model interface {
	// Run executes the model for params and returns either a *simresult.Result
	// (KPIs already computed) or a *simresult.Table (raw time series only).
	Run(ctx context.Context, params paramspace.Vector) (any, error)
	ParameterSpace() *paramspace.Space
	ValidateParameters(params paramspace.Vector) error
	Metadata() map[string]any
}

// InProcess is the Dispatcher backend that calls a user Model directly.
type InProcess struct {
	Model Model
}

// NewInProcess builds an in-process Dispatcher backend.
func NewInProcess(model Model) *InProcess {
	return &InProcess{Model: model}
}

// Run validates params against the model's own rules, invokes the model,
// and wraps its return value into the standard SimulationResult.
func (d *InProcess) Run(ctx context.Context, vec paramspace.Vector, attempt int) (*simresult.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(Cancelled, "context already done before dispatch", err)
	}
	if err := d.Model.ValidateParameters(vec); err != nil {
		return nil, NewError(ValidationFailed, "model rejected parameters", err)
	}

	raw, err := d.Model.Run(ctx, vec)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyContextErr(ctx)
		}
		return nil, NewError(ModelInternal, "model.Run returned an error", err)
	}

	switch v := raw.(type) {
	case *simresult.Result:
		return v, nil
	case *simresult.Table:
		return simresult.New(v, nil, d.Model.Metadata(), vec), nil
	default:
		return nil, NewError(ModelInternal, fmt.Sprintf("model returned unsupported type %T", raw), nil)
	}
}

func classifyContextErr(ctx context.Context) *Error {
	if ctx.Err() == context.DeadlineExceeded {
		return NewError(Timeout, "per-call deadline exceeded", ctx.Err())
	}
	return NewError(Cancelled, "context cancelled", ctx.Err())
}
