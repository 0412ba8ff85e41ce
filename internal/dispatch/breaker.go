package dispatch

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rororowyourboat/psuu/internal/paramspace"
	"github.com/rororowyourboat/psuu/internal/simresult"
)

// WithBreaker wraps a Dispatcher (normally the subprocess backend) with a
// circuit breaker so a consistently failing simulation binary does not let
// every worker spin through a tight spawn/exit loop. Grounded on the
// teacher's infra/breakers.Breaker: same ReadyToTrip shape (3 consecutive
// failures, or >5% failure rate over a 20+ request window), adapted from a
// package-level helper into a Dispatcher decorator.
func WithBreaker(inner Dispatcher, name string) Dispatcher {
	settings := gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
	}
	return &breakerDispatcher{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

type breakerDispatcher struct {
	inner Dispatcher
	cb    *gobreaker.CircuitBreaker
}

func (b *breakerDispatcher) Run(ctx context.Context, vec paramspace.Vector, attempt int) (*simresult.Result, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.inner.Run(ctx, vec, attempt)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, NewError(SpawnFailed, "circuit breaker open", err)
		}
		return nil, err
	}
	return out.(*simresult.Result), nil
}
