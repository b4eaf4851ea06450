package alertstore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/crowdsense/internal/metrics"
	"github.com/LeonardoBeccarini/crowdsense/internal/model"
)

// Breaker guards a Store with a circuit breaker. While open every call
// fails fast with gobreaker.ErrOpenState. ErrNotFound does not count as a
// failure.
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Store, name string, failures int, openFor time.Duration, m *metrics.Metrics) *Breaker {
	if failures < 1 {
		failures = 1
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	m.SetBreakerState(name, float64(gobreaker.StateClosed))
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= uint32(failures)
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				m.SetBreakerState(name, float64(to))
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state change")
			},
		}),
	}
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) CreateAlert(ctx context.Context, a model.Alert) (model.Alert, error) {
	return execute(b, func() (model.Alert, error) { return b.next.CreateAlert(ctx, a) })
}

func (b *Breaker) Get(ctx context.Context, id string) (model.Alert, error) {
	return execute(b, func() (model.Alert, error) { return b.next.Get(ctx, id) })
}

func (b *Breaker) ListActive(ctx context.Context) ([]model.Alert, error) {
	return execute(b, func() ([]model.Alert, error) { return b.next.ListActive(ctx) })
}

func (b *Breaker) Acknowledge(ctx context.Context, id string) (model.Alert, error) {
	return execute(b, func() (model.Alert, error) { return b.next.Acknowledge(ctx, id) })
}

func (b *Breaker) Resolve(ctx context.Context, id string) (model.Alert, error) {
	return execute(b, func() (model.Alert, error) { return b.next.Resolve(ctx, id) })
}

// Ping bypasses the breaker so readiness reflects the store itself.
func (b *Breaker) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}

func execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if v, ok := res.(T); ok {
			return v, err
		}
		return zero, err
	}
	return res.(T), nil
}
