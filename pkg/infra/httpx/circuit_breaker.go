package httpx

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

const defaultHalfOpenRequests = 3

type CircuitBreaker interface {
	Execute(fn func() error) error
}

type circuitBreakerWrapper struct {
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreaker trips after maxFailures consecutive failures and stays
// open for timeout. Once half-open, at most halfOpenRequests probes are
// admitted before the state is decided.
func NewCircuitBreaker(name string, timeout time.Duration, maxFailures, halfOpenRequests uint32) CircuitBreaker {
	if halfOpenRequests == 0 {
		halfOpenRequests = defaultHalfOpenRequests
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: halfOpenRequests,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	}
	return &circuitBreakerWrapper{
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *circuitBreakerWrapper) Execute(fn func() error) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err != nil {
		return fmt.Errorf("breaker (%s): %w", g.breaker.Name(), err)
	}
	return nil
}
