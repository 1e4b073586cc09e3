package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Breaker trips after consecutive backend failures so that writes to a dead
// remote store fail immediately with gobreaker.ErrOpenState. ErrNotFound is
// a normal answer and never counts against the backend.
type Breaker struct {
	next KV
	cb   *gobreaker.CircuitBreaker[[]byte]
}

// BreakerSettings tunes a Breaker. Zero values pick the defaults.
type BreakerSettings struct {
	Name             string
	FailureThreshold uint32        // consecutive failures before opening, default 3
	OpenTimeout      time.Duration // time spent open before retrying, default 30s
	// HalfOpenRequests are let through after OpenTimeout, default 3 so that
	// one full state snapshot (cart, history, theme) fits.
	HalfOpenRequests uint32
	OnStateChange    func(name string, from, to gobreaker.State)
}

func NewBreaker(next KV, s BreakerSettings) *Breaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 3
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = 3
	}
	threshold := s.FailureThreshold
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        s.Name,
			MaxRequests: s.HalfOpenRequests,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound)
			},
			OnStateChange: s.OnStateChange,
		}),
	}
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) Get(ctx context.Context, key string) ([]byte, error) {
	return b.cb.Execute(func() ([]byte, error) {
		return b.next.Get(ctx, key)
	})
}

func (b *Breaker) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.Set(ctx, key, value)
	})
	return err
}

func (b *Breaker) Claim(ctx context.Context, key string, value []byte) (bool, error) {
	var claimed bool
	_, err := b.cb.Execute(func() ([]byte, error) {
		ok, err := Claim(ctx, b.next, key, value)
		claimed = ok
		return nil, err
	})
	return claimed, err
}

func (b *Breaker) Swap(ctx context.Context, key string, old, value []byte) (bool, error) {
	var swapped bool
	_, err := b.cb.Execute(func() ([]byte, error) {
		ok, err := Swap(ctx, b.next, key, old, value)
		swapped = ok
		return nil, err
	})
	return swapped, err
}
