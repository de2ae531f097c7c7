package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerConfig controls when the ledger breaker opens
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// StateObserver receives breaker state changes; 0 closed, 1 half-open, 2 open
type StateObserver func(name string, state float64)

// BreakerClient guards a Client with a circuit breaker. Only transient failures count against it:
// rejections and not-found answers prove the node is responsive.
type BreakerClient struct {
	inner Client
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps inner. observer may be nil.
func NewBreakerClient(inner Client, cfg BreakerConfig, log logrus.FieldLogger, observer StateObserver) *BreakerClient {
	if cfg.Name == "" {
		cfg.Name = "algod"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrTransient) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("ledger circuit breaker state changed")
			if observer != nil {
				observer(name, stateValue(to))
			}
		},
	}

	return &BreakerClient{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

// State exposes the current breaker state
func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return res, err
}

func (b *BreakerClient) SuggestedParams(ctx context.Context) (NetworkParams, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.inner.SuggestedParams(ctx)
	})
	if err != nil {
		return NetworkParams{}, err
	}
	return res.(NetworkParams), nil
}

func (b *BreakerClient) SubmitRaw(ctx context.Context, signed []byte) (string, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.inner.SubmitRaw(ctx, signed)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (b *BreakerClient) PendingInfo(ctx context.Context, txID string) (PendingInfo, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.inner.PendingInfo(ctx, txID)
	})
	if err != nil {
		return PendingInfo{}, err
	}
	return res.(PendingInfo), nil
}

func (b *BreakerClient) AccountInfo(ctx context.Context, address string) (AccountInfo, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.inner.AccountInfo(ctx, address)
	})
	if err != nil {
		return AccountInfo{}, err
	}
	return res.(AccountInfo), nil
}

// Health bypasses the breaker so probes see the node's real state
func (b *BreakerClient) Health(ctx context.Context) error {
	if hc, ok := b.inner.(HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}
