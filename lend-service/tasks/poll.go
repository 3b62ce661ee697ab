package tasks

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ethereum/go-ethereum/core/types"
)

var ErrConditionNotMet = errors.New("condition not met")

// PollConfig bounds a poll. Zero MaxAttempts or zero MaxElapsed leave that bound out.
type PollConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     uint64
	MaxElapsed      time.Duration
}

const (
	defaultInitialInterval = 100 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
)

func (c PollConfig) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = defaultInitialInterval
	if c.InitialInterval > 0 {
		exp.InitialInterval = c.InitialInterval
	}
	exp.MaxInterval = defaultMaxInterval
	if c.MaxInterval > 0 {
		exp.MaxInterval = c.MaxInterval
	}
	exp.MaxElapsedTime = c.MaxElapsed
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	var b backoff.BackOff = exp
	if c.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, c.MaxAttempts-1)
	}
	return backoff.WithContext(b, ctx)
}

// Condition reports whether the awaited state was reached.
type Condition func(ctx context.Context) (bool, error)

// PollUntil evaluates cond with exponential backoff until it holds.
// It returns ErrConditionNotMet once the bound is exhausted, or the error of the last attempt if that failed.
func PollUntil(ctx context.Context, cfg PollConfig, cond Condition) error {
	var lastErr error
	err := backoff.Retry(func() error {
		ok, err := cond(ctx)
		if err != nil {
			lastErr = err
			return err
		}
		lastErr = nil
		if !ok {
			return ErrConditionNotMet
		}
		return nil
	}, cfg.backOff(ctx))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %w", ErrConditionNotMet, lastErr)
	}
	return ErrConditionNotMet
}

// HeaderSource returns block headers, nil is the latest block.
type HeaderSource interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// ChainTimeReached holds once the timestamp of the latest block is at or after target (unix seconds).
func ChainTimeReached(src HeaderSource, target uint64) Condition {
	return func(ctx context.Context) (bool, error) {
		h, err := src.HeaderByNumber(ctx, nil)
		if err != nil {
			return false, err
		}
		return h.Time >= target, nil
	}
}

// WallClockReached holds once now is at or after target (unix seconds).
func WallClockReached(target uint64, now func() time.Time) Condition {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) (bool, error) {
		return uint64(now().Unix()) >= target, nil
	}
}

// AnyOf holds as soon as one of conds holds. Conditions are evaluated in order,
// an error of one condition is only returned if none holds.
func AnyOf(conds ...Condition) Condition {
	return func(ctx context.Context) (bool, error) {
		var errs []error
		for _, cond := range conds {
			ok, err := cond(ctx)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if ok {
				return true, nil
			}
		}
		return false, errors.Join(errs...)
	}
}
