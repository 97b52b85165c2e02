package model

import (
	"context"
	"time"
)

// RetryPolicy is a caller-configured retry budget. The zero value means a single attempt.
type RetryPolicy struct {
	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
}

// Do runs op until it succeeds, the budget is spent, retryable reports false,
// or ctx is done. Backoff grows linearly with the attempt number.
// A nil retryable retries every error.
func (rp RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error, retryable func(error) bool) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt >= rp.Retries || (retryable != nil && !retryable(err)) {
			return err
		}
		if rp.Backoff > 0 {
			t := time.NewTimer(rp.Backoff * time.Duration(attempt+1))
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
		} else if ctx.Err() != nil {
			return err
		}
	}
}
