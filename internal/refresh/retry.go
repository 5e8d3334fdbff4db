package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/aura-plan/internal/generator"
)

// #region should-retry

// shouldRetry reports whether another generation attempt is worthwhile.
// attempts counts the attempts already made, including the one that just failed.
// A newer snapshot waiting for the bucket always wins over retrying the old one.
func (p RetryPolicy) shouldRetry(ctx context.Context, attempts int, err error, newerPending bool) bool {
	if attempts > p.Attempts {
		return false
	}
	if newerPending || ctx.Err() != nil {
		return false
	}
	// Missing credentials will not fix themselves between attempts.
	if errors.Is(err, generator.ErrNoCredentials) {
		return false
	}
	return true
}

// #endregion

// #region backoff

// wait sleeps attempts*Backoff, returning early with ctx's error if it ends first.
func (p RetryPolicy) wait(ctx context.Context, attempts int) error {
	d := time.Duration(attempts) * p.Backoff
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// #endregion
