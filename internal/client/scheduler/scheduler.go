// Package scheduler runs client jobs periodically and retries transient
// failures with exponential backoff.
package scheduler

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
)

// MinInterval is the shortest period accepted by Periodic.
const MinInterval = 4 * time.Hour

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// newTicker is replaced in tests.
var newTicker = func(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Interval clamps d to MinInterval.
func Interval(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// Periodic runs job at once and then every interval until ctx is done. Job
// errors are logged and do not stop the loop.
func Periodic(ctx context.Context, interval time.Duration, job Job, log logging.Logger) error {
	interval = Interval(interval)
	tick, stop := newTicker(interval)
	defer stop()

	for {
		if err := job(ctx); err != nil {
			log.Warn(ctx, "scheduled job failed", "error", err, "next_in", interval)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		}
	}
}

// WithBackoff runs job, retrying errors for which common.IsRetriable holds.
// Delays start at base and double on every attempt; after maxRetries
// retries the last error is returned. Terminal errors are returned at once.
func WithBackoff(ctx context.Context, base time.Duration, maxRetries uint64, job Job) error {
	if base <= 0 {
		base = time.Second
	}
	b := retry.WithMaxRetries(maxRetries, retry.NewExponential(base))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := job(ctx)
		if common.IsRetriable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
