package blockchain

import (
	"context"
	"time"

	"github.com/hxuan190/lp-engine/internal/metrics"
)

// withRetry runs an idempotent read up to maxRetries+1 times with doubling delay.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

// observe records one RPC call's outcome and latency.
func observe(method string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RPCRequests.WithLabelValues(method, status).Inc()
	metrics.RPCDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
}
