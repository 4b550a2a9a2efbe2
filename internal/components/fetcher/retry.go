package fetcher

import (
	"context"
	"fmt"
	"matrusp-crawler/internal/components/assert"
	"matrusp-crawler/internal/components/telemetry"
	"time"
)

const report_retrying_fetch = "retrying.fetch"

// Retrying retries a timed out or failed fetch exactly once with twice the
// timeout. Bad statuses are returned as they are, and so is any failure
// once ctx is done.
type Retrying struct {
	inner Fetcher
	tel   telemetry.API
}

func NewRetrying(inner Fetcher, tel telemetry.API) Retrying {
	assert.NotNil(inner)
	assert.NotNil(tel)
	return Retrying{
		inner: inner,
		tel:   telemetry.NewScopedAPI("fetcher", tel),
	}
}

func (r Retrying) Fetch(ctx context.Context, url string, timeout time.Duration) (string, error) {
	body, err := r.inner.Fetch(ctx, url, timeout)
	if err == nil {
		return body, nil
	}
	if !Retryable(err) || ctx.Err() != nil {
		return "", err
	}

	r.tel.ReportDebug(report_retrying_fetch, fmt.Errorf("first attempt: %w", err), url)

	body, err = r.inner.Fetch(ctx, url, timeout*2)
	if err != nil {
		return "", fmt.Errorf("after retry: %w", err)
	}
	return body, nil
}
