package limit

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"
)

// Transport implements a permit based round tripper.
//
// At most `n` requests are in flight at once, and every admitted
// request waits a fixed delay after acquiring its permit before it
// is handed to the underlying round tripper. The delay is a floor
// on per-request latency, not a requests-per-window budget.
//
// The permit is released as soon as the underlying round tripper
// returns, reading the body happens outside of the permit.
type Transport struct {
	// Timeout bounds a request from the moment it is handed to
	// the underlying round tripper until its body is closed.
	//
	// Waiting for a permit and the delay are not part of it.
	// When <= 0, only the request's context applies.
	Timeout time.Duration

	base  http.RoundTripper
	sem   *semaphore.Weighted
	delay time.Duration
	sleep func(context.Context, time.Duration) error
}

// NewTransport returns a new transport.
//
// When n <= 0 it defaults to 1, when base is nil
// http.DefaultTransport is used.
func NewTransport(base http.RoundTripper, n int, delay time.Duration) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	if n <= 0 {
		n = 1
	}

	return &Transport{
		base:  base,
		sem:   semaphore.NewWeighted(int64(n)),
		delay: delay,
		sleep: sleep,
	}
}

// RoundTrip implementation.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var ctx = req.Context()

	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer t.sem.Release(1)

	if err := t.sleep(ctx, t.delay); err != nil {
		return nil, err
	}

	if t.Timeout <= 0 {
		return t.base.RoundTrip(req)
	}

	ctx, cancel := context.WithTimeout(ctx, t.Timeout)

	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}

	resp.Body = &timeoutBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// TimeoutBody releases the request deadline once the body is closed.
type timeoutBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

// Close implementation.
func (b *timeoutBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// Sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	var timer = time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
