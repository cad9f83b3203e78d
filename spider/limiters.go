package spider

import (
	"context"
	"net/http"
	"time"

	"github.com/vinicius507/arachnida/internal/limit"
)

// Limiter controls how many pages can
// be fetched by the engine.
//
// A limiter receives a context and a URL and
// blocks until a fetch is allowed to happen
// or returns an error if the context is canceled.
type Limiter interface {
	// Limit blocks until a fetch of the URL is allowed.
	//
	// If the given context is canceled, the method returns immediately
	// with the context's err.
	Limit(ctx context.Context, u *URL) error
}

// LimitHostname returns a hostname limiter.
//
// The limiter allows `n` page fetches per second
// for the hostname.
func LimitHostname(name string, n int) Limiter {
	return limit.ByHostname(name, n)
}

// LimitMatch returns a glob limiter.
//
// The limiter allows `n` page fetches per second for any
// URL that matches the pattern.
func LimitMatch(pattern string, n int) Limiter {
	return limit.ByMatch(pattern, n)
}

// Limit returns a new limiter.
//
// The limiter allows `n` page fetches per second.
func Limit(n int) Limiter {
	return limit.New(n)
}

// RateLimit wraps rt with a permit based limiter.
//
// Every request first acquires one of `n` permits, blocking while
// none are free, then waits `delay` before it is sent through rt.
// The permit is released once rt returns a response or an error.
//
// Failed requests are not retried.
func RateLimit(rt http.RoundTripper, n int, delay time.Duration) http.RoundTripper {
	return limit.NewTransport(rt, n, delay)
}
