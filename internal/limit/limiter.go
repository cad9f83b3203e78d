// Package limit implements request limiters.
//
// Limiters block a caller until a page fetch is allowed, the
// transport in this package throttles every HTTP request instead.
package limit

import (
	"context"
	"net/url"
	"strings"

	"github.com/tidwall/match"
	"golang.org/x/time/rate"
)

// Limiter implements a token bucket limiter scoped to a set of URLs.
//
// URLs outside the scope pass through without waiting.
type Limiter struct {
	scope func(*url.URL) bool
	limit *rate.Limiter
}

// New returns a limiter that allows `n` fetches per second
// across all URLs.
func New(n int) *Limiter {
	return scoped(n, func(*url.URL) bool {
		return true
	})
}

// ByHostname returns a limiter that allows `n` fetches per
// second for URLs whose hostname equals host, ignoring case.
func ByHostname(host string, n int) *Limiter {
	return scoped(n, func(u *url.URL) bool {
		return strings.EqualFold(u.Hostname(), host)
	})
}

// ByMatch returns a limiter that allows `n` fetches per second
// for URLs matching the glob pattern, where `*` matches any
// sequence and `?` any single character.
func ByMatch(pattern string, n int) *Limiter {
	return scoped(n, func(u *url.URL) bool {
		return match.Match(u.String(), pattern)
	})
}

// Limit blocks until a fetch of u is allowed.
func (l *Limiter) Limit(ctx context.Context, u *url.URL) error {
	if u != nil && !l.scope(u) {
		return nil
	}
	return l.limit.Wait(ctx)
}

// Scoped returns a limiter for the URLs in scope.
//
// The bucket holds a second worth of tokens, at least one.
func scoped(n int, scope func(*url.URL) bool) *Limiter {
	var burst = n
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		scope: scope,
		limit: rate.NewLimiter(rate.Limit(n), burst),
	}
}
