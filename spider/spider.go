// Package spider implements an image crawler.
//
// The engine starts from a set of seed URLs, optionally follows links
// up to a maximum depth, and downloads every image whose real content
// type, sniffed from its bytes, is in the configured allow-list.
package spider

import (
	"net"
	"net/http"
	"time"

	"github.com/vinicius507/arachnida/internal/limit"
)

// Client represents an HTTP client.
//
// A client is used by the fetcher to turn URLs into pages and images,
// it is responsible for following redirects and managing connections.
//
// A non-2xx status code doesn't cause an error, the fetcher turns it
// into a *FetchError.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures a client created with NewClient.
type ClientConfig struct {
	// ConnectTimeout is the dial timeout.
	//
	// When <= 0, it defaults to 1s.
	ConnectTimeout time.Duration

	// Timeout is the total request timeout, including
	// reading the response body.
	//
	// The deadline starts once the request holds a permit
	// and waited the delay, requests waiting their turn
	// never time out.
	//
	// When <= 0, it defaults to 3s.
	Timeout time.Duration

	// Concurrency is the number of requests that can be
	// in flight at once.
	//
	// When <= 0, it defaults to 10.
	Concurrency int

	// Delay is the time every admitted request waits
	// before it is sent.
	//
	// When < 0, no delay is used, 0 defaults to 300ms.
	Delay time.Duration
}

// NewClient returns a new rate limited client.
//
// Every request made with the client acquires one of `Concurrency`
// permits and then waits `Delay` before it is sent, see RateLimit.
// `Timeout` applies from then on.
func NewClient(c ClientConfig) *http.Client {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 1 * time.Second
	}

	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}

	if c.Concurrency <= 0 {
		c.Concurrency = 10
	}

	switch {
	case c.Delay == 0:
		c.Delay = 300 * time.Millisecond
	case c.Delay < 0:
		c.Delay = 0
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   c.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   c.Concurrency,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   c.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	limited := limit.NewTransport(transport, c.Concurrency, c.Delay)
	limited.Timeout = c.Timeout

	return &http.Client{
		Transport: limited,
	}
}

// DefaultClient is the default client to use.
//
// It is created with the zero ClientConfig:
//
//   - ConnectTimeout => 1s
//   - Timeout        => 3s
//   - Concurrency    => 10
//   - Delay          => 300ms
var DefaultClient = NewClient(ClientConfig{})
