package spider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StaticAgent is a static user agent string.
type StaticAgent string

// String implementation.
func (sa StaticAgent) String() string {
	return string(sa)
}

var (
	// UserAgent is the default user agent to use.
	UserAgent = StaticAgent("arachnida-spider")

	// DefaultFetcher is the default fetcher to use.
	//
	// It uses the default client and default user agent.
	DefaultFetcher = &Fetcher{
		Client:    DefaultClient,
		UserAgent: UserAgent,
	}
)

// Backoff bounds, variables so tests can shorten them.
var (
	minBackoff = 50 * time.Millisecond
	maxBackoff = 1 * time.Second
)

// Accept headers.
const (
	acceptHTML  = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"
	acceptImage = "image/*,*/*;q=0.8"
)

// Fetch fetches a page from rawurl with the default fetcher.
func Fetch(ctx context.Context, rawurl string) (*Page, error) {
	u, err := ParseURL(rawurl)
	if err != nil {
		return nil, err
	}
	return DefaultFetcher.Fetch(ctx, u)
}

// Fetcher implements a page and image fetcher.
type Fetcher struct {
	// Client is the client to use.
	//
	// If nil, spider.DefaultClient is used.
	Client Client

	// UserAgent is the user agent to use.
	//
	// If nil, spider.UserAgent is used.
	UserAgent fmt.Stringer

	// MaxAttempts is the maximum request attempts to make.
	//
	// Only temporary failures are retried. When <= 0, it
	// defaults to 1 and failures are returned right away.
	MaxAttempts int

	// MaxBodySize is the largest body accepted.
	//
	// Larger bodies fail with ErrBodyTooLarge, they are
	// never returned truncated. When <= 0, it defaults to 10MiB.
	MaxBodySize int64
}

// Fetch fetches a page by URL.
//
// The method returns a *FetchError for non-2xx responses, the
// body of a failed response is discarded and never parsed.
func (f *Fetcher) Fetch(ctx context.Context, url *URL) (*Page, error) {
	body, final, err := f.get(ctx, url, acceptHTML)
	if err != nil {
		return nil, err
	}

	return &Page{
		URL:  final,
		body: body,
	}, nil
}

// FetchBytes fetches the raw bytes at URL.
func (f *Fetcher) FetchBytes(ctx context.Context, url *URL) ([]byte, error) {
	body, _, err := f.get(ctx, url, acceptImage)
	return body, err
}

// Get fetches url, retrying temporary failures.
//
// The method returns the body and the final URL
// after redirects.
func (f *Fetcher) get(ctx context.Context, url *URL, accept string) ([]byte, *URL, error) {
	var maxAttempts = f.maxAttempts()
	var attempt int

	for {
		attempt++

		body, final, err := f.fetch(ctx, url, accept)
		if err == nil {
			return body, final, nil
		}

		if attempt >= maxAttempts || !isTemporary(err) {
			return nil, nil, err
		}

		if err := f.backoff(ctx, attempt); err != nil {
			return nil, nil, err
		}
	}
}

// Fetch makes a single GET request.
func (f *Fetcher) fetch(ctx context.Context, url *URL, accept string) ([]byte, *URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("spider: new request - %w", err)
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", f.userAgent())

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("spider: %s %q - %w", req.Method, req.URL, err)
	}
	defer f.discard(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &FetchError{
			URL:    resp.Request.URL,
			Status: resp.StatusCode,
		}
	}

	var maxSize = f.maxBodySize()

	if resp.ContentLength > maxSize {
		return nil, nil, fmt.Errorf("%w %q - %d bytes", ErrBodyTooLarge, req.URL, resp.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("spider: read %q - %w", req.URL, err)
	}

	if int64(len(body)) > maxSize {
		return nil, nil, fmt.Errorf("%w %q - over %d bytes", ErrBodyTooLarge, req.URL, maxSize)
	}

	return body, resp.Request.URL, nil
}

// Discard drains and closes the response body.
func (f *Fetcher) discard(r *http.Response) {
	io.Copy(io.Discard, io.LimitReader(r.Body, f.maxBodySize()))
	r.Body.Close()
}

// MaxAttempts returns the max attempts.
func (f *Fetcher) maxAttempts() int {
	if f.MaxAttempts > 0 {
		return f.MaxAttempts
	}
	return 1
}

// MaxBodySize returns the max body size.
func (f *Fetcher) maxBodySize() int64 {
	if f.MaxBodySize > 0 {
		return f.MaxBodySize
	}
	return 10 << 20
}

// UserAgent returns the user agent to use.
func (f *Fetcher) userAgent() string {
	if ua := f.UserAgent; ua != nil {
		return ua.String()
	}
	return UserAgent.String()
}

// Client returns the client to use.
func (f *Fetcher) client() Client {
	if f.Client != nil {
		return f.Client
	}
	return DefaultClient
}

// Backoff sleeps before the next attempt.
func (f *Fetcher) backoff(ctx context.Context, attempt int) error {
	var dur = time.Duration(attempt*attempt) * minBackoff

	if dur > maxBackoff {
		dur = maxBackoff
	}

	var timer = time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
