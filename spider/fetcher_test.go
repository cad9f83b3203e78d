package spider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetcher(t *testing.T) {
	minBackoff = time.Nanosecond
	maxBackoff = time.Millisecond

	t.Run("fetch bad URL", func(t *testing.T) {
		var assert = require.New(t)
		var ctx = context.Background()

		_, err := Fetch(ctx, "")

		assert.Error(err)
		assert.True(errors.Is(err, ErrInvalidURL))
	})

	t.Run("simple", func(t *testing.T) {
		var assert = require.New(t)
		var fetcher = testFetcher()
		var ctx = context.Background()
		var url = serve(t, respond(200, `<a href="/about">about</a>`))

		p, err := fetcher.Fetch(ctx, url)

		assert.NoError(err)
		assert.Equal(url.String(), p.URL.String())
		assert.Len(p.Links(), 1)
		assert.Equal(url.String()+"about", p.Links()[0].String())
	})

	t.Run("redirect", func(t *testing.T) {
		var assert = require.New(t)
		var fetcher = testFetcher()
		var ctx = context.Background()
		var mux = http.NewServeMux()

		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new/", http.StatusFound)
		})
		mux.HandleFunc("/new/", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `<a href="page">page</a>`)
		})

		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)

		p, err := fetcher.Fetch(ctx, parseURL(t, srv.URL+"/old"))
		assert.NoError(err)
		assert.Equal(srv.URL+"/new/", p.URL.String())
		assert.Equal(srv.URL+"/new/page", p.Links()[0].String())
	})

	t.Run("400", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var fetcher = testFetcher()
		var url = serve(t, respond(400, `<a href="/x">x</a>`))

		p, err := fetcher.Fetch(ctx, url)

		assert.Error(err)
		assert.Nil(p)
		assert.Contains(err.Error(), `400 Bad Request`)
	})

	t.Run("fetch error", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var fetcher = testFetcher()
		var url = serve(t, respond(404, ""))

		_, err := fetcher.Fetch(ctx, url)
		assert.Error(err)

		var e *FetchError
		assert.True(errors.As(err, &e), "expected a fetch error")
		assert.Equal(404, e.Status)
		assert.Equal(ClassHTTP, Classify(err))
	})

	t.Run("no retries by default", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var fetcher = testFetcher()
		var reqs uint64
		var url = serve(t, func(w http.ResponseWriter) {
			atomic.AddUint64(&reqs, 1)
			w.WriteHeader(503)
		})

		_, err := fetcher.Fetch(ctx, url)
		assert.Error(err)
		assert.Equal(uint64(1), atomic.LoadUint64(&reqs))
	})

	t.Run("fetch retry", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var fetcher = testFetcher()
		var reqs uint64
		var url = serve(t, func(w http.ResponseWriter) {
			if atomic.AddUint64(&reqs, 1) == 3 {
				w.WriteHeader(200)
				return
			}
			w.WriteHeader(503)
		})

		fetcher.MaxAttempts = 5
		p, err := fetcher.Fetch(ctx, url)
		assert.NoError(err)
		assert.NotNil(p)
		assert.Equal(uint64(3), atomic.LoadUint64(&reqs))
	})

	t.Run("fetch max attempts reached", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var fetcher = testFetcher()
		var reqs uint64
		var url = serve(t, func(w http.ResponseWriter) {
			atomic.AddUint64(&reqs, 1)
			w.WriteHeader(503)
		})

		fetcher.MaxAttempts = 2
		_, err := fetcher.Fetch(ctx, url)
		assert.Error(err)
		assert.Contains(err.Error(), `503`)
		assert.Equal(uint64(2), atomic.LoadUint64(&reqs))
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var fetcher = testFetcher()
		var reqs uint64
		var url = serve(t, func(w http.ResponseWriter) {
			atomic.AddUint64(&reqs, 1)
			w.WriteHeader(403)
		})

		fetcher.MaxAttempts = 5
		_, err := fetcher.Fetch(ctx, url)
		assert.Error(err)
		assert.Equal(uint64(1), atomic.LoadUint64(&reqs))
	})

	t.Run("body at max size", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var fetcher = testFetcher()
		var url = serve(t, respond(200, strings.Repeat("a", 10)))

		fetcher.MaxBodySize = 10
		buf, err := fetcher.FetchBytes(ctx, url)
		assert.NoError(err)
		assert.Len(buf, 10)
	})

	t.Run("body over max size", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var fetcher = testFetcher()
		var url = serve(t, respond(200, strings.Repeat("a", 100)))

		fetcher.MaxBodySize = 10
		buf, err := fetcher.FetchBytes(ctx, url)
		assert.Error(err)
		assert.Nil(buf)
		assert.True(errors.Is(err, ErrBodyTooLarge))
		assert.Equal(ClassHTTP, Classify(err))
	})

	t.Run("body over max size without content length", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var fetcher = testFetcher()
		var url = serve(t, func(w http.ResponseWriter) {
			w.WriteHeader(200)
			for j := 0; j < 10; j++ {
				io.WriteString(w, strings.Repeat("a", 10))
				w.(http.Flusher).Flush()
			}
		})

		fetcher.MaxBodySize = 50
		_, err := fetcher.FetchBytes(ctx, url)
		assert.True(errors.Is(err, ErrBodyTooLarge))
	})

	t.Run("canceled", func(t *testing.T) {
		var assert = require.New(t)
		var fetcher = testFetcher()
		var url = serve(t, respond(200, ""))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := fetcher.Fetch(ctx, url)
		assert.Error(err)
		assert.True(errors.Is(err, context.Canceled))
	})

	t.Run("sends headers", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var fetcher = testFetcher()
		var req http.Request
		var url = record(t, &req)

		_, err := fetcher.Fetch(ctx, url)
		assert.NoError(err)

		assert.Equal(acceptHTML, req.Header.Get("Accept"))
		assert.Equal(UserAgent.String(), req.Header.Get("User-Agent"))

		_, err = fetcher.FetchBytes(ctx, url)
		assert.NoError(err)

		assert.Equal(acceptImage, req.Header.Get("Accept"))
	})

	t.Run("custom user-agent", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var fetcher = testFetcher()
		var req http.Request
		var url = record(t, &req)

		fetcher.UserAgent = StaticAgent("foo")
		_, err := fetcher.Fetch(ctx, url)
		assert.NoError(err)

		assert.Equal("foo", req.Header.Get("User-Agent"))
	})
}

// TestFetcher returns a fetcher without request delay.
func testFetcher() *Fetcher {
	return &Fetcher{
		Client: NewClient(ClientConfig{Delay: -1}),
	}
}

func respond(status int, body string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func serve(t testing.TB, f func(w http.ResponseWriter)) *URL {
	t.Helper()

	serve := func(w http.ResponseWriter, r *http.Request) {
		f(w)
	}

	srv := httptest.NewServer(http.HandlerFunc(serve))
	t.Cleanup(func() {
		srv.Close()
	})

	return parseURL(t, srv.URL+"/")
}

func record(t testing.TB, req *http.Request) *URL {
	t.Helper()

	serve := func(w http.ResponseWriter, r *http.Request) {
		*req = *r.Clone(context.Background())
		w.WriteHeader(200)
	}

	srv := httptest.NewServer(http.HandlerFunc(serve))
	t.Cleanup(func() {
		srv.Close()
	})

	return parseURL(t, srv.URL+"/")
}
