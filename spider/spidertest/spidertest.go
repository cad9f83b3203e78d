// Package spidertest implements crawler test helpers.
//
// Usage:
//
//	func TestCrawl(t *testing.T) {
//	  var site = spidertest.NewSite(t, map[string]spidertest.Resource{
//	    "/":      spidertest.HTML(`<img src="/a.jpg">`),
//	    "/a.jpg": spidertest.Bytes(spidertest.JPEG),
//	  })
//
//	  page := spidertest.Fetch(t, site.URL("/"))
//	  ...
//	}
package spidertest

import (
	"context"
	"testing"

	"github.com/vinicius507/arachnida/spider"
)

// Fetch fetches a page by its URL.
//
// If the page cannot be fetched successfully
// the method calls `t.Fatalf` with the error.
func Fetch(t testing.TB, url string) *spider.Page {
	var ctx = context.Background()

	t.Helper()
	u, err := spider.ParseURL(url)
	if err != nil {
		t.Fatalf("spidertest: %s", err)
	}

	page, err := Fetcher().Fetch(ctx, u)
	if err != nil {
		t.Fatalf("spidertest: %s", err)
	}

	return page
}

// Fetcher returns a fetcher whose client has no request delay.
func Fetcher() *spider.Fetcher {
	return &spider.Fetcher{
		Client: spider.NewClient(spider.ClientConfig{
			Delay: -1,
		}),
	}
}
