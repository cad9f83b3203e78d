package spider_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinicius507/arachnida/spider"
	"github.com/vinicius507/arachnida/spider/spidertest"
)

func TestPage(t *testing.T) {
	var site = spidertest.NewSite(t, map[string]spidertest.Resource{
		"/gallery/": spidertest.HTML(`
			<a href="next">next</a>
			<a href="https://example.com/about">about</a>
			<img src="a.jpg">
			<img src="/static/b.PNG?v=2">
			<img src="a.jpg">
			<img src="c.webp">
		`),
	})

	t.Run("links", func(t *testing.T) {
		var assert = require.New(t)
		var page = spidertest.Fetch(t, site.URL("/gallery/"))

		var links []string
		for _, u := range page.Links() {
			links = append(links, u.String())
		}

		assert.Equal([]string{
			site.URL("/gallery/next"),
			"https://example.com/about",
		}, links)
	})

	t.Run("images", func(t *testing.T) {
		var assert = require.New(t)
		var page = spidertest.Fetch(t, site.URL("/gallery/"))
		var exts = spider.ParseExtensions(spider.DefaultExtensions)

		var images []string
		for _, u := range page.Images(exts) {
			images = append(images, u.String())
		}

		assert.Equal([]string{
			site.URL("/gallery/a.jpg"),
			site.URL("/static/b.PNG?v=2"),
		}, images)
	})

	t.Run("new page", func(t *testing.T) {
		var assert = require.New(t)

		u, err := spider.ParseURL("http://example.com/")
		assert.NoError(err)

		page := spider.NewPage(u, []byte(`<img src="x.gif"><a href="/y">y</a>`))
		assert.Equal(35, page.Len())
		assert.Len(page.Links(), 1)
		assert.Len(page.Images(spider.ParseExtensions("gif")), 1)
	})
}
