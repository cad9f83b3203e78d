package extract

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImages(t *testing.T) {
	t.Run("extension filter", func(t *testing.T) {
		var assert = require.New(t)
		var base = parse(t, "http://example.com/dir/")
		var doc = []byte(`<img src="a.png"><img src="b.txt">`)

		imgs := Images(base, doc, map[string]bool{"png": true})

		assert.Equal([]string{"http://example.com/dir/a.png"}, strs(imgs))
	})

	t.Run("dedupe", func(t *testing.T) {
		var assert = require.New(t)
		var base = parse(t, "http://example.com")
		var doc = []byte(`
			<img src="/a.jpg">
			<IMG SRC="/a.jpg" />
			<img src="/b.JPG">
		`)

		imgs := Images(base, doc, map[string]bool{"jpg": true})

		assert.Equal([]string{
			"http://example.com/a.jpg",
			"http://example.com/b.JPG",
		}, strs(imgs))
	})

	t.Run("query is not part of the extension", func(t *testing.T) {
		var assert = require.New(t)
		var base = parse(t, "http://example.com")
		var doc = []byte(`<img src="/a.gif?size=2"><img src="/b?f=x.gif">`)

		imgs := Images(base, doc, map[string]bool{"gif": true})

		assert.Equal([]string{"http://example.com/a.gif?size=2"}, strs(imgs))
	})

	t.Run("absolute and extension-less", func(t *testing.T) {
		var assert = require.New(t)
		var base = parse(t, "http://example.com")
		var doc = []byte(`<img src="https://cdn.test/x.png"><img src="/photo">`)

		imgs := Images(base, doc, map[string]bool{"png": true})

		assert.Equal([]string{"https://cdn.test/x.png"}, strs(imgs))
	})

	t.Run("ignores other tags", func(t *testing.T) {
		var assert = require.New(t)
		var base = parse(t, "http://example.com")
		var doc = []byte(`<script src="/a.png"></script><a href="/b.png">b</a>`)

		imgs := Images(base, doc, map[string]bool{"png": true})

		assert.Empty(imgs)
	})
}

func TestLinks(t *testing.T) {
	t.Run("resolve", func(t *testing.T) {
		var assert = require.New(t)
		var base = parse(t, "http://example.com/a/b.html")
		var doc = []byte(`
			<a href="/page2">2</a>
			<a href="c.html">c</a>
			<a href="https://other.test/">o</a>
			<a>no href</a>
		`)

		links := Links(base, doc)

		assert.Equal([]string{
			"http://example.com/page2",
			"http://example.com/a/c.html",
			"https://other.test/",
		}, strs(links))
	})

	t.Run("skips malformed hrefs", func(t *testing.T) {
		var assert = require.New(t)
		var base = parse(t, "http://example.com")
		var doc = []byte(`
			<a href="http://[::1">bad</a>
			<a href="%zz">bad</a>
			<a href="">empty</a>
			<a href="/ok">ok</a>
		`)

		links := Links(base, doc)

		assert.Equal([]string{"http://example.com/ok"}, strs(links))
	})

	t.Run("malformed document", func(t *testing.T) {
		var assert = require.New(t)
		var base = parse(t, "http://example.com")
		var doc = []byte(`<html><body><div <a href="/x"><p></a href=><a href="/y"`)

		assert.NotPanics(func() {
			Links(base, doc)
		})
	})

	t.Run("keeps duplicates", func(t *testing.T) {
		var assert = require.New(t)
		var base = parse(t, "http://example.com")
		var doc = []byte(`<a href="/x"></a><a href="/x"></a>`)

		links := Links(base, doc)

		assert.Len(links, 2)
	})
}

func parse(t testing.TB, rawurl string) *url.URL {
	t.Helper()

	u, err := url.Parse(rawurl)
	if err != nil {
		t.Fatalf("parse url: %s", err)
	}

	return u
}

func strs(urls []*url.URL) []string {
	var ret []string
	for _, u := range urls {
		ret = append(ret, u.String())
	}
	return ret
}
