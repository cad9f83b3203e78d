// Package extract implements streaming image and link extraction.
//
// Both passes tokenize the document with golang.org/x/net/html and only look
// at start tags, so malformed markup never aborts a scan: the tokenizer stops
// at the first error token, which is io.EOF for well-formed and broken
// documents alike.
package extract

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// Images returns the absolute URLs of all `img[src]` in the document.
//
// A source is kept only when the lower-cased extension of its path is
// in `exts`, duplicates are removed while preserving document order.
func Images(base *url.URL, doc []byte, exts map[string]bool) []*url.URL {
	var seen = make(map[string]bool)
	var ret []*url.URL

	scan(doc, "img", "src", func(v string) {
		u, ok := resolve(base, v)
		if !ok || !matchExt(u, exts) {
			return
		}

		if k := u.String(); !seen[k] {
			seen[k] = true
			ret = append(ret, u)
		}
	})

	return ret
}

// Links returns the absolute URLs of all `a[href]` in the document.
//
// Hrefs that can't be parsed are skipped.
func Links(base *url.URL, doc []byte) []*url.URL {
	var ret []*url.URL

	scan(doc, "a", "href", func(v string) {
		if u, ok := resolve(base, v); ok {
			ret = append(ret, u)
		}
	})

	return ret
}

// Scan calls f with every value of attribute `attr`
// on start tags named `tag`.
func scan(doc []byte, tag, attr string, f func(string)) {
	var z = html.NewTokenizer(bytes.NewReader(doc))

	for {
		switch z.Next() {
		case html.ErrorToken:
			return

		case html.StartTagToken, html.SelfClosingTagToken:
			name, more := z.TagName()
			if string(name) != tag {
				continue
			}

			for more {
				var k, v []byte
				k, v, more = z.TagAttr()
				if string(k) == attr {
					f(string(v))
				}
			}
		}
	}
}

// Resolve resolves ref against base.
func resolve(base *url.URL, ref string) (*url.URL, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, false
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil, false
	}

	if !u.IsAbs() {
		u = base.ResolveReference(u)
	}

	if u.Scheme == "" {
		return nil, false
	}

	return u, true
}

// MatchExt reports whether u's path ends with one of exts.
func matchExt(u *url.URL, exts map[string]bool) bool {
	var ext = path.Ext(strings.ToLower(u.Path))
	return ext != "" && exts[ext[1:]]
}
