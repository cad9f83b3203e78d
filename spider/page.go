package spider

import (
	"github.com/vinicius507/arachnida/internal/extract"
)

// Page represents a fetched HTML page.
type Page struct {
	URL  *URL
	body []byte
}

// NewPage returns a page with the given URL and body.
func NewPage(u *URL, body []byte) *Page {
	return &Page{URL: u, body: body}
}

// Links returns all absolute link URLs on the page.
//
// The method skips hrefs that can't be parsed.
func (p *Page) Links() URLs {
	return extract.Links(p.URL, p.body)
}

// Images returns all distinct image URLs on the page whose
// path ends with one of the extensions.
//
// This is a cheap pre-filter on the URL, extension-less sources
// are skipped here and never sniffed.
func (p *Page) Images(exts Extensions) URLs {
	return extract.Images(p.URL, p.body, exts)
}

// Len returns the body size.
func (p *Page) Len() int {
	return len(p.body)
}
