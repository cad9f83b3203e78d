package spider

import (
	"fmt"
	"net/url"
)

// URL represents a parsed URL.
//
// URLs are compared by their string form, no normalization
// of trailing slashes, casing or query order is done.
type URL = url.URL

// URLs represents a slice of parsed URLs.
type URLs = []*URL

// ParseURL parses rawurl into an absolute URL.
//
// The method returns an error wrapping ErrInvalidURL if rawurl
// can't be parsed or has no scheme.
func ParseURL(rawurl string) (*URL, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("%w %q - %s", ErrInvalidURL, rawurl, unwrapURLError(err))
	}

	if u.Scheme == "" {
		return nil, fmt.Errorf("%w %q - missing scheme", ErrInvalidURL, rawurl)
	}

	return u, nil
}

// Item represents a frontier entry.
//
// Items are de-duplicated by URL alone, the same URL
// at a different depth is the same crawl target.
type Item struct {
	URL   *URL
	Depth int
}

// Key returns the item's de-duplication key.
func (it Item) Key() string {
	return it.URL.String()
}

// String implementation.
func (it Item) String() string {
	return fmt.Sprintf("%s@%d", it.URL, it.Depth)
}

// Crawlable returns true if the item's scheme is http or https.
func (it Item) crawlable() bool {
	switch it.URL.Scheme {
	case "http", "https":
		return true
	default:
		return false
	}
}

// UnwrapURLError strips the op and URL that *url.Error repeats.
func unwrapURLError(err error) error {
	if uerr, ok := err.(*url.Error); ok {
		return uerr.Err
	}
	return err
}
