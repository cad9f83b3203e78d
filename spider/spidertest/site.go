package spidertest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
)

// Magic numbers of tiny but sniffable images.
var (
	JPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	PNG  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00}
	GIF  = []byte{'G', 'I', 'F', '8', '9', 'a', 0x01, 0x00, 0x01, 0x00}
)

// Resource represents a single resource served by a site.
type Resource struct {
	Status      int
	ContentType string
	Body        []byte
}

// HTML returns an HTML resource.
func HTML(body string) Resource {
	return Resource{
		Status:      http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(body),
	}
}

// Bytes returns a resource with the given body.
//
// The resource is served as application/octet-stream so that
// tests never rely on the declared content type.
func Bytes(body []byte) Resource {
	return Resource{
		Status:      http.StatusOK,
		ContentType: "application/octet-stream",
		Body:        body,
	}
}

// Status returns an empty resource with the given status.
func Status(code int) Resource {
	return Resource{Status: code}
}

// Site implements a fake website.
//
// The site serves a fixed set of resources by path and counts
// how many times every path was requested. Unknown paths are
// answered with 404.
type Site struct {
	srv       *httptest.Server
	resources map[string]Resource
	hits      map[string]int
	mtx       sync.Mutex
}

// NewSite starts a new site, it is closed when the test ends.
func NewSite(t testing.TB, resources map[string]Resource) *Site {
	t.Helper()

	s := &Site{
		resources: resources,
		hits:      make(map[string]int),
	}

	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)

	return s
}

// URL returns the absolute URL of path.
func (s *Site) URL(path string) string {
	return s.srv.URL + path
}

// Hits returns the number of requests made to path.
func (s *Site) Hits(path string) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.hits[path]
}

// Paths returns all requested paths, sorted.
func (s *Site) Paths() []string {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var ret = make([]string, 0, len(s.hits))
	for p := range s.hits {
		ret = append(ret, p)
	}
	sort.Strings(ret)

	return ret
}

// Serve implementation.
func (s *Site) serve(w http.ResponseWriter, r *http.Request) {
	var key = r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}

	s.mtx.Lock()
	s.hits[key]++
	s.mtx.Unlock()

	res, ok := s.resources[key]
	if !ok {
		http.NotFound(w, r)
		return
	}

	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}

	w.WriteHeader(res.Status)
	io.WriteString(w, string(res.Body))
}
