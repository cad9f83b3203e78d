package spider

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/match"
)

// Matcher represents a URL matcher.
type Matcher interface {
	// Match returns true if the URL matches.
	//
	// The method is called just before a discovered link
	// is queued, if it returns false the link is dropped.
	Match(url *URL) bool
}

// MatcherFunc implements a Matcher.
type MatcherFunc func(*URL) bool

// Match implementation.
func (mf MatcherFunc) Match(url *URL) bool {
	return mf(url)
}

// MatchRegexp returns a new regexp matcher.
//
// The matcher returns true for all URLs that match
// the provided regular expression.
func MatchRegexp(expr string) MatcherFunc {
	re, err := regexp.Compile(expr)
	if err != nil {
		panic(fmt.Sprintf("spider: match regexp %q - %s", expr, err))
	}

	return func(url *URL) bool {
		return re.MatchString(url.String())
	}
}

// MatchHostname returns a new hostname matcher.
//
// The matcher returns true for all URLs whose hostname
// equals host, ignoring case.
func MatchHostname(host string) MatcherFunc {
	return func(url *URL) bool {
		return strings.EqualFold(url.Hostname(), host)
	}
}

// MatchPattern returns a new glob matcher.
//
// The matcher returns true for all URLs that match
// any of the patterns, where `*` matches any sequence
// of characters and `?` a single character.
func MatchPattern(patterns ...string) MatcherFunc {
	return func(url *URL) bool {
		var s = url.String()
		for _, p := range patterns {
			if match.Match(s, p) {
				return true
			}
		}
		return false
	}
}

// MatchAll returns a matcher that returns true when all
// matchers return true.
func MatchAll(matchers ...Matcher) MatcherFunc {
	return func(url *URL) bool {
		for _, m := range matchers {
			if !m.Match(url) {
				return false
			}
		}
		return true
	}
}
