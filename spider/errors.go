package spider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
)

var (
	// ErrInvalidURL is returned when a URL can't be constructed.
	ErrInvalidURL = errors.New("spider: invalid url")

	// ErrUnsniffable is returned when an image's content type
	// can't be determined from its bytes.
	ErrUnsniffable = errors.New("spider: unsniffable content")

	// ErrUnregisteredExtension is returned when an image's sniffed
	// extension is not in the allow-list.
	ErrUnregisteredExtension = errors.New("spider: unregistered extension")

	// ErrEngineUsed is returned when Run is called on an
	// engine that already ran.
	ErrEngineUsed = errors.New("spider: engine already ran")

	// ErrBodyTooLarge is returned when a response body is larger
	// than the fetcher's MaxBodySize.
	ErrBodyTooLarge = errors.New("spider: body too large")
)

// FetchError represents a non-2xx response.
type FetchError struct {
	URL    *URL
	Status int
}

// Error implementation.
func (err *FetchError) Error() string {
	return fmt.Sprintf("spider: fetch %q - %d %s",
		err.URL,
		err.Status,
		http.StatusText(err.Status),
	)
}

// Temporary returns true if the request may succeed when retried.
func (err *FetchError) Temporary() bool {
	switch err.Status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Class represents an error class.
type Class int

// Error classes, in the order they are checked.
const (
	ClassUnexpected Class = iota
	ClassTimeout
	ClassHTTP
	ClassDropped
)

// String implementation.
func (c Class) String() string {
	switch c {
	case ClassTimeout:
		return "timeout"
	case ClassHTTP:
		return "http"
	case ClassDropped:
		return "dropped"
	default:
		return "unexpected"
	}
}

// Classify returns the class of err.
//
//   - ClassTimeout    => a deadline was exceeded.
//   - ClassHTTP       => non-2xx response, transport failure or oversized body.
//   - ClassDropped    => image rejected after sniffing.
//   - ClassUnexpected => anything else.
func Classify(err error) Class {
	if isTimeout(err) {
		return ClassTimeout
	}

	if errors.Is(err, ErrUnsniffable) || errors.Is(err, ErrUnregisteredExtension) {
		return ClassDropped
	}

	if errors.Is(err, ErrBodyTooLarge) {
		return ClassHTTP
	}

	var ferr *FetchError
	var uerr *url.Error
	if errors.As(err, &ferr) || errors.As(err, &uerr) {
		return ClassHTTP
	}

	return ClassUnexpected
}

// IsTimeout returns true if err is a timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// IsTemporary returns true if the error is temporary.
func isTemporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}
