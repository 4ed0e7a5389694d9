// Package request translates an HTTP query string into a search request.
package request

import (
	"fmt"
	"net/url"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/moviedex/internal/domain"
)

// QueryParam is the query-string key carrying the search text.
const QueryParam = "q"

// Request is a parsed search request. It lives for one HTTP request.
type Request struct {
	query string
}

// New wraps query text verbatim.
func New(query string) Request {
	return Request{query: query}
}

// Query returns the search text exactly as received.
func (r Request) Query() string { return r.query }

// Parse decodes a raw query string and extracts q.
// The value is not trimmed, escaped or length-limited.
func Parse(rawQuery string) (Request, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	return FromValues(values)
}

// FromValues extracts q from already decoded query parameters.
func FromValues(values url.Values) (Request, error) {
	var q string
	if err := runtime.BindQueryParameter("form", true, true, QueryParam, values, &q); err != nil {
		return Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	return New(q), nil
}
