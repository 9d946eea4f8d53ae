// Tankobon: a manga library, reader backend and downloader.
// Copyright (C) 2025 Luca M. Schmidt (LuMiSxh)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package network

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"Tankobon/pkg/engine/parser/html"
	"Tankobon/pkg/errors"
)

// Request represents an HTTP request configuration
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	Cookies []*http.Cookie
}

// Response represents an HTTP response with parsed content
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte

	// URL is the final location after redirects
	URL    string
	Method string

	html *html.Parser
}

// JSON unmarshals the response body
func (r *Response) JSON(v interface{}) error {
	if len(r.Body) == 0 {
		return errors.Track(fmt.Errorf("empty response body: %w", errors.ErrParse)).
			WithContext("url", r.URL).
			Error()
	}

	if err := json.Unmarshal(r.Body, v); err != nil {
		preview := string(r.Body[:min(len(r.Body), 200)])
		return errors.Track(fmt.Errorf("%w: %v", errors.ErrParse, err)).
			WithContext("url", r.URL).
			WithContext("response_preview", preview).
			Error()
	}
	return nil
}

// HTML returns the parsed document with relative links resolved against
// the response URL
func (r *Response) HTML() (*html.Parser, error) {
	if r.html == nil {
		doc, err := html.Parse(r.Body)
		if err != nil {
			return nil, errors.Track(err).WithContext("url", r.URL).Error()
		}
		r.html = doc.WithBase(r.URL)
	}
	return r.html, nil
}

// Text returns the response body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// RequestBuilder builds requests fluently
type RequestBuilder struct {
	req *Request
}

// NewRequest creates a new GET request builder
func NewRequest(rawURL string) *RequestBuilder {
	return &RequestBuilder{
		req: &Request{
			URL:     rawURL,
			Method:  http.MethodGet,
			Headers: make(map[string]string),
		},
	}
}

// Method sets the HTTP method
func (b *RequestBuilder) Method(method string) *RequestBuilder {
	b.req.Method = method
	return b
}

// Header adds a header
func (b *RequestBuilder) Header(key, value string) *RequestBuilder {
	b.req.Headers[key] = value
	return b
}

// Referer sets the Referer header, which image hosts commonly check
func (b *RequestBuilder) Referer(ref string) *RequestBuilder {
	if ref != "" {
		b.req.Headers["Referer"] = ref
	}
	return b
}

// Query appends query parameters to the URL
func (b *RequestBuilder) Query(values url.Values) *RequestBuilder {
	if len(values) == 0 {
		return b
	}
	sep := "?"
	if strings.Contains(b.req.URL, "?") {
		sep = "&"
	}
	b.req.URL += sep + values.Encode()
	return b
}

// Form turns the request into a url-encoded POST
func (b *RequestBuilder) Form(data url.Values) *RequestBuilder {
	b.req.Method = http.MethodPost
	b.req.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	b.req.Body = []byte(data.Encode())
	return b
}

// Cookie attaches a cookie to this request only
func (b *RequestBuilder) Cookie(c *http.Cookie) *RequestBuilder {
	b.req.Cookies = append(b.req.Cookies, c)
	return b
}

// Build returns the constructed request
func (b *RequestBuilder) Build() *Request {
	return b.req
}

func readAll(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
