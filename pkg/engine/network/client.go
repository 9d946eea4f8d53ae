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
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"

	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/engine/parser/html"
	"Tankobon/pkg/errors"
)

// DefaultUserAgent is a current desktop browser; several sources refuse
// anything that looks like a library.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

const maxBodySize = 64 << 20

// Options configures a Client
type Options struct {
	UserAgent string
	// Timeout applies to each request, 30s when zero
	Timeout time.Duration
	// Retries is the number of extra attempts after transport errors and 5xx
	Retries    int
	RetryDelay time.Duration
	Limiter    *RateLimiter
	Headers    map[string]string
	Logger     logger.Logger
	Transport  http.RoundTripper
}

// Client is the HTTP session owned by one source adapter. It is safe for
// concurrent use.
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

// NewClient creates a client with its own cookie jar
func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Jar:       jar,
			Transport: opts.Transport,
		},
		opts: opts,
		log:  opts.Logger,
	}
}

// SetCookie stores cookies for the host of rawURL
func (c *Client) SetCookie(rawURL string, cookies ...*http.Cookie) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	c.http.Jar.SetCookies(u, cookies)
}

// Get fetches rawURL
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, NewRequest(rawURL).Build())
}

// GetJSON fetches rawURL and decodes the body into v
func (c *Client) GetJSON(ctx context.Context, rawURL string, v interface{}) error {
	resp, err := c.Do(ctx, NewRequest(rawURL).Header("Accept", "application/json").Build())
	if err != nil {
		return err
	}
	return resp.JSON(v)
}

// GetHTML fetches rawURL and parses it as a document
func (c *Client) GetHTML(ctx context.Context, rawURL string) (*html.Parser, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return resp.HTML()
}

// Do sends req, retrying transport failures, 429 and 5xx with exponential
// backoff. 404 and redirects to the site root map to ErrNotFound.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	var resp *Response

	err := retry.Do(
		func() error {
			r, err := c.once(ctx, req)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.opts.Retries+1)),
		retry.Delay(c.opts.RetryDelay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(errors.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug("[http] %s %s attempt %d failed: %v", req.Method, req.URL, n+1, err)
		}),
	)
	if err != nil {
		return nil, errors.TN(err)
	}
	return resp, nil
}

func (c *Client) once(ctx context.Context, req *Request) (*Response, error) {
	if err := c.opts.Limiter.Wait(ctx, req.URL); err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body *bytes.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	var httpReq *http.Request
	var err error
	if body != nil {
		httpReq, err = http.NewRequestWithContext(ctx, method, req.URL, body)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, method, req.URL, nil)
	}
	if err != nil {
		return nil, errors.Track(fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)).
			WithContext("url", req.URL).
			Error()
	}

	httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	for k, v := range c.opts.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for _, ck := range req.Cookies {
		httpReq.AddCookie(ck)
	}

	c.log.Debug("[http] %s %s", method, req.URL)
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.FromContext(ctx).Error()
		}
		return nil, errors.Track(err).
			WithHTTPContext(method, req.URL, 0).
			AsNetwork().
			Error()
	}
	defer httpResp.Body.Close()

	if err := statusError(httpReq, httpResp); err != nil {
		return nil, err
	}

	data, err := readAll(httpResp.Body, maxBodySize)
	if err != nil {
		return nil, errors.Track(err).WithHTTPContext(method, req.URL, httpResp.StatusCode).AsNetwork().Error()
	}

	contentType := httpResp.Header.Get("Content-Type")
	if strings.Contains(contentType, "html") || strings.Contains(contentType, "xml") {
		data = toUTF8(data, contentType)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       data,
		URL:        httpResp.Request.URL.String(),
		Method:     method,
	}, nil
}

func statusError(req *http.Request, resp *http.Response) error {
	code := resp.StatusCode
	var sentinel error
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		sentinel = errors.ErrNotFound
	case code == http.StatusTooManyRequests:
		sentinel = errors.ErrRateLimit
	case code >= 500:
		sentinel = errors.ErrServerError
	case code >= 400:
		sentinel = errors.ErrNetworkIssue
	}

	if sentinel == nil {
		final := resp.Request.URL
		if final.Path == "/" || final.Path == "" {
			if p := req.URL.Path; p != "" && p != "/" && final.Host == req.URL.Host {
				sentinel = errors.ErrNotFound
			}
		}
	}
	if sentinel == nil {
		return nil
	}

	return errors.Track(fmt.Errorf("%s %s: status %d: %w", req.Method, req.URL, code, sentinel)).
		WithHTTPContext(req.Method, req.URL.String(), code).
		Error()
}

// toUTF8 transcodes legacy charsets declared in the header or a meta tag
func toUTF8(data []byte, contentType string) []byte {
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return data
	}
	out, err := readAll(r, maxBodySize)
	if err != nil {
		return data
	}
	return out
}
