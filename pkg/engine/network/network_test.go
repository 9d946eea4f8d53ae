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
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tankobon/pkg/errors"
)

func testClient(retries int) *Client {
	return NewClient(Options{Retries: retries, RetryDelay: time.Millisecond})
}

func TestClientGetHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><a class="x" href="/manga/one/">One</a></body></html>`))
	}))
	defer srv.Close()

	doc, err := testClient(0).GetHTML(context.Background(), srv.URL+"/list")
	require.NoError(t, err)

	el, err := doc.Find("a.x").First()
	require.NoError(t, err)
	assert.Equal(t, "One", el.Text())
	assert.Equal(t, srv.URL+"/manga/one/", el.Href())
}

func TestClientTranscodesLegacyCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "Café" in latin-1
		_, _ = w.Write([]byte("<p>Caf\xe9</p>"))
	}))
	defer srv.Close()

	resp, err := testClient(0).Get(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Contains(t, resp.Text(), "Café")
}

func TestClientStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"not found", http.StatusNotFound, errors.IsNotFound},
		{"rate limited", http.StatusTooManyRequests, errors.IsRateLimited},
		{"server error", http.StatusBadGateway, func(err error) bool { return errors.Is(err, errors.ErrServerError) }},
		{"forbidden", http.StatusForbidden, func(err error) bool { return errors.Is(err, errors.ErrNetworkIssue) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := testClient(0).Get(context.Background(), srv.URL+"/x")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, testClient(3).GetJSON(context.Background(), srv.URL+"/api", &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClientDoesNotRetryNotFound(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(3).Get(context.Background(), srv.URL+"/gone")
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClientRedirectToHomeIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("home"))
	}))
	defer srv.Close()

	_, err := testClient(0).Get(context.Background(), srv.URL+"/manga/missing/")
	assert.True(t, errors.IsNotFound(err))
}

func TestClientFormPostAndCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		ck, err := r.Cookie("adult")
		require.NoError(t, err)
		_, _ = w.Write([]byte(r.Method + " " + r.PostForm.Get("action") + " " + ck.Value))
	}))
	defer srv.Close()

	client := testClient(0)
	client.SetCookie(srv.URL, &http.Cookie{Name: "adult", Value: "1", Path: "/"})

	req := NewRequest(srv.URL + "/ajax").Form(url.Values{"action": {"load_more"}}).Build()
	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "POST load_more 1", resp.Text())
}

func TestClientCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(2).Get(ctx, srv.URL+"/x")
	require.Error(t, err)
}

func TestRateLimiterPerDomain(t *testing.T) {
	limiter := NewRateLimiter(1000, 1)
	limiter.SetLimit("slow.example", 1)

	ctx := context.Background()
	require.NoError(t, limiter.Wait(ctx, "https://slow.example/a"))

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx, "https://slow.example/b"))
	assert.NoError(t, limiter.Wait(ctx, "https://fast.example/b"))

	assert.Equal(t, "slow.example", ExtractDomain("https://slow.example:8080/path"))
}
