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
	"net/url"
	"sync"

	"golang.org/x/time/rate"

	"Tankobon/pkg/errors"
)

// RateLimiter keeps one token bucket per host so a source is never hit
// faster than its configured pace, whichever goroutine asks.
type RateLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	domains map[string]*rate.Limiter
}

// NewRateLimiter allows perSecond requests per host with the given burst
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RateLimiter{
		every:   limit,
		burst:   burst,
		domains: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to rawURL may be sent
func (r *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	if r == nil {
		return nil
	}
	if err := r.limiter(ExtractDomain(rawURL)).Wait(ctx); err != nil {
		return errors.Track(err).
			WithContext("url", rawURL).
			AsNetwork().
			Error()
	}
	return nil
}

// SetLimit overrides the pace for one host
func (r *RateLimiter) SetLimit(domain string, perSecond float64) {
	r.limiter(domain).SetLimit(rate.Limit(perSecond))
}

func (r *RateLimiter) limiter(domain string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.domains[domain]
	if !ok {
		l = rate.NewLimiter(r.every, r.burst)
		r.domains[domain] = l
	}
	return l
}

// ExtractDomain extracts the host from a URL
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
