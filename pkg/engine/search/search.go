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

// Package search fans a query out over several sources at once.
package search

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/provider"
)

type contextKey string

const concurrencyKey contextKey = "concurrency"

// DefaultTimeout bounds a search across sources
const DefaultTimeout = 30 * time.Second

// WithConcurrency limits how many sources are queried at the same time
func WithConcurrency(ctx context.Context, limit int) context.Context {
	return context.WithValue(ctx, concurrencyKey, limit)
}

// Concurrency retrieves the concurrency limit from a context
func Concurrency(ctx context.Context, defaultLimit int) int {
	if limit, ok := ctx.Value(concurrencyKey).(int); ok && limit > 0 {
		return limit
	}
	return defaultLimit
}

// Result groups what one source returned
type Result struct {
	SourceID string              `json:"source_id"`
	Results  []core.SearchResult `json:"results"`
	Err      error               `json:"-"`
	Error    string              `json:"error,omitempty"`
}

// Across searches every given source concurrently. A failing source does
// not fail the search; its error is reported in its Result. Results come
// back in the order of sources.
func Across(ctx context.Context, sources []provider.Provider, term string, log logger.Logger) []Result {
	if log == nil {
		log = logger.Nop()
	}
	out := make([]Result, len(sources))
	if len(sources) == 0 {
		return out
	}

	searchCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	semaphore := make(chan struct{}, Concurrency(ctx, 5))
	var wg sync.WaitGroup

	log.Info("[search] %q across %d sources", term, len(sources))
	for i, p := range sources {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			id := p.Info().ID
			out[i].SourceID = id

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-searchCtx.Done():
				out[i].Err = errors.FromContext(searchCtx).Error()
				out[i].Error = out[i].Err.Error()
				return
			}

			results, err := p.Search(searchCtx, term)
			if err != nil {
				log.Warn("[%s] search failed: %v", id, err)
				out[i].Err = err
				out[i].Error = err.Error()
				return
			}
			out[i].Results = Rank(results, term)
		}(i, p)
	}
	wg.Wait()
	return out
}

// Rank orders results by fuzzy closeness of their name to term. Results
// that do not match at all keep their source order after the matches.
func Rank(results []core.SearchResult, term string) []core.SearchResult {
	if term == "" || len(results) < 2 {
		return results
	}

	distance := make(map[int]int, len(results))
	for i, r := range results {
		if d := fuzzy.RankMatchNormalizedFold(term, r.Name); d >= 0 {
			distance[i] = d
		}
	}

	idx := make([]int, len(results))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		da, oka := distance[idx[a]]
		db, okb := distance[idx[b]]
		switch {
		case oka && okb:
			return da < db
		case oka != okb:
			return oka
		default:
			return false
		}
	})

	ranked := make([]core.SearchResult, len(results))
	for i, j := range idx {
		ranked[i] = results[j]
	}
	return ranked
}
