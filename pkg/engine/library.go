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

package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/search"
	"Tankobon/pkg/engine/update"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/library"
	"Tankobon/pkg/provider"
	"Tankobon/pkg/provider/base"
)

// Search queries one source. An empty term browses sources that allow it.
func (e *Engine) Search(ctx context.Context, sourceID, term string) ([]core.SearchResult, error) {
	p, err := e.Provider(sourceID)
	if err != nil {
		return nil, err
	}
	results, err := p.Search(ctx, term)
	if err != nil {
		return nil, err
	}
	return search.Rank(results, term), nil
}

// SearchAll queries every listed source at once
func (e *Engine) SearchAll(ctx context.Context, term string) []search.Result {
	infos := e.Sources()
	sources := make([]provider.Provider, 0, len(infos))
	for _, info := range infos {
		if !info.Has(provider.CapSearch) {
			continue
		}
		if p, err := e.Provider(info.ID); err == nil {
			sources = append(sources, p)
		}
	}
	return search.Across(ctx, sources, term, e.Logger)
}

// MostPopulars lists the most popular series of a source
func (e *Engine) MostPopulars(ctx context.Context, sourceID string) ([]core.SearchResult, error) {
	p, err := e.Provider(sourceID)
	if err != nil {
		return nil, err
	}
	return p.MostPopulars(ctx)
}

// AddToLibrary fetches a series' full record and stores it with its
// chapters. Adding a series already in the library returns the stored one.
func (e *Engine) AddToLibrary(ctx context.Context, sourceID string, result core.SearchResult) (*core.Series, error) {
	if existing, err := e.Store.FindSeries(ctx, sourceID, result.Slug); err == nil {
		return existing, nil
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	p, err := e.Provider(sourceID)
	if err != nil {
		return nil, err
	}
	data, err := p.MangaData(ctx, core.MangaData{Slug: result.Slug, Name: result.Name, CoverURL: result.Cover})
	if err != nil {
		return nil, err
	}
	data.Normalize()
	if err := data.Validate(); err != nil {
		return nil, errors.Track(fmt.Errorf("%w: %v", errors.ErrValidation, err)).
			AsProvider(sourceID).
			Error()
	}

	now := time.Now().UTC()
	series := &core.Series{
		SourceID:      sourceID,
		Slug:          data.Slug,
		Name:          data.Name,
		URL:           data.URL,
		Authors:       data.Authors,
		Scanlators:    data.Scanlators,
		Genres:        data.Genres,
		Status:        data.Status,
		Synopsis:      data.Synopsis,
		CoverURL:      data.CoverURL,
		LastUpdatedAt: &now,
	}
	if series.CoverURL == "" {
		series.CoverURL = result.Cover
	}

	if _, err := e.Store.InsertSeries(ctx, series); err != nil {
		return nil, err
	}
	if err := e.Store.InsertChapters(ctx, series.ID, data.Chapters); err != nil {
		return nil, err
	}

	e.storeCover(ctx, p, series)
	e.Logger.Info("[%s] added %s with %d chapters", sourceID, series.Name, len(data.Chapters))
	return e.Store.GetSeries(ctx, series.ID)
}

// storeCover caches the cover of a series. A missing cover is not an error.
func (e *Engine) storeCover(ctx context.Context, p provider.Provider, series *core.Series) {
	if series.CoverURL == "" {
		return
	}
	img, err := base.FetchImage(ctx, e.http, series.CoverURL, p.Info().SiteURL)
	if err != nil {
		e.Logger.Warn("[%s] cover of %s: %v", series.SourceID, series.Slug, err)
		return
	}
	path, err := e.Cache.PutCover(ctx, series.SourceID, series.Slug, img.Data)
	if err != nil {
		e.Logger.Warn("[%s] caching cover of %s: %v", series.SourceID, series.Slug, err)
		return
	}
	if err := e.Store.UpdateSeries(ctx, series.ID, library.SeriesDelta{CoverLocalPath: &path}); err != nil {
		e.Logger.Warn("[%s] recording cover of %s: %v", series.SourceID, series.Slug, err)
		return
	}
	series.CoverLocalPath = &path
}

// ListLibrary returns the library, most recently read first. A non-empty
// filter keeps series whose name fuzzily matches it.
func (e *Engine) ListLibrary(ctx context.Context, filter string) ([]core.Series, error) {
	all, err := e.Store.ListSeriesByLastRead(ctx)
	if err != nil {
		return nil, err
	}
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return all, nil
	}

	out := make([]core.Series, 0, len(all))
	for _, s := range all {
		if fuzzy.MatchNormalizedFold(filter, s.Name) {
			out = append(out, s)
		}
	}
	return out, nil
}

// OpenSeries loads a series with its chapters in reader order
func (e *Engine) OpenSeries(ctx context.Context, id int64) (*core.SeriesWithChapters, error) {
	series, err := e.Store.GetSeries(ctx, id)
	if err != nil {
		return nil, err
	}
	chapters, err := e.Store.ChaptersForSeries(ctx, id, library.Ascending)
	if err != nil {
		return nil, err
	}
	return &core.SeriesWithChapters{Series: *series, Chapters: chapters}, nil
}

// UpdateSeries refreshes one series and returns how many chapters are new
func (e *Engine) UpdateSeries(ctx context.Context, id int64) (int, error) {
	return e.Updates.UpdateSeries(ctx, id)
}

// UpdateLibrary refreshes every series in the library
func (e *Engine) UpdateLibrary(ctx context.Context) ([]update.Result, error) {
	return e.Updates.UpdateAll(ctx, nil)
}

// DeleteSeries removes a series, its queued downloads and its cached
// images.
func (e *Engine) DeleteSeries(ctx context.Context, id int64) error {
	series, err := e.Store.GetSeries(ctx, id)
	if err != nil {
		return err
	}
	chapters, err := e.Store.ChaptersForSeries(ctx, id, library.Ascending)
	if err != nil {
		return err
	}
	for _, c := range chapters {
		if err := e.Download.Cancel(ctx, c.ID); err != nil && !errors.IsNotFound(err) {
			return err
		}
	}

	if err := e.Store.DeleteSeries(ctx, id); err != nil {
		return err
	}
	if err := e.Cache.PurgeSeries(series.SourceID, series.Slug); err != nil {
		return err
	}
	e.Logger.Info("[%s] deleted %s", series.SourceID, series.Name)
	return nil
}

// SeriesURL returns the web page of a series at its source
func (e *Engine) SeriesURL(ctx context.Context, id int64) (string, error) {
	series, err := e.Store.GetSeries(ctx, id)
	if err != nil {
		return "", err
	}
	p, err := e.Provider(series.SourceID)
	if err != nil {
		return "", err
	}
	return p.MangaURL(series.Slug, series.URL), nil
}

// SeriesDiskUsage returns the bytes the cover and cached pages of a series
// take up
func (e *Engine) SeriesDiskUsage(ctx context.Context, id int64) (int64, error) {
	series, err := e.Store.GetSeries(ctx, id)
	if err != nil {
		return 0, err
	}
	return e.Cache.FolderSize(series.SourceID, series.Slug)
}
