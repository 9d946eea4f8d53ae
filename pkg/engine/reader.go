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
	"time"

	"Tankobon/pkg/cache"
	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/download"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/library"
)

// chapterContext loads a chapter with its series
func (e *Engine) chapterContext(ctx context.Context, chapterID int64) (*core.Series, *core.Chapter, error) {
	chapter, err := e.Store.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, nil, err
	}
	series, err := e.Store.GetSeries(ctx, chapter.SeriesID)
	if err != nil {
		return nil, nil, err
	}
	return series, chapter, nil
}

// ResolvePages makes sure a chapter knows its pages, asking the source
// when it does not yet.
func (e *Engine) ResolvePages(ctx context.Context, chapterID int64) (*core.Chapter, error) {
	series, chapter, err := e.chapterContext(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if chapter.Resolved() {
		return chapter, nil
	}

	p, err := e.Provider(series.SourceID)
	if err != nil {
		return nil, err
	}
	if err := download.ResolvePages(ctx, e.Store, p, series, chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

// FetchPage returns the local path of page index of a chapter. Without
// allowNetwork only the cache is consulted and a missing page is
// ErrCacheMiss. A page fetched from the network is cached even when ctx is
// cancelled halfway.
func (e *Engine) FetchPage(ctx context.Context, chapterID int64, index int, allowNetwork bool) (string, error) {
	series, chapter, err := e.chapterContext(ctx, chapterID)
	if err != nil {
		return "", err
	}

	if !chapter.Resolved() {
		if !allowNetwork {
			return "", errors.Track(errors.ErrCacheMiss).
				WithMessagef("pages of chapter %d are not known offline", chapterID).
				AsCacheMiss().
				Error()
		}
		if chapter, err = e.ResolvePages(ctx, chapterID); err != nil {
			return "", err
		}
	}

	if index < 0 || index >= len(chapter.Pages) {
		return "", errors.Track(errors.ErrInvalidInput).
			WithMessagef("chapter %d has no page %d (%d pages)", chapterID, index, len(chapter.Pages)).
			AsValidation().
			Error()
	}

	key := cache.KeyFor(series, chapter, index)
	path, err := e.Cache.Lookup(key)
	if err == nil {
		return path, download.RecordPage(ctx, e.Store, chapter, index, path)
	}
	if !errors.IsCacheMiss(err) || !allowNetwork {
		return "", err
	}

	p, err := e.Provider(series.SourceID)
	if err != nil {
		return "", err
	}
	fg := context.WithoutCancel(ctx)
	img, err := p.PageImage(fg, chapter.Ref(series), chapter.Pages[index])
	if err != nil {
		return "", err
	}
	if path, err = e.Cache.Put(fg, key, img.Data); err != nil {
		return "", err
	}
	return path, download.RecordPage(fg, e.Store, chapter, index, path)
}

// SetReadProgress records the page a reader is on. Reaching the last page
// marks the chapter read.
func (e *Engine) SetReadProgress(ctx context.Context, chapterID int64, index int) error {
	chapter, err := e.Store.GetChapter(ctx, chapterID)
	if err != nil {
		return err
	}

	delta := library.ChapterDelta{LastPageReadIndex: &index}
	if chapter.Resolved() && index == len(chapter.Pages)-1 {
		read := true
		delta.Read = &read
	}
	if err := e.Store.UpdateChapter(ctx, chapterID, delta); err != nil {
		return err
	}

	now := time.Now().UTC()
	return e.Store.UpdateSeries(ctx, chapter.SeriesID, library.SeriesDelta{LastReadAt: &now})
}

// SetSeriesSettings replaces the reader overrides of a series. Nil fields
// fall back to the global settings.
func (e *Engine) SetSeriesSettings(ctx context.Context, id int64, overrides core.SeriesSettings) error {
	return e.Store.UpdateSeries(ctx, id, library.SeriesDelta{Settings: &overrides})
}

// ReaderSettings returns the effective reader settings of a series
func (e *Engine) ReaderSettings(ctx context.Context, id int64) (core.ReaderSettings, error) {
	series, err := e.Store.GetSeries(ctx, id)
	if err != nil {
		return core.ReaderSettings{}, err
	}
	return series.Apply(e.Config.Settings().Reader()), nil
}

// ResetChapter forgets everything fetched for a chapter: cached pages,
// the page list, the downloaded flag and the read position.
func (e *Engine) ResetChapter(ctx context.Context, chapterID int64) error {
	series, chapter, err := e.chapterContext(ctx, chapterID)
	if err != nil {
		return err
	}
	if err := e.Download.Cancel(ctx, chapterID); err != nil && !errors.IsNotFound(err) {
		return err
	}
	if err := e.Cache.PurgeChapter(series.SourceID, series.Slug, chapter.Slug); err != nil {
		return err
	}

	var unresolved core.Pages
	no := false
	return e.Store.UpdateChapter(ctx, chapterID, library.ChapterDelta{
		Pages:         &unresolved,
		Downloaded:    &no,
		ClearProgress: true,
	})
}
