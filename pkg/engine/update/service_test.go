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

package update

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tankobon/pkg/cache"
	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/library"
	"Tankobon/pkg/provider/providertest"
)

func setup(t *testing.T) (*library.Store, *providertest.Source, *Service) {
	t.Helper()
	dir := t.TempDir()
	store, err := library.Open(filepath.Join(dir, "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	src := providertest.New("mock")
	pages := cache.New(filepath.Join(dir, "images"))
	svc := NewService(store, providertest.Registry{"mock": src.Provider()}, pages, logger.Nop())
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }
	t.Cleanup(svc.StopSchedule)
	return store, src, svc
}

func addToLibrary(t *testing.T, store *library.Store, src *providertest.Source, slug string) int64 {
	t.Helper()
	ctx := context.Background()
	m := src.Series[slug]
	id, err := store.InsertSeries(ctx, &core.Series{SourceID: "mock", Slug: slug, Name: m.Name, Status: m.Status})
	require.NoError(t, err)
	require.NoError(t, store.InsertChapters(ctx, id, m.Chapters))
	return id
}

func TestUpdateSeriesMergesAndPreservesProgress(t *testing.T) {
	store, src, svc := setup(t)
	ctx := context.Background()

	src.Add("berserk", "Berserk", "1", "2")
	id := addToLibrary(t, store, src, "berserk")

	chapters, err := store.ChaptersForSeries(ctx, id, library.Ascending)
	require.NoError(t, err)
	pages := core.Pages{{ImageURL: "a"}, {ImageURL: "b"}}
	idx := 1
	require.NoError(t, store.UpdateChapter(ctx, chapters[1].ID, library.ChapterDelta{Pages: &pages, LastPageReadIndex: &idx}))

	src.SetChapters("berserk", "1", "2", "3", "4")
	src.Series["berserk"].Status = core.StatusHiatus
	src.Series["berserk"].Synopsis = "Struggler."

	added, err := svc.UpdateSeries(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	series, err := store.GetSeries(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusHiatus, series.Status)
	assert.Equal(t, "Struggler.", series.Synopsis)
	assert.Equal(t, core.StringList{"Author of Berserk"}, series.Authors)
	require.NotNil(t, series.LastUpdatedAt)
	assert.True(t, series.LastUpdatedAt.Equal(svc.now()))

	chapters, err = store.ChaptersForSeries(ctx, id, library.Ascending)
	require.NoError(t, err)
	require.Len(t, chapters, 4)
	require.NotNil(t, chapters[1].LastPageReadIndex)
	assert.Equal(t, 1, *chapters[1].LastPageReadIndex)
	assert.Len(t, chapters[1].Pages, 2)

	// nothing new the second time
	added, err = svc.UpdateSeries(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestUpdateSeriesPurgesDroppedChapters(t *testing.T) {
	store, src, svc := setup(t)
	ctx := context.Background()
	pages := svc.pages.(*cache.Cache)

	src.Add("berserk", "Berserk", "1", "2", "3")
	id := addToLibrary(t, store, src, "berserk")

	kept := cache.PageKey{SourceID: "mock", SeriesSlug: "berserk", ChapterSlug: "2", Total: 1}
	gone := cache.PageKey{SourceID: "mock", SeriesSlug: "berserk", ChapterSlug: "3", Total: 1}
	for _, k := range []cache.PageKey{kept, gone} {
		_, err := pages.Put(ctx, k, providertest.PNG)
		require.NoError(t, err)
	}

	src.SetChapters("berserk", "1", "2")
	added, err := svc.UpdateSeries(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, added)

	chapters, err := store.ChaptersForSeries(ctx, id, library.Ascending)
	require.NoError(t, err)
	assert.Len(t, chapters, 2)
	assert.True(t, pages.Has(kept))
	assert.False(t, pages.Has(gone))
}

func TestUpdateAllIsolatesFailures(t *testing.T) {
	store, src, svc := setup(t)
	ctx := context.Background()

	src.Add("a", "Alpha", "1")
	src.Add("b", "Beta", "1")
	a := addToLibrary(t, store, src, "a")
	b := addToLibrary(t, store, src, "b")

	src.SetChapters("b", "1", "2")
	src.OnMangaData = func(slug string) error {
		if slug == "a" {
			return errors.Track(fmt.Errorf("%w: 500", errors.ErrServerError)).AsNetwork().Error()
		}
		return nil
	}

	results, err := svc.UpdateAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, a, results[0].SeriesID)
	assert.Equal(t, "Alpha", results[0].Name)
	assert.Error(t, results[0].Err)
	assert.NotEmpty(t, results[0].Error)

	assert.Equal(t, b, results[1].SeriesID)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, 1, results[1].Added)
}

func TestUpdateSeriesRejectsInvalidRecord(t *testing.T) {
	store, src, svc := setup(t)
	src.Add("x", "X", "1")
	id := addToLibrary(t, store, src, "x")

	src.Series["x"].Chapters = append(src.Series["x"].Chapters, core.ChapterData{Slug: " ", Title: "broken"})
	_, err := svc.UpdateSeries(context.Background(), id)
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = svc.UpdateSeries(context.Background(), 404)
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateAllAsync(t *testing.T) {
	store, src, svc := setup(t)
	src.Add("a", "Alpha", "1")
	addToLibrary(t, store, src, "a")
	src.SetChapters("a", "1", "2", "3")

	done := make(chan []Result, 1)
	svc.UpdateAllAsync(context.Background(), nil, func(results []Result, err error) {
		assert.NoError(t, err)
		done <- results
	})

	select {
	case results := <-done:
		require.Len(t, results, 1)
		assert.Equal(t, 2, results[0].Added)
	case <-time.After(10 * time.Second):
		t.Fatal("async update never reported")
	}
	svc.Wait()
}

func TestSchedule(t *testing.T) {
	store, src, svc := setup(t)
	src.Add("a", "Alpha", "1")
	addToLibrary(t, store, src, "a")

	err := svc.Schedule("every tuesday", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	batches := make(chan []Result, 1)
	require.NoError(t, svc.Schedule("@hourly", func(r []Result) { batches <- r }))

	// drive one tick by hand instead of waiting an hour
	svc.runScheduled()
	results := <-batches
	require.Len(t, results, 1)

	require.NoError(t, svc.Schedule("", nil))
	svc.mu.Lock()
	assert.Nil(t, svc.cron)
	svc.mu.Unlock()
}
