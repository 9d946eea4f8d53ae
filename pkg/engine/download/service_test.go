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

package download

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
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

type fixture struct {
	store    *library.Store
	cache    *cache.Cache
	source   *providertest.Source
	svc      *Service
	series   *core.Series
	chapters []core.Chapter
	rec      *recorder
}

func setup(t *testing.T, chapters ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := library.Open(filepath.Join(dir, "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	src := providertest.New("mock")
	src.Add("one-piece", "One Piece", chapters...)

	series := &core.Series{SourceID: "mock", Slug: "one-piece", Name: "One Piece", Status: core.StatusOngoing}
	_, err = store.InsertSeries(ctx, series)
	require.NoError(t, err)
	require.NoError(t, store.InsertChapters(ctx, series.ID, src.Series["one-piece"].Chapters))
	stored, err := store.ChaptersForSeries(ctx, series.ID, library.Ascending)
	require.NoError(t, err)

	c := cache.New(filepath.Join(dir, "images"))
	svc := NewService(store, c, providertest.Registry{"mock": src.Provider()}, logger.Nop(), Options{
		RetryBudget: 2,
		RetryDelay:  time.Millisecond,
	})
	t.Cleanup(svc.Stop)

	return &fixture{
		store:    store,
		cache:    c,
		source:   src,
		svc:      svc,
		series:   series,
		chapters: stored,
		rec:      record(svc),
	}
}

type recorder struct {
	mu       sync.Mutex
	events   []core.DownloadEvent
	terminal chan core.DownloadEvent
}

func record(svc *Service) *recorder {
	r := &recorder{terminal: make(chan core.DownloadEvent, 32)}
	svc.Subscribe(func(ev core.DownloadEvent) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
		switch ev.Kind {
		case core.EventCompleted, core.EventFailed, core.EventCancelled:
			r.terminal <- ev
		}
	})
	return r
}

func (r *recorder) wait(t *testing.T) core.DownloadEvent {
	t.Helper()
	select {
	case ev := <-r.terminal:
		return ev
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for download to finish")
		return core.DownloadEvent{}
	}
}

func (r *recorder) kinds(chapterID int64) []core.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.EventKind
	for _, ev := range r.events {
		if ev.ChapterID == chapterID {
			out = append(out, ev.Kind)
		}
	}
	return out
}

func (r *recorder) percents(chapterID int64) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, ev := range r.events {
		if ev.ChapterID == chapterID && ev.Kind == core.EventProgress {
			out = append(out, ev.Percent)
		}
	}
	return out
}

func (f *fixture) chapter(t *testing.T, i int) *core.Chapter {
	t.Helper()
	c, err := f.store.GetChapter(context.Background(), f.chapters[i].ID)
	require.NoError(t, err)
	return c
}

func TestDownloadCompletes(t *testing.T) {
	f := setup(t, "1")
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))

	id := f.chapters[0].ID
	queued, err := f.svc.Enqueue(ctx, id)
	require.NoError(t, err)
	require.Len(t, queued, 1)

	ev := f.rec.wait(t)
	assert.Equal(t, core.EventCompleted, ev.Kind)
	assert.Equal(t, 100, ev.Percent)

	assert.Equal(t, []int{33, 66, 100}, f.rec.percents(id))
	assert.Equal(t, []core.EventKind{
		core.EventQueued, core.EventStarted,
		core.EventProgress, core.EventProgress, core.EventProgress,
		core.EventCompleted,
	}, f.rec.kinds(id))

	c := f.chapter(t, 0)
	assert.True(t, c.Downloaded)
	assert.Len(t, c.Pages, 3, "pages were resolved and stored")
	assert.Equal(t, 1, f.source.ChapterCalls("1"))
	for i := 0; i < 3; i++ {
		path, err := f.cache.Lookup(cache.KeyFor(f.series, c, i))
		require.NoError(t, err)
		assert.Equal(t, filepath.Base(path), c.Pages[i].LocalName)
	}

	tasks, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestEnqueueSkipsQueuedAndDownloaded(t *testing.T) {
	f := setup(t, "1", "2")
	ctx := context.Background()

	yes := true
	require.NoError(t, f.store.UpdateChapter(ctx, f.chapters[1].ID, library.ChapterDelta{Downloaded: &yes}))

	// not started: tasks stay queued
	queued, err := f.svc.Enqueue(ctx, f.chapters[0].ID, f.chapters[1].ID)
	require.NoError(t, err)
	assert.Len(t, queued, 1)

	queued, err = f.svc.Enqueue(ctx, f.chapters[0].ID)
	require.NoError(t, err)
	assert.Empty(t, queued)

	tasks, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, core.DownloadPending, tasks[0].Status)

	_, err = f.svc.Enqueue(ctx, 999)
	assert.True(t, errors.IsNotFound(err))
}

func TestDownloadFIFO(t *testing.T) {
	f := setup(t, "1", "2", "3")
	ctx := context.Background()

	ids := []int64{f.chapters[2].ID, f.chapters[0].ID, f.chapters[1].ID}
	_, err := f.svc.Enqueue(ctx, ids...)
	require.NoError(t, err)
	require.NoError(t, f.svc.Start(ctx))

	var order []int64
	for range ids {
		ev := f.rec.wait(t)
		require.Equal(t, core.EventCompleted, ev.Kind)
		order = append(order, ev.ChapterID)
	}
	assert.Equal(t, ids, order)
}

func TestDownloadFailureIsIsolated(t *testing.T) {
	f := setup(t, "1", "2")
	ctx := context.Background()

	f.source.SetOnPage(func(ref core.ChapterRef, index int) error {
		if ref.ChapterSlug == "1" && index == 1 {
			return errors.Track(fmt.Errorf("%w: 503", errors.ErrServerError)).AsNetwork().Error()
		}
		return nil
	})
	require.NoError(t, f.svc.Start(ctx))
	_, err := f.svc.Enqueue(ctx, f.chapters[0].ID, f.chapters[1].ID)
	require.NoError(t, err)

	failed := f.rec.wait(t)
	assert.Equal(t, core.EventFailed, failed.Kind)
	assert.Equal(t, f.chapters[0].ID, failed.ChapterID)
	assert.Equal(t, 33, failed.Percent, "percent stays where the failure happened")
	assert.Equal(t, 2, failed.ErrorCount)
	assert.NotEmpty(t, failed.Err)
	assert.Equal(t, 2, f.source.PageCalls("1", 1))

	done := f.rec.wait(t)
	assert.Equal(t, core.EventCompleted, done.Kind)
	assert.Equal(t, f.chapters[1].ID, done.ChapterID)

	task, err := f.store.TaskForChapter(ctx, f.chapters[0].ID)
	require.NoError(t, err)
	assert.Equal(t, core.DownloadError, task.Status)
	assert.Equal(t, 33, task.Percent)
	assert.Equal(t, 2, task.ErrorCount)
	assert.False(t, f.chapter(t, 0).Downloaded)

	// a retry after the source recovers finishes the chapter, reusing the
	// page already cached
	f.source.SetOnPage(nil)
	require.NoError(t, f.svc.Retry(ctx, f.chapters[0].ID))
	ev := f.rec.wait(t)
	assert.Equal(t, core.EventCompleted, ev.Kind)
	assert.Equal(t, 1, f.source.PageCalls("1", 0))
	assert.True(t, f.chapter(t, 0).Downloaded)

	percents := f.rec.percents(f.chapters[0].ID)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
}

func TestRetryOnlyFailed(t *testing.T) {
	f := setup(t, "1")
	ctx := context.Background()

	_, err := f.svc.Enqueue(ctx, f.chapters[0].ID)
	require.NoError(t, err)
	err = f.svc.Retry(ctx, f.chapters[0].ID)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestCancelMidDownload(t *testing.T) {
	f := setup(t, "1", "2")
	ctx := context.Background()
	first, second := f.chapters[0].ID, f.chapters[1].ID

	f.source.SetOnPage(func(ref core.ChapterRef, index int) error {
		if ref.ChapterSlug == "1" && index == 1 {
			assert.NoError(t, f.svc.Cancel(ctx, first))
		}
		return nil
	})
	require.NoError(t, f.svc.Start(ctx))
	_, err := f.svc.Enqueue(ctx, first, second)
	require.NoError(t, err)

	ev := f.rec.wait(t)
	assert.Equal(t, core.EventCancelled, ev.Kind)
	assert.Equal(t, first, ev.ChapterID)
	assert.Equal(t, []int{33, 66}, f.rec.percents(first))
	assert.Zero(t, f.source.PageCalls("1", 2))

	ev = f.rec.wait(t)
	assert.Equal(t, core.EventCompleted, ev.Kind)
	assert.Equal(t, second, ev.ChapterID)
	assert.Equal(t, []int{33, 66, 100}, f.rec.percents(second))

	_, err = f.store.TaskForChapter(ctx, first)
	assert.True(t, errors.IsNotFound(err))
	assert.False(t, f.chapter(t, 0).Downloaded)
	assert.True(t, f.chapter(t, 1).Downloaded)
}

// cancelOnPop cancels every task the moment the worker takes it from the
// queue, before the worker has marked it as current.
type cancelOnPop struct {
	*library.Store
	svc *Service
}

func (c *cancelOnPop) NextTask(ctx context.Context, exclude []int64) (*core.DownloadTask, error) {
	task, err := c.Store.NextTask(ctx, exclude)
	if err == nil {
		if cerr := c.svc.Cancel(ctx, task.ChapterID); cerr != nil {
			return nil, cerr
		}
	}
	return task, err
}

func TestCancelRightAfterTaken(t *testing.T) {
	f := setup(t, "1")
	ctx := context.Background()
	id := f.chapters[0].ID

	store := &cancelOnPop{Store: f.store}
	svc := NewService(store, f.cache, providertest.Registry{"mock": f.source.Provider()}, logger.Nop(), Options{RetryBudget: 1})
	store.svc = svc
	t.Cleanup(svc.Stop)
	rec := record(svc)

	_, err := svc.Enqueue(ctx, id)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx))

	ev := rec.wait(t)
	assert.Equal(t, core.EventCancelled, ev.Kind)
	assert.Eventually(t, svc.Idle, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []core.EventKind{core.EventQueued, core.EventCancelled}, rec.kinds(id))
	assert.Zero(t, f.source.PageCalls("1", 0))
}

func TestTaskRemovedWhileDownloading(t *testing.T) {
	f := setup(t, "1")
	ctx := context.Background()
	id := f.chapters[0].ID

	f.source.SetOnPage(func(ref core.ChapterRef, index int) error {
		if index == 1 {
			task, err := f.store.TaskForChapter(ctx, id)
			if assert.NoError(t, err) {
				assert.NoError(t, f.store.DeleteTask(ctx, task.ID))
			}
		}
		return nil
	})
	require.NoError(t, f.svc.Start(ctx))
	_, err := f.svc.Enqueue(ctx, id)
	require.NoError(t, err)

	ev := f.rec.wait(t)
	assert.Equal(t, core.EventCancelled, ev.Kind)
	assert.NotContains(t, f.rec.kinds(id), core.EventFailed)
	assert.False(t, f.chapter(t, 0).Downloaded)
}

func TestCancelQueued(t *testing.T) {
	f := setup(t, "1")
	ctx := context.Background()
	id := f.chapters[0].ID

	_, err := f.svc.Enqueue(ctx, id)
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(ctx, id))

	ev := f.rec.wait(t)
	assert.Equal(t, core.EventCancelled, ev.Kind)
	tasks, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	assert.True(t, errors.IsNotFound(f.svc.Cancel(ctx, id)))
}

func TestStartResumesInterrupted(t *testing.T) {
	f := setup(t, "1")
	ctx := context.Background()
	id := f.chapters[0].ID

	task, _, err := f.store.InsertTask(ctx, id)
	require.NoError(t, err)
	task.Status = core.DownloadDownloading
	task.Percent = 33
	require.NoError(t, f.store.UpdateTask(ctx, task))

	require.NoError(t, f.svc.Start(ctx))
	ev := f.rec.wait(t)
	assert.Equal(t, core.EventCompleted, ev.Kind)
	assert.Equal(t, []int{33, 66, 100}, f.rec.percents(id))
}

func TestStopParksTask(t *testing.T) {
	f := setup(t, "1")
	ctx := context.Background()
	id := f.chapters[0].ID

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.source.SetOnPage(func(ref core.ChapterRef, index int) error {
		if index == 1 {
			once.Do(func() { close(entered) })
			<-release
		}
		return nil
	})

	require.NoError(t, f.svc.Start(ctx))
	_, err := f.svc.Enqueue(ctx, id)
	require.NoError(t, err)

	<-entered
	stopped := make(chan struct{})
	go func() {
		f.svc.Stop()
		close(stopped)
	}()
	// let Stop cancel the worker context before the page returns
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not return")
	}

	task, err := f.store.TaskForChapter(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.DownloadPending, task.Status)
	assert.True(t, f.svc.Idle())
}
