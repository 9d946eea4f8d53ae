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

// Package download runs the background download queue: one worker that
// takes queued chapters in enqueue order and stores their pages in the
// page cache.
package download

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"Tankobon/pkg/cache"
	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/library"
	"Tankobon/pkg/provider"
)

// PageStore records resolved page lists and where their pages were cached
type PageStore interface {
	UpdateChapter(ctx context.Context, id int64, d library.ChapterDelta) error
	SetPageLocal(ctx context.Context, chapterID int64, index int, name string) error
}

// Store is the part of the library the worker needs
type Store interface {
	PageStore
	GetSeries(ctx context.Context, id int64) (*core.Series, error)
	GetChapter(ctx context.Context, id int64) (*core.Chapter, error)

	InsertTask(ctx context.Context, chapterID int64) (*core.DownloadTask, bool, error)
	NextTask(ctx context.Context, exclude []int64) (*core.DownloadTask, error)
	TaskForChapter(ctx context.Context, chapterID int64) (*core.DownloadTask, error)
	UpdateTask(ctx context.Context, t *core.DownloadTask) error
	DeleteTask(ctx context.Context, id int64) error
	CompleteTask(ctx context.Context, t *core.DownloadTask) error
	ListTasks(ctx context.Context) ([]core.DownloadTask, error)
	ResetDownloading(ctx context.Context) (int64, error)
}

// Providers looks sources up by id
type Providers interface {
	Provider(id string) (provider.Provider, error)
}

// Options tune the worker
type Options struct {
	// PageDelay is the pause between two page fetches
	PageDelay time.Duration
	// RetryBudget is the number of attempts per page before a task fails
	RetryBudget int
	// RetryDelay is the first backoff delay between attempts
	RetryDelay time.Duration
}

// Listener receives download events on the worker goroutine
type Listener func(core.DownloadEvent)

// Service owns the download queue
type Service struct {
	store     Store
	cache     *cache.Cache
	providers Providers
	logger    logger.Logger
	opts      Options

	mu       sync.Mutex
	running  bool
	again    bool
	stopped  bool
	baseCtx  context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
	current  int64 // chapter id being downloaded
	cancel   bool  // cancel requested for current
	failed   map[int64]bool
	nextSub  int
	subs     map[int]Listener
	subOrder []int
}

// NewService creates a stopped download service. Call Start to resume the
// persisted queue.
func NewService(store Store, c *cache.Cache, providers Providers, log logger.Logger, opts Options) *Service {
	if opts.RetryBudget < 1 {
		opts.RetryBudget = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:     store,
		cache:     c,
		providers: providers,
		logger:    log,
		opts:      opts,
		failed:    make(map[int64]bool),
		subs:      make(map[int]Listener),
		stopped:   true,
	}
}

// Start resets interrupted tasks to pending and starts working the queue.
// Starting a running service only wakes the worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if !stopped {
		s.kick()
		return nil
	}

	n, err := s.store.ResetDownloading(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("[download] resuming %d interrupted downloads", n)
	}

	s.mu.Lock()
	if s.stopped {
		s.baseCtx, s.stop = context.WithCancel(context.Background())
		s.stopped = false
	}
	s.mu.Unlock()

	s.kick()
	return nil
}

// Stop interrupts the worker and waits for it. The task in flight goes
// back to pending so the next Start picks it up again.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.stop()
	s.mu.Unlock()

	s.wg.Wait()
}

// Subscribe registers fn for every download event and returns a function
// that removes it again.
func (s *Service) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subOrder = append(s.subOrder, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			for i, sid := range s.subOrder {
				if sid == id {
					s.subOrder = append(s.subOrder[:i], s.subOrder[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Service) emit(kind core.EventKind, t *core.DownloadTask, cause error) {
	ev := core.DownloadEvent{
		Kind:       kind,
		TaskID:     t.ID,
		ChapterID:  t.ChapterID,
		Status:     t.Status,
		Percent:    t.Percent,
		ErrorCount: t.ErrorCount,
		At:         time.Now(),
	}
	if cause != nil {
		ev.Err = cause.Error()
	}

	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.subOrder))
	for _, id := range s.subOrder {
		listeners = append(listeners, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// Enqueue queues chapters for download. Chapters already downloaded or
// already queued are skipped. The returned tasks are the newly queued ones.
func (s *Service) Enqueue(ctx context.Context, chapterIDs ...int64) ([]core.DownloadTask, error) {
	var queued []core.DownloadTask
	for _, id := range chapterIDs {
		chapter, err := s.store.GetChapter(ctx, id)
		if err != nil {
			return queued, err
		}
		if chapter.Downloaded {
			s.logger.Debug("[download] chapter %d already downloaded", id)
			continue
		}

		task, created, err := s.store.InsertTask(ctx, id)
		if err != nil {
			return queued, err
		}
		if !created {
			continue
		}
		queued = append(queued, *task)
		s.emit(core.EventQueued, task, nil)
	}

	if len(queued) > 0 {
		s.kick()
	}
	return queued, nil
}

// Cancel removes a chapter from the queue. A chapter being downloaded stops
// after its current page.
func (s *Service) Cancel(ctx context.Context, chapterID int64) error {
	task, err := s.store.TaskForChapter(ctx, chapterID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.current == chapterID {
		s.cancel = true
		s.mu.Unlock()
		s.logger.Debug("[download] cancel requested for chapter %d", chapterID)
		return nil
	}
	delete(s.failed, task.ID)
	s.mu.Unlock()

	if err := s.store.DeleteTask(ctx, task.ID); err != nil {
		return err
	}
	task.Status = core.DownloadCancelled
	s.emit(core.EventCancelled, task, nil)
	return nil
}

// Retry puts a failed chapter back to pending
func (s *Service) Retry(ctx context.Context, chapterID int64) error {
	task, err := s.store.TaskForChapter(ctx, chapterID)
	if err != nil {
		return err
	}
	if task.Status != core.DownloadError {
		return errors.Track(errors.ErrInvalidInput).
			WithMessagef("chapter %d is %s, only failed downloads can be retried", chapterID, task.Status).
			AsValidation().
			Error()
	}

	task.Status = core.DownloadPending
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.failed, task.ID)
	s.mu.Unlock()

	s.emit(core.EventQueued, task, nil)
	s.kick()
	return nil
}

// List returns the queue in processing order
func (s *Service) List(ctx context.Context) ([]core.DownloadTask, error) {
	return s.store.ListTasks(ctx)
}

// Idle reports whether the worker has nothing to do
func (s *Service) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.running
}

// kick starts the worker unless it is already running or stopped
func (s *Service) kick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.running {
		s.again = true
		return
	}
	s.running = true
	s.wg.Add(1)
	go s.work(s.baseCtx)
}

func (s *Service) work(ctx context.Context) {
	defer s.wg.Done()

	for {
		task, err := s.next(ctx)
		if err == nil {
			s.run(ctx, task)
			continue
		}
		if !errors.IsNotFound(err) && ctx.Err() == nil {
			s.logger.Error("[download] reading queue: %v", err)
		}

		s.mu.Lock()
		if s.again && ctx.Err() == nil {
			s.again = false
			s.mu.Unlock()
			continue
		}
		s.running = false
		s.again = false
		s.mu.Unlock()
		return
	}
}

func (s *Service) next(ctx context.Context) (*core.DownloadTask, error) {
	if ctx.Err() != nil {
		return nil, errors.FromContext(ctx).Error()
	}

	s.mu.Lock()
	exclude := make([]int64, 0, len(s.failed))
	for id := range s.failed {
		exclude = append(exclude, id)
	}
	s.mu.Unlock()

	return s.store.NextTask(ctx, exclude)
}

// run downloads one task to completion, failure or cancellation
func (s *Service) run(ctx context.Context, task *core.DownloadTask) {
	s.mu.Lock()
	s.current = task.ChapterID
	s.cancel = false
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.current = 0
		s.cancel = false
		s.mu.Unlock()
	}()

	// the worker's own bookkeeping must outlive a Stop
	bg := context.WithoutCancel(ctx)

	task.Status = core.DownloadDownloading
	if err := s.store.UpdateTask(bg, task); err != nil {
		if errors.IsNotFound(err) {
			// cancelled right after it was taken; Cancel reported it
			s.logger.Debug("[download] chapter %d left the queue before it started", task.ChapterID)
			return
		}
		s.fail(bg, task, err)
		return
	}
	s.emit(core.EventStarted, task, nil)

	err := s.download(ctx, task)
	switch {
	case err == nil:
		task.Percent = 100
		if err := s.store.CompleteTask(bg, task); err != nil {
			s.fail(bg, task, err)
			return
		}
		s.logger.Info("[download] chapter %d done", task.ChapterID)
		s.emit(core.EventCompleted, task, nil)

	case errors.Is(err, errCancelRequested):
		if err := s.store.DeleteTask(bg, task.ID); err != nil {
			s.logger.Error("[download] dropping cancelled task %d: %v", task.ID, err)
		}
		task.Status = core.DownloadCancelled
		s.logger.Info("[download] chapter %d cancelled", task.ChapterID)
		s.emit(core.EventCancelled, task, nil)

	case ctx.Err() != nil:
		// stopped: leave the task for the next start
		task.Status = core.DownloadPending
		if err := s.store.UpdateTask(bg, task); err != nil {
			s.logger.Error("[download] parking task %d: %v", task.ID, err)
		}

	case s.removed(bg, task):
		task.Status = core.DownloadCancelled
		s.logger.Info("[download] chapter %d was removed while downloading", task.ChapterID)
		s.emit(core.EventCancelled, task, nil)

	default:
		s.fail(bg, task, err)
	}
}

// removed reports whether the task row is gone, as after deleting its
// series
func (s *Service) removed(ctx context.Context, task *core.DownloadTask) bool {
	_, err := s.store.TaskForChapter(ctx, task.ChapterID)
	return errors.IsNotFound(err)
}

func (s *Service) fail(ctx context.Context, task *core.DownloadTask, cause error) {
	s.logger.Error("[download] chapter %d failed: %v", task.ChapterID, cause)

	s.mu.Lock()
	s.failed[task.ID] = true
	s.mu.Unlock()

	task.Status = core.DownloadError
	if err := s.store.UpdateTask(ctx, task); err != nil {
		s.logger.Error("[download] recording failure of task %d: %v", task.ID, err)
	}
	s.emit(core.EventFailed, task, cause)
}

var errCancelRequested = fmt.Errorf("%w: download cancelled", errors.ErrCancelled)

func (s *Service) cancelRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel
}

// download fetches every page of the task's chapter in index order
func (s *Service) download(ctx context.Context, task *core.DownloadTask) error {
	chapter, err := s.store.GetChapter(ctx, task.ChapterID)
	if err != nil {
		return err
	}
	series, err := s.store.GetSeries(ctx, chapter.SeriesID)
	if err != nil {
		return err
	}
	p, err := s.providers.Provider(series.SourceID)
	if err != nil {
		return err
	}

	if !chapter.Resolved() {
		err := s.attempt(ctx, task, func() error {
			return ResolvePages(ctx, s.store, p, series, chapter)
		})
		if err != nil {
			return err
		}
	}

	ref := chapter.Ref(series)
	total := len(chapter.Pages)
	fetched := false

	for i, page := range chapter.Pages {
		if s.cancelRequested() {
			return errCancelRequested
		}

		key := cache.KeyFor(series, chapter, i)
		path, err := s.cache.Lookup(key)
		if err != nil {
			if !errors.IsCacheMiss(err) {
				return err
			}
			if fetched && s.opts.PageDelay > 0 {
				select {
				case <-time.After(s.opts.PageDelay):
				case <-ctx.Done():
					return errors.FromContext(ctx).Error()
				}
			}

			err = s.attempt(ctx, task, func() error {
				img, err := p.PageImage(ctx, ref, page)
				if err != nil {
					return err
				}
				path, err = s.cache.Put(ctx, key, img.Data)
				return err
			})
			if err != nil {
				return errors.Track(err).
					WithContext("chapter_id", chapter.ID).
					WithContext("page", i).
					Error()
			}
			fetched = true
		}
		if err := RecordPage(context.WithoutCancel(ctx), s.store, chapter, i, path); err != nil {
			return err
		}

		if pct := 100 * (i + 1) / total; pct > task.Percent {
			task.Percent = pct
		}
		if err := s.store.UpdateTask(context.WithoutCancel(ctx), task); err != nil {
			return err
		}
		s.emit(core.EventProgress, task, nil)
	}
	return nil
}

// attempt runs fn under the retry budget. Every failed attempt is counted
// on the task.
func (s *Service) attempt(ctx context.Context, task *core.DownloadTask, fn func() error) error {
	return retry.Do(
		func() error {
			err := fn()
			if err != nil && ctx.Err() == nil {
				task.ErrorCount++
				if uerr := s.store.UpdateTask(context.WithoutCancel(ctx), task); uerr != nil {
					return retry.Unrecoverable(uerr)
				}
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.opts.RetryBudget)),
		retry.Delay(s.opts.RetryDelay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && retry.IsRecoverable(err) && !errors.IsCancelled(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("[download] chapter %d attempt %d failed: %v", task.ChapterID, n+1, err)
		}),
	)
}

// RecordPage stores the file name a page was cached under. chapter is
// updated in place.
func RecordPage(ctx context.Context, store PageStore, chapter *core.Chapter, index int, path string) error {
	name := filepath.Base(path)
	if chapter.Pages[index].LocalName == name {
		return nil
	}
	if err := store.SetPageLocal(ctx, chapter.ID, index, name); err != nil {
		return err
	}
	chapter.Pages[index].LocalName = name
	return nil
}

// ResolvePages asks the source for the page list of a chapter and stores
// it. chapter is updated in place.
func ResolvePages(ctx context.Context, store PageStore, p provider.Provider, series *core.Series, chapter *core.Chapter) error {
	pages, err := p.ChapterData(ctx, chapter.Ref(series))
	if err != nil {
		return err
	}
	resolved := core.Pages(pages)
	if err := store.UpdateChapter(ctx, chapter.ID, library.ChapterDelta{Pages: &resolved}); err != nil {
		return err
	}
	chapter.Pages = resolved
	return nil
}
