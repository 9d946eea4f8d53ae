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

// Package update refreshes library series from their sources.
package update

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/library"
	"Tankobon/pkg/provider"
)

// Store is the part of the library an update touches
type Store interface {
	GetSeries(ctx context.Context, id int64) (*core.Series, error)
	SeriesIDs(ctx context.Context) ([]int64, error)
	UpdateSeries(ctx context.Context, id int64, d library.SeriesDelta) error
	MergeChapters(ctx context.Context, seriesID int64, fresh []core.ChapterData) (int, []string, error)
}

// PageCache drops the cached pages of chapters a merge removed
type PageCache interface {
	PurgeChapter(sourceID, seriesSlug, chapterSlug string) error
}

// Providers looks sources up by id
type Providers interface {
	Provider(id string) (provider.Provider, error)
}

// Result is the outcome of updating one series
type Result struct {
	SeriesID int64  `json:"series_id"`
	Name     string `json:"name"`
	Added    int    `json:"added"`
	Err      error  `json:"-"`
	Error    string `json:"error,omitempty"`
}

// Service runs series updates, on demand or on a cron schedule
type Service struct {
	store     Store
	providers Providers
	pages     PageCache
	logger    logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	onBatch func([]Result)
	wg      sync.WaitGroup
}

// NewService creates an update service. pages may be nil when nothing is
// cached.
func NewService(store Store, providers Providers, pages PageCache, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:     store,
		providers: providers,
		pages:     pages,
		logger:    log,
		now:       time.Now,
	}
}

// UpdateSeries refreshes one series' metadata and chapter list and returns
// the number of new chapters.
func (s *Service) UpdateSeries(ctx context.Context, id int64) (int, error) {
	series, err := s.store.GetSeries(ctx, id)
	if err != nil {
		return 0, err
	}
	p, err := s.providers.Provider(series.SourceID)
	if err != nil {
		return 0, err
	}

	data, err := p.MangaData(ctx, core.MangaData{Slug: series.Slug, Name: series.Name, URL: series.URL})
	if err != nil {
		return 0, errors.Track(err).WithContext("series_id", id).Error()
	}
	data.Normalize()
	if err := data.Validate(); err != nil {
		return 0, errors.Track(fmt.Errorf("%w: %v", errors.ErrValidation, err)).
			WithContext("series_id", id).
			AsValidation().
			Error()
	}

	added, dropped, err := s.store.MergeChapters(ctx, id, data.Chapters)
	if err != nil {
		return 0, err
	}
	for _, slug := range dropped {
		if s.pages == nil {
			break
		}
		if err := s.pages.PurgeChapter(series.SourceID, series.Slug, slug); err != nil {
			s.logger.Warn("[update] %s: purging dropped chapter %s: %v", series.Name, slug, err)
		}
	}

	now := s.now().UTC()
	delta := library.SeriesDelta{
		Authors:       &data.Authors,
		Scanlators:    &data.Scanlators,
		Genres:        &data.Genres,
		Status:        &data.Status,
		Synopsis:      &data.Synopsis,
		LastUpdatedAt: &now,
	}
	if data.CoverURL != "" {
		delta.CoverURL = &data.CoverURL
	}
	if data.URL != "" {
		delta.URL = &data.URL
	}
	if err := s.store.UpdateSeries(ctx, id, delta); err != nil {
		return added, err
	}

	s.logger.Info("[update] %s: %d new chapters", series.Name, added)
	return added, nil
}

// UpdateAll updates each series in turn. A failing series does not stop
// the batch; its error is reported in its result. With no ids the whole
// library is updated.
func (s *Service) UpdateAll(ctx context.Context, ids []int64) ([]Result, error) {
	if len(ids) == 0 {
		all, err := s.store.SeriesIDs(ctx)
		if err != nil {
			return nil, err
		}
		ids = all
	}

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			return results, errors.FromContext(ctx).Error()
		}

		r := Result{SeriesID: id}
		if series, err := s.store.GetSeries(ctx, id); err == nil {
			r.Name = series.Name
		}
		r.Added, r.Err = s.UpdateSeries(ctx, id)
		if r.Err != nil {
			r.Error = r.Err.Error()
			s.logger.Warn("[update] series %d failed: %v", id, r.Err)
		}
		results = append(results, r)
	}
	return results, nil
}

// UpdateAllAsync runs UpdateAll on its own goroutine and hands the results
// to done.
func (s *Service) UpdateAllAsync(ctx context.Context, ids []int64, done func([]Result, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		results, err := s.UpdateAll(ctx, ids)
		if done != nil {
			done(results, err)
		}
	}()
}

// Wait blocks until every asynchronous batch has finished
func (s *Service) Wait() {
	s.wg.Wait()
}

// Schedule runs a library-wide update on a standard cron expression. An
// empty expression removes the schedule. Runs never overlap.
func (s *Service) Schedule(expr string, onBatch func([]Result)) error {
	s.StopSchedule()
	if expr == "" {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})))
	if _, err := c.AddFunc(expr, s.runScheduled); err != nil {
		return errors.Track(fmt.Errorf("%w: update schedule %q: %v", errors.ErrInvalidInput, expr, err)).
			AsValidation().
			Error()
	}

	s.mu.Lock()
	s.cron = c
	s.onBatch = onBatch
	s.mu.Unlock()

	c.Start()
	s.logger.Info("[update] scheduled library updates: %s", expr)
	return nil
}

// StopSchedule stops the cron schedule and waits for a running batch
func (s *Service) StopSchedule() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Service) runScheduled() {
	s.mu.Lock()
	onBatch := s.onBatch
	s.mu.Unlock()

	started := s.now()
	results, err := s.UpdateAll(context.Background(), nil)
	if err != nil {
		s.logger.Error("[update] scheduled update: %v", err)
		return
	}

	added := 0
	for _, r := range results {
		added += r.Added
	}
	s.logger.Info("[update] scheduled update of %d series found %d chapters in %s",
		len(results), added, s.now().Sub(started).Round(time.Millisecond))

	if onBatch != nil {
		onBatch(results)
	}
}

// cronLogger feeds cron's messages into the service logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("[update] cron %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("[update] cron %s: %v %v", msg, err, keysAndValues)
}
